package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     BookingWindowQuery
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "days",
			query:     BookingWindowQuery{"2", "days", "30", "days"},
			wantStart: now.AddDate(0, 0, 2),
			wantEnd:   now.AddDate(0, 0, 30),
		},
		{
			name:      "singular and mixed case units",
			query:     BookingWindowQuery{"90", "Minute", "1", "week"},
			wantStart: now.Add(90 * time.Minute),
			wantEnd:   now.AddDate(0, 0, 7),
		},
		{
			name:      "hours to months",
			query:     BookingWindowQuery{"0", "hours", "2", "months"},
			wantStart: now,
			wantEnd:   time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.query.Window(now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestBookingWindow_Invalid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		query BookingWindowQuery
	}{
		{"missing amount", BookingWindowQuery{"", "days", "30", "days"}},
		{"not a number", BookingWindowQuery{"two", "days", "30", "days"}},
		{"negative", BookingWindowQuery{"-1", "days", "30", "days"}},
		{"unknown unit", BookingWindowQuery{"2", "fortnights", "30", "days"}},
		{"empty window", BookingWindowQuery{"30", "days", "2", "days"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.query.Window(now)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestBookingWindow_RejectsAmountsPastHorizon(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	for _, q := range []BookingWindowQuery{
		{"0", "days", "5000000", "hours"},
		{"0", "days", "9000000000", "minutes"},
		{"0", "days", "1000", "months"},
		{"100000", "weeks", "1", "days"},
	} {
		_, _, err := q.Window(now)
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "too far ahead")
	}

	// four years out is still a valid window
	_, end, err := BookingWindowQuery{"0", "days", "48", "months"}.Window(now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 48, 0), end)
}
