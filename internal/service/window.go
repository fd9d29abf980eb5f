package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BookingWindowQuery holds the two relative offsets the booking widget sends,
// both measured from now.
type BookingWindowQuery struct {
	AllowBookingAfter     string `form:"allowBookingAfter"`
	AllowBookingAfterUnit string `form:"allowBookingAfterUnit"`
	AllowBookingFor       string `form:"allowBookingFor"`
	AllowBookingForUnit   string `form:"allowBookingForUnit"`
}

// Window returns [now+after, now+for).
func (q BookingWindowQuery) Window(now time.Time) (time.Time, time.Time, error) {
	start, err := addOffset(now, q.AllowBookingAfter, q.AllowBookingAfterUnit)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: allowBookingAfter: %v", ErrValidation, err)
	}

	end, err := addOffset(now, q.AllowBookingFor, q.AllowBookingForUnit)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: allowBookingFor: %v", ErrValidation, err)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: booking window is empty", ErrValidation)
	}

	return start, end, nil
}

// maxHorizon bounds either offset; larger amounts would overflow time.Duration.
const maxHorizon = 5 * 366 * 24 * time.Hour

func addOffset(now time.Time, amount, unit string) (time.Time, error) {
	n, err := strconv.Atoi(strings.TrimSpace(amount))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid amount %q", amount)
	}
	if n < 0 {
		return time.Time{}, fmt.Errorf("negative amount %d", n)
	}

	var step time.Duration
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s") {
	case "minute":
		step = time.Minute
	case "hour":
		step = time.Hour
	case "day":
		step = 24 * time.Hour
	case "week":
		step = 7 * 24 * time.Hour
	case "month":
		step = 31 * 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("unsupported unit %q", unit)
	}
	if n > int(maxHorizon/step) {
		return time.Time{}, fmt.Errorf("amount %d %s is too far ahead", n, unit)
	}

	switch step {
	case 24 * time.Hour:
		return now.AddDate(0, 0, n), nil
	case 7 * 24 * time.Hour:
		return now.AddDate(0, 0, 7*n), nil
	case 31 * 24 * time.Hour:
		return now.AddDate(0, n, 0), nil
	default:
		return now.Add(time.Duration(n) * step), nil
	}
}
