package repository

import (
	"context"
	"testing"

	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, repo *AccountRepository, locationID string) {
	t.Helper()
	acc := models.Account{
		LocationID:   locationID,
		UserID:       "user-" + locationID,
		CalendarID:   "cal-" + locationID,
		BusinessName: "Clinic " + locationID,
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
	}
	require.NoError(t, repo.db.DB.Create(&acc).Error)
}

func TestAccountRepository_LoadSingleAccount(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	seedAccount(t, repo, "loc-1")

	acc, err := repo.Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", acc.LocationID)
	assert.Equal(t, "cal-loc-1", acc.CalendarID)
	assert.Equal(t, "access-0", acc.AccessToken)
}

func TestAccountRepository_LoadByLocation(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	seedAccount(t, repo, "loc-1")
	seedAccount(t, repo, "loc-2")

	acc, err := repo.Load(context.Background(), "loc-2")
	require.NoError(t, err)
	assert.Equal(t, "user-loc-2", acc.UserID)

	_, err = repo.Load(context.Background(), "loc-3")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_LoadEmptyStore(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	_, err := repo.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_SaveTokensReplacesPair(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	seedAccount(t, repo, "loc-1")
	seedAccount(t, repo, "loc-2")
	ctx := context.Background()

	err := repo.SaveTokens(ctx, &models.Account{
		LocationID:   "loc-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	})
	require.NoError(t, err)

	acc, err := repo.Load(ctx, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", acc.AccessToken)
	assert.Equal(t, "refresh-1", acc.RefreshToken)
	assert.Equal(t, "cal-loc-1", acc.CalendarID)

	other, err := repo.Load(ctx, "loc-2")
	require.NoError(t, err)
	assert.Equal(t, "refresh-0", other.RefreshToken)
}

func TestAccountRepository_SaveTokensRejectsBadInput(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	seedAccount(t, repo, "loc-1")
	ctx := context.Background()

	err := repo.SaveTokens(ctx, &models.Account{LocationID: "loc-1", AccessToken: "a"})
	assert.Error(t, err)

	err = repo.SaveTokens(ctx, &models.Account{LocationID: "missing", AccessToken: "a", RefreshToken: "r"})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	acc, err := repo.Load(ctx, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-0", acc.RefreshToken)
}
