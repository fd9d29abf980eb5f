package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/aman-churiwal/crm-relay/internal/storage"
	"gorm.io/gorm"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountStore is the persistence boundary for the tenant account. Gateway
// handlers only call Load; the token refresher is the single writer.
type AccountStore interface {
	// Load returns the account for locationID. An empty locationID selects
	// the single provisioned account.
	Load(ctx context.Context, locationID string) (*models.Account, error)

	// SaveTokens replaces the access and refresh token of the account
	// identified by account.LocationID.
	SaveTokens(ctx context.Context, account *models.Account) error
}

type AccountRepository struct {
	db *storage.Postgres
}

func NewAccountRepository(db *storage.Postgres) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Load(ctx context.Context, locationID string) (*models.Account, error) {
	var account models.Account

	query := r.db.DB.WithContext(ctx)
	if locationID != "" {
		query = query.Where("location_id = ?", locationID)
	}

	err := query.Order("location_id").First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return &account, nil
}

// SaveTokens writes both tokens in one statement. Touching anything other than
// exactly one row rolls the transaction back.
func (r *AccountRepository) SaveTokens(ctx context.Context, account *models.Account) error {
	if account.LocationID == "" {
		return errors.New("account location id is required")
	}
	if account.AccessToken == "" || account.RefreshToken == "" {
		return errors.New("refusing to save an empty token")
	}

	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Account{}).
			Where("location_id = ?", account.LocationID).
			Updates(map[string]interface{}{
				"access_token":  account.AccessToken,
				"refresh_token": account.RefreshToken,
				"updated_at":    tx.NowFunc(),
			})

		if result.Error != nil {
			return fmt.Errorf("failed to save tokens: %w", result.Error)
		}

		switch result.RowsAffected {
		case 1:
			return nil
		case 0:
			return ErrAccountNotFound
		default:
			return fmt.Errorf("token update touched %d rows", result.RowsAffected)
		}
	})
}
