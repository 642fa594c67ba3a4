package repository

import (
	"context"

	"github.com/honeynil/UsersLedgerService/internal/models"
)

// TopLimit is the maximum size of a leaderboard.
const TopLimit = 10

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	ToggleAutoBuy(ctx context.Context, id int64) error
	Top(ctx context.Context, currency models.Currency, limit int) ([]models.Account, error)
	All(ctx context.Context) ([]models.Account, error)
}
