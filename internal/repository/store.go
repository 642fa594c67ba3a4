package repository

import (
	"context"

	"github.com/honeynil/UsersLedgerService/internal/models"
)

// AccountLookup loads an account for update inside a unit of work.
// A missing account yields pkg/errors.ErrAccountNotFound.
type AccountLookup interface {
	GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error)
}

// Tx is the capability handed to a unit of work. Everything done through it
// commits or rolls back together.
type Tx interface {
	AccountLookup
	SaveAccount(ctx context.Context, account *models.Account) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
}

// Store runs units of work. RunInTx commits when fn returns nil and rolls
// back on error, panic or context cancellation.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
