package repository

import (
	"context"

	"github.com/honeynil/UsersLedgerService/internal/models"
)

// TransactionRepository is the read side of the ledger. Records are only
// written through Tx.AppendTransaction.
type TransactionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	History(ctx context.Context, accountID int64) ([]models.Transaction, error)
	All(ctx context.Context) ([]models.Transaction, error)
}
