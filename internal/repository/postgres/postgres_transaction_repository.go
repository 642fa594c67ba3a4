package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/honeynil/UsersLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const transactionColumns = `id, sender_id, send_amount, send_currency, receiver_id, receive_amount, receive_currency, type, created_at`

type PostgresTransactionRepository struct {
	db *sql.DB
}

var _ repository.TransactionRepository = (*PostgresTransactionRepository)(nil)

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx                         models.Transaction
		senderID, sendAmount       sql.NullInt64
		receiverID, receiveAmount  sql.NullInt64
		sendCurrency, recvCurrency sql.NullString
	)
	err := row.Scan(&tx.ID, &senderID, &sendAmount, &sendCurrency, &receiverID, &receiveAmount, &recvCurrency, &tx.Type, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.Sender = legFromColumns(senderID, sendAmount, sendCurrency)
	tx.Receiver = legFromColumns(receiverID, receiveAmount, recvCurrency)
	return &tx, nil
}

func legFromColumns(id, amount sql.NullInt64, currency sql.NullString) *models.Leg {
	if !id.Valid || !amount.Valid || !currency.Valid {
		return nil
	}
	return &models.Leg{AccountID: id.Int64, Amount: amount.Int64, Currency: models.Currency(currency.String)}
}

func legColumns(leg *models.Leg) (sql.NullInt64, sql.NullInt64, sql.NullString) {
	if leg == nil {
		return sql.NullInt64{}, sql.NullInt64{}, sql.NullString{}
	}
	return sql.NullInt64{Int64: leg.AccountID, Valid: true},
		sql.NullInt64{Int64: leg.Amount, Valid: true},
		sql.NullString{String: string(leg.Currency), Valid: true}
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id int64) (tx *models.Transaction, err error) {
	ctx, done := track(ctx, "GetTransactionByID", attribute.Int64("transaction_id", id))
	defer func() { done(err) }()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err = scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %d", pkgerrors.ErrTransactionNotFound, id)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get transaction by id", "method", "GetByID", "transaction_id", id, "error", err)
		err = fmt.Errorf("failed to get transaction by id: %w", err)
		return nil, err
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) History(ctx context.Context, accountID int64) (txs []models.Transaction, err error) {
	ctx, done := track(ctx, "TransactionHistory", attribute.Int64("account_id", accountID))
	defer func() { done(err) }()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE sender_id = $1 OR receiver_id = $1 ORDER BY id ASC`
	txs, err = r.queryTransactions(ctx, query, accountID)
	if err != nil {
		slog.Error("failed to get transaction history", "method", "History", "account_id", accountID, "error", err)
		err = fmt.Errorf("failed to get transaction history: %w", err)
		return nil, err
	}
	return txs, nil
}

func (r *PostgresTransactionRepository) All(ctx context.Context) (txs []models.Transaction, err error) {
	ctx, done := track(ctx, "AllTransactions")
	defer func() { done(err) }()

	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY id ASC`
	txs, err = r.queryTransactions(ctx, query)
	if err != nil {
		slog.Error("failed to list transactions", "method", "All", "error", err)
		err = fmt.Errorf("failed to list transactions: %w", err)
		return nil, err
	}
	return txs, nil
}

func (r *PostgresTransactionRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}
