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
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// checkViolation is the SQLSTATE for a failed CHECK constraint.
const checkViolation = "23514"

// PostgresStore runs units of work inside a single database transaction.
// Rows are locked with SELECT ... FOR UPDATE and held until commit.
type PostgresStore struct {
	db *sql.DB
}

var _ repository.Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	ctx, done := track(ctx, "RunInTx")
	defer func() { done(err) }()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "RunInTx", "error", err)
		err = fmt.Errorf("failed to begin transaction: %w", err)
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = dbTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, &pgTx{tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "method", "RunInTx", "error", rbErr)
			err = fmt.Errorf("%w: %v; original error: %w", pkgerrors.ErrRollback, rbErr, err)
		}
		return err
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "RunInTx", "error", err)
		err = fmt.Errorf("%w: %w", pkgerrors.ErrCommit, err)
		return err
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, id int64) (account *models.Account, err error) {
	ctx, done := track(ctx, "GetAccountForUpdate", attribute.Int64("account_id", id))
	defer func() { done(err) }()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	account, err = scanAccount(t.tx.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, id)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to lock account", "method", "GetAccountForUpdate", "account_id", id, "error", err)
		err = fmt.Errorf("failed to lock account: %w", err)
		return nil, err
	}
	return account, nil
}

func (t *pgTx) SaveAccount(ctx context.Context, account *models.Account) (err error) {
	if account == nil {
		return pkgerrors.ErrNilAccount
	}
	ctx, done := track(ctx, "SaveAccount", attribute.Int64("account_id", account.ID))
	defer func() { done(err) }()

	query := `UPDATE accounts SET credits = $1, stocks = $2, role = $3, auto_buy_enabled = $4, last_farming_at = $5 WHERE id = $6`
	res, err := t.tx.ExecContext(ctx, query,
		account.Credits,
		account.Stocks,
		string(account.Role),
		account.AutoBuyEnabled,
		account.LastFarmingAt,
		account.ID,
	)
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == checkViolation {
		err = fmt.Errorf("%w: account %d", pkgerrors.ErrInsufficientFunds, account.ID)
		return err
	}
	if err != nil {
		slog.Error("failed to save account", "method", "SaveAccount", "account_id", account.ID, "error", err)
		err = fmt.Errorf("failed to save account: %w", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("failed to read affected rows: %w", err)
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, account.ID)
		return err
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, record *models.Transaction) (err error) {
	if record == nil {
		return pkgerrors.ErrNilTransaction
	}
	ctx, done := track(ctx, "AppendTransaction", attribute.String("type", string(record.Type)))
	defer func() { done(err) }()

	if err = record.Validate(); err != nil {
		return err
	}

	senderID, sendAmount, sendCurrency := legColumns(record.Sender)
	receiverID, receiveAmount, receiveCurrency := legColumns(record.Receiver)

	query := `INSERT INTO transactions (sender_id, send_amount, send_currency, receiver_id, receive_amount, receive_currency, type) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	err = t.tx.QueryRowContext(ctx, query,
		senderID, sendAmount, sendCurrency,
		receiverID, receiveAmount, receiveCurrency,
		string(record.Type),
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		slog.Error("failed to append transaction", "method", "AppendTransaction", "type", record.Type, "error", err)
		err = fmt.Errorf("failed to append transaction: %w", err)
		return err
	}

	slog.Info("transaction appended", "method", "AppendTransaction", "id", record.ID, "type", record.Type)
	return nil
}
