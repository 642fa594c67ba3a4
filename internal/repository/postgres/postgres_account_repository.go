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

const accountColumns = `id, credits, stocks, role, auto_buy_enabled, last_farming_at, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.Credits, &a.Stocks, &a.Role, &a.AutoBuyEnabled, &a.LastFarmingAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

type PostgresAccountRepository struct {
	db *sql.DB
}

var _ repository.AccountRepository = (*PostgresAccountRepository)(nil)

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) (err error) {
	ctx, done := track(ctx, "CreateAccount")
	defer func() { done(err) }()

	if account == nil {
		err = pkgerrors.ErrNilAccount
		return err
	}
	if !account.Role.Valid() {
		err = fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, account.Role)
		return err
	}

	query := `INSERT INTO accounts (credits, stocks, role, auto_buy_enabled, last_farming_at) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query,
		account.Credits,
		account.Stocks,
		string(account.Role),
		account.AutoBuyEnabled,
		account.LastFarmingAt,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		slog.Error("failed to create account", "method", "Create", "error", err)
		err = fmt.Errorf("failed to create account: %w", err)
		return err
	}

	slog.Info("account created", "method", "Create", "account_id", account.ID)
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int64) (account *models.Account, err error) {
	ctx, done := track(ctx, "GetAccountByID", attribute.Int64("account_id", id))
	defer func() { done(err) }()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err = scanAccount(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, id)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get account by id", "method", "GetByID", "account_id", id, "error", err)
		err = fmt.Errorf("failed to get account by id: %w", err)
		return nil, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) ToggleAutoBuy(ctx context.Context, id int64) (err error) {
	ctx, done := track(ctx, "ToggleAutoBuy", attribute.Int64("account_id", id))
	defer func() { done(err) }()

	query := `UPDATE accounts SET auto_buy_enabled = NOT auto_buy_enabled WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Error("failed to toggle auto buy", "method", "ToggleAutoBuy", "account_id", id, "error", err)
		err = fmt.Errorf("failed to toggle auto buy: %w", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("failed to read affected rows: %w", err)
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %d", pkgerrors.ErrAccountNotFound, id)
		return err
	}

	slog.Info("auto buy toggled", "method", "ToggleAutoBuy", "account_id", id)
	return nil
}

func (r *PostgresAccountRepository) Top(ctx context.Context, currency models.Currency, limit int) (accounts []models.Account, err error) {
	ctx, done := track(ctx, "TopAccounts", attribute.String("currency", string(currency)))
	defer func() { done(err) }()

	var order string
	switch currency {
	case models.CurrencyCredits:
		order = "credits"
	case models.CurrencyStocks:
		order = "stocks"
	default:
		err = fmt.Errorf("%w: %q", pkgerrors.ErrInvalidCurrency, currency)
		return nil, err
	}
	if limit <= 0 || limit > repository.TopLimit {
		limit = repository.TopLimit
	}

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY ` + order + ` DESC, id ASC LIMIT $1`
	accounts, err = r.queryAccounts(ctx, query, limit)
	if err != nil {
		slog.Error("failed to get top accounts", "method", "Top", "currency", currency, "error", err)
		err = fmt.Errorf("failed to get top accounts: %w", err)
		return nil, err
	}
	return accounts, nil
}

func (r *PostgresAccountRepository) All(ctx context.Context) (accounts []models.Account, err error) {
	ctx, done := track(ctx, "AllAccounts")
	defer func() { done(err) }()

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id ASC`
	accounts, err = r.queryAccounts(ctx, query)
	if err != nil {
		slog.Error("failed to list accounts", "method", "All", "error", err)
		err = fmt.Errorf("failed to list accounts: %w", err)
		return nil, err
	}
	return accounts, nil
}

func (r *PostgresAccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
