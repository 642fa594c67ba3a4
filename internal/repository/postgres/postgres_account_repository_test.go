package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/honeynil/UsersLedgerService/internal/repository/postgres"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{"id", "credits", "stocks", "role", "auto_buy_enabled", "last_farming_at", "created_at"}

const selectAccounts = `SELECT id, credits, stocks, role, auto_buy_enabled, last_farming_at, created_at FROM accounts`

func TestPostgresAccountRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("NilAccount", func(t *testing.T) {
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilAccount)
	})

	t.Run("InvalidRole", func(t *testing.T) {
		account := models.NewAccount()
		account.Role = "admin"
		err := repo.Create(ctx, account)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidRole)
	})

	t.Run("Success", func(t *testing.T) {
		account := models.NewAccount()
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts (credits, stocks, role, auto_buy_enabled, last_farming_at) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`)).
			WithArgs(int64(100), int64(0), "normal", true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), createdAt))

		err := repo.Create(ctx, account)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), account.ID)
		assert.WithinDuration(t, createdAt, account.CreatedAt, time.Second)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.Create(ctx, models.NewAccount())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create account")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresAccountRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		createdAt := time.Now().UTC()
		expected := &models.Account{
			ID:             1,
			Credits:        250,
			Stocks:         3,
			Role:           models.RoleModerator,
			AutoBuyEnabled: false,
			LastFarmingAt:  time.Time{},
			CreatedAt:      createdAt,
		}
		mock.ExpectQuery(regexp.QuoteMeta(selectAccounts + ` WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(int64(1), int64(250), int64(3), "moderator", false, time.Time{}, createdAt))

		account, err := repo.GetByID(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, expected, account)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectAccounts + ` WHERE id = $1`)).
			WithArgs(int64(42)).
			WillReturnError(sql.ErrNoRows)

		account, err := repo.GetByID(ctx, 42)
		assert.Nil(t, account)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectAccounts + ` WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnError(fmt.Errorf("database error"))

		account, err := repo.GetByID(ctx, 1)
		assert.Nil(t, account)
		assert.Contains(t, err.Error(), "failed to get account by id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_ToggleAutoBuy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresAccountRepository(db)
	ctx := context.Background()
	query := regexp.QuoteMeta(`UPDATE accounts SET auto_buy_enabled = NOT auto_buy_enabled WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ToggleAutoBuy(ctx, 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.ToggleAutoBuy(ctx, 9)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountRepository_Top(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresAccountRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("ByStocks", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectAccounts + ` ORDER BY stocks DESC, id ASC LIMIT $1`)).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(int64(3), int64(0), int64(50), "normal", true, now, now).
				AddRow(int64(1), int64(100), int64(20), "normal", true, now, now))

		accounts, err := repo.Top(ctx, models.CurrencyStocks, 10)
		assert.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, int64(3), accounts[0].ID)
		assert.Equal(t, int64(1), accounts[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LimitIsCapped", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectAccounts + ` ORDER BY credits DESC, id ASC LIMIT $1`)).
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows(accountCols))

		accounts, err := repo.Top(ctx, models.CurrencyCredits, 500)
		assert.NoError(t, err)
		assert.Empty(t, accounts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidCurrency", func(t *testing.T) {
		accounts, err := repo.Top(ctx, "gold", 10)
		assert.Nil(t, accounts)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCurrency)
	})
}

func TestPostgresAccountRepository_All(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresAccountRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(selectAccounts + ` ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(int64(1), int64(100), int64(0), "normal", true, now, now).
			AddRow(int64(2), int64(0), int64(0), "blocked", true, now, now))

	accounts, err := repo.All(ctx)
	assert.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, models.RoleBlocked, accounts[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
