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

var transactionCols = []string{"id", "sender_id", "send_amount", "send_currency", "receiver_id", "receive_amount", "receive_currency", "type", "created_at"}

const selectTransactions = `SELECT id, sender_id, send_amount, send_currency, receiver_id, receive_amount, receive_currency, type, created_at FROM transactions`

func TestPostgresTransactionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresTransactionRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		createdAt := time.Now().UTC()
		expected := &models.Transaction{
			ID:        5,
			Sender:    &models.Leg{AccountID: 1, Amount: 30, Currency: models.CurrencyCredits},
			Receiver:  &models.Leg{AccountID: 2, Amount: 30, Currency: models.CurrencyCredits},
			Type:      models.TypeTransfer,
			CreatedAt: createdAt,
		}
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` WHERE id = $1`)).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow(int64(5), int64(1), int64(30), "credits", int64(2), int64(30), "credits", "transfer", createdAt))

		tx, err := repo.GetByID(ctx, 5)
		assert.NoError(t, err)
		assert.Equal(t, expected, tx)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ReceiverOnly", func(t *testing.T) {
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` WHERE id = $1`)).
			WithArgs(int64(6)).
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow(int64(6), nil, nil, nil, int64(2), int64(10), "credits", "farm", createdAt))

		tx, err := repo.GetByID(ctx, 6)
		assert.NoError(t, err)
		assert.Nil(t, tx.Sender)
		require.NotNil(t, tx.Receiver)
		assert.Equal(t, int64(10), tx.Receiver.Amount)
		assert.Equal(t, models.TypeFarm, tx.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("TransactionNotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnError(sql.ErrNoRows)

		tx, err := repo.GetByID(ctx, 1)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnError(fmt.Errorf("database error"))

		tx, err := repo.GetByID(ctx, 1)
		assert.Nil(t, tx)
		assert.Contains(t, err.Error(), "failed to get transaction by id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresTransactionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` WHERE sender_id = $1 OR receiver_id = $1 ORDER BY id ASC`)).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow(int64(1), int64(1), int64(30), "credits", int64(2), int64(30), "credits", "transfer", now).
				AddRow(int64(2), int64(2), int64(5), "stocks", nil, nil, nil, "purchase", now))

		txs, err := repo.History(ctx, 2)
		assert.NoError(t, err)
		require.Len(t, txs, 2)
		for _, tx := range txs {
			assert.True(t, tx.Touches(2))
		}
		assert.Nil(t, txs[1].Receiver)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` WHERE sender_id = $1`)).
			WithArgs(int64(2)).
			WillReturnError(fmt.Errorf("database error"))

		txs, err := repo.History(ctx, 2)
		assert.Nil(t, txs)
		assert.Contains(t, err.Error(), "failed to get transaction history")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_All(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresTransactionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectTransactions + ` ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows(transactionCols))

	txs, err := repo.All(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
