package models

import (
	"math"
	"testing"

	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Adjust(t *testing.T) {
	t.Run("credit and debit", func(t *testing.T) {
		a := NewAccount()
		require.NoError(t, a.Adjust(CurrencyCredits, -40))
		require.NoError(t, a.Adjust(CurrencyStocks, 5))
		assert.Equal(t, int64(60), a.Credits)
		assert.Equal(t, int64(5), a.Stocks)
	})

	t.Run("overflow leaves balance unchanged", func(t *testing.T) {
		a := NewAccount()
		err := a.Adjust(CurrencyCredits, math.MaxInt64)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
		assert.Equal(t, DefaultCredits, a.Credits)

		a.Stocks = math.MaxInt64 - 1
		assert.NoError(t, a.Adjust(CurrencyStocks, 1))
		assert.ErrorIs(t, a.Adjust(CurrencyStocks, 1), pkgerrors.ErrInvalidAmount)
		assert.Equal(t, int64(math.MaxInt64), a.Stocks)
	})

	t.Run("unknown currency", func(t *testing.T) {
		a := NewAccount()
		assert.ErrorIs(t, a.Adjust(Currency("gold"), 1), pkgerrors.ErrInvalidCurrency)
	})
}
