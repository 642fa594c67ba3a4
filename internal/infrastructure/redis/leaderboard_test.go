package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) (*redis.LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return redis.NewLeaderboardCache(client, ttl), mr
}

func TestLeaderboardCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		cache, _ := newCache(t, time.Minute)
		_, generation, err := cache.GetTop(ctx, models.CurrencyCredits)
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
		assert.Equal(t, int64(0), generation)
	})

	t.Run("set then get", func(t *testing.T) {
		cache, mr := newCache(t, time.Minute)
		top := []models.Account{
			{ID: 2, Credits: 300, Role: models.RoleNormal},
			{ID: 1, Credits: 100, Role: models.RoleCreator},
		}
		require.NoError(t, cache.SetTop(ctx, models.CurrencyCredits, 0, top))
		assert.True(t, mr.Exists("ledger:top:0:credits"))

		got, generation, err := cache.GetTop(ctx, models.CurrencyCredits)
		require.NoError(t, err)
		assert.Equal(t, top, got)
		assert.Equal(t, int64(0), generation)

		_, _, err = cache.GetTop(ctx, models.CurrencyStocks)
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		cache, mr := newCache(t, 30*time.Second)
		require.NoError(t, cache.SetTop(ctx, models.CurrencyStocks, 0, []models.Account{{ID: 1}}))

		mr.FastForward(31 * time.Second)
		_, _, err := cache.GetTop(ctx, models.CurrencyStocks)
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("invalidate retires every currency", func(t *testing.T) {
		cache, mr := newCache(t, time.Minute)
		require.NoError(t, cache.SetTop(ctx, models.CurrencyCredits, 0, []models.Account{{ID: 1}}))
		require.NoError(t, cache.SetTop(ctx, models.CurrencyStocks, 0, []models.Account{{ID: 1}}))

		require.NoError(t, cache.InvalidateTop(ctx))
		generation, err := mr.Get("ledger:top:generation")
		require.NoError(t, err)
		assert.Equal(t, "1", generation)

		_, _, err = cache.GetTop(ctx, models.CurrencyCredits)
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
		_, _, err = cache.GetTop(ctx, models.CurrencyStocks)
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("entry computed before an invalidation is never served", func(t *testing.T) {
		cache, _ := newCache(t, time.Minute)
		_, generation, err := cache.GetTop(ctx, models.CurrencyCredits)
		require.ErrorIs(t, err, redis.ErrKeyNotFound)

		// a commit lands between the store read and the cache write
		require.NoError(t, cache.InvalidateTop(ctx))
		require.NoError(t, cache.SetTop(ctx, models.CurrencyCredits, generation, []models.Account{{ID: 1, Credits: 1}}))

		_, current, err := cache.GetTop(ctx, models.CurrencyCredits)
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
		assert.Equal(t, generation+1, current)
	})

	t.Run("corrupt entry", func(t *testing.T) {
		cache, mr := newCache(t, time.Minute)
		require.NoError(t, mr.Set("ledger:top:0:credits", "not json"))
		_, _, err := cache.GetTop(ctx, models.CurrencyCredits)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := redis.NewClient(ctx, "127.0.0.1:1")
		assert.Error(t, err)
	})
}
