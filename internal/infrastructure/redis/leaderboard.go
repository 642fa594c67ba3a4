package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/models"
)

const DefaultTopTTL = 30 * time.Second

const topGenerationKey = "ledger:top:generation"

// LeaderboardCache keeps GetTopAccounts results per currency. Entries live
// under the current generation; InvalidateTop advances it, so entries written
// for an older generation are never read again and simply expire.
type LeaderboardCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewLeaderboardCache(client RedisClient, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = DefaultTopTTL
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func topKey(generation int64, currency models.Currency) string {
	return fmt.Sprintf("ledger:top:%d:%s", generation, currency)
}

func (c *LeaderboardCache) generation(ctx context.Context) (int64, error) {
	var generation int64
	err := c.client.GetJSON(ctx, topGenerationKey, &generation)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read leaderboard generation: %w", err)
	}
	return generation, nil
}

// GetTop returns the cached leaderboard and the generation it was found in.
// On a miss the error is ErrKeyNotFound and generation is still the one a
// following SetTop must be given.
func (c *LeaderboardCache) GetTop(ctx context.Context, currency models.Currency) ([]models.Account, int64, error) {
	generation, err := c.generation(ctx)
	if err != nil {
		return nil, 0, err
	}
	var accounts []models.Account
	if err := c.client.GetJSON(ctx, topKey(generation, currency), &accounts); err != nil {
		return nil, generation, err
	}
	return accounts, generation, nil
}

func (c *LeaderboardCache) SetTop(ctx context.Context, currency models.Currency, generation int64, accounts []models.Account) error {
	return c.client.SetJSON(ctx, topKey(generation, currency), accounts, c.ttl)
}

// InvalidateTop retires the leaderboards of every currency.
func (c *LeaderboardCache) InvalidateTop(ctx context.Context) error {
	if _, err := c.client.Incr(ctx, topGenerationKey); err != nil {
		return fmt.Errorf("failed to advance leaderboard generation: %w", err)
	}
	return nil
}
