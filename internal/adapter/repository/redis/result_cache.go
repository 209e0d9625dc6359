package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/ledgercore/internal/usecase"
)

const defaultResultPrefix = "ledger:transfer-result:"

// ResultCache implements usecase.ResultCache using Redis.
// Entries only short-circuit replays; the commands table stays authoritative.
type ResultCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewResultCache creates a new ResultCache. A non-positive ttl keeps entries forever.
func NewResultCache(client redis.Cmdable, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client: client,
		prefix: defaultResultPrefix,
		ttl:    ttl,
	}
}

// Get returns the cached result for commandID.
func (c *ResultCache) Get(ctx context.Context, commandID string) (usecase.TransferResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(commandID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.TransferResult{}, false, nil
	}
	if err != nil {
		return usecase.TransferResult{}, false, fmt.Errorf("get cached result: %w", err)
	}

	var result usecase.TransferResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return usecase.TransferResult{}, false, fmt.Errorf("decode cached result: %w", err)
	}

	if result.CommandID != commandID || result.TransferID == "" {
		return usecase.TransferResult{}, false, fmt.Errorf("cached result for %s is corrupt", commandID)
	}

	return result, true, nil
}

// Set stores result under its command id. Results never change once applied,
// so an existing entry is left alone.
func (c *ResultCache) Set(ctx context.Context, result usecase.TransferResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}

	if err := c.client.SetNX(ctx, c.key(result.CommandID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}

	return nil
}

func (c *ResultCache) key(commandID string) string {
	return c.prefix + commandID
}
