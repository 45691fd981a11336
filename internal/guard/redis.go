package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "rate:"

// allowScript counts requests in a fixed window atomically. The key is
// created with the window's expiry on first increment.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = redis.call('INCR', key)
if count == 1 then
	redis.call('PEXPIRE', key, window_ms)
end

if count > limit then
	return 0
end

return 1
`)

// RedisGuard is a fixed-window rate limiter shared across API instances.
type RedisGuard struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisGuard(client *redis.Client, limit int, window time.Duration) *RedisGuard {
	return &RedisGuard{client: client, limit: limit, window: window}
}

func (g *RedisGuard) Allow(ctx context.Context, actorID, op string) error {
	key := rateKeyPrefix + op + ":" + actorID

	result, err := allowScript.Run(ctx, g.client, []string{key},
		g.limit, g.window.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("rate check: %w", err)
	}
	if result == 0 {
		return ErrRateLimited
	}
	return nil
}
