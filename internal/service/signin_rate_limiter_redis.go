package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSignInAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisSignInRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisSignInRateLimiter crea un rate limiter respaldado por Redis, para
// que el límite valga entre instancias.
func NewRedisSignInRateLimiter(client *redis.Client, window time.Duration, max int) SignInRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisSignInRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "signin:rl:",
	}
}

func (l *redisSignInRateLimiter) Allow(key string) bool {
	// Fail-open: si Redis no está disponible no bloqueamos el login.
	if l == nil || l.client == nil {
		return true
	}
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int64(l.window / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	count, err := l.client.Eval(ctx, redisSignInAllowScript, []string{l.prefix + key}, seconds).Int64()
	if err != nil {
		return true
	}
	return count <= int64(l.max)
}
