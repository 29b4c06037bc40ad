package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastKeys []string
	result   int64
	err      error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastKeys = keys
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisSignInRateLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisSignInRateLimiter
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisSignInRateLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    3,
			prefix: "signin:rl:",
		}
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisSignInRateLimiter{
			client: mock,
			window: 2 * time.Minute,
			max:    3,
			prefix: "signin:rl:",
		}
		if !l.Allow("User@Example.com") {
			t.Fatalf("expected allow")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "signin:rl:user@example.com" {
			t.Fatalf("unexpected keys: %v", mock.lastKeys)
		}
	})

	t.Run("deny over max", func(t *testing.T) {
		l := &redisSignInRateLimiter{
			client: &mockRedisEvaler{result: 4},
			window: time.Minute,
			max:    3,
			prefix: "signin:rl:",
		}
		if l.Allow("user@example.com") {
			t.Fatalf("expected deny over max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisSignInRateLimiter{
			client: &mockRedisEvaler{err: errors.New("redis down")},
			window: time.Minute,
			max:    3,
			prefix: "signin:rl:",
		}
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open on redis error")
		}
	})
}
