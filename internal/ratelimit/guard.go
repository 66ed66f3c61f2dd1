// Package ratelimit protects the public endpoints with Redis token buckets
// and hands out short leases for singleton background work.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inspira-labs/inspira-billing/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyCallbackBucket = "billing:callback:%s"
	keyQuotaBucket    = "billing:quota:%s"
	keyLeaderLock     = "billing:reconcile:leader"

	leaderLockTTL = 45 * time.Second
)

// Guard rate-limits callback and quota traffic. A nil Guard is valid and
// allows everything, so deployments without Redis skip the whole concern.
type Guard struct {
	enabled bool

	bucket *TokenBucket
	leader *Lease

	callbackRate  float64
	callbackBurst int
	quotaRate     float64
	quotaBurst    int
}

func NewGuard(cfg config.Config) (*Guard, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.CallbackRate <= 0 || limitCfg.CallbackBurst <= 0 {
		return nil, errors.New("callback rate limit must be positive")
	}
	if limitCfg.QuotaRate <= 0 || limitCfg.QuotaBurst <= 0 {
		return nil, errors.New("quota rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	leader, err := NewLease(client, keyLeaderLock, leaderLockTTL)
	if err != nil {
		return nil, err
	}

	return &Guard{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		leader:        leader,
		callbackRate:  limitCfg.CallbackRate,
		callbackBurst: limitCfg.CallbackBurst,
		quotaRate:     limitCfg.QuotaRate,
		quotaBurst:    limitCfg.QuotaBurst,
	}, nil
}

func (g *Guard) Enabled() bool {
	return g != nil && g.enabled
}

// AllowCallback buckets callbacks per source address. Providers retry from a
// small set of hosts, so a runaway retry storm collapses to a few keys.
func (g *Guard) AllowCallback(ctx context.Context, source string) (*RateLimitResult, error) {
	if !g.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyCallbackBucket, strings.TrimSpace(source))
	return g.bucket.Allow(ctx, key, g.callbackRate, g.callbackBurst)
}

// AllowQuota buckets consume calls per user.
func (g *Guard) AllowQuota(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !g.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyQuotaBucket, strings.TrimSpace(userID))
	return g.bucket.Allow(ctx, key, g.quotaRate, g.quotaBurst)
}

// TryLeaderLock claims the reconciler lease so one replica sweeps at a time.
func (g *Guard) TryLeaderLock(ctx context.Context) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	return g.leader.Acquire(ctx)
}

func (g *Guard) ReleaseLeaderLock(ctx context.Context, token string) error {
	if !g.Enabled() {
		return nil
	}
	return g.leader.Release(ctx, token)
}
