package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Only the holder of the fencing token may delete the key, so a slow
// worker cannot release a lease that already rolled to another replica.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Lease is a single Redis key claimed for a fixed window. The reconciler
// uses one to keep concurrent replicas from sweeping the same orders.
type Lease struct {
	client *redis.Client
	script *redis.Script
	key    string
	ttl    time.Duration
}

func NewLease(client *redis.Client, key string, ttl time.Duration) (*Lease, error) {
	if client == nil {
		return nil, errors.New("lease client not configured")
	}
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}
	return &Lease{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
		key:    key,
		ttl:    ttl,
	}, nil
}

// Acquire claims the lease if it is free. The returned token fences the
// matching Release call; ok is false when another holder has the key.
func (l *Lease) Acquire(ctx context.Context) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lease client not configured")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release hands the lease back early. A token that no longer matches the
// key is ignored, since the lease already expired and moved on.
func (l *Lease) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.key}, token).Err()
}
