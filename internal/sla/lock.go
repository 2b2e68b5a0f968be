package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSweepLock is a best-effort advisory lock keeping replicas from
// sweeping simultaneously. It is an efficiency measure only: the durable
// open-escalation guard in the store holds even when the lock fails open.
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisSweepLock builds a lock with the given TTL. The TTL caps how long a
// crashed holder blocks other replicas; size it above the longest expected
// sweep.
func NewRedisSweepLock(client *redis.Client, ttl time.Duration) *RedisSweepLock {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &RedisSweepLock{
		client: client,
		key:    "caseflow:sla:sweep_lock",
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

func (l *RedisSweepLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	return ok, nil
}

// releaseScript deletes the key only when it still holds our token, so an
// expired lock reacquired by another replica is never released by the
// original holder.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

func (l *RedisSweepLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release sweep lock: %w", err)
	}
	return nil
}
