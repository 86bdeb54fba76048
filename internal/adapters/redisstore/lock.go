package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"merchpos/internal/domain"
)

const defaultLockTTL = 2 * time.Minute

type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// Locker implements domain.Locker with bsm/redislock. Locks are not retried: a held key fails fast.
type Locker struct {
	client obtainer
	ttl    time.Duration
	logger *slog.Logger
}

// NewLocker returns a Locker whose locks expire after ttl unless released first.
func NewLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Locker {
	return newLocker(redislock.New(client), ttl, logger)
}

func newLocker(client obtainer, ttl time.Duration, logger *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Locker{client: client, ttl: ttl, logger: logger}
}

var _ domain.Locker = (*Locker)(nil)

func (l *Locker) Obtain(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, namespaced("lock", key), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// The caller's context may already be cancelled when release runs.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("release lock", "key", key, "err", err)
		}
	}, nil
}
