package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	riskapp "github.com/ecocomply/compliance-engine/internal/application/risk"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// unlockScript deletes the lock only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

type locker struct {
	client *Client
	logger logging.Logger
}

// NewLocker returns a Redis-backed distributed locker.  Each Acquire uses a
// random owner token so release is safe across process restarts.
func NewLocker(client *Client, log logging.Logger) riskapp.Locker {
	return &locker{client: client, logger: log}
}

func (l *locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	fullKey := l.client.Key("lock", key)
	token := uuid.New().String()

	ok, err := l.client.Underlying().SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire lock")
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		res, err := unlockScript.Run(ctx, l.client.Underlying(), []string{fullKey}, token).Result()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
		}
		if res.(int64) == 0 {
			l.logger.Warn("Lock expired before release", logging.String("key", key))
		}
		return nil
	}
	return release, true, nil
}
