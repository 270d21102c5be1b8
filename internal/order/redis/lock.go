package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-backoffice/internal/logger"
)

// SubmitLock serializes proof submissions per order. The database's
// conditional link claim is the authoritative guard; this lock keeps the
// losing request from doing file and transaction work it will throw away.
type SubmitLock struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewSubmitLock(client *redis.Client, log *logger.Logger) *SubmitLock {
	return &SubmitLock{Client: client, Logger: log}
}

// getLockTTL returns the submit lock TTL from the environment or the
// default 30 seconds.
func (l *SubmitLock) getLockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("SUBMIT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		l.Logger.Warn("REDIS", fmt.Sprintf("Invalid SUBMIT_LOCK_TTL_SECONDS value '%s', using default 30 seconds", ttlStr))
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

func lockKey(orderID string) string {
	return "payment_submit_lock:" + orderID
}

// Lock takes the per-order submit lock. Returns false when another
// submission holds it.
func (l *SubmitLock) Lock(ctx context.Context, orderID string) (bool, error) {
	return l.Client.SetNX(ctx, lockKey(orderID), "locked", l.getLockTTL()).Result()
}

// Unlock releases the lock; a missing key means the TTL already fired and
// is not an error.
func (l *SubmitLock) Unlock(ctx context.Context, orderID string) error {
	err := l.Client.Del(ctx, lockKey(orderID)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
