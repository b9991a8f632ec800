package data

import (
	"context"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

type redisLocker struct {
	rs      *redsync.Redsync
	expiry  time.Duration
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewLocker returns a redsync backed biz.Locker.
func NewLocker(rs *redsync.Redsync, config *biz.BillingConfig, logger log.Logger) biz.Locker {
	return &redisLocker{
		rs:      rs,
		expiry:  config.LockExpiry,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	return l.LockFor(ctx, key, l.expiry)
}

func (l *redisLocker) LockFor(ctx context.Context, key string, expiry time.Duration) (func(), error) {
	lockStartTime := time.Now()
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(expiry))
	if err := mutex.LockContext(ctx); err != nil {
		l.log.Errorf("Failed to acquire lock: key=%s, error=%v", key, err)
		l.observe(constants.ResultFailed, lockStartTime)
		return nil, err
	}
	l.observe(constants.ResultSuccess, lockStartTime)

	return func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			l.log.Warnf("Failed to unlock: key=%s, error=%v", key, err)
		}
	}, nil
}

func (l *redisLocker) observe(result string, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
	l.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
}
