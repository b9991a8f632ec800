package biz

import (
	"context"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ResetUseCase is the daily catch-up sweep. The usage gate resets lazily; this
// covers subscriptions without traffic around midnight.
type ResetUseCase struct {
	subRepo SubscriptionRepo
	locker  Locker
	config  *BillingConfig
	log     *log.Helper
	metrics *metrics.CreditMetrics
	now     func() time.Time
}

func NewResetUseCase(subRepo SubscriptionRepo, locker Locker, config *BillingConfig, logger log.Logger) *ResetUseCase {
	return &ResetUseCase{
		subRepo: subRepo,
		locker:  locker,
		config:  config,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ResetDailyLimits zeroes the daily counters of every active subscription last
// reset on an earlier UTC day and returns how many rows changed.
func (uc *ResetUseCase) ResetDailyLimits(ctx context.Context) (int, error) {
	startTime := time.Now()
	unlock, err := uc.locker.LockFor(ctx, constants.RedisKeyResetLock, uc.config.ResetLockExpiry)
	if err != nil {
		uc.observe(constants.ResultFailed, 0, startTime)
		return 0, creditErrors.ErrLedgerLockFailed(err)
	}
	defer unlock()

	now := uc.now()
	batchSize := uc.config.ResetBatchSize
	count := 0
	afterID := ""
	for {
		batch, err := uc.subRepo.ListActive(ctx, afterID, batchSize)
		if err != nil {
			uc.log.Errorf("ResetDailyLimits list failed after id=%q: %v", afterID, err)
			uc.observe(constants.ResultFailed, count, startTime)
			return count, creditErrors.ErrLedgerStorage(err)
		}
		for _, sub := range batch {
			afterID = sub.ID
			if !sub.NeedsDailyReset(now) {
				continue
			}
			reset, err := uc.subRepo.ResetDailyUsage(ctx, sub.ID, now)
			if err != nil {
				uc.log.Errorf("ResetDailyLimits failed: subscription_id=%s, error=%v", sub.ID, err)
				uc.observe(constants.ResultFailed, count, startTime)
				return count, creditErrors.ErrLedgerStorage(err)
			}
			if reset {
				count++
			}
		}
		if len(batch) < batchSize {
			break
		}
	}

	uc.log.Infof("daily limits reset: count=%d, elapsed=%s", count, time.Since(startTime))
	uc.observe(constants.ResultSuccess, count, startTime)
	return count, nil
}

func (uc *ResetUseCase) observe(result string, count int, startTime time.Time) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.ResetRunTotal.WithLabelValues(result).Inc()
	uc.metrics.ResetSubscriptions.Add(float64(count))
	uc.metrics.ResetDuration.Observe(time.Since(startTime).Seconds())
}
