package biz

import (
	"context"

	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// CancellationUseCase cancels provider subscriptions superseded by a plan switch.
type CancellationUseCase struct {
	provider PaymentProvider
	log      *log.Helper
	metrics  *metrics.CreditMetrics
}

func NewCancellationUseCase(provider PaymentProvider, logger log.Logger) *CancellationUseCase {
	return &CancellationUseCase{
		provider: provider,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

// Cancel asks the provider to cancel and records the outcome. An empty id is a no-op.
func (uc *CancellationUseCase) Cancel(ctx context.Context, job *CancellationJob) error {
	if job == nil || job.ProviderSubscriptionID == "" {
		return nil
	}
	if err := uc.provider.CancelSubscription(ctx, job.ProviderSubscriptionID); err != nil {
		uc.log.Errorf("cancel superseded subscription failed: subscription_id=%s, error=%v", job.ProviderSubscriptionID, err)
		uc.count(constants.ResultFailed)
		return err
	}
	uc.log.Infof("superseded subscription cancelled: subscription_id=%s", job.ProviderSubscriptionID)
	uc.count(constants.ResultSuccess)
	return nil
}

func (uc *CancellationUseCase) count(result string) {
	if uc.metrics != nil {
		uc.metrics.CancellationTotal.WithLabelValues(result).Inc()
	}
}
