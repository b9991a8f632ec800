package data

import (
	"context"
	"encoding/json"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultCancellationTopic = "credit_cancellation_queue"
	inProcessCancelTimeout   = 30 * time.Second
)

type cancellationScheduler struct {
	data   *Data
	cancel *biz.CancellationUseCase
	topic  string
	log    *log.Helper
}

// NewCancellationScheduler queues cancellations on RocketMQ when the producer
// is up and cancels in a background goroutine otherwise.
func NewCancellationScheduler(data *Data, cancel *biz.CancellationUseCase, c *conf.Bootstrap, logger log.Logger) biz.CancellationScheduler {
	return &cancellationScheduler{
		data:   data,
		cancel: cancel,
		topic:  CancellationTopic(c),
		log:    log.NewHelper(logger),
	}
}

// CancellationTopic returns the configured topic or the default one.
func CancellationTopic(c *conf.Bootstrap) string {
	if c != nil && c.Data != nil && c.Data.Rocketmq != nil && c.Data.Rocketmq.Topic != "" {
		return c.Data.Rocketmq.Topic
	}
	return defaultCancellationTopic
}

func (s *cancellationScheduler) ScheduleCancellation(ctx context.Context, providerSubscriptionID string) error {
	job := &biz.CancellationJob{
		ProviderSubscriptionID: providerSubscriptionID,
		RequestedAt:            time.Now().UTC(),
	}

	if s.data.mq != nil {
		err := s.enqueue(ctx, job)
		if err == nil {
			s.log.Infof("cancellation queued: subscription_id=%s", providerSubscriptionID)
			return nil
		}
		s.log.Errorf("send cancellation to rocketmq failed, cancelling in process: subscription_id=%s, error=%v", providerSubscriptionID, err)
	}

	go func() {
		cctx, cancel := context.WithTimeout(context.Background(), inProcessCancelTimeout)
		defer cancel()
		_ = s.cancel.Cancel(cctx, job)
	}()
	return nil
}

func (s *cancellationScheduler) enqueue(ctx context.Context, job *biz.CancellationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(s.topic, body)
	msg.WithKeys([]string{job.ProviderSubscriptionID})
	_, err = s.data.mq.SendSync(ctx, msg)
	return err
}
