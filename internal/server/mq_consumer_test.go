package server

import (
	"context"
	"errors"
	"io"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	failFor   string
	cancelled []string
}

func (p *stubProvider) CreateCheckout(context.Context, *biz.CheckoutRequest) (*biz.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) CreatePortalSession(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (p *stubProvider) CancelSubscription(_ context.Context, id string) error {
	if id == p.failFor {
		return errors.New("provider unavailable")
	}
	p.cancelled = append(p.cancelled, id)
	return nil
}

func message(body string) *primitive.MessageExt {
	return &primitive.MessageExt{Message: primitive.Message{Body: []byte(body)}}
}

func TestConsumeCancellations(t *testing.T) {
	logger := log.NewStdLogger(io.Discard)
	helper := log.NewHelper(logger)

	t.Run("cancels every job in the batch", func(t *testing.T) {
		provider := &stubProvider{}
		uc := biz.NewCancellationUseCase(provider, logger)

		result := consumeCancellations(context.Background(), uc, helper,
			message(`{"provider_subscription_id":"sub_1"}`),
			message(`not json`),
			message(`{"provider_subscription_id":""}`),
			message(`{"provider_subscription_id":"sub_2","requested_at":"2025-06-01T12:00:00Z"}`),
		)
		assert.Equal(t, consumer.ConsumeSuccess, result)
		assert.Equal(t, []string{"sub_1", "sub_2"}, provider.cancelled)
	})

	t.Run("provider failure asks for redelivery", func(t *testing.T) {
		provider := &stubProvider{failFor: "sub_1"}
		uc := biz.NewCancellationUseCase(provider, logger)

		result := consumeCancellations(context.Background(), uc, helper,
			message(`{"provider_subscription_id":"sub_1"}`),
			message(`{"provider_subscription_id":"sub_2"}`),
		)
		assert.Equal(t, consumer.ConsumeRetryLater, result)
		assert.Equal(t, []string{"sub_2"}, provider.cancelled)
	})
}

func TestNewMQConsumerServer_Disabled(t *testing.T) {
	logger := log.NewStdLogger(io.Discard)
	s := NewMQConsumerServer(&conf.Bootstrap{}, nil, logger)

	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
