package server

import (
	"context"
	"encoding/json"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/data"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer consumes superseded-subscription cancellations from RocketMQ.
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	uc      *biz.CancellationUseCase
	topic   string
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer returns a disabled server when RocketMQ is off; the
// scheduler then cancels in process.
func NewMQConsumerServer(c *conf.Bootstrap, uc *biz.CancellationUseCase, logger log.Logger) *MQConsumerServer {
	helper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{log: helper}
	}
	rc := c.Data.Rocketmq

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(rc.NameServers)),
		consumer.WithGroupName(rc.GroupName),
		consumer.WithRetry(int(rc.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(16),
	)
	if err != nil {
		helper.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{log: helper}
	}

	return &MQConsumerServer{
		c:       r,
		uc:      uc,
		topic:   data.CancellationTopic(c),
		log:     helper,
		enabled: true,
	}
}

// Start starts the consumer. Broker failures are logged, not fatal.
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.topic)
	if err := s.c.Subscribe(s.topic, consumer.MessageSelector{}, s.handler); err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
	}
	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	return consumeCancellations(ctx, s.uc, s.log, msgs...), nil
}

// consumeCancellations asks for a redelivery of the batch when any provider
// call fails. Undecodable messages are dropped.
func consumeCancellations(ctx context.Context, uc *biz.CancellationUseCase, logger *log.Helper, msgs ...*primitive.MessageExt) consumer.ConsumeResult {
	result := consumer.ConsumeSuccess
	for _, msg := range msgs {
		var job biz.CancellationJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			logger.Errorf("Unmarshal message failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		if err := uc.Cancel(ctx, &job); err != nil {
			result = consumer.ConsumeRetryLater
		}
	}
	return result
}
