package service

import (
	"context"
	"io"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/pkg/webhook"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const maxWebhookBody = 1 << 20

type WebhookReply struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
	Ignored   bool `json:"ignored,omitempty"`
}

// WebhookService receives Dodo Payments deliveries.
type WebhookService struct {
	uc       *biz.WebhookUseCase
	verifier *webhook.Verifier
	log      *log.Helper
}

func NewWebhookService(c *conf.Bootstrap, uc *biz.WebhookUseCase, logger log.Logger) (*WebhookService, error) {
	var secret string
	var tolerance *conf.Duration
	if c.Dodo != nil {
		secret = c.Dodo.WebhookSecret
		tolerance = c.Dodo.WebhookTolerance
	}
	verifier, err := webhook.NewVerifier(secret, tolerance.AsDuration())
	if err != nil {
		return nil, err
	}
	helper := log.NewHelper(logger)
	if secret == "" {
		helper.Warn("dodo webhook secret not configured, every delivery will be rejected")
	}
	return &WebhookService{uc: uc, verifier: verifier, log: helper}, nil
}

// HandleDodo verifies the signature over the raw body before anything is parsed.
func (s *WebhookService) HandleDodo(ctx http.Context) error {
	req := ctx.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		return creditErrors.ErrWebhookPayloadInvalid(err)
	}

	deliveryID, err := s.verifier.Verify(req.Header, body)
	if err != nil {
		s.log.Warnf("dodo webhook rejected: %v", err)
		return creditErrors.ErrWebhookSignatureInvalid(err)
	}

	eventType, event, err := decodeDodoEvent(body)
	if err != nil {
		s.log.Warnf("dodo webhook payload invalid: id=%s, type=%s, error=%v", deliveryID, eventType, err)
		return creditErrors.ErrWebhookPayloadInvalid(err)
	}

	http.SetOperation(ctx, v1.OperationWebhookDodo)
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		duplicate, err := s.uc.Handle(c, &biz.WebhookDelivery{
			ID:        deliveryID,
			Provider:  constants.ProviderDodo,
			EventType: eventType,
			Payload:   body,
		}, event)
		if err != nil {
			return nil, err
		}
		return &WebhookReply{Received: true, Duplicate: duplicate, Ignored: event == nil}, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}
