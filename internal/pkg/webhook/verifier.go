// Package webhook verifies Standard Webhooks signatures as sent by Dodo Payments.
package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	DefaultTolerance = 5 * time.Minute
)

var (
	ErrNotConfigured       = errors.New("webhook secret not configured")
	ErrMissingHeaders      = errors.New("missing webhook headers")
	ErrInvalidTimestamp    = errors.New("invalid webhook timestamp")
	ErrTimestampExpired    = errors.New("webhook timestamp outside tolerance")
	ErrNoMatchingSignature = errors.New("no matching webhook signature")
)

// Verifier checks webhook-signature headers. The signature itself is checked
// by the standardwebhooks library; the timestamp window is enforced here so
// it stays configurable.
type Verifier struct {
	wh        *standardwebhooks.Webhook
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier decodes a "whsec_" prefixed base64 secret. An empty secret
// yields a verifier that rejects everything with ErrNotConfigured.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	v := &Verifier{tolerance: tolerance, now: time.Now}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return v, nil
	}
	wh, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	v.wh = wh
	return v, nil
}

// Verify returns the delivery id when the headers carry a valid signature for body.
func (v *Verifier) Verify(header http.Header, body []byte) (string, error) {
	if v.wh == nil {
		return "", ErrNotConfigured
	}
	id := header.Get(HeaderID)
	ts := header.Get(HeaderTimestamp)
	if id == "" || ts == "" || header.Get(HeaderSignature) == "" {
		return "", ErrMissingHeaders
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrInvalidTimestamp
	}
	sent := time.Unix(sec, 0)
	now := v.now()
	if now.Sub(sent) > v.tolerance || sent.Sub(now) > v.tolerance {
		return "", ErrTimestampExpired
	}

	if err := v.wh.VerifyIgnoringTimestamp(body, header); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMatchingSignature, err)
	}
	return id, nil
}

// Sign returns the webhook-signature value for the given delivery.
func (v *Verifier) Sign(id string, timestamp time.Time, body []byte) (string, error) {
	if v.wh == nil {
		return "", ErrNotConfigured
	}
	return v.wh.Sign(id, timestamp, body)
}
