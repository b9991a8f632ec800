package service

import (
	"testing"
	"time"

	"credit-service/internal/biz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDodoEvent_SubscriptionActive(t *testing.T) {
	body := []byte(`{
		"business_id": "bus_1",
		"type": "subscription.active",
		"timestamp": "2025-06-01T12:00:00Z",
		"data": {
			"subscription_id": "sub_123",
			"product_id": "prod_pro",
			"status": "active",
			"customer": {"customer_id": "cus_9", "email": "a@example.com", "name": "A"},
			"metadata": {"clerkUserId": "user_abc"},
			"next_billing_date": "2025-07-01T12:00:00Z"
		}
	}`)

	eventType, event, err := decodeDodoEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "subscription.active", eventType)

	e, ok := event.(*biz.SubscriptionEvent)
	require.True(t, ok)
	assert.Equal(t, biz.EventSubscriptionActive, e.Type())
	assert.Equal(t, "sub_123", e.SubscriptionID)
	assert.Equal(t, "prod_pro", e.ProductID)
	assert.Equal(t, "cus_9", e.CustomerID)
	assert.Equal(t, "a@example.com", e.CustomerEmail)
	assert.Equal(t, "user_abc", e.AuthUserID)
	assert.Equal(t, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), e.NextBillingDate)
}

func TestDecodeDodoEvent_PaymentSucceeded(t *testing.T) {
	body := []byte(`{
		"type": "payment.succeeded",
		"data": {
			"payment_id": "pay_1",
			"subscription_id": null,
			"product_cart": [{"product_id": "prod_pack_150", "quantity": 1}],
			"customer": {"customer_id": "cus_9", "email": "a@example.com"},
			"metadata": {},
			"total_amount": 2500,
			"currency": "USD"
		}
	}`)

	_, event, err := decodeDodoEvent(body)
	require.NoError(t, err)

	e, ok := event.(*biz.PaymentEvent)
	require.True(t, ok)
	assert.Equal(t, "pay_1", e.PaymentID)
	assert.Equal(t, "prod_pack_150", e.ProductID)
	assert.Empty(t, e.SubscriptionID)
	assert.Empty(t, e.AuthUserID)
	assert.Equal(t, int64(2500), e.TotalAmount)
}

func TestDecodeDodoEvent_UnknownTypeIsIgnored(t *testing.T) {
	eventType, event, err := decodeDodoEvent([]byte(`{"type":"dispute.opened","data":{"dispute_id":"d_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "dispute.opened", eventType)
	assert.Nil(t, event)
}

func TestDecodeDodoEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"type":`},
		{"missing type", `{"data":{}}`},
		{"subscription without id", `{"type":"subscription.renewed","data":{"product_id":"p"}}`},
		{"payment without id", `{"type":"payment.succeeded","data":{"total_amount":1}}`},
		{"metadata wrong shape", `{"type":"payment.failed","data":{"payment_id":"p","metadata":[1,2]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, event, err := decodeDodoEvent([]byte(tt.body))
			assert.Error(t, err)
			assert.Nil(t, event)
		})
	}
}

func TestMetadataString(t *testing.T) {
	m := map[string]interface{}{"clerkUserId": " user_1 ", "n": 3}
	assert.Equal(t, "user_1", metadataString(m, "clerkUserId"))
	assert.Empty(t, metadataString(m, "n"))
	assert.Empty(t, metadataString(nil, "clerkUserId"))
}
