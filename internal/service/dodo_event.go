package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type dodoEnvelope struct {
	BusinessID string          `json:"business_id"`
	Type       string          `json:"type" validate:"required"`
	Timestamp  string          `json:"timestamp"`
	Data       json.RawMessage `json:"data" validate:"required"`
}

type dodoCustomer struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

type dodoSubscriptionData struct {
	SubscriptionID  string                 `json:"subscription_id" validate:"required"`
	ProductID       string                 `json:"product_id" validate:"required"`
	Status          string                 `json:"status"`
	Customer        dodoCustomer           `json:"customer"`
	Metadata        map[string]interface{} `json:"metadata"`
	NextBillingDate *time.Time             `json:"next_billing_date"`
}

type dodoCartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type dodoPaymentData struct {
	PaymentID      string                 `json:"payment_id" validate:"required"`
	SubscriptionID *string                `json:"subscription_id"`
	ProductCart    []dodoCartItem         `json:"product_cart"`
	Customer       dodoCustomer           `json:"customer"`
	Metadata       map[string]interface{} `json:"metadata"`
	TotalAmount    int64                  `json:"total_amount"`
	Currency       string                 `json:"currency"`
}

// decodeDodoEvent parses a verified Dodo payload. Unknown event types return a
// nil event and no error.
func decodeDodoEvent(body []byte) (string, biz.Event, error) {
	var env dodoEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := validateStruct(&env); err != nil {
		return env.Type, nil, err
	}

	eventType := biz.EventType(env.Type)
	switch eventType {
	case biz.EventSubscriptionActive, biz.EventSubscriptionRenewed, biz.EventSubscriptionCancelled,
		biz.EventSubscriptionFailed, biz.EventSubscriptionOnHold:
		var d dodoSubscriptionData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return env.Type, nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if err := validateStruct(&d); err != nil {
			return env.Type, nil, err
		}
		e := &biz.SubscriptionEvent{
			EventType:      eventType,
			SubscriptionID: d.SubscriptionID,
			ProductID:      d.ProductID,
			Status:         d.Status,
			CustomerID:     d.Customer.CustomerID,
			CustomerEmail:  d.Customer.Email,
			AuthUserID:     metadataString(d.Metadata, constants.MetadataAuthUserID),
		}
		if d.NextBillingDate != nil {
			e.NextBillingDate = d.NextBillingDate.UTC()
		}
		return env.Type, e, nil

	case biz.EventPaymentSucceeded, biz.EventPaymentFailed:
		var d dodoPaymentData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return env.Type, nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if err := validateStruct(&d); err != nil {
			return env.Type, nil, err
		}
		e := &biz.PaymentEvent{
			EventType:     eventType,
			PaymentID:     d.PaymentID,
			CustomerID:    d.Customer.CustomerID,
			CustomerEmail: d.Customer.Email,
			AuthUserID:    metadataString(d.Metadata, constants.MetadataAuthUserID),
			TotalAmount:   d.TotalAmount,
			Currency:      d.Currency,
		}
		if d.SubscriptionID != nil {
			e.SubscriptionID = *d.SubscriptionID
		}
		if len(d.ProductCart) > 0 {
			e.ProductID = d.ProductCart[0].ProductID
		}
		return env.Type, e, nil
	}
	return env.Type, nil, nil
}

func metadataString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			msgs = append(msgs, field+" is required")
		} else {
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, ", "))
}
