package data

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

const defaultDodoTimeout = 10 * time.Second

type dodoClient struct {
	client *khttp.Client
	log    *log.Helper
}

type dodoCartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type dodoCheckoutRequest struct {
	ProductCart     []dodoCartItem    `json:"product_cart"`
	Customer        map[string]string `json:"customer,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ReturnURL       string            `json:"return_url,omitempty"`
	BillingCurrency string            `json:"billing_currency"`
	FeatureFlags    map[string]bool   `json:"feature_flags"`
}

type dodoCheckoutReply struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type dodoPortalReply struct {
	Link string `json:"link"`
}

// NewDodoClient builds the Dodo Payments REST client. Without an API key the
// returned provider fails every call with ErrProviderNotConfigured.
func NewDodoClient(c *conf.Bootstrap, logger log.Logger) (biz.PaymentProvider, func(), error) {
	helper := log.NewHelper(logger)
	if c.Dodo == nil || c.Dodo.APIKey == "" {
		helper.Warn("dodo api key not configured, provider calls are disabled")
		return &dodoClient{log: helper}, func() {}, nil
	}

	base := constants.DodoBaseURLTest
	if c.Dodo.Environment == constants.DodoEnvironmentLive {
		base = constants.DodoBaseURLLive
	}
	timeout := c.Dodo.Timeout.AsDuration()
	if timeout <= 0 {
		timeout = defaultDodoTimeout
	}

	client, err := khttp.NewClient(
		context.Background(),
		khttp.WithEndpoint(base),
		khttp.WithTimeout(timeout),
		khttp.WithMiddleware(
			recovery.Recovery(),
			bearerAuth(c.Dodo.APIKey),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init dodo client: %w", err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Errorf("failed to close dodo client: %v", err)
		}
	}
	return &dodoClient{client: client, log: helper}, cleanup, nil
}

func bearerAuth(apiKey string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromClientContext(ctx); ok {
				tr.RequestHeader().Set("Authorization", "Bearer "+apiKey)
			}
			return handler(ctx, req)
		}
	}
}

func (c *dodoClient) CreateCheckout(ctx context.Context, req *biz.CheckoutRequest) (*biz.CheckoutSession, error) {
	if c.client == nil {
		return nil, creditErrors.ErrProviderNotConfigured()
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	body := &dodoCheckoutRequest{
		ProductCart:     []dodoCartItem{{ProductID: req.ProductID, Quantity: quantity}},
		Metadata:        req.Metadata,
		ReturnURL:       req.ReturnURL,
		BillingCurrency: "USD",
		FeatureFlags:    map[string]bool{"allow_discount_code": true},
	}
	switch {
	case req.CustomerID != "":
		body.Customer = map[string]string{"customer_id": req.CustomerID}
	case req.Email != "":
		body.Customer = map[string]string{"email": req.Email}
	}

	var reply dodoCheckoutReply
	if err := c.client.Invoke(ctx, "POST", "/checkouts", body, &reply); err != nil {
		c.log.Errorf("dodo create checkout failed: product_id=%s, error=%v", req.ProductID, err)
		return nil, creditErrors.ErrProviderRequestFailed(err)
	}
	return &biz.CheckoutSession{SessionID: reply.SessionID, CheckoutURL: reply.CheckoutURL}, nil
}

func (c *dodoClient) CreatePortalSession(ctx context.Context, providerCustomerID string) (string, error) {
	if c.client == nil {
		return "", creditErrors.ErrProviderNotConfigured()
	}

	var reply dodoPortalReply
	path := fmt.Sprintf("/customers/%s/customer-portal/session", url.PathEscape(providerCustomerID))
	if err := c.client.Invoke(ctx, "POST", path, map[string]string{}, &reply); err != nil {
		c.log.Errorf("dodo create portal session failed: customer_id=%s, error=%v", providerCustomerID, err)
		return "", creditErrors.ErrProviderRequestFailed(err)
	}
	return reply.Link, nil
}

func (c *dodoClient) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	if c.client == nil {
		return creditErrors.ErrProviderNotConfigured()
	}

	var reply map[string]interface{}
	path := "/subscriptions/" + url.PathEscape(providerSubscriptionID)
	if err := c.client.Invoke(ctx, "PATCH", path, map[string]string{"status": "cancelled"}, &reply); err != nil {
		c.log.Errorf("dodo cancel subscription failed: subscription_id=%s, error=%v", providerSubscriptionID, err)
		return creditErrors.ErrProviderRequestFailed(err)
	}
	return nil
}
