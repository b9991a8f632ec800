package biz

import (
	"crypto/subtle"
	"fmt"
	"time"

	"credit-service/internal/conf"
	creditErrors "credit-service/internal/errors"

	"github.com/shopspring/decimal"
)

// Pricing converts model token usage into credits.
type Pricing struct {
	CreditCostUSD      decimal.Decimal
	InputTokenCostUSD  decimal.Decimal
	OutputTokenCostUSD decimal.Decimal
}

// Credits returns (in*inCost + out*outCost) / creditCost.
func (p Pricing) Credits(inputTokens, outputTokens int64) float64 {
	usd := p.InputTokenCostUSD.Mul(decimal.NewFromInt(inputTokens)).
		Add(p.OutputTokenCostUSD.Mul(decimal.NewFromInt(outputTokens)))
	return usd.Div(p.CreditCostUSD).InexactFloat64()
}

// BillingConfig is built once at start-up and shared by the use cases.
type BillingConfig struct {
	InternalKey    string
	Pricing        Pricing
	ResetBatchSize int
	LockExpiry     time.Duration
	// ResetLockExpiry covers a whole daily sweep, not a single ledger write.
	ResetLockExpiry time.Duration
	ReturnURL       string

	planProducts map[string]PlanTier
	packProducts map[string]PackSize
}

const (
	defaultCreditCostUSD      = "0.30"
	defaultInputTokenCostUSD  = "0.000003"
	defaultOutputTokenCostUSD = "0.000015"
	defaultResetBatchSize     = 500
	defaultLockExpiry         = 5 * time.Second
	defaultResetLockExpiry    = 15 * time.Minute
)

// NewBillingConfig reads the billing and provider sections of the bootstrap config.
func NewBillingConfig(c *conf.Bootstrap) (*BillingConfig, error) {
	config := &BillingConfig{
		ResetBatchSize:  defaultResetBatchSize,
		LockExpiry:      defaultLockExpiry,
		ResetLockExpiry: defaultResetLockExpiry,
		planProducts:    make(map[string]PlanTier),
		packProducts:    make(map[string]PackSize),
	}

	costs := [3]string{defaultCreditCostUSD, defaultInputTokenCostUSD, defaultOutputTokenCostUSD}
	if b := c.Billing; b != nil {
		config.InternalKey = b.InternalKey
		if b.CreditCostUSD != "" {
			costs[0] = b.CreditCostUSD
		}
		if b.InputTokenCostUSD != "" {
			costs[1] = b.InputTokenCostUSD
		}
		if b.OutputTokenCostUSD != "" {
			costs[2] = b.OutputTokenCostUSD
		}
		if b.ResetBatchSize > 0 {
			config.ResetBatchSize = b.ResetBatchSize
		}
		if d := b.LockExpiry.AsDuration(); d > 0 {
			config.LockExpiry = d
		}
		if d := b.ResetLockExpiry.AsDuration(); d > 0 {
			config.ResetLockExpiry = d
		}
		if p := b.Products; p != nil {
			config.addPlanProduct(p.Starter, PlanStarter)
			config.addPlanProduct(p.Pro, PlanPro)
			config.addPlanProduct(p.Scale, PlanScale)
			config.addPackProduct(p.CreditPackSmall, PackSmall)
			config.addPackProduct(p.CreditPackMedium, PackMedium)
			config.addPackProduct(p.CreditPackLarge, PackLarge)
		}
	}
	if c.Dodo != nil {
		config.ReturnURL = c.Dodo.ReturnURL
	}

	parsed := make([]decimal.Decimal, len(costs))
	for i, raw := range costs {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid billing cost %q: %w", raw, err)
		}
		parsed[i] = d
	}
	if !parsed[0].IsPositive() {
		return nil, fmt.Errorf("credit_cost_usd must be positive, got %s", parsed[0])
	}
	config.Pricing = Pricing{
		CreditCostUSD:      parsed[0],
		InputTokenCostUSD:  parsed[1],
		OutputTokenCostUSD: parsed[2],
	}
	return config, nil
}

func (c *BillingConfig) addPlanProduct(productID string, tier PlanTier) {
	if productID != "" {
		c.planProducts[productID] = tier
	}
}

func (c *BillingConfig) addPackProduct(productID string, size PackSize) {
	if productID != "" {
		c.packProducts[productID] = size
	}
}

// PlanForProduct maps a provider product id to a plan tier.
func (c *BillingConfig) PlanForProduct(productID string) (PlanTier, bool) {
	tier, ok := c.planProducts[productID]
	return tier, ok
}

// PackForProduct maps a provider product id to a credit pack size.
func (c *BillingConfig) PackForProduct(productID string) (PackSize, bool) {
	size, ok := c.packProducts[productID]
	return size, ok
}

// IsKnownProduct reports whether the product is a configured plan or pack.
func (c *BillingConfig) IsKnownProduct(productID string) bool {
	if _, ok := c.planProducts[productID]; ok {
		return true
	}
	_, ok := c.packProducts[productID]
	return ok
}

// VerifyInternalKey gates the internal RPC surface.
func (c *BillingConfig) VerifyInternalKey(key string) error {
	if c.InternalKey == "" {
		return creditErrors.ErrInternalKeyNotConfigured()
	}
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(c.InternalKey)) != 1 {
		return creditErrors.ErrInternalKeyInvalid()
	}
	return nil
}
