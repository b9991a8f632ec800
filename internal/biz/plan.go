package biz

import (
	"strings"
)

// PlanTier is the closed set of subscription tiers.
type PlanTier string

const (
	PlanStarter PlanTier = "starter"
	PlanPro     PlanTier = "pro"
	PlanScale   PlanTier = "scale"
)

// Plan is one row of the plan catalog.
type Plan struct {
	Tier            PlanTier
	CreditsMonthly  int
	DailyCap        int
	DailyTokenLimit int64
	PriceUSD        int
}

var planCatalog = map[PlanTier]Plan{
	PlanStarter: {Tier: PlanStarter, CreditsMonthly: 50, DailyCap: 3, DailyTokenLimit: 40000, PriceUSD: 19},
	PlanPro:     {Tier: PlanPro, CreditsMonthly: 150, DailyCap: 8, DailyTokenLimit: 120000, PriceUSD: 49},
	PlanScale:   {Tier: PlanScale, CreditsMonthly: 400, DailyCap: 18, DailyTokenLimit: 250000, PriceUSD: 99},
}

// PlanFor looks up a tier. ok is false only for values outside the enumeration.
func PlanFor(tier PlanTier) (plan Plan, ok bool) {
	plan, ok = planCatalog[tier]
	return
}

// Plans lists the catalog in ascending price order.
func Plans() []Plan {
	return []Plan{planCatalog[PlanStarter], planCatalog[PlanPro], planCatalog[PlanScale]}
}

// DisplayName is the capitalised tier name used in ledger descriptions.
func (t PlanTier) DisplayName() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// PackSize is the credit count of a one-time credit pack.
type PackSize int

const (
	PackSmall  PackSize = 50
	PackMedium PackSize = 150
	PackLarge  PackSize = 400
)

// CreditPackOffer is one purchasable pack.
type CreditPackOffer struct {
	Size     PackSize
	PriceUSD int
}

var packCatalog = map[PackSize]CreditPackOffer{
	PackSmall:  {Size: PackSmall, PriceUSD: 10},
	PackMedium: {Size: PackMedium, PriceUSD: 25},
	PackLarge:  {Size: PackLarge, PriceUSD: 60},
}

// PackFor looks up a pack size.
func PackFor(size PackSize) (offer CreditPackOffer, ok bool) {
	offer, ok = packCatalog[size]
	return
}

// Credits granted by the pack.
func (s PackSize) Credits() int {
	return int(s)
}
