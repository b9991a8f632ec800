package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanCatalog(t *testing.T) {
	tests := []struct {
		tier       PlanTier
		monthly    int
		dailyCap   int
		tokenLimit int64
		price      int
	}{
		{PlanStarter, 50, 3, 40_000, 19},
		{PlanPro, 150, 8, 120_000, 49},
		{PlanScale, 400, 18, 250_000, 99},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			plan, ok := PlanFor(tt.tier)
			assert.True(t, ok)
			assert.Equal(t, tt.tier, plan.Tier)
			assert.Equal(t, tt.monthly, plan.CreditsMonthly)
			assert.Equal(t, tt.dailyCap, plan.DailyCap)
			assert.Equal(t, tt.tokenLimit, plan.DailyTokenLimit)
			assert.Equal(t, tt.price, plan.PriceUSD)
		})
	}

	_, ok := PlanFor("enterprise")
	assert.False(t, ok)

	plans := Plans()
	assert.Len(t, plans, 3)
	for i := 1; i < len(plans); i++ {
		assert.Less(t, plans[i-1].PriceUSD, plans[i].PriceUSD)
	}
}

func TestPlanTier_DisplayName(t *testing.T) {
	assert.Equal(t, "Starter", PlanStarter.DisplayName())
	assert.Equal(t, "Scale", PlanScale.DisplayName())
	assert.Equal(t, "", PlanTier("").DisplayName())
}

func TestPackCatalog(t *testing.T) {
	for _, size := range []PackSize{PackSmall, PackMedium, PackLarge} {
		offer, ok := PackFor(size)
		assert.True(t, ok)
		assert.Equal(t, int(size), size.Credits())
		assert.Positive(t, offer.PriceUSD)
	}
	_, ok := PackFor(PackSize(75))
	assert.False(t, ok)
}

func TestSubscription_ApplyPlan(t *testing.T) {
	env := newTestEnv(t)
	sub := env.seedSubscription("user_1", PlanScale, 420)
	sub.DailyCreditsUsed = 12

	starter, _ := PlanFor(PlanStarter)
	pack := sub.applyPlan(starter, env.clock, env.clock.AddDate(0, 1, 0))

	assert.InDelta(t, 20, pack, 1e-9)
	assert.InDelta(t, 70, sub.CurrentBalance, 1e-9)
	assert.InDelta(t, 3, sub.DailyCap, 1e-9)
	assert.Zero(t, sub.DailyCreditsUsed)
	assert.Equal(t, PlanStarter, sub.Plan)
}
