package biz

import (
	"context"
	"time"

	"credit-service/internal/constants"
)

// Subscription is the per-user balance and quota record.
type Subscription struct {
	ID                     string
	UserID                 string
	Plan                   PlanTier
	Status                 string
	CreditsMonthly         int
	CurrentBalance         float64
	DailyCap               float64
	DailyTokenLimit        int64
	DailyCreditsUsed       float64
	DailyTokensUsed        int64
	LastDailyReset         time.Time
	ProviderCustomerID     string
	ProviderSubscriptionID string
	CurrentPeriodEnd       time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// SubscriptionRepo returns nil, nil when a row is not found. forUpdate takes a
// row lock and is only meaningful inside Transaction.ExecTx.
type SubscriptionRepo interface {
	GetByUserID(ctx context.Context, userID string, forUpdate bool) (*Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string, forUpdate bool) (*Subscription, error)
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	// ListActive pages through active subscriptions ordered by id, starting after afterID.
	ListActive(ctx context.Context, afterID string, limit int) ([]*Subscription, error)
	// ResetDailyUsage zeroes the counters unless the row was already reset on now's UTC day.
	ResetDailyUsage(ctx context.Context, id string, now time.Time) (bool, error)
	ReassignUser(ctx context.Context, fromUserID, toUserID string) error
}

// IsActive reports whether the subscription may spend credits.
func (s *Subscription) IsActive() bool {
	return s.Status == constants.SubscriptionStatusActive
}

// NeedsDailyReset compares UTC calendar days, not elapsed time.
func NeedsDailyReset(lastReset, now time.Time) bool {
	ly, lm, ld := lastReset.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ly != ny || lm != nm || ld != nd
}

// StartOfUTCDay truncates t to 00:00:00 UTC.
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NeedsDailyReset reports whether the counters belong to an earlier UTC day.
func (s *Subscription) NeedsDailyReset(now time.Time) bool {
	return NeedsDailyReset(s.LastDailyReset, now)
}

// ResetDaily zeroes both daily counters and stamps the reset time.
func (s *Subscription) ResetDaily(now time.Time) {
	s.DailyCreditsUsed = 0
	s.DailyTokensUsed = 0
	s.LastDailyReset = now
	s.UpdatedAt = now
}

// applyPlan replaces plan fields and starts a fresh period. Credits above the
// previous monthly allotment came from packs and carry over.
func (s *Subscription) applyPlan(plan Plan, now, periodEnd time.Time) (packCredits float64) {
	packCredits = s.CurrentBalance - float64(s.CreditsMonthly)
	if packCredits < 0 {
		packCredits = 0
	}
	s.Plan = plan.Tier
	s.Status = constants.SubscriptionStatusActive
	s.CreditsMonthly = plan.CreditsMonthly
	s.CurrentBalance = float64(plan.CreditsMonthly) + packCredits
	s.DailyCap = float64(plan.DailyCap)
	s.DailyTokenLimit = plan.DailyTokenLimit
	s.CurrentPeriodEnd = periodEnd
	s.ResetDaily(now)
	return packCredits
}

// newSubscription builds a first-time subscription for plan.
func newSubscription(userID string, plan Plan, now, periodEnd time.Time) *Subscription {
	return &Subscription{
		UserID:           userID,
		Plan:             plan.Tier,
		Status:           constants.SubscriptionStatusActive,
		CreditsMonthly:   plan.CreditsMonthly,
		CurrentBalance:   float64(plan.CreditsMonthly),
		DailyCap:         float64(plan.DailyCap),
		DailyTokenLimit:  plan.DailyTokenLimit,
		LastDailyReset:   now,
		CurrentPeriodEnd: periodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
