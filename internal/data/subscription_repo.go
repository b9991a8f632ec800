package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionRepo creates the subscription repo.
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *subscriptionRepo) query(ctx context.Context, forUpdate bool) *gorm.DB {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (r *subscriptionRepo) first(db *gorm.DB) (*biz.Subscription, error) {
	var m model.Subscription
	if err := db.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizSubscription(&m), nil
}

func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID string, forUpdate bool) (*biz.Subscription, error) {
	sub, err := r.first(r.query(ctx, forUpdate).Where("user_id = ?", userID))
	if err != nil {
		return nil, fmt.Errorf("get subscription by user %s: %w", userID, err)
	}
	return sub, nil
}

func (r *subscriptionRepo) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string, forUpdate bool) (*biz.Subscription, error) {
	sub, err := r.first(r.query(ctx, forUpdate).Where("provider_subscription_id = ?", providerSubscriptionID))
	if err != nil {
		return nil, fmt.Errorf("get subscription by provider id %s: %w", providerSubscriptionID, err)
	}
	return sub, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, sub *biz.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	m := toModelSubscription(sub)
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

// Update writes every mutable column, zero values included.
func (r *subscriptionRepo) Update(ctx context.Context, sub *biz.Subscription) error {
	err := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", sub.ID).
		Updates(map[string]interface{}{
			"user_id":                  sub.UserID,
			"plan":                     string(sub.Plan),
			"status":                   sub.Status,
			"credits_monthly":          sub.CreditsMonthly,
			"current_balance":          sub.CurrentBalance,
			"daily_cap":                sub.DailyCap,
			"daily_token_limit":        sub.DailyTokenLimit,
			"daily_credits_used":       sub.DailyCreditsUsed,
			"daily_tokens_used":        sub.DailyTokensUsed,
			"last_daily_reset":         sub.LastDailyReset,
			"provider_customer_id":     sub.ProviderCustomerID,
			"provider_subscription_id": sub.ProviderSubscriptionID,
			"current_period_end":       sub.CurrentPeriodEnd,
			"updated_at":               sub.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (r *subscriptionRepo) ListActive(ctx context.Context, afterID string, limit int) ([]*biz.Subscription, error) {
	var ms []model.Subscription
	err := r.data.DB(ctx).
		Where("status = ? AND subscription_id > ?", constants.SubscriptionStatusActive, afterID).
		Order("subscription_id ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	subs := make([]*biz.Subscription, 0, len(ms))
	for i := range ms {
		subs = append(subs, toBizSubscription(&ms[i]))
	}
	return subs, nil
}

// ResetDailyUsage is a conditional update: rows already reset on now's UTC day
// are left alone, so a concurrent lazy reset is never repeated.
func (r *subscriptionRepo) ResetDailyUsage(ctx context.Context, id string, now time.Time) (bool, error) {
	dayStart := biz.StartOfUTCDay(now)
	result := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ? AND status = ?", id, constants.SubscriptionStatusActive).
		Where("last_daily_reset < ? OR last_daily_reset >= ?", dayStart, dayStart.Add(24*time.Hour)).
		Updates(map[string]interface{}{
			"daily_credits_used": 0,
			"daily_tokens_used":  0,
			"last_daily_reset":   now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("reset daily usage for %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *subscriptionRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) error {
	err := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("user_id = ?", fromUserID).
		Updates(map[string]interface{}{
			"user_id":    toUserID,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("reassign subscription %s -> %s: %w", fromUserID, toUserID, err)
	}
	return nil
}

func toBizSubscription(m *model.Subscription) *biz.Subscription {
	return &biz.Subscription{
		ID:                     m.SubscriptionID,
		UserID:                 m.UserID,
		Plan:                   biz.PlanTier(m.Plan),
		Status:                 m.Status,
		CreditsMonthly:         m.CreditsMonthly,
		CurrentBalance:         m.CurrentBalance,
		DailyCap:               m.DailyCap,
		DailyTokenLimit:        m.DailyTokenLimit,
		DailyCreditsUsed:       m.DailyCreditsUsed,
		DailyTokensUsed:        m.DailyTokensUsed,
		LastDailyReset:         m.LastDailyReset.UTC(),
		ProviderCustomerID:     m.ProviderCustomerID,
		ProviderSubscriptionID: m.ProviderSubscriptionID,
		CurrentPeriodEnd:       m.CurrentPeriodEnd.UTC(),
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func toModelSubscription(s *biz.Subscription) *model.Subscription {
	return &model.Subscription{
		SubscriptionID:         s.ID,
		UserID:                 s.UserID,
		Plan:                   string(s.Plan),
		Status:                 s.Status,
		CreditsMonthly:         s.CreditsMonthly,
		CurrentBalance:         s.CurrentBalance,
		DailyCap:               s.DailyCap,
		DailyTokenLimit:        s.DailyTokenLimit,
		DailyCreditsUsed:       s.DailyCreditsUsed,
		DailyTokensUsed:        s.DailyTokensUsed,
		LastDailyReset:         s.LastDailyReset,
		ProviderCustomerID:     s.ProviderCustomerID,
		ProviderSubscriptionID: s.ProviderSubscriptionID,
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}
