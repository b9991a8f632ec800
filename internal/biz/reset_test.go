package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDailyLimits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, userID := range []string{"u1", "u2", "u3", "u4", "u5"} {
		sub := env.seedSubscription(userID, PlanPro, 100)
		sub.DailyCreditsUsed = 2
		sub.DailyTokensUsed = 5_000
		env.store.putSubscription(sub)
	}

	midnight := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	env.clock = midnight

	// u3 already reset lazily today, u5 is not active.
	u3 := env.store.subscription("u3")
	u3.LastDailyReset = midnight.Add(time.Second)
	env.store.putSubscription(u3)
	u5 := env.store.subscription("u5")
	u5.Status = constants.SubscriptionStatusCanceled
	env.store.putSubscription(u5)

	count, err := env.reset.ResetDailyLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{constants.RedisKeyResetLock}, env.locker.keys)

	for _, userID := range []string{"u1", "u2", "u4"} {
		sub := env.store.subscription(userID)
		assert.Zero(t, sub.DailyCreditsUsed, userID)
		assert.Zero(t, sub.DailyTokensUsed, userID)
		assert.Equal(t, midnight, sub.LastDailyReset, userID)
		assert.InDelta(t, 100, sub.CurrentBalance, 1e-9, userID)
	}
	assert.InDelta(t, 2, env.store.subscription("u3").DailyCreditsUsed, 1e-9)
	assert.InDelta(t, 2, env.store.subscription("u5").DailyCreditsUsed, 1e-9)

	count, err = env.reset.ResetDailyLimits(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "second run on the same day changes nothing")
}

func TestResetDailyLimits_Empty(t *testing.T) {
	env := newTestEnv(t)
	count, err := env.reset.ResetDailyLimits(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestResetDailyLimits_SweepLease(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription("u1", PlanPro, 100)

	_, err := env.reset.ResetDailyLimits(context.Background())
	require.NoError(t, err)

	lease := env.locker.expiries[constants.RedisKeyResetLock]
	assert.Equal(t, env.reset.config.ResetLockExpiry, lease)
	assert.Greater(t, lease, env.reset.config.LockExpiry)
}

func TestResetDailyLimits_LockHeld(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription("u1", PlanPro, 100)
	env.locker.err = errors.New("lock already taken")

	_, err := env.reset.ResetDailyLimits(context.Background())
	require.Error(t, err)
	assert.Equal(t, creditErrors.ReasonLedgerLockFailed, kerrors.Reason(err))
}

func TestNeedsDailyReset(t *testing.T) {
	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want bool
	}{
		{"same day", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC), false},
		{"one second across midnight", time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), true},
		{"days apart", time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC), time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), true},
		{"same UTC day in another zone", time.Date(2025, 6, 1, 22, 0, 0, 0, time.FixedZone("UTC-3", -3*3600)), time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC), false},
		{"clock skew into the future", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsDailyReset(tt.last, tt.now))
		})
	}

	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), StartOfUTCDay(time.Date(2025, 6, 2, 17, 4, 5, 6, time.UTC)))
}
