package biz

import (
	"context"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// UsageError is a business outcome of the usage gate. It is data, not an error.
type UsageError string

const (
	UsageErrNoSubscription          UsageError = "no_subscription"
	UsageErrSubscriptionInactive    UsageError = "subscription_inactive"
	UsageErrInsufficientCredits     UsageError = "insufficient_credits"
	UsageErrDailyCapExceeded        UsageError = "daily_cap_exceeded"
	UsageErrDailyTokenLimitExceeded UsageError = "daily_token_limit_exceeded"
)

var usageErrorMessages = map[UsageError]string{
	UsageErrNoSubscription:          "You need an active subscription to use AI features. Please subscribe to a plan.",
	UsageErrSubscriptionInactive:    "Your subscription is not active. Please update your payment method or resubscribe.",
	UsageErrInsufficientCredits:     "You've run out of credits for this billing period. Purchase a credit pack or wait for your monthly renewal.",
	UsageErrDailyCapExceeded:        "You've reached your daily credit limit. Your cap resets at midnight UTC.",
	UsageErrDailyTokenLimitExceeded: "You've reached your daily token limit. Your limit resets at midnight UTC.",
}

// Message is the user-facing text for the code.
func (e UsageError) Message() string {
	return usageErrorMessages[e]
}

type CheckResult struct {
	Allowed               bool
	Error                 UsageError
	CurrentBalance        float64
	DailyCreditsRemaining float64
	DailyTokensRemaining  int64
}

type DeductRequest struct {
	UserID       string
	InputTokens  int64
	OutputTokens int64
	Description  string
	RelatedTo    string
}

type DeductResult struct {
	Success          bool
	Error            UsageError
	CreditsDeducted  float64
	BalanceAfter     float64
	DailyCreditsUsed float64
	DailyTokensUsed  int64
}

type AddCreditsRequest struct {
	UserID      string
	Amount      float64
	Type        string
	Description string
	RelatedTo   string
}

// UsageView is the read-only projection for the account page.
type UsageView struct {
	HasSubscription  bool
	Plan             PlanTier
	Status           string
	CreditsMonthly   int
	CurrentBalance   float64
	DailyCap         float64
	DailyCreditsUsed float64
	DailyTokenLimit  int64
	DailyTokensUsed  int64
	LastDailyReset   time.Time
	CurrentPeriodEnd time.Time
}

// UsageUseCase implements the usage gate and the account read queries.
type UsageUseCase struct {
	subRepo      SubscriptionRepo
	txnRepo      CreditTransactionRepo
	customerRepo CustomerRepo
	tx           Transaction
	locker       Locker
	config       *BillingConfig
	log          *log.Helper
	metrics      *metrics.CreditMetrics
	now          func() time.Time
}

func NewUsageUseCase(
	subRepo SubscriptionRepo,
	txnRepo CreditTransactionRepo,
	customerRepo CustomerRepo,
	tx Transaction,
	locker Locker,
	config *BillingConfig,
	logger log.Logger,
) *UsageUseCase {
	return &UsageUseCase{
		subRepo:      subRepo,
		txnRepo:      txnRepo,
		customerRepo: customerRepo,
		tx:           tx,
		locker:       locker,
		config:       config,
		log:          log.NewHelper(logger),
		metrics:      metrics.GetMetrics(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CheckCredits is the pre-flight gate. The first check of a UTC day persists
// the daily reset.
func (uc *UsageUseCase) CheckCredits(ctx context.Context, internalKey, userID string) (*CheckResult, error) {
	if err := uc.config.VerifyInternalKey(internalKey); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, creditErrors.ErrInvalidArgument("user_id is required")
	}

	startTime := time.Now()
	var result *CheckResult
	err := uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetByUserID(ctx, userID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			result = &CheckResult{Error: UsageErrNoSubscription}
			return nil
		}
		if !sub.IsActive() {
			result = &CheckResult{Error: UsageErrSubscriptionInactive}
			return nil
		}

		now := uc.now()
		if sub.NeedsDailyReset(now) {
			sub.ResetDaily(now)
			if err := uc.subRepo.Update(ctx, sub); err != nil {
				return err
			}
			uc.log.Debugf("daily usage reset on check: user_id=%s", userID)
		}

		result = evaluateCheck(sub)
		return nil
	})
	if err != nil {
		uc.log.Errorf("CheckCredits failed: user_id=%s, error=%v", userID, err)
		return nil, creditErrors.ErrLedgerStorage(err)
	}

	if uc.metrics != nil {
		label := constants.ResultAllowed
		if !result.Allowed {
			label = string(result.Error)
		}
		uc.metrics.CheckTotal.WithLabelValues(label).Inc()
		uc.metrics.CheckDuration.Observe(time.Since(startTime).Seconds())
	}
	return result, nil
}

func evaluateCheck(sub *Subscription) *CheckResult {
	switch {
	case sub.CurrentBalance <= 0:
		return &CheckResult{Error: UsageErrInsufficientCredits, CurrentBalance: sub.CurrentBalance}
	case sub.DailyCreditsUsed >= sub.DailyCap:
		return &CheckResult{Error: UsageErrDailyCapExceeded, CurrentBalance: sub.CurrentBalance}
	case sub.DailyTokensUsed >= sub.DailyTokenLimit:
		return &CheckResult{Error: UsageErrDailyTokenLimitExceeded, CurrentBalance: sub.CurrentBalance}
	}
	return &CheckResult{
		Allowed:               true,
		CurrentBalance:        sub.CurrentBalance,
		DailyCreditsRemaining: sub.DailyCap - sub.DailyCreditsUsed,
		DailyTokensRemaining:  sub.DailyTokenLimit - sub.DailyTokensUsed,
	}
}

// DeductCredits bills actual token usage. The balance and cap checks run
// against the locked, post-reset row in the same transaction as the write.
func (uc *UsageUseCase) DeductCredits(ctx context.Context, internalKey string, req *DeductRequest) (*DeductResult, error) {
	if err := uc.config.VerifyInternalKey(internalKey); err != nil {
		return nil, err
	}
	if req == nil || req.UserID == "" {
		return nil, creditErrors.ErrInvalidArgument("user_id is required")
	}
	if req.InputTokens < 0 || req.OutputTokens < 0 {
		return nil, creditErrors.ErrInvalidArgument("token counts must not be negative")
	}

	startTime := time.Now()
	credits := uc.config.Pricing.Credits(req.InputTokens, req.OutputTokens)
	totalTokens := req.InputTokens + req.OutputTokens

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyLedgerLock+req.UserID)
	if err != nil {
		uc.log.Errorf("failed to acquire ledger lock: user_id=%s, error=%v", req.UserID, err)
		return nil, creditErrors.ErrLedgerLockFailed(err)
	}
	defer unlock()

	var result *DeductResult
	err = uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetByUserID(ctx, req.UserID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			result = &DeductResult{Error: UsageErrNoSubscription}
			return nil
		}
		if !sub.IsActive() {
			result = &DeductResult{Error: UsageErrSubscriptionInactive}
			return nil
		}

		now := uc.now()
		reset := sub.NeedsDailyReset(now)
		creditsUsed, tokensUsed := sub.DailyCreditsUsed, sub.DailyTokensUsed
		if reset {
			creditsUsed, tokensUsed = 0, 0
		}

		switch {
		case sub.CurrentBalance < credits:
			result = &DeductResult{Error: UsageErrInsufficientCredits}
		case creditsUsed+credits > sub.DailyCap:
			result = &DeductResult{Error: UsageErrDailyCapExceeded}
		case tokensUsed+totalTokens > sub.DailyTokenLimit:
			result = &DeductResult{Error: UsageErrDailyTokenLimitExceeded}
		}
		if result != nil {
			return nil
		}

		if reset {
			sub.LastDailyReset = now
		}
		sub.DailyCreditsUsed = creditsUsed + credits
		sub.DailyTokensUsed = tokensUsed + totalTokens

		description := req.Description
		if description == "" {
			description = "AI usage"
		}
		in, out := req.InputTokens, req.OutputTokens
		if _, err := postLedger(ctx, uc.txnRepo, sub, ledgerEntry{
			Type:         constants.TransactionTypeDebit,
			Amount:       -credits,
			Description:  description,
			RelatedTo:    req.RelatedTo,
			InputTokens:  &in,
			OutputTokens: &out,
		}, now); err != nil {
			return err
		}
		if err := uc.subRepo.Update(ctx, sub); err != nil {
			return err
		}

		result = &DeductResult{
			Success:          true,
			CreditsDeducted:  credits,
			BalanceAfter:     sub.CurrentBalance,
			DailyCreditsUsed: sub.DailyCreditsUsed,
			DailyTokensUsed:  sub.DailyTokensUsed,
		}
		return nil
	})
	if err != nil {
		uc.log.Errorf("DeductCredits failed: user_id=%s, error=%v", req.UserID, err)
		return nil, creditErrors.ErrLedgerStorage(err)
	}

	if uc.metrics != nil {
		label := constants.ResultSuccess
		if !result.Success {
			label = string(result.Error)
		}
		uc.metrics.DeductTotal.WithLabelValues(label).Inc()
		uc.metrics.DeductDuration.Observe(time.Since(startTime).Seconds())
		if result.Success {
			uc.metrics.CreditsDeducted.Add(credits)
			uc.metrics.TokensConsumed.WithLabelValues("input").Add(float64(req.InputTokens))
			uc.metrics.TokensConsumed.WithLabelValues("output").Add(float64(req.OutputTokens))
		}
	}
	if result.Success {
		uc.log.Infof("credits deducted: user_id=%s, credits=%.4f, balance_after=%.4f, related_to=%s",
			req.UserID, credits, result.BalanceAfter, req.RelatedTo)
	}
	return result, nil
}

// AddCredits credits an existing subscription outside the webhook flow.
// It returns nil when the user has no subscription.
func (uc *UsageUseCase) AddCredits(ctx context.Context, internalKey string, req *AddCreditsRequest) (*CreditTransaction, error) {
	if err := uc.config.VerifyInternalKey(internalKey); err != nil {
		return nil, err
	}
	if req == nil || req.UserID == "" {
		return nil, creditErrors.ErrInvalidArgument("user_id is required")
	}
	if req.Amount <= 0 {
		return nil, creditErrors.ErrInvalidArgument("amount must be positive")
	}
	switch req.Type {
	case "":
		req.Type = constants.TransactionTypeGrant
	case constants.TransactionTypeGrant, constants.TransactionTypeCredit, constants.TransactionTypeRefund:
	default:
		return nil, creditErrors.ErrInvalidArgument("unsupported transaction type %q", req.Type)
	}

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyLedgerLock+req.UserID)
	if err != nil {
		return nil, creditErrors.ErrLedgerLockFailed(err)
	}
	defer unlock()

	var txn *CreditTransaction
	err = uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetByUserID(ctx, req.UserID, true)
		if err != nil || sub == nil {
			return err
		}
		txn, err = postLedger(ctx, uc.txnRepo, sub, ledgerEntry{
			Type:        req.Type,
			Amount:      req.Amount,
			Description: req.Description,
			RelatedTo:   req.RelatedTo,
		}, uc.now())
		if err != nil {
			return err
		}
		return uc.subRepo.Update(ctx, sub)
	})
	if err != nil {
		uc.log.Errorf("AddCredits failed: user_id=%s, error=%v", req.UserID, err)
		return nil, creditErrors.ErrLedgerStorage(err)
	}
	if txn == nil {
		uc.log.Warnf("AddCredits skipped, no subscription: user_id=%s", req.UserID)
	}
	return txn, nil
}

// findSubscription resolves a subscription for the identity, following rows
// that are still keyed by the provider customer id.
func (uc *UsageUseCase) findSubscription(ctx context.Context, id Identity) (*Subscription, error) {
	var sub *Subscription
	err := uc.forEachLedgerKey(ctx, id, func(key string) (bool, error) {
		var err error
		sub, err = uc.subRepo.GetByUserID(ctx, key, false)
		return sub != nil, err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// forEachLedgerKey visits the keys a caller's ledger may live under: the auth
// user id, the provider customer id bound to that user, then the provider
// customer id bound to the caller's email. It stops at the first hit.
func (uc *UsageUseCase) forEachLedgerKey(ctx context.Context, id Identity, visit func(key string) (bool, error)) error {
	if hit, err := visit(id.UserID); err != nil || hit {
		return err
	}

	c, err := uc.customerRepo.GetByAuthID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if c != nil && c.ProviderCustomerID != "" {
		if hit, err := visit(c.ProviderCustomerID); err != nil || hit {
			return err
		}
	}

	if id.Email == "" {
		return nil
	}
	c, err = uc.customerRepo.GetByEmail(ctx, id.Email)
	if err != nil || c == nil || c.ProviderCustomerID == "" {
		return err
	}
	_, err = visit(c.ProviderCustomerID)
	return err
}

// GetUserUsage projects the subscription for display. A pending daily reset is
// shown but not written.
func (uc *UsageUseCase) GetUserUsage(ctx context.Context, id Identity) (*UsageView, error) {
	if id.UserID == "" {
		return nil, creditErrors.ErrUnauthenticated()
	}
	sub, err := uc.findSubscription(ctx, id)
	if err != nil {
		return nil, creditErrors.ErrLedgerStorage(err)
	}
	if sub == nil {
		return &UsageView{}, nil
	}

	view := &UsageView{
		HasSubscription:  true,
		Plan:             sub.Plan,
		Status:           sub.Status,
		CreditsMonthly:   sub.CreditsMonthly,
		CurrentBalance:   sub.CurrentBalance,
		DailyCap:         sub.DailyCap,
		DailyCreditsUsed: sub.DailyCreditsUsed,
		DailyTokenLimit:  sub.DailyTokenLimit,
		DailyTokensUsed:  sub.DailyTokensUsed,
		LastDailyReset:   sub.LastDailyReset,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
	if sub.NeedsDailyReset(uc.now()) {
		view.DailyCreditsUsed = 0
		view.DailyTokensUsed = 0
	}
	return view, nil
}

// GetTransactions lists the identity's ledger, newest first.
func (uc *UsageUseCase) GetTransactions(ctx context.Context, id Identity, limit int) ([]*CreditTransaction, error) {
	if id.UserID == "" {
		return nil, creditErrors.ErrUnauthenticated()
	}
	if limit <= 0 {
		limit = constants.TransactionsDefaultLimit
	}
	if limit > constants.TransactionsMaxLimit {
		limit = constants.TransactionsMaxLimit
	}

	var txns []*CreditTransaction
	err := uc.forEachLedgerKey(ctx, id, func(key string) (bool, error) {
		var err error
		txns, err = uc.txnRepo.ListByUserID(ctx, key, limit)
		return len(txns) > 0, err
	})
	if err != nil {
		return nil, creditErrors.ErrLedgerStorage(err)
	}
	return txns, nil
}
