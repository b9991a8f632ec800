package biz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// EventType is the provider's event name.
type EventType string

const (
	EventSubscriptionActive    EventType = "subscription.active"
	EventSubscriptionRenewed   EventType = "subscription.renewed"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventSubscriptionFailed    EventType = "subscription.failed"
	EventSubscriptionOnHold    EventType = "subscription.on_hold"
	EventPaymentSucceeded      EventType = "payment.succeeded"
	EventPaymentFailed         EventType = "payment.failed"
)

// Event is a decoded, validated provider event: *SubscriptionEvent or *PaymentEvent.
type Event interface {
	Type() EventType
}

type SubscriptionEvent struct {
	EventType       EventType
	SubscriptionID  string
	ProductID       string
	Status          string
	CustomerID      string
	CustomerEmail   string
	AuthUserID      string
	NextBillingDate time.Time
}

func (e *SubscriptionEvent) Type() EventType { return e.EventType }

type PaymentEvent struct {
	EventType      EventType
	PaymentID      string
	SubscriptionID string
	ProductID      string
	CustomerID     string
	CustomerEmail  string
	AuthUserID     string
	TotalAmount    int64
	Currency       string
}

func (e *PaymentEvent) Type() EventType { return e.EventType }

// WebhookDelivery is one signed callback as received.
type WebhookDelivery struct {
	ID              string
	Provider        string
	EventType       string
	Payload         []byte
	ProcessedAt     *time.Time
	ProcessingError string
	CreatedAt       time.Time
}

// WebhookDeliveryRepo keeps one row per (provider, delivery id).
type WebhookDeliveryRepo interface {
	// Begin stores d unless it exists and returns the stored row.
	Begin(ctx context.Context, d *WebhookDelivery) (stored *WebhookDelivery, created bool, err error)
	MarkProcessed(ctx context.Context, provider, id, processingErr string) error
}

// CancellationScheduler cancels a superseded provider subscription out of band.
type CancellationScheduler interface {
	ScheduleCancellation(ctx context.Context, providerSubscriptionID string) error
}

// CancellationJob is the queued form of a scheduled cancellation.
type CancellationJob struct {
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	RequestedAt            time.Time `json:"requested_at"`
}

// WebhookUseCase reconciles provider events into the ledger.
type WebhookUseCase struct {
	customers    *CustomerUseCase
	subRepo      SubscriptionRepo
	txnRepo      CreditTransactionRepo
	packRepo     CreditPackRepo
	deliveryRepo WebhookDeliveryRepo
	tx           Transaction
	locker       Locker
	canceller    CancellationScheduler
	config       *BillingConfig
	log          *log.Helper
	metrics      *metrics.CreditMetrics
	now          func() time.Time
}

func NewWebhookUseCase(
	customers *CustomerUseCase,
	subRepo SubscriptionRepo,
	txnRepo CreditTransactionRepo,
	packRepo CreditPackRepo,
	deliveryRepo WebhookDeliveryRepo,
	tx Transaction,
	locker Locker,
	canceller CancellationScheduler,
	config *BillingConfig,
	logger log.Logger,
) *WebhookUseCase {
	return &WebhookUseCase{
		customers:    customers,
		subRepo:      subRepo,
		txnRepo:      txnRepo,
		packRepo:     packRepo,
		deliveryRepo: deliveryRepo,
		tx:           tx,
		locker:       locker,
		canceller:    canceller,
		config:       config,
		log:          log.NewHelper(logger),
		metrics:      metrics.GetMetrics(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// deliveryInFlightWindow is how long a recorded but unfinished delivery is
// assumed to belong to a running attempt. Older rows are treated as crashed
// attempts and processed again.
const deliveryInFlightWindow = 30 * time.Second

// Handle records the delivery and dispatches the event. A nil event (unknown
// type) is recorded and acknowledged. duplicate is true when the delivery was
// already processed successfully.
// A redelivery that arrives while the first attempt is still running is
// rejected with a conflict so the provider retries it later.
func (uc *WebhookUseCase) Handle(ctx context.Context, delivery *WebhookDelivery, event Event) (duplicate bool, err error) {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = uc.now()
	}
	stored, created, err := uc.deliveryRepo.Begin(ctx, delivery)
	if err != nil {
		uc.log.Errorf("failed to record webhook delivery: id=%s, error=%v", delivery.ID, err)
		return false, creditErrors.ErrLedgerStorage(err)
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		uc.log.Infof("webhook delivery already processed: id=%s, type=%s", delivery.ID, delivery.EventType)
		uc.countWebhook(delivery.EventType, constants.ResultDup)
		return true, nil
	}
	if !created && stored.ProcessedAt == nil && stored.ProcessingError == "" &&
		uc.now().Sub(stored.CreatedAt) < deliveryInFlightWindow {
		uc.log.Warnf("webhook delivery still in flight: id=%s, type=%s", delivery.ID, delivery.EventType)
		uc.countWebhook(delivery.EventType, constants.ResultDup)
		return false, creditErrors.ErrWebhookInFlight(delivery.ID)
	}

	procErr := uc.dispatch(ctx, event)
	var msg string
	if procErr != nil {
		msg = procErr.Error()
	}
	if err := uc.deliveryRepo.MarkProcessed(ctx, delivery.Provider, delivery.ID, msg); err != nil {
		uc.log.Warnf("failed to mark webhook delivery processed: id=%s, error=%v", delivery.ID, err)
	}

	if procErr != nil {
		uc.log.Errorf("webhook processing failed: id=%s, type=%s, error=%v", delivery.ID, delivery.EventType, procErr)
		uc.countWebhook(delivery.EventType, constants.ResultFailed)
		return false, creditErrors.ErrLedgerStorage(procErr)
	}
	if event == nil {
		uc.countWebhook(delivery.EventType, constants.ResultIgnored)
	} else {
		uc.countWebhook(delivery.EventType, constants.ResultSuccess)
	}
	return false, nil
}

func (uc *WebhookUseCase) dispatch(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case nil:
		return nil
	case *SubscriptionEvent:
		switch e.EventType {
		case EventSubscriptionActive:
			return uc.HandleSubscriptionActive(ctx, e)
		case EventSubscriptionRenewed:
			return uc.HandleSubscriptionRenewed(ctx, e)
		case EventSubscriptionCancelled:
			return uc.HandleSubscriptionStatus(ctx, e, constants.SubscriptionStatusCanceled)
		case EventSubscriptionFailed, EventSubscriptionOnHold:
			return uc.HandleSubscriptionStatus(ctx, e, constants.SubscriptionStatusPastDue)
		}
	case *PaymentEvent:
		switch e.EventType {
		case EventPaymentSucceeded:
			return uc.HandlePaymentSucceeded(ctx, e)
		case EventPaymentFailed:
			return uc.HandlePaymentFailed(ctx, e)
		}
	}
	uc.log.Warnf("unhandled webhook event: type=%s", event.Type())
	return nil
}

// HandleSubscriptionActive grants the plan, preserving pack credits on a
// re-subscribe or plan switch.
func (uc *WebhookUseCase) HandleSubscriptionActive(ctx context.Context, e *SubscriptionEvent) error {
	tier, ok := uc.config.PlanForProduct(e.ProductID)
	if !ok {
		uc.log.Errorf("subscription %s activated for unknown product %s, dropped", e.SubscriptionID, e.ProductID)
		uc.anomaly(constants.AnomalyUnknownProduct)
		return nil
	}
	plan, _ := PlanFor(tier)

	userID, err := uc.customers.ResolveUserID(ctx, e.AuthUserID, e.CustomerID, e.CustomerEmail)
	if err != nil {
		return err
	}
	if userID == "" {
		uc.log.Errorf("subscription %s activated but no user could be resolved: customer_id=%s, dropped", e.SubscriptionID, e.CustomerID)
		uc.anomaly(constants.AnomalyUnresolvedUser)
		return nil
	}

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyLedgerLock+userID)
	if err != nil {
		return err
	}
	defer unlock()

	var superseded string
	var packCredits float64
	err = uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := uc.customers.Ensure(ctx, userID, e.CustomerID, e.CustomerEmail); err != nil {
			return err
		}

		now := uc.now()
		periodEnd := currentPeriodEnd(e.NextBillingDate, now)
		sub, err := uc.subRepo.GetByUserID(ctx, userID, true)
		if err != nil {
			return err
		}

		if sub == nil {
			sub = newSubscription(userID, plan, now, periodEnd)
			sub.ProviderCustomerID = e.CustomerID
			sub.ProviderSubscriptionID = e.SubscriptionID
			if err := uc.subRepo.Create(ctx, sub); err != nil {
				return err
			}
			_, err = postRebase(ctx, uc.txnRepo, sub, 0, constants.TransactionTypeGrant,
				fmt.Sprintf("%s plan: initial credit grant", plan.Tier.DisplayName()),
				constants.RelatedToSubscriptionActivation, now)
			return err
		}

		if sub.ProviderSubscriptionID != "" && sub.ProviderSubscriptionID != e.SubscriptionID {
			superseded = sub.ProviderSubscriptionID
		}
		before := sub.CurrentBalance
		packCredits = sub.applyPlan(plan, now, periodEnd)
		sub.ProviderSubscriptionID = e.SubscriptionID
		if e.CustomerID != "" {
			sub.ProviderCustomerID = e.CustomerID
		}
		if _, err := postRebase(ctx, uc.txnRepo, sub, before, constants.TransactionTypeGrant,
			fmt.Sprintf("%s plan activated (pack credits preserved: %s)", plan.Tier.DisplayName(), formatCredits(packCredits)),
			constants.RelatedToSubscriptionActivation, now); err != nil {
			return err
		}
		return uc.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return err
	}

	uc.log.Infof("subscription activated: user_id=%s, plan=%s, subscription_id=%s, pack_credits=%s",
		userID, plan.Tier, e.SubscriptionID, formatCredits(packCredits))
	if uc.metrics != nil {
		uc.metrics.GrantTotal.WithLabelValues(constants.RelatedToSubscriptionActivation).Inc()
	}

	if superseded != "" {
		if err := uc.canceller.ScheduleCancellation(ctx, superseded); err != nil {
			uc.log.Errorf("failed to schedule cancellation of superseded subscription %s: %v", superseded, err)
		}
	}
	return nil
}

// HandleSubscriptionRenewed starts a new period for the subscription.
func (uc *WebhookUseCase) HandleSubscriptionRenewed(ctx context.Context, e *SubscriptionEvent) error {
	found, err := uc.subRepo.GetByProviderSubscriptionID(ctx, e.SubscriptionID, false)
	if err != nil {
		return err
	}
	if found == nil {
		uc.log.Errorf("renewal for unknown subscription %s, dropped", e.SubscriptionID)
		uc.anomaly(constants.AnomalySubscriptionNotFound)
		return nil
	}

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyLedgerLock+found.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	var userID string
	var plan Plan
	err = uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetByProviderSubscriptionID(ctx, e.SubscriptionID, true)
		if err != nil || sub == nil {
			return err
		}
		tier := sub.Plan
		if t, ok := uc.config.PlanForProduct(e.ProductID); ok {
			tier = t
		}
		p, ok := PlanFor(tier)
		if !ok {
			return fmt.Errorf("subscription %s has unknown plan %q", sub.ID, tier)
		}
		plan = p
		userID = sub.UserID

		now := uc.now()
		before := sub.CurrentBalance
		packCredits := sub.applyPlan(plan, now, currentPeriodEnd(e.NextBillingDate, now))
		if _, err := postRebase(ctx, uc.txnRepo, sub, before, constants.TransactionTypeGrant,
			fmt.Sprintf("%s plan renewed (pack credits preserved: %s)", plan.Tier.DisplayName(), formatCredits(packCredits)),
			constants.RelatedToSubscriptionRenewal, now); err != nil {
			return err
		}
		return uc.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return err
	}

	uc.log.Infof("subscription renewed: user_id=%s, plan=%s, subscription_id=%s", userID, plan.Tier, e.SubscriptionID)
	if uc.metrics != nil {
		uc.metrics.GrantTotal.WithLabelValues(constants.RelatedToSubscriptionRenewal).Inc()
	}
	return nil
}

// HandleSubscriptionStatus moves the subscription to status.
func (uc *WebhookUseCase) HandleSubscriptionStatus(ctx context.Context, e *SubscriptionEvent, status string) error {
	var found bool
	err := uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetByProviderSubscriptionID(ctx, e.SubscriptionID, true)
		if err != nil || sub == nil {
			return err
		}
		found = true
		sub.Status = status
		sub.UpdatedAt = uc.now()
		return uc.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return err
	}
	if !found {
		uc.log.Warnf("%s for unknown subscription %s, ignored", e.EventType, e.SubscriptionID)
		uc.anomaly(constants.AnomalySubscriptionNotFound)
		return nil
	}

	uc.log.Infof("subscription %s is now %s", e.SubscriptionID, status)
	if uc.metrics != nil {
		uc.metrics.StatusChangeTotal.WithLabelValues(status).Inc()
	}
	return nil
}

// HandlePaymentSucceeded credits a pack exactly once per payment id. Plan
// payments are ignored here; the subscription events carry them.
func (uc *WebhookUseCase) HandlePaymentSucceeded(ctx context.Context, e *PaymentEvent) error {
	size, ok := uc.config.PackForProduct(e.ProductID)
	if !ok {
		uc.log.Infof("payment %s is not a credit pack purchase (product %s), skipped", e.PaymentID, e.ProductID)
		return nil
	}

	userID, err := uc.customers.ResolveUserID(ctx, e.AuthUserID, e.CustomerID, e.CustomerEmail)
	if err != nil {
		return err
	}
	if userID == "" {
		uc.log.Errorf("credit pack payment %s has no resolvable user: customer_id=%s, dropped", e.PaymentID, e.CustomerID)
		uc.anomaly(constants.AnomalyUnresolvedUser)
		return nil
	}

	existing, err := uc.packRepo.GetByPaymentID(ctx, e.PaymentID)
	if err != nil {
		return err
	}
	if existing != nil {
		uc.log.Infof("credit pack payment %s already processed, skipped", e.PaymentID)
		return nil
	}

	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyLedgerLock+userID)
	if err != nil {
		return err
	}
	defer unlock()

	var credited, noSubscription bool
	var balanceAfter float64
	err = uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		if existing, err := uc.packRepo.GetByPaymentID(ctx, e.PaymentID); err != nil || existing != nil {
			return err
		}
		if _, err := uc.customers.Ensure(ctx, userID, e.CustomerID, e.CustomerEmail); err != nil {
			return err
		}
		sub, err := uc.subRepo.GetByUserID(ctx, userID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			noSubscription = true
			return nil
		}

		now := uc.now()
		if err := uc.packRepo.Create(ctx, &CreditPack{
			UserID:            userID,
			PackSize:          size,
			CreditsGranted:    size.Credits(),
			ProviderPaymentID: e.PaymentID,
			Status:            constants.CreditPackStatusCompleted,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		if _, err := postLedger(ctx, uc.txnRepo, sub, ledgerEntry{
			Type:        constants.TransactionTypeCredit,
			Amount:      float64(size.Credits()),
			Description: fmt.Sprintf("%d Credit Pack purchased", size.Credits()),
			RelatedTo:   constants.RelatedToCreditPack,
		}, now); err != nil {
			return err
		}
		if err := uc.subRepo.Update(ctx, sub); err != nil {
			return err
		}
		credited = true
		balanceAfter = sub.CurrentBalance
		return nil
	})
	if errors.Is(err, ErrDuplicatePayment) {
		uc.log.Infof("credit pack payment %s recorded concurrently, skipped", e.PaymentID)
		return nil
	}
	if err != nil {
		return err
	}
	if noSubscription {
		uc.log.Errorf("credit pack payment %s for user %s without subscription, dropped", e.PaymentID, userID)
		uc.anomaly(constants.AnomalySubscriptionNotFound)
		return nil
	}
	if credited {
		uc.log.Infof("credit pack credited: user_id=%s, payment_id=%s, credits=%d, balance_after=%s",
			userID, e.PaymentID, size.Credits(), formatCredits(balanceAfter))
		if uc.metrics != nil {
			uc.metrics.CreditPackTotal.WithLabelValues(strconv.Itoa(size.Credits())).Inc()
		}
	}
	return nil
}

// HandlePaymentFailed only logs; subscription events carry the state change.
func (uc *WebhookUseCase) HandlePaymentFailed(_ context.Context, e *PaymentEvent) error {
	uc.log.Warnf("payment failed: payment_id=%s, customer_id=%s, subscription_id=%s", e.PaymentID, e.CustomerID, e.SubscriptionID)
	return nil
}

func (uc *WebhookUseCase) anomaly(reason string) {
	if uc.metrics != nil {
		uc.metrics.WebhookAnomalies.WithLabelValues(reason).Inc()
	}
}

func (uc *WebhookUseCase) countWebhook(eventType, result string) {
	if uc.metrics != nil {
		uc.metrics.WebhookTotal.WithLabelValues(eventType, result).Inc()
	}
}

// currentPeriodEnd prefers the provider's next billing date.
func currentPeriodEnd(nextBillingDate, now time.Time) time.Time {
	if !nextBillingDate.IsZero() && nextBillingDate.After(now) {
		return nextBillingDate.UTC()
	}
	return now.AddDate(0, 0, 30)
}

func formatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
