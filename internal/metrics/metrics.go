package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CreditMetrics ledger metrics
type CreditMetrics struct {
	// usage gate
	CheckTotal      *prometheus.CounterVec // by result: allowed or error code
	CheckDuration   prometheus.Histogram
	DeductTotal     *prometheus.CounterVec // by result: success or error code
	DeductDuration  prometheus.Histogram
	CreditsDeducted prometheus.Counter
	TokensConsumed  *prometheus.CounterVec // by direction: input/output

	// reconciler
	GrantTotal        *prometheus.CounterVec // by reason: activation/renewal
	CreditPackTotal   *prometheus.CounterVec // by size
	StatusChangeTotal *prometheus.CounterVec // by status
	WebhookTotal      *prometheus.CounterVec // by type, result
	WebhookAnomalies  *prometheus.CounterVec // by reason
	CancellationTotal *prometheus.CounterVec // by result

	// daily reset
	ResetRunTotal      *prometheus.CounterVec // by result
	ResetSubscriptions prometheus.Counter
	ResetDuration      prometheus.Histogram

	// distributed lock
	LockAcquireTotal    *prometheus.CounterVec // by result
	LockAcquireDuration prometheus.Histogram
}

// NewCreditMetrics registers all collectors on the default registry.
func NewCreditMetrics() *CreditMetrics {
	return &CreditMetrics{
		CheckTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_check_total",
				Help: "Total number of credit checks",
			},
			[]string{"result"},
		),
		CheckDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_check_duration_seconds",
				Help:    "Duration of credit checks",
				Buckets: prometheus.DefBuckets,
			},
		),
		DeductTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_deduct_total",
				Help: "Total number of credit deductions",
			},
			[]string{"result"},
		),
		DeductDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_deduct_duration_seconds",
				Help:    "Duration of credit deductions",
				Buckets: prometheus.DefBuckets,
			},
		),
		CreditsDeducted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_deducted_credits_total",
				Help: "Total credits deducted",
			},
		),
		TokensConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_tokens_consumed_total",
				Help: "Total model tokens billed",
			},
			[]string{"direction"},
		),

		GrantTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_grant_total",
				Help: "Total number of plan credit grants",
			},
			[]string{"reason"},
		),
		CreditPackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_pack_purchase_total",
				Help: "Total number of credit packs credited",
			},
			[]string{"size"},
		),
		StatusChangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_subscription_status_change_total",
				Help: "Total number of subscription status transitions",
			},
			[]string{"status"},
		),
		WebhookTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_webhook_events_total",
				Help: "Total number of webhook deliveries",
			},
			[]string{"type", "result"},
		),
		WebhookAnomalies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_webhook_anomalies_total",
				Help: "Webhook events dropped because of data anomalies",
			},
			[]string{"reason"},
		),
		CancellationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_provider_cancellation_total",
				Help: "Total number of superseded provider subscriptions cancelled",
			},
			[]string{"result"},
		),

		ResetRunTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_daily_reset_runs_total",
				Help: "Total number of daily reset sweeps",
			},
			[]string{"result"},
		),
		ResetSubscriptions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_daily_reset_subscriptions_total",
				Help: "Total number of subscriptions reset by the sweep",
			},
		),
		ResetDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_daily_reset_duration_seconds",
				Help:    "Duration of daily reset sweeps",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"},
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

var (
	defaultMetrics *CreditMetrics
	once           sync.Once
)

// GetMetrics returns the process-wide metrics instance.
func GetMetrics() *CreditMetrics {
	once.Do(func() {
		defaultMetrics = NewCreditMetrics()
	})
	return defaultMetrics
}
