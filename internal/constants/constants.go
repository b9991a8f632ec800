package constants

// Redis key prefixes
const (
	// RedisKeyLedgerLock per-user ledger mutex
	RedisKeyLedgerLock = "credit:lock:user:"
	// RedisKeyResetLock single-runner guard for the daily sweep
	RedisKeyResetLock = "credit:lock:daily_reset"
)

// Transaction types
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
	TransactionTypeRefund = "refund"
	TransactionTypeGrant  = "grant"
)

// Correlation tags written to credit_transactions.related_to
const (
	RelatedToSubscriptionActivation = "subscription_activation"
	RelatedToSubscriptionRenewal    = "subscription_renewal"
	RelatedToCreditPack             = "credit_pack"
)

// Subscription status
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// Credit pack status
const (
	CreditPackStatusCompleted = "completed"
)

// Payment provider
const (
	// ProviderDodo webhook_events.provider
	ProviderDodo = "dodo"
	// MetadataAuthUserID checkout metadata key carrying the auth subject
	MetadataAuthUserID = "clerkUserId"
	// DodoEnvironmentLive live_mode; anything else is test_mode
	DodoEnvironmentLive = "live_mode"
	DodoBaseURLLive     = "https://api.dodopayments.com"
	DodoBaseURLTest     = "https://test.dodopayments.com"
)

// Metric label values
const (
	ResultAllowed = "allowed"
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultIgnored = "ignored"
	ResultDup     = "duplicate"
)

// Anomaly reasons for credit_webhook_anomalies_total
const (
	AnomalyUnknownProduct       = "unknown_product"
	AnomalyUnresolvedUser       = "unresolved_user"
	AnomalySubscriptionNotFound = "subscription_not_found"
)

// Query limits
const (
	TransactionsDefaultLimit = 20
	TransactionsMaxLimit     = 100
)
