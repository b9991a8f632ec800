package v1

type GetUsageRequest struct{}

type GetUsageReply struct {
	HasSubscription       bool    `json:"has_subscription"`
	Plan                  string  `json:"plan,omitempty"`
	PlanName              string  `json:"plan_name,omitempty"`
	Status                string  `json:"status,omitempty"`
	CreditsMonthly        int     `json:"credits_monthly"`
	CurrentBalance        float64 `json:"current_balance"`
	DailyCap              float64 `json:"daily_cap"`
	DailyCreditsUsed      float64 `json:"daily_credits_used"`
	DailyCreditsRemaining float64 `json:"daily_credits_remaining"`
	DailyTokenLimit       int64   `json:"daily_token_limit"`
	DailyTokensUsed       int64   `json:"daily_tokens_used"`
	CurrentPeriodEnd      string  `json:"current_period_end,omitempty"`
}

type ListTransactionsRequest struct {
	Limit int `json:"limit"`
}

type ListTransactionsReply struct {
	Transactions []*Transaction `json:"transactions"`
}

type SyncCustomerRequest struct{}

type SyncCustomerReply struct {
	Synced            bool   `json:"synced"`
	Reason            string `json:"reason,omitempty"`
	TransactionsMoved int64  `json:"transactions_moved,omitempty"`
	PacksMoved        int64  `json:"packs_moved,omitempty"`
}

type CreateCheckoutRequest struct {
	ProductID string `json:"product_id"`
	ReturnURL string `json:"return_url,omitempty"`
}

type CreateCheckoutReply struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type CreatePortalSessionRequest struct{}

type CreatePortalSessionReply struct {
	Link string `json:"link"`
}
