// Package v1 holds the HTTP JSON contract of the credit service.
package v1

// CheckCreditsRequest is sent by the AI gateway before a model call.
type CheckCreditsRequest struct {
	InternalKey string `json:"internal_key"`
	UserID      string `json:"user_id"`
}

type CheckCreditsReply struct {
	Allowed               bool    `json:"allowed"`
	Error                 string  `json:"error,omitempty"`
	Message               string  `json:"message,omitempty"`
	CurrentBalance        float64 `json:"current_balance"`
	DailyCreditsRemaining float64 `json:"daily_credits_remaining"`
	DailyTokensRemaining  int64   `json:"daily_tokens_remaining"`
}

// DeductCreditsRequest bills the tokens of a completed model call.
type DeductCreditsRequest struct {
	InternalKey  string `json:"internal_key"`
	UserID       string `json:"user_id"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	Description  string `json:"description,omitempty"`
	RelatedTo    string `json:"related_to,omitempty"`
}

type DeductCreditsReply struct {
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	Message          string  `json:"message,omitempty"`
	CreditsDeducted  float64 `json:"credits_deducted"`
	BalanceAfter     float64 `json:"balance_after"`
	DailyCreditsUsed float64 `json:"daily_credits_used"`
	DailyTokensUsed  int64   `json:"daily_tokens_used"`
}

// AddCreditsRequest grants credits to an existing subscription.
type AddCreditsRequest struct {
	InternalKey string  `json:"internal_key"`
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type,omitempty"`
	Description string  `json:"description,omitempty"`
	RelatedTo   string  `json:"related_to,omitempty"`
}

type AddCreditsReply struct {
	Applied     bool         `json:"applied"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type Transaction struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	RelatedTo     string  `json:"related_to,omitempty"`
	InputTokens   *int64  `json:"input_tokens,omitempty"`
	OutputTokens  *int64  `json:"output_tokens,omitempty"`
	BalanceBefore float64 `json:"balance_before"`
	BalanceAfter  float64 `json:"balance_after"`
	CreatedAt     string  `json:"created_at"`
}
