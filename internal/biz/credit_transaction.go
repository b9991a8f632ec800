package biz

import (
	"context"
	"time"
)

// CreditTransaction is an immutable ledger row. BalanceAfter = BalanceBefore + Amount.
type CreditTransaction struct {
	ID            string
	UserID        string
	Type          string
	Amount        float64
	Description   string
	RelatedTo     string
	InputTokens   *int64
	OutputTokens  *int64
	BalanceBefore float64
	BalanceAfter  float64
	CreatedAt     time.Time
}

// CreditTransactionRepo is append-only; ReassignUser only re-keys rows.
type CreditTransactionRepo interface {
	Create(ctx context.Context, txn *CreditTransaction) error
	// ListByUserID returns the newest rows first.
	ListByUserID(ctx context.Context, userID string, limit int) ([]*CreditTransaction, error)
	ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error)
}

// ledgerEntry describes one balance mutation before it is applied.
type ledgerEntry struct {
	Type         string
	Amount       float64
	Description  string
	RelatedTo    string
	InputTokens  *int64
	OutputTokens *int64
}

// postLedger applies entry to sub and appends the matching ledger row. The
// caller persists sub.
func postLedger(ctx context.Context, repo CreditTransactionRepo, sub *Subscription, entry ledgerEntry, now time.Time) (*CreditTransaction, error) {
	before := sub.CurrentBalance
	after := before + entry.Amount
	sub.CurrentBalance = after
	sub.UpdatedAt = now

	txn := &CreditTransaction{
		UserID:        sub.UserID,
		Type:          entry.Type,
		Amount:        entry.Amount,
		Description:   entry.Description,
		RelatedTo:     entry.RelatedTo,
		InputTokens:   entry.InputTokens,
		OutputTokens:  entry.OutputTokens,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     now,
	}
	if err := repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// postRebase records a balance that was set outright, as plan grants do.
func postRebase(ctx context.Context, repo CreditTransactionRepo, sub *Subscription, balanceBefore float64, typ, description, relatedTo string, now time.Time) (*CreditTransaction, error) {
	txn := &CreditTransaction{
		UserID:        sub.UserID,
		Type:          typ,
		Amount:        sub.CurrentBalance - balanceBefore,
		Description:   description,
		RelatedTo:     relatedTo,
		BalanceBefore: balanceBefore,
		BalanceAfter:  sub.CurrentBalance,
		CreatedAt:     now,
	}
	if err := repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}
