package biz

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicatePayment is returned by CreditPackRepo.Create when the payment id
// was already recorded.
var ErrDuplicatePayment = errors.New("credit pack payment already recorded")

// CreditPack records a completed one-time top-up.
type CreditPack struct {
	ID                string
	UserID            string
	PackSize          PackSize
	CreditsGranted    int
	ProviderPaymentID string
	Status            string
	CreatedAt         time.Time
}

type CreditPackRepo interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*CreditPack, error)
	Create(ctx context.Context, pack *CreditPack) error
	ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error)
}
