package biz

import (
	"context"
	"time"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewBillingConfig,
	NewCustomerUseCase,
	NewUsageUseCase,
	NewWebhookUseCase,
	NewResetUseCase,
	NewCancellationUseCase,
)

// Transaction runs fn inside one database transaction. Repositories called with
// the ctx handed to fn join that transaction.
type Transaction interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serialises ledger writers for one key across replicas.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// LockFor is Lock with an explicit lease for long running holders.
	LockFor(ctx context.Context, key string, expiry time.Duration) (unlock func(), err error)
}
