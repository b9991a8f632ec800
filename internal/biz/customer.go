package biz

import (
	"context"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// Customer binds an auth subject to a payment provider customer.
type Customer struct {
	ID                 string
	AuthID             string
	Email              string
	ProviderCustomerID string
	CreatedAt          time.Time
}

// CustomerRepo returns nil, nil when a row is not found.
type CustomerRepo interface {
	GetByAuthID(ctx context.Context, authID string) (*Customer, error)
	GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
}

// Identity is the authenticated end user of the public API.
type Identity struct {
	UserID string
	Email  string
}

// CheckoutRequest asks the provider for a hosted checkout page.
type CheckoutRequest struct {
	ProductID  string
	Quantity   int
	CustomerID string
	Email      string
	Metadata   map[string]string
	ReturnURL  string
}

type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// PaymentProvider is the outbound payment provider API.
type PaymentProvider interface {
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, providerCustomerID string) (string, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error
}

// SyncResult reports the outcome of SyncCustomerMapping.
type SyncResult struct {
	Synced            bool
	Reason            string
	TransactionsMoved int64
	PacksMoved        int64
}

// CustomerUseCase owns the customer directory.
type CustomerUseCase struct {
	repo     CustomerRepo
	subRepo  SubscriptionRepo
	txnRepo  CreditTransactionRepo
	packRepo CreditPackRepo
	tx       Transaction
	provider PaymentProvider
	config   *BillingConfig
	log      *log.Helper
	now      func() time.Time
}

func NewCustomerUseCase(
	repo CustomerRepo,
	subRepo SubscriptionRepo,
	txnRepo CreditTransactionRepo,
	packRepo CreditPackRepo,
	tx Transaction,
	provider PaymentProvider,
	config *BillingConfig,
	logger log.Logger,
) *CustomerUseCase {
	return &CustomerUseCase{
		repo:     repo,
		subRepo:  subRepo,
		txnRepo:  txnRepo,
		packRepo: packRepo,
		tx:       tx,
		provider: provider,
		config:   config,
		log:      log.NewHelper(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ensure finds or creates the customer for authID and attaches the provider
// customer id. It joins the caller's transaction when ctx carries one.
func (uc *CustomerUseCase) Ensure(ctx context.Context, authID, providerCustomerID, email string) (*Customer, error) {
	c, err := uc.repo.GetByAuthID(ctx, authID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		changed := false
		if providerCustomerID != "" && c.ProviderCustomerID != providerCustomerID {
			c.ProviderCustomerID = providerCustomerID
			changed = true
		}
		if c.Email == "" && email != "" {
			c.Email = email
			changed = true
		}
		if changed {
			if err := uc.repo.Update(ctx, c); err != nil {
				return nil, err
			}
		}
		return c, nil
	}

	if providerCustomerID != "" {
		c, err = uc.repo.GetByProviderCustomerID(ctx, providerCustomerID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			if c.AuthID != "" && c.AuthID != authID {
				uc.log.Warnf("re-binding provider customer %s from %s to %s", providerCustomerID, c.AuthID, authID)
			}
			c.AuthID = authID
			if c.Email == "" {
				c.Email = email
			}
			if err := uc.repo.Update(ctx, c); err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	c = &Customer{
		AuthID:             authID,
		Email:              email,
		ProviderCustomerID: providerCustomerID,
		CreatedAt:          uc.now(),
	}
	if err := uc.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveUserID maps provider event data to an auth subject. Precedence:
// explicit metadata, then the provider customer id, then the email address.
// An empty result means the event cannot be attributed.
func (uc *CustomerUseCase) ResolveUserID(ctx context.Context, metadataAuthID, providerCustomerID, email string) (string, error) {
	if metadataAuthID != "" {
		return metadataAuthID, nil
	}
	if providerCustomerID != "" {
		c, err := uc.repo.GetByProviderCustomerID(ctx, providerCustomerID)
		if err != nil {
			return "", err
		}
		if c != nil && c.AuthID != "" {
			return c.AuthID, nil
		}
	}
	if email != "" {
		c, err := uc.repo.GetByEmail(ctx, email)
		if err != nil {
			return "", err
		}
		if c != nil && c.AuthID != "" {
			return c.AuthID, nil
		}
	}
	return "", nil
}

// lookup finds the identity's customer by auth id, then by email.
func (uc *CustomerUseCase) lookup(ctx context.Context, id Identity) (*Customer, error) {
	c, err := uc.repo.GetByAuthID(ctx, id.UserID)
	if err != nil || c != nil {
		return c, err
	}
	if id.Email == "" {
		return nil, nil
	}
	return uc.repo.GetByEmail(ctx, id.Email)
}

// SyncCustomerMapping re-keys a subscription stored under the provider customer
// id (webhook arrived before the user was known) to the auth subject.
func (uc *CustomerUseCase) SyncCustomerMapping(ctx context.Context, id Identity) (*SyncResult, error) {
	if id.UserID == "" {
		return nil, creditErrors.ErrUnauthenticated()
	}

	result := &SyncResult{}
	err := uc.tx.ExecTx(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetByUserID(ctx, id.UserID, false)
		if err != nil {
			return err
		}
		if sub != nil {
			result.Synced = true
			result.Reason = "already_linked"
			return nil
		}

		c, err := uc.repo.GetByAuthID(ctx, id.UserID)
		if err != nil {
			return err
		}
		if c == nil && id.Email != "" {
			c, err = uc.repo.GetByEmail(ctx, id.Email)
			if err != nil {
				return err
			}
			if c != nil {
				c.AuthID = id.UserID
				if err := uc.repo.Update(ctx, c); err != nil {
					return err
				}
			}
		}
		if c == nil || c.ProviderCustomerID == "" {
			result.Reason = "customer_not_found"
			return nil
		}

		orphan, err := uc.subRepo.GetByUserID(ctx, c.ProviderCustomerID, true)
		if err != nil {
			return err
		}
		if orphan == nil {
			result.Reason = "subscription_not_found"
			return nil
		}
		if err := uc.subRepo.ReassignUser(ctx, c.ProviderCustomerID, id.UserID); err != nil {
			return err
		}
		if result.TransactionsMoved, err = uc.txnRepo.ReassignUser(ctx, c.ProviderCustomerID, id.UserID); err != nil {
			return err
		}
		if result.PacksMoved, err = uc.packRepo.ReassignUser(ctx, c.ProviderCustomerID, id.UserID); err != nil {
			return err
		}
		result.Synced = true
		return nil
	})
	if err != nil {
		uc.log.Errorf("SyncCustomerMapping failed: user_id=%s, error=%v", id.UserID, err)
		return nil, creditErrors.ErrLedgerStorage(err)
	}
	if result.TransactionsMoved > 0 || result.PacksMoved > 0 {
		uc.log.Infof("customer mapping synced: user_id=%s, transactions=%d, packs=%d", id.UserID, result.TransactionsMoved, result.PacksMoved)
	}
	return result, nil
}

// CreateCheckout opens a hosted checkout for a configured plan or pack.
// Unknown users are pre-registered so the webhook can attribute the payment.
func (uc *CustomerUseCase) CreateCheckout(ctx context.Context, id Identity, productID, returnURL string) (*CheckoutSession, error) {
	if id.UserID == "" {
		return nil, creditErrors.ErrUnauthenticated()
	}
	if !uc.config.IsKnownProduct(productID) {
		return nil, creditErrors.ErrUnknownProduct(productID)
	}

	c, err := uc.lookup(ctx, id)
	if err != nil {
		return nil, creditErrors.ErrLedgerStorage(err)
	}
	if c == nil {
		c = &Customer{AuthID: id.UserID, Email: id.Email, CreatedAt: uc.now()}
		if err := uc.repo.Create(ctx, c); err != nil {
			return nil, creditErrors.ErrLedgerStorage(err)
		}
		uc.log.Infof("pre-registered customer for checkout: user_id=%s", id.UserID)
	}

	if returnURL == "" {
		returnURL = uc.config.ReturnURL
	}
	req := &CheckoutRequest{
		ProductID:  productID,
		Quantity:   1,
		CustomerID: c.ProviderCustomerID,
		Email:      id.Email,
		Metadata:   map[string]string{constants.MetadataAuthUserID: id.UserID},
		ReturnURL:  returnURL,
	}
	session, err := uc.provider.CreateCheckout(ctx, req)
	if err != nil {
		uc.log.Errorf("CreateCheckout failed: user_id=%s, product_id=%s, error=%v", id.UserID, productID, err)
		return nil, err
	}
	return session, nil
}

// CreatePortalSession returns a provider-hosted billing portal link.
func (uc *CustomerUseCase) CreatePortalSession(ctx context.Context, id Identity) (string, error) {
	if id.UserID == "" {
		return "", creditErrors.ErrUnauthenticated()
	}
	c, err := uc.lookup(ctx, id)
	if err != nil {
		return "", creditErrors.ErrLedgerStorage(err)
	}
	if c == nil || c.ProviderCustomerID == "" {
		return "", creditErrors.ErrCustomerNotFound()
	}
	return uc.provider.CreatePortalSession(ctx, c.ProviderCustomerID)
}
