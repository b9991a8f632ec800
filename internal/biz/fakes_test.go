package biz

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"credit-service/internal/conf"
	"credit-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

const testInternalKey = "internal-secret"

// memStore backs every fake repository. Reads return copies so a use case only
// changes state through Create and Update.
type memStore struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	seq        int
	calls      int
	subs       map[string]*Subscription
	txns       []*CreditTransaction
	packs      map[string]*CreditPack
	customers  map[string]*Customer
	deliveries map[string]*WebhookDelivery
}

func newMemStore() *memStore {
	return &memStore{
		subs:       make(map[string]*Subscription),
		packs:      make(map[string]*CreditPack),
		customers:  make(map[string]*Customer),
		deliveries: make(map[string]*WebhookDelivery),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%04d", prefix, s.seq)
}

func (s *memStore) touch() {
	s.calls++
}

// ExecTx serializes transactions; there is no rollback.
func (s *memStore) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *memStore) subscription(userID string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.UserID == userID {
			cp := *sub
			return &cp
		}
	}
	return nil
}

func (s *memStore) putSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = s.nextID("sub")
	}
	cp := *sub
	s.subs[sub.ID] = &cp
}

func (s *memStore) ledger(userID string) []*CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CreditTransaction
	for _, t := range s.txns {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

type fakeSubRepo struct{ s *memStore }

func (r *fakeSubRepo) find(match func(*Subscription) bool) *Subscription {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	for _, sub := range r.s.subs {
		if match(sub) {
			cp := *sub
			return &cp
		}
	}
	return nil
}

func (r *fakeSubRepo) GetByUserID(_ context.Context, userID string, _ bool) (*Subscription, error) {
	return r.find(func(s *Subscription) bool { return s.UserID == userID }), nil
}

func (r *fakeSubRepo) GetByProviderSubscriptionID(_ context.Context, id string, _ bool) (*Subscription, error) {
	return r.find(func(s *Subscription) bool { return s.ProviderSubscriptionID == id }), nil
}

func (r *fakeSubRepo) Create(_ context.Context, sub *Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	for _, existing := range r.s.subs {
		if existing.UserID == sub.UserID {
			return fmt.Errorf("duplicate subscription for %s", sub.UserID)
		}
	}
	if sub.ID == "" {
		sub.ID = r.s.nextID("sub")
	}
	cp := *sub
	r.s.subs[sub.ID] = &cp
	return nil
}

func (r *fakeSubRepo) Update(_ context.Context, sub *Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	if _, ok := r.s.subs[sub.ID]; !ok {
		return fmt.Errorf("subscription %s not found", sub.ID)
	}
	cp := *sub
	r.s.subs[sub.ID] = &cp
	return nil
}

func (r *fakeSubRepo) ListActive(_ context.Context, afterID string, limit int) ([]*Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	var ids []string
	for id, sub := range r.s.subs {
		if sub.Status == constants.SubscriptionStatusActive && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*Subscription, 0, len(ids))
	for _, id := range ids {
		cp := *r.s.subs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeSubRepo) ResetDailyUsage(_ context.Context, id string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	sub, ok := r.s.subs[id]
	if !ok || sub.Status != constants.SubscriptionStatusActive || !sub.NeedsDailyReset(now) {
		return false, nil
	}
	sub.ResetDaily(now)
	return true, nil
}

func (r *fakeSubRepo) ReassignUser(_ context.Context, from, to string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	for _, sub := range r.s.subs {
		if sub.UserID == from {
			sub.UserID = to
		}
	}
	return nil
}

type fakeTxnRepo struct{ s *memStore }

func (r *fakeTxnRepo) Create(_ context.Context, txn *CreditTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	if txn.ID == "" {
		txn.ID = r.s.nextID("txn")
	}
	cp := *txn
	r.s.txns = append(r.s.txns, &cp)
	return nil
}

func (r *fakeTxnRepo) ListByUserID(_ context.Context, userID string, limit int) ([]*CreditTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	var out []*CreditTransaction
	for i := len(r.s.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.txns[i].UserID == userID {
			cp := *r.s.txns[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) ReassignUser(_ context.Context, from, to string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	var n int64
	for _, t := range r.s.txns {
		if t.UserID == from {
			t.UserID = to
			n++
		}
	}
	return n, nil
}

type fakePackRepo struct{ s *memStore }

func (r *fakePackRepo) GetByPaymentID(_ context.Context, paymentID string) (*CreditPack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	if p, ok := r.s.packs[paymentID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePackRepo) Create(_ context.Context, pack *CreditPack) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	if _, ok := r.s.packs[pack.ProviderPaymentID]; ok {
		return ErrDuplicatePayment
	}
	if pack.ID == "" {
		pack.ID = r.s.nextID("pack")
	}
	cp := *pack
	r.s.packs[pack.ProviderPaymentID] = &cp
	return nil
}

func (r *fakePackRepo) ReassignUser(_ context.Context, from, to string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	var n int64
	for _, p := range r.s.packs {
		if p.UserID == from {
			p.UserID = to
			n++
		}
	}
	return n, nil
}

type fakeCustomerRepo struct{ s *memStore }

func (r *fakeCustomerRepo) find(match func(*Customer) bool) *Customer {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	var found *Customer
	for _, c := range r.s.customers {
		if match(c) && (found == nil || c.ID < found.ID) {
			found = c
		}
	}
	if found == nil {
		return nil
	}
	cp := *found
	return &cp
}

func (r *fakeCustomerRepo) GetByAuthID(_ context.Context, authID string) (*Customer, error) {
	return r.find(func(c *Customer) bool { return c.AuthID == authID }), nil
}

func (r *fakeCustomerRepo) GetByProviderCustomerID(_ context.Context, id string) (*Customer, error) {
	return r.find(func(c *Customer) bool { return c.ProviderCustomerID == id }), nil
}

func (r *fakeCustomerRepo) GetByEmail(_ context.Context, email string) (*Customer, error) {
	return r.find(func(c *Customer) bool { return c.Email == email }), nil
}

func (r *fakeCustomerRepo) Create(_ context.Context, c *Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	if c.ID == "" {
		c.ID = r.s.nextID("cust")
	}
	cp := *c
	r.s.customers[c.ID] = &cp
	return nil
}

func (r *fakeCustomerRepo) Update(_ context.Context, c *Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch()
	cp := *c
	r.s.customers[c.ID] = &cp
	return nil
}

type fakeDeliveryRepo struct{ s *memStore }

func (r *fakeDeliveryRepo) Begin(_ context.Context, d *WebhookDelivery) (*WebhookDelivery, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := d.Provider + "/" + d.ID
	if existing, ok := r.s.deliveries[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *d
	r.s.deliveries[key] = &cp
	out := cp
	return &out, true, nil
}

func (r *fakeDeliveryRepo) MarkProcessed(_ context.Context, provider, id, processingErr string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[provider+"/"+id]
	if !ok {
		return fmt.Errorf("delivery %s not found", id)
	}
	d.ProcessingError = processingErr
	if processingErr == "" {
		now := time.Now()
		d.ProcessedAt = &now
	} else {
		d.ProcessedAt = nil
	}
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	keys     []string
	expiries map[string]time.Duration
	err      error
}

func (l *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	return l.LockFor(ctx, key, 0)
}

func (l *fakeLocker) LockFor(_ context.Context, key string, expiry time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	if l.expiries == nil {
		l.expiries = make(map[string]time.Duration)
	}
	l.expiries[key] = expiry
	return func() {}, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	checkouts []*CheckoutRequest
	portals   []string
	cancelled []string
	err       error
}

func (p *fakeProvider) CreateCheckout(_ context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.checkouts = append(p.checkouts, req)
	return &CheckoutSession{SessionID: "cks_1", CheckoutURL: "https://checkout.example.com/cks_1"}, nil
}

func (p *fakeProvider) CreatePortalSession(_ context.Context, customerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.portals = append(p.portals, customerID)
	return "https://portal.example.com/" + customerID, nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancelled = append(p.cancelled, id)
	return nil
}

type fakeCanceller struct {
	mu  sync.Mutex
	ids []string
}

func (c *fakeCanceller) ScheduleCancellation(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	return nil
}

// testEnv wires every use case over one memStore and a settable clock.
type testEnv struct {
	store     *memStore
	config    *BillingConfig
	locker    *fakeLocker
	provider  *fakeProvider
	canceller *fakeCanceller
	usage     *UsageUseCase
	customers *CustomerUseCase
	webhooks  *WebhookUseCase
	reset     *ResetUseCase
	clock     time.Time
}

func newTestConfig(t *testing.T) *BillingConfig {
	t.Helper()
	config, err := NewBillingConfig(&conf.Bootstrap{
		Billing: &conf.Billing{
			InternalKey:    testInternalKey,
			ResetBatchSize: 2,
			Products: &conf.Products{
				Starter:          "prod_starter",
				Pro:              "prod_pro",
				Scale:            "prod_scale",
				CreditPackSmall:  "prod_pack_50",
				CreditPackMedium: "prod_pack_150",
				CreditPackLarge:  "prod_pack_400",
			},
		},
		Dodo: &conf.Dodo{ReturnURL: "https://app.example.com/settings/billing"},
	})
	require.NoError(t, err)
	return config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	env := &testEnv{
		store:     newMemStore(),
		config:    newTestConfig(t),
		locker:    &fakeLocker{},
		provider:  &fakeProvider{},
		canceller: &fakeCanceller{},
		clock:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return env.clock }

	subRepo := &fakeSubRepo{env.store}
	txnRepo := &fakeTxnRepo{env.store}
	packRepo := &fakePackRepo{env.store}
	customerRepo := &fakeCustomerRepo{env.store}
	deliveryRepo := &fakeDeliveryRepo{env.store}

	env.customers = NewCustomerUseCase(customerRepo, subRepo, txnRepo, packRepo, env.store, env.provider, env.config, logger)
	env.customers.now = now
	env.usage = NewUsageUseCase(subRepo, txnRepo, customerRepo, env.store, env.locker, env.config, logger)
	env.usage.now = now
	env.webhooks = NewWebhookUseCase(env.customers, subRepo, txnRepo, packRepo, deliveryRepo, env.store, env.locker, env.canceller, env.config, logger)
	env.webhooks.now = now
	env.reset = NewResetUseCase(subRepo, env.locker, env.config, logger)
	env.reset.now = now
	return env
}

// seedSubscription stores an active subscription on plan for userID, reset at the env clock.
func (e *testEnv) seedSubscription(userID string, tier PlanTier, balance float64) *Subscription {
	plan, _ := PlanFor(tier)
	sub := newSubscription(userID, plan, e.clock, e.clock.AddDate(0, 1, 0))
	sub.CurrentBalance = balance
	sub.ProviderSubscriptionID = "dodo_sub_" + userID
	sub.ProviderCustomerID = "dodo_cus_" + userID
	e.store.putSubscription(sub)
	return e.store.subscription(userID)
}

// assertLedgerConsistent checks BalanceAfter = BalanceBefore + Amount on every row
// and that the rows chain into the final balance.
func assertLedgerConsistent(t *testing.T, e *testEnv, userID string) {
	t.Helper()
	rows := e.store.ledger(userID)
	for i, row := range rows {
		require.InDelta(t, row.BalanceBefore+row.Amount, row.BalanceAfter, 1e-9, "row %d", i)
		if i > 0 {
			require.InDelta(t, rows[i-1].BalanceAfter, row.BalanceBefore, 1e-9, "row %d does not chain", i)
		}
	}
	if sub := e.store.subscription(userID); sub != nil && len(rows) > 0 {
		require.InDelta(t, rows[len(rows)-1].BalanceAfter, sub.CurrentBalance, 1e-9)
	}
}

func (e *testEnv) seedCustomer(t *testing.T, c *Customer) *Customer {
	t.Helper()
	require.NoError(t, (&fakeCustomerRepo{e.store}).Create(context.Background(), c))
	return c
}

func (e *testEnv) customerByAuthID(authID string) *Customer {
	c, _ := (&fakeCustomerRepo{e.store}).GetByAuthID(context.Background(), authID)
	return c
}
