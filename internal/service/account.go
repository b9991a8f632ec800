package service

import (
	"context"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// AccountService serves the signed-in user's usage, history and billing links.
type AccountService struct {
	usage     *biz.UsageUseCase
	customers *biz.CustomerUseCase
	identity  *identityResolver
	log       *log.Helper
}

func NewAccountService(c *conf.Bootstrap, usage *biz.UsageUseCase, customers *biz.CustomerUseCase, logger log.Logger) *AccountService {
	return &AccountService{
		usage:     usage,
		customers: customers,
		identity:  newIdentityResolver(c),
		log:       log.NewHelper(logger),
	}
}

func (s *AccountService) GetUsage(ctx context.Context, _ *v1.GetUsageRequest) (*v1.GetUsageReply, error) {
	id, err := s.identity.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.usage.GetUserUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !view.HasSubscription {
		return &v1.GetUsageReply{}, nil
	}

	remaining := view.DailyCap - view.DailyCreditsUsed
	if remaining < 0 {
		remaining = 0
	}
	return &v1.GetUsageReply{
		HasSubscription:       true,
		Plan:                  string(view.Plan),
		PlanName:              view.Plan.DisplayName(),
		Status:                view.Status,
		CreditsMonthly:        view.CreditsMonthly,
		CurrentBalance:        view.CurrentBalance,
		DailyCap:              view.DailyCap,
		DailyCreditsUsed:      view.DailyCreditsUsed,
		DailyCreditsRemaining: remaining,
		DailyTokenLimit:       view.DailyTokenLimit,
		DailyTokensUsed:       view.DailyTokensUsed,
		CurrentPeriodEnd:      formatTime(view.CurrentPeriodEnd),
	}, nil
}

func (s *AccountService) ListTransactions(ctx context.Context, req *v1.ListTransactionsRequest) (*v1.ListTransactionsReply, error) {
	id, err := s.identity.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	txns, err := s.usage.GetTransactions(ctx, id, req.Limit)
	if err != nil {
		return nil, err
	}
	reply := &v1.ListTransactionsReply{Transactions: make([]*v1.Transaction, 0, len(txns))}
	for _, t := range txns {
		reply.Transactions = append(reply.Transactions, toTransaction(t))
	}
	return reply, nil
}

func (s *AccountService) SyncCustomer(ctx context.Context, _ *v1.SyncCustomerRequest) (*v1.SyncCustomerReply, error) {
	id, err := s.identity.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.customers.SyncCustomerMapping(ctx, id)
	if err != nil {
		return nil, err
	}
	return &v1.SyncCustomerReply{
		Synced:            res.Synced,
		Reason:            res.Reason,
		TransactionsMoved: res.TransactionsMoved,
		PacksMoved:        res.PacksMoved,
	}, nil
}

func (s *AccountService) CreateCheckout(ctx context.Context, req *v1.CreateCheckoutRequest) (*v1.CreateCheckoutReply, error) {
	id, err := s.identity.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.customers.CreateCheckout(ctx, id, req.ProductID, req.ReturnURL)
	if err != nil {
		return nil, err
	}
	return &v1.CreateCheckoutReply{SessionID: session.SessionID, CheckoutURL: session.CheckoutURL}, nil
}

func (s *AccountService) CreatePortalSession(ctx context.Context, _ *v1.CreatePortalSessionRequest) (*v1.CreatePortalSessionReply, error) {
	id, err := s.identity.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	link, err := s.customers.CreatePortalSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &v1.CreatePortalSessionReply{Link: link}, nil
}
