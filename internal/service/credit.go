package service

import (
	"context"
	"time"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditService is the internal usage gate called by the AI gateway.
type CreditService struct {
	uc  *biz.UsageUseCase
	log *log.Helper
}

func NewCreditService(uc *biz.UsageUseCase, logger log.Logger) *CreditService {
	return &CreditService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CheckCredits is the advisory pre-flight check.
func (s *CreditService) CheckCredits(ctx context.Context, req *v1.CheckCreditsRequest) (*v1.CheckCreditsReply, error) {
	res, err := s.uc.CheckCredits(ctx, req.InternalKey, req.UserID)
	if err != nil {
		return nil, err
	}
	return &v1.CheckCreditsReply{
		Allowed:               res.Allowed,
		Error:                 string(res.Error),
		Message:               res.Error.Message(),
		CurrentBalance:        res.CurrentBalance,
		DailyCreditsRemaining: res.DailyCreditsRemaining,
		DailyTokensRemaining:  res.DailyTokensRemaining,
	}, nil
}

// DeductCredits bills the tokens of a completed call.
func (s *CreditService) DeductCredits(ctx context.Context, req *v1.DeductCreditsRequest) (*v1.DeductCreditsReply, error) {
	res, err := s.uc.DeductCredits(ctx, req.InternalKey, &biz.DeductRequest{
		UserID:       req.UserID,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		Description:  req.Description,
		RelatedTo:    req.RelatedTo,
	})
	if err != nil {
		return nil, err
	}
	return &v1.DeductCreditsReply{
		Success:          res.Success,
		Error:            string(res.Error),
		Message:          res.Error.Message(),
		CreditsDeducted:  res.CreditsDeducted,
		BalanceAfter:     res.BalanceAfter,
		DailyCreditsUsed: res.DailyCreditsUsed,
		DailyTokensUsed:  res.DailyTokensUsed,
	}, nil
}

func (s *CreditService) AddCredits(ctx context.Context, req *v1.AddCreditsRequest) (*v1.AddCreditsReply, error) {
	txn, err := s.uc.AddCredits(ctx, req.InternalKey, &biz.AddCreditsRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		RelatedTo:   req.RelatedTo,
	})
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return &v1.AddCreditsReply{}, nil
	}
	return &v1.AddCreditsReply{Applied: true, Transaction: toTransaction(txn)}, nil
}

func toTransaction(t *biz.CreditTransaction) *v1.Transaction {
	return &v1.Transaction{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        t.Amount,
		Description:   t.Description,
		RelatedTo:     t.RelatedTo,
		InputTokens:   t.InputTokens,
		OutputTokens:  t.OutputTokens,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     formatTime(t.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
