package data

import (
	"context"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

type creditTransactionRepo struct {
	data *Data
	log  *log.Helper
}

// NewCreditTransactionRepo creates the ledger repo.
func NewCreditTransactionRepo(data *Data, logger log.Logger) biz.CreditTransactionRepo {
	return &creditTransactionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *creditTransactionRepo) Create(ctx context.Context, txn *biz.CreditTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	m := &model.CreditTransaction{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Type:          txn.Type,
		Amount:        txn.Amount,
		Description:   txn.Description,
		RelatedTo:     txn.RelatedTo,
		InputTokens:   txn.InputTokens,
		OutputTokens:  txn.OutputTokens,
		BalanceBefore: txn.BalanceBefore,
		BalanceAfter:  txn.BalanceAfter,
		CreatedAt:     txn.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create credit transaction for user %s: %w", txn.UserID, err)
	}
	txn.CreatedAt = m.CreatedAt
	return nil
}

func (r *creditTransactionRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*biz.CreditTransaction, error) {
	var ms []model.CreditTransaction
	err := r.data.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("transaction_id DESC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list credit transactions for user %s: %w", userID, err)
	}
	txns := make([]*biz.CreditTransaction, 0, len(ms))
	for i := range ms {
		txns = append(txns, toBizCreditTransaction(&ms[i]))
	}
	return txns, nil
}

func (r *creditTransactionRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	result := r.data.DB(ctx).Model(&model.CreditTransaction{}).
		Where("user_id = ?", fromUserID).
		Update("user_id", toUserID)
	if result.Error != nil {
		return 0, fmt.Errorf("reassign credit transactions %s -> %s: %w", fromUserID, toUserID, result.Error)
	}
	return result.RowsAffected, nil
}

func toBizCreditTransaction(m *model.CreditTransaction) *biz.CreditTransaction {
	return &biz.CreditTransaction{
		ID:            m.TransactionID,
		UserID:        m.UserID,
		Type:          m.Type,
		Amount:        m.Amount,
		Description:   m.Description,
		RelatedTo:     m.RelatedTo,
		InputTokens:   m.InputTokens,
		OutputTokens:  m.OutputTokens,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		CreatedAt:     m.CreatedAt,
	}
}
