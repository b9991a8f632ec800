package data

import (
	"context"
	"errors"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type creditPackRepo struct {
	data *Data
	log  *log.Helper
}

// NewCreditPackRepo creates the credit pack repo.
func NewCreditPackRepo(data *Data, logger log.Logger) biz.CreditPackRepo {
	return &creditPackRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *creditPackRepo) GetByPaymentID(ctx context.Context, paymentID string) (*biz.CreditPack, error) {
	var m model.CreditPack
	err := r.data.DB(ctx).Where("provider_payment_id = ?", paymentID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credit pack by payment %s: %w", paymentID, err)
	}
	return &biz.CreditPack{
		ID:                m.CreditPackID,
		UserID:            m.UserID,
		PackSize:          biz.PackSize(m.PackSize),
		CreditsGranted:    m.CreditsGranted,
		ProviderPaymentID: m.ProviderPaymentID,
		Status:            m.Status,
		CreatedAt:         m.CreatedAt,
	}, nil
}

// Create returns biz.ErrDuplicatePayment when the payment id is already recorded.
func (r *creditPackRepo) Create(ctx context.Context, pack *biz.CreditPack) error {
	if pack.ID == "" {
		pack.ID = uuid.New().String()
	}
	m := &model.CreditPack{
		CreditPackID:      pack.ID,
		UserID:            pack.UserID,
		PackSize:          int(pack.PackSize),
		CreditsGranted:    pack.CreditsGranted,
		ProviderPaymentID: pack.ProviderPaymentID,
		Status:            pack.Status,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return biz.ErrDuplicatePayment
		}
		return fmt.Errorf("create credit pack for payment %s: %w", pack.ProviderPaymentID, err)
	}
	pack.CreatedAt = m.CreatedAt
	return nil
}

func (r *creditPackRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	result := r.data.DB(ctx).Model(&model.CreditPack{}).
		Where("user_id = ?", fromUserID).
		Update("user_id", toUserID)
	if result.Error != nil {
		return 0, fmt.Errorf("reassign credit packs %s -> %s: %w", fromUserID, toUserID, result.Error)
	}
	return result.RowsAffected, nil
}
