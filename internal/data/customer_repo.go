package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type customerRepo struct {
	data *Data
	log  *log.Helper
}

// NewCustomerRepo creates the customer mapping repo.
func NewCustomerRepo(data *Data, logger log.Logger) biz.CustomerRepo {
	return &customerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *customerRepo) getBy(ctx context.Context, column, value string) (*biz.Customer, error) {
	var m model.Customer
	err := r.data.DB(ctx).Where(column+" = ?", value).Order("created_at ASC").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer by %s: %w", column, err)
	}
	return toBizCustomer(&m), nil
}

func (r *customerRepo) GetByAuthID(ctx context.Context, authID string) (*biz.Customer, error) {
	return r.getBy(ctx, "auth_id", authID)
}

func (r *customerRepo) GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*biz.Customer, error) {
	return r.getBy(ctx, "provider_customer_id", providerCustomerID)
}

func (r *customerRepo) GetByEmail(ctx context.Context, email string) (*biz.Customer, error) {
	return r.getBy(ctx, "email", email)
}

func (r *customerRepo) Create(ctx context.Context, c *biz.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	m := &model.Customer{
		CustomerID:         c.ID,
		AuthID:             c.AuthID,
		Email:              c.Email,
		ProviderCustomerID: c.ProviderCustomerID,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create customer %s: %w", c.AuthID, err)
	}
	c.CreatedAt = m.CreatedAt
	return nil
}

func (r *customerRepo) Update(ctx context.Context, c *biz.Customer) error {
	err := r.data.DB(ctx).Model(&model.Customer{}).
		Where("customer_id = ?", c.ID).
		Updates(map[string]interface{}{
			"auth_id":              c.AuthID,
			"email":                c.Email,
			"provider_customer_id": c.ProviderCustomerID,
			"updated_at":           time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	return nil
}

func toBizCustomer(m *model.Customer) *biz.Customer {
	return &biz.Customer{
		ID:                 m.CustomerID,
		AuthID:             m.AuthID,
		Email:              m.Email,
		ProviderCustomerID: m.ProviderCustomerID,
		CreatedAt:          m.CreatedAt,
	}
}
