package data

import (
	"context"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

type webhookDeliveryRepo struct {
	data *Data
	log  *log.Helper
}

// NewWebhookDeliveryRepo creates the webhook delivery log repo.
func NewWebhookDeliveryRepo(data *Data, logger log.Logger) biz.WebhookDeliveryRepo {
	return &webhookDeliveryRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *webhookDeliveryRepo) Begin(ctx context.Context, d *biz.WebhookDelivery) (*biz.WebhookDelivery, bool, error) {
	m := &model.WebhookEvent{
		WebhookEventID: uuid.New().String(),
		Provider:       d.Provider,
		DeliveryID:     d.ID,
		EventType:      d.EventType,
		Payload:        string(d.Payload),
	}
	result := r.data.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return nil, false, fmt.Errorf("record webhook delivery %s: %w", d.ID, result.Error)
	}
	if result.RowsAffected > 0 {
		return toBizDelivery(m), true, nil
	}

	var existing model.WebhookEvent
	err := r.data.DB(ctx).
		Where("provider = ? AND delivery_id = ?", d.Provider, d.ID).
		First(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("load webhook delivery %s: %w", d.ID, err)
	}
	return toBizDelivery(&existing), false, nil
}

func (r *webhookDeliveryRepo) MarkProcessed(ctx context.Context, provider, id, processingErr string) error {
	updates := map[string]interface{}{
		"processing_error": processingErr,
		"updated_at":       time.Now().UTC(),
	}
	if processingErr == "" {
		updates["processed_at"] = time.Now().UTC()
	} else {
		updates["processed_at"] = nil
	}
	err := r.data.DB(ctx).Model(&model.WebhookEvent{}).
		Where("provider = ? AND delivery_id = ?", provider, id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook delivery %s: %w", id, err)
	}
	return nil
}

func toBizDelivery(m *model.WebhookEvent) *biz.WebhookDelivery {
	return &biz.WebhookDelivery{
		ID:              m.DeliveryID,
		Provider:        m.Provider,
		EventType:       m.EventType,
		Payload:         []byte(m.Payload),
		ProcessedAt:     m.ProcessedAt,
		ProcessingError: m.ProcessingError,
		CreatedAt:       m.CreatedAt,
	}
}
