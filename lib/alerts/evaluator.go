package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fiffu/pricewatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier delivers the signal that an alert fired.
type Notifier interface {
	Notify(ctx context.Context, product *models.Product, alert *models.PriceAlert) error
}

type Evaluator struct {
	log      *zap.Logger
	notifier Notifier
	now      func() time.Time
}

func NewEvaluator(log *zap.Logger, notifier Notifier) *Evaluator {
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Evaluator{log, notifier, time.Now}
}

// Evaluate consumes every active alert on product whose target the current price has
// reached. It must run inside the transaction that set the current price. An alert is
// returned only if this call was the one that deactivated it.
func (e *Evaluator) Evaluate(ctx context.Context, tx *gorm.DB, product *models.Product) ([]models.PriceAlert, error) {
	if !product.CurrentPrice.Valid {
		return nil, nil
	}
	price := product.CurrentPrice.Float64

	var candidates models.PriceAlerts
	err := tx.WithContext(ctx).
		Where("product_id = ? AND is_active = ? AND target_price >= ?", product.ID, true, price).
		Order("id").
		Find(&candidates).
		Error
	if err != nil {
		return nil, fmt.Errorf("load alerts for product %d: %w", product.ID, err)
	}

	var fired []models.PriceAlert
	for _, alert := range candidates {
		triggeredAt := e.now().UTC()

		res := tx.WithContext(ctx).
			Model(&models.PriceAlert{}).
			Where("id = ? AND is_active = ?", alert.ID, true).
			Updates(map[string]any{
				"is_active":    false,
				"triggered_at": triggeredAt,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("trigger alert %d: %w", alert.ID, res.Error)
		}
		if res.RowsAffected != 1 {
			// Someone else got there first.
			continue
		}

		alert.IsActive = false
		alert.TriggeredAt = sql.NullTime{Time: triggeredAt, Valid: true}
		fired = append(fired, alert)
	}
	return fired, nil
}

// Notify sends one signal per fired alert. Delivery failures are logged, not returned;
// the alerts are already consumed.
func (e *Evaluator) Notify(ctx context.Context, product *models.Product, fired []models.PriceAlert) {
	for i := range fired {
		if err := e.notifier.Notify(ctx, product, &fired[i]); err != nil {
			e.log.Sugar().Errorw("Alert notification failed",
				"alert_id", fired[i].ID, "product_id", product.ID, "err", err)
		}
	}
}
