package alerts

import (
	"context"

	"github.com/fiffu/pricewatch/lib/models"
	"go.uber.org/zap"
)

// LogNotifier records each fired alert as a structured log line.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log}
}

func (n *LogNotifier) Notify(_ context.Context, product *models.Product, alert *models.PriceAlert) error {
	n.log.Sugar().Infow("Price alert triggered",
		"alert_id", alert.ID,
		"user_id", alert.UserID,
		"product_id", product.ID,
		"product", product.Name,
		"url", product.URL,
		"current_price", product.CurrentPrice.Float64,
		"target_price", alert.TargetPrice,
	)
	return nil
}
