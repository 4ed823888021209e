package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/pricewatch/lib/models"
	"gorm.io/gorm"
)

type Stats struct {
	ProductID    uint       `json:"product_id"`
	CurrentPrice *float64   `json:"current_price"`
	MinPrice     float64    `json:"min_price"`
	MaxPrice     float64    `json:"max_price"`
	AvgPrice     float64    `json:"avg_price"`
	PriceChanges int64      `json:"price_changes"`
	LastChecked  *time.Time `json:"last_checked"`
}

type historyAggregate struct {
	MinPrice sql.NullFloat64
	MaxPrice sql.NullFloat64
	AvgPrice sql.NullFloat64
	Count    int64
}

// GetStats summarises a product's whole price history. It returns nil when the product
// does not exist or has never been priced.
func (m *Monitor) GetStats(ctx context.Context, productID uint) (*Stats, error) {
	db := m.db.WithContext(ctx)

	var product models.Product
	err := db.First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", productID, err)
	}

	var agg historyAggregate
	err = db.Model(&models.PriceHistory{}).
		Select("MIN(price) AS min_price, MAX(price) AS max_price, AVG(price) AS avg_price, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).
		Error
	if err != nil {
		return nil, fmt.Errorf("aggregate history of product %d: %w", productID, err)
	}
	if agg.Count == 0 {
		return nil, nil
	}

	stats := &Stats{
		ProductID:    productID,
		MinPrice:     agg.MinPrice.Float64,
		MaxPrice:     agg.MaxPrice.Float64,
		AvgPrice:     agg.AvgPrice.Float64,
		PriceChanges: agg.Count,
	}
	if product.CurrentPrice.Valid {
		stats.CurrentPrice = &product.CurrentPrice.Float64
	}
	if product.LastChecked.Valid {
		stats.LastChecked = &product.LastChecked.Time
	}
	return stats, nil
}
