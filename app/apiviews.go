package app

import (
	"time"

	"github.com/fiffu/pricewatch/lib/extract"
	"github.com/fiffu/pricewatch/lib/monitor"
)

type PriceView struct {
	ProductID   uint    `json:"product_id,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Price       float64 `json:"price"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	Timestamp   string  `json:"timestamp"`
}

type StatsView struct {
	ProductID    uint     `json:"product_id"`
	CurrentPrice *float64 `json:"current_price"`
	MinPrice     float64  `json:"min_price"`
	MaxPrice     float64  `json:"max_price"`
	AvgPrice     float64  `json:"avg_price"`
	PriceChanges int64    `json:"price_changes"`
	LastChecked  *string  `json:"last_checked"`
}

type BatchView struct {
	Checked  int         `json:"checked"`
	Products []PriceView `json:"products"`
}

func (view PriceView) From(productID uint, result *extract.Result) PriceView {
	return PriceView{
		ProductID: productID,
		Price:     result.Price,
		Title:     result.Title,
		Source:    result.Source,
		Timestamp: formatTime(result.Timestamp),
	}
}

func (view PriceView) FromCheck(check monitor.CheckResult) PriceView {
	v := PriceView{}.From(check.ProductID, check.Result)
	v.ProductName = check.ProductName
	return v
}

func (view StatsView) From(stats *monitor.Stats) StatsView {
	v := StatsView{
		ProductID:    stats.ProductID,
		CurrentPrice: stats.CurrentPrice,
		MinPrice:     stats.MinPrice,
		MaxPrice:     stats.MaxPrice,
		AvgPrice:     stats.AvgPrice,
		PriceChanges: stats.PriceChanges,
	}
	if stats.LastChecked != nil {
		s := formatTime(*stats.LastChecked)
		v.LastChecked = &s
	}
	return v
}

func (view BatchView) From(results []monitor.CheckResult) BatchView {
	v := BatchView{Checked: len(results), Products: make([]PriceView, 0, len(results))}
	for _, r := range results {
		v.Products = append(v.Products, PriceView{}.FromCheck(r))
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
