package app

import (
	"net/http"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/alerts"
	"github.com/fiffu/pricewatch/lib/extract"
	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/fiffu/pricewatch/lib/pricecache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewExtractor(cfg *config.Config, log *zap.Logger, client *http.Client) *extract.Extractor {
	// The scraping transport rotates User-Agents together with the matching headers.
	fetcher := extract.NewFetcher(client, cfg.RequestTimeout(), "")
	return extract.NewDefault(log, client, fetcher, extract.Options{
		MaxAttempts: cfg.Scraper.MaxRetries,
		Backoff:     cfg.RetryBackoff(),
	})
}

func NewEvaluator(log *zap.Logger) *alerts.Evaluator {
	return alerts.NewEvaluator(log, alerts.NewLogNotifier(log))
}

func NewMonitor(log *zap.Logger, db *gorm.DB, cache *pricecache.PriceCache, ext *extract.Extractor, ev *alerts.Evaluator) *monitor.Monitor {
	return monitor.New(log, db, cache, ext, ev)
}
