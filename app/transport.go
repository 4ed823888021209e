package app

import (
	"net/http"
	"time"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/transport"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewHTTPClient builds the client all scrapes share. The per-request timeout is applied
// by the fetcher, so the client itself has none.
func NewHTTPClient(cfg *config.Config, log *zap.Logger) *http.Client {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	tpt := &transport.Transport{
		Base:        base,
		Fingerprint: transport.NewFingerprintPool(),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.Scraper.RatePerSecond), cfg.Scraper.RateBurst),
		Log:         log,
	}
	if cfg.Scraper.RespectRobots {
		tpt.Robots = transport.NewRobotsChecker(&http.Client{
			Transport: base,
			Timeout:   cfg.RequestTimeout(),
		})
	}

	return &http.Client{Transport: tpt}
}
