package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options tune the retrying strategies.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number before each retry
}

// SelectorStrategy scrapes one marketplace with ordered XPath rules, retrying the whole
// fetch-and-parse cycle on any failure.
type SelectorStrategy struct {
	name       string
	domains    []string
	headers    http.Header
	priceRules []Rule
	titleRules []Rule

	fetcher *Fetcher
	opts    Options
	log     *zap.Logger
}

func NewMercadoLivre(log *zap.Logger, fetcher *Fetcher, opts Options) *SelectorStrategy {
	return &SelectorStrategy{
		name:    "Mercado Livre",
		domains: []string{"mercadolivre.com", "mercadolibre.com"},
		priceRules: []Rule{
			{XPath: "//span[contains(concat(' ', normalize-space(@class), ' '), ' andes-money-amount__fraction ')]"},
			{XPath: "//span[contains(@class, 'price') and contains(@class, 'fraction')]"},
			{XPath: "//meta[@property='og:price:amount']", Attr: "content"},
		},
		titleRules: []Rule{
			{XPath: "//h1[contains(concat(' ', normalize-space(@class), ' '), ' ui-pdp-title ')]"},
			{XPath: "//h1"},
		},
		fetcher: fetcher,
		opts:    opts,
		log:     log,
	}
}

func NewAmazon(log *zap.Logger, fetcher *Fetcher, opts Options) *SelectorStrategy {
	headers := http.Header{}
	headers.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	return &SelectorStrategy{
		name:    "Amazon",
		domains: []string{"amazon.com"},
		headers: headers,
		priceRules: []Rule{
			{XPath: "//span[contains(concat(' ', normalize-space(@class), ' '), ' a-price-whole ')]"},
			{XPath: "//span[@id='priceblock_ourprice']"},
			{XPath: "//span[@id='priceblock_dealprice']"},
		},
		titleRules: []Rule{
			{XPath: "//span[@id='productTitle']"},
		},
		fetcher: fetcher,
		opts:    opts,
		log:     log,
	}
}

func (s *SelectorStrategy) Name() string { return s.name }

func (s *SelectorStrategy) Matches(rawURL string) bool {
	host := hostOf(rawURL)
	for _, domain := range s.domains {
		if strings.Contains(host, domain) {
			return true
		}
	}
	return false
}

func (s *SelectorStrategy) Extract(ctx context.Context, rawURL string) (*Result, error) {
	maxAttempts := max(s.opts.MaxAttempts, 1)

	var lastErr error
	attempts := 0
	for attempts < maxAttempts {
		if attempts > 0 {
			if err := wait(ctx, s.opts.Backoff*time.Duration(attempts)); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		result, err := s.attempt(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		s.log.Sugar().Debugw("Extraction attempt failed",
			"strategy", s.name, "attempt", attempts, "url", rawURL, "err", err)
	}

	return nil, &ExtractionError{Strategy: s.name, Attempts: attempts, Err: lastErr}
}

func (s *SelectorStrategy) attempt(ctx context.Context, rawURL string) (*Result, error) {
	doc, err := s.fetcher.FetchDocument(ctx, rawURL, s.headers)
	if err != nil {
		return nil, err
	}

	priceText := firstMatch(doc, s.priceRules)
	if priceText == "" {
		return nil, ErrNoMatch
	}
	price, err := NormalizePrice(priceText)
	if err != nil {
		return nil, err
	}
	// A zero usually means out of stock; storing it would fire every alert on the product.
	if price <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, price)
	}

	title := firstMatch(doc, s.titleRules)
	if title == "" {
		title = DefaultTitle
	}

	return &Result{
		Price:     price,
		Title:     title,
		Source:    s.name,
		Timestamp: time.Now().UTC(),
	}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Host)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
