package extract

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type Strategy interface {
	Name() string
	Matches(rawURL string) bool
	Extract(ctx context.Context, rawURL string) (*Result, error)
}

// Extractor runs the first strategy, in priority order, that claims the URL.
type Extractor struct {
	log        *zap.Logger
	strategies []Strategy
}

func New(log *zap.Logger, strategies ...Strategy) *Extractor {
	return &Extractor{log, strategies}
}

// NewDefault wires the marketplace strategies ahead of the generic fallback.
func NewDefault(log *zap.Logger, client *http.Client, fetcher *Fetcher, opts Options) *Extractor {
	if fetcher == nil {
		fetcher = NewFetcher(client, 0, BrowserUserAgent)
	}
	return New(log,
		NewMercadoLivre(log, fetcher, opts),
		NewAmazon(log, fetcher, opts),
		NewGeneric(fetcher),
	)
}

func (e *Extractor) Select(rawURL string) Strategy {
	for _, s := range e.strategies {
		if s.Matches(rawURL) {
			return s
		}
	}
	return nil
}

func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Result, error) {
	strategy := e.Select(rawURL)
	if strategy == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoStrategy, rawURL)
	}

	result, err := strategy.Extract(ctx, rawURL)
	if err != nil {
		e.log.Sugar().Infow("Price extraction failed", "strategy", strategy.Name(), "url", rawURL, "err", err)
		return nil, err
	}
	return result, nil
}
