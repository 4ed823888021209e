package extract

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

const (
	genericSource = "Generic"

	// Anything at or beyond this is far more likely a phone number or an id than a price.
	maxGenericPrice = 1_000_000
)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`R\$\s*[\d.,]+`),
	regexp.MustCompile(`BRL\s*[\d.,]+`),
	regexp.MustCompile(`[\d.,]+`),
}

var genericTitleRules = []Rule{
	{XPath: "//h1"},
	{XPath: "//title"},
}

// GenericStrategy scans the visible page text for anything price-shaped. It matches every
// URL and fetches exactly once.
type GenericStrategy struct {
	fetcher *Fetcher
}

func NewGeneric(fetcher *Fetcher) *GenericStrategy {
	return &GenericStrategy{fetcher}
}

func (s *GenericStrategy) Name() string { return genericSource }

func (s *GenericStrategy) Matches(string) bool { return true }

func (s *GenericStrategy) Extract(ctx context.Context, rawURL string) (*Result, error) {
	doc, err := s.fetcher.FetchDocument(ctx, rawURL, nil)
	if err != nil {
		return nil, &ExtractionError{Strategy: genericSource, Attempts: 1, Err: err}
	}

	price, err := scanPrice(visibleText(doc))
	if err != nil {
		return nil, &ExtractionError{Strategy: genericSource, Attempts: 1, Err: err}
	}

	title := firstMatch(doc, genericTitleRules)
	if title == "" {
		title = DefaultTitle
	}

	return &Result{
		Price:     price,
		Title:     title,
		Source:    genericSource,
		Timestamp: time.Now().UTC(),
	}, nil
}

// scanPrice takes the first match of each pattern in turn and returns the first one that
// parses to a plausible price.
func scanPrice(text string) (float64, error) {
	lastErr := ErrNoMatch
	for _, pattern := range genericPatterns {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}

		price, err := NormalizePrice(match)
		if err != nil {
			lastErr = err
			continue
		}
		if !plausibleGenericPrice(price) {
			lastErr = fmt.Errorf("%w: %v", ErrOutOfRange, price)
			continue
		}
		return price, nil
	}
	return 0, lastErr
}

func plausibleGenericPrice(price float64) bool {
	return price > 0 && price < maxGenericPrice
}
