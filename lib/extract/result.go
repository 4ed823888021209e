package extract

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTitle is used when no title rule matches; a missing title never fails an extraction.
const DefaultTitle = "Product"

var (
	ErrNoMatch         = errors.New("no price element matched")
	ErrUnparsablePrice = errors.New("price text is not numeric")
	ErrOutOfRange      = errors.New("price outside accepted range")
	ErrNoStrategy      = errors.New("no extraction strategy matches url")
)

type Result struct {
	Price     float64   `json:"price"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractionError reports a strategy that gave up, carrying the last underlying error.
type ExtractionError struct {
	Strategy string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: extraction failed after %d attempt(s): %v", e.Strategy, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
