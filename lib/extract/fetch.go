package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/carlmjohnson/requests"
	"golang.org/x/net/html"
)

// BrowserUserAgent identifies requests as a desktop Chrome.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

// Fetcher issues one bounded GET and parses the body as HTML.
// Redirects are followed by the client; non-2xx responses are errors.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewFetcher sends userAgent on every request. Leave it empty when the client's transport
// picks the User-Agent itself.
func NewFetcher(client *http.Client, timeout time.Duration, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client, timeout, userAgent}
}

func (f *Fetcher) FetchDocument(ctx context.Context, endpoint string, headers http.Header) (*html.Node, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var body string
	builder := requests.URL(endpoint).
		Client(f.client).
		ToString(&body)
	if f.userAgent != "" {
		builder = builder.UserAgent(f.userAgent)
	}
	for key, values := range headers {
		builder = builder.Header(key, values...)
	}
	if err := builder.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}

	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", endpoint, err)
	}
	return doc, nil
}
