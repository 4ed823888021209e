package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const robotsTTL = time.Hour

// RobotsChecker fetches and caches robots.txt per scheme+host. A robots.txt that cannot be
// fetched or parsed allows everything.
type RobotsChecker struct {
	client *http.Client

	mu     sync.RWMutex
	rules  map[string]*robotstxt.RobotsData
	expiry map[string]time.Time

	inflight singleflight.Group
}

// NewRobotsChecker needs a client that does not itself route through a RobotsChecker.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		client: client,
		rules:  make(map[string]*robotstxt.RobotsData),
		expiry: make(map[string]time.Time),
	}
}

func (r *RobotsChecker) IsAllowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}

	data, err := r.robots(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return true, nil
	}
	return data.TestAgent(u.Path, userAgent), nil
}

func (r *RobotsChecker) robots(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.rules[origin]
	exp := r.expiry[origin]
	r.mu.RUnlock()
	if ok && time.Now().Before(exp) {
		return data, nil
	}

	// One fetch per origin at a time; other origins are not held up.
	v, err, _ := r.inflight.Do(origin, func() (any, error) {
		data, err := r.fetch(ctx, origin)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.rules[origin] = data
		r.expiry[origin] = time.Now().Add(robotsTTL)
		r.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	// FromStatusAndBytes treats 4xx as allow-all and 5xx as disallow-all.
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
