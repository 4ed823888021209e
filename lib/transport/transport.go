package transport

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrDisallowed = errors.New("disallowed by robots.txt")

// Transport is the RoundTripper every scrape goes through. In order it fills in browser
// headers, consults robots.txt, waits for a rate limit token, sends, and decodes the body.
type Transport struct {
	Base        http.RoundTripper
	Fingerprint *FingerprintPool
	Robots      *RobotsChecker
	Limiter     *rate.Limiter
	Log         *zap.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())

	if t.Fingerprint != nil {
		fp := t.Fingerprint.Next()
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", fp.UserAgent)
		}
		for key, vals := range fp.Headers {
			if req.Header.Get(key) == "" {
				for _, v := range vals {
					req.Header.Add(key, v)
				}
			}
		}
	}

	if t.Robots != nil {
		allowed, err := t.Robots.IsAllowed(req.Context(), req.Header.Get("User-Agent"), req.URL.String())
		if err == nil && !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, req.URL)
		}
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if t.Log != nil {
		t.Log.Sugar().Debugw("Fetched", "url", req.URL.String(), "status", resp.StatusCode)
	}
	return decode(resp)
}

// decode swaps the body for a decompressing reader. Setting Accept-Encoding ourselves
// turns off net/http's transparent gzip, so this has to happen here.
func decode(resp *http.Response) (*http.Response, error) {
	var body io.ReadCloser
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		body = &decodedBody{zr, resp.Body}
	case "br":
		body = &decodedBody{io.NopCloser(brotli.NewReader(resp.Body)), resp.Body}
	default:
		return resp, nil
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.ReadCloser
	raw io.Closer
}

func (b *decodedBody) Close() error {
	err := b.ReadCloser.Close()
	if rawErr := b.raw.Close(); err == nil {
		err = rawErr
	}
	return err
}
