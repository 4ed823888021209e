package transport

import (
	"net/http"
	"sync"
)

// Fingerprint is a browser identity: a User-Agent plus the headers that browser sends.
type Fingerprint struct {
	UserAgent string
	Headers   http.Header
}

// FingerprintPool hands out fingerprints round-robin.
type FingerprintPool struct {
	mu           sync.Mutex
	fingerprints []Fingerprint
	idx          int
}

func NewFingerprintPool(fingerprints ...Fingerprint) *FingerprintPool {
	if len(fingerprints) == 0 {
		fingerprints = defaultFingerprints()
	}
	return &FingerprintPool{fingerprints: fingerprints}
}

func (p *FingerprintPool) Next() Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := p.fingerprints[p.idx%len(p.fingerprints)]
	p.idx++
	return f
}

func defaultFingerprints() []Fingerprint {
	return []Fingerprint{
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
			Headers:   chromeHeaders("133", "Windows"),
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
			Headers:   chromeHeaders("133", "macOS"),
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
			Headers:   firefoxHeaders(),
		},
	}
}

func chromeHeaders(version, platform string) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("Sec-Ch-Ua", `"Chromium";v="`+version+`", "Not(A:Brand";v="99", "Google Chrome";v="`+version+`"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"`+platform+`"`)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func firefoxHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "pt-BR,pt;q=0.8,en-US;q=0.5,en;q=0.3")
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}
