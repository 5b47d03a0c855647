package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles requests per API host. A zero rate disables limiting.
type Limiter struct {
	mu           sync.Mutex
	hosts        map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing requestsPerSecond per host
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		hosts:        make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL may proceed or ctx is done
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	limiter, err := l.forURL(rawURL)
	if err != nil {
		return err
	}
	return limiter.Wait(ctx)
}

// Allow reports whether a request to rawURL may proceed now
func (l *Limiter) Allow(rawURL string) bool {
	limiter, err := l.forURL(rawURL)
	if err != nil {
		return false
	}
	return limiter.Allow()
}

// SetHostRate overrides the rate for one host
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.hosts[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (l *Limiter) forURL(rawURL string) (*rate.Limiter, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.hosts[host]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.hosts[host] = limiter
	}
	return limiter, nil
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url has no host: %q", rawURL)
	}
	return parsed.Host, nil
}
