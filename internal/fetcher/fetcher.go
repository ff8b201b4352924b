// Package fetcher implements the Fallback Fetcher component.
//
// A fetch resolves a logical service name to its ordered source chain and
// tries each source until one succeeds. Responses are cached with the
// service's TTL, and concurrent fetches for the same key are collapsed into
// a single network call via singleflight: late arrivals receive the first
// caller's settled result, success or failure.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marketdeck/syncd/internal/cache"
	"github.com/marketdeck/syncd/internal/metrics"
)

// Fetcher fetches from per-service fallback chains.
type Fetcher struct {
	chains  map[string]Chain
	cache   *cache.Cache[[]byte]
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	group singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-source request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher over the given service chains and response cache.
func New(chains map[string]Chain, c *cache.Cache[[]byte], opts ...Option) *Fetcher {
	f := &Fetcher{
		chains:  chains,
		cache:   c,
		client:  &http.Client{},
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch tries each source in the service's chain in order and returns the
// first successful response body. A fresh cached response from ANY source
// in the chain short-circuits the network entirely: after a fallback
// succeeds, a repeat call within the TTL answers from the fallback's entry
// without re-contacting the failed sources ahead of it. Every source gets
// its own timeout; a source failure of any kind (network error, non-2xx
// status, timeout) moves on to the next source. Only when the whole chain
// fails does Fetch return an error, a *ChainError aggregating the
// per-source causes.
func (f *Fetcher) Fetch(ctx context.Context, service, endpoint string) ([]byte, error) {
	chain, ok := f.chains[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}

	// Whole-chain cache scan before any network call.
	for _, src := range chain.Sources {
		if data, ok := f.cache.Get(CacheKey(service, src.Name, endpoint)); ok {
			metrics.CacheHits.Inc()
			return data, nil
		}
	}
	metrics.CacheMisses.Inc()

	var errs []error
	for _, src := range chain.Sources {
		key := CacheKey(service, src.Name, endpoint)

		// Collapse concurrent requests for the same key into one call.
		// Followers share the owner's settled result.
		v, err, _ := f.group.Do(key, func() (any, error) {
			return f.fetchSource(ctx, src, key, endpoint, chain.TTL)
		})
		if err != nil {
			if ctx.Err() != nil {
				// The caller was cancelled: stop walking the chain and
				// surface the cancellation itself, not a chain failure.
				return nil, ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				// The collapsed call belonged to a caller that was
				// cancelled; this caller is live, so its cancellation is
				// not a source failure. Reissue the request directly.
				data, retryErr := f.fetchSource(ctx, src, key, endpoint, chain.TTL)
				if retryErr == nil {
					return data.([]byte), nil
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				err = retryErr
			}
			metrics.FetchFallbacks.Inc()
			f.logger.Warn("source failed, trying next",
				"service", service,
				"source", src.Name,
				"endpoint", endpoint,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		return v.([]byte), nil
	}

	metrics.FetchFailures.Inc()
	return nil, &ChainError{Service: service, Endpoint: endpoint, Errs: errs}
}

// fetchSource performs one source request under its own timeout and caches
// the response on success.
func (f *Fetcher) fetchSource(ctx context.Context, src Source, key, endpoint string, ttl time.Duration) (any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	data, err := f.doRequest(reqCtx, src, endpoint)
	if err != nil {
		return nil, err
	}

	f.cache.Set(key, data, ttl)
	return data, nil
}

// Services returns the configured service names.
func (f *Fetcher) Services() []string {
	names := make([]string, 0, len(f.chains))
	for name := range f.chains {
		names = append(names, name)
	}
	return names
}

// doRequest performs one GET against one source, injecting its credential.
func (f *Fetcher) doRequest(ctx context.Context, src Source, endpoint string) ([]byte, error) {
	fullURL := joinURL(src.BaseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &SourceError{Source: src.Name, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if src.APIKey != "" {
		switch {
		case src.KeyHeader != "":
			req.Header.Set(src.KeyHeader, src.APIKey)
		case src.KeyParam != "":
			q := req.URL.Query()
			q.Set(src.KeyParam, src.APIKey)
			req.URL.RawQuery = q.Encode()
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: src.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceError{Source: src.Name, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &SourceError{Source: src.Name, StatusCode: resp.StatusCode}
	}

	return body, nil
}

// joinURL joins a base address and an endpoint path with exactly one
// separator between them.
func joinURL(base, endpoint string) string {
	base = strings.TrimRight(base, "/")
	if endpoint == "" {
		return base
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}
