package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Errors
var (
	ErrUnknownService = errors.New("unknown service")
)

// Source is one backing provider in a service's fallback chain.
type Source struct {
	Name    string
	BaseURL string
	APIKey  string

	// KeyParam injects APIKey as a query parameter with this name.
	KeyParam string

	// KeyHeader injects APIKey as a request header with this name.
	KeyHeader string
}

// Chain is the ordered source list for one logical service, tried in
// sequence until one succeeds. Immutable after construction.
type Chain struct {
	Sources []Source
	TTL     time.Duration
}

// SourceError is a failure from a single source in a chain.
type SourceError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: status %d %s", e.Source, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ChainError aggregates the per-source failures after a whole chain is
// exhausted.
type ChainError struct {
	Service  string
	Endpoint string
	Errs     []error
}

func (e *ChainError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("all sources failed for %s %s: %s", e.Service, e.Endpoint, strings.Join(parts, "; "))
}

func (e *ChainError) Unwrap() []error { return e.Errs }

// CacheKey builds the cache and collapse key for one source's view of an
// endpoint.
func CacheKey(service, source, endpoint string) string {
	return service + ":" + source + ":" + endpoint
}
