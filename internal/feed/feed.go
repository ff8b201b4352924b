// Package feed wires the data sources to the notifier streams.
//
// The feed registers the recurring poll jobs (market data, news, sentiment,
// whale transactions, portfolio) with the scheduler, routing each fetched
// response onto its stream, and bridges the realtime connection's envelopes
// and state changes onto the notifier.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/marketdeck/syncd/internal/config"
	"github.com/marketdeck/syncd/internal/connection"
	"github.com/marketdeck/syncd/internal/fetcher"
	"github.com/marketdeck/syncd/internal/notifier"
	"github.com/marketdeck/syncd/internal/poller"
	"github.com/marketdeck/syncd/internal/watchlist"
)

// Update is a payload published on a poll stream.
type Update struct {
	Service   string          `json:"service"`
	Endpoint  string          `json:"endpoint"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// StateChange is published on the connection stream for every lifecycle
// transition.
type StateChange struct {
	State connection.State `json:"state"`
}

// Feed owns the poll-job and realtime wiring.
type Feed struct {
	fetcher   *fetcher.Fetcher
	notifier  *notifier.Notifier
	scheduler *poller.Scheduler
	watch     *watchlist.Store
	logger    *slog.Logger
}

// New creates a Feed. watch may be nil; the whale job then polls without an
// address filter.
func New(f *fetcher.Fetcher, n *notifier.Notifier, s *poller.Scheduler, watch *watchlist.Store, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		fetcher:   f,
		notifier:  n,
		scheduler: s,
		watch:     watch,
		logger:    logger,
	}
}

// RegisterPollJobs schedules the five recurring jobs. Each cycle fetches
// through the fallback chain and publishes onto the service's stream; a
// cancelled cycle publishes nothing.
func (f *Feed) RegisterPollJobs(cfg config.PollerConfig) error {
	jobs := []struct {
		name     string
		interval time.Duration
		task     poller.Task
	}{
		{"market_data", cfg.MarketData, f.pollSymbols("market_data", "/api/market-data", cfg.Symbols, notifier.StreamMarketData)},
		{"news", cfg.News, f.pollEndpoint("news", "/api/news", notifier.StreamNews)},
		{"sentiment", cfg.Sentiment, f.pollSymbols("sentiment", "/api/sentiment", cfg.Symbols, notifier.StreamSentiment)},
		{"whale_transactions", cfg.Whale, f.pollWhales()},
		{"portfolio", cfg.Portfolio, f.pollEndpoint("portfolio", "/api/portfolio", notifier.StreamPortfolio)},
	}

	for _, j := range jobs {
		if err := f.scheduler.Schedule(j.name, j.interval, j.task); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return nil
}

// pollEndpoint fetches one endpoint and publishes the response.
func (f *Feed) pollEndpoint(service, endpoint string, stream notifier.Stream) poller.Task {
	return func(ctx context.Context) error {
		return f.fetchAndPublish(ctx, service, endpoint, stream)
	}
}

// pollSymbols fetches base/<symbol> for every configured symbol. One
// symbol's failure does not stop the rest; the cycle reports the first
// failure after trying all symbols.
func (f *Feed) pollSymbols(service, base string, symbols []string, stream notifier.Stream) poller.Task {
	return func(ctx context.Context) error {
		var firstErr error
		for _, sym := range symbols {
			endpoint := base + "/" + url.PathEscape(sym)
			if err := f.fetchAndPublish(ctx, service, endpoint, stream); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}
}

// pollWhales fetches whale transactions, filtered to the persisted
// watchlist when one is configured.
func (f *Feed) pollWhales() poller.Task {
	return func(ctx context.Context) error {
		endpoint := "/api/whale-transactions"
		if f.watch != nil {
			if addrs := f.watch.Addresses(); len(addrs) > 0 {
				q := url.Values{"addresses": {strings.Join(addrs, ",")}}
				endpoint += "?" + q.Encode()
			}
		}
		return f.fetchAndPublish(ctx, "whale_transactions", endpoint, notifier.StreamWhale)
	}
}

func (f *Feed) fetchAndPublish(ctx context.Context, service, endpoint string, stream notifier.Stream) error {
	data, err := f.fetcher.Fetch(ctx, service, endpoint)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		// Superseded after the fetch settled: discard, never publish stale.
		return ctx.Err()
	}

	f.notifier.Publish(stream, Update{
		Service:   service,
		Endpoint:  endpoint,
		Data:      data,
		FetchedAt: time.Now().UTC(),
	})
	return nil
}

// BindRealtime routes the connection's envelopes and lifecycle onto the
// notifier. Envelopes with a known type go to their dedicated stream and to
// the firehose messages stream; unknown types go to the firehose only.
// Returns an unbind function.
func (f *Feed) BindRealtime(m *connection.Manager, n *notifier.Notifier) func() {
	offMsg := m.OnMessage(func(env connection.Envelope) {
		if stream, ok := notifier.StreamForMessageType(env.Type); ok {
			n.Publish(stream, env)
		} else {
			f.logger.Debug("no dedicated stream for message type", "type", env.Type)
		}
		n.Publish(notifier.StreamMessages, env)
	})

	offState := m.OnStateChange(func(s connection.State) {
		n.Publish(notifier.StreamConnection, StateChange{State: s})
	})

	offExhausted := m.OnReconnectExhausted(func(ev connection.ExhaustedEvent) {
		n.Publish(notifier.StreamConnection, ev)
	})

	return func() {
		offMsg()
		offState()
		offExhausted()
	}
}
