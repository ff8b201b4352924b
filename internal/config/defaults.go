package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultWSURL      = "ws://localhost:8000"
	DefaultWSEndpoint = "/ws/realtime"
	DefaultAPIURL     = "http://localhost:8000"

	DefaultHeartbeatInterval = 25 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultSendQueueSize     = 100

	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultReconnectFactor      = 1.5
	DefaultReconnectMaxAttempts = 10

	DefaultAPITimeout      = 10 * time.Second
	DefaultCacheMaxEntries = 1000
	DefaultServiceTTL      = 5 * time.Minute

	DefaultMarketDataInterval = 10 * time.Second
	DefaultNewsInterval       = 5 * time.Minute
	DefaultSentimentInterval  = 10 * time.Minute
	DefaultWhaleInterval      = 1 * time.Minute
	DefaultPortfolioInterval  = 30 * time.Second

	DefaultWatchlistPath = "watchlist.json"
	DefaultMetricsPort   = 9090
	DefaultMetricsPath   = "/metrics"
)

func (c *Config) applyDefaults() {
	// Realtime defaults. The socket and HTTP base addresses are
	// independently overridable via environment.
	if c.Realtime.WSURL == "" {
		c.Realtime.WSURL = envOr("SYNCD_WS_URL", DefaultWSURL)
	}
	if c.Realtime.Endpoint == "" {
		c.Realtime.Endpoint = DefaultWSEndpoint
	}
	if c.Realtime.HeartbeatInterval == 0 {
		c.Realtime.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.SendQueueSize == 0 {
		c.Realtime.SendQueueSize = DefaultSendQueueSize
	}
	if c.Realtime.Reconnect.BaseDelay == 0 {
		c.Realtime.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Realtime.Reconnect.MaxDelay == 0 {
		c.Realtime.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Realtime.Reconnect.Factor == 0 {
		c.Realtime.Reconnect.Factor = DefaultReconnectFactor
	}
	if c.Realtime.Reconnect.MaxAttempts == 0 {
		c.Realtime.Reconnect.MaxAttempts = DefaultReconnectMaxAttempts
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = envOr("SYNCD_API_URL", DefaultAPIURL)
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Cache defaults
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}

	// Service defaults: every service falls back to the primary API and
	// the default TTL unless configured otherwise.
	if c.Services == nil {
		c.Services = make(map[string]ServiceConfig)
	}
	for _, name := range DefaultServices {
		svc := c.Services[name]
		if svc.TTL == 0 {
			svc.TTL = DefaultServiceTTL
		}
		if len(svc.Sources) == 0 {
			svc.Sources = []SourceConfig{{Name: "primary", BaseURL: c.API.BaseURL}}
		}
		c.Services[name] = svc
	}

	// Poller defaults
	if c.Poller.MarketData == 0 {
		c.Poller.MarketData = DefaultMarketDataInterval
	}
	if c.Poller.News == 0 {
		c.Poller.News = DefaultNewsInterval
	}
	if c.Poller.Sentiment == 0 {
		c.Poller.Sentiment = DefaultSentimentInterval
	}
	if c.Poller.Whale == 0 {
		c.Poller.Whale = DefaultWhaleInterval
	}
	if c.Poller.Portfolio == 0 {
		c.Poller.Portfolio = DefaultPortfolioInterval
	}
	if len(c.Poller.Symbols) == 0 {
		c.Poller.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}

	// Watchlist defaults
	if c.Watchlist.Path == "" {
		c.Watchlist.Path = DefaultWatchlistPath
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultServices are the logical services syncd polls.
var DefaultServices = []string{
	"market_data",
	"news",
	"sentiment",
	"whale_transactions",
	"portfolio",
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
