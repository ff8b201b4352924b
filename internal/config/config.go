package config

import "time"

// Config is the root configuration for a syncd instance.
type Config struct {
	Instance  InstanceConfig           `yaml:"instance"`
	Realtime  RealtimeConfig           `yaml:"realtime"`
	API       APIConfig                `yaml:"api"`
	Cache     CacheConfig              `yaml:"cache"`
	Services  map[string]ServiceConfig `yaml:"services"`
	Poller    PollerConfig             `yaml:"poller"`
	Watchlist WatchlistConfig          `yaml:"watchlist"`
	Metrics   MetricsConfig            `yaml:"metrics"`
}

// InstanceConfig identifies this syncd instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// RealtimeConfig holds WebSocket connection settings.
type RealtimeConfig struct {
	// WSURL is the socket base address (e.g. ws://localhost:8000).
	// Overridable via SYNCD_WS_URL.
	WSURL string `yaml:"ws_url"`

	// Endpoint is the path joined onto WSURL (e.g. /ws/realtime).
	Endpoint string `yaml:"endpoint"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`

	// SendQueueSize bounds the trading client's offline send queue.
	SendQueueSize int `yaml:"send_queue_size"`
}

// ReconnectConfig holds automatic reconnection settings.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Factor      float64       `yaml:"factor"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// APIConfig holds REST fetch settings.
type APIConfig struct {
	// BaseURL is the primary HTTP API base address.
	// Overridable via SYNCD_API_URL.
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// ServiceConfig describes one logical service's fallback source chain.
type ServiceConfig struct {
	TTL     time.Duration  `yaml:"ttl"`
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one backing provider for a service.
type SourceConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// KeyParam injects the API key as a query parameter with this name.
	KeyParam string `yaml:"key_param"`

	// KeyHeader injects the API key as a header with this name.
	KeyHeader string `yaml:"key_header"`
}

// PollerConfig holds the periodic job intervals.
type PollerConfig struct {
	MarketData time.Duration `yaml:"market_data"`
	News       time.Duration `yaml:"news"`
	Sentiment  time.Duration `yaml:"sentiment"`
	Whale      time.Duration `yaml:"whale"`
	Portfolio  time.Duration `yaml:"portfolio"`

	// Symbols polled by the market data job.
	Symbols []string `yaml:"symbols"`
}

// WatchlistConfig holds the persisted watchlist settings.
type WatchlistConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
