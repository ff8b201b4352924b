package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-syncd
realtime:
  ws_url: ws://backend:8000
  endpoint: /ws/realtime
api:
  base_url: http://backend:8000
services:
  market_data:
    ttl: 1m
    sources:
      - name: primary
        base_url: http://backend:8000
      - name: coingecko
        base_url: https://api.coingecko.com/api/v3
        api_key: abc123
        key_param: x_cg_api_key
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-syncd" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-syncd")
	}
	if cfg.Realtime.WSURL != "ws://backend:8000" {
		t.Errorf("Realtime.WSURL = %q, want %q", cfg.Realtime.WSURL, "ws://backend:8000")
	}
	md := cfg.Services["market_data"]
	if md.TTL != time.Minute {
		t.Errorf("market_data.TTL = %v, want 1m", md.TTL)
	}
	if len(md.Sources) != 2 {
		t.Fatalf("market_data sources = %d, want 2", len(md.Sources))
	}
	if md.Sources[1].KeyParam != "x_cg_api_key" {
		t.Errorf("KeyParam = %q, want x_cg_api_key", md.Sources[1].KeyParam)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "secret123")

	yaml := `
instance:
  id: test-syncd
services:
  news:
    ttl: 5m
    sources:
      - name: newsapi
        base_url: https://newsapi.org/v2
        api_key: ${TEST_PROVIDER_KEY}
        key_header: X-Api-Key
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Services["news"].Sources[0].APIKey; got != "secret123" {
		t.Errorf("APIKey = %q, want %q", got, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: test-syncd\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Realtime.WSURL != DefaultWSURL {
		t.Errorf("WSURL = %q, want %q", cfg.Realtime.WSURL, DefaultWSURL)
	}
	if cfg.Realtime.Reconnect.MaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Reconnect.MaxDelay = %v, want %v", cfg.Realtime.Reconnect.MaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Cache.MaxEntries != DefaultCacheMaxEntries {
		t.Errorf("Cache.MaxEntries = %d, want %d", cfg.Cache.MaxEntries, DefaultCacheMaxEntries)
	}

	// Every default service gets a chain backed by the primary API.
	for _, name := range DefaultServices {
		svc, ok := cfg.Services[name]
		if !ok {
			t.Fatalf("missing default service %q", name)
		}
		if svc.TTL != DefaultServiceTTL {
			t.Errorf("%s TTL = %v, want %v", name, svc.TTL, DefaultServiceTTL)
		}
		if len(svc.Sources) != 1 || svc.Sources[0].BaseURL != DefaultAPIURL {
			t.Errorf("%s sources = %+v, want primary %s", name, svc.Sources, DefaultAPIURL)
		}
	}
}

func TestDefaults_EnvOverrides(t *testing.T) {
	t.Setenv("SYNCD_WS_URL", "wss://prod:9000")
	t.Setenv("SYNCD_API_URL", "https://prod:9001")

	path := writeTempFile(t, "instance:\n  id: test-syncd\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Realtime.WSURL != "wss://prod:9000" {
		t.Errorf("WSURL = %q, want env override", cfg.Realtime.WSURL)
	}
	if cfg.API.BaseURL != "https://prod:9001" {
		t.Errorf("API.BaseURL = %q, want env override", cfg.API.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing instance id", func(c *Config) { c.Instance.ID = "" }, true},
		{"bad ws scheme", func(c *Config) { c.Realtime.WSURL = "http://x" }, true},
		{"factor below one", func(c *Config) { c.Realtime.Reconnect.Factor = 0.5 }, true},
		{"base above max delay", func(c *Config) {
			c.Realtime.Reconnect.BaseDelay = time.Minute
			c.Realtime.Reconnect.MaxDelay = time.Second
		}, true},
		{"zero cache", func(c *Config) { c.Cache.MaxEntries = -1 }, true},
		{"both key placements", func(c *Config) {
			svc := c.Services["news"]
			svc.Sources[0].KeyParam = "k"
			svc.Sources[0].KeyHeader = "X-K"
			c.Services["news"] = svc
		}, true},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Instance.ID = "test-syncd"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
