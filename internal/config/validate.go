package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.Realtime.WSURL, "ws://") && !strings.HasPrefix(c.Realtime.WSURL, "wss://") {
		return fmt.Errorf("realtime.ws_url must start with ws:// or wss://, got %q", c.Realtime.WSURL)
	}
	if c.Realtime.Reconnect.Factor < 1 {
		return fmt.Errorf("realtime.reconnect.factor must be >= 1, got %v", c.Realtime.Reconnect.Factor)
	}
	if c.Realtime.Reconnect.MaxAttempts < 1 {
		return errors.New("realtime.reconnect.max_attempts must be >= 1")
	}
	if c.Realtime.Reconnect.BaseDelay > c.Realtime.Reconnect.MaxDelay {
		return fmt.Errorf("realtime.reconnect.base_delay (%v) cannot exceed max_delay (%v)",
			c.Realtime.Reconnect.BaseDelay, c.Realtime.Reconnect.MaxDelay)
	}
	if c.Realtime.SendQueueSize < 1 {
		return errors.New("realtime.send_queue_size must be >= 1")
	}

	if c.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}

	for name, svc := range c.Services {
		if err := svc.validate("services." + name); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (s *ServiceConfig) validate(prefix string) error {
	if len(s.Sources) == 0 {
		return fmt.Errorf("%s.sources must not be empty", prefix)
	}
	if s.TTL <= 0 {
		return fmt.Errorf("%s.ttl must be > 0", prefix)
	}
	for i, src := range s.Sources {
		if src.Name == "" {
			return fmt.Errorf("%s.sources[%d].name is required", prefix, i)
		}
		if src.BaseURL == "" {
			return fmt.Errorf("%s.sources[%d].base_url is required", prefix, i)
		}
		if src.KeyParam != "" && src.KeyHeader != "" {
			return fmt.Errorf("%s.sources[%d]: key_param and key_header are mutually exclusive", prefix, i)
		}
	}
	return nil
}
