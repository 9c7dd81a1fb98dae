package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Timeline: TimelineConfig{
			PageSize:      DefaultPageSize,
			QueueCapacity: 16,
			HTTPTimeout:   5 * time.Second,
			UserAgent:     "fwtl-test/1.0",
		},
		Stream: StreamConfig{
			Enabled:          false,
			ReconnectDelay:   10 * time.Millisecond,
			HandshakeTimeout: 2 * time.Second,
		},
		Log:  LogConfig{Level: "off"},
		UI:   defaultConfig().UI,
		Keys: defaultConfig().Keys,
	}
}
