package config

import "time"

// Sync definition sync_service YAML structure
type Sync struct {
	Port string `mapstructure:"port"`

	API      APIConfig      `mapstructure:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Store    StoreConfig    `mapstructure:"store"`
	Swipe    SwipeConfig    `mapstructure:"swipe"`
}

// APIConfig definition REST backend setting
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig definition socket transport setting
type RealtimeConfig struct {
	URL         string        `mapstructure:"url"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// StoreConfig definition reconciliation store setting
type StoreConfig struct {
	TypingTTL   time.Duration `mapstructure:"typing_ttl"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

// SwipeConfig definition optimistic swipe policy.
// Rollback defaults to false: a failed like/pass leaves the card
// removed, best-effort, matching production behavior.
type SwipeConfig struct {
	Rollback bool `mapstructure:"rollback"`
}
