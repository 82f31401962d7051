package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// PlayerTTL expires guest identities. Zero keeps them forever.
	PlayerTTL time.Duration

	// RenameAttempts bounds the optimistic retries per session when renaming
	RenameAttempts int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379",
		PoolSize:       10,
		MinIdleConns:   2,
		PlayerTTL:      24 * time.Hour,
		RenameAttempts: 3,
	}
}
