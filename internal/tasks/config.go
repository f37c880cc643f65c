package tasks

import "time"

// Config holds configuration for the task queue.
type Config struct {
	// Workers bounds how many account operations run at once. Default: 2
	Workers int

	// ReleaseAfter is when tasks stuck in a crashed worker are released back to the queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks past their retention are removed. Default: 1h
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: 1 * time.Hour,
	}
}
