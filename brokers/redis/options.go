package redis

import (
	"time"

	redisUtils "github.com/BranchIntl/tubecheck/internal/redis"
)

// Options for Redis broker. Connection settings are promoted from the
// embedded config.
type Options struct {
	redisUtils.Config

	// Name identifies the broker within a pool; defaults to the URI host
	Name string

	// Namespace prefixes every key the broker touches
	Namespace string

	// Priority and TTR are used by Enqueue
	Priority uint32
	TTR      time.Duration
}

// DefaultOptions returns default Redis options
func DefaultOptions() Options {
	return Options{
		Config:    redisUtils.DefaultConfig(),
		Namespace: "tubecheck:",
		Priority:  1024,
		TTR:       60 * time.Second,
	}
}
