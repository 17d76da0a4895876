package memory

import "time"

// Options for the in-memory server
type Options struct {
	// Name identifies the server within a pool
	Name string
	// DefaultTube receives jobs put without a tube and always exists
	DefaultTube string
	// Priority and TTR are used by Enqueue
	Priority uint32
	TTR      time.Duration
	// Clock returns the current time; tests replace it to age jobs
	Clock func() time.Time
}

// DefaultOptions returns default in-memory server options
func DefaultOptions() Options {
	return Options{
		Name:        "memory",
		DefaultTube: "default",
		Priority:    1024,
		TTR:         60 * time.Second,
		Clock:       time.Now,
	}
}
