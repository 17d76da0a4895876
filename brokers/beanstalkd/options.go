package beanstalkd

import "time"

// Options for beanstalkd broker
type Options struct {
	// Address is the host:port of the beanstalkd server
	Address string

	// Name identifies the broker within a pool; defaults to Address
	Name string

	// DialTimeout bounds establishing the connection
	DialTimeout time.Duration

	// MaxScan limits job enumeration to the most recent ids; zero scans
	// every id the server has handed out
	MaxScan int
}

// DefaultOptions returns default beanstalkd options
func DefaultOptions() Options {
	return Options{
		Address:     "localhost:11300",
		DialTimeout: 10 * time.Second,
		MaxScan:     0,
	}
}
