package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	tubecheckErrors "github.com/BranchIntl/tubecheck/errors"
	"github.com/gomodule/redigo/redis"
)

var (
	// ErrInvalidScheme is returned when the Redis URI scheme is invalid
	ErrInvalidScheme = errors.New("invalid Redis database URI scheme")
	// ErrInvalidDB is returned when the URI path is not a database number
	ErrInvalidDB = errors.New("invalid Redis database number")
)

// Config describes how to reach one Redis server
type Config struct {
	// URI is a redis://, rediss:// or unix:// address
	URI string

	// Pool sizing
	MaxConnections int
	MaxIdle        int
	IdleTimeout    time.Duration

	// Per-connection deadlines
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// UseTLS forces TLS on redis:// URIs; rediss:// always uses it
	UseTLS        bool
	TLSSkipVerify bool
	TLSCertPath   string
}

// DefaultConfig returns connection settings for a local server
func DefaultConfig() Config {
	return Config{
		URI:            "redis://localhost:6379/",
		MaxConnections: 10,
		MaxIdle:        2,
		IdleTimeout:    240 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Endpoint is a parsed Redis URI
type Endpoint struct {
	Network  string
	Address  string
	Password string
	DB       int
	TLS      bool
}

// ParseURI splits a redis://, rediss:// or unix:// URI into an Endpoint
func ParseURI(uri string) (Endpoint, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid URI: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		e := Endpoint{Network: "tcp", Address: u.Host, TLS: u.Scheme == "rediss"}
		if u.User != nil {
			e.Password, _ = u.User.Password()
		}
		if len(u.Path) > 1 {
			db, err := strconv.Atoi(u.Path[1:])
			if err != nil || db < 0 {
				return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidDB, u.Path[1:])
			}
			e.DB = db
		}
		return e, nil
	case "unix":
		return Endpoint{Network: "unix", Address: u.Path}, nil
	default:
		return Endpoint{}, ErrInvalidScheme
	}
}

// CreatePool creates a Redis connection pool. Connections are dialed lazily.
func CreatePool(cfg Config) (*redis.Pool, error) {
	if _, err := ParseURI(cfg.URI); err != nil {
		return nil, tubecheckErrors.NewConnectionError(cfg.URI, err)
	}

	return &redis.Pool{
		MaxActive:   cfg.MaxConnections,
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return DialRedis(ctx, cfg)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}, nil
}

// DialRedis opens one connection and selects the URI's database
func DialRedis(ctx context.Context, cfg Config) (redis.Conn, error) {
	endpoint, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, tubecheckErrors.NewConnectionError(cfg.URI, err)
	}

	opts, err := dialOptions(cfg, endpoint)
	if err != nil {
		return nil, err
	}

	conn, err := redis.DialContext(ctx, endpoint.Network, endpoint.Address, opts...)
	if err != nil {
		return nil, tubecheckErrors.NewConnectionError(cfg.URI,
			fmt.Errorf("failed to connect: %w", err))
	}
	return conn, nil
}

func dialOptions(cfg Config, endpoint Endpoint) ([]redis.DialOption, error) {
	opts := []redis.DialOption{
		redis.DialConnectTimeout(cfg.ConnectTimeout),
		redis.DialReadTimeout(cfg.ReadTimeout),
		redis.DialWriteTimeout(cfg.WriteTimeout),
		redis.DialDatabase(endpoint.DB),
	}
	if endpoint.Password != "" {
		opts = append(opts, redis.DialPassword(endpoint.Password))
	}

	if endpoint.Network != "tcp" || !(endpoint.TLS || cfg.UseTLS) {
		return opts, nil
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}
	if cfg.TLSCertPath != "" {
		pool, err := LoadCertPool(cfg.TLSCertPath)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}
	return append(opts, redis.DialUseTLS(true), redis.DialTLSConfig(tlsConfig)), nil
}

// Ping borrows a connection from pool and checks the server answers
func Ping(ctx context.Context, pool *redis.Pool, uri string) error {
	conn, err := pool.GetContext(ctx)
	if err != nil {
		return tubecheckErrors.NewConnectionError(uri, err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return tubecheckErrors.NewConnectionError(uri, fmt.Errorf("ping failed: %w", err))
	}
	return nil
}

// LoadCertPool returns the system roots plus the PEM certificates in certPath
func LoadCertPool(certPath string) (*x509.CertPool, error) {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	certs, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert file %q: %w", certPath, err)
	}

	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		return nil, fmt.Errorf("failed to append certs from %q", certPath)
	}

	return rootCAs, nil
}
