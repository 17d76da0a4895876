package tubecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BranchIntl/tubecheck/config"
	"github.com/BranchIntl/tubecheck/core"
	tubecheckErrors "github.com/BranchIntl/tubecheck/errors"
	"github.com/BranchIntl/tubecheck/registry"
	_ "github.com/BranchIntl/tubecheck/strategies"
	"github.com/cenkalti/backoff"
)

// Pool is a strategy opened over dialed members. Close releases the
// members' connections.
type Pool struct {
	core.Strategy
	members []core.Member
}

// Members returns the dialed members in pool order
func (p *Pool) Members() []core.Member {
	return p.members
}

// Close closes every member that holds a connection
func (p *Pool) Close() error {
	return closeMembers(p.members)
}

// Option configures Open
type Option func(*openConfig)

type openConfig struct {
	registry *registry.Registry
	backoff  func() backoff.BackOff
	logger   *slog.Logger
	strategy []core.Option
}

// WithRegistry resolves the strategy kind in r instead of registry.Default
func WithRegistry(r *registry.Registry) Option {
	return func(c *openConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithBackOff sets the delay policy between member dial attempts. The
// number of attempts is still bounded by the configured retries.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *openConfig) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

// WithLogger sets the logger used while dialing and by the strategy
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStrategyOptions passes options through to the strategy factory
func WithStrategyOptions(options ...core.Option) Option {
	return func(c *openConfig) {
		c.strategy = append(c.strategy, options...)
	}
}

// Open materializes cfg.Strategy, dials every member in order and builds
// the strategy over them. A member that cannot be dialed after the
// configured retries fails the whole Open.
func Open(ctx context.Context, cfg *config.Config, options ...Option) (*Pool, error) {
	oc := &openConfig{
		registry: registry.Default,
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(oc)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kind, err := oc.registry.Materialize(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if kind.Dial == nil {
		return nil, fmt.Errorf("strategy %s cannot dial members: %w", kind.Name, tubecheckErrors.ErrInvalidConfig)
	}

	dialOpts := registry.DialOptions{
		Timeout:   cfg.DialTimeout,
		Namespace: cfg.Namespace,
		Queues:    cfg.Queues,
	}

	members := make([]core.Member, 0, len(cfg.Members))
	for _, addr := range cfg.Members {
		member, err := dial(ctx, kind, addr, dialOpts, oc.policy(cfg.Retries), oc.logger)
		if err != nil {
			closeMembers(members)
			return nil, err
		}
		members = append(members, member)
	}

	strategyOpts := append([]core.Option{
		core.WithConcurrency(cfg.Concurrency),
		core.WithLogger(oc.logger),
	}, oc.strategy...)

	strategy, err := kind.New(members, strategyOpts...)
	if err != nil {
		closeMembers(members)
		return nil, fmt.Errorf("failed to create strategy %s: %w", kind.Name, err)
	}

	oc.logger.Debug("Pool opened", "strategy", strategy.Name(), "members", len(members))
	return &Pool{Strategy: strategy, members: members}, nil
}

// policy bounds the backoff to retries further attempts
func (c *openConfig) policy(retries int) backoff.BackOff {
	if retries <= 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(c.backoff(), uint64(retries))
}

// dial connects one member, retrying with b until it is exhausted
func dial(ctx context.Context, kind registry.Kind, addr string, opts registry.DialOptions, b backoff.BackOff, logger *slog.Logger) (core.Member, error) {
	b.Reset()
	for attempt := 1; ; attempt++ {
		member, err := kind.Dial(ctx, addr, opts)
		if err == nil {
			return member, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return nil, fmt.Errorf("failed to dial %s member %s after %d attempts: %w", kind.Name, addr, attempt, err)
		}
		logger.Warn("Member dial failed, retrying", "member", addr, "attempt", attempt, "delay", delay,
			"timeout", tubecheckErrors.IsTimeout(err), "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func closeMembers(members []core.Member) error {
	var errs []error
	for _, m := range members {
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", m.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
