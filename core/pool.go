package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/BranchIntl/tubecheck/errors"
	"github.com/BranchIntl/tubecheck/match"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/BranchIntl/tubecheck/core"

// pool fans requests out to every member and waits for all of them. A
// failing member aborts the whole operation.
type pool struct {
	members []Member
	byName  map[string]Member
	config  *Config
	tracer  trace.Tracer
	logger  *slog.Logger
}

func newPool(members []Member, options ...Option) (*pool, error) {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	p := &pool{
		members: make([]Member, len(members)),
		byName:  make(map[string]Member, len(members)),
		config:  config,
		tracer:  config.TracerProvider.Tracer(tracerName),
		logger:  config.Logger,
	}
	copy(p.members, members)

	for _, m := range members {
		if _, dup := p.byName[m.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateMember, m.Name())
		}
		p.byName[m.Name()] = m
	}
	return p, nil
}

// each runs fn against every member concurrently
func (p *pool) each(ctx context.Context, op string, fn func(ctx context.Context, i int, m Member) error) (err error) {
	ctx, span := p.tracer.Start(ctx, "tubecheck."+op,
		trace.WithAttributes(attribute.Int("tubecheck.members", len(p.members))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p.logger.Debug("Querying pool", "op", op, "members", len(p.members))

	g, gctx := errgroup.WithContext(ctx)
	if p.config.Concurrency > 0 {
		g.SetLimit(p.config.Concurrency)
	}
	for i, m := range p.members {
		g.Go(func() error {
			return errors.NewMemberError(m.Name(), op, fn(gctx, i, m))
		})
	}
	return g.Wait()
}

// tubeStats returns the parsed stats of every member that knows the tube,
// in pool order.
func (p *pool) tubeStats(ctx context.Context, name string) ([]match.Attributes, error) {
	results := make([]match.Attributes, len(p.members))
	err := p.each(ctx, "tube_stats", func(ctx context.Context, i int, m Member) error {
		raw, err := m.TubeStats(ctx, name)
		if errors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		results[i] = ParseStats(raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats for tube %s: %w", name, err)
	}

	reported := make([]match.Attributes, 0, len(results))
	for _, r := range results {
		if len(r) > 0 {
			reported = append(reported, r)
		}
	}
	return reported, nil
}

// tubeNames returns the sorted union of tube names across the pool
func (p *pool) tubeNames(ctx context.Context) ([]string, error) {
	results := make([][]string, len(p.members))
	err := p.each(ctx, "list_tubes", func(ctx context.Context, i int, m Member) error {
		names, err := m.ListTubeNames(ctx)
		results[i] = names
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tubes: %w", err)
	}

	seen := map[string]bool{}
	var names []string
	for _, r := range results {
		for _, name := range r {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// jobs returns every job in the pool, grouped by member in pool order
func (p *pool) jobs(ctx context.Context) ([]*Job, error) {
	results := make([][]*Job, len(p.members))
	err := p.each(ctx, "list_jobs", func(ctx context.Context, i int, m Member) error {
		raw, err := m.ListJobs(ctx)
		if err != nil {
			return err
		}
		jobs := make([]*Job, 0, len(raw))
		for _, r := range raw {
			jobs = append(jobs, NewJob(m.Name(), r))
		}
		results[i] = jobs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	var all []*Job
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (p *pool) member(name string) (Member, bool) {
	m, ok := p.byName[name]
	return m, ok
}
