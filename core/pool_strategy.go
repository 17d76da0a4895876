package core

import (
	"context"
	"fmt"
	"iter"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/errors"
	"github.com/BranchIntl/tubecheck/match"
)

// PoolStrategy implements Strategy over any set of Members
type PoolStrategy struct {
	BaseStrategy
	pool *pool
}

// NewPoolStrategy creates a strategy named name over members. Member names
// must be unique within the pool.
func NewPoolStrategy(name string, members []Member, options ...Option) (*PoolStrategy, error) {
	p, err := newPool(members, options...)
	if err != nil {
		return nil, err
	}
	return &PoolStrategy{
		BaseStrategy: BaseStrategy{ID: name},
		pool:         p,
	}, nil
}

// Members returns the pool members in pool order
func (s *PoolStrategy) Members() []Member {
	out := make([]Member, len(s.pool.members))
	copy(out, s.pool.members)
	return out
}

// Jobs implements Strategy
func (s *PoolStrategy) Jobs(ctx context.Context) iter.Seq2[*Job, error] {
	return func(yield func(*Job, error) bool) {
		jobs, err := s.pool.jobs(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, j := range jobs {
			if !yield(j, nil) {
				return
			}
		}
	}
}

// Tubes implements Strategy
func (s *PoolStrategy) Tubes(ctx context.Context) iter.Seq2[*Tube, error] {
	return func(yield func(*Tube, error) bool) {
		names, err := s.pool.tubeNames(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, name := range names {
			if !yield(s.Tube(name), nil) {
				return
			}
		}
	}
}

// Tube implements Strategy
func (s *PoolStrategy) Tube(name string) *Tube {
	return &Tube{name: name, pool: s.pool}
}

// JobMatches implements Strategy
func (s *PoolStrategy) JobMatches(job *Job, opts match.Options) (bool, error) {
	if job == nil {
		return false, nil
	}
	return match.Matches(job, opts, catalog.JobAttributes)
}

// TubeMatches implements Strategy
func (s *PoolStrategy) TubeMatches(ctx context.Context, tube *Tube, opts match.Options) (bool, error) {
	if tube == nil {
		return false, nil
	}
	if err := opts.Validate(catalog.TubeAttributes); err != nil {
		return false, err
	}
	h, err := tube.ToHash(ctx)
	if err != nil {
		return false, err
	}
	if len(h) == 0 {
		return false, nil
	}
	return match.Matches(h, opts, catalog.TubeAttributes)
}

// DeleteJob implements Strategy. A nil job is already gone.
func (s *PoolStrategy) DeleteJob(ctx context.Context, job *Job) (bool, error) {
	if job == nil {
		return true, nil
	}
	m, ok := s.pool.member(job.Member)
	if !ok {
		return false, fmt.Errorf("delete job %s: %w: %s", job.ID, errors.ErrUnknownMember, job.Member)
	}

	result, err := m.DeleteJob(ctx, job.ID)
	if err != nil {
		return false, errors.NewMemberError(m.Name(), "delete_job", err)
	}

	switch result {
	case Deleted, AlreadyGone:
		return true, nil
	default:
		s.pool.logger.Warn("Job deletion refused", "member", m.Name(), "job", job.ID, "result", result)
		return false, nil
	}
}

// CollectNewJobs implements Strategy. Jobs created and removed entirely
// within fn are not reported.
func (s *PoolStrategy) CollectNewJobs(ctx context.Context, fn func(ctx context.Context) error) ([]*Job, error) {
	before, err := s.pool.jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect new jobs: %w", err)
	}
	frontier := make(map[string]bool, len(before))
	for _, j := range before {
		frontier[j.Key()] = true
	}

	if err := fn(ctx); err != nil {
		return nil, err
	}

	after, err := s.pool.jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect new jobs: %w", err)
	}

	var fresh []*Job
	for _, j := range after {
		if !frontier[j.Key()] {
			fresh = append(fresh, j)
		}
	}
	return fresh, nil
}

// PrettyPrintJob implements Strategy
func (s *PoolStrategy) PrettyPrintJob(job *Job) string {
	return FormatJob(job)
}

// PrettyPrintTube implements Strategy
func (s *PoolStrategy) PrettyPrintTube(ctx context.Context, tube *Tube) string {
	h, err := tube.ToHash(ctx)
	if err != nil {
		return fmt.Sprintf("tube %q: %v", tube.Name(), err)
	}
	return FormatTube(tube.Name(), h)
}
