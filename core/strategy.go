package core

import (
	"context"
	"iter"

	"github.com/BranchIntl/tubecheck/errors"
	"github.com/BranchIntl/tubecheck/match"
)

// Strategy enumerates, matches and deletes jobs and tubes across a pool of
// queue servers.
type Strategy interface {
	// Name returns the identifier the strategy is registered under
	Name() string

	// Jobs yields every job in the pool. The pool is queried when iteration
	// starts; iterating again queries it again.
	Jobs(ctx context.Context) iter.Seq2[*Job, error]

	// Tubes yields one Tube per distinct tube name found on any member
	Tubes(ctx context.Context) iter.Seq2[*Tube, error]

	// Tube returns the pool-wide view of the named tube
	Tube(name string) *Tube

	// JobMatches checks a job against predicates keyed by catalog.JobAttributes
	JobMatches(job *Job, opts match.Options) (bool, error)

	// TubeMatches checks a tube against predicates keyed by
	// catalog.TubeAttributes. A tube no member reports never matches.
	TubeMatches(ctx context.Context, tube *Tube, opts match.Options) (bool, error)

	// DeleteJob deletes the job from the member holding it. It returns true
	// when the job is gone afterwards and false when the member refused.
	DeleteJob(ctx context.Context, job *Job) (bool, error)

	// CollectNewJobs runs fn and returns the jobs that appeared anywhere in
	// the pool while it ran.
	CollectNewJobs(ctx context.Context, fn func(ctx context.Context) error) ([]*Job, error)

	// PrettyPrintJob renders a job for failure messages
	PrettyPrintJob(job *Job) string

	// PrettyPrintTube renders a tube for failure messages
	PrettyPrintTube(ctx context.Context, tube *Tube) string
}

// BaseStrategy documents the Strategy capability set. Every method fails
// with errors.ErrNotImplemented; concrete strategies embed it and override
// all of them. The two render methods cannot return an error and panic.
type BaseStrategy struct {
	ID string
}

// Name implements Strategy
func (b BaseStrategy) Name() string {
	return b.ID
}

func (b BaseStrategy) notImplemented(op string) error {
	return errors.NewNotImplementedError(b.ID, op)
}

func (b BaseStrategy) Jobs(ctx context.Context) iter.Seq2[*Job, error] {
	return func(yield func(*Job, error) bool) {
		yield(nil, b.notImplemented("jobs"))
	}
}

func (b BaseStrategy) Tubes(ctx context.Context) iter.Seq2[*Tube, error] {
	return func(yield func(*Tube, error) bool) {
		yield(nil, b.notImplemented("tubes"))
	}
}

func (b BaseStrategy) Tube(name string) *Tube {
	panic(b.notImplemented("tube"))
}

func (b BaseStrategy) JobMatches(job *Job, opts match.Options) (bool, error) {
	return false, b.notImplemented("job_matches")
}

func (b BaseStrategy) TubeMatches(ctx context.Context, tube *Tube, opts match.Options) (bool, error) {
	return false, b.notImplemented("tube_matches")
}

func (b BaseStrategy) DeleteJob(ctx context.Context, job *Job) (bool, error) {
	return false, b.notImplemented("delete_job")
}

func (b BaseStrategy) CollectNewJobs(ctx context.Context, fn func(ctx context.Context) error) ([]*Job, error) {
	return nil, b.notImplemented("collect_new_jobs")
}

func (b BaseStrategy) PrettyPrintJob(job *Job) string {
	panic(b.notImplemented("pretty_print_job"))
}

func (b BaseStrategy) PrettyPrintTube(ctx context.Context, tube *Tube) string {
	panic(b.notImplemented("pretty_print_tube"))
}

// CollectJobs drains a job sequence into a slice, stopping at the first error
func CollectJobs(seq iter.Seq2[*Job, error]) ([]*Job, error) {
	var jobs []*Job
	for j, err := range seq {
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CollectTubes drains a tube sequence into a slice, stopping at the first error
func CollectTubes(seq iter.Seq2[*Tube, error]) ([]*Tube, error) {
	var tubes []*Tube
	for t, err := range seq {
		if err != nil {
			return nil, err
		}
		tubes = append(tubes, t)
	}
	return tubes, nil
}
