package core

import (
	"context"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/errors"
	"github.com/BranchIntl/tubecheck/match"
)

// Tube is one named queue as seen across every member of a pool. It holds
// no stats of its own: every accessor queries the pool again, so values are
// always current and never cached.
type Tube struct {
	name string
	pool *pool
}

// NewTube returns the pool-wide view of the tube called name
func NewTube(name string, members ...Member) (*Tube, error) {
	p, err := newPool(members)
	if err != nil {
		return nil, err
	}
	return &Tube{name: name, pool: p}, nil
}

// Name returns the tube name
func (t *Tube) Name() string {
	return t.name
}

// ToHash fetches the tube's stats from every member and merges them: numeric
// stats are summed, text stats keep the first member's value. A tube no
// member reports yields an empty map.
func (t *Tube) ToHash(ctx context.Context) (match.Attributes, error) {
	stats, err := t.pool.tubeStats(ctx, t.name)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

// Exists reports whether at least one member knows the tube
func (t *Tube) Exists(ctx context.Context) (bool, error) {
	h, err := t.ToHash(ctx)
	if err != nil {
		return false, err
	}
	return len(h) > 0, nil
}

// Attribute returns one merged stat. The name must be in
// catalog.TubeAttributes. A missing stat is returned as nil.
func (t *Tube) Attribute(ctx context.Context, name string) (any, error) {
	canonical, ok := catalog.TubeAttributes.Canonical(name)
	if !ok {
		return nil, &errors.InvalidMatchKeyError{Key: name, Allowed: catalog.TubeAttributes.Names()}
	}
	h, err := t.ToHash(ctx)
	if err != nil {
		return nil, err
	}
	return h[canonical], nil
}

func (t *Tube) count(ctx context.Context, name string) (int64, error) {
	v, err := t.Attribute(ctx, name)
	if err != nil {
		return 0, err
	}
	return asInt(v), nil
}

// CurrentJobsUrgent returns the pool-wide number of ready jobs with priority < 1024
func (t *Tube) CurrentJobsUrgent(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentJobsUrgent)
}

// CurrentJobsReady returns the pool-wide number of ready jobs
func (t *Tube) CurrentJobsReady(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentJobsReady)
}

// CurrentJobsReserved returns the pool-wide number of reserved jobs
func (t *Tube) CurrentJobsReserved(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentJobsReserved)
}

// CurrentJobsDelayed returns the pool-wide number of delayed jobs
func (t *Tube) CurrentJobsDelayed(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentJobsDelayed)
}

// CurrentJobsBuried returns the pool-wide number of buried jobs
func (t *Tube) CurrentJobsBuried(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentJobsBuried)
}

// TotalJobs returns the pool-wide number of jobs ever put into the tube
func (t *Tube) TotalJobs(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeTotalJobs)
}

// CurrentUsing returns the number of producers using the tube
func (t *Tube) CurrentUsing(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentUsing)
}

// CurrentWaiting returns the number of clients blocked in reserve on the tube
func (t *Tube) CurrentWaiting(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentWaiting)
}

// CurrentWatching returns the number of clients watching the tube
func (t *Tube) CurrentWatching(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCurrentWatching)
}

// Pause returns the tube's pause duration in seconds, summed across the pool
func (t *Tube) Pause(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubePause)
}

// CmdDelete returns the pool-wide number of delete commands for the tube
func (t *Tube) CmdDelete(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCmdDelete)
}

// CmdPauseTube returns the pool-wide number of pause-tube commands for the tube
func (t *Tube) CmdPauseTube(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubeCmdPauseTube)
}

// PauseTimeLeft returns the seconds of pause remaining, summed across the pool
func (t *Tube) PauseTimeLeft(ctx context.Context) (int64, error) {
	return t.count(ctx, catalog.TubePauseTimeLeft)
}
