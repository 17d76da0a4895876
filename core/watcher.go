package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/BranchIntl/tubecheck/match"
)

// TubeState is the merged stats of one tube at one poll
type TubeState struct {
	Name  string
	Stats match.Attributes
}

// Snapshot is the state of every watched tube at one poll
type Snapshot struct {
	At    time.Time
	Tubes []TubeState
}

// Watcher polls the tubes of a strategy at a fixed interval
type Watcher struct {
	strategy Strategy
	interval time.Duration
	filter   match.Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewWatcher creates a new watcher
func NewWatcher(strategy Strategy, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		strategy: strategy,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// SetFilter restricts the watched tubes to those matching opts
func (w *Watcher) SetFilter(opts match.Options) {
	w.filter = opts
}

// Start sends a snapshot to out after every poll until ctx is done, then
// closes out. A failed poll is logged and retried after the interval.
func (w *Watcher) Start(ctx context.Context, out chan<- Snapshot) error {
	w.logger.Debug("Watcher started", "strategy", w.strategy.Name(), "interval", w.interval)
	defer close(out)

	for {
		snap, err := w.Poll(ctx)
		switch {
		case ctx.Err() != nil:
			w.logger.Debug("Watcher stopped")
			return nil
		case err != nil:
			w.logger.Error("Error polling tubes", "error", err)
		default:
			select {
			case <-ctx.Done():
				w.logger.Debug("Watcher stopped")
				return nil
			case out <- snap:
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Debug("Watcher stopped")
			return nil
		case <-time.After(w.interval):
		}
	}
}

// Poll takes one snapshot of the matching tubes
func (w *Watcher) Poll(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{At: w.now()}
	for tube, err := range w.strategy.Tubes(ctx) {
		if err != nil {
			return Snapshot{}, err
		}
		ok, err := w.strategy.TubeMatches(ctx, tube, w.filter)
		if err != nil {
			return Snapshot{}, err
		}
		if !ok {
			continue
		}
		stats, err := tube.ToHash(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Tubes = append(snap.Tubes, TubeState{Name: tube.Name(), Stats: stats})
	}
	return snap, nil
}
