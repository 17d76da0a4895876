// Package catalog lists the job and tube attribute names that may be used as
// predicate keys when matching.
//
// Names use the beanstalkd protocol vocabulary ("current-jobs-ready",
// "time-left"). Lookups are case-insensitive and accept the symbolic
// spelling callers tend to write in code: a leading ':' is dropped and
// underscores are read as hyphens, so "Current_Jobs_Ready" and
// ":current_jobs_ready" both resolve to "current-jobs-ready".
package catalog

import "strings"

// Job attribute names
const (
	JobID         = "id"
	JobTube       = "tube"
	JobState      = "state"
	JobPri        = "pri"
	JobAge        = "age"
	JobDelay      = "delay"
	JobTTR        = "ttr"
	JobTimeLeft   = "time-left"
	JobReserves   = "reserves"
	JobTimeouts   = "timeouts"
	JobReleases   = "releases"
	JobBuries     = "buries"
	JobKicks      = "kicks"
	JobBody       = "body"
	JobConnection = "connection"
)

// Tube attribute names
const (
	TubeName                = "name"
	TubeCurrentJobsUrgent   = "current-jobs-urgent"
	TubeCurrentJobsReady    = "current-jobs-ready"
	TubeCurrentJobsReserved = "current-jobs-reserved"
	TubeCurrentJobsDelayed  = "current-jobs-delayed"
	TubeCurrentJobsBuried   = "current-jobs-buried"
	TubeTotalJobs           = "total-jobs"
	TubeCurrentUsing        = "current-using"
	TubeCurrentWaiting      = "current-waiting"
	TubeCurrentWatching     = "current-watching"
	TubePause               = "pause"
	TubeCmdDelete           = "cmd-delete"
	TubeCmdPauseTube        = "cmd-pause-tube"
	TubePauseTimeLeft       = "pause-time-left"
)

var (
	// JobAttributes are the keys accepted when matching jobs
	JobAttributes = NewSet(
		JobID, JobTube, JobState, JobPri, JobAge, JobDelay, JobTTR, JobTimeLeft,
		JobReserves, JobTimeouts, JobReleases, JobBuries, JobKicks, JobBody, JobConnection,
	)

	// TubeAttributes are the keys accepted when matching tubes
	TubeAttributes = NewSet(
		TubeName, TubeCurrentJobsUrgent, TubeCurrentJobsReady, TubeCurrentJobsReserved,
		TubeCurrentJobsDelayed, TubeCurrentJobsBuried, TubeTotalJobs, TubeCurrentUsing,
		TubeCurrentWaiting, TubeCurrentWatching, TubePause, TubeCmdDelete, TubeCmdPauseTube,
		TubePauseTimeLeft,
	)
)

// Set is an immutable collection of attribute names
type Set struct {
	names []string
	index map[string]string
}

// NewSet builds a Set from canonical attribute names
func NewSet(names ...string) Set {
	s := Set{
		names: make([]string, 0, len(names)),
		index: make(map[string]string, len(names)),
	}
	for _, name := range names {
		key := Normalize(name)
		if _, dup := s.index[key]; dup {
			continue
		}
		s.index[key] = name
		s.names = append(s.names, name)
	}
	return s
}

// Canonical resolves key to the protocol spelling of a name in the set
func (s Set) Canonical(key string) (string, bool) {
	name, ok := s.index[Normalize(key)]
	return name, ok
}

// Contains reports whether key resolves against the set
func (s Set) Contains(key string) bool {
	_, ok := s.Canonical(key)
	return ok
}

// Names returns the canonical names in declaration order. The returned
// slice is a copy.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of names in the set
func (s Set) Len() int {
	return len(s.names)
}

// Normalize folds an attribute key into the lookup form used by Set.
func Normalize(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, ":")
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "_", "-")
}
