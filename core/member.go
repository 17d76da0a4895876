package core

import (
	"context"
	"strconv"
)

// Member is one queue server of a pool, as seen through whatever client
// library talks to it. Implementations live under brokers/.
type Member interface {
	// Name identifies the member within its pool, usually its address
	Name() string

	// ListTubeNames returns every tube the server currently knows about
	ListTubeNames(ctx context.Context) ([]string, error)

	// TubeStats returns the raw stats of one tube. A tube the server does
	// not know must be reported as errors.ErrTubeNotFound, never as a
	// connection failure.
	TubeStats(ctx context.Context, name string) (map[string]string, error)

	// ListJobs returns every job currently held by the server
	ListJobs(ctx context.Context) ([]RawJob, error)

	// DeleteJob removes a job by its server-local id
	DeleteJob(ctx context.Context, id string) (DeleteResult, error)
}

// RawJob is a job as reported by a member: its id, its protocol stats and
// its body.
type RawJob struct {
	ID    string
	Stats map[string]string
	Body  []byte
}

// DeleteResult is the outcome of asking a member to delete a job
type DeleteResult int

const (
	// Deleted means the member removed the job
	Deleted DeleteResult = iota
	// AlreadyGone means the member no longer had the job
	AlreadyGone
	// Refused means the member had the job but would not delete it
	Refused
)

func (r DeleteResult) String() string {
	switch r {
	case Deleted:
		return "deleted"
	case AlreadyGone:
		return "already_gone"
	case Refused:
		return "refused"
	}
	return "delete_result(" + strconv.Itoa(int(r)) + ")"
}
