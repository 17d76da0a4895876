package core

import (
	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/match"
)

// Job is a unit of work as reported by the one member holding it. Jobs are
// snapshots: they are never merged across members and never refreshed.
type Job struct {
	ID     string
	Member string

	Tube       string
	State      string
	Pri        int64
	Age        int64
	Delay      int64
	TTR        int64
	TimeLeft   int64
	Reserves   int64
	Timeouts   int64
	Releases   int64
	Buries     int64
	Kicks      int64
	Body       []byte
	Connection string
}

// NewJob builds a Job from the raw data reported by member
func NewJob(member string, raw RawJob) *Job {
	stats := ParseStats(raw.Stats)
	return &Job{
		ID:         raw.ID,
		Member:     member,
		Tube:       raw.Stats[catalog.JobTube],
		State:      raw.Stats[catalog.JobState],
		Pri:        asInt(stats[catalog.JobPri]),
		Age:        asInt(stats[catalog.JobAge]),
		Delay:      asInt(stats[catalog.JobDelay]),
		TTR:        asInt(stats[catalog.JobTTR]),
		TimeLeft:   asInt(stats[catalog.JobTimeLeft]),
		Reserves:   asInt(stats[catalog.JobReserves]),
		Timeouts:   asInt(stats[catalog.JobTimeouts]),
		Releases:   asInt(stats[catalog.JobReleases]),
		Buries:     asInt(stats[catalog.JobBuries]),
		Kicks:      asInt(stats[catalog.JobKicks]),
		Body:       raw.Body,
		Connection: raw.Stats[catalog.JobConnection],
	}
}

// Key identifies the job across the whole pool
func (j *Job) Key() string {
	return j.Member + "#" + j.ID
}

// jobAttributes maps every catalog.JobAttributes name to its extractor
var jobAttributes = map[string]func(j *Job) (any, bool){
	catalog.JobID:       func(j *Job) (any, bool) { return match.ParseValue(j.ID), true },
	catalog.JobTube:     func(j *Job) (any, bool) { return j.Tube, true },
	catalog.JobState:    func(j *Job) (any, bool) { return j.State, true },
	catalog.JobPri:      func(j *Job) (any, bool) { return j.Pri, true },
	catalog.JobAge:      func(j *Job) (any, bool) { return j.Age, true },
	catalog.JobDelay:    func(j *Job) (any, bool) { return j.Delay, true },
	catalog.JobTTR:      func(j *Job) (any, bool) { return j.TTR, true },
	catalog.JobTimeLeft: func(j *Job) (any, bool) { return j.TimeLeft, true },
	catalog.JobReserves: func(j *Job) (any, bool) { return j.Reserves, true },
	catalog.JobTimeouts: func(j *Job) (any, bool) { return j.Timeouts, true },
	catalog.JobReleases: func(j *Job) (any, bool) { return j.Releases, true },
	catalog.JobBuries:   func(j *Job) (any, bool) { return j.Buries, true },
	catalog.JobKicks:    func(j *Job) (any, bool) { return j.Kicks, true },
	catalog.JobBody:     func(j *Job) (any, bool) { return string(j.Body), true },
	catalog.JobConnection: func(j *Job) (any, bool) {
		if j.Connection == "" {
			return nil, false
		}
		return j.Connection, true
	},
}

// Attribute implements match.Entity. Keys are resolved through
// catalog.JobAttributes.
func (j *Job) Attribute(name string) (any, bool) {
	canonical, ok := catalog.JobAttributes.Canonical(name)
	if !ok {
		return nil, false
	}
	return jobAttributes[canonical](j)
}

// ToHash returns every attribute the job has
func (j *Job) ToHash() match.Attributes {
	out := make(match.Attributes, len(jobAttributes))
	for _, name := range catalog.JobAttributes.Names() {
		if v, ok := j.Attribute(name); ok {
			out[name] = v
		}
	}
	return out
}
