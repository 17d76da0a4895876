package core

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/BranchIntl/tubecheck/errors"
)

// Mock implementations for testing

// MockMember implements the Member interface for testing
type MockMember struct {
	mu            sync.RWMutex
	name          string
	tubes         map[string]map[string]string
	jobs          []RawJob
	deleteResults map[string]DeleteResult
	listTubesErr  error
	tubeStatsErr  error
	listJobsErr   error
	deleteErr     error
	nextID        int
	statsCalls    int
	deleted       []string
}

func NewMockMember(name string) *MockMember {
	return &MockMember{
		name:          name,
		tubes:         make(map[string]map[string]string),
		deleteResults: make(map[string]DeleteResult),
	}
}

func (m *MockMember) Name() string { return m.name }

func (m *MockMember) ListTubeNames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.listTubesErr != nil {
		return nil, m.listTubesErr
	}
	names := make([]string, 0, len(m.tubes))
	for name := range m.tubes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockMember) TubeStats(ctx context.Context, name string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statsCalls++
	if m.tubeStatsErr != nil {
		return nil, m.tubeStatsErr
	}
	stats, ok := m.tubes[name]
	if !ok {
		return nil, errors.ErrTubeNotFound
	}
	out := make(map[string]string, len(stats)+1)
	out["name"] = name
	for k, v := range stats {
		out[k] = v
	}
	return out, nil
}

func (m *MockMember) ListJobs(ctx context.Context) ([]RawJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.listJobsErr != nil {
		return nil, m.listJobsErr
	}
	out := make([]RawJob, len(m.jobs))
	copy(out, m.jobs)
	return out, nil
}

func (m *MockMember) DeleteJob(ctx context.Context, id string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return Refused, m.deleteErr
	}
	if r, ok := m.deleteResults[id]; ok {
		return r, nil
	}
	for i, j := range m.jobs {
		if j.ID == id {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			m.deleted = append(m.deleted, id)
			return Deleted, nil
		}
	}
	return AlreadyGone, nil
}

// Helper methods for testing

func (m *MockMember) SetTube(name string, stats map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tubes[name] = stats
}

func (m *MockMember) RemoveTube(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tubes, name)
}

// AddJob appends a ready job to tube and returns its id
func (m *MockMember) AddJob(tube string, stats map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := strconv.Itoa(m.nextID)
	s := map[string]string{"id": id, "tube": tube, "state": "ready"}
	for k, v := range stats {
		s[k] = v
	}
	m.jobs = append(m.jobs, RawJob{ID: id, Stats: s, Body: []byte("job " + id)})
	return id
}

func (m *MockMember) RemoveJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, j := range m.jobs {
		if j.ID == id {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return
		}
	}
}

func (m *MockMember) SetTubeStatsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tubeStatsErr = err
}

func (m *MockMember) SetListTubesError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listTubesErr = err
}

func (m *MockMember) SetListJobsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listJobsErr = err
}

func (m *MockMember) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

func (m *MockMember) SetDeleteResult(id string, r DeleteResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteResults[id] = r
}

func (m *MockMember) StatsCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsCalls
}
