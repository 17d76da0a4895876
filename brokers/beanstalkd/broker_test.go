package beanstalkd

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	tubecheckErrors "github.com/BranchIntl/tubecheck/errors"
	"github.com/beanstalkd/go-beanstalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJob is a job held by fakeClient
type fakeJob struct {
	tube  string
	state string
	body  []byte
}

// fakeClient implements client with beanstalkd reply semantics
type fakeClient struct {
	tubes  []string
	jobs   map[uint64]*fakeJob
	total  uint64
	broken error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{tubes: []string{"default"}, jobs: make(map[uint64]*fakeJob)}
}

func notFound(op string) error {
	return beanstalk.ConnError{Op: op, Err: beanstalk.ErrNotFound}
}

func (f *fakeClient) ListTubes() ([]string, error) {
	if f.broken != nil {
		return nil, f.broken
	}
	return f.tubes, nil
}

func (f *fakeClient) Stats() (map[string]string, error) {
	if f.broken != nil {
		return nil, f.broken
	}
	return map[string]string{"total-jobs": strconv.FormatUint(f.total, 10)}, nil
}

func (f *fakeClient) TubeStats(name string) (map[string]string, error) {
	if f.broken != nil {
		return nil, f.broken
	}
	for _, t := range f.tubes {
		if t == name {
			return map[string]string{"name": name, "current-jobs-ready": "1"}, nil
		}
	}
	return nil, notFound("stats-tube")
}

func (f *fakeClient) StatsJob(id uint64) (map[string]string, error) {
	if f.broken != nil {
		return nil, f.broken
	}
	j, ok := f.jobs[id]
	if !ok {
		return nil, notFound("stats-job")
	}
	return map[string]string{"id": strconv.FormatUint(id, 10), "tube": j.tube, "state": j.state}, nil
}

func (f *fakeClient) Peek(id uint64) ([]byte, error) {
	if f.broken != nil {
		return nil, f.broken
	}
	j, ok := f.jobs[id]
	if !ok {
		return nil, notFound("peek")
	}
	return j.body, nil
}

func (f *fakeClient) Put(tube string, body []byte, pri uint32, delay, ttr time.Duration) (uint64, error) {
	if f.broken != nil {
		return 0, f.broken
	}
	f.total++
	f.jobs[f.total] = &fakeJob{tube: tube, state: "ready", body: body}
	return f.total, nil
}

func (f *fakeClient) Delete(id uint64) error {
	if f.broken != nil {
		return f.broken
	}
	j, ok := f.jobs[id]
	if !ok || j.state == "reserved" {
		return notFound("delete")
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newTestBroker(options Options) (*BeanstalkBroker, *fakeClient) {
	fake := newFakeClient()
	b := NewBroker(options)
	b.client = fake
	return b, fake
}

func TestNewBroker(t *testing.T) {
	b := NewBroker(DefaultOptions())

	assert.Equal(t, "localhost:11300", b.Name())
	assert.Equal(t, "beanstalkd", b.Type())
	assert.ErrorIs(t, b.Health(), tubecheckErrors.ErrNotConnected)

	_, err := b.ListJobs(context.Background())
	assert.ErrorIs(t, err, tubecheckErrors.ErrNotConnected)
}

func TestBeanstalkBroker_ConnectRefused(t *testing.T) {
	options := DefaultOptions()
	options.Address = "127.0.0.1:1"
	options.DialTimeout = 100 * time.Millisecond

	err := NewBroker(options).Connect(context.Background())
	var connErr *tubecheckErrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "127.0.0.1:1", connErr.URI)
}

func TestBeanstalkBroker_Tubes(t *testing.T) {
	b, fake := newTestBroker(DefaultOptions())
	ctx := context.Background()
	fake.tubes = append(fake.tubes, "emails")

	names, err := b.ListTubeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "emails"}, names)

	stats, err := b.TubeStats(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, "emails", stats["name"])

	_, err = b.TubeStats(ctx, "missing")
	assert.ErrorIs(t, err, tubecheckErrors.ErrTubeNotFound)
}

func TestBeanstalkBroker_ListJobs(t *testing.T) {
	b, fake := newTestBroker(DefaultOptions())
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three", "four"} {
		_, err := b.Put(ctx, "default", []byte(body), 1024, 0, time.Minute)
		require.NoError(t, err)
	}
	delete(fake.jobs, 2)

	raw, err := b.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 3)
	assert.Equal(t, "1", raw[0].ID)
	assert.Equal(t, []byte("one"), raw[0].Body)
	assert.Equal(t, "3", raw[1].ID)
	assert.Equal(t, "4", raw[2].ID)
	assert.Equal(t, "default", raw[2].Stats["tube"])
}

func TestBeanstalkBroker_MaxScan(t *testing.T) {
	options := DefaultOptions()
	options.MaxScan = 2
	b, _ := newTestBroker(options)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.Put(ctx, "default", nil, 1024, 0, time.Minute)
		require.NoError(t, err)
	}

	raw, err := b.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "4", raw[0].ID)
	assert.Equal(t, "5", raw[1].ID)
}

func TestBeanstalkBroker_DeleteJob(t *testing.T) {
	b, fake := newTestBroker(DefaultOptions())
	ctx := context.Background()

	free, err := b.Put(ctx, "default", []byte("free"), 1024, 0, time.Minute)
	require.NoError(t, err)
	held, err := b.Put(ctx, "default", []byte("held"), 1024, 0, time.Minute)
	require.NoError(t, err)
	fake.jobs[2].state = "reserved"

	tests := []struct {
		name     string
		id       string
		expected core.DeleteResult
	}{
		{"ready job", free, core.Deleted},
		{"deleted again", free, core.AlreadyGone},
		{"reserved elsewhere", held, core.Refused},
		{"never existed", "99", core.AlreadyGone},
		{"malformed id", "abc", core.AlreadyGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := b.DeleteJob(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBeanstalkBroker_TransportFailure(t *testing.T) {
	b, fake := newTestBroker(DefaultOptions())
	ctx := context.Background()
	fake.broken = beanstalk.ConnError{Op: "list-tubes", Err: io.ErrUnexpectedEOF}

	_, err := b.ListTubeNames(ctx)
	var connErr *tubecheckErrors.ConnectionError
	require.ErrorAs(t, err, &connErr)

	_, err = b.TubeStats(ctx, "default")
	assert.ErrorAs(t, err, &connErr)
	assert.False(t, tubecheckErrors.IsNotFound(err))

	_, err = b.ListJobs(ctx)
	assert.ErrorAs(t, err, &connErr)

	_, err = b.DeleteJob(ctx, "1")
	assert.ErrorAs(t, err, &connErr)
}

func TestBeanstalkBroker_Close(t *testing.T) {
	b, fake := newTestBroker(DefaultOptions())

	require.NoError(t, b.Close())
	assert.True(t, fake.closed)
	assert.ErrorIs(t, b.Health(), tubecheckErrors.ErrNotConnected)
	require.NoError(t, b.Close())
}

func TestBeanstalkBroker_Pool(t *testing.T) {
	optsA := DefaultOptions()
	optsA.Address = "a:11300"
	a, _ := newTestBroker(optsA)
	optsB := DefaultOptions()
	optsB.Address = "b:11300"
	b, _ := newTestBroker(optsB)
	ctx := context.Background()

	strategy, err := core.NewPoolStrategy("beanstalkd", []core.Member{a, b})
	require.NoError(t, err)

	jobs, err := strategy.CollectNewJobs(ctx, func(ctx context.Context) error {
		if _, err := a.Put(ctx, "default", []byte("A"), 1024, 0, time.Minute); err != nil {
			return err
		}
		_, err := b.Put(ctx, "default", []byte("B"), 1024, 0, time.Minute)
		return err
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a:11300#1", jobs[0].Key())
	assert.Equal(t, "b:11300#1", jobs[1].Key())

	ready, err := strategy.Tube("default").CurrentJobsReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ready)
}
