package memory

import (
	"context"
	"testing"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for testing
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestServer(t *testing.T) (*Server, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	options := DefaultOptions()
	options.Name = "mem:11300"
	options.Clock = clock.Now

	s := NewServer(options)
	require.NoError(t, s.Connect(context.Background()))
	return s, clock
}

func TestNewServer(t *testing.T) {
	options := DefaultOptions()
	s := NewServer(options)

	require.NotNil(t, s)
	assert.Equal(t, "memory", s.Name())
	assert.Equal(t, "memory", s.Type())
	assert.False(t, s.connected)
	assert.Contains(t, s.tubes, "default")
}

func TestServer_Health(t *testing.T) {
	s := NewServer(DefaultOptions())

	// Not connected - should return error
	err := s.Health()
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	require.NoError(t, s.Connect(context.Background()))
	assert.NoError(t, s.Health())

	s.SetDown(true)
	err = s.Health()
	var connErr *errors.ConnectionError
	assert.ErrorAs(t, err, &connErr)

	s.SetDown(false)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Health(), errors.ErrNotConnected)
}

func TestServer_PutAndStats(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "emails", []byte("a"), 10, 0, time.Minute)
	require.NoError(t, err)
	_, err = s.Put(ctx, "emails", []byte("b"), 2000, 0, time.Minute)
	require.NoError(t, err)
	_, err = s.Put(ctx, "emails", []byte("c"), 10, 30*time.Second, time.Minute)
	require.NoError(t, err)

	names, err := s.ListTubeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "emails"}, names)

	stats, err := s.TubeStats(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, "emails", stats["name"])
	assert.Equal(t, "1", stats["current-jobs-urgent"])
	assert.Equal(t, "2", stats["current-jobs-ready"])
	assert.Equal(t, "1", stats["current-jobs-delayed"])
	assert.Equal(t, "3", stats["total-jobs"])

	_, err = s.TubeStats(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrTubeNotFound)
}

func TestServer_ReserveReleaseBuryKick(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	low, err := s.Put(ctx, "work", []byte("low"), 100, 0, time.Minute)
	require.NoError(t, err)
	high, err := s.Put(ctx, "work", []byte("high"), 1, 0, time.Minute)
	require.NoError(t, err)

	t.Run("reserve picks most urgent", func(t *testing.T) {
		id, body, err := s.Reserve(ctx, "work")
		require.NoError(t, err)
		assert.Equal(t, high, id)
		assert.Equal(t, []byte("high"), body)
	})

	t.Run("release back to ready", func(t *testing.T) {
		require.NoError(t, s.Release(ctx, high, 1, 0))
		assert.ErrorIs(t, s.Release(ctx, high, 1, 0), errors.ErrJobNotFound)
	})

	t.Run("bury", func(t *testing.T) {
		id, _, err := s.Reserve(ctx, "work")
		require.NoError(t, err)
		require.NoError(t, s.Bury(ctx, id, 5))

		stats, err := s.TubeStats(ctx, "work")
		require.NoError(t, err)
		assert.Equal(t, "1", stats["current-jobs-buried"])
		assert.Equal(t, "1", stats["current-jobs-ready"])
	})

	t.Run("kick", func(t *testing.T) {
		n, err := s.Kick(ctx, "work", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		raw, err := s.ListJobs(ctx)
		require.NoError(t, err)
		require.Len(t, raw, 2)
		assert.Equal(t, low, raw[0].ID)
		assert.Equal(t, high, raw[1].ID)
		assert.Equal(t, "ready", raw[1].Stats["state"])
		assert.Equal(t, "2", raw[1].Stats["reserves"])
		assert.Equal(t, "1", raw[1].Stats["releases"])
		assert.Equal(t, "1", raw[1].Stats["buries"])
		assert.Equal(t, "1", raw[1].Stats["kicks"])
		assert.Equal(t, "5", raw[1].Stats["pri"])
	})

	t.Run("nothing ready in other tube", func(t *testing.T) {
		_, _, err := s.Reserve(ctx, "other")
		assert.ErrorIs(t, err, errors.ErrJobNotFound)
	})
}

func TestServer_Clock(t *testing.T) {
	s, clock := newTestServer(t)
	ctx := context.Background()

	delayed, err := s.Put(ctx, "", []byte("later"), 10, 30*time.Second, 10*time.Second)
	require.NoError(t, err)

	_, _, err = s.Reserve(ctx)
	assert.ErrorIs(t, err, errors.ErrJobNotFound)

	raw, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", raw[0].Stats["tube"])
	assert.Equal(t, "delayed", raw[0].Stats["state"])
	assert.Equal(t, "30", raw[0].Stats["time-left"])

	clock.Advance(30 * time.Second)
	id, _, err := s.Reserve(ctx)
	require.NoError(t, err)
	assert.Equal(t, delayed, id)

	clock.Advance(4 * time.Second)
	raw, err = s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reserved", raw[0].Stats["state"])
	assert.Equal(t, "6", raw[0].Stats["time-left"])
	assert.Equal(t, "34", raw[0].Stats["age"])

	// reservation expires
	clock.Advance(6 * time.Second)
	raw, err = s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", raw[0].Stats["state"])
	assert.Equal(t, "1", raw[0].Stats["timeouts"])
}

func TestServer_PauseTube(t *testing.T) {
	s, clock := newTestServer(t)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, "slow", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.PauseTube(ctx, "slow", time.Minute))
	assert.ErrorIs(t, s.PauseTube(ctx, "missing", time.Minute), errors.ErrTubeNotFound)

	_, _, err = s.Reserve(ctx, "slow")
	assert.ErrorIs(t, err, errors.ErrJobNotFound)

	clock.Advance(20 * time.Second)
	stats, err := s.TubeStats(ctx, "slow")
	require.NoError(t, err)
	assert.Equal(t, "60", stats["pause"])
	assert.Equal(t, "40", stats["pause-time-left"])
	assert.Equal(t, "1", stats["cmd-pause-tube"])

	clock.Advance(40 * time.Second)
	_, _, err = s.Reserve(ctx, "slow")
	assert.NoError(t, err)
}

func TestServer_TubeLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.Watch(ctx, "watched"))
	require.NoError(t, s.Use(ctx, "used"))
	id, err := s.Enqueue(ctx, "transient", []byte("x"))
	require.NoError(t, err)

	names, err := s.ListTubeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "transient", "used", "watched"}, names)

	stats, err := s.TubeStats(ctx, "watched")
	require.NoError(t, err)
	assert.Equal(t, "1", stats["current-watching"])

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), errors.ErrJobNotFound)
	require.NoError(t, s.Ignore(ctx, "watched"))

	names, err = s.ListTubeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "used"}, names)
}

func TestServer_DeleteJob(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	ready, err := s.Enqueue(ctx, "", []byte("ready"))
	require.NoError(t, err)
	taken, err := s.Enqueue(ctx, "", []byte("taken"))
	require.NoError(t, err)

	// reserves the older job
	id, _, err := s.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, ready, id)

	result, err := s.DeleteJob(ctx, ready)
	require.NoError(t, err)
	assert.Equal(t, core.Refused, result)

	result, err = s.DeleteJob(ctx, taken)
	require.NoError(t, err)
	assert.Equal(t, core.Deleted, result)

	result, err = s.DeleteJob(ctx, taken)
	require.NoError(t, err)
	assert.Equal(t, core.AlreadyGone, result)

	result, err = s.DeleteJob(ctx, "not-a-number")
	require.NoError(t, err)
	assert.Equal(t, core.AlreadyGone, result)
}

func TestServer_Down(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	s.SetDown(true)

	_, err := s.ListTubeNames(ctx)
	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "mem:11300", connErr.URI)

	_, err = s.TubeStats(ctx, "default")
	assert.Error(t, err)
	assert.False(t, errors.IsNotFound(err))

	_, err = s.ListJobs(ctx)
	assert.Error(t, err)

	_, err = s.Enqueue(ctx, "", nil)
	assert.Error(t, err)
}

func TestServer_ContextCanceled(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListJobs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDial(t *testing.T) {
	defer Hangup("dial-test:11300")

	a := Dial("dial-test:11300")
	b := Dial("dial-test:11300")
	assert.Same(t, a, b)
	assert.Equal(t, "dial-test:11300", a.Name())
	assert.NoError(t, a.Health())

	Hangup("dial-test:11300")
	assert.NotSame(t, a, Dial("dial-test:11300"))
}
