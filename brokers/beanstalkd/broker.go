package beanstalkd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	tubecheckErrors "github.com/BranchIntl/tubecheck/errors"
	"github.com/beanstalkd/go-beanstalk"
)

// client is the subset of a beanstalkd connection the broker uses
type client interface {
	ListTubes() ([]string, error)
	Stats() (map[string]string, error)
	TubeStats(name string) (map[string]string, error)
	StatsJob(id uint64) (map[string]string, error)
	Peek(id uint64) ([]byte, error)
	Put(tube string, body []byte, pri uint32, delay, ttr time.Duration) (uint64, error)
	Delete(id uint64) error
	Close() error
}

// conn adapts *beanstalk.Conn to client
type conn struct {
	*beanstalk.Conn
}

func (c conn) TubeStats(name string) (map[string]string, error) {
	return (&beanstalk.Tube{Conn: c.Conn, Name: name}).Stats()
}

func (c conn) Put(tube string, body []byte, pri uint32, delay, ttr time.Duration) (uint64, error) {
	return (&beanstalk.Tube{Conn: c.Conn, Name: tube}).Put(body, pri, delay, ttr)
}

// BeanstalkBroker is a pool member over one beanstalkd server. The
// protocol cannot list jobs, so ListJobs probes every id the server has
// handed out.
type BeanstalkBroker struct {
	mu      sync.Mutex
	client  client
	options Options
}

// NewBroker creates a new beanstalkd broker
func NewBroker(options Options) *BeanstalkBroker {
	if options.Name == "" {
		options.Name = options.Address
	}
	return &BeanstalkBroker{options: options}
}

// Connect establishes connection to beanstalkd
func (b *BeanstalkBroker) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: b.options.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", b.options.Address)
	if err != nil {
		return tubecheckErrors.NewConnectionError(b.options.Address,
			fmt.Errorf("failed to connect: %w", err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.client = conn{beanstalk.NewConn(nc)}
	return nil
}

// Close closes the connection
func (b *BeanstalkBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// Health checks the connection health
func (b *BeanstalkBroker) Health() error {
	return b.with(context.Background(), func(c client) error {
		_, err := c.Stats()
		return b.wrap(err)
	})
}

// Type returns the broker type
func (b *BeanstalkBroker) Type() string {
	return "beanstalkd"
}

// Name implements core.Member
func (b *BeanstalkBroker) Name() string {
	return b.options.Name
}

// Put adds a job to tube and returns its id
func (b *BeanstalkBroker) Put(ctx context.Context, tube string, body []byte, pri uint32, delay, ttr time.Duration) (string, error) {
	var id uint64
	err := b.with(ctx, func(c client) error {
		var err error
		id, err = c.Put(tube, body, pri, delay, ttr)
		return b.wrap(err)
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(id, 10), nil
}

// ListTubeNames implements core.Member
func (b *BeanstalkBroker) ListTubeNames(ctx context.Context) ([]string, error) {
	var names []string
	err := b.with(ctx, func(c client) error {
		var err error
		names, err = c.ListTubes()
		return b.wrap(err)
	})
	return names, err
}

// TubeStats implements core.Member
func (b *BeanstalkBroker) TubeStats(ctx context.Context, name string) (map[string]string, error) {
	var stats map[string]string
	err := b.with(ctx, func(c client) error {
		var err error
		stats, err = c.TubeStats(name)
		if isNotFound(err) {
			return tubecheckErrors.ErrTubeNotFound
		}
		return b.wrap(err)
	})
	return stats, err
}

// ListJobs implements core.Member
func (b *BeanstalkBroker) ListJobs(ctx context.Context) ([]core.RawJob, error) {
	var jobs []core.RawJob
	err := b.with(ctx, func(c client) error {
		stats, err := c.Stats()
		if err != nil {
			return b.wrap(err)
		}
		last, err := strconv.ParseUint(stats["total-jobs"], 10, 64)
		if err != nil {
			return fmt.Errorf("server stats total-jobs %q: %w", stats["total-jobs"], err)
		}

		first := uint64(1)
		if limit := uint64(b.options.MaxScan); limit > 0 && last > limit {
			first = last - limit + 1
		}

		for id := first; id <= last; id++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			job, ok, err := b.peek(c, id)
			if err != nil {
				return err
			}
			if ok {
				jobs = append(jobs, job)
			}
		}
		return nil
	})
	return jobs, err
}

// DeleteJob implements core.Member. beanstalkd answers NOT_FOUND both for
// missing jobs and for jobs reserved by another client; the job's stats
// tell the two apart.
func (b *BeanstalkBroker) DeleteJob(ctx context.Context, id string) (core.DeleteResult, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return core.AlreadyGone, nil
	}

	result := core.Refused
	err = b.with(ctx, func(c client) error {
		err := c.Delete(n)
		switch {
		case err == nil:
			result = core.Deleted
			return nil
		case !isNotFound(err):
			return b.wrap(err)
		}

		stats, err := c.StatsJob(n)
		if isNotFound(err) {
			result = core.AlreadyGone
			return nil
		}
		if err != nil {
			return b.wrap(err)
		}
		if stats["state"] != "reserved" {
			return fmt.Errorf("delete job %s: not found in state %s", id, stats["state"])
		}
		return nil
	})
	return result, err
}

// peek fetches one job's stats and body. A job that vanished between the
// two calls is reported as absent.
func (b *BeanstalkBroker) peek(c client, id uint64) (core.RawJob, bool, error) {
	stats, err := c.StatsJob(id)
	if isNotFound(err) {
		return core.RawJob{}, false, nil
	}
	if err != nil {
		return core.RawJob{}, false, b.wrap(err)
	}

	body, err := c.Peek(id)
	if isNotFound(err) {
		return core.RawJob{}, false, nil
	}
	if err != nil {
		return core.RawJob{}, false, b.wrap(err)
	}

	return core.RawJob{ID: strconv.FormatUint(id, 10), Stats: stats, Body: body}, true, nil
}

func (b *BeanstalkBroker) with(ctx context.Context, fn func(c client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return tubecheckErrors.ErrNotConnected
	}
	return fn(b.client)
}

// wrap turns transport failures into connection errors. Protocol replies
// such as NOT_FOUND are returned unchanged.
func (b *BeanstalkBroker) wrap(err error) error {
	if err == nil {
		return nil
	}
	var ce beanstalk.ConnError
	if errors.As(err, &ce) && isProtocolError(ce.Err) {
		return err
	}
	return tubecheckErrors.NewConnectionError(b.options.Address, err)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var ce beanstalk.ConnError
	if errors.As(err, &ce) {
		return ce.Err == beanstalk.ErrNotFound
	}
	return err == beanstalk.ErrNotFound
}

func isProtocolError(err error) bool {
	switch err {
	case beanstalk.ErrBadFormat, beanstalk.ErrBuried, beanstalk.ErrDeadline,
		beanstalk.ErrDraining, beanstalk.ErrJobTooBig, beanstalk.ErrNoCRLF,
		beanstalk.ErrNotFound, beanstalk.ErrNotIgnored, beanstalk.ErrOOM,
		beanstalk.ErrTimeout, beanstalk.ErrUnknown, beanstalk.ErrInternal:
		return true
	}
	return false
}
