package memory

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/errors"
)

// urgentPriority is the priority below which a ready job counts as urgent
const urgentPriority = 1024

type state int

const (
	stateReady state = iota
	stateDelayed
	stateReserved
	stateBuried
)

func (s state) String() string {
	switch s {
	case stateDelayed:
		return "delayed"
	case stateReserved:
		return "reserved"
	case stateBuried:
		return "buried"
	default:
		return "ready"
	}
}

type job struct {
	id      uint64
	tube    string
	body    []byte
	pri     uint32
	delay   time.Duration
	ttr     time.Duration
	state   state
	created time.Time
	// deadline is when a delayed job becomes ready or a reservation expires
	deadline time.Time

	reserves, timeouts, releases, buries, kicks int
}

type tube struct {
	name        string
	using       int
	watching    int
	totalJobs   int
	cmdDelete   int
	cmdPause    int
	pause       time.Duration
	pausedUntil time.Time
}

// Server is an in-process queue server with beanstalkd job semantics. It
// implements core.Member and doubles as a producer for tests.
type Server struct {
	mu        sync.Mutex
	options   Options
	jobs      map[uint64]*job
	tubes     map[string]*tube
	nextID    uint64
	connected bool
	down      bool
}

// NewServer creates a new in-memory server
func NewServer(options Options) *Server {
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.DefaultTube == "" {
		options.DefaultTube = "default"
	}

	s := &Server{
		options: options,
		jobs:    make(map[uint64]*job),
		tubes:   make(map[string]*tube),
	}
	s.tube(options.DefaultTube)
	return s
}

// Connect establishes connection (no-op for memory server)
func (s *Server) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = true
	return nil
}

// Close closes the server connection. Jobs are kept.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	return nil
}

// Health checks the server health
func (s *Server) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.check(context.Background())
}

// Type returns the server type
func (s *Server) Type() string {
	return "memory"
}

// Name implements core.Member
func (s *Server) Name() string {
	return s.options.Name
}

// SetDown makes every operation fail with a connection error until it is
// called again with false.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.down = down
}

// Put adds a job to tube. A positive delay puts it in the delayed state.
func (s *Server) Put(ctx context.Context, tubeName string, body []byte, pri uint32, delay, ttr time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return "", err
	}
	if tubeName == "" {
		tubeName = s.options.DefaultTube
	}

	now := s.options.Clock()
	t := s.tube(tubeName)
	t.totalJobs++

	s.nextID++
	j := &job{
		id:      s.nextID,
		tube:    tubeName,
		body:    slices.Clone(body),
		pri:     pri,
		delay:   delay,
		ttr:     ttr,
		state:   stateReady,
		created: now,
	}
	if delay > 0 {
		j.state = stateDelayed
		j.deadline = now.Add(delay)
	}
	s.jobs[j.id] = j

	return strconv.FormatUint(j.id, 10), nil
}

// Enqueue puts a job with the default priority and time-to-run
func (s *Server) Enqueue(ctx context.Context, tubeName string, body []byte) (string, error) {
	return s.Put(ctx, tubeName, body, s.options.Priority, 0, s.options.TTR)
}

// Reserve claims the most urgent ready job in the given tubes, or in the
// default tube when none are given. Paused tubes are skipped. It returns
// errors.ErrJobNotFound when nothing is ready.
func (s *Server) Reserve(ctx context.Context, tubes ...string) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return "", nil, err
	}
	if len(tubes) == 0 {
		tubes = []string{s.options.DefaultTube}
	}

	now := s.options.Clock()
	s.promote(now)

	var next *job
	for _, j := range s.jobs {
		if j.state != stateReady || !slices.Contains(tubes, j.tube) {
			continue
		}
		if now.Before(s.tubes[j.tube].pausedUntil) {
			continue
		}
		if next == nil || j.pri < next.pri || (j.pri == next.pri && j.id < next.id) {
			next = j
		}
	}
	if next == nil {
		return "", nil, errors.ErrJobNotFound
	}

	next.state = stateReserved
	next.deadline = now.Add(next.ttr)
	next.reserves++

	return strconv.FormatUint(next.id, 10), slices.Clone(next.body), nil
}

// Release returns a reserved job to the ready or delayed state
func (s *Server) Release(ctx context.Context, id string, pri uint32, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.reserved(ctx, id)
	if err != nil {
		return err
	}

	now := s.options.Clock()
	j.pri = pri
	j.delay = delay
	j.releases++
	j.state = stateReady
	if delay > 0 {
		j.state = stateDelayed
		j.deadline = now.Add(delay)
	}
	return nil
}

// Bury moves a reserved job to the buried state
func (s *Server) Bury(ctx context.Context, id string, pri uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.reserved(ctx, id)
	if err != nil {
		return err
	}

	j.pri = pri
	j.state = stateBuried
	j.buries++
	return nil
}

// Kick moves up to bound buried jobs of a tube back to ready. Delayed jobs
// are kicked only when the tube has no buried jobs.
func (s *Server) Kick(ctx context.Context, tubeName string, bound int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return 0, err
	}
	s.promote(s.options.Clock())

	from := stateBuried
	candidates := s.inState(tubeName, stateBuried)
	if len(candidates) == 0 {
		from = stateDelayed
		candidates = s.inState(tubeName, stateDelayed)
	}

	kicked := 0
	for _, j := range candidates {
		if kicked == bound {
			break
		}
		if j.state == from {
			j.state = stateReady
			j.kicks++
			kicked++
		}
	}
	return kicked, nil
}

// Delete removes a job in any state
func (s *Server) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	j, ok := s.find(id)
	if !ok {
		return errors.ErrJobNotFound
	}
	s.remove(j)
	return nil
}

// PauseTube stops reservations from an existing tube for d
func (s *Server) PauseTube(ctx context.Context, tubeName string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	t, ok := s.tubes[tubeName]
	if !ok {
		return errors.ErrTubeNotFound
	}

	t.cmdPause++
	t.pause = d
	t.pausedUntil = s.options.Clock().Add(d)
	return nil
}

// Use records a producer using tube, creating it if needed
func (s *Server) Use(ctx context.Context, tubeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	s.tube(tubeName).using++
	return nil
}

// Watch records a consumer watching tube, creating it if needed
func (s *Server) Watch(ctx context.Context, tubeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	s.tube(tubeName).watching++
	return nil
}

// Ignore undoes one Watch. A tube nobody watches or uses disappears once
// it has no jobs.
func (s *Server) Ignore(ctx context.Context, tubeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	t, ok := s.tubes[tubeName]
	if !ok {
		return errors.ErrTubeNotFound
	}
	if t.watching > 0 {
		t.watching--
	}
	s.cleanup(t)
	return nil
}

// ListTubeNames implements core.Member
func (s *Server) ListTubeNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.tubes))
	for name := range s.tubes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// TubeStats implements core.Member
func (s *Server) TubeStats(ctx context.Context, name string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}
	t, ok := s.tubes[name]
	if !ok {
		return nil, errors.ErrTubeNotFound
	}

	now := s.options.Clock()
	s.promote(now)

	var urgent, ready, reserved, delayed, buried int
	for _, j := range s.jobs {
		if j.tube != name {
			continue
		}
		switch j.state {
		case stateReady:
			ready++
			if j.pri < urgentPriority {
				urgent++
			}
		case stateReserved:
			reserved++
		case stateDelayed:
			delayed++
		case stateBuried:
			buried++
		}
	}

	return map[string]string{
		"name":                  t.name,
		"current-jobs-urgent":   strconv.Itoa(urgent),
		"current-jobs-ready":    strconv.Itoa(ready),
		"current-jobs-reserved": strconv.Itoa(reserved),
		"current-jobs-delayed":  strconv.Itoa(delayed),
		"current-jobs-buried":   strconv.Itoa(buried),
		"total-jobs":            strconv.Itoa(t.totalJobs),
		"current-using":         strconv.Itoa(t.using),
		"current-waiting":       "0",
		"current-watching":      strconv.Itoa(t.watching),
		"pause":                 seconds(t.pause),
		"cmd-delete":            strconv.Itoa(t.cmdDelete),
		"cmd-pause-tube":        strconv.Itoa(t.cmdPause),
		"pause-time-left":       seconds(max(t.pausedUntil.Sub(now), 0)),
	}, nil
}

// ListJobs implements core.Member
func (s *Server) ListJobs(ctx context.Context) ([]core.RawJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	now := s.options.Clock()
	s.promote(now)

	ids := make([]uint64, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	raw := make([]core.RawJob, 0, len(ids))
	for _, id := range ids {
		j := s.jobs[id]
		raw = append(raw, core.RawJob{
			ID:    strconv.FormatUint(id, 10),
			Stats: j.stats(now),
			Body:  slices.Clone(j.body),
		})
	}
	return raw, nil
}

// DeleteJob implements core.Member. A reserved job belongs to its consumer
// and is refused.
func (s *Server) DeleteJob(ctx context.Context, id string) (core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return core.Refused, err
	}
	s.promote(s.options.Clock())

	j, ok := s.find(id)
	if !ok {
		return core.AlreadyGone, nil
	}
	if j.state == stateReserved {
		return core.Refused, nil
	}
	s.remove(j)
	return core.Deleted, nil
}

func (j *job) stats(now time.Time) map[string]string {
	var left time.Duration
	if j.state == stateDelayed || j.state == stateReserved {
		left = max(j.deadline.Sub(now), 0)
	}

	return map[string]string{
		"id":        strconv.FormatUint(j.id, 10),
		"tube":      j.tube,
		"state":     j.state.String(),
		"pri":       strconv.FormatUint(uint64(j.pri), 10),
		"age":       seconds(now.Sub(j.created)),
		"delay":     seconds(j.delay),
		"ttr":       seconds(j.ttr),
		"time-left": seconds(left),
		"file":      "0",
		"reserves":  strconv.Itoa(j.reserves),
		"timeouts":  strconv.Itoa(j.timeouts),
		"releases":  strconv.Itoa(j.releases),
		"buries":    strconv.Itoa(j.buries),
		"kicks":     strconv.Itoa(j.kicks),
	}
}

// check must be called with the lock held
func (s *Server) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.down {
		return errors.NewConnectionError(s.options.Name, syscall.ECONNREFUSED)
	}
	if !s.connected {
		return errors.ErrNotConnected
	}
	return nil
}

// promote applies the passage of time: due delayed jobs become ready and
// expired reservations time out.
func (s *Server) promote(now time.Time) {
	for _, j := range s.jobs {
		if now.Before(j.deadline) {
			continue
		}
		switch j.state {
		case stateDelayed:
			j.state = stateReady
		case stateReserved:
			j.state = stateReady
			j.timeouts++
		}
	}
}

func (s *Server) tube(name string) *tube {
	t, ok := s.tubes[name]
	if !ok {
		t = &tube{name: name}
		s.tubes[name] = t
	}
	return t
}

func (s *Server) find(id string) (*job, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, false
	}
	j, ok := s.jobs[n]
	return j, ok
}

func (s *Server) reserved(ctx context.Context, id string) (*job, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.promote(s.options.Clock())

	j, ok := s.find(id)
	if !ok || j.state != stateReserved {
		return nil, errors.ErrJobNotFound
	}
	return j, nil
}

// inState returns the jobs of a tube in the given state, oldest first
func (s *Server) inState(tubeName string, st state) []*job {
	var jobs []*job
	for _, j := range s.jobs {
		if j.tube == tubeName && j.state == st {
			jobs = append(jobs, j)
		}
	}
	slices.SortFunc(jobs, func(a, b *job) int {
		return cmp.Compare(a.id, b.id)
	})
	return jobs
}

func (s *Server) remove(j *job) {
	delete(s.jobs, j.id)
	t := s.tubes[j.tube]
	t.cmdDelete++
	s.cleanup(t)
}

// cleanup drops a tube nobody refers to any more
func (s *Server) cleanup(t *tube) {
	if t.name == s.options.DefaultTube || t.using > 0 || t.watching > 0 {
		return
	}
	for _, j := range s.jobs {
		if j.tube == t.name {
			return
		}
	}
	delete(s.tubes, t.name)
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
