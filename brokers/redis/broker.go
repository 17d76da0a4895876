package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/errors"
	redisUtils "github.com/BranchIntl/tubecheck/internal/redis"
	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
)

// urgentPriority is the priority below which a ready job counts as urgent
const urgentPriority = 1024

// jobCounters are the per-job counters every stored job starts with
var jobCounters = []string{"reserves", "timeouts", "releases", "buries", "kicks"}

// reserveScript claims the oldest ready job of a tube.
// KEYS[1] job index, ARGV[1] namespace, ARGV[2] tube.
var reserveScript = redis.NewScript(1, `
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  local key = ARGV[1] .. 'job:' .. id
  local fields = redis.call('HMGET', key, 'tube', 'state')
  if fields[1] == ARGV[2] and fields[2] == 'ready' then
    redis.call('HSET', key, 'state', 'reserved')
    redis.call('HINCRBY', key, 'reserves', 1)
    return id
  end
end
return false
`)

// buryScript moves a reserved job to buried. KEYS[1] job hash.
var buryScript = redis.NewScript(1, `
if redis.call('HGET', KEYS[1], 'state') ~= 'reserved' then
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'buried')
redis.call('HINCRBY', KEYS[1], 'buries', 1)
return 1
`)

// deleteScript removes a job unless it is reserved. It returns 1 when
// deleted, 0 when the job does not exist and -1 when refused.
// KEYS[1] job hash, KEYS[2] job index, ARGV[1] id, ARGV[2] namespace.
var deleteScript = redis.NewScript(2, `
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  return 0
end
if state == 'reserved' then
  return -1
end
local tube = redis.call('HGET', KEYS[1], 'tube')
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HINCRBY', ARGV[2] .. 'tube:' .. tube, 'cmd-delete', 1)
return 1
`)

// RedisBroker is a pool member over jobs stored in Redis. Each job is a
// hash holding its beanstalkd-style stats and body; an ordered index keeps
// enqueue order.
type RedisBroker struct {
	pool      *redis.Pool
	namespace string
	options   Options
	now       func() time.Time
}

// NewBroker creates a new Redis broker
func NewBroker(options Options) *RedisBroker {
	if options.Name == "" {
		options.Name = options.URI
		if e, err := redisUtils.ParseURI(options.URI); err == nil {
			options.Name = e.Address
		}
	}

	return &RedisBroker{
		namespace: options.Namespace,
		options:   options,
		now:       time.Now,
	}
}

// Connect establishes connection to Redis
func (r *RedisBroker) Connect(ctx context.Context) error {
	pool, err := redisUtils.CreatePool(r.options.Config)
	if err != nil {
		return err
	}

	if err := redisUtils.Ping(ctx, pool, r.options.URI); err != nil {
		pool.Close()
		return err
	}

	r.pool = pool
	return nil
}

// Close closes the Redis connection pool
func (r *RedisBroker) Close() error {
	if r.pool != nil {
		return r.pool.Close()
	}
	return nil
}

// Health checks the Redis connection health
func (r *RedisBroker) Health() error {
	if r.pool == nil {
		return errors.ErrNotConnected
	}
	return redisUtils.Ping(context.Background(), r.pool, r.options.URI)
}

// Type returns the broker type
func (r *RedisBroker) Type() string {
	return "redis"
}

// Name implements core.Member
func (r *RedisBroker) Name() string {
	return r.options.Name
}

// Put stores a ready job in tube and returns its id
func (r *RedisBroker) Put(ctx context.Context, tube string, body []byte, pri uint32, ttr time.Duration) (string, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	seq, err := redis.Int64(conn.Do("INCR", r.key("seq")))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", tube, err)
	}

	id := uuid.NewString()
	fields := redis.Args{}.Add(r.jobKey(id)).AddFlat(map[string]string{
		"id":      id,
		"tube":    tube,
		"state":   "ready",
		"pri":     strconv.FormatUint(uint64(pri), 10),
		"delay":   "0",
		"ttr":     strconv.FormatInt(int64(ttr/time.Second), 10),
		"created": strconv.FormatInt(r.now().Unix(), 10),
		"body":    string(body),
	})
	for _, counter := range jobCounters {
		fields = fields.Add(counter, 0)
	}

	conn.Send("MULTI")
	conn.Send("HSET", fields...)
	conn.Send("ZADD", r.key("jobs"), seq, id)
	conn.Send("SADD", r.key("tubes"), tube)
	conn.Send("HINCRBY", r.tubeKey(tube), "total-jobs", 1)
	if _, err := conn.Do("EXEC"); err != nil {
		return "", fmt.Errorf("put %s: %w", tube, err)
	}

	return id, nil
}

// Enqueue puts a job with the default priority and time-to-run
func (r *RedisBroker) Enqueue(ctx context.Context, tube string, body []byte) (string, error) {
	return r.Put(ctx, tube, body, r.options.Priority, r.options.TTR)
}

// Reserve claims the oldest ready job of tube. It returns
// errors.ErrJobNotFound when nothing is ready.
func (r *RedisBroker) Reserve(ctx context.Context, tube string) (string, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	id, err := redis.String(reserveScript.Do(conn, r.key("jobs"), r.namespace, tube))
	if err == redis.ErrNil {
		return "", errors.ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reserve %s: %w", tube, err)
	}
	return id, nil
}

// Bury moves a reserved job to the buried state
func (r *RedisBroker) Bury(ctx context.Context, id string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ok, err := redis.Bool(buryScript.Do(conn, r.jobKey(id)))
	if err != nil {
		return fmt.Errorf("bury %s: %w", id, err)
	}
	if !ok {
		return errors.ErrJobNotFound
	}
	return nil
}

// ListTubeNames implements core.Member
func (r *RedisBroker) ListTubeNames(ctx context.Context) ([]string, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	names, err := redis.Strings(conn.Do("SMEMBERS", r.key("tubes")))
	if err != nil {
		return nil, fmt.Errorf("list tubes: %w", err)
	}
	return names, nil
}

// TubeStats implements core.Member
func (r *RedisBroker) TubeStats(ctx context.Context, name string) (map[string]string, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	known, err := redis.Bool(conn.Do("SISMEMBER", r.key("tubes"), name))
	if err != nil {
		return nil, fmt.Errorf("stats for tube %s: %w", name, err)
	}
	if !known {
		return nil, errors.ErrTubeNotFound
	}

	counters, err := redis.StringMap(conn.Do("HGETALL", r.tubeKey(name)))
	if err != nil {
		return nil, fmt.Errorf("stats for tube %s: %w", name, err)
	}

	jobs, err := r.listJobs(conn)
	if err != nil {
		return nil, err
	}

	count := map[string]int{}
	for _, j := range jobs {
		if j["tube"] != name {
			continue
		}
		count[j["state"]]++
		if j["state"] == "ready" {
			if pri, err := strconv.Atoi(j["pri"]); err == nil && pri < urgentPriority {
				count["urgent"]++
			}
		}
	}

	stats := map[string]string{
		"total-jobs":     "0",
		"cmd-delete":     "0",
		"cmd-pause-tube": "0",
		"pause":          "0",
	}
	for k, v := range counters {
		stats[k] = v
	}
	stats["name"] = name
	stats["current-jobs-urgent"] = strconv.Itoa(count["urgent"])
	stats["current-jobs-ready"] = strconv.Itoa(count["ready"])
	stats["current-jobs-reserved"] = strconv.Itoa(count["reserved"])
	stats["current-jobs-delayed"] = strconv.Itoa(count["delayed"])
	stats["current-jobs-buried"] = strconv.Itoa(count["buried"])
	return stats, nil
}

// ListJobs implements core.Member
func (r *RedisBroker) ListJobs(ctx context.Context) ([]core.RawJob, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	jobs, err := r.listJobs(conn)
	if err != nil {
		return nil, err
	}

	now := r.now().Unix()
	raw := make([]core.RawJob, 0, len(jobs))
	for _, fields := range jobs {
		stats := make(map[string]string, len(fields))
		for k, v := range fields {
			stats[k] = v
		}
		delete(stats, "body")
		delete(stats, "created")
		if created, err := strconv.ParseInt(fields["created"], 10, 64); err == nil {
			stats["age"] = strconv.FormatInt(max(now-created, 0), 10)
		}

		raw = append(raw, core.RawJob{
			ID:    fields["id"],
			Stats: stats,
			Body:  []byte(fields["body"]),
		})
	}
	return raw, nil
}

// DeleteJob implements core.Member. A reserved job is refused.
func (r *RedisBroker) DeleteJob(ctx context.Context, id string) (core.DeleteResult, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return core.Refused, err
	}
	defer conn.Close()

	n, err := redis.Int(deleteScript.Do(conn, r.jobKey(id), r.key("jobs"), id, r.namespace))
	if err != nil {
		return core.Refused, fmt.Errorf("delete job %s: %w", id, err)
	}

	switch n {
	case 1:
		return core.Deleted, nil
	case 0:
		return core.AlreadyGone, nil
	default:
		return core.Refused, nil
	}
}

// listJobs fetches every job hash in enqueue order. Jobs deleted between
// the index read and the hash read are skipped.
func (r *RedisBroker) listJobs(conn redis.Conn) ([]map[string]string, error) {
	ids, err := redis.Strings(conn.Do("ZRANGE", r.key("jobs"), 0, -1))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	for _, id := range ids {
		if err := conn.Send("HGETALL", r.jobKey(id)); err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
	}
	if err := conn.Flush(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]map[string]string, 0, len(ids))
	for range ids {
		fields, err := redis.StringMap(conn.Receive())
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		if len(fields) > 0 {
			jobs = append(jobs, fields)
		}
	}
	return jobs, nil
}

func (r *RedisBroker) conn(ctx context.Context) (redis.Conn, error) {
	if r.pool == nil {
		return nil, errors.ErrNotConnected
	}
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, errors.NewConnectionError(r.options.URI, err)
	}
	return conn, nil
}

// Helper methods

func (r *RedisBroker) key(name string) string {
	return r.namespace + name
}

func (r *RedisBroker) jobKey(id string) string {
	return fmt.Sprintf("%sjob:%s", r.namespace, id)
}

func (r *RedisBroker) tubeKey(tube string) string {
	return fmt.Sprintf("%stube:%s", r.namespace, tube)
}
