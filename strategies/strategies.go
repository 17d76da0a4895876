// Package strategies provides the concrete strategy kinds an inspector can
// be opened with. Every kind builds a pool strategy over members of one
// broker type:
//
//   - memory: in-process servers shared by address
//   - beanstalkd: beanstalkd servers over TCP
//   - redis: jobs stored in Redis under a key namespace
//   - rabbitmq: the configured queues of RabbitMQ servers
//
// Example usage:
//
//	r := registry.NewRegistry()
//	if err := strategies.Register(r); err != nil {
//		return err
//	}
//	kind, err := r.Materialize(":beanstalkd")
package strategies

import (
	"context"
	"strings"

	"github.com/BranchIntl/tubecheck/brokers/beanstalkd"
	"github.com/BranchIntl/tubecheck/brokers/memory"
	"github.com/BranchIntl/tubecheck/brokers/rabbitmq"
	"github.com/BranchIntl/tubecheck/brokers/redis"
	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/registry"
)

// Strategy kind identifiers
const (
	Memory     = "memory"
	Beanstalkd = "beanstalkd"
	Redis      = "redis"
	RabbitMQ   = "rabbitmq"
)

// Kinds returns every strategy kind this package provides
func Kinds() []registry.Kind {
	return []registry.Kind{
		{Name: Memory, Dial: dialMemory, New: factory(Memory)},
		{Name: Beanstalkd, Dial: dialBeanstalkd, New: factory(Beanstalkd)},
		{Name: Redis, Dial: dialRedis, New: factory(Redis)},
		{Name: RabbitMQ, Dial: dialRabbitMQ, New: factory(RabbitMQ)},
	}
}

// Register adds every kind to r
func Register(r *registry.Registry) error {
	for _, kind := range Kinds() {
		if err := r.Register(kind); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	if err := Register(registry.Default); err != nil {
		panic(err)
	}
}

func factory(name string) registry.FactoryFunc {
	return func(members []core.Member, options ...core.Option) (core.Strategy, error) {
		return core.NewPoolStrategy(name, members, options...)
	}
}

func dialMemory(ctx context.Context, addr string, opts registry.DialOptions) (core.Member, error) {
	s := memory.Dial(addr)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dialBeanstalkd(ctx context.Context, addr string, opts registry.DialOptions) (core.Member, error) {
	options := beanstalkd.DefaultOptions()
	options.Address = strings.TrimPrefix(addr, "beanstalk://")
	if opts.Timeout > 0 {
		options.DialTimeout = opts.Timeout
	}

	b := beanstalkd.NewBroker(options)
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func dialRedis(ctx context.Context, addr string, opts registry.DialOptions) (core.Member, error) {
	options := redis.DefaultOptions()
	options.URI = withScheme(addr, "redis://")
	if opts.Namespace != "" {
		options.Namespace = opts.Namespace
	}
	if opts.Timeout > 0 {
		options.ConnectTimeout = opts.Timeout
	}

	b := redis.NewBroker(options)
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func dialRabbitMQ(ctx context.Context, addr string, opts registry.DialOptions) (core.Member, error) {
	options := rabbitmq.DefaultOptions()
	options.URI = withScheme(addr, "amqp://guest:guest@")
	options.Queues = opts.Queues
	if opts.Timeout > 0 {
		options.DialTimeout = opts.Timeout
	}

	b := rabbitmq.NewBroker(options)
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// withScheme turns a bare host:port into a URI
func withScheme(addr, prefix string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return prefix + addr
}
