package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueOptions for queue creation
type QueueOptions struct {
	// MaxRetries is the delivery limit of a quorum queue
	MaxRetries int
	// MaxLength caps the number of ready messages
	MaxLength int
	// MessageTTL is how long a message can remain in queue
	MessageTTL time.Duration
	// DeadLetterQueue name for expired or rejected messages
	DeadLetterQueue string
	// QueueType for defining the type of queue (classic, quorum, stream)
	QueueType string
}

// channel is the subset of *amqp.Channel the broker uses
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQBroker is a pool member over the configured queues of one
// RabbitMQ server. Queues are reported as tubes and ready messages as
// jobs. Messages are inspected with basic.get and requeued, so a message
// held by a consumer is never visible.
type RabbitMQBroker struct {
	connection     *amqp.Connection
	openChannel    func() (channel, error)
	options        Options
	declaredQueues map[string]bool
	mu             sync.RWMutex
	notifyClose    chan *amqp.Error
	isConnected    bool
	now            func() time.Time
}

// NewBroker creates a new RabbitMQ broker
func NewBroker(options Options) *RabbitMQBroker {
	if options.Name == "" {
		options.Name = options.URI
		if u, err := amqp.ParseURI(options.URI); err == nil {
			options.Name = u.Host + ":" + strconv.Itoa(u.Port)
		}
	}

	return &RabbitMQBroker{
		options:        options,
		declaredQueues: make(map[string]bool),
		now:            time.Now,
	}
}

// Connect establishes connection to RabbitMQ
func (r *RabbitMQBroker) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connect(ctx)
}

// connect dials the server and sets up close monitoring.
// This method expects the caller to hold the lock
func (r *RabbitMQBroker) connect(ctx context.Context) error {
	conn, err := amqp.DialConfig(r.options.URI, amqp.Config{
		Dial: amqp.DefaultDial(r.options.DialTimeout),
	})
	if err != nil {
		return errors.NewConnectionError(r.options.URI,
			fmt.Errorf("failed to connect to RabbitMQ: %w", err))
	}

	r.connection = conn
	r.openChannel = func() (channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}

	// Watch for closing
	r.notifyClose = make(chan *amqp.Error, 1)
	r.connection.NotifyClose(r.notifyClose)
	r.isConnected = true

	// Recovery outlives the context passed to Connect
	if r.options.ReconnectEnabled {
		go r.handleReconnection(context.WithoutCancel(ctx), r.notifyClose)
	}

	return nil
}

func (r *RabbitMQBroker) handleReconnection(ctx context.Context, notifyClose <-chan *amqp.Error) {
	select {
	case err := <-notifyClose:
		if err == nil {
			return // Graceful shutdown
		}
		slog.Warn("Connection closed, reconnecting...", "member", r.options.Name, "error", err)

		r.mu.Lock()
		r.isConnected = false
		r.mu.Unlock()

		for {
			time.Sleep(r.options.ReconnectDelay)

			r.mu.Lock()
			if r.isConnected {
				r.mu.Unlock()
				return
			}
			err := r.connect(ctx)
			r.mu.Unlock()

			if err == nil {
				slog.Info("Reconnected to RabbitMQ", "member", r.options.Name)
				return
			}
			slog.Warn("Reconnect failed", "member", r.options.Name, "error", err)
		}
	case <-ctx.Done():
		return
	}
}

// Close closes the RabbitMQ connection
func (r *RabbitMQBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isConnected = false
	r.openChannel = nil
	if r.connection == nil {
		return nil
	}
	err := r.connection.Close()
	r.connection = nil
	return err
}

// Health checks the RabbitMQ connection health
func (r *RabbitMQBroker) Health() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.isConnected || (r.connection != nil && r.connection.IsClosed()) {
		return errors.ErrNotConnected
	}
	return nil
}

// Type returns the broker type
func (r *RabbitMQBroker) Type() string {
	return "rabbitmq"
}

// Name implements core.Member
func (r *RabbitMQBroker) Name() string {
	return r.options.Name
}

// Queues returns the list of inspected queues
func (r *RabbitMQBroker) Queues() []string {
	return r.options.Queues
}

// Enqueue publishes body to queue and returns the message id
func (r *RabbitMQBroker) Enqueue(ctx context.Context, queue string, body []byte) (string, error) {
	ch, err := r.getChannel()
	if err != nil {
		return "", err
	}
	defer ch.Close()

	if err := r.ensureQueue(ch, queue); err != nil {
		return "", fmt.Errorf("ensure queue %s: %w", queue, err)
	}

	id := uuid.NewString()
	err = ch.PublishWithContext(
		ctx,   // context
		"",    // exchange
		queue, // routing key (queue name)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/octet-stream",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    r.now(),
			MessageId:    id,
		})
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return id, nil
}

// CreateQueue declares a durable queue with the given options
func (r *RabbitMQBroker) CreateQueue(ctx context.Context, name string, options QueueOptions) error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		name,                    // name
		true,                    // durable
		false,                   // delete when unused
		false,                   // exclusive
		false,                   // no-wait
		buildQueueArgs(options), // arguments
	)
	if err != nil {
		return fmt.Errorf("create queue %s: %w", name, err)
	}

	r.mu.Lock()
	r.declaredQueues[name] = true
	r.mu.Unlock()
	return nil
}

// QueueExists checks if a queue exists
func (r *RabbitMQBroker) QueueExists(ctx context.Context, name string) (bool, error) {
	_, err := r.declarePassive(name)
	switch {
	case err == nil:
		return true, nil
	case errors.IsNotFound(err):
		return false, nil
	}
	return false, err
}

// ListTubeNames implements core.Member. Only configured queues that exist
// are reported.
func (r *RabbitMQBroker) ListTubeNames(ctx context.Context) ([]string, error) {
	var names []string
	for _, queue := range r.options.Queues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := r.QueueExists(ctx, queue)
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, queue)
		}
	}
	return names, nil
}

// TubeStats implements core.Member
func (r *RabbitMQBroker) TubeStats(ctx context.Context, name string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := r.declarePassive(name)
	if err != nil {
		return nil, err
	}
	return queueStats(q), nil
}

// ListJobs implements core.Member
func (r *RabbitMQBroker) ListJobs(ctx context.Context) ([]core.RawJob, error) {
	var jobs []core.RawJob
	for _, queue := range r.options.Queues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := r.peek(queue, func(deliveries []amqp.Delivery) *amqp.Delivery {
			now := r.now()
			for i, d := range deliveries {
				jobs = append(jobs, deliveryToRawJob(d, queue, i, now))
			}
			return nil
		})
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// DeleteJob implements core.Member. The matching message is acked and every
// other peeked message requeued. Messages held by consumers cannot be seen,
// so a delete is never refused.
func (r *RabbitMQBroker) DeleteJob(ctx context.Context, id string) (core.DeleteResult, error) {
	for _, queue := range r.options.Queues {
		if err := ctx.Err(); err != nil {
			return core.Refused, err
		}

		found := false
		err := r.peek(queue, func(deliveries []amqp.Delivery) *amqp.Delivery {
			now := r.now()
			for i := range deliveries {
				if deliveryToRawJob(deliveries[i], queue, i, now).ID == id {
					found = true
					return &deliveries[i]
				}
			}
			return nil
		})
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return core.Refused, err
		}
		if found {
			return core.Deleted, nil
		}
	}
	return core.AlreadyGone, nil
}

// peek fetches the ready messages of queue without acking them and hands
// them to fn. The delivery fn returns is acked; every other one is
// requeued.
func (r *RabbitMQBroker) peek(queue string, fn func([]amqp.Delivery) *amqp.Delivery) error {
	q, err := r.declarePassive(queue)
	if err != nil {
		return err
	}

	limit := q.Messages
	if r.options.MaxPeek > 0 && limit > r.options.MaxPeek {
		limit = r.options.MaxPeek
	}
	if limit == 0 {
		fn(nil)
		return nil
	}

	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries := make([]amqp.Delivery, 0, limit)
	for len(deliveries) < limit {
		d, ok, err := ch.Get(queue, false)
		if err != nil {
			r.requeue(deliveries)
			return errors.NewConnectionError(r.options.URI, fmt.Errorf("get from %s: %w", queue, err))
		}
		if !ok {
			break
		}
		deliveries = append(deliveries, d)
	}

	picked := fn(deliveries)
	var ackErr error
	if picked != nil {
		ackErr = picked.Ack(false)
	}
	for _, d := range deliveries {
		if picked != nil && d.DeliveryTag == picked.DeliveryTag {
			continue
		}
		if err := d.Nack(false, true); err != nil {
			slog.Error("Failed to requeue peeked message", "queue", queue, "error", err)
		}
	}
	if ackErr != nil {
		return fmt.Errorf("ack %s: %w", picked.MessageId, ackErr)
	}
	return nil
}

func (r *RabbitMQBroker) requeue(deliveries []amqp.Delivery) {
	for _, d := range deliveries {
		if err := d.Nack(false, true); err != nil {
			slog.Error("Failed to requeue peeked message", "error", err)
		}
	}
}

// declarePassive inspects a queue on a channel of its own, since a 404
// closes the channel it happens on
func (r *RabbitMQBroker) declarePassive(name string) (amqp.Queue, error) {
	ch, err := r.getChannel()
	if err != nil {
		return amqp.Queue{}, err
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
	if isNotFound(err) {
		return amqp.Queue{}, errors.ErrTubeNotFound
	}
	if err != nil {
		return amqp.Queue{}, errors.NewConnectionError(r.options.URI,
			fmt.Errorf("inspect queue %s: %w", name, err))
	}
	return q, nil
}

// getChannel opens a channel if connected, otherwise returns ErrNotConnected
func (r *RabbitMQBroker) getChannel() (channel, error) {
	r.mu.RLock()
	open, connected := r.openChannel, r.isConnected
	r.mu.RUnlock()

	if !connected || open == nil {
		return nil, errors.ErrNotConnected
	}
	ch, err := open()
	if err != nil {
		return nil, errors.NewConnectionError(r.options.URI,
			fmt.Errorf("failed to open channel: %w", err))
	}
	return ch, nil
}

// ensureQueue makes sure a queue is declared
func (r *RabbitMQBroker) ensureQueue(ch channel, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.declaredQueues[name] {
		return nil // Already declared
	}

	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	r.declaredQueues[name] = true
	return nil
}
