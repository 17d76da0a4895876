package rabbitmq

import (
	"errors"
	"strconv"
	"time"

	"github.com/BranchIntl/tubecheck/core"
	amqp "github.com/rabbitmq/amqp091-go"
)

// buildQueueArgs creates the AMQP arguments table from options
func buildQueueArgs(options QueueOptions) amqp.Table {
	args := amqp.Table{}

	// Set message TTL if specified
	if options.MessageTTL > 0 {
		args["x-message-ttl"] = int64(options.MessageTTL / time.Millisecond)
	}

	// Set dead letter exchange if specified
	if options.DeadLetterQueue != "" {
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = options.DeadLetterQueue
	}

	// Quorum queues dead-letter after this many deliveries
	if options.MaxRetries > 0 {
		args["x-delivery-limit"] = options.MaxRetries
	}

	if options.MaxLength > 0 {
		args["x-max-length"] = options.MaxLength
	}

	// Set queue type if specified
	if options.QueueType != "" {
		args["x-queue-type"] = options.QueueType
	}

	return args
}

// queueStats renders a passive queue declaration as tube stats
func queueStats(q amqp.Queue) map[string]string {
	return map[string]string{
		"name":               q.Name,
		"current-jobs-ready": strconv.Itoa(q.Messages),
		"current-watching":   strconv.Itoa(q.Consumers),
	}
}

// deliveryToRawJob renders a peeked message as a ready job. Messages
// published without a MessageId fall back to their position in the queue.
// The redelivered flag is not a reserve count: peeking itself sets it.
func deliveryToRawJob(d amqp.Delivery, queue string, position int, now time.Time) core.RawJob {
	id := d.MessageId
	if id == "" {
		id = queue + "/" + strconv.Itoa(position)
	}

	stats := map[string]string{
		"id":    id,
		"tube":  queue,
		"state": "ready",
		"pri":   strconv.Itoa(int(d.Priority)),
	}
	if n, ok := deliveryCount(d.Headers); ok {
		stats["reserves"] = strconv.FormatInt(n, 10)
	}
	if !d.Timestamp.IsZero() {
		stats["age"] = strconv.FormatInt(int64(max(now.Sub(d.Timestamp), 0)/time.Second), 10)
	}
	if d.AppId != "" {
		stats["connection"] = d.AppId
	}

	return core.RawJob{ID: id, Stats: stats, Body: d.Body}
}

// deliveryCount reads the x-delivery-count header quorum queues stamp on
// redelivered messages
func deliveryCount(headers amqp.Table) (int64, bool) {
	switch n := headers["x-delivery-count"].(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

// isNotFound reports a 404 channel exception such as a passive declare of
// a missing queue
func isNotFound(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound
}
