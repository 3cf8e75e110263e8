package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/streadway/amqp"
)

const (
	jobQueueName  = "sendout_jobs"
	waitQueueName = "sendout_jobs_wait"
)

// AMQPJobQueue is the RabbitMQ-backed queue. Delayed jobs are published
// to a wait queue with a per-message TTL that dead-letters back into the
// main queue. Reservation is approximated by manual acks: an unacked
// delivery is redelivered when the consumer's channel closes, so the
// in-memory queue remains the reference for exact TTR semantics.
type AMQPJobQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPJobQueue(url string) (*AMQPJobQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPJobQueue{conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(jobQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: declare %s: %w", jobQueueName, err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": jobQueueName,
	}
	_, err = ch.QueueDeclare(waitQueueName, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("queue: declare %s: %w", waitQueueName, err)
	}
	return nil
}

func (q *AMQPJobQueue) Enqueue(_ context.Context, job BatchJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	target := jobQueueName
	if delay > 0 {
		target = waitQueueName
		pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return q.ch.Publish("", target, false, false, pub)
}

func (q *AMQPJobQueue) Claim(_ context.Context, _ time.Duration) (*Claimed, error) {
	d, ok, err := q.ch.Get(jobQueueName, false)
	if err != nil {
		return nil, fmt.Errorf("queue: get: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var job BatchJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		// poison message, drop it
		_ = q.ch.Ack(d.DeliveryTag, false)
		return nil, fmt.Errorf("queue: invalid job payload: %w", err)
	}
	return &Claimed{Job: job, receipt: d.DeliveryTag}, nil
}

func (q *AMQPJobQueue) Complete(_ context.Context, c *Claimed) error {
	return q.ch.Ack(c.receipt.(uint64), false)
}

// Fail re-publishes the job with the attempt bumped, deferred by delay,
// then acks the original delivery.
func (q *AMQPJobQueue) Fail(ctx context.Context, c *Claimed, delay time.Duration) error {
	job := c.Job
	job.Attempt++
	if err := q.Enqueue(ctx, job, delay); err != nil {
		return err
	}
	return q.ch.Ack(c.receipt.(uint64), false)
}

func (q *AMQPJobQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

var _ JobQueue = (*AMQPJobQueue)(nil)
