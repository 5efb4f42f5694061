package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitJobQueue dispatches notification jobs over RabbitMQ. It is the
// alternative broker to RedisJobQueue for deployments that already run
// an AMQP broker; both sides of the queue interface match.
type RabbitJobQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

type RabbitQueueConfig struct {
	URL   string
	Queue string
}

func NewRabbitJobQueue(cfg RabbitQueueConfig) (*RabbitJobQueue, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("rabbitmq url required")
	}
	name := strings.TrimSpace(cfg.Queue)
	if name == "" {
		return nil, errors.New("queue name required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitJobQueue{conn: conn, ch: ch, queue: name}, nil
}

// Enqueue publishes the job as a persistent JSON message.
func (q *RabbitJobQueue) Enqueue(ctx context.Context, job EmailJob) (JobStatus, error) {
	if strings.TrimSpace(job.Subject) == "" {
		return JobStatus{}, errors.New("subject required")
	}
	if len(job.Recipients) == 0 {
		return JobStatus{}, errors.New("recipients required")
	}
	body, err := json.Marshal(job)
	if err != nil {
		return JobStatus{}, fmt.Errorf("encode job: %w", err)
	}
	if err := q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}); err != nil {
		return JobStatus{}, fmt.Errorf("publish job: %w", err)
	}
	return JobStatus{Job: job, Status: StatusQueued}, nil
}

// Start launches consumer goroutines. A failed delivery is requeued
// once via the broker's redelivery flag, then dropped.
func (q *RabbitJobQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, EmailJob) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("notifier-%d", i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RabbitJobQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, EmailJob) error) {
	deliveries, err := q.ch.Consume(q.queue, consumer, false, false, false, false, nil)
	if err != nil {
		slog.Error("rabbitmq consume failed", "queue", q.queue, "err", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			var job EmailJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				_ = msg.Nack(false, false)
				continue
			}
			if err := handler(ctx, job); err != nil {
				// one broker-level redelivery, then drop
				_ = msg.Nack(false, !msg.Redelivered)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

// Close tears down the channel and connection.
func (q *RabbitJobQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
