// Package amqp carries dataset refresh jobs between the dashboard and the
// refresh worker over a durable RabbitMQ queue.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	publishTimeout   = 5 * time.Second
	maxBackoff       = 30 * time.Second
)

// RefreshHandler processes one job. Returning an error nacks the delivery;
// it is requeued once, then dropped.
type RefreshHandler func(context.Context, *RefreshMessage) error

// Client publishes and consumes refresh jobs. The connection is opened
// lazily again after a broker failure.
type Client struct {
	url      string
	exchange string
	queue    string
	breaker  *breaker

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchange, queue string) (*Client, error) {
	c := &Client{
		url:      url,
		exchange: exchange,
		queue:    queue,
		breaker:  newBreaker(breakerThreshold, breakerCooldown),
	}
	if _, err := c.openChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

// openChannel returns the current channel, redialing when it is gone.
func (c *Client) openChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.dropLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, c.exchange, c.queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	c.conn, c.channel = conn, ch
	return ch, nil
}

// declareTopology binds a durable queue to a durable direct exchange under
// the queue's own name, with a prefetch of one job per consumer.
func declareTopology(ch *amqp091.Channel, exchange, queue string) error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false
	if err := ch.ExchangeDeclare(exchange, amqp091.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, durable, autoDelete, exclusive, noWait, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return ch.Qos(1, 0, false)
}

// PublishRefresh sends msg as a persistent message. While the breaker is
// open it fails fast with ErrCircuitOpen.
func (c *Client) PublishRefresh(ctx context.Context, msg *RefreshMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.breaker.allow() {
		return ErrCircuitOpen
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal refresh message: %w", err)
	}

	ch, err := c.openChannel()
	if err != nil {
		c.breaker.failure()
		return fmt.Errorf("publish refresh: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.JobID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.breaker.failure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.dropLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish refresh: %w", err)
	}
	c.breaker.success()

	slog.InfoContext(ctx, "Published refresh message",
		"job_id", msg.JobID,
		"datasets", msg.Datasets,
		"queue", c.queue)
	return nil
}

// ConsumeRefresh delivers jobs to handle until ctx is done. A dropped
// connection is redialed with exponential backoff.
func (c *Client) ConsumeRefresh(ctx context.Context, handle RefreshHandler) error {
	attempt := 0
	for {
		err := c.consume(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Refresh consumer interrupted, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, handle RefreshHandler) error {
	ch, err := c.openChannel()
	if err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	slog.InfoContext(ctx, "Consuming refresh messages", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, d, handle)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, d amqp091.Delivery, handle RefreshHandler) {
	msg, err := RefreshMessageFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed refresh message", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Refresh job failed",
			"error", err,
			"job_id", msg.JobID,
			"redelivered", d.Redelivered)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

// exponentialBackoff doubles from one second up to maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) dropLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}
