package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// connectToRabbitMQ dials url, retrying up to MaxConnectRetry times. It gives
// up early with ErrQueueClosed once stop is closed.
func connectToRabbitMQ(url string, stop <-chan struct{}) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < MaxConnectRetry; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			slog.Info("connected to rabbitmq")
			return conn, nil
		}
		slog.Warn("failed to connect to rabbitmq", "attempt", i+1, "max_attempts", MaxConnectRetry, "error", err)
		select {
		case <-stop:
			return nil, ErrQueueClosed
		case <-time.After(RetryDelay):
		}
	}
	slog.Error("failed to connect to rabbitmq", "attempts", MaxConnectRetry, "error", err)
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", MaxConnectRetry, err)
}

// RabbitMQPublisher publishes message events to RabbitMQ. connLock only guards
// swapping the connection; dialing happens outside of it so publishes fail
// fast while the broker is unreachable.
type RabbitMQPublisher struct {
	connLock   sync.RWMutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	url        string
	stop       chan struct{}
	destructor sync.Once
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{url: rabbitMQURL, stop: make(chan struct{})}

	conn, channel, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.setConnection(conn, channel)

	go p.handleReconnect(channel)

	return p, nil
}

func (p *RabbitMQPublisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := connectToRabbitMQ(p.url, p.stop)
	if err != nil {
		return nil, nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		slog.Error("failed to open rabbitmq channel", "error", err)
		return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if _, err := channel.QueueDeclare(MessageEventsQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare rabbitmq queue %s: %w", MessageEventsQueue, err)
	}

	slog.Info("rabbitmq channel opened and queue declared", "queue", MessageEventsQueue)

	return conn, channel, nil
}

// setConnection installs conn and channel unless the publisher was closed in
// the meantime, in which case it reports false and the caller owns conn.
func (p *RabbitMQPublisher) setConnection(conn *amqp.Connection, channel *amqp.Channel) bool {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	if p.stopped() {
		return false
	}
	p.conn = conn
	p.channel = channel
	return true
}

func (p *RabbitMQPublisher) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

func (p *RabbitMQPublisher) handleReconnect(channel *amqp.Channel) {
	notifyClose := make(chan *amqp.Error, 1)
	channel.NotifyClose(notifyClose)

	select {
	case err, ok := <-notifyClose:
		if !ok {
			slog.Info("rabbitmq channel closed")
			return
		}
		slog.Warn("rabbitmq connection lost, attempting to reconnect", "error", err)
	case <-p.stop:
		return
	}

	p.setConnection(nil, nil)
	p.reconnect()
}

// reconnect dials until it succeeds or the publisher is closed.
func (p *RabbitMQPublisher) reconnect() {
	for {
		if p.stopped() {
			return
		}

		conn, channel, err := p.dial()
		if err == nil {
			if !p.setConnection(conn, channel) {
				conn.Close()
				return
			}
			slog.Info("successfully reconnected to rabbitmq")
			go p.handleReconnect(channel)
			return
		}

		select {
		case <-p.stop:
			return
		case <-time.After(RetryDelay * 10):
		}
	}
}

func (p *RabbitMQPublisher) publishTaskInternal(ctx context.Context, queueName string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", queueName, err)
	}

	p.connLock.RLock()
	defer p.connLock.RUnlock()

	if p.stopped() {
		return ErrQueueClosed
	}
	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}

	err = p.channel.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}

	return nil
}

func (p *RabbitMQPublisher) PublishMessageCreated(ctx context.Context, payload MessageCreatedPayload) error {
	return p.publishTaskInternal(ctx, MessageEventsQueue, payload)
}

func (p *RabbitMQPublisher) Close() {
	p.destructor.Do(func() {
		close(p.stop)

		p.connLock.Lock()
		conn := p.conn
		p.conn = nil
		p.channel = nil
		p.connLock.Unlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				slog.Error("error closing rabbitmq connection", "error", err)
			}
		}
	})
}

type RabbitMQTask struct {
	d amqp.Delivery
}

func (t *RabbitMQTask) Type() string {
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

// Nack drops the delivery without requeueing so a poison event cannot loop.
func (t *RabbitMQTask) Nack() error {
	return t.d.Nack(false, false)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

type RabbitMQReceiver struct {
	tasks      chan Task
	url        string
	stop       chan struct{}
	destructor sync.Once
}

func NewRabbitMQReceiver(rabbitMQURL string) (*RabbitMQReceiver, error) {
	c := &RabbitMQReceiver{
		tasks: make(chan Task),
		url:   rabbitMQURL,
		stop:  make(chan struct{}),
	}

	if err := c.receiveTasks(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RabbitMQReceiver) consume(msgs <-chan amqp.Delivery) {
	for d := range msgs {
		select {
		case c.tasks <- &RabbitMQTask{d: d}:
		case <-c.stop:
			return
		}
	}
}

func (c *RabbitMQReceiver) receiveTasks() error {
	conn, err := connectToRabbitMQ(c.url, c.stop)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		slog.Error("failed to open rabbitmq channel", "error", err)
		conn.Close()
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := channel.Qos(1, 0, false); err != nil {
		slog.Error("failed to set channel qos", "error", err)
		conn.Close()
		return fmt.Errorf("failed to set channel qos: %w", err)
	}

	if _, err := channel.QueueDeclare(MessageEventsQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare rabbitmq queue %s: %w", MessageEventsQueue, err)
	}

	msgs, err := channel.Consume(MessageEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("failed to consume from rabbitmq queue", "queue", MessageEventsQueue, "error", err)
		conn.Close()
		return fmt.Errorf("failed to consume from rabbitmq queue %s: %w", MessageEventsQueue, err)
	}

	go c.consume(msgs)
	go c.handleReconnect(conn, channel)

	return nil
}

func (c *RabbitMQReceiver) handleReconnect(conn *amqp.Connection, channel *amqp.Channel) {
	notifyClose := make(chan *amqp.Error, 1)
	channel.NotifyClose(notifyClose)

	select {
	case err, ok := <-notifyClose:
		if !ok {
			slog.Info("rabbitmq channel closed")
			return
		}

		slog.Warn("rabbitmq connection lost, attempting to reconnect", "error", err)

		for {
			if c.receiveTasks() == nil {
				slog.Info("successfully restarted rabbitmq consumer")
				return
			}
			select {
			case <-c.stop:
				return
			case <-time.After(RetryDelay * 10):
			}
		}
	case <-c.stop:
		slog.Info("stopping rabbitmq consumer")
		if err := conn.Close(); err != nil {
			slog.Error("error closing rabbitmq connection", "error", err)
		}
		return
	}
}

func (c *RabbitMQReceiver) Tasks() <-chan Task {
	return c.tasks
}

func (c *RabbitMQReceiver) Close() {
	c.destructor.Do(func() {
		close(c.stop)
	})
}
