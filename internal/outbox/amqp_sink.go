package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchange = "orders.events"
	publishWait     = 150 * time.Millisecond
)

// AMQPSink publishes claimed events to a topic exchange, using the event
// type as the routing key. It reconnects lazily on a dead connection rather
// than failing closed — a transient broker outage just lands the row back
// in PENDING via the caller's MarkFailed/Backoff path.
type AMQPSink struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	if url == "" {
		return nil, errors.New("missing amqp url")
	}
	if exchange == "" {
		exchange = defaultExchange
	}
	s := &AMQPSink{url: url, exchange: exchange}
	if err := s.connectLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) connectLocked() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	s.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	s.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	s.conn = conn
	s.ch = ch
	return nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return nil
}

func (s *AMQPSink) Deliver(ctx context.Context, eventType string, payload []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch == nil || s.conn == nil || s.conn.IsClosed() {
		_ = s.closeLocked()
		if err := s.connectLocked(); err != nil {
			return fmt.Errorf("amqp reconnect failed: %w", err)
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}

	if err := s.ch.PublishWithContext(ctx, s.exchange, eventType, true, false, pub); err != nil {
		return err
	}

	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ret := <-s.returnCh:
			return fmt.Errorf("amqp returned: %d %s", ret.ReplyCode, ret.ReplyText)
		case conf := <-s.confirmCh:
			if !conf.Ack {
				return errors.New("amqp publish not acked")
			}
			return nil
		case <-timer.C:
			return nil
		}
	}
}

func (s *AMQPSink) closeLocked() error {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return nil
}
