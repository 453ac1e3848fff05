package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/logging"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Envelope is the JSON body of every message put on the exchange.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
	Data       any       `json:"data"`
}

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitPublisher publishes domain events to a durable topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	open     func() (channel, error)
	exchange string
	now      func() time.Time
	log      *zerolog.Logger
}

// Compile-time check
var _ adapter.EventPublisher = (*RabbitPublisher)(nil)

const dialTimeout = 10 * time.Second

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(rawURL, exchange string, logger *zerolog.Logger) (*RabbitPublisher, error) {
	clean, err := sanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.DialConfig(clean, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	open := func() (channel, error) { return conn.Channel() }
	p, err := newPublisher(open, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(open func() (channel, error), exchange string, logger *zerolog.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = logging.Silent()
	}
	compLog := logger.With().Str("component", "RabbitPublisher").Str("exchange", exchange).Logger()
	p := &RabbitPublisher{open: open, exchange: exchange, now: time.Now, log: &compLog}
	ch, err := p.openChannel()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	return p, nil
}

func (p *RabbitPublisher) openChannel() (channel, error) {
	ch, err := p.open()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return ch, nil
}

// Publish wraps payload in an Envelope and sends it under routingKey.
// A failed publish reopens the channel and is retried once.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: p.now().UTC(),
		TraceID:    logging.TraceID(ctx),
		Data:       payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", routingKey, err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         routingKey,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("publisher closed")
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	p.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed; reopening channel")

	ch, openErr := p.openChannel()
	if openErr != nil {
		return errors.Join(err, openErr)
	}
	_ = p.ch.Close()
	p.ch = ch
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// sanitizeURL strips quotes and stray prefixes that env files tend to leave around the URL.
func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url must start with amqp:// or amqps://")
	}
	return clean, nil
}
