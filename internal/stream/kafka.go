// Package stream publishes domain events to Kafka for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"giftwrap/internal/events"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher buffers events from the bus and writes them to a topic. Events of
// one booking share a key, so they land on one partition in order.
type Publisher struct {
	writer  MessageWriter
	buf     chan kafka.Message
	logger  *zerolog.Logger
	timeout time.Duration
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaWriter builds a hash-balanced writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewPublisher creates a publisher with a buffer of size events.
func NewPublisher(writer MessageWriter, size int, logger *zerolog.Logger) *Publisher {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "stream").Logger()
	return &Publisher{writer: writer, buf: make(chan kafka.Message, size), logger: &l, timeout: 10 * time.Second}
}

// Subscribe attaches the publisher to every event type on bus.
func (p *Publisher) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(p.Handle,
		events.BookingCreated,
		events.BookingStatusChanged,
		events.WorkItemUpdated,
		events.ScheduleUpdated,
	)
}

// Handle converts an event and buffers it. It never blocks the publisher of
// the event; a full buffer drops the event with an error.
func (p *Publisher) Handle(e events.Event) error {
	msg, err := ToMessage(e)
	if err != nil {
		return err
	}
	select {
	case p.buf <- msg:
		return nil
	default:
		return fmt.Errorf("stream buffer full, dropped %s %s", e.Type, e.ID)
	}
}

// Run writes buffered events until ctx ends, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("kafka writer close failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case msg := <-p.buf:
			p.write(ctx, msg)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for {
		select {
		case msg := <-p.buf:
			p.write(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_id", headerValue(msg.Headers, "event_id")).
			Str("event_type", headerValue(msg.Headers, "event_type")).
			Msg("kafka publish failed")
	}
}

// ToMessage encodes e as JSON with event_id and event_type headers.
func ToMessage(e events.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", e.ID, err)
	}

	key := "schedule:" + e.WorkerID
	if e.Booking != nil {
		key = "booking:" + strconv.FormatInt(e.Booking.ID, 10)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
