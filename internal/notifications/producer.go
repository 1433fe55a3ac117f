package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"boxoffice/internal/tickets"
	"boxoffice/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/eapache/go-resiliency/breaker"
)

var (
	// ErrProducerUnavailable is returned while the breaker is open or after Close
	ErrProducerUnavailable = errors.New("ticket event producer unavailable")
	// ErrPublishTimeout is returned when the send buffer stays full for PublishTimeout
	ErrPublishTimeout = errors.New("ticket event publish timed out")
)

// KafkaProducerConfig contains configuration for the ticket event producer
type KafkaProducerConfig struct {
	Brokers          []string
	TicketTopic      string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int

	// PublishTimeout bounds how long a caller waits for room in the send
	// buffer. Delivery itself happens in the background.
	PublishTimeout time.Duration

	// Breaker: open after BreakerFailures errors, try again after
	// BreakerTimeout, close after BreakerSuccesses good sends.
	BreakerFailures  int
	BreakerSuccesses int
	BreakerTimeout   time.Duration
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		TicketTopic:      "ticket-events",
		RetryMax:         3,
		TimeoutMs:        10000,             // 10 seconds
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
		PublishTimeout:   250 * time.Millisecond,
		BreakerFailures:  5,
		BreakerSuccesses: 1,
		BreakerTimeout:   30 * time.Second,
	}
}

// SaramaConfig builds the sarama producer settings
func (c *KafkaProducerConfig) SaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = c.RequiredAcks
	saramaConfig.Producer.Compression = c.CompressionType
	saramaConfig.Producer.Retry.Max = c.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = c.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes

	// Idempotence requires a single in-flight request per connection
	if c.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner routes by ticket id
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	return saramaConfig
}

// KafkaTicketEventProducer publishes committed ticket transitions to Kafka.
// Sends are queued on a sarama AsyncProducer; delivery failures are counted by
// the breaker when they come back on the Errors channel.
type KafkaTicketEventProducer struct {
	producer sarama.AsyncProducer
	config   *KafkaProducerConfig
	breaker  *breaker.Breaker
	logger   *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ tickets.EventPublisher = (*KafkaTicketEventProducer)(nil)

// NewKafkaTicketEventProducer dials the brokers and creates the producer
func NewKafkaTicketEventProducer(config *KafkaProducerConfig, log *logger.Logger) (*KafkaTicketEventProducer, error) {
	if config == nil {
		config = DefaultKafkaProducerConfig()
	}

	producer, err := sarama.NewAsyncProducer(config.Brokers, config.SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaTicketEventProducerWith(producer, config, log), nil
}

// NewKafkaTicketEventProducerWith wraps an existing sarama producer, which must
// be configured to return both successes and errors.
func NewKafkaTicketEventProducerWith(producer sarama.AsyncProducer, config *KafkaProducerConfig, log *logger.Logger) *KafkaTicketEventProducer {
	if config == nil {
		config = DefaultKafkaProducerConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	p := &KafkaTicketEventProducer{
		producer: producer,
		config:   config,
		breaker:  breaker.New(config.BreakerFailures, config.BreakerSuccesses, config.BreakerTimeout),
		logger:   log.WithComponent("ticket_event_producer"),
	}

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	return p
}

// PublishTicketEvent queues one event and returns without waiting for the
// broker. It fails fast while the breaker is open and gives up after
// PublishTimeout when the send buffer is full.
func (p *KafkaTicketEventProducer) PublishTicketEvent(ctx context.Context, event tickets.TicketEvent) error {
	message := NewTicketEventMessage(event)

	messageBytes, err := message.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal ticket event: %w", err)
	}

	producerMessage := &sarama.ProducerMessage{
		Topic:     p.config.TicketTopic,
		Key:       sarama.StringEncoder(message.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(message),
		Timestamp: event.OccurredAt,
		Metadata:  event,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = p.breaker.Run(func() error {
		timer := time.NewTimer(p.config.PublishTimeout)
		defer timer.Stop()

		select {
		case p.producer.Input() <- producerMessage:
			return nil
		case <-timer.C:
			return ErrPublishTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return ErrProducerUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to queue ticket event: %w", err)
	}
	return nil
}

func (p *KafkaTicketEventProducer) handleSuccesses() {
	defer p.wg.Done()
	for msg := range p.producer.Successes() {
		event, _ := msg.Metadata.(tickets.TicketEvent)
		p.logger.Debug("Ticket event published",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"event_type", string(event.Type),
			"ticket_id", event.TicketID.String(),
		)
	}
}

func (p *KafkaTicketEventProducer) handleErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		// Feed the delivery failure to the breaker; an open breaker ignores it.
		_ = p.breaker.Run(func() error { return perr.Err })

		attrs := []any{"error", perr.Err}
		if perr.Msg != nil {
			if event, ok := perr.Msg.Metadata.(tickets.TicketEvent); ok {
				attrs = append(attrs, "event_type", string(event.Type), "ticket_id", event.TicketID.String())
			}
		}
		p.logger.Warn("Ticket event delivery failed", attrs...)
	}
}

func (p *KafkaTicketEventProducer) createHeaders(message *TicketEventMessage) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("message_id"), Value: []byte(message.MessageID.String())},
		{Key: []byte("event_type"), Value: []byte(message.Type)},
		{Key: []byte("ticket_id"), Value: []byte(message.TicketID.String())},
		{Key: []byte("ticket_type_id"), Value: []byte(message.TicketTypeID.String())},
		{Key: []byte("version"), Value: []byte(message.Version)},
		{Key: []byte("producer"), Value: []byte(message.Producer)},
		{Key: []byte("occurred_at"), Value: []byte(message.OccurredAt.Format(time.RFC3339Nano))},
	}
}

// Close flushes queued events and shuts the producer down. Later publishes
// return ErrProducerUnavailable.
func (p *KafkaTicketEventProducer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
