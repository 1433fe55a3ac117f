package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"boxoffice/internal/tickets"
	"boxoffice/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/eapache/go-resiliency/breaker"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() tickets.TicketEvent {
	return tickets.TicketEvent{
		Type:           tickets.EventTicketPurchased,
		TicketID:       uuid.New(),
		EventID:        uuid.New(),
		TicketTypeID:   uuid.New(),
		CustomerEmail:  "ada@example.com",
		PreviousStatus: tickets.StatusReserved,
		Status:         tickets.StatusPurchased,
		Price:          decimal.RequireFromString("49.90"),
		OccurredAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testProducerConfig() *KafkaProducerConfig {
	cfg := DefaultKafkaProducerConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerSuccesses = 1
	cfg.BreakerTimeout = time.Hour
	return cfg
}

func newMockProducer(t *testing.T, cfg *KafkaProducerConfig) *mocks.AsyncProducer {
	return mocks.NewAsyncProducer(t, cfg.SaramaConfig())
}

// stalledProducer never drains its input, like a producer whose buffer is full.
type stalledProducer struct {
	*mocks.AsyncProducer
	input chan *sarama.ProducerMessage
}

func (p *stalledProducer) Input() chan<- *sarama.ProducerMessage {
	return p.input
}

func breakerOpen(p *KafkaTicketEventProducer) bool {
	return errors.Is(p.breaker.Run(func() error { return nil }), breaker.ErrBreakerOpen)
}

func TestPublishTicketEventWritesEnvelope(t *testing.T) {
	cfg := testProducerConfig()
	mock := newMockProducer(t, cfg)
	event := sampleEvent()

	mock.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg TicketEventMessage
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.TicketID != event.TicketID || msg.Type != tickets.EventTicketPurchased {
			return errors.New("unexpected payload")
		}
		if msg.Version != messageVersion || msg.Producer != producerName {
			return errors.New("missing envelope fields")
		}
		return nil
	})

	producer := NewKafkaTicketEventProducerWith(mock, cfg, logger.Discard())
	require.NoError(t, producer.PublishTicketEvent(context.Background(), event))
	require.NoError(t, producer.Close())
}

func TestDeliveryFailuresOpenBreaker(t *testing.T) {
	cfg := testProducerConfig()
	mock := newMockProducer(t, cfg)
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	producer := NewKafkaTicketEventProducerWith(mock, cfg, logger.Discard())
	ctx := context.Background()

	// Queuing succeeds; the failures arrive later on the Errors channel.
	require.NoError(t, producer.PublishTicketEvent(ctx, sampleEvent()))
	require.NoError(t, producer.PublishTicketEvent(ctx, sampleEvent()))

	require.Eventually(t, func() bool { return breakerOpen(producer) }, 2*time.Second, 5*time.Millisecond)

	// No third message reaches the mock.
	err := producer.PublishTicketEvent(ctx, sampleEvent())
	assert.ErrorIs(t, err, ErrProducerUnavailable)

	require.NoError(t, producer.Close())
}

func TestPublishTicketEventIsBoundedWhenBufferFull(t *testing.T) {
	cfg := testProducerConfig()
	cfg.PublishTimeout = 20 * time.Millisecond
	stalled := &stalledProducer{
		AsyncProducer: newMockProducer(t, cfg),
		input:         make(chan *sarama.ProducerMessage),
	}
	producer := NewKafkaTicketEventProducerWith(stalled, cfg, logger.Discard())

	start := time.Now()
	err := producer.PublishTicketEvent(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, ErrPublishTimeout)
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = producer.PublishTicketEvent(ctx, sampleEvent())
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, producer.Close())
}

func TestPublishAfterCloseIsRejected(t *testing.T) {
	cfg := testProducerConfig()
	producer := NewKafkaTicketEventProducerWith(newMockProducer(t, cfg), cfg, logger.Discard())

	require.NoError(t, producer.Close())
	require.NoError(t, producer.Close())

	err := producer.PublishTicketEvent(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, ErrProducerUnavailable)
}

func TestTicketEventMessagePartitionKeyIsTicketID(t *testing.T) {
	event := sampleEvent()
	msg := NewTicketEventMessage(event)

	assert.Equal(t, event.TicketID.String(), msg.GetPartitionKey())
	assert.NotEqual(t, uuid.Nil, msg.MessageID)
}
