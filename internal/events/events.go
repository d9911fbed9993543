package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"timed-quiz-service/internal/domain"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// DefaultTopic carries result-submitted events.
	DefaultTopic = "quiz.results.submitted"

	eventTypeResultSubmitted = "result.submitted"
	eventVersion             = "1.0"
	eventSource              = "timed-quiz-service"
)

// ResultSubmitted is published once per persisted result.
type ResultSubmitted struct {
	ID         string    `json:"id"`
	ResultID   string    `json:"resultId"`
	QuizID     string    `json:"quizId"`
	UserID     string    `json:"userId"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Config holds configuration for the event bus.
type Config struct {
	KafkaBrokers  []string
	TopicName     string
	ConsumerGroup string
	Logger        *slog.Logger
}

// Bus publishes and consumes result events through watermill. With Kafka
// every instance sees every result; the go-channel variant stays in process.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
	topic      string
}

// NewInProcessBus wires a go-channel pub/sub used when no broker is configured.
func NewInProcessBus(topic string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if topic == "" {
		topic = DefaultTopic
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger))
	return &Bus{publisher: pubSub, subscriber: pubSub, logger: logger, topic: topic}
}

// NewKafkaBus creates a Kafka-backed bus.
func NewKafkaBus(cfg Config) (*Bus, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topic := cfg.TopicName
	if topic == "" {
		topic = DefaultTopic
	}
	wmLogger := watermill.NewSlogLogger(logger)

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.KafkaBrokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		ConsumerGroup:         cfg.ConsumerGroup,
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
	}, wmLogger)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create Kafka subscriber: %w", err)
	}

	return &Bus{publisher: publisher, subscriber: subscriber, logger: logger, topic: topic}, nil
}

// PublishResultSubmitted implements app.ResultPublisher.
func (b *Bus) PublishResultSubmitted(ctx context.Context, result domain.Result) error {
	event := ResultSubmitted{
		ID:         watermill.NewUUID(),
		ResultID:   result.ID,
		QuizID:     result.QuizID,
		UserID:     result.UserID,
		Score:      result.Score,
		Total:      result.Total,
		Percentage: result.Percentage,
		Status:     string(result.Verdict),
		OccurredAt: result.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", eventTypeResultSubmitted)
	msg.Metadata.Set("source", eventSource)
	msg.Metadata.Set("version", eventVersion)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish result event: %w", err)
	}
	b.logger.DebugContext(ctx, "published result event", "event_id", event.ID, "result_id", result.ID, "topic", b.topic)
	return nil
}

// Listen consumes result events until ctx is done, calling handle for each.
// Undecodable messages are acknowledged and dropped.
func (b *Bus) Listen(ctx context.Context, handle func(context.Context, ResultSubmitted)) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event ResultSubmitted
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.WarnContext(ctx, "dropping malformed result event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			handle(ctx, event)
			msg.Ack()
		}
	}
}

// Close releases the publisher and subscriber.
func (b *Bus) Close() error {
	pubErr := b.publisher.Close()
	if b.subscriber != nil && any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil && pubErr == nil {
			return err
		}
	}
	return pubErr
}
