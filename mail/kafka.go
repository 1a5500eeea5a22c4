package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultTopic receives notification messages when no topic is configured.
const DefaultTopic = "auth.notifications"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer publishes each message as JSON keyed by recipient.
type KafkaMailer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaMailer builds a synchronous writer for the given brokers.
func NewKafkaMailer(brokers []string, topic string, logger *zap.Logger) (*KafkaMailer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.Info("kafka mailer initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return newKafkaMailer(writer, topic, logger), nil
}

func newKafkaMailer(w messageWriter, topic string, logger *zap.Logger) *KafkaMailer {
	return &KafkaMailer{writer: w, topic: topic, logger: logger}
}

func (m *KafkaMailer) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	err = m.writer.WriteMessages(ctx, kafka.Message{
		Topic: m.topic,
		Key:   []byte(msg.To),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
		Time: time.Now(),
	})
	if err != nil {
		m.logger.Error("failed to publish notification",
			zap.String("topic", m.topic),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (m *KafkaMailer) Close() error {
	if m.writer == nil {
		return nil
	}
	if err := m.writer.Close(); err != nil {
		m.logger.Error("failed to close kafka mailer", zap.Error(err))
		return err
	}
	return nil
}
