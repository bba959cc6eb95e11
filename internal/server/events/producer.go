// Package events publishes user lifecycle notifications to Kafka. Delivery
// is best effort and at most once: publish failures are reported to the
// caller for logging but never affect the request that triggered them.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/avolkov/authgate/internal/server/models"
)

// Message key of user-created events; consumers partition by it.
const userCreatedKey = "new_user"

// Writer is the subset of kafka.Writer used by the producer, kept as an
// interface so tests can inject a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is the interface the orchestrator uses to announce new users.
type Publisher interface {
	UserCreated(ctx context.Context, user *models.UserOut) error
	Close() error
}

// UserCreatedEvent is the JSON payload published for each registration.
type UserCreatedEvent struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// KafkaProducer is a thin wrapper around a kafka writer implementing
// Publisher.
type KafkaProducer struct {
	writer Writer
}

// NewKafkaProducer creates a KafkaProducer that writes to the given
// broker/topic.
func NewKafkaProducer(brokerAddr, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokerAddr),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaProducer{writer: w}
}

// NewKafkaProducerWithWriter allows injecting a test writer.
func NewKafkaProducerWithWriter(w Writer) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

// UserCreated publishes a user-created event for the given user.
func (p *KafkaProducer) UserCreated(ctx context.Context, user *models.UserOut) error {
	event := UserCreatedEvent{
		UserID:    user.ID,
		Username:  user.Login,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{Key: []byte(userCreatedKey), Value: value}
	return p.writer.WriteMessages(ctx, msg)
}

// Close closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
