package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer is the subset of *kafka.Writer used to publish notifications
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes purchase confirmations to a topic; an SMS gateway
// consumes them downstream.
type KafkaNotifier struct {
	producer Producer
	topic    string
}

var _ Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(producer Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// NewKafkaWriter builds the writer used by NewKafkaNotifier. The topic is set
// per message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

type purchaseConfirmation struct {
	PhoneNumber string    `json:"phoneNumber"`
	PoolNames   []string  `json:"poolNames"`
	SentAt      time.Time `json:"sentAt"`
}

func (n *KafkaNotifier) Notify(ctx context.Context, phoneNumber string, poolNames []string) error {
	payload, err := json.Marshal(purchaseConfirmation{
		PhoneNumber: phoneNumber,
		PoolNames:   poolNames,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal purchase confirmation: %w", err)
	}

	msg := kafka.Message{
		Topic: n.topic,
		Key:   []byte(phoneNumber),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("purchase_confirmation")},
		},
	}
	if err := n.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish purchase confirmation: %w", err)
	}
	return nil
}
