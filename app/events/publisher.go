package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

// TransitionMessage is the payload published for every applied status change.
type TransitionMessage struct {
	TransactionID    string               `json:"transaction_id"`
	SessionID        string               `json:"session_id"`
	UserID           string               `json:"user_id,omitempty"`
	EventType        string               `json:"event_type"`
	OldStatus        entity.SessionStatus `json:"old_status,omitempty"`
	OldPaymentStatus entity.PaymentStatus `json:"old_payment_status,omitempty"`
	NewStatus        entity.SessionStatus `json:"new_status"`
	NewPaymentStatus entity.PaymentStatus `json:"new_payment_status"`
	Amount           string               `json:"amount"`
	Currency         string               `json:"currency"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	})
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// PublishTransition writes msg keyed by session id so a session's
// transitions stay ordered within one partition.
func (p *KafkaPublisher) PublishTransition(ctx context.Context, msg *TransitionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.SessionID),
		Value: data,
		Time:  msg.OccurredAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
