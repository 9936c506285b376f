package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/roach88/possync/internal/pos"
)

// EventTypeCaptured is the event_type header on transaction messages.
const EventTypeCaptured = "transaction.captured"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes each transaction as one message keyed by its id.
//
// Keying by id keeps every redelivery of a transaction on the same
// partition, where consumers deduplicate it.
type KafkaSender struct {
	w messageWriter
}

// NewKafkaSender creates a sender that writes to topic. Writes wait for all
// in-sync replicas to acknowledge.
func NewKafkaSender(brokers []string, topic string, writeTimeout time.Duration) *KafkaSender {
	return &KafkaSender{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}}
}

// Send publishes tx and returns once the brokers acknowledged it.
func (s *KafkaSender) Send(ctx context.Context, tx pos.OfflineTransaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(tx.ID),
		Value: payload,
		Time:  tx.CapturedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCaptured)},
			{Key: "terminal_id", Value: []byte(tx.TerminalID)},
		},
	}
	return s.w.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (s *KafkaSender) Close() error {
	return s.w.Close()
}
