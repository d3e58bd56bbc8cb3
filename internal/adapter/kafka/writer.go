package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/heat-insight-engine/internal/config"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

// Writer produces assembled snapshots to a Kafka topic.
// It implements snapshot.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes snap and writes it keyed by locality, so every snapshot
// for one locality lands on the same partition in order.
func (w *Writer) Publish(ctx context.Context, snap domain.InsightSnapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.Locality, err)
	}
	w.logger.Debug("snapshot published", "locality", snap.Locality, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an InsightSnapshot into a Kafka message.
func serializeToMessage(snap domain.InsightSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.Locality),
		Value: data,
		Time:  snap.GeneratedAt,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(snap.RiskLevel.String())},
			{Key: "generated_at", Value: []byte(snap.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
