package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/tank-level-service/internal/config"
	"github.com/couchcryptid/tank-level-service/internal/domain"
)

// Writer publishes tank metrics to a Kafka topic, keyed by tank id so every
// record of a tank lands on the same partition.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes the batch in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, metrics []domain.TankMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(metrics))
	for i := range metrics {
		msg, err := serializeToMessage(metrics[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d metrics: %w", len(msgs), err)
	}
	w.logger.Debug("metrics published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(m domain.TankMetrics) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize tank metrics: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.TankID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(m.Status)},
			{Key: "computed_at", Value: []byte(m.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
