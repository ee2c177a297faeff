// Package kafka publishes outage change events to the configured topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mirado-dev/delestage/internal/config"
	"github.com/mirado-dev/delestage/internal/domain"
	"github.com/mirado-dev/delestage/internal/scheduling"
)

// Publisher produces outage change events to a Kafka topic.
// It implements scheduling.EventPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured change-feed topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishOutageChange serializes and publishes one change event.
func (p *Publisher) PublishOutageChange(ctx context.Context, event scheduling.OutageEvent) error {
	msg, err := serializeToMessage(event, time.Now())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an OutageEvent into a Kafka message. The key is
// the outage scope so events for one (neighborhood, date) stay ordered within
// a partition.
func serializeToMessage(event scheduling.OutageEvent, occurredAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize outage event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(scopeKey(event.Outage)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "occurred_at", Value: []byte(occurredAt.Format(time.RFC3339))},
		},
	}, nil
}

func scopeKey(o domain.Outage) string {
	return strconv.FormatInt(o.NeighborhoodID, 10) + ":" + o.Date
}
