// Package messaging connects the engine to Kafka. Recorded behavior events
// flow out to the external scoring job; the job's trending and popularity
// updates flow back in.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/pkg/models"
)

// ScoreUpdate is the wire shape the external scoring job publishes.
type ScoreUpdate struct {
	ContentID       int64   `json:"content_id"`
	TrendingScore   float64 `json:"trending_score"`
	PopularityIndex float64 `json:"popularity_index"`
}

// ScoreHandler applies one score update.
type ScoreHandler func(ctx context.Context, update ScoreUpdate) error

// EventStream wraps the Kafka producer and consumer. A nil *EventStream is
// a no-op publisher, so deployments without Kafka need no special casing.
type EventStream struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *logrus.Logger
}

func NewEventStream(cfg *config.KafkaConfig, logger *logrus.Logger) *EventStream {
	if !cfg.Enabled {
		return nil
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topics.BehaviorEvents,
		Balancer: &kafka.LeastBytes{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topics.ContentScores,
		GroupID: "engine-score-consumer",
	})

	logger.WithField("brokers", cfg.Brokers).Info("Kafka event stream initialized")
	return &EventStream{writer: writer, reader: reader, logger: logger}
}

// PublishEvent emits one recorded behavior event, keyed by user so a user's
// events stay ordered within a partition.
func (s *EventStream) PublishEvent(ctx context.Context, event *models.BehaviorEvent) error {
	if s == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: payload,
	})
}

// ConsumeScores reads score updates until the context is canceled, applying
// each through the handler. Malformed messages are logged and skipped.
func (s *EventStream) ConsumeScores(ctx context.Context, handler ScoreHandler) {
	if s == nil {
		return
	}

	for {
		message, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			s.logger.WithError(err).Error("Failed to read score update")
			continue
		}

		var update ScoreUpdate
		if err := json.Unmarshal(message.Value, &update); err != nil {
			s.logger.WithError(err).Warn("Malformed score update, skipping")
			continue
		}

		if err := handler(ctx, update); err != nil {
			s.logger.WithError(err).WithField("content_id", update.ContentID).Error("Failed to apply score update")
		}
	}
}

func (s *EventStream) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if err := s.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
