package repository

import (
	"context"

	"PetroPulse/internal/domain/models"
	pkgkafka "PetroPulse/pkg/kafka"
	applogger "PetroPulse/pkg/logger"
)

// KafkaAlertPublisher pushes anomalous verdicts to a Kafka topic keyed by
// equipment id so per-equipment ordering survives partitioning.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

// NewKafkaAlertPublisher creates a Kafka-backed alert publisher.
func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic, l: l}
}

func (p *KafkaAlertPublisher) PublishAnomalies(ctx context.Context, verdicts []models.AnomalyVerdict) error {
	msgs := make([]pkgkafka.Message, 0, len(verdicts))
	for _, v := range verdicts {
		if !v.IsAnomalous {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(v.EquipmentID),
			Value: v,
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return err
	}

	if p.l != nil {
		p.l.Info("anomaly alerts published",
			applogger.String("topic", p.topic),
			applogger.Int("count", len(msgs)),
		)
	}
	return nil
}

func (p *KafkaAlertPublisher) Close() error {
	return p.producer.Close()
}
