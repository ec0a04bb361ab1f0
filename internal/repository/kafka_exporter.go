package repository

import (
	"context"
	"strconv"
	"time"

	"MatchPulse/internal/domain/models"
	pkgkafka "MatchPulse/pkg/kafka"
	applogger "MatchPulse/pkg/logger"
)

// KafkaTickExporter mirrors raw ticks onto an archival Kafka topic for
// downstream analytics. Export is best-effort and off the hot path: a
// failed write is logged and dropped.
type KafkaTickExporter struct {
	producer *pkgkafka.Producer
	topic    string
	logger   *applogger.Logger
}

// NewKafkaTickExporter creates the exporter.
func NewKafkaTickExporter(producer *pkgkafka.Producer, topic string, logger *applogger.Logger) *KafkaTickExporter {
	return &KafkaTickExporter{producer: producer, topic: topic, logger: logger}
}

type exportRecord struct {
	Category string      `json:"category"`
	MatchID  int64       `json:"match_id"`
	Ts       time.Time   `json:"ts"`
	Payload  interface{} `json:"payload"`
}

// ExportOdds writes odds ticks to the archive topic, keyed by match id.
func (e *KafkaTickExporter) ExportOdds(ctx context.Context, ticks []models.OddsTick) {
	msgs := make([]pkgkafka.Message, 0, len(ticks))
	for _, t := range ticks {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(strconv.FormatInt(t.MatchID, 10)),
			Value: exportRecord{Category: "odds", MatchID: t.MatchID, Ts: t.Timestamp, Payload: t},
		})
	}
	e.send(ctx, msgs)
}

// ExportEvents writes match events to the archive topic.
func (e *KafkaTickExporter) ExportEvents(ctx context.Context, events []models.MatchEvent) {
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(strconv.FormatInt(ev.MatchID, 10)),
			Value: exportRecord{Category: "events", MatchID: ev.MatchID, Ts: ev.Timestamp, Payload: ev},
		})
	}
	e.send(ctx, msgs)
}

// ExportStats writes stat lines to the archive topic.
func (e *KafkaTickExporter) ExportStats(ctx context.Context, stats []models.TeamStatLine) {
	msgs := make([]pkgkafka.Message, 0, len(stats))
	for _, st := range stats {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(strconv.FormatInt(st.MatchID, 10)),
			Value: exportRecord{Category: "stats", MatchID: st.MatchID, Ts: st.Timestamp, Payload: st},
		})
	}
	e.send(ctx, msgs)
}

func (e *KafkaTickExporter) send(ctx context.Context, msgs []pkgkafka.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := e.producer.PublishBatch(ctx, e.topic, msgs); err != nil {
		e.logger.Warn("tick export failed",
			applogger.String("topic", e.topic),
			applogger.Int("messages", len(msgs)),
			applogger.Error(err),
		)
	}
}

// Close closes the producer.
func (e *KafkaTickExporter) Close() error {
	return e.producer.Close()
}
