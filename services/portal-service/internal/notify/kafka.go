package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Sakin08/Doctors-Appointment/libs/kafkax"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "portal.notification.v1"
	EventType    = "portal.notification.v1"
)

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Event struct {
	EventID string `json:"event_id"`
	Toast
}

// KafkaNotifier publishes toasts so other services can audit what users were told.
// Publish failures are logged and never reach the caller.
type KafkaNotifier struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

func NewKafkaNotifier(writer MessageWriter, topic string, logger *slog.Logger) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaNotifier{writer: writer, topic: topic, logger: logger}
}

func (k *KafkaNotifier) Notify(ctx context.Context, t Toast) {
	ev := Event{EventID: uuid.NewString(), Toast: t}
	payload, err := json.Marshal(ev)
	if err != nil {
		k.logger.Error("notification encode failed", "err", err)
		return
	}
	headers := kafkax.MetaHeaders(kafkax.EventMeta{EventID: ev.EventID, EventType: EventType})
	headers = kafkax.InjectTraceHeaders(ctx, headers)
	msg := kafka.Message{
		Topic:   k.topic,
		Key:     []byte(t.Op),
		Value:   payload,
		Headers: headers,
	}
	if err := k.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		k.logger.Warn("notification publish failed", "event_id", ev.EventID, "err", err)
	}
}
