package bus

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBus publishes domain events to a Kafka topic, carrying the routing
// tags as message headers so subscribers can filter without decoding the
// payload.
type KafkaBus struct {
	brokers []string
	topic   string
	writer  *kafkago.Writer
	log     *zap.SugaredLogger
}

func NewKafkaBus(brokers []string, topic string, log *zap.SugaredLogger) *KafkaBus {
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaBus{brokers: brokers, topic: topic, writer: writer, log: log}
}

func (b *KafkaBus) Publish(ctx context.Context, ev Event) error {
	return b.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.DetailType),
		Value: ev.Detail,
		Time:  ev.Time,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(ev.Source)},
			{Key: "detail-type", Value: []byte(ev.DetailType)},
		},
	})
}

// Subscribe consumes the topic under a consumer group named after the
// subscription and applies the filter on the message headers.
func (b *KafkaBus) Subscribe(ctx context.Context, name string, filter Filter) (<-chan Event, error) {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  name,
		Topic:    b.topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})

	out := make(chan Event, 256)

	go func() {
		defer close(out)
		defer reader.Close()

		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				b.log.Errorw("Kafka read error", "subscriber", name, "error", err)
				continue
			}

			ev := Event{
				DetailType: string(msg.Key),
				Detail:     msg.Value,
				Time:       msg.Time,
			}
			for _, h := range msg.Headers {
				switch h.Key {
				case "source":
					ev.Source = string(h.Value)
				case "detail-type":
					ev.DetailType = string(h.Value)
				}
			}

			if !filter.Match(ev) {
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}
