package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ecoStepAPI/pkg/logger"
)

// Producer writes JSON events to one Kafka topic keyed by user id, so a
// user's events stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    10,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn().Err(err).Int("messages", len(messages)).Msg("failed to deliver events")
			}
		},
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, evs ...Event) error {
	if len(evs) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		data, err := Encode(ev)
		if err != nil {
			return err
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(ev.UserID),
			Value: data,
			Time:  ev.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", ev.Type, err)
	}
	return data, nil
}
