package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// resetBatchSize bounds how many places one reset message carries, keeping
// messages well under the broker's default size limit.
const resetBatchSize = 500

// KafkaWriter is the subset of *kafka.Writer the sink needs, kept small so
// tests can swap it out.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes catalog events to a topic, keyed by place id so
// changes to one place stay ordered within a partition.
type KafkaSink struct {
	writer KafkaWriter
	topic  string
}

// NewKafkaSink creates a sink writing to topic on broker.
func NewKafkaSink(broker, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Printf("[events] publishing to kafka topic=%s broker=%s", topic, broker)
	return NewKafkaSinkWithWriter(writer, topic)
}

// NewKafkaSinkWithWriter wraps an existing writer.
func NewKafkaSinkWithWriter(writer KafkaWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

func (s *KafkaSink) Deliver(ctx context.Context, event Event) error {
	var msgs []kafka.Message
	var err error
	if event.Type == TypeCatalogReset {
		msgs, err = resetMessages(event)
	} else {
		var msg kafka.Message
		msg, err = eventMessage(event, nil)
		msgs = []kafka.Message{msg}
	}
	if err != nil {
		return err
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// resetMessages splits a reset into batches of at most resetBatchSize places.
// Every batch shares the event id and the reset key, so the batches land on
// one partition in order.
func resetMessages(event Event) ([]kafka.Message, error) {
	batches := (len(event.Places) + resetBatchSize - 1) / resetBatchSize
	if batches == 0 {
		batches = 1
	}

	msgs := make([]kafka.Message, 0, batches)
	for i := 0; i < batches; i++ {
		end := (i + 1) * resetBatchSize
		if end > len(event.Places) {
			end = len(event.Places)
		}
		part := event
		part.Places = event.Places[i*resetBatchSize : end]

		msg, err := eventMessage(part, []kafka.Header{
			{Key: "batch", Value: []byte(strconv.Itoa(i + 1))},
			{Key: "batches", Value: []byte(strconv.Itoa(batches))},
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func eventMessage(event Event, extra []kafka.Header) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	key := string(event.Type)
	if event.Place != nil {
		key = event.Place.ID
	}

	headers := append([]kafka.Header{{Key: "event-type", Value: []byte(event.Type)}}, extra...)
	return kafka.Message{Key: []byte(key), Value: value, Headers: headers}, nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
