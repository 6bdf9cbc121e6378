package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes signals to a Kafka topic. Each record carries a JSON
// envelope keyed by signal kind so consumers can partition by event type.
type Kafka struct {
	client *kgo.Client
}

type envelope struct {
	Kind      Kind      `json:"kind"`
	EmittedAt time.Time `json:"emitted_at"`
	Payload   Signal    `json:"payload"`
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client}, nil
}

func (k *Kafka) Emit(ctx context.Context, signal Signal) error {
	value, err := json.Marshal(envelope{
		Kind:      signal.Kind(),
		EmittedAt: time.Now().UTC(),
		Payload:   signal,
	})
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(signal.Kind()),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce signal: %w", err)
	}
	return nil
}

func (k *Kafka) Close() {
	k.client.Close()
}
