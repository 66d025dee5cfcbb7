// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bus implements the message-bus adapter: a synchronous Kafka
// publish with a 10-second acknowledgement ceiling (spec.md section 4.3).
//
// Feature: ADAPTER_BUS
// Spec: spec.md section 4.3 (Message-Bus Adapter)
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"sagaflow/pkg/saga"
)

// AckTimeout is the ceiling on synchronous broker acknowledgement (spec.md
// section 4.3).
const AckTimeout = 10 * time.Second

// Publisher is a saga.BusPublisher backed by a sarama SyncProducer.
type Publisher struct {
	producer sarama.SyncProducer
}

// New constructs a Publisher connected to brokers. The producer requires
// acks from all in-sync replicas before SendMessage returns, matching the
// "synchronously await broker acknowledgement" contract.
func New(brokers []string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Timeout = AckTimeout

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}
	return &Publisher{producer: producer}, nil
}

// NewWithProducer wraps an existing SyncProducer, primarily for tests.
func NewWithProducer(producer sarama.SyncProducer) *Publisher {
	return &Publisher{producer: producer}
}

// Close releases the underlying producer. The `run` and `serve` commands
// construct one Publisher per process, share it across every execution that
// process runs, and close it when the command returns; a Publisher is not
// created or closed per execution.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// Publish encodes value as JSON and publishes it to topic, returning the
// partition and offset the broker acknowledged. An empty key publishes with
// no partition key (spec.md section 4.3: "may be empty -> null key").
func (p *Publisher) Publish(ctx context.Context, topic, key string, headers map[string]string, value any) (saga.BusAck, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return saga.BusAck{}, fmt.Errorf("encode message value: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(encoded),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	for name, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(v)})
	}

	done := make(chan error, 1)
	var partition int32
	var offset int64

	go func() {
		var sendErr error
		partition, offset, sendErr = p.producer.SendMessage(msg)
		done <- sendErr
	}()

	select {
	case <-ctx.Done():
		return saga.BusAck{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return saga.BusAck{}, fmt.Errorf("publish: %w", err)
		}
		return saga.BusAck{Partition: partition, Offset: offset}, nil
	case <-time.After(AckTimeout):
		return saga.BusAck{}, fmt.Errorf("publish: ack timeout after %s", AckTimeout)
	}
}
