package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// SendMessage publishes one record and returns the broker's acknowledgment.
//
// An empty topic is rejected with a validation error before the producer is
// touched. When the broker acknowledgment carries no usable offset, a
// synthetic offset is derived from the current clock so Ack.Offset is always
// meaningful. Producer failures are wrapped with a producer-domain structured
// error and are never retried here; callers that want retries wrap the call
// with the retry package.
func (c *Client) SendMessage(topic string, value []byte, key string) (*Ack, error) {
	producer, err := c.producerHandle()
	if err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, errEmptyTopic(c.Name())
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := producer.SendMessage(msg)
	if err != nil {
		return nil, errProducer(topic, err)
	}

	if offset < 0 {
		offset = time.Now().UnixMilli()
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Ack{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Timestamp: ts,
	}, nil
}

// producerHandle returns the live producer under the state guard. Destroy
// marks the client destroyed before it nulls handles, so a nil error here
// implies a non-nil producer.
func (c *Client) producerHandle() (sarama.SyncProducer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	return c.producer, nil
}
