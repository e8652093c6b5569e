package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// Record is a decoded log-broker record handed to consume callbacks and
// returned by WaitForMessage. Records are never mutated after construction.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       string
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte
}

// Ack describes the broker's acknowledgment of a published record.
type Ack struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// decodeRecord converts a raw consumer message into a Record.
//
// Records with an empty value are skipped (ok=false). The key is converted to
// a string, header values are coerced to byte buffers, and a missing broker
// timestamp defaults to the current time.
func decodeRecord(msg *sarama.ConsumerMessage) (Record, bool) {
	if len(msg.Value) == 0 {
		return Record{}, false
	}

	rec := Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if len(msg.Headers) > 0 {
		rec.Headers = make(map[string][]byte, len(msg.Headers))
		for _, h := range msg.Headers {
			if h == nil || len(h.Key) == 0 {
				continue
			}
			rec.Headers[string(h.Key)] = h.Value
		}
	}

	return rec, true
}
