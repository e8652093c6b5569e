package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Matcher decides whether a decoded record answers a wait query.
type Matcher func(Record) bool

// WaitForMessage blocks until a record matching matcher arrives on any of the
// client's tracked topics, or the timeout elapses.
//
// The query never disturbs the durable consumer: it runs on an ephemeral
// consumer group whose id is derived from the durable group id plus a
// uniqueness token, and the ephemeral session is torn down inside this call
// on every path. The first matching record resolves the call; no later record
// is considered. A timeout, or any internal failure standing up the ephemeral
// consumer, resolves to nil: this operation is a best-effort query and never
// surfaces broker errors. The only returned error is the initialization
// guard.
//
// A non-positive timeout defaults to 30 seconds.
func (c *Client) WaitForMessage(ctx context.Context, matcher Matcher, timeout time.Duration) (*Record, error) {
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	c.mu.Lock()
	brokers := make([]string, len(c.brokers))
	copy(brokers, c.brokers)
	topics := make([]string, len(c.topics))
	copy(topics, c.topics)
	groupID := c.groupID
	c.mu.Unlock()

	ephemeralID := fmt.Sprintf("%s-probe-%s", groupID, uuid.NewString())

	group, err := newStandaloneGroup(brokers, ephemeralID, c.saramaConfig())
	if err != nil {
		c.log.Warn("ephemeral consumer connect failed", "group_id", ephemeralID, "error", err)
		return nil, nil
	}
	defer closeQuietly(group.Close, c.log, "closing ephemeral consumer group")

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(chan Record, 1)
	failed := make(chan struct{})
	h := &matchHandler{matcher: matcher, found: found}

	go func() {
		for {
			if err := group.Consume(waitCtx, topics, h); err != nil {
				if waitCtx.Err() == nil {
					c.log.Warn("ephemeral consumer failed", "group_id", ephemeralID, "error", err)
					close(failed)
				}
				return
			}
			if waitCtx.Err() != nil {
				return
			}
		}
	}()

	select {
	case rec := <-found:
		return &rec, nil
	case <-failed:
		return nil, nil
	case <-waitCtx.Done():
		return nil, nil
	}
}

// matchHandler feeds the first matching record into found and stops its claim.
type matchHandler struct {
	matcher Matcher
	found   chan Record
}

func (h *matchHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *matchHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *matchHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		rec, ok := decodeRecord(msg)
		sess.MarkMessage(msg, "")
		if !ok {
			continue
		}
		if h.matcher(rec) {
			// Buffered; a concurrent claim that also matched simply drops its
			// record; only the first match is considered.
			select {
			case h.found <- rec:
			default:
			}
			return nil
		}
	}
	return nil
}
