package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// Handler receives decoded records from the durable consume loop.
// Invocations are serialized: records from the same consumer are never
// handled concurrently or out of delivery order.
type Handler func(Record)

// Subscribe adds topics to the client's tracked topic set, optionally moving
// the durable consumer to a new group.
//
// When groupID differs from the current group, the replacement group handle
// is created first: a builder failure leaves the old consumer fully intact.
// Only then is the running consume loop stopped and the old group closed.
// A group handle does not consume until ConsumeMessages, so there is never a
// window with two live consumers under the client's public state. The tracked
// topic set becomes the deduplicated union of the previous and new topics.
func (c *Client) Subscribe(topics []string, groupID string) error {
	if len(topics) == 0 {
		return errMissingTopics(c.Name())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.EnsureInitialized(); err != nil {
		return err
	}

	if groupID != "" && groupID != c.groupID {
		group, err := newGroupFromClient(groupID, c.broker)
		if err != nil {
			return errConsumer(groupID, err)
		}

		if c.consumeCancel != nil {
			c.consumeCancel()
			c.consumeCancel = nil
		}
		if c.group != nil {
			closeQuietly(c.group.Close, c.log, "closing consumer group on group switch")
		}
		c.group = group
		c.groupID = groupID
	}

	c.topics = dedupe(append(c.topics, topics...))
	return nil
}

// ConsumeMessages starts the durable consumer's run loop.
//
// Every inbound record with a non-empty value is decoded and handed to
// handler sequentially. When timeout is positive the loop stops after that
// delay; otherwise it runs until the client is destroyed. The loop runs in
// the background; delivery errors are logged.
func (c *Client) ConsumeMessages(ctx context.Context, handler Handler, timeout time.Duration) error {
	c.mu.Lock()
	if err := c.EnsureInitialized(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.consumeCancel != nil {
		c.mu.Unlock()
		return errAlreadyConsuming(c.Name())
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	c.consumeCancel = cancel

	group := c.group
	groupID := c.groupID
	topics := make([]string, len(c.topics))
	copy(topics, c.topics)
	c.mu.Unlock()

	go func() {
		defer cancel()
		h := &groupHandler{handler: handler}
		for {
			// Consume returns on rebalance; loop to rejoin until cancelled.
			if err := group.Consume(runCtx, topics, h); err != nil {
				if runCtx.Err() == nil {
					c.log.Warn("consume loop failed", "group_id", groupID, "error", err)
				}
				return
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

// StopConsuming stops a running consume loop, if any.
func (c *Client) StopConsuming() {
	c.mu.Lock()
	cancel := c.consumeCancel
	c.consumeCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// groupHandler adapts a Handler to the consumer-group session contract.
type groupHandler struct {
	handler Handler

	// mu serializes handler invocations across partition claims.
	mu sync.Mutex
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		rec, ok := decodeRecord(msg)
		sess.MarkMessage(msg, "")
		if !ok {
			continue
		}
		h.mu.Lock()
		h.handler(rec)
		h.mu.Unlock()
	}
	return nil
}
