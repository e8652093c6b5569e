package mqtt

import (
	"context"
	"time"
)

// WaitForMessage blocks until a message arrives on exactly topic, or the
// timeout elapses.
//
// The client subscribes to the topic if it is not already subscribed, then
// registers a one-shot waiter. Three outcomes race: the waiter firing
// (payload returned as a string, ok=true), the timeout elapsing, or the
// context being cancelled (ok=false for both). On every outcome the waiter is
// removed from the registry, so repeated waits on the same topic never grow
// it.
//
// A non-positive timeout defaults to 30 seconds.
func (c *Client) WaitForMessage(ctx context.Context, topic string, timeout time.Duration) (string, bool, error) {
	if err := c.EnsureInitialized(); err != nil {
		return "", false, err
	}
	if topic == "" {
		return "", false, errEmptyTopic(c.Name())
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	if !c.HasSubscription(topic) {
		if err := c.Subscribe(topic); err != nil {
			return "", false, err
		}
	}

	w := c.addWaiter(topic)
	defer c.removeWaiter(topic, w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-w.ch:
		return string(payload), true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, nil
	}
}

// addWaiter registers a one-shot waiter for the topic.
func (c *Client) addWaiter(topic string) *waiter {
	w := &waiter{ch: make(chan []byte, 1)}
	c.mu.Lock()
	c.waiters[topic] = append(c.waiters[topic], w)
	c.mu.Unlock()
	return w
}

// removeWaiter deletes the waiter from the topic's list, dropping the topic
// key when the list empties. Removal is idempotent: a waiter already removed
// by dispatch is left alone, so a waiter is removed exactly once.
func (c *Client) removeWaiter(topic string, w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.waiters[topic]
	for i, candidate := range current {
		if candidate == w {
			current = append(current[:i], current[i+1:]...)
			break
		}
	}
	if len(current) == 0 {
		delete(c.waiters, topic)
		return
	}
	c.waiters[topic] = current
}

// waiterCount returns the number of registered waiters for a topic.
// Used by tests to assert the registry never leaks.
func (c *Client) waiterCount(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters[topic])
}
