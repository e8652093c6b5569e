package mqtt

// Subscribe opens broker-side subscriptions for the given topics at the
// configured QoS, racing the subscription acknowledgment against the
// configured subscribe timeout.
//
// An empty topic list, or any empty topic within it, is rejected with a
// validation error. Subscribing to an already-subscribed topic is a no-op.
func (c *Client) Subscribe(topics ...string) error {
	conn, err := c.connHandle()
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return errEmptyTopic(c.Name())
	}

	c.mu.Lock()
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		if topic == "" {
			c.mu.Unlock()
			return errEmptyTopic(c.Name())
		}
		if _, ok := c.subs[topic]; ok {
			continue
		}
		filters[topic] = c.qos
	}
	c.mu.Unlock()

	if len(filters) == 0 {
		return nil
	}

	// Messages route to the connection's default handler, which feeds the
	// waiter registry.
	token := conn.SubscribeMultiple(filters, nil)
	if !token.WaitTimeout(c.subscribeTimeout) {
		return errTimeout(CodeSubscribeTimeout, "", c.subscribeTimeout.Milliseconds())
	}
	if err := token.Error(); err != nil {
		return errOperation(CodeSubscribeFailed, "", err)
	}

	c.mu.Lock()
	for topic := range filters {
		c.subs[topic] = struct{}{}
	}
	c.mu.Unlock()

	return nil
}

// Unsubscribe removes broker-side subscriptions for the given topics.
//
// It does not clear waiter registry entries: those are owned by the calls
// that registered them and are removed when they fire or time out.
func (c *Client) Unsubscribe(topics ...string) error {
	conn, err := c.connHandle()
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return errEmptyTopic(c.Name())
	}
	for _, topic := range topics {
		if topic == "" {
			return errEmptyTopic(c.Name())
		}
	}

	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	token := conn.Unsubscribe(topics...)
	if !token.WaitTimeout(c.subscribeTimeout) {
		return errTimeout(CodeUnsubscribeTimeout, "", c.subscribeTimeout.Milliseconds())
	}
	if err := token.Error(); err != nil {
		return errOperation(CodeUnsubscribeFailed, "", err)
	}

	return nil
}

// HasSubscription reports whether an exact-topic broker subscription exists.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}
