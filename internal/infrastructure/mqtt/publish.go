package mqtt

// Publish sends a message to the given topic and waits for the broker's
// acknowledgment.
//
// The acknowledgment is raced against the configured publish timeout: if it
// does not arrive in time the call fails with a publish-timeout error, and a
// late acknowledgment is discarded. An empty topic is rejected with a
// validation error before the broker is touched.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	conn, err := c.connHandle()
	if err != nil {
		return err
	}
	if topic == "" {
		return errEmptyTopic(c.Name())
	}

	token := conn.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(c.publishTimeout) {
		return errTimeout(CodePublishTimeout, topic, c.publishTimeout.Milliseconds())
	}
	if err := token.Error(); err != nil {
		return errOperation(CodePublishFailed, topic, err)
	}

	return nil
}

// PublishString is a convenience method that publishes a string payload,
// not retained.
func (c *Client) PublishString(topic, payload string) error {
	return c.Publish(topic, []byte(payload), false)
}
