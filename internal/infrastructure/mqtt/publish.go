package mqtt

import "fmt"

// Outbound payloads are capped well above anything BlueWatt publishes;
// the limit guards against a runaway caller, not normal traffic.
const maxPayloadSize = 1 << 20

// Publish sends a message to the given topic and waits for completion.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload exceeds %d bytes", ErrPublishFailed, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: publish to %s timed out", ErrTimeout, topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, token.Error())
	}
	return nil
}

// PublishString sends a string payload at the client's default QoS.
func (c *Client) PublishString(topic, payload string) error {
	return c.Publish(topic, c.qos, false, []byte(payload))
}
