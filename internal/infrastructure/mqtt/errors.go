package mqtt

import "errors"

var (
	// ErrNotConnected indicates the client is not connected to the broker.
	ErrNotConnected = errors.New("not connected to MQTT broker")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("failed to connect to MQTT broker")

	// ErrPublishFailed indicates a publish operation did not complete.
	ErrPublishFailed = errors.New("failed to publish message")

	// ErrSubscribeFailed indicates a subscribe operation did not complete.
	ErrSubscribeFailed = errors.New("failed to subscribe to topic")

	// ErrUnsubscribeFailed indicates an unsubscribe operation did not complete.
	ErrUnsubscribeFailed = errors.New("failed to unsubscribe from topic")

	// ErrInvalidQoS indicates a QoS level outside 0-2.
	ErrInvalidQoS = errors.New("invalid QoS level")

	// ErrInvalidTopic indicates an empty or malformed topic.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)
