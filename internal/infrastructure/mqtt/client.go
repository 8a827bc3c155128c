package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
)

// Logger is the minimal logging surface the client needs. It is satisfied
// by *logging.Logger.
type Logger interface {
	Error(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// MessageHandler processes an inbound message. A returned error is logged;
// the message is not redelivered.
type MessageHandler func(topic string, payload []byte) error

// Client wraps a paho MQTT client with subscription tracking so handlers
// survive reconnects.
type Client struct {
	paho     pahomqtt.Client
	clientID string
	qos      byte

	mu            sync.RWMutex
	subscriptions map[string]subscription
	connected     bool

	logger       Logger
	onConnect    func()
	onDisconnect func(error)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect establishes a connection to the configured broker. It blocks
// until connected or the connect timeout elapses.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		clientID:      cfg.Broker.ClientID,
		qos:           byte(cfg.QoS),
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(c.handleDisconnect)

	c.paho = pahomqtt.NewClient(opts)

	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: connect timed out after %s", ErrConnectionFailed, defaultConnectTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, token.Error())
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// Close publishes a graceful offline status and disconnects, allowing
// in-flight messages up to one second to complete.
func (c *Client) Close() error {
	if c.paho != nil && c.paho.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), 1, true, buildOfflinePayload(c.clientID))
		token.WaitTimeout(defaultPublishTimeout)
		c.paho.Disconnect(1000)
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is alive.
func (c *Client) HealthCheck() error {
	if c.paho == nil || !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnectionOpen()
}

// QoS returns the configured default quality of service level.
func (c *Client) QoS() byte {
	return c.qos
}

// SetLogger installs a logger for handler and restore failures.
func (c *Client) SetLogger(l Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

// SetOnConnect installs a callback invoked after every successful connect,
// including reconnects.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// SetOnDisconnect installs a callback invoked when the connection drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *Client) handleConnect(_ pahomqtt.Client) {
	c.mu.Lock()
	c.connected = true
	onConnect := c.onConnect
	c.mu.Unlock()

	c.restoreSubscriptions()
	c.publishOnlineStatus()

	if onConnect != nil {
		onConnect()
	}
}

func (c *Client) handleDisconnect(_ pahomqtt.Client, err error) {
	c.mu.Lock()
	c.connected = false
	onDisconnect := c.onDisconnect
	logger := c.logger
	c.mu.Unlock()

	if logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	if onDisconnect != nil {
		onDisconnect(err)
	}
}

// restoreSubscriptions re-subscribes every tracked topic. Clean sessions
// drop broker-side state on disconnect, so this runs after each connect.
func (c *Client) restoreSubscriptions() {
	c.mu.RLock()
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, sub := range c.subscriptions {
		subs[topic] = sub
	}
	logger := c.logger
	c.mu.RUnlock()

	for topic, sub := range subs {
		token := c.paho.Subscribe(topic, sub.qos, c.wrapHandler(topic, sub.handler))
		if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
			if logger != nil {
				logger.Error("failed to restore MQTT subscription", "topic", topic, "error", token.Error())
			}
		}
	}
}

func (c *Client) publishOnlineStatus() {
	token := c.paho.Publish(Topics{}.SystemStatus(), 1, true, buildOnlinePayload(c.clientID))
	token.WaitTimeout(defaultPublishTimeout)
}

// wrapHandler adapts a MessageHandler to paho's callback signature and
// recovers panics so a bad payload cannot kill the paho router goroutine.
func (c *Client) wrapHandler(topic string, handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.mu.RLock()
				logger := c.logger
				c.mu.RUnlock()
				if logger != nil {
					logger.Error("panic in MQTT message handler", "topic", topic, "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.mu.RLock()
			logger := c.logger
			c.mu.RUnlock()
			if logger != nil {
				logger.Error("MQTT message handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
