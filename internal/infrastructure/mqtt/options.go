package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	maxQoS = 2
)

// buildClientOptions translates BlueWatt configuration into paho client
// options.
func buildClientOptions(cfg config.MQTTConfig) (*pahomqtt.ClientOptions, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQoS, cfg.QoS)
	}

	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean sessions keep broker state small; subscriptions are restored
	// from the client's own tracking after reconnect.
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Reconnect.InitialDelay > 0 {
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	}
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	configureLWT(opts, cfg.Broker.ClientID)

	return opts, nil
}

// configureLWT registers a retained Last Will so consumers learn the
// service dropped off the broker without a graceful shutdown.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload, err := json.Marshal(statusPayload{
		Status:    "offline",
		ClientID:  clientID,
		Graceful:  false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	opts.SetWill(Topics{}.SystemStatus(), string(payload), 1, true)
}

// statusPayload is published to the system status topic on connect,
// graceful shutdown, and as the Last Will.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Graceful  bool   `json:"graceful,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildOnlinePayload(clientID string) []byte {
	payload, _ := json.Marshal(statusPayload{ //nolint:errcheck // fixed struct cannot fail to marshal
		Status:    "online",
		ClientID:  clientID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}

func buildOfflinePayload(clientID string) []byte {
	payload, _ := json.Marshal(statusPayload{ //nolint:errcheck // fixed struct cannot fail to marshal
		Status:    "offline",
		ClientID:  clientID,
		Graceful:  true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}
