// Package mqtt provides MQTT broker connectivity for BlueWatt Core.
//
// It wraps paho.mqtt.golang with connection management, automatic
// reconnection with exponential backoff, subscription restoration after
// reconnect, and online/offline status publication with a Last Will.
//
// BlueWatt uses MQTT as an alternative ingestion transport for constrained
// deployments: devices publish telemetry and anomaly payloads to the
// bluewatt/ingest/# topics and the ingest bridge feeds them into the same
// pipeline as the HTTP endpoints.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.IngestPower(), 1, handlePower)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Message handlers run in separate goroutines and must not block.
package mqtt
