// Package logging provides structured logging for BlueWatt Core, built on
// log/slog. Every record carries the service name and version, and the
// handler format, output, and level come from the logging section of
// config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components derive a tagged child logger at construction:
//
//	log := logger.With("component", "ingest")
//	log.Info("reading stored", "device_id", dev.ID)
//
// Device secrets, tokens, and password hashes must never appear in log
// output, not even at debug level. Log identifiers instead.
package logging
