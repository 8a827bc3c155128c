// Package config loads BlueWatt Core configuration from a YAML file,
// applies BLUEWATT_* environment overrides on top, fills defaults, and
// validates the result before anything else starts.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Secrets (the JWT signing key, broker passwords, InfluxDB tokens) belong
// in environment variables, not in the file. The JWT secret has no default
// and startup fails without it.
package config
