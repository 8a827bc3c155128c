// BlueWatt Core - Power Telemetry Platform
//
// This is the main entry point for the BlueWatt Core service. It accepts
// telemetry from ESP32 power-monitoring devices over HTTP and MQTT,
// maintains per-device relay state, and fans anomaly notifications out to
// connected viewers over SSE and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/bluewatt/bluewatt-core/migrations"

	"github.com/bluewatt/bluewatt-core/internal/api"
	"github.com/bluewatt/bluewatt-core/internal/auth"
	"github.com/bluewatt/bluewatt-core/internal/bridges/mqttingest"
	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/database"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/influxdb"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/mqtt"
	"github.com/bluewatt/bluewatt-core/internal/relaylog"
	"github.com/bluewatt/bluewatt-core/internal/stream"
	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BlueWatt Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	devices := device.NewRepository(db.DB)
	users := auth.NewUserRepository(db.DB)
	secrets := auth.NewSecretRepository(db.DB)
	readings := telemetry.NewReadingRepository(db.DB)
	events := telemetry.NewEventRepository(db.DB)

	resolver := auth.NewResolver(secrets, devices, log)
	fanout := stream.NewRegistry(log)

	// InfluxDB mirror (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// A typed nil must not reach the interface field.
	var metrics telemetry.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
	}

	ingestor := telemetry.NewIngestor(devices, readings, events, fanout, metrics, log)
	ingestor.SetRelayLog(relaylog.NewRepository(db.DB))

	// Demo seed: no-op on a database that already has users
	if _, seedErr := auth.SeedDemo(ctx, users, devices, secrets, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding demo data: %w", seedErr)
	}

	// MQTT ingest bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, bridgeErr := mqttingest.New(mqttClient, resolver, ingestor, log)
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT ingest bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT ingest bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT ingest bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("MQTT ingest bridge disabled")
	}

	// HTTP API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Stream:   cfg.Stream,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Resolver: resolver,
		Devices:  devices,
		Ingestor: ingestor,
		Fanout:   fanout,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (drains live streams)
	// 2. MQTT ingest bridge and client (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("BlueWatt Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BLUEWATT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLUEWATT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
