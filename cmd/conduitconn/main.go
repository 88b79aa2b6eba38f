// Conduit Connection - Device Connection Registry Service
//
// This is the main entry point for the Conduit Connection service. It
// hosts the device connection registry of the Conduit IoT messaging
// platform: the lookup service on the command-routing path that answers
// which protocol-adapter instance handles a device's commands and which
// gateway last acted on the device's behalf.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conduitiot/conduit-connection/internal/api"
	"github.com/conduitiot/conduit-connection/internal/cache"
	"github.com/conduitiot/conduit-connection/internal/cache/embedded"
	cacheredis "github.com/conduitiot/conduit-connection/internal/cache/redis"
	cachesqlite "github.com/conduitiot/conduit-connection/internal/cache/sqlite"
	"github.com/conduitiot/conduit-connection/internal/connection"
	"github.com/conduitiot/conduit-connection/internal/events"
	"github.com/conduitiot/conduit-connection/internal/health"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/config"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/influxdb"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/logging"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Conduit Connection",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the connection cache backend
	store, closeStore, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("opening cache backend: %w", err)
	}
	defer func() {
		log.Info("closing cache backend")
		if closeErr := closeStore(); closeErr != nil {
			log.Error("error closing cache backend", "error", closeErr)
		}
	}()
	log.Info("cache backend ready", "backend", cfg.Cache.Backend)

	// Initialise the connection registry
	registry := connection.NewRegistry(store)
	registry.SetLogger(log)
	registry.SetViaGatewaysThreshold(cfg.Registry.ViaGatewaysThreshold)

	// Connect to MQTT broker for connection events (optional)
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publisher := events.NewPublisher(mqttClient, byte(cfg.MQTT.QoS))
		publisher.SetLogger(log)
		registry.SetEvents(publisher)
	} else {
		log.Info("MQTT disabled, connection events off")
	}

	// Connect to InfluxDB for operation telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		registry.SetTelemetry(influxClient)
	} else {
		log.Info("InfluxDB disabled, operation telemetry off")
	}

	// Register readiness checks
	checks := health.NewRegistry()
	registry.RegisterReadinessChecks(checks)

	// Start the management API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Registry: registry,
		Health:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Cache backend

	log.Info("Conduit Connection stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CONDUIT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CONDUIT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openCache opens the configured cache backend and returns it together
// with its close function.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func() error, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		store, err := cacheredis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.CacheBackendSQLite:
		store, err := cachesqlite.Open(cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.CacheBackendEmbedded:
		return embedded.New(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
