// Campus Core - Smart Campus Monitoring Backend
//
// This is the main entry point for Campus Core, the access-controlled
// backend behind the campus monitoring dashboard. It serves the login
// and session API, user administration, the audit trail, and the live
// sensor feed ingested from MQTT into InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/netlabsug/campus-core/migrations"

	"github.com/netlabsug/campus-core/internal/api"
	"github.com/netlabsug/campus-core/internal/audit"
	"github.com/netlabsug/campus-core/internal/auth"
	"github.com/netlabsug/campus-core/internal/infrastructure/config"
	"github.com/netlabsug/campus-core/internal/infrastructure/database"
	"github.com/netlabsug/campus-core/internal/infrastructure/influxdb"
	"github.com/netlabsug/campus-core/internal/infrastructure/logging"
	"github.com/netlabsug/campus-core/internal/infrastructure/mqtt"
	"github.com/netlabsug/campus-core/internal/ingest"
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
	// Context cancels on interrupt signals (Ctrl+C, SIGTERM) for
	// graceful shutdown.
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
	log.Info("starting Campus Core",
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Wire the auth core
	store := auth.NewSQLiteStore(db.DB)
	recorder := audit.NewSQLiteRecorder(db.DB)

	if _, seedErr := auth.SeedAdmin(ctx, store, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	limiter := auth.NewLimiter(cfg.Auth.MaxFailedAttempts, cfg.Auth.LockoutDurationD(), nil)
	sessions := auth.NewManager(cfg.Auth.SessionIdleTimeoutD(), nil)
	authService := auth.NewService(store, limiter, sessions, recorder, log.Logger, nil, cfg.Auth.MinPasswordLength)

	// Re-arm lockouts that were active before the last shutdown.
	if seedErr := authService.SeedLimiter(ctx); seedErr != nil {
		return fmt.Errorf("restoring lockout state: %w", seedErr)
	}
	log.Info("auth service initialised",
		"max_failed_attempts", cfg.Auth.MaxFailedAttempts,
		"lockout_duration", cfg.Auth.LockoutDurationD().String(),
		"session_idle_timeout", cfg.Auth.SessionIdleTimeoutD().String(),
	)

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Auth:    cfg.Auth,
		Logger:  log,
		Service: authService,
		Sensors: influxClient,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Connect to MQTT and start sensor ingest (optional, needs InfluxDB)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled && influxClient != nil {
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		ingestService := ingest.New(mqttClient, influxClient, log.Logger)
		ingestService.OnReading = func(r ingest.Reading) {
			if hub := server.Hub(); hub != nil {
				hub.Broadcast(api.ChannelSensorReading, r)
			}
		}
		if startErr := ingestService.Start(); startErr != nil {
			return fmt.Errorf("starting sensor ingest: %w", startErr)
		}
	} else {
		log.Info("sensor ingest disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. MQTT (if enabled)
	// 2. API server
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("Campus Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CAMPUSCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CAMPUSCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
