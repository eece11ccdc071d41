// HomeLink Core - Smart Home Integration Backend
//
// This is the main entry point for the HomeLink Core application.
// HomeLink Core connects voice assistants to MQTT devices:
//   - Alexa Smart Home directive handling (discovery, power, rename)
//   - OAuth2 account linking with email-verified accounts
//   - MQTT command dispatch and state reconciliation
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/homelinklabs/homelink-core/migrations"

	"github.com/homelinklabs/homelink-core/internal/alexa"
	"github.com/homelinklabs/homelink-core/internal/api"
	"github.com/homelinklabs/homelink-core/internal/audit"
	"github.com/homelinklabs/homelink-core/internal/auth"
	"github.com/homelinklabs/homelink-core/internal/device"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/config"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/database"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/influxdb"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/logging"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/metrics"
	"github.com/homelinklabs/homelink-core/internal/infrastructure/mqtt"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HomeLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load .env if present; real environment always wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env file", "error", err)
	}

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

	// Register Prometheus collectors before anything can increment them.
	metrics.Init()

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

	// Device registry and command dispatch
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)

	// Connect to MQTT broker
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
	mqttClient.SetLogger(log)
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

	dispatcher := device.NewDispatcher(deviceRegistry, mqttClient)
	dispatcher.SetLogger(log)

	// State reconciler folds device reports back into the registry.
	reconciler := device.NewReconciler(deviceRegistry, mqttClient)
	reconciler.SetLogger(log)
	if startErr := reconciler.Start(ctx); startErr != nil {
		return fmt.Errorf("starting state reconciler: %w", startErr)
	}
	defer func() {
		log.Info("stopping state reconciler")
		reconciler.Stop()
	}()
	log.Info("state reconciler started")

	// Connect to InfluxDB and record device telemetry (optional)
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

		telemetry := device.NewTelemetrySink(mqttClient, influxClient)
		telemetry.SetLogger(log)
		if startErr := telemetry.Start(); startErr != nil {
			return fmt.Errorf("starting telemetry sink: %w", startErr)
		}
		defer func() {
			log.Info("stopping telemetry sink")
			telemetry.Stop()
		}()
		log.Info("telemetry sink started")
	} else {
		log.Info("InfluxDB disabled")
	}

	// Account and token service
	authService, err := buildAuthService(db, cfg, log)
	if err != nil {
		return fmt.Errorf("building auth service: %w", err)
	}

	// Alexa directive adapter
	adapter := alexa.NewAdapter(deviceRegistry, dispatcher, authService)
	adapter.SetLogger(log)

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log,
		Auth:       authService,
		Registry:   deviceRegistry,
		Dispatcher: dispatcher,
		Alexa:      adapter,
		Audit:      audit.NewSQLiteRepository(db.DB),
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Telemetry sink and InfluxDB (if enabled)
	// 3. State reconciler
	// 4. MQTT
	// 5. Database

	log.Info("HomeLink Core stopped")
	return nil
}

// buildAuthService wires the account service from configuration.
func buildAuthService(db *database.DB, cfg *config.Config, log *logging.Logger) (*auth.Service, error) {
	var mailer auth.Mailer
	if cfg.SMTP.Enabled {
		mailer = auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			BaseURL:  cfg.Auth.BaseURL,
		})
		log.Info("SMTP mailer enabled", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	} else {
		mailer = auth.NoopMailer{}
		log.Warn("SMTP disabled, verification and reset mails will not be sent")
	}

	clients := make([]auth.Client, 0, len(cfg.Auth.Clients))
	for _, c := range cfg.Auth.Clients {
		clients = append(clients, auth.Client{
			ID:           c.ID,
			Secret:       c.Secret,
			RedirectURIs: c.RedirectURIs,
		})
	}

	service := auth.NewService(
		auth.NewUserRepository(db.DB),
		auth.NewTokenRepository(db.DB),
		auth.NewCodeRepository(db.DB),
		auth.NewEmailTokenRepository(db.DB),
		mailer,
		auth.Settings{
			JWTSecret:       cfg.Auth.JWT.Secret,
			AccessTokenTTL:  cfg.Auth.AccessTokenTTL(),
			RefreshTokenTTL: cfg.Auth.RefreshTokenTTL(),
			Clients:         clients,
		},
	)
	service.SetLogger(log)
	return service, nil
}

// getConfigPath returns the configuration file path.
// Uses HOMELINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// InfluxDB is optional
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
