// Garage Core - scheduled garage door command dispatcher.
//
// This is the main entry point. The core accepts door commands over an
// authenticated REST API, fires stored cron schedules, delivers every
// command to a single door controller and records delivered commands in
// a per-user execution log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata" // scheduler timezone must resolve on minimal images

	_ "github.com/nerrad567/garage-core/migrations"

	"github.com/nerrad567/garage-core/internal/api"
	"github.com/nerrad567/garage-core/internal/audit"
	"github.com/nerrad567/garage-core/internal/auth"
	"github.com/nerrad567/garage-core/internal/devicelink"
	"github.com/nerrad567/garage-core/internal/dispatch"
	"github.com/nerrad567/garage-core/internal/infrastructure/config"
	"github.com/nerrad567/garage-core/internal/infrastructure/database"
	"github.com/nerrad567/garage-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/garage-core/internal/infrastructure/logging"
	"github.com/nerrad567/garage-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/garage-core/internal/schedule"
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

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Garage Core",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving scheduler timezone: %w", err)
	}

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

	healthChecks := map[string]api.HealthChecker{"database": db}

	// InfluxDB (optional)
	var telemetry audit.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		telemetry = influxClient
		healthChecks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Accounts
	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.Bootstrap(ctx, users, cfg.Security.BootstrapAdmin, log.With("component", "auth").Logger); seedErr != nil {
		return fmt.Errorf("bootstrapping admin: %w", seedErr)
	}
	authService := auth.NewService(users, cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.AccessTokenTTL)*time.Minute)

	// Device link
	var (
		link         devicelink.Link
		deviceSocket *devicelink.SocketLink
		mqttReporter api.ConnectionReporter
	)
	switch cfg.Device.Transport {
	case config.TransportMQTT:
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
		)

		mqttLink := devicelink.NewMQTTLink(mqttClient, cfg.Device.CommandTopic, byte(cfg.MQTT.QoS)) //nolint:gosec // qos validated 0-2
		mqttLink.SetLogger(log.With("component", "devicelink"))
		if cfg.Device.StatusTopic != "" {
			if watchErr := mqttLink.WatchStatus(cfg.Device.StatusTopic); watchErr != nil {
				log.Warn("controller status topic not watched", "topic", cfg.Device.StatusTopic, "error", watchErr)
			}
		}
		link = mqttLink
		mqttReporter = mqttClient
		healthChecks["mqtt"] = mqttClient
	default:
		deviceSocket = devicelink.NewSocketLink()
		deviceSocket.SetLogger(log.With("component", "devicelink"))
		link = deviceSocket
	}
	log.Info("device link ready", "transport", cfg.Device.Transport)

	// Execution log and dispatch
	sink := audit.NewSink(audit.NewSQLiteRepository(db.DB), telemetry)
	facade := dispatch.New(link, sink)
	facade.SetLogger(log.With("component", "dispatch"))

	// Schedules
	scheduleRepo := schedule.NewSQLiteRepository(db.DB)
	registry := schedule.NewRegistry(scheduleRepo, users, facade, schedule.Options{
		Location:    loc,
		FireTimeout: cfg.GetFireTimeout(),
		CronLogger:  logging.CronLogger(log),
	})
	registry.SetLogger(log.With("component", "schedule"))
	if startErr := registry.Start(ctx); startErr != nil {
		return fmt.Errorf("starting schedule registry: %w", startErr)
	}
	defer func() {
		log.Info("stopping schedule registry")
		registry.Stop()
	}()

	scheduleService := schedule.NewService(scheduleRepo, registry)

	// HTTP API
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Device:       cfg.Device,
		Security:     cfg.Security,
		Logger:       log.With("component", "api"),
		Auth:         authService,
		Dispatcher:   facade,
		Logs:         sink,
		Schedules:    scheduleService,
		Jobs:         registry,
		DeviceSocket: deviceSocket,
		DB:           db,
		MQTT:         mqttReporter,
		HealthChecks: healthChecks,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, healthChecks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API server, schedule registry,
	// MQTT (if used), InfluxDB (if enabled), database.

	log.Info("Garage Core stopped")
	return nil
}

// getConfigPath returns GARAGE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("GARAGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every infrastructure connection in checks.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, checker := range checks {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
