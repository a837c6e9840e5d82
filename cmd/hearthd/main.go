// Hearth Core - Home Automation Controller
//
// This is the main entry point for the Hearth Core daemon. Hearth runs
// a declarative schedule table against live device state: once a
// minute it takes a snapshot of every device reporting over MQTT,
// evaluates each schedule's triggers, and issues on/off commands for
// the ones that fire.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hearth-automation/hearth-core/migrations"

	"github.com/hearth-automation/hearth-core/internal/api"
	"github.com/hearth-automation/hearth-core/internal/audit"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/config"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/database"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-automation/hearth-core/internal/presence"
	"github.com/hearth-automation/hearth-core/internal/schedule"
	"github.com/hearth-automation/hearth-core/internal/state"
	"github.com/hearth-automation/hearth-core/internal/suntimes"
	"github.com/hearth-automation/hearth-core/internal/telemetry"
	"github.com/hearth-automation/hearth-core/internal/timespec"
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
	log.Info("starting Hearth Core",
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

	// Connect to InfluxDB (optional)
	var telemetryClient *telemetry.Client
	if cfg.InfluxDB.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		telemetryClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Sun times for the site
	sun, err := suntimes.New(suntimes.Config{
		Latitude:     cfg.Site.Location.Latitude,
		Longitude:    cfg.Site.Location.Longitude,
		Timezone:     cfg.Site.Timezone,
		LampOnOffset: cfg.Site.Sun.LampOnOffset,
		LampOff:      cfg.Site.Sun.LampOff,
	})
	if err != nil {
		return fmt.Errorf("initialising sun times: %w", err)
	}
	resolver := &timespec.Resolver{Sun: sun}

	// WebSocket hub, created early so state changes can be relayed
	wsHub := api.NewHub(cfg.WebSocket, log)
	go wsHub.Run(ctx)

	// Device state hub over MQTT
	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- QoS validated 0-2 by config
	stateHub := state.NewHub(mqttClient, qos, log)
	stateHub.OnChange(wsHub.BroadcastDeviceState)
	if err := stateHub.Start(); err != nil {
		return fmt.Errorf("subscribing to device state: %w", err)
	}
	log.Info("device state hub started")

	// Schedule store
	store := schedule.NewStore(cfg.Schedules.Path, resolver, log)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}
	log.Info("schedules loaded",
		"path", cfg.Schedules.Path,
		"schedules", len(store.Names()),
	)
	logScheduleTimes(store, log)

	// Presence prober for dotted-quad triggers
	prober := presence.NewProber(time.Duration(cfg.Presence.Timeout)*time.Second, log)

	// Scheduler loop
	scheduler := schedule.NewScheduler(store, stateHub, stateHub, resolver, prober.HostIsUp, schedule.Config{
		Interval:       cfg.GetTickInterval(),
		FetchTimeout:   time.Duration(cfg.Schedules.FetchTimeout) * time.Second,
		ActuateTimeout: time.Duration(cfg.Schedules.ActuateTimeout) * time.Second,
	}, log)

	// Action sinks: SQLite action log, MQTT event fan-out, WebSocket
	// broadcast, and telemetry when enabled.
	actionRepo := audit.NewSQLiteRepository(db.DB)
	actionSink := audit.NewSink(actionRepo, log)
	scheduler.AddSink(actionSink)
	scheduler.AddSink(state.NewEventSink(mqttClient, qos, log))
	scheduler.AddSink(wsHub)
	if telemetryClient != nil {
		scheduler.AddSink(telemetryClient)

		recorder := telemetry.NewRecorder(telemetryClient, stateHub, cfg.GetTickInterval(), log)
		go recorder.Run(ctx)
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Store:     store,
		Scheduler: scheduler,
		State:     stateHub,
		Sun:       sun,
		Actions:   actionRepo,
		Recorder:  actionSink,
		MQTT:      mqttClient,
		DB:        db,
		Hub:       wsHub,
		Version:   version,
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
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Start the evaluation loop
	go scheduler.Run(ctx)
	log.Info("scheduler started", "interval", cfg.GetTickInterval())

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// logScheduleTimes logs today's resolved trigger times so the day's
// plan is visible in the startup log.
func logScheduleTimes(store *schedule.Store, log *logging.Logger) {
	listings := store.Listings()
	for _, name := range store.Names() {
		listing, ok := listings[name]
		if !ok {
			continue
		}
		attrs := []any{"schedule", name}
		if listing.On != nil {
			attrs = append(attrs, "on", listing.On.Spec)
			if listing.On.At != "" {
				attrs = append(attrs, "on_at", listing.On.At)
			}
		}
		if listing.Off != nil {
			attrs = append(attrs, "off", listing.Off.Spec)
			if listing.Off.At != "" {
				attrs = append(attrs, "off_at", listing.Off.At)
			}
		}
		log.Info("schedule", attrs...)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			// Telemetry is best effort; a failed check degrades rather
			// than aborts startup.
			if !errors.Is(err, telemetry.ErrNotConnected) {
				return fmt.Errorf("telemetry: %w", err)
			}
		}
	}

	return nil
}
