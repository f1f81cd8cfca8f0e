// zmapp is the authentication and access-control service of the zmapp
// property management platform.
//
// It serves login, registration, session and account administration
// endpoints over HTTP, stores identities in SQLite and records every
// security decision in the audit log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/Go-ku/zmapp/migrations"

	"github.com/Go-ku/zmapp/internal/api"
	"github.com/Go-ku/zmapp/internal/audit"
	"github.com/Go-ku/zmapp/internal/auth"
	"github.com/Go-ku/zmapp/internal/infrastructure/config"
	"github.com/Go-ku/zmapp/internal/infrastructure/database"
	"github.com/Go-ku/zmapp/internal/infrastructure/influxdb"
	"github.com/Go-ku/zmapp/internal/infrastructure/kafka"
	"github.com/Go-ku/zmapp/internal/infrastructure/logging"
	"github.com/Go-ku/zmapp/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// eventBuffer is the capacity of the security event queue.
	eventBuffer = 1024

	revocationCleanupInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled and then shuts
// down in reverse order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting zmapp",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"environment", cfg.App.Environment,
	)

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

	health := map[string]api.HealthChecker{"database": db}
	sinks := []auth.EventSink{audit.NewSQLiteRepository(db.DB)}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			// Security events still reach the audit log.
			log.Warn("MQTT unavailable, security events will not be published", "error", mqttErr)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetLogger(log)
			health["mqtt"] = mqttClient
			sinks = append(sinks, mqttSink(mqttClient))
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, security events will not be counted", "error", influxErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			health["influxdb"] = influxClient
			sinks = append(sinks, influxSink(influxClient))
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Kafka.Enabled {
		producer, kafkaErr := kafka.NewProducer(cfg.Kafka)
		if kafkaErr != nil {
			return fmt.Errorf("creating Kafka producer: %w", kafkaErr)
		}
		defer func() {
			log.Info("closing Kafka producer")
			if closeErr := producer.Close(); closeErr != nil {
				log.Error("error closing Kafka producer", "error", closeErr)
			}
		}()
		health["kafka"] = producer
		sinks = append(sinks, kafkaSink(producer))
		log.Info("Kafka event stream enabled",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
	} else {
		log.Info("Kafka disabled")
	}

	recorder := auth.NewRecorder(log.Logger, eventBuffer, sinks...)
	recorderDone := make(chan struct{})
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	go func() {
		recorder.Run(recorderCtx)
		close(recorderDone)
	}()
	// The recorder outlives the HTTP server so late events are still drained.
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	svc, throttles, err := buildAuth(ctx, cfg, db, recorder, log)
	if err != nil {
		return err
	}

	server, err := api.New(api.Deps{
		Config:           cfg.API,
		Security:         cfg.Security,
		Logger:           log,
		Auth:             svc,
		LoginThrottle:    throttles.login,
		RegisterThrottle: throttles.register,
		AuditRepo:        audit.NewSQLiteRepository(db.DB),
		Health:           health,
		Version:          version,
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

	log.Info("zmapp started successfully")

	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	return nil
}

type throttleSet struct {
	login    *auth.Throttle
	register *auth.Throttle
}

// buildAuth assembles the auth service and starts its background sweeps,
// which stop when ctx is cancelled.
func buildAuth(ctx context.Context, cfg *config.Config, db *database.DB, recorder *auth.Recorder, log *logging.Logger) (*auth.Service, throttleSet, error) {
	sec := cfg.Security

	hasher, err := auth.NewHasher(auth.HasherConfig{
		Algorithm:     sec.Password.Algorithm,
		Argon2Time:    sec.Password.Argon2Time,
		Argon2Memory:  sec.Password.Argon2Memory,
		Argon2Threads: sec.Password.Argon2Threads,
		BcryptCost:    sec.Password.BcryptCost,
	})
	if err != nil {
		return nil, throttleSet{}, fmt.Errorf("creating password hasher: %w", err)
	}

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     sec.JWT.Secret,
		Issuer:     sec.JWT.Issuer,
		Audience:   sec.JWT.Audience,
		SessionTTL: sec.JWT.SessionTTL,
		RefreshTTL: sec.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, throttleSet{}, fmt.Errorf("creating token codec: %w", err)
	}

	throttles := throttleSet{
		login: auth.NewThrottle("login", auth.ThrottlePolicy{
			MaxAttempts: sec.Throttle.Login.MaxAttempts,
			Window:      sec.Throttle.Login.Window,
			MaxEntries:  sec.Throttle.MaxEntries,
		}),
		register: auth.NewThrottle("register", auth.ThrottlePolicy{
			MaxAttempts: sec.Throttle.Register.MaxAttempts,
			Window:      sec.Throttle.Register.Window,
			MaxEntries:  sec.Throttle.MaxEntries,
		}),
	}
	go throttles.login.Run(ctx, sec.Throttle.SweepInterval)
	go throttles.register.Run(ctx, sec.Throttle.SweepInterval)

	store := auth.NewSQLiteStore(db.DB)
	deps := auth.ServiceDeps{
		Store:   store,
		Hasher:  hasher,
		Tokens:  codec,
		Lockout: auth.NewLockout(store, auth.LockoutPolicy{Threshold: sec.Lockout.Threshold, Duration: sec.Lockout.Duration}),
		Events:  recorder,
		Logger:  log.Logger,
	}
	if sec.Revocation.Enabled {
		revocations := auth.NewRevocationList(db.DB)
		deps.Revocations = revocations
		go auth.RunRevocationCleanup(ctx, revocations, revocationCleanupInterval, log.Logger)
		log.Info("token revocation enabled")
	}

	svc, err := auth.NewService(deps)
	if err != nil {
		return nil, throttleSet{}, fmt.Errorf("creating auth service: %w", err)
	}

	if sec.Seed.AdminEmail != "" {
		if _, seedErr := auth.SeedAdmin(ctx, store, hasher, sec.Seed.AdminEmail, log.Logger); seedErr != nil {
			return nil, throttleSet{}, fmt.Errorf("seeding admin: %w", seedErr)
		}
	}

	log.Info("auth service initialised",
		"hash_algorithm", sec.Password.Algorithm,
		"session_ttl", codec.SessionTTL().String(),
		"lockout_threshold", sec.Lockout.Threshold,
	)
	return svc, throttles, nil
}

// loadConfig reads ZMAPP_CONFIG, then configs/config.yaml, and falls back to
// defaults plus environment variables when neither file exists.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("ZMAPP_CONFIG"); path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.LoadDefaults()
}
