package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ecocommute/internal/booking"
	"github.com/example/ecocommute/internal/config"
	"github.com/example/ecocommute/internal/dispatch"
	"github.com/example/ecocommute/internal/email"
	"github.com/example/ecocommute/internal/geocode"
	httpapi "github.com/example/ecocommute/internal/http"
	"github.com/example/ecocommute/internal/ingest"
	"github.com/example/ecocommute/internal/location"
	"github.com/example/ecocommute/internal/logging"
	"github.com/example/ecocommute/internal/models"
	"github.com/example/ecocommute/internal/notify"
	"github.com/example/ecocommute/internal/payments"
	"github.com/example/ecocommute/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		applyMigrations(logger, cfg.PGDSN)
	}

	// Notification persistence: redis when configured, a local file
	// otherwise so the binary runs without any infrastructure.
	var notifyStorage notify.Storage
	if cfg.RedisAddr != "" {
		notifyStorage = notify.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.NotifyKey)
		logger.Info("notification storage", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		notifyStorage = notify.NewFileStorage(cfg.NotifyFile)
		logger.Info("notification storage", "backend", "file", "path", cfg.NotifyFile)
	}
	ns := notify.New(notifyStorage, cfg.NotifyTTL, logging.Component(logger, "notify"))

	var rides storage.RideStore
	var bookings storage.BookingStore
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		rides, bookings = pg, pg
		logger.Info("ride storage", "backend", "postgres")
	} else {
		mem := storage.NewMemoryStore()
		rides, bookings = mem, mem
		logger.Info("ride storage", "backend", "memory")
	}

	geo := geocode.NewNominatimClient(cfg.NominatimBase, cfg.GeocodeTimeout)
	picker := location.NewPicker(geo, nil, logging.Component(logger, "location"))
	picker.DefaultCenter = models.Coord{Lat: cfg.DefaultCenter.Lat, Lon: cfg.DefaultCenter.Lon}
	picker.DefaultZoom = cfg.DefaultZoom
	picker.LocatedZoom = cfg.LocatedZoom
	picker.LocateTimeout = cfg.LocateTimeout

	mail := email.NewMock(cfg.EmailLatency, cfg.EmailFailureRate, logging.Component(logger, "email"))
	decider := booking.NewSimulatedDecider(cfg.ApprovalRate, cfg.ResponseDelayMin, cfg.ResponseDelayMax)
	svc := booking.NewService(rides, bookings, ns, mail, decider, logging.Component(logger, "booking"))

	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		svc.Events = producer
		logger.Info("booking events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}
	if cfg.StripeAPIKey != "" {
		svc.Payments = payments.NewStripeClient(cfg.StripeAPIKey)
		logger.Info("seat holds enabled")
	}
	if cfg.WebhookURL != "" {
		wh := dispatch.NewWebhookNotifier(cfg.WebhookURL, logging.Component(logger, "webhook"))
		events, _ := ns.Subscribe()
		go wh.Run(events)
		logger.Info("notification webhook enabled", "url", cfg.WebhookURL)
	}

	api := httpapi.NewServer(httpapi.Deps{
		Rides:    rides,
		Bookings: bookings,
		Booking:  svc,
		Notify:   ns,
		Picker:   picker,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ecocommute listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// applyMigrations runs the bundled schema file. Errors are logged, not
// fatal: the store will fail loudly on first use if the schema is off.
func applyMigrations(logger *slog.Logger, dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_rides.sql"))
	if err != nil {
		logger.Error("migration read", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_rides.sql")
}
