package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	// NotifyKey namespaces the persisted notification sequence in redis.
	// NotifyFile is the local fallback when no redis is configured.
	NotifyKey  string
	NotifyFile string
	NotifyTTL  time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	StripeAPIKey string

	NominatimBase  string
	GeocodeTimeout time.Duration

	// Simulated driver decision parameters. Stand-ins for a real backend's
	// decision latency and response rate.
	ApprovalRate     float64
	ResponseDelayMin time.Duration
	ResponseDelayMax time.Duration

	EmailFailureRate float64
	EmailLatency     time.Duration

	DefaultCenter  Coord
	DefaultZoom    int
	LocatedZoom    int
	LocateTimeout  time.Duration
	WebhookURL     string

	LogLevel      string
	RunMigrations bool
}

type Coord struct {
	Lat float64
	Lon float64
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		NotifyKey:  "ecocommute:notifications",
		NotifyFile: "notifications.json",
		NotifyTTL:  5 * time.Second,

		KafkaTopic: "booking-events",

		NominatimBase:  "https://nominatim.openstreetmap.org",
		GeocodeTimeout: 10 * time.Second,

		ApprovalRate:     0.8,
		ResponseDelayMin: 3 * time.Second,
		ResponseDelayMax: 8 * time.Second,

		EmailFailureRate: 0.05,
		EmailLatency:     time.Second,

		DefaultCenter: Coord{Lat: 51.505, Lon: -0.09},
		DefaultZoom:   12,
		LocatedZoom:   14,
		LocateTimeout: 5 * time.Second,

		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load(".env")

	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	setStringFromEnv(&cfg.NotifyKey, "NOTIFY_KEY")
	setStringFromEnv(&cfg.NotifyFile, "NOTIFY_FILE")
	setDurationFromEnv(&cfg.NotifyTTL, "NOTIFY_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	setStringFromEnv(&cfg.NominatimBase, "NOMINATIM_BASE")
	setDurationFromEnv(&cfg.GeocodeTimeout, "GEOCODE_TIMEOUT", &errs)

	setFloatFromEnv(&cfg.ApprovalRate, "BOOKING_APPROVAL_RATE", &errs)
	setDurationFromEnv(&cfg.ResponseDelayMin, "BOOKING_DELAY_MIN", &errs)
	setDurationFromEnv(&cfg.ResponseDelayMax, "BOOKING_DELAY_MAX", &errs)

	setFloatFromEnv(&cfg.EmailFailureRate, "EMAIL_FAILURE_RATE", &errs)
	setDurationFromEnv(&cfg.EmailLatency, "EMAIL_LATENCY", &errs)

	setFloatFromEnv(&cfg.DefaultCenter.Lat, "DEFAULT_LAT", &errs)
	setFloatFromEnv(&cfg.DefaultCenter.Lon, "DEFAULT_LON", &errs)
	setIntFromEnv(&cfg.DefaultZoom, "DEFAULT_ZOOM", &errs)
	setIntFromEnv(&cfg.LocatedZoom, "LOCATED_ZOOM", &errs)
	setDurationFromEnv(&cfg.LocateTimeout, "LOCATE_TIMEOUT", &errs)

	setStringFromEnv(&cfg.WebhookURL, "NOTIFY_WEBHOOK_URL")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.ApprovalRate < 0 || cfg.ApprovalRate > 1 {
		errs = append(errs, fmt.Errorf("BOOKING_APPROVAL_RATE must be in [0,1]"))
	}
	if cfg.EmailFailureRate < 0 || cfg.EmailFailureRate > 1 {
		errs = append(errs, fmt.Errorf("EMAIL_FAILURE_RATE must be in [0,1]"))
	}
	if cfg.ResponseDelayMax <= cfg.ResponseDelayMin {
		errs = append(errs, fmt.Errorf("BOOKING_DELAY_MAX must exceed BOOKING_DELAY_MIN"))
	}
	if cfg.NotifyTTL <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_TTL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
