// The consumer delivers driver-facing email for booking events published
// by the API process. Passenger email is sent inline by the booking
// service; the driver notice is the only async leg.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/ecocommute/internal/email"
	"github.com/example/ecocommute/internal/models"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_consumed_total",
		Help: "Total booking events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_invalid_total",
		Help: "Total events that failed to decode",
	})
	emailsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_emails_sent_total",
		Help: "Total driver notices delivered",
	})
	emailErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_email_errors_total",
		Help: "Total delivery failures after retries",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, emailsSent, emailErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokers := []string{"localhost:9092"}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = brokers[:0]
		for _, b := range strings.Split(v, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	}
	topic := getenv("KAFKA_TOPIC", "booking-events")
	group := getenv("KAFKA_GROUP", "ecocommute-mailer")

	latency := time.Second
	if v := os.Getenv("EMAIL_LATENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			latency = d
		}
	}
	failureRate := 0.05
	if v := os.Getenv("EMAIL_FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			failureRate = f
		}
	}
	sender := email.NewMock(latency, failureRate, nil)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer r.Close()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var e models.BookingEvent
		if err := json.Unmarshal(m.Value, &e); err != nil {
			eventsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}

		to, msg, ok := emailForEvent(e)
		if !ok {
			continue
		}
		if err := sendWithRetry(ctx, sender, to, msg, 3, 200*time.Millisecond); err != nil {
			emailErrors.Inc()
			log.Printf("driver notice failed for booking=%s: %v", e.Booking.ID, err)
			continue
		}
		emailsSent.Inc()
	}
}

// emailForEvent maps an event to an outgoing message. Only submissions
// produce one; approval and decline mail goes to the passenger directly
// from the booking service.
func emailForEvent(e models.BookingEvent) (string, email.Message, bool) {
	if e.Type != "booking.submitted" || e.Ride.DriverEmail == "" {
		return "", email.Message{}, false
	}
	return e.Ride.DriverEmail, email.DriverNotice(e.Booking, e.Ride), true
}

func sendWithRetry(ctx context.Context, sender email.Service, to string, msg email.Message, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = sender.Send(ctx, to, msg.Subject, msg.Body); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
