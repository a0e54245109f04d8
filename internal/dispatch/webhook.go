package dispatch

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/ecocommute/internal/notify"
)

// WebhookNotifier POSTs notification events to a configured endpoint,
// for deployments that want them mirrored into an external channel.
// Delivery is best-effort.
type WebhookNotifier struct {
	Endpoint string
	Client   *http.Client
	Logger   *slog.Logger
}

func NewWebhookNotifier(endpoint string, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, Logger: logger}
}

func (w *WebhookNotifier) Run(events <-chan notify.Event) {
	for e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		resp, err := w.Client.Post(w.Endpoint, "application/json", bytes.NewReader(b))
		if err != nil {
			w.Logger.Warn("webhook post failed", "error", err)
			continue
		}
		resp.Body.Close()
	}
}
