// Package email defines the outbound mail contract and a mock transport
// that stands in for a real provider during development.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Receipt is returned by a successful dispatch.
type Receipt struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Service is the async, fallible send contract. A real provider
// integration must preserve this shape.
type Service interface {
	Send(ctx context.Context, to, subject, htmlBody string) (*Receipt, error)
}

// ErrSendFailed is the generic transport failure the mock produces.
var ErrSendFailed = errors.New("failed to send email")

// Mock simulates a provider: fixed latency, a configurable fraction of
// calls fail with ErrSendFailed.
type Mock struct {
	Latency     time.Duration
	FailureRate float64

	// Rand returns a uniform value in [0,1). Injectable so tests can
	// force either outcome.
	Rand func() float64

	Logger *slog.Logger
}

func NewMock(latency time.Duration, failureRate float64, logger *slog.Logger) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mock{Latency: latency, FailureRate: failureRate, Rand: rand.Float64, Logger: logger}
}

func (m *Mock) Send(ctx context.Context, to, subject, htmlBody string) (*Receipt, error) {
	if m.Latency > 0 {
		t := time.NewTimer(m.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Rand() < m.FailureRate {
		m.Logger.Warn("mock email dispatch failed", "to", to, "subject", subject)
		return nil, ErrSendFailed
	}
	r := &Receipt{
		MessageID: fmt.Sprintf("mock-%d", time.Now().UnixMilli()),
		Timestamp: time.Now(),
	}
	m.Logger.Debug("mock email sent", "to", to, "subject", subject, "message_id", r.MessageID)
	return r, nil
}
