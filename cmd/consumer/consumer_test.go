package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ecocommute/internal/email"
	"github.com/example/ecocommute/internal/models"
)

// fakeSender implements email.Service and fails a set number of times
// before succeeding.
type fakeSender struct {
	fail  int
	calls int
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) (*email.Receipt, error) {
	f.calls++
	if f.calls <= f.fail {
		return nil, errors.New("send fail")
	}
	return &email.Receipt{MessageID: "mock-1", Timestamp: time.Now()}, nil
}

func TestSendWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeSender{fail: 2}
	msg := email.Message{Subject: "s", Body: "b"}
	start := time.Now()
	if err := sendWithRetry(context.Background(), f, "driver@example.com", msg, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestSendWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeSender{fail: 5}
	msg := email.Message{Subject: "s", Body: "b"}
	if err := sendWithRetry(context.Background(), f, "driver@example.com", msg, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestEmailForEvent(t *testing.T) {
	ride := models.Ride{ID: "r1", Driver: "John Doe", DriverEmail: "john@example.com"}
	b := models.Booking{ID: "b1", RideID: "r1", PassengerName: "Alice"}

	to, msg, ok := emailForEvent(models.BookingEvent{Type: "booking.submitted", Booking: b, Ride: ride})
	if !ok || to != "john@example.com" {
		t.Fatalf("submitted event should target the driver, got ok=%v to=%q", ok, to)
	}
	if msg.Subject == "" || msg.Body == "" {
		t.Fatalf("empty driver notice %+v", msg)
	}

	ride.DriverEmail = ""
	if _, _, ok := emailForEvent(models.BookingEvent{Type: "booking.submitted", Booking: b, Ride: ride}); ok {
		t.Fatal("no driver email should skip delivery")
	}
	ride.DriverEmail = "john@example.com"
	if _, _, ok := emailForEvent(models.BookingEvent{Type: "booking.approved", Booking: b, Ride: ride}); ok {
		t.Fatal("approval events are passenger mail, not driver mail")
	}
}
