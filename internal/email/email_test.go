package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/ecocommute/internal/models"
)

func TestMockSendSucceeds(t *testing.T) {
	m := NewMock(0, 0.05, nil)
	m.Rand = func() float64 { return 0.99 } // above the failure band
	r, err := m.Send(context.Background(), "p@example.com", "hi", "<p>body</p>")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(r.MessageID, "mock-") {
		t.Fatalf("unexpected message id %q", r.MessageID)
	}
	if r.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}
}

func TestMockSendFails(t *testing.T) {
	m := NewMock(0, 0.05, nil)
	m.Rand = func() float64 { return 0.0 } // inside the failure band
	if _, err := m.Send(context.Background(), "p@example.com", "hi", ""); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestMockSendHonorsContext(t *testing.T) {
	m := NewMock(time.Minute, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Send(ctx, "p@example.com", "hi", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTemplates(t *testing.T) {
	b := models.Booking{PassengerName: "Alice", PassengerPhone: "555-0100", Notes: "two bags"}
	r := models.Ride{Driver: "John Doe", StartLocationAddress: "London City Center", DestinationAddress: "London Bridge", DepartureTime: "2023-07-25T08:30"}

	conf := BookingConfirmation(b, r)
	if !strings.Contains(conf.Subject, "John Doe") || !strings.Contains(conf.Body, "Alice") {
		t.Fatalf("confirmation missing names: %+v", conf.Subject)
	}
	if !strings.Contains(conf.Body, "Free") {
		t.Fatal("empty cost should render as Free")
	}

	drv := DriverNotice(b, r)
	if !strings.Contains(drv.Body, "two bags") {
		t.Fatal("driver notice should carry passenger notes")
	}
	drv = DriverNotice(models.Booking{PassengerName: "Alice"}, r)
	if strings.Contains(drv.Body, "Notes from passenger") {
		t.Fatal("driver notice should omit the notes block when empty")
	}

	if m := ApprovalNotice(b, r); !strings.Contains(m.Body, "approved your ride request") {
		t.Fatalf("unexpected approval body")
	}
	if m := DeclineNotice(b, r); !strings.Contains(m.Body, "unable to approve") {
		t.Fatalf("unexpected decline body")
	}
}
