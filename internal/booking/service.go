// Package booking models the lifecycle of a seat request: pending on
// submission, then exactly one asynchronous transition to approved or
// declined, with notifications and emails on every step.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ecocommute/internal/email"
	"github.com/example/ecocommute/internal/models"
	"github.com/example/ecocommute/internal/observability"
	"github.com/example/ecocommute/internal/payments"
	"github.com/example/ecocommute/internal/storage"
)

// ErrInvalidDraft marks submissions rejected before any state change.
var ErrInvalidDraft = errors.New("invalid booking draft")

// Notifier is the slice of the notification store the service needs.
type Notifier interface {
	Add(message string, severity models.Severity, autoExpire bool) string
	Remove(id string)
}

// EventPublisher mirrors lifecycle steps onto the event topic.
type EventPublisher interface {
	PublishBookingEvent(e models.BookingEvent) error
}

// Service coordinates stores, notifications, email and the decision
// backend. Events and Payments are optional; everything they do is
// best-effort.
type Service struct {
	Rides    storage.RideStore
	Bookings storage.BookingStore
	Notify   Notifier
	Email    email.Service
	Decider  Decider
	Events   EventPublisher
	Payments payments.Client
	Logger   *slog.Logger

	// EmailTimeout bounds each dispatch attempt.
	EmailTimeout time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewService(rides storage.RideStore, bookings storage.BookingStore, notify Notifier, mail email.Service, decider Decider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Rides:        rides,
		Bookings:     bookings,
		Notify:       notify,
		Email:        mail,
		Decider:      decider,
		Logger:       logger,
		EmailTimeout: 10 * time.Second,
		timers:       make(map[string]*time.Timer),
	}
}

// Submit validates the draft, persists a pending booking, emails the
// passenger and schedules the driver's decision. The returned booking
// is always pending; the terminal state arrives asynchronously.
func (s *Service) Submit(ctx context.Context, draft models.BookingDraft) (*models.Booking, error) {
	// Validation happens before any mutation or network call.
	if strings.TrimSpace(draft.PassengerName) == "" {
		s.Notify.Add("Please provide your name to book a ride", models.SeverityWarning, true)
		return nil, fmt.Errorf("%w: passenger name required", ErrInvalidDraft)
	}
	if draft.PassengerEmail != "" {
		if _, err := netmail.ParseAddress(draft.PassengerEmail); err != nil {
			s.Notify.Add("Please provide a valid email address", models.SeverityWarning, true)
			return nil, fmt.Errorf("%w: passenger email %q", ErrInvalidDraft, draft.PassengerEmail)
		}
	}
	ride, err := s.Rides.GetRide(draft.RideID)
	if err != nil {
		s.Notify.Add("This ride is no longer available", models.SeverityError, true)
		return nil, fmt.Errorf("ride %s: %w", draft.RideID, err)
	}

	processingID := s.Notify.Add("Processing your booking...", models.SeverityInfo, false)

	b := &models.Booking{
		ID:             uuid.NewString(),
		RideID:         ride.ID,
		PassengerName:  draft.PassengerName,
		PassengerEmail: draft.PassengerEmail,
		PassengerPhone: draft.PassengerPhone,
		Notes:          draft.Notes,
		Status:         models.BookingPending,
		CreatedAt:      time.Now(),
	}
	if err := s.Bookings.SaveBooking(b); err != nil {
		s.Notify.Remove(processingID)
		s.Notify.Add("Failed to process booking: "+err.Error(), models.SeverityError, true)
		return nil, err
	}

	// Confirmation to the passenger. A transport failure here stops the
	// flow: the processing notice is replaced with an error and no
	// resolution is scheduled.
	if b.PassengerEmail != "" {
		msg := email.BookingConfirmation(*b, *ride)
		if err := s.send(ctx, b.PassengerEmail, msg); err != nil {
			s.Notify.Remove(processingID)
			s.Notify.Add("Failed to process booking: "+err.Error(), models.SeverityError, true)
			return nil, err
		}
	}

	s.Notify.Remove(processingID)
	s.Notify.Add("🕒 Booking request sent! Waiting for driver approval.", models.SeverityInfo, true)
	observability.BookingsSubmitted.Inc()

	if s.Payments != nil && ride.CostPerSeat != "" {
		if piID, err := s.Payments.HoldSeat(ctx, ride.CostPerSeat, draft.PassengerEmail); err != nil {
			s.Logger.Warn("payment hold failed", "booking", b.ID, "error", err)
		} else if piID != "" {
			b.PaymentIntentID = piID
			if err := s.Bookings.SetPaymentIntent(b.ID, piID); err != nil {
				s.Logger.Warn("payment intent not recorded", "booking", b.ID, "error", err)
			}
		}
	}

	s.publish("booking.submitted", *b, *ride)

	decision := s.Decider.Decide(*b)
	s.mu.Lock()
	s.timers[b.ID] = time.AfterFunc(decision.Delay, func() {
		s.resolve(b.ID, decision.Approved)
	})
	s.mu.Unlock()

	return b, nil
}

// Cancel stops a booking's scheduled resolution if it has not fired
// yet. Reports whether a resolution was actually prevented.
func (s *Service) Cancel(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[bookingID]
	if !ok {
		return false
	}
	delete(s.timers, bookingID)
	return t.Stop()
}

// resolve applies the terminal transition. The store's compare-and-set
// makes the status monotonic: a duplicated timer fire is a no-op and
// cannot double-decrement seats.
func (s *Service) resolve(bookingID string, approved bool) {
	s.mu.Lock()
	delete(s.timers, bookingID)
	s.mu.Unlock()

	b, err := s.Bookings.GetBooking(bookingID)
	if err != nil {
		s.Logger.Error("resolution for unknown booking", "booking", bookingID, "error", err)
		return
	}

	to := models.BookingDeclined
	if approved {
		to = models.BookingApproved
	}
	ok, err := s.Bookings.Transition(bookingID, to)
	if err != nil {
		s.Logger.Error("booking transition failed", "booking", bookingID, "error", err)
		return
	}
	if !ok {
		s.Logger.Warn("ignoring duplicate resolution", "booking", bookingID, "status", b.Status)
		return
	}
	b.Status = to

	ride, err := s.Rides.GetRide(b.RideID)
	if err != nil {
		s.Logger.Error("resolved booking references unknown ride", "booking", bookingID, "ride", b.RideID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.EmailTimeout)
	defer cancel()

	if approved {
		reserved, err := s.Rides.ReserveSeat(ride.ID)
		if err != nil {
			s.Logger.Error("seat reservation failed", "ride", ride.ID, "error", err)
		} else if !reserved {
			s.Logger.Warn("approved with no seats left, skipping decrement", "ride", ride.ID, "booking", b.ID)
		} else {
			observability.SeatsReserved.Inc()
		}

		s.Notify.Add(fmt.Sprintf("🎉 %s approved your ride request! Your seat has been reserved.", ride.Driver), models.SeveritySuccess, true)
		observability.BookingsApproved.Inc()

		if b.PassengerEmail != "" {
			msg := email.ApprovalNotice(*b, *ride)
			if err := s.send(ctx, b.PassengerEmail, msg); err != nil {
				s.Logger.Warn("approval email failed", "booking", b.ID, "error", err)
			}
		}
		if s.Payments != nil && b.PaymentIntentID != "" {
			if err := s.Payments.Capture(ctx, b.PaymentIntentID); err != nil {
				s.Logger.Warn("payment capture failed", "booking", b.ID, "error", err)
			}
		}
		s.publish("booking.approved", *b, *ride)
		return
	}

	s.Notify.Add(fmt.Sprintf("Sorry, %s couldn't approve your ride request. Please try another ride.", ride.Driver), models.SeverityWarning, true)
	observability.BookingsDeclined.Inc()

	if b.PassengerEmail != "" {
		msg := email.DeclineNotice(*b, *ride)
		if err := s.send(ctx, b.PassengerEmail, msg); err != nil {
			s.Logger.Warn("decline email failed", "booking", b.ID, "error", err)
		}
	}
	if s.Payments != nil && b.PaymentIntentID != "" {
		if err := s.Payments.Release(ctx, b.PaymentIntentID); err != nil {
			s.Logger.Warn("payment release failed", "booking", b.ID, "error", err)
		}
	}
	s.publish("booking.declined", *b, *ride)
}

func (s *Service) send(ctx context.Context, to string, msg email.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.EmailTimeout)
	defer cancel()
	if _, err := s.Email.Send(ctx, to, msg.Subject, msg.Body); err != nil {
		observability.EmailFailures.Inc()
		return err
	}
	return nil
}

func (s *Service) publish(eventType string, b models.Booking, r models.Ride) {
	if s.Events == nil {
		return
	}
	e := models.BookingEvent{Type: eventType, Booking: b, Ride: r, Timestamp: time.Now()}
	if err := s.Events.PublishBookingEvent(e); err != nil {
		s.Logger.Warn("booking event publish failed", "type", eventType, "booking", b.ID, "error", err)
	}
}
