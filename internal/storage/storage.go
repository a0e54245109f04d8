package storage

import (
	"errors"
	"sync"

	"github.com/example/ecocommute/internal/models"
)

var ErrNotFound = errors.New("not found")

// RideStore defines persistence operations for ride offers. ReserveSeat
// is the single place seats-available is decremented; implementations
// must make it a compare-and-decrement so concurrent approvals cannot
// drive the count negative.
type RideStore interface {
	CreateRide(r *models.Ride) error
	GetRide(id string) (*models.Ride, error)
	ListRides() ([]models.Ride, error)
	ReserveSeat(id string) (bool, error)
}

// BookingStore persists booking requests. Transition applies the
// monotonic pending -> approved|declined step and reports whether the
// booking was still pending. SetPaymentIntent updates the payment
// reference in place; SaveBooking is insert-only on SQL backends.
type BookingStore interface {
	SaveBooking(b *models.Booking) error
	GetBooking(id string) (*models.Booking, error)
	ListBookingsByRide(rideID string) ([]models.Booking, error)
	SetPaymentIntent(id, paymentIntentID string) error
	Transition(id string, to models.BookingStatus) (bool, error)
}

// MemoryStore is the default store when no postgres DSN is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	rides    map[string]*models.Ride
	bookings map[string]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[string]*models.Ride),
		bookings: make(map[string]*models.Booking),
	}
}

func (m *MemoryStore) CreateRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListRides() ([]models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Ride, 0, len(m.rides))
	for _, r := range m.rides {
		out = append(out, *r)
	}
	return out, nil
}

// ReserveSeat decrements seats-available by one if any remain. The
// check and the write happen under one lock.
func (m *MemoryStore) ReserveSeat(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.SeatsAvailable <= 0 {
		return false, nil
	}
	r.SeatsAvailable--
	return true, nil
}

func (m *MemoryStore) SaveBooking(b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBooking(id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListBookingsByRide(rideID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.RideID == rideID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *MemoryStore) SetPaymentIntent(id, paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.PaymentIntentID = paymentIntentID
	return nil
}

func (m *MemoryStore) Transition(id string, to models.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != models.BookingPending {
		return false, nil
	}
	b.Status = to
	return true, nil
}
