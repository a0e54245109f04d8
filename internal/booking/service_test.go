package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/ecocommute/internal/email"
	"github.com/example/ecocommute/internal/models"
	"github.com/example/ecocommute/internal/storage"
)

// recordingNotifier captures the mutation sequence so ordering
// guarantees can be asserted.
type recordingNotifier struct {
	mu   sync.Mutex
	ops  []string // "add:<severity>:<message>" / "remove:<id>"
	next int
}

func (n *recordingNotifier) Add(message string, severity models.Severity, autoExpire bool) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := fmt.Sprintf("n%d", n.next)
	n.ops = append(n.ops, fmt.Sprintf("add:%s:%s:%s", id, severity, message))
	return id
}

func (n *recordingNotifier) Remove(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ops = append(n.ops, "remove:"+id)
}

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.ops))
	copy(out, n.ops)
	return out
}

type fakeEmail struct {
	mu    sync.Mutex
	err   error
	sends []string // recipients
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, htmlBody string) (*email.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sends = append(f.sends, to)
	return &email.Receipt{MessageID: "mock-1", Timestamp: time.Now()}, nil
}

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEvents) PublishBookingEvent(e models.BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, e.Type)
	return nil
}

type fakePayments struct {
	mu                        sync.Mutex
	holds, captures, releases int
	captured                  []string // PaymentIntent ids passed to Capture
}

func (f *fakePayments) HoldSeat(ctx context.Context, cost, customer string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds++
	return "pi_test", nil
}

func (f *fakePayments) Capture(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	f.captured = append(f.captured, id)
	return nil
}

func (f *fakePayments) Release(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func newTestService(t *testing.T, decider Decider) (*Service, *storage.MemoryStore, *recordingNotifier, *fakeEmail) {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.CreateRide(&models.Ride{
		ID: "r1", Driver: "John Doe", SeatsTotal: 3, SeatsAvailable: 3,
		StartLocationAddress: "London City Center", DestinationAddress: "London Bridge",
		DepartureTime: "2023-07-25T08:30",
	}); err != nil {
		t.Fatal(err)
	}
	n := &recordingNotifier{}
	mail := &fakeEmail{}
	svc := NewService(store, store, n, mail, decider, nil)
	return svc, store, n, mail
}

func draft() models.BookingDraft {
	return models.BookingDraft{
		RideID:         "r1",
		PassengerName:  "Alice",
		PassengerEmail: "alice@example.com",
		PassengerPhone: "555-0100",
	}
}

func waitForStatus(t *testing.T, store *storage.MemoryStore, id string, want models.BookingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		b, err := store.GetBooking(id)
		if err == nil && b.Status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("booking %s never reached %s", id, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitApprovedDecrementsSeat(t *testing.T) {
	svc, store, n, mail := newTestService(t, FixedDecider{Approved: true, Delay: 10 * time.Millisecond})

	b, err := svc.Submit(context.Background(), draft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if b.Status != models.BookingPending {
		t.Fatalf("fresh booking must be pending, got %s", b.Status)
	}

	waitForStatus(t, store, b.ID, models.BookingApproved)

	r, _ := store.GetRide("r1")
	if r.SeatsAvailable != 2 {
		t.Fatalf("seats_available = %d, want 2", r.SeatsAvailable)
	}

	// Two sends: pending confirmation, then approval notice.
	deadline := time.Now().Add(time.Second)
	for {
		mail.mu.Lock()
		sends := len(mail.sends)
		mail.mu.Unlock()
		if sends == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 emails, got %d", sends)
		}
		time.Sleep(5 * time.Millisecond)
	}

	ops := n.snapshot()
	// Processing notice added first, removed before the "request sent"
	// notice, then the terminal success notice.
	if !strings.Contains(ops[0], "Processing your booking") {
		t.Fatalf("first op %q", ops[0])
	}
	if ops[1] != "remove:n1" {
		t.Fatalf("processing notice not removed before terminal, ops=%v", ops)
	}
	if !strings.Contains(ops[2], "Booking request sent") {
		t.Fatalf("third op %q", ops[2])
	}
	last := ops[len(ops)-1]
	if !strings.Contains(last, string(models.SeveritySuccess)) || !strings.Contains(last, "John Doe approved") {
		t.Fatalf("terminal op %q", last)
	}
}

func TestSubmitDeclinedKeepsSeats(t *testing.T) {
	svc, store, n, _ := newTestService(t, FixedDecider{Approved: false, Delay: 10 * time.Millisecond})

	b, err := svc.Submit(context.Background(), draft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, store, b.ID, models.BookingDeclined)

	r, _ := store.GetRide("r1")
	if r.SeatsAvailable != 3 {
		t.Fatalf("decline must not consume a seat, seats=%d", r.SeatsAvailable)
	}
	last := n.snapshot()[len(n.snapshot())-1]
	if !strings.Contains(last, string(models.SeverityWarning)) {
		t.Fatalf("decline must surface as a warning, got %q", last)
	}
}

func TestSubmitEmailFailureStopsFlow(t *testing.T) {
	svc, store, n, mail := newTestService(t, FixedDecider{Approved: true, Delay: time.Millisecond})
	mail.err = errors.New("smtp unreachable")

	b, err := svc.Submit(context.Background(), draft())
	if err == nil {
		t.Fatal("expected submit to fail when dispatch throws")
	}
	if b != nil {
		t.Fatalf("no booking should be returned, got %+v", b)
	}

	// No resolution is scheduled: seats stay untouched well past the delay.
	time.Sleep(50 * time.Millisecond)
	r, _ := store.GetRide("r1")
	if r.SeatsAvailable != 3 {
		t.Fatalf("seats mutated after failed submit: %d", r.SeatsAvailable)
	}

	ops := n.snapshot()
	last := ops[len(ops)-1]
	if !strings.Contains(last, string(models.SeverityError)) || !strings.Contains(last, "Failed to process booking") {
		t.Fatalf("expected booking-failed notification, got %q", last)
	}
}

func TestSubmitWithoutEmailSkipsDispatch(t *testing.T) {
	svc, store, _, mail := newTestService(t, FixedDecider{Approved: true, Delay: time.Millisecond})
	mail.err = errors.New("would fail if called")

	d := draft()
	d.PassengerEmail = ""
	b, err := svc.Submit(context.Background(), d)
	if err != nil {
		t.Fatalf("submit without email: %v", err)
	}
	waitForStatus(t, store, b.ID, models.BookingApproved)
}

func TestValidationRejectsBeforeMutation(t *testing.T) {
	svc, store, n, _ := newTestService(t, FixedDecider{Approved: true})

	d := draft()
	d.PassengerName = "   "
	if _, err := svc.Submit(context.Background(), d); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected ErrInvalidDraft, got %v", err)
	}
	if got, _ := store.ListBookingsByRide("r1"); len(got) != 0 {
		t.Fatalf("validation failure must not persist a booking, got %d", len(got))
	}
	ops := n.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], string(models.SeverityWarning)) {
		t.Fatalf("expected a single warning, got %v", ops)
	}

	d = draft()
	d.RideID = "ghost"
	if _, err := svc.Submit(context.Background(), d); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// insertOnlyBookings mimics a primary-key constrained SQL backend:
// a second SaveBooking for the same id fails instead of overwriting.
type insertOnlyBookings struct {
	*storage.MemoryStore
}

func (s *insertOnlyBookings) SaveBooking(b *models.Booking) error {
	if _, err := s.MemoryStore.GetBooking(b.ID); err == nil {
		return errors.New("duplicate key value violates unique constraint")
	}
	return s.MemoryStore.SaveBooking(b)
}

func TestPaymentIntentRecordedOnInsertOnlyStore(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := &insertOnlyBookings{mem}
	if err := store.CreateRide(&models.Ride{ID: "paid", Driver: "Jane", SeatsTotal: 2, SeatsAvailable: 2, CostPerSeat: "$5"}); err != nil {
		t.Fatal(err)
	}
	svc := NewService(store, store, &recordingNotifier{}, &fakeEmail{}, FixedDecider{Approved: true, Delay: time.Millisecond}, nil)
	pay := &fakePayments{}
	svc.Payments = pay

	d := draft()
	d.RideID = "paid"
	b, err := svc.Submit(context.Background(), d)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := store.GetBooking(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PaymentIntentID != "pi_test" {
		t.Fatalf("payment intent not persisted, got %q", got.PaymentIntentID)
	}

	// Resolution re-reads the booking; the held intent must be the one
	// captured.
	waitForStatus(t, mem, b.ID, models.BookingApproved)
	deadline := time.Now().Add(time.Second)
	for {
		pay.mu.Lock()
		captures := len(pay.captured)
		pay.mu.Unlock()
		if captures == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 capture, got %d", captures)
		}
		time.Sleep(5 * time.Millisecond)
	}
	pay.mu.Lock()
	defer pay.mu.Unlock()
	if pay.captured[0] != "pi_test" {
		t.Fatalf("captured %q, want the held intent", pay.captured[0])
	}
}

func TestSubmitRejectsMalformedEmail(t *testing.T) {
	svc, store, n, mail := newTestService(t, FixedDecider{Approved: true, Delay: time.Millisecond})

	d := draft()
	d.PassengerEmail = "not an email @@"
	if _, err := svc.Submit(context.Background(), d); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected ErrInvalidDraft, got %v", err)
	}
	if got, _ := store.ListBookingsByRide("r1"); len(got) != 0 {
		t.Fatalf("malformed email must not persist a booking, got %d", len(got))
	}
	mail.mu.Lock()
	sends := len(mail.sends)
	mail.mu.Unlock()
	if sends != 0 {
		t.Fatalf("no dispatch should be attempted, got %d", sends)
	}
	ops := n.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], string(models.SeverityWarning)) {
		t.Fatalf("expected a single warning, got %v", ops)
	}
}

func TestDuplicateResolutionIsNoOp(t *testing.T) {
	svc, store, _, _ := newTestService(t, FixedDecider{Approved: true, Delay: time.Hour})

	b, err := svc.Submit(context.Background(), draft())
	if err != nil {
		t.Fatal(err)
	}
	svc.Cancel(b.ID) // detach the scheduled timer; resolve manually

	svc.resolve(b.ID, true)
	svc.resolve(b.ID, true)
	svc.resolve(b.ID, false)

	got, _ := store.GetBooking(b.ID)
	if got.Status != models.BookingApproved {
		t.Fatalf("status = %s, want approved", got.Status)
	}
	r, _ := store.GetRide("r1")
	if r.SeatsAvailable != 2 {
		t.Fatalf("duplicate resolutions double-decremented: seats=%d", r.SeatsAvailable)
	}
}

func TestConcurrentApprovalsNeverGoNegative(t *testing.T) {
	svc, store, _, _ := newTestService(t, FixedDecider{Approved: true, Delay: time.Millisecond})

	// One seat, many hopeful passengers resolving at once.
	if err := store.CreateRide(&models.Ride{ID: "tight", Driver: "Jane", SeatsTotal: 1, SeatsAvailable: 1}); err != nil {
		t.Fatal(err)
	}
	var ids []string
	for i := 0; i < 5; i++ {
		d := draft()
		d.RideID = "tight"
		d.PassengerEmail = ""
		b, err := svc.Submit(context.Background(), d)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}
	for _, id := range ids {
		waitForStatus(t, store, id, models.BookingApproved)
	}
	r, _ := store.GetRide("tight")
	if r.SeatsAvailable != 0 {
		t.Fatalf("seats_available = %d, want 0 and never negative", r.SeatsAvailable)
	}
}

func TestCancelPreventsResolution(t *testing.T) {
	svc, store, _, _ := newTestService(t, FixedDecider{Approved: true, Delay: 50 * time.Millisecond})

	b, err := svc.Submit(context.Background(), draft())
	if err != nil {
		t.Fatal(err)
	}
	if !svc.Cancel(b.ID) {
		t.Fatal("cancel should stop the pending timer")
	}
	time.Sleep(100 * time.Millisecond)
	got, _ := store.GetBooking(b.ID)
	if got.Status != models.BookingPending {
		t.Fatalf("cancelled booking resolved anyway: %s", got.Status)
	}
	if svc.Cancel(b.ID) {
		t.Fatal("second cancel must report nothing to stop")
	}
}

func TestLifecycleEventsAndPayments(t *testing.T) {
	svc, store, _, _ := newTestService(t, FixedDecider{Approved: true, Delay: time.Millisecond})
	events := &fakeEvents{}
	pay := &fakePayments{}
	svc.Events = events
	svc.Payments = pay

	if err := store.CreateRide(&models.Ride{ID: "paid", Driver: "Jane", SeatsTotal: 2, SeatsAvailable: 2, CostPerSeat: "$5"}); err != nil {
		t.Fatal(err)
	}
	d := draft()
	d.RideID = "paid"
	b, err := svc.Submit(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, store, b.ID, models.BookingApproved)

	deadline := time.Now().Add(time.Second)
	for {
		events.mu.Lock()
		n := len(events.types)
		events.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 events, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	events.mu.Lock()
	if events.types[0] != "booking.submitted" || events.types[1] != "booking.approved" {
		t.Fatalf("unexpected event sequence %v", events.types)
	}
	events.mu.Unlock()

	pay.mu.Lock()
	defer pay.mu.Unlock()
	if pay.holds != 1 || pay.captures != 1 || pay.releases != 0 {
		t.Fatalf("payments: holds=%d captures=%d releases=%d", pay.holds, pay.captures, pay.releases)
	}
}

func TestSimulatedDeciderDistribution(t *testing.T) {
	seq := []float64{0.5, 0.0, 0.9, 0.5}
	i := 0
	d := NewSimulatedDecider(0.8, 3*time.Second, 8*time.Second)
	d.Rand = func() float64 { v := seq[i%len(seq)]; i++; return v }

	first := d.Decide(models.Booking{})
	if !first.Approved {
		t.Fatal("0.5 < 0.8 must approve")
	}
	if first.Delay != 3*time.Second {
		t.Fatalf("delay = %s, want lower bound", first.Delay)
	}
	second := d.Decide(models.Booking{})
	if second.Approved {
		t.Fatal("0.9 >= 0.8 must decline")
	}
	if second.Delay != 3*time.Second+time.Duration(0.5*float64(5*time.Second)) {
		t.Fatalf("delay = %s", second.Delay)
	}
}
