package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ecocommute/internal/models"
	"github.com/example/ecocommute/internal/observability"
)

// DefaultTTL is how long an auto-expiring notification stays visible.
const DefaultTTL = 5 * time.Second

// Storage persists the full notification sequence. Implementations must
// tolerate concurrent calls from the store's mutation path.
type Storage interface {
	Load(ctx context.Context) ([]models.Notification, error)
	Save(ctx context.Context, list []models.Notification) error
}

// EventType tags store events for subscribers.
type EventType string

const (
	EventAdded   EventType = "added"
	EventRemoved EventType = "removed"
	EventCleared EventType = "cleared"
)

type Event struct {
	Type         EventType           `json:"type"`
	Notification models.Notification `json:"notification,omitempty"`
}

// Store is the single source of truth for transient user-facing messages.
// The sequence is kept newest-first. Every mutation persists the whole
// sequence; storage failures are logged and never reach callers.
type Store struct {
	ttl     time.Duration
	storage Storage
	logger  *slog.Logger

	mu     sync.Mutex
	list   []models.Notification
	timers map[string]*time.Timer
	seq    uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New builds a store rehydrated from storage. Missing or malformed
// persisted data yields an empty sequence, never an error.
func New(storage Storage, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		ttl:     ttl,
		storage: storage,
		logger:  logger,
		timers:  make(map[string]*time.Timer),
		subs:    make(map[int]chan Event),
	}
	if storage != nil {
		list, err := storage.Load(context.Background())
		if err != nil {
			logger.Warn("notification rehydrate failed", "error", err)
		} else {
			// Rehydrated entries carry no expiry timer; their original
			// timers did not survive the restart.
			s.list = list
		}
	}
	observability.NotificationsActive.Set(float64(len(s.list)))
	return s
}

// Add prepends a notification and returns its id immediately so callers
// can cancel it via Remove before expiry, e.g. replacing a "processing"
// message with a result. autoExpire schedules removal after the TTL.
func (s *Store) Add(message string, severity models.Severity, autoExpire bool) string {
	if severity == "" {
		severity = models.SeverityInfo
	}
	n := models.Notification{
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.seq++
	// Time-derived ids collide within a millisecond; the sequence
	// suffix keeps them unique in the live set.
	n.ID = fmt.Sprintf("%d-%d", n.CreatedAt.UnixMilli(), s.seq)
	s.list = append([]models.Notification{n}, s.list...)
	s.persistLocked()
	if autoExpire {
		id := n.ID
		s.timers[id] = time.AfterFunc(s.ttl, func() { s.Remove(id) })
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventAdded, Notification: n})
	return n.ID
}

// Remove drops a notification by id. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	idx := -1
	for i, n := range s.list {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	removed := s.list[idx]
	s.list = append(s.list[:idx:idx], s.list[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	s.publish(Event{Type: EventRemoved, Notification: removed})
}

// Clear empties the sequence and cancels all pending expiries.
func (s *Store) Clear() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.list = nil
	s.persistLocked()
	s.mu.Unlock()

	s.publish(Event{Type: EventCleared})
}

// List returns a copy of the live sequence, newest first.
func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.list))
	copy(out, s.list)
	return out
}

// Subscribe returns a channel of store events and a cancel func. Slow
// consumers lose events rather than blocking mutations.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 16)
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) publish(e Event) {
	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
	s.subMu.Unlock()
}

// persistLocked writes the full sequence through storage. Failures are
// logged only; in-memory state is already updated and stays authoritative.
func (s *Store) persistLocked() {
	observability.NotificationsActive.Set(float64(len(s.list)))
	if s.storage == nil {
		return
	}
	snapshot := make([]models.Notification, len(s.list))
	copy(snapshot, s.list)
	if err := s.storage.Save(context.Background(), snapshot); err != nil {
		s.logger.Error("notification persist failed", "error", err, "count", len(snapshot))
	}
}
