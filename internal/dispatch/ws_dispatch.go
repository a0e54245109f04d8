package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ecocommute/internal/notify"
)

// WSSession is one connected notification subscriber.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(e notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(e)
}

// WSRegistry fans notification events out to connected sessions.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(id string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		_ = s.conn.Close()
		delete(r.sessions, id)
	}
}

// Broadcast sends an event to every session; sessions whose write fails
// are dropped.
func (r *WSRegistry) Broadcast(e notify.Event) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	sessions := make([]*WSSession, 0, len(r.sessions))
	for id, s := range r.sessions {
		ids = append(ids, id)
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for i, s := range sessions {
		if err := s.Send(e); err != nil {
			r.logger.Warn("ws send error, dropping session", "session", ids[i], "error", err)
			r.Remove(ids[i])
		}
	}
}

// Run pumps store events into the registry until the channel closes.
func (r *WSRegistry) Run(events <-chan notify.Event) {
	for e := range events {
		r.Broadcast(e)
	}
}
