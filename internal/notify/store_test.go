package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/ecocommute/internal/models"
)

// memStorage records the last saved sequence.
type memStorage struct {
	saved   []models.Notification
	loadErr error
	saveErr error
	saves   int
}

func (m *memStorage) Load(ctx context.Context) ([]models.Notification, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved, nil
}

func (m *memStorage) Save(ctx context.Context, list []models.Notification) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = list
	return nil
}

func TestAddRemoveClear(t *testing.T) {
	s := New(nil, time.Minute, nil)
	id1 := s.Add("first", models.SeverityInfo, false)
	id2 := s.Add("second", models.SeveritySuccess, false)
	if id1 == id2 {
		t.Fatalf("ids must be unique, got %s twice", id1)
	}
	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].ID != id2 {
		t.Fatalf("expected newest-first ordering, head=%s", list[0].ID)
	}

	s.Remove(id1)
	s.Remove(id1) // idempotent
	s.Remove("no-such-id")
	if got := len(s.List()); got != 1 {
		t.Fatalf("expected 1 after remove, got %d", got)
	}

	s.Clear()
	if got := len(s.List()); got != 0 {
		t.Fatalf("expected empty after clear, got %d", got)
	}
}

func TestDefaultSeverity(t *testing.T) {
	s := New(nil, time.Minute, nil)
	s.Add("plain", "", false)
	if got := s.List()[0].Severity; got != models.SeverityInfo {
		t.Fatalf("expected info severity, got %s", got)
	}
}

func TestAutoExpire(t *testing.T) {
	s := New(nil, 30*time.Millisecond, nil)
	s.Add("transient", models.SeverityInfo, true)
	keep := s.Add("sticky", models.SeverityInfo, false)

	deadline := time.Now().Add(2 * time.Second)
	for len(s.List()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("transient notification never expired, live=%d", len(s.List()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.List()[0].ID != keep {
		t.Fatalf("wrong survivor: %s", s.List()[0].ID)
	}

	// The sticky one must still be there well past the TTL.
	time.Sleep(100 * time.Millisecond)
	if got := len(s.List()); got != 1 {
		t.Fatalf("non-expiring notification disappeared, live=%d", got)
	}
}

func TestRemoveCancelsExpiry(t *testing.T) {
	s := New(nil, 30*time.Millisecond, nil)
	id := s.Add("processing", models.SeverityInfo, true)
	s.Remove(id)
	s.Add("result", models.SeveritySuccess, false)
	time.Sleep(60 * time.Millisecond)
	if got := len(s.List()); got != 1 {
		t.Fatalf("expected only the result to remain, got %d", got)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	st := &memStorage{}
	s := New(st, time.Minute, nil)
	s.Add("a", models.SeverityInfo, false)
	id := s.Add("b", models.SeverityWarning, false)
	s.Remove(id)

	// Simulated restart: a fresh store over the same storage must see
	// exactly the surviving in-memory set.
	s2 := New(st, time.Minute, nil)
	list := s2.List()
	if len(list) != 1 || list[0].Message != "a" {
		t.Fatalf("round-trip mismatch: %+v", list)
	}
	if st.saves != 3 {
		t.Fatalf("expected a save per mutation, got %d", st.saves)
	}
}

func TestStorageFailuresDoNotCorruptState(t *testing.T) {
	st := &memStorage{saveErr: errors.New("disk full")}
	s := New(st, time.Minute, nil)
	s.Add("survives", models.SeverityInfo, false)
	if got := len(s.List()); got != 1 {
		t.Fatalf("in-memory state lost on save failure, live=%d", got)
	}

	s2 := New(&memStorage{loadErr: errors.New("boom")}, time.Minute, nil)
	if got := len(s2.List()); got != 0 {
		t.Fatalf("expected empty store after load failure, got %d", got)
	}
}

func TestSubscribeSeesMutations(t *testing.T) {
	s := New(nil, time.Minute, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	id := s.Add("hello", models.SeverityInfo, false)
	e := <-ch
	if e.Type != EventAdded || e.Notification.ID != id {
		t.Fatalf("unexpected event %+v", e)
	}
	s.Remove(id)
	e = <-ch
	if e.Type != EventRemoved || e.Notification.ID != id {
		t.Fatalf("unexpected event %+v", e)
	}
	s.Clear()
	if e = <-ch; e.Type != EventCleared {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	fs := NewFileStorage(path)

	// Missing file reads as empty.
	list, err := fs.Load(context.Background())
	if err != nil || list != nil {
		t.Fatalf("expected empty load, got %v %v", list, err)
	}

	want := []models.Notification{{ID: "1-1", Message: "persisted", Severity: models.SeverityInfo, CreatedAt: time.Now().UTC()}}
	if err := fs.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Message != "persisted" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Malformed content surfaces as an error, which the store treats as
	// an empty sequence.
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Load(context.Background()); err == nil {
		t.Fatal("expected error for malformed file")
	}
	s := New(fs, time.Minute, nil)
	if got := len(s.List()); got != 0 {
		t.Fatalf("expected empty store over malformed file, got %d", got)
	}
}
