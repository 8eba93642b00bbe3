package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nortonjulian/chatforia-signal/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

var errStoreDown = errors.New("store down")

// memCallStore is an in-memory CallStore with failure injection.
type memCallStore struct {
	mu    sync.Mutex
	calls map[string]store.Call

	failCreate bool
	failGet    bool
	failUpdate bool
}

func newMemCallStore() *memCallStore {
	return &memCallStore{calls: make(map[string]store.Call)}
}

func (m *memCallStore) CreateCall(_ context.Context, call *store.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errStoreDown
	}
	m.calls[call.ID] = *call
	return nil
}

func (m *memCallStore) GetCall(_ context.Context, id string) (*store.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStoreDown
	}
	call, ok := m.calls[id]
	if !ok {
		return nil, store.ErrCallNotFound
	}
	return &call, nil
}

func (m *memCallStore) UpdateCallStatus(_ context.Context, call *store.Call, from store.CallStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate {
		return errStoreDown
	}
	cur, ok := m.calls[call.ID]
	if !ok || cur.Status != from {
		return store.ErrStaleCall
	}
	m.calls[call.ID] = *call
	return nil
}

func (m *memCallStore) ListActiveCalls(_ context.Context, userID int64) ([]*store.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Call
	for _, c := range m.calls {
		if c.IsParticipant(userID) && !c.Status.Terminal() {
			cc := c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (m *memCallStore) only(t *testing.T) store.Call {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) != 1 {
		t.Fatalf("expected exactly one call, got %d", len(m.calls))
	}
	for _, c := range m.calls {
		return c
	}
	return store.Call{}
}

func (m *memCallStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
