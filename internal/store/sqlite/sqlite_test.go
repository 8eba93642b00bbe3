package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nortonjulian/chatforia-signal/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetCall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chatID := int64(99)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	call := &store.Call{
		ID:        "call-1",
		CallerID:  1,
		CalleeID:  42,
		ChatID:    &chatID,
		Mode:      store.CallModeAudio,
		Status:    store.CallStatusInitiated,
		CreatedAt: created,
	}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("create call: %v", err)
	}

	got, err := s.GetCall(ctx, "call-1")
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if got.CallerID != 1 || got.CalleeID != 42 || got.Mode != store.CallModeAudio || got.Status != store.CallStatusInitiated {
		t.Fatalf("unexpected call: %+v", got)
	}
	if got.ChatID == nil || *got.ChatID != 99 {
		t.Fatalf("unexpected chat id: %v", got.ChatID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, created)
	}
	if got.AcceptedAt != nil || got.EndedAt != nil {
		t.Fatalf("timestamps should be unset: %+v", got)
	}
}

func TestGetCallNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCall(context.Background(), "ghost")
	if !errors.Is(err, store.ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestUpdateCallStatusCompareAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	call := &store.Call{ID: "call-2", CallerID: 1, CalleeID: 2, Mode: store.CallModeVideo, Status: store.CallStatusInitiated, CreatedAt: now}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("create call: %v", err)
	}

	answered := *call
	if err := answered.Transition(store.CallStatusAnswered, now.Add(time.Second)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := s.UpdateCallStatus(ctx, &answered, store.CallStatusInitiated); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A second writer that also read INITIATED loses.
	rejected := *call
	if err := rejected.Transition(store.CallStatusRejected, now.Add(2*time.Second)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	err := s.UpdateCallStatus(ctx, &rejected, store.CallStatusInitiated)
	if !errors.Is(err, store.ErrStaleCall) {
		t.Fatalf("expected ErrStaleCall, got %v", err)
	}

	got, err := s.GetCall(ctx, "call-2")
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if got.Status != store.CallStatusAnswered {
		t.Fatalf("expected ANSWERED, got %s", got.Status)
	}
	if got.AcceptedAt == nil || !got.AcceptedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("accepted_at mismatch: %v", got.AcceptedAt)
	}
	if got.EndedAt != nil {
		t.Fatalf("ended_at should be unset, got %v", got.EndedAt)
	}
}

func TestListActiveCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []*store.Call{
		{ID: "a", CallerID: 1, CalleeID: 2, Mode: store.CallModeAudio, Status: store.CallStatusInitiated, CreatedAt: base},
		{ID: "b", CallerID: 3, CalleeID: 1, Mode: store.CallModeAudio, Status: store.CallStatusAnswered, CreatedAt: base.Add(time.Minute)},
		{ID: "c", CallerID: 1, CalleeID: 4, Mode: store.CallModeAudio, Status: store.CallStatusEnded, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d", CallerID: 5, CalleeID: 6, Mode: store.CallModeAudio, Status: store.CallStatusInitiated, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, c := range seed {
		if err := s.CreateCall(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.ID, err)
		}
	}

	calls, err := s.ListActiveCalls(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 active calls, got %d", len(calls))
	}
	if calls[0].ID != "b" || calls[1].ID != "a" {
		t.Fatalf("unexpected order: %s, %s", calls[0].ID, calls[1].ID)
	}
}
