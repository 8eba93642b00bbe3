package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCallNotFound is returned when no call matches the requested id.
	ErrCallNotFound = errors.New("call not found")
	// ErrStaleCall is returned when a transition lost a race: the stored status
	// no longer matches the status the caller read.
	ErrStaleCall = errors.New("call status changed concurrently")
	// ErrInvalidTransition is returned for a status change the call DAG forbids.
	ErrInvalidTransition = errors.New("invalid call status transition")
)

// CallMode is the media kind negotiated for a call.
type CallMode string

const (
	CallModeAudio CallMode = "AUDIO"
	CallModeVideo CallMode = "VIDEO"
)

// Valid reports whether m is a known mode.
func (m CallMode) Valid() bool {
	return m == CallModeAudio || m == CallModeVideo
}

// CallStatus is the lifecycle state of a call.
type CallStatus string

const (
	CallStatusInitiated CallStatus = "INITIATED"
	CallStatusAnswered  CallStatus = "ANSWERED"
	CallStatusRejected  CallStatus = "REJECTED"
	CallStatusEnded     CallStatus = "ENDED"
)

// Terminal reports whether no further transition is possible.
func (s CallStatus) Terminal() bool {
	return s == CallStatusRejected || s == CallStatusEnded
}

// CanTransition reports whether the DAG allows moving from s to next.
//
//	INITIATED -> ANSWERED | REJECTED | ENDED
//	ANSWERED  -> ENDED
func (s CallStatus) CanTransition(next CallStatus) bool {
	switch s {
	case CallStatusInitiated:
		return next == CallStatusAnswered || next == CallStatusRejected || next == CallStatusEnded
	case CallStatusAnswered:
		return next == CallStatusEnded
	default:
		return false
	}
}

// Call is a persisted signaling exchange between two users.
type Call struct {
	ID         string // UUID
	CallerID   int64
	CalleeID   int64
	ChatID     *int64
	Mode       CallMode
	Status     CallStatus
	CreatedAt  time.Time
	AcceptedAt *time.Time
	EndedAt    *time.Time
}

// IsParticipant reports whether userID is the caller or the callee.
func (c *Call) IsParticipant(userID int64) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// Peer returns the other party of the call from userID's point of view.
func (c *Call) Peer(userID int64) int64 {
	if c.CallerID == userID {
		return c.CalleeID
	}
	return c.CallerID
}

// Transition moves the call to next, stamping acceptedAt/endedAt once.
// The receiver is left untouched when the move is not allowed.
func (c *Call) Transition(next CallStatus, at time.Time) error {
	if !c.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	switch next {
	case CallStatusAnswered:
		if c.AcceptedAt == nil {
			c.AcceptedAt = &at
		}
	case CallStatusRejected, CallStatusEnded:
		if c.EndedAt == nil {
			c.EndedAt = &at
		}
	}
	c.Status = next
	return nil
}

// CallStore handles call persistence.
type CallStore interface {
	// CreateCall persists a new call.
	CreateCall(ctx context.Context, call *Call) error

	// GetCall retrieves a call by ID. Returns ErrCallNotFound when missing.
	GetCall(ctx context.Context, id string) (*Call, error)

	// UpdateCallStatus writes call's status and timestamps if the stored
	// status still equals from. Returns ErrStaleCall otherwise.
	UpdateCallStatus(ctx context.Context, call *Call, from CallStatus) error

	// ListActiveCalls lists INITIATED or ANSWERED calls the user takes part in.
	ListActiveCalls(ctx context.Context, userID int64) ([]*Call, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	CallStore

	// Close closes the underlying database connection.
	Close() error
}
