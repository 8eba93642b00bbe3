package core

import (
	"encoding/json"
	"time"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventCallRing notifies the callee of an incoming call.
	EventCallRing EventKind = iota
	// EventCallAnswered notifies the caller that the callee accepted.
	EventCallAnswered
	// EventCallRejected notifies the caller that the callee declined.
	EventCallRejected
	// EventCallCandidate carries a relayed ICE candidate.
	EventCallCandidate
	// EventCallEnded notifies the other party of a hangup.
	EventCallEnded
	// EventError reports a failed operation to the originating connection.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventCallRing:
		return "call:ring"
	case EventCallAnswered:
		return "call:answered"
	case EventCallRejected:
		return "call:rejected"
	case EventCallCandidate:
		return "call:candidate"
	case EventCallEnded:
		return "call:ended"
	case EventError:
		return "call:error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// It is JSON encoded when fanned out across instances.
type Event struct {
	Kind  EventKind  `json:"kind"`
	Call  *CallEvent `json:"call,omitempty"`
	Error *CoreError `json:"error,omitempty"`
}

// CallEvent holds data specific to call events.
type CallEvent struct {
	CallID     string          `json:"callId"`
	FromUserID int64           `json:"fromUserId,omitempty"`
	ChatID     *int64          `json:"chatId,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	SDP        string          `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	CreatedAt  time.Time       `json:"createdAt,omitempty"`
}
