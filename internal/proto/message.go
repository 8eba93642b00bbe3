package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeInvite    = "call:invite"
	InboundTypeAnswer    = "call:answer"
	InboundTypeCandidate = "call:candidate"
	InboundTypeHangup    = "call:hangup"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// InviteData starts a call.
type InviteData struct {
	CalleeID int64  `json:"calleeId"`
	ChatID   *int64 `json:"chatId,omitempty"`
	Mode     string `json:"mode"`
	SDP      string `json:"sdp"`
}

// AnswerData accepts or rejects an incoming call.
type AnswerData struct {
	CallID string `json:"callId"`
	Accept bool   `json:"accept"`
	SDP    string `json:"sdp,omitempty"`
}

// CandidateData relays an ICE candidate to the other party.
type CandidateData struct {
	CallID    string          `json:"callId"`
	ToUserID  int64           `json:"toUserId"`
	Candidate json.RawMessage `json:"candidate"`
}

// HangupData ends a call.
type HangupData struct {
	CallID string `json:"callId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventRing notifies the callee of an incoming call.
type EventRing struct {
	CallID     string    `json:"callId"`
	FromUserID int64     `json:"fromUserId"`
	ChatID     *int64    `json:"chatId"`
	Mode       string    `json:"mode"`
	SDP        string    `json:"sdp"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EventAnswered carries the callee's SDP answer to the caller.
type EventAnswered struct {
	CallID string `json:"callId"`
	SDP    string `json:"sdp"`
}

// EventCallID is the payload of call:rejected and call:ended.
type EventCallID struct {
	CallID string `json:"callId"`
}

// EventCandidate is a relayed ICE candidate.
type EventCandidate struct {
	CallID     string          `json:"callId"`
	FromUserID int64           `json:"fromUserId"`
	Candidate  json.RawMessage `json:"candidate"`
}

// EventCallError reports a failed operation to its originator.
type EventCallError struct {
	Error string `json:"error"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
