package core

import (
	"encoding/json"

	"github.com/nortonjulian/chatforia-signal/internal/store"
)

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandInvite starts a call to CalleeID with an SDP offer.
	CommandInvite CommandKind = iota
	// CommandAnswer accepts or rejects an incoming call.
	CommandAnswer
	// CommandCandidate relays an ICE candidate to ToUserID.
	CommandCandidate
	// CommandHangup ends a call.
	CommandHangup
)

func (k CommandKind) String() string {
	switch k {
	case CommandInvite:
		return "invite"
	case CommandAnswer:
		return "answer"
	case CommandCandidate:
		return "candidate"
	case CommandHangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// Command represents a signaling action requested by a client.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind CommandKind

	CallID    string
	CalleeID  int64
	ToUserID  int64
	ChatID    *int64
	Mode      store.CallMode
	SDP       string
	Accept    bool
	Candidate json.RawMessage
}
