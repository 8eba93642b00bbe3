package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nortonjulian/chatforia-signal/internal/core"
	"github.com/nortonjulian/chatforia-signal/internal/proto"
	"github.com/nortonjulian/chatforia-signal/internal/store"
)

const validOffer = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return proto.Inbound{Type: typ, Data: payload}
}

func TestInboundInviteMapping(t *testing.T) {
	chatID := int64(3)
	cmd, protoErr, err := mapper{}.inboundToCommand(inbound(t, proto.InboundTypeInvite, proto.InviteData{
		CalleeID: 42, ChatID: &chatID, Mode: "video", SDP: "offer",
	}))
	if err != nil || protoErr != nil {
		t.Fatalf("unexpected failure: %v %v", err, protoErr)
	}
	if cmd.Kind != core.CommandInvite || cmd.CalleeID != 42 || cmd.Mode != store.CallModeVideo || *cmd.ChatID != 3 {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestInboundMalformedDataIsDropped(t *testing.T) {
	cmd, protoErr, err := mapper{}.inboundToCommand(proto.Inbound{Type: proto.InboundTypeAnswer, Data: json.RawMessage(`"nope"`)})
	if err == nil || cmd != nil || protoErr != nil {
		t.Fatalf("expected silent drop, got %v %v %v", cmd, protoErr, err)
	}
}

func TestInboundSDPValidation(t *testing.T) {
	m := mapper{validateSDP: true}

	if _, _, err := m.inboundToCommand(inbound(t, proto.InboundTypeInvite, proto.InviteData{CalleeID: 1, Mode: "AUDIO", SDP: validOffer})); err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}
	if _, _, err := m.inboundToCommand(inbound(t, proto.InboundTypeInvite, proto.InviteData{CalleeID: 1, Mode: "AUDIO", SDP: "garbage"})); err == nil {
		t.Fatalf("expected invalid offer to fail")
	}
	// Rejections carry no SDP and are never validated.
	if _, _, err := m.inboundToCommand(inbound(t, proto.InboundTypeAnswer, proto.AnswerData{CallID: "c", Accept: false})); err != nil {
		t.Fatalf("reject should pass: %v", err)
	}
	if _, _, err := m.inboundToCommand(inbound(t, proto.InboundTypeCandidate, proto.CandidateData{
		CallID: "c", ToUserID: 2, Candidate: json.RawMessage(`{"sdpMid":"0"}`),
	})); err == nil {
		t.Fatalf("expected empty candidate line to fail")
	}
}

func TestOutboundFromEvent(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	out := outboundFromEvent(&core.Event{Kind: core.EventCallRing, Call: &core.CallEvent{
		CallID: "c", FromUserID: 7, Mode: "AUDIO", SDP: "offer", CreatedAt: created,
	}})
	if out.Type != proto.OutboundTypeEvent || out.Event != "call:ring" {
		t.Fatalf("unexpected envelope %+v", out)
	}
	ring, ok := out.Data.(proto.EventRing)
	if !ok || ring.CallID != "c" || ring.FromUserID != 7 || !ring.CreatedAt.Equal(created) {
		t.Fatalf("unexpected ring %+v", out.Data)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: core.ErrCodeHangupFailed}})
	if out.Event != "call:error" {
		t.Fatalf("unexpected event %q", out.Event)
	}
	if data, ok := out.Data.(proto.EventCallError); !ok || data.Error != core.ErrCodeHangupFailed {
		t.Fatalf("unexpected error payload %+v", out.Data)
	}
}
