package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/nortonjulian/chatforia-signal/internal/core"
	"github.com/nortonjulian/chatforia-signal/internal/proto"
	"github.com/nortonjulian/chatforia-signal/internal/store"
)

// mapper turns wire envelopes into core commands and core events into wire
// envelopes.
type mapper struct {
	validateSDP bool
}

// inboundToCommand decodes an inbound envelope. A nil command with a nil
// protocol error means the message is dropped without reply; err explains why.
func (m mapper) inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeInvite:
		var data proto.InviteData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, fmt.Errorf("decode invite: %w", err)
		}
		if err := m.checkSDP(webrtc.SDPTypeOffer, data.SDP); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:     core.CommandInvite,
			CalleeID: data.CalleeID,
			ChatID:   data.ChatID,
			Mode:     store.CallMode(strings.ToUpper(data.Mode)),
			SDP:      data.SDP,
		}, nil, nil
	case proto.InboundTypeAnswer:
		var data proto.AnswerData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, fmt.Errorf("decode answer: %w", err)
		}
		if data.Accept {
			if err := m.checkSDP(webrtc.SDPTypeAnswer, data.SDP); err != nil {
				return nil, nil, err
			}
		}
		return &core.Command{
			Kind:   core.CommandAnswer,
			CallID: data.CallID,
			Accept: data.Accept,
			SDP:    data.SDP,
		}, nil, nil
	case proto.InboundTypeCandidate:
		var data proto.CandidateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, fmt.Errorf("decode candidate: %w", err)
		}
		if err := m.checkCandidate(data.Candidate); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:      core.CommandCandidate,
			CallID:    data.CallID,
			ToUserID:  data.ToUserID,
			Candidate: data.Candidate,
		}, nil, nil
	case proto.InboundTypeHangup:
		var data proto.HangupData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, fmt.Errorf("decode hangup: %w", err)
		}
		return &core.Command{
			Kind:   core.CommandHangup,
			CallID: data.CallID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

// checkSDP parses sdp when validation is on. Empty descriptions are left to
// the relay, which drops them.
func (m mapper) checkSDP(typ webrtc.SDPType, sdp string) error {
	if !m.validateSDP || sdp == "" {
		return nil
	}
	desc := webrtc.SessionDescription{Type: typ, SDP: sdp}
	if _, err := desc.Unmarshal(); err != nil {
		return fmt.Errorf("invalid %s sdp: %w", typ, err)
	}
	return nil
}

func (m mapper) checkCandidate(raw json.RawMessage) error {
	if !m.validateSDP || len(raw) == 0 {
		return nil
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("invalid candidate: %w", err)
	}
	if init.Candidate == "" {
		return fmt.Errorf("invalid candidate: empty candidate line")
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}
	call := event.Call
	if call == nil {
		call = &core.CallEvent{}
	}

	switch event.Kind {
	case core.EventCallRing:
		out.Data = proto.EventRing{
			CallID:     call.CallID,
			FromUserID: call.FromUserID,
			ChatID:     call.ChatID,
			Mode:       call.Mode,
			SDP:        call.SDP,
			CreatedAt:  call.CreatedAt,
		}
	case core.EventCallAnswered:
		out.Data = proto.EventAnswered{CallID: call.CallID, SDP: call.SDP}
	case core.EventCallRejected, core.EventCallEnded:
		out.Data = proto.EventCallID{CallID: call.CallID}
	case core.EventCallCandidate:
		out.Data = proto.EventCandidate{
			CallID:     call.CallID,
			FromUserID: call.FromUserID,
			Candidate:  call.Candidate,
		}
	case core.EventError:
		code := "unknown"
		if event.Error != nil {
			code = event.Error.Code
		}
		out.Data = proto.EventCallError{Error: code}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
	return out
}
