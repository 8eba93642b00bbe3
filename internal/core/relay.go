package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/metrics"
	"github.com/nortonjulian/chatforia-signal/internal/store"
)

// Relay runs the call signaling state machine. Every operation is fire and
// forget: invalid, unauthorized or stale commands are dropped without a reply,
// and only persistence failures are reported, to the originating connection.
type Relay struct {
	calls            store.CallStore
	pub              Publisher
	log              *zerolog.Logger
	now              func() time.Time
	newID            func() string
	verifyCandidates bool
}

// Option configures a Relay.
type Option func(*Relay)

func WithLogger(l *zerolog.Logger) Option { return func(r *Relay) { r.log = l } }
func WithClock(now func() time.Time) Option { return func(r *Relay) { r.now = now } }
func WithIDGenerator(gen func() string) Option { return func(r *Relay) { r.newID = gen } }
func WithCandidateMembership(check bool) Option { return func(r *Relay) { r.verifyCandidates = check } }

// NewRelay builds a relay persisting to calls and fanning out through pub.
func NewRelay(calls store.CallStore, pub Publisher, opts ...Option) *Relay {
	nop := zerolog.Nop()
	r := &Relay{
		calls:            calls,
		pub:              pub,
		log:              &nop,
		now:              time.Now,
		newID:            func() string { return uuid.New().String() },
		verifyCandidates: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch handles one command from client c.
func (r *Relay) Dispatch(ctx context.Context, c *Client, cmd *Command) {
	if cmd == nil {
		return
	}
	metrics.SignalingCommands.WithLabelValues(cmd.Kind.String()).Inc()

	switch cmd.Kind {
	case CommandInvite:
		r.invite(ctx, c, cmd)
	case CommandAnswer:
		r.answer(ctx, c, cmd)
	case CommandCandidate:
		r.candidate(ctx, c, cmd)
	case CommandHangup:
		r.hangup(ctx, c, cmd)
	default:
		r.drop(c, cmd, "unknown_kind")
	}
}

func (r *Relay) invite(ctx context.Context, c *Client, cmd *Command) {
	if cmd.CalleeID == 0 || !cmd.Mode.Valid() || cmd.SDP == "" {
		r.drop(c, cmd, "invalid")
		return
	}
	if cmd.CalleeID == c.UserID {
		r.drop(c, cmd, "self_call")
		return
	}

	call := &store.Call{
		ID:        r.newID(),
		CallerID:  c.UserID,
		CalleeID:  cmd.CalleeID,
		ChatID:    cmd.ChatID,
		Mode:      cmd.Mode,
		Status:    store.CallStatusInitiated,
		CreatedAt: r.now().UTC(),
	}
	if err := r.calls.CreateCall(ctx, call); err != nil {
		r.log.Error().Err(err).Int64("user_id", c.UserID).Int64("callee_id", cmd.CalleeID).Msg("failed to persist call invite")
		r.fail(c, ErrCodeInviteFailed, "could not start call")
		return
	}
	metrics.CallTransitions.WithLabelValues(string(call.Status)).Inc()

	r.log.Info().Str("call_id", call.ID).Int64("caller_id", call.CallerID).Int64("callee_id", call.CalleeID).Str("mode", string(call.Mode)).Msg("call invited")

	r.publish(ctx, call.CalleeID, &Event{
		Kind: EventCallRing,
		Call: &CallEvent{
			CallID:     call.ID,
			FromUserID: call.CallerID,
			ChatID:     call.ChatID,
			Mode:       string(call.Mode),
			SDP:        cmd.SDP,
			CreatedAt:  call.CreatedAt,
		},
	})
}

func (r *Relay) answer(ctx context.Context, c *Client, cmd *Command) {
	if cmd.CallID == "" {
		r.drop(c, cmd, "invalid")
		return
	}

	call, ok := r.load(ctx, c, cmd, ErrCodeAnswerFailed)
	if !ok {
		return
	}
	// Non-callees get no hint that the call exists.
	if call.CalleeID != c.UserID {
		r.drop(c, cmd, "not_callee")
		return
	}

	next := store.CallStatusRejected
	if cmd.Accept {
		next = store.CallStatusAnswered
	}
	if !r.transition(ctx, c, cmd, call, next, ErrCodeAnswerFailed) {
		return
	}

	if cmd.Accept {
		r.publish(ctx, call.CallerID, &Event{
			Kind: EventCallAnswered,
			Call: &CallEvent{CallID: call.ID, SDP: cmd.SDP},
		})
		return
	}
	r.publish(ctx, call.CallerID, &Event{
		Kind: EventCallRejected,
		Call: &CallEvent{CallID: call.ID},
	})
}

func (r *Relay) candidate(ctx context.Context, c *Client, cmd *Command) {
	if cmd.CallID == "" || cmd.ToUserID == 0 || len(cmd.Candidate) == 0 {
		r.drop(c, cmd, "invalid")
		return
	}

	if r.verifyCandidates {
		call, err := r.calls.GetCall(ctx, cmd.CallID)
		if err != nil {
			if !errors.Is(err, store.ErrCallNotFound) {
				r.log.Warn().Err(err).Str("call_id", cmd.CallID).Msg("candidate membership lookup failed")
			}
			r.drop(c, cmd, "unknown_call")
			return
		}
		if !call.IsParticipant(c.UserID) || call.Peer(c.UserID) != cmd.ToUserID || call.Status.Terminal() {
			r.drop(c, cmd, "not_participant")
			return
		}
	}

	r.publish(ctx, cmd.ToUserID, &Event{
		Kind: EventCallCandidate,
		Call: &CallEvent{
			CallID:     cmd.CallID,
			FromUserID: c.UserID,
			Candidate:  cmd.Candidate,
		},
	})
}

func (r *Relay) hangup(ctx context.Context, c *Client, cmd *Command) {
	if cmd.CallID == "" {
		r.drop(c, cmd, "invalid")
		return
	}

	call, ok := r.load(ctx, c, cmd, ErrCodeHangupFailed)
	if !ok {
		return
	}
	if !call.IsParticipant(c.UserID) {
		r.drop(c, cmd, "not_participant")
		return
	}
	if !r.transition(ctx, c, cmd, call, store.CallStatusEnded, ErrCodeHangupFailed) {
		return
	}

	r.publish(ctx, call.Peer(c.UserID), &Event{
		Kind: EventCallEnded,
		Call: &CallEvent{CallID: call.ID},
	})
}

// load fetches the referenced call. Unknown ids are dropped silently; store
// failures are reported with failCode.
func (r *Relay) load(ctx context.Context, c *Client, cmd *Command, failCode string) (*store.Call, bool) {
	call, err := r.calls.GetCall(ctx, cmd.CallID)
	if err == nil {
		return call, true
	}
	if errors.Is(err, store.ErrCallNotFound) {
		r.drop(c, cmd, "unknown_call")
		return nil, false
	}
	r.log.Error().Err(err).Str("call_id", cmd.CallID).Int64("user_id", c.UserID).Str("command", cmd.Kind.String()).Msg("failed to load call")
	r.fail(c, failCode, "could not load call")
	return nil, false
}

// transition persists call moving to next. Terminal calls and lost races are
// no-ops, which makes repeated hangups idempotent.
func (r *Relay) transition(ctx context.Context, c *Client, cmd *Command, call *store.Call, next store.CallStatus, failCode string) bool {
	from := call.Status
	if err := call.Transition(next, r.now().UTC()); err != nil {
		r.drop(c, cmd, "invalid_transition")
		return false
	}

	if err := r.calls.UpdateCallStatus(ctx, call, from); err != nil {
		if errors.Is(err, store.ErrStaleCall) {
			r.drop(c, cmd, "stale")
			return false
		}
		r.log.Error().Err(err).Str("call_id", call.ID).Str("status", string(next)).Msg("failed to persist call transition")
		r.fail(c, failCode, "could not update call")
		return false
	}

	metrics.CallTransitions.WithLabelValues(string(next)).Inc()
	r.log.Info().Str("call_id", call.ID).Int64("user_id", c.UserID).Str("from", string(from)).Str("to", string(next)).Msg("call transition")
	return true
}

func (r *Relay) publish(ctx context.Context, userID int64, ev *Event) {
	if err := r.pub.Publish(ctx, userID, ev); err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Str("event", ev.Kind.String()).Msg("failed to publish event")
	}
}

func (r *Relay) fail(c *Client, code, msg string) {
	metrics.SignalingErrors.WithLabelValues(code).Inc()
	if !c.Send(&Event{Kind: EventError, Error: coreError(code, msg)}) {
		r.log.Warn().Str("client_id", c.ID).Str("code", code).Msg("dropped error event for slow client")
	}
}

func (r *Relay) drop(c *Client, cmd *Command, reason string) {
	metrics.SignalingDropped.WithLabelValues(cmd.Kind.String(), reason).Inc()
	r.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID).Str("command", cmd.Kind.String()).Str("call_id", cmd.CallID).Str("reason", reason).Msg("signaling command dropped")
}
