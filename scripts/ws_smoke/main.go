// Command ws_smoke drives one full call between two users against a running
// server: invite, ring, answer, candidate, hangup.
//
// Mint tokens with `chatforia-signal token --user-id N`.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/nortonjulian/chatforia-signal/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type received struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	callerToken := flag.String("caller-token", "", "access token of the calling user")
	calleeToken := flag.String("callee-token", "", "access token of the called user")
	calleeID := flag.Int64("callee-id", 0, "user id of the called user")
	mode := flag.String("mode", "AUDIO", "call mode: AUDIO | VIDEO")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	if *callerToken == "" || *calleeToken == "" || *calleeID == 0 {
		return fmt.Errorf("--caller-token, --callee-token and --callee-id are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	caller, err := dial(ctx, *addr, *callerToken)
	if err != nil {
		return fmt.Errorf("dial caller: %w", err)
	}
	defer caller.Close(websocket.StatusNormalClosure, "bye")

	callee, err := dial(ctx, *addr, *calleeToken)
	if err != nil {
		return fmt.Errorf("dial callee: %w", err)
	}
	defer callee.Close(websocket.StatusNormalClosure, "bye")

	// Give the server a moment to register both connections.
	time.Sleep(200 * time.Millisecond)

	if err := send(ctx, caller, proto.InboundTypeInvite, proto.InviteData{
		CalleeID: *calleeID,
		Mode:     *mode,
		SDP:      "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n",
	}); err != nil {
		return err
	}

	var ring proto.EventRing
	if err := await(ctx, callee, "call:ring", &ring); err != nil {
		return err
	}
	fmt.Printf("ring: call=%s from=%d mode=%s\n", ring.CallID, ring.FromUserID, ring.Mode)

	if err := send(ctx, callee, proto.InboundTypeAnswer, proto.AnswerData{
		CallID: ring.CallID,
		Accept: true,
		SDP:    "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n",
	}); err != nil {
		return err
	}

	var answered proto.EventAnswered
	if err := await(ctx, caller, "call:answered", &answered); err != nil {
		return err
	}
	fmt.Printf("answered: call=%s\n", answered.CallID)

	if err := send(ctx, callee, proto.InboundTypeCandidate, proto.CandidateData{
		CallID:    ring.CallID,
		ToUserID:  ring.FromUserID,
		Candidate: json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 127.0.0.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}`),
	}); err != nil {
		return err
	}

	var cand proto.EventCandidate
	if err := await(ctx, caller, "call:candidate", &cand); err != nil {
		return err
	}
	fmt.Printf("candidate: call=%s from=%d\n", cand.CallID, cand.FromUserID)

	if err := send(ctx, caller, proto.InboundTypeHangup, proto.HangupData{CallID: ring.CallID}); err != nil {
		return err
	}

	var ended proto.EventCallID
	if err := await(ctx, callee, "call:ended", &ended); err != nil {
		return err
	}
	fmt.Printf("ended: call=%s\n", ended.CallID)
	return nil
}

func dial(ctx context.Context, addr, token string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr+"?token="+token, nil)
	return conn, err
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func await(ctx context.Context, conn *websocket.Conn, event string, into any) error {
	for {
		var msg received
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("read waiting for %s: %w", event, err)
		}
		if msg.Type == proto.OutboundTypeError && msg.Error != nil {
			return fmt.Errorf("server error while waiting for %s: %s %s", event, msg.Error.Code, msg.Error.Msg)
		}
		if msg.Event == "call:error" {
			return fmt.Errorf("call error while waiting for %s: %s", event, string(msg.Data))
		}
		if msg.Event != event {
			continue
		}
		if err := json.Unmarshal(msg.Data, into); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		return nil
	}
}
