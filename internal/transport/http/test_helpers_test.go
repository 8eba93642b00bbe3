package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/auth"
	"github.com/nortonjulian/chatforia-signal/internal/config"
	"github.com/nortonjulian/chatforia-signal/internal/core"
	"github.com/nortonjulian/chatforia-signal/internal/proto"
	"github.com/nortonjulian/chatforia-signal/internal/sealer"
	"github.com/nortonjulian/chatforia-signal/internal/store/sqlite"
)

type testEnv struct {
	ts       *httptest.Server
	jwt      *auth.JWTConfig
	store    *sqlite.SQLiteStore
	registry *core.Registry
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = "testsecret"
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	registry := core.NewRegistry()
	relay := core.NewRelay(st, registry, core.WithCandidateMembership(cfg.Calls.VerifyCandidateMembership))
	hub := core.NewHub(relay, registry, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	seal := sealer.NewService(2, &logger)
	t.Cleanup(func() { _ = seal.Close(context.Background()) })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}

	handler := NewHandler(Deps{Hub: hub, Calls: st, Sealer: seal, JWT: jwtConfig}, &cfg, &logger)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, jwt: jwtConfig, store: st, registry: registry}
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := auth.GenerateToken(e.jwt, userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, userID int64) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?token=" + e.token(t, userID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial user %d: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// wireEvent is an outbound envelope with its payload left raw.
type wireEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) wireEvent {
	t.Helper()

	for {
		var msg wireEvent
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if msg.Event == event || (event == proto.OutboundTypeError && msg.Type == proto.OutboundTypeError) {
			return msg
		}
	}
}

// waitOnline blocks until the hub has registered a connection of userID.
// Registration happens after the upgrade, so a freshly dialled peer can
// briefly miss fan-out.
func (e *testEnv) waitOnline(t *testing.T, userID int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.registry.Online(userID) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d never came online", userID)
}
