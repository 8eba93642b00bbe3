package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/nortonjulian/chatforia-signal/internal/store"
)

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) seedCall(t *testing.T, id string, caller, callee int64, status store.CallStatus) {
	t.Helper()
	call := &store.Call{
		ID:        id,
		CallerID:  caller,
		CalleeID:  callee,
		Mode:      store.CallModeVideo,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateCall(context.Background(), call); err != nil {
		t.Fatalf("seed call: %v", err)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	env := startTestServer(t, nil)

	resp := env.do(t, http.MethodGet, "/api/calls/active", 0, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestGetCallParticipantOnly(t *testing.T) {
	env := startTestServer(t, nil)
	env.seedCall(t, "call-1", 7, 42, store.CallStatusInitiated)

	resp := env.do(t, http.MethodGet, "/api/calls/call-1", 42, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got CallResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "call-1" || got.CallerID != 7 || got.Status != "INITIATED" || got.AcceptedAt != nil {
		t.Fatalf("unexpected call %+v", got)
	}

	if resp := env.do(t, http.MethodGet, "/api/calls/call-1", 99, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/calls/missing", 7, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing call, got %d", resp.StatusCode)
	}
}

func TestListActiveCalls(t *testing.T) {
	env := startTestServer(t, nil)
	env.seedCall(t, "live", 7, 42, store.CallStatusInitiated)
	env.seedCall(t, "over", 7, 42, store.CallStatusEnded)
	env.seedCall(t, "other", 1, 2, store.CallStatusAnswered)

	resp := env.do(t, http.MethodGet, "/api/calls/active", 7, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Calls []CallResponse `json:"calls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Calls) != 1 || body.Calls[0].ID != "live" {
		t.Fatalf("unexpected active calls %+v", body.Calls)
	}
}

func TestSealKeys(t *testing.T) {
	env := startTestServer(t, nil)

	pubA, privA, _ := box.GenerateKey(rand.Reader)
	pubB, privB, _ := box.GenerateKey(rand.Reader)
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	resp := env.do(t, http.MethodPost, "/api/keys/seal", 7, SealRequest{
		Key: base64.StdEncoding.EncodeToString(key),
		Recipients: []SealRecipient{
			{UserID: 7, PublicKey: base64.StdEncoding.EncodeToString(pubA[:])},
			{UserID: 42, PublicKey: base64.StdEncoding.EncodeToString(pubB[:])},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body SealResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sealed) != 2 {
		t.Fatalf("expected 2 sealed keys, got %d", len(body.Sealed))
	}

	privs := map[int64][2]*[32]byte{7: {pubA, privA}, 42: {pubB, privB}}
	for _, s := range body.Sealed {
		sealed, err := base64.StdEncoding.DecodeString(s.SealedKey)
		if err != nil {
			t.Fatalf("decode sealed key: %v", err)
		}
		kp := privs[s.UserID]
		opened, ok := box.OpenAnonymous(nil, sealed, kp[0], kp[1])
		if !ok || !bytes.Equal(opened, key) {
			t.Fatalf("sealed key for user %d does not open", s.UserID)
		}
	}
}

func TestSealKeysRejectsBadInput(t *testing.T) {
	env := startTestServer(t, nil)
	pub, _, _ := box.GenerateKey(rand.Reader)

	cases := map[string]SealRequest{
		"short key": {
			Key:        base64.StdEncoding.EncodeToString([]byte("short")),
			Recipients: []SealRecipient{{UserID: 1, PublicKey: base64.StdEncoding.EncodeToString(pub[:])}},
		},
		"bad public key": {
			Key:        base64.StdEncoding.EncodeToString(make([]byte, 32)),
			Recipients: []SealRecipient{{UserID: 1, PublicKey: base64.StdEncoding.EncodeToString([]byte("xx"))}},
		},
		"not base64": {
			Key:        "!!!",
			Recipients: []SealRecipient{{UserID: 1, PublicKey: base64.StdEncoding.EncodeToString(pub[:])}},
		},
		"no recipients": {
			Key: base64.StdEncoding.EncodeToString(make([]byte, 32)),
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/keys/seal", 7, req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}
