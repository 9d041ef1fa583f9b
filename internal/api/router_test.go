// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/relay/internal/engine"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/settings"
	ws "github.com/tomtom215/relay/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type testEnv struct {
	dir    string
	engine *engine.Engine
	hub    *ws.Hub
	srv    *httptest.Server
}

func newEnv(t *testing.T, mwCfg *ChiMiddlewareConfig) *testEnv {
	t.Helper()
	dir := t.TempDir()
	m, err := settings.New(dir, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Config{Settings: m, FetchTimeout: 5 * time.Second, TopGroupsLimit: 5})
	if err != nil {
		t.Fatal(err)
	}

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	stop := hub.Follow(eng)

	h := NewHandler(HandlerConfig{Engine: eng, WSHub: hub, Version: "test"})
	srv := httptest.NewServer(NewRouter(h, NewChiMiddleware(mwCfg)).Setup())
	t.Cleanup(func() {
		srv.Close()
		stop()
		cancel()
		<-done
	})
	return &testEnv{dir: dir, engine: eng, hub: hub, srv: srv}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			rd = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode, env
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

type snapshotBody struct {
	Contacts []struct {
		Email string `json:"email"`
	} `json:"contacts"`
	Groups      map[string][]string `json:"groups"`
	LastUpdated int64               `json:"lastUpdated"`
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestRouter_Contacts(t *testing.T) {
	env := newEnv(t, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"add", http.MethodPost, "/api/v1/contacts", map[string]string{"name": "Ada", "email": "Ada@X.io"}, http.StatusOK, ""},
		{"upsert same email", http.MethodPost, "/api/v1/contacts", map[string]string{"name": "Ada L", "email": "ada@x.io"}, http.StatusOK, ""},
		{"missing email", http.MethodPost, "/api/v1/contacts", map[string]string{"name": "Nobody"}, http.StatusBadRequest, ErrCodeValidation},
		{"unknown field", http.MethodPost, "/api/v1/contacts", `{"email":"a@b.io","shoeSize":9}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/contacts", `{"email":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"remove missing", http.MethodDelete, "/api/v1/contacts/ghost@x.io", nil, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, tt.method, tt.path, tt.body)
			if code != tt.wantCode || errCode(body) != tt.wantErr {
				t.Errorf("got %d %q, want %d %q", code, errCode(body), tt.wantCode, tt.wantErr)
			}
		})
	}

	code, body := env.do(t, http.MethodGet, "/api/v1/contacts", nil)
	if code != http.StatusOK || body.Meta == nil || body.Meta.Count == nil || *body.Meta.Count != 1 {
		t.Fatalf("list = %d %+v", code, body.Meta)
	}

	code, _ = env.do(t, http.MethodDelete, "/api/v1/contacts/ada@x.io", nil)
	if code != http.StatusOK {
		t.Errorf("delete = %d", code)
	}
	data, err := os.ReadFile(filepath.Join(env.dir, "contacts.json"))
	if err != nil || strings.Contains(string(data), "ada@x.io") {
		t.Errorf("contacts.json = %s (%v)", data, err)
	}
}

func TestRouter_Groups(t *testing.T) {
	env := newEnv(t, nil)

	if code, _ := env.do(t, http.MethodPost, "/api/v1/groups", GroupRequest{Name: "On Call"}); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if code, body := env.do(t, http.MethodPost, "/api/v1/groups", GroupRequest{Name: "On Call"}); code != http.StatusConflict || errCode(body) != ErrCodeConflict {
		t.Errorf("duplicate = %d %q", code, errCode(body))
	}
	if code, _ := env.do(t, http.MethodPost, "/api/v1/groups/On%20Call/members", MemberRequest{Email: "ada@x.io"}); code != http.StatusOK {
		t.Errorf("add member = %d", code)
	}
	if code, _ := env.do(t, http.MethodPut, "/api/v1/groups/On%20Call", RenameGroupRequest{NewName: "Ops"}); code != http.StatusOK {
		t.Errorf("rename = %d", code)
	}

	_, body := env.do(t, http.MethodGet, "/api/v1/data", nil)
	var snap snapshotBody
	decodeData(t, body, &snap)
	if got := snap.Groups["Ops"]; len(got) != 1 || got[0] != "ada@x.io" {
		t.Errorf("groups = %v", snap.Groups)
	}

	if code, _ := env.do(t, http.MethodDelete, "/api/v1/groups/Ops/members/ada@x.io", nil); code != http.StatusOK {
		t.Errorf("remove member = %d", code)
	}
	if code, _ := env.do(t, http.MethodDelete, "/api/v1/groups/Ops", nil); code != http.StatusOK {
		t.Errorf("remove group = %d", code)
	}
	if code, _ := env.do(t, http.MethodDelete, "/api/v1/groups/Ops", nil); code != http.StatusNotFound {
		t.Errorf("remove again = %d", code)
	}
}

func TestRouter_ImportLocalFile(t *testing.T) {
	env := newEnv(t, nil)
	src := filepath.Join(t.TempDir(), "servers.csv")
	if err := os.WriteFile(src, []byte("name,businessArea\nweb-01,Retail\nweb-02,Retail\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, body := env.do(t, http.MethodPost, "/api/v1/import/servers", ImportRequest{Source: src})
	if code != http.StatusOK {
		t.Fatalf("import = %d %+v", code, body.Error)
	}
	var res struct {
		Imported int    `json:"imported"`
		State    string `json:"state"`
	}
	decodeData(t, body, &res)
	if res.Imported != 2 || res.State != "completed" {
		t.Errorf("result = %+v", res)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/import/servers", ImportRequest{Source: filepath.Join(t.TempDir(), "missing.csv")})
	if code != http.StatusUnprocessableEntity || errCode(body) != ErrCodeImportFailed {
		t.Errorf("missing file = %d %q", code, errCode(body))
	}
	code, body = env.do(t, http.MethodPost, "/api/v1/import/widgets", ImportRequest{Source: src})
	if code != http.StatusBadRequest || errCode(body) != ErrCodeValidation {
		t.Errorf("unknown kind = %d %q", code, errCode(body))
	}

	code, body = env.do(t, http.MethodGet, "/api/v1/import/jobs?limit=5", nil)
	if code != http.StatusOK || body.Meta.Count == nil || *body.Meta.Count != 2 {
		t.Errorf("jobs = %d %+v", code, body.Meta)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/v1/import/jobs?limit=0", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", code)
	}
}

func TestRouter_ImportAuthCycle(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "s3cret" {
			w.Header().Set("WWW-Authenticate", `Basic realm="Directory"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("name,email\nAda,ada@x.io\n"))
	}))
	defer upstream.Close()

	env := newEnv(t, nil)
	source := upstream.URL + "/contacts.csv"

	code, body := env.do(t, http.MethodPost, "/api/v1/import/contacts", ImportRequest{Source: source})
	if code != http.StatusAccepted {
		t.Fatalf("import = %d %+v", code, body.Error)
	}
	var res struct {
		Token string `json:"token"`
		State string `json:"state"`
	}
	decodeData(t, body, &res)
	if res.Token == "" || res.State != "awaiting_auth" {
		t.Fatalf("result = %+v", res)
	}

	if code, body := env.do(t, http.MethodGet, "/api/v1/auth/pending", nil); code != http.StatusOK || *body.Meta.Count != 1 {
		t.Errorf("pending = %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/v1/auth/not-a-token/submit", SubmitAuthRequest{Username: "svc", Password: "s3cret"}); code != http.StatusNotFound {
		t.Errorf("unknown token = %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/v1/auth/next/submit", map[string]string{"password": "x"}); code != http.StatusBadRequest {
		t.Errorf("missing username = %d", code)
	}

	code, body = env.do(t, http.MethodPost, "/api/v1/auth/"+res.Token+"/submit", SubmitAuthRequest{Username: "svc", Password: "s3cret"})
	if code != http.StatusOK {
		t.Fatalf("submit = %d %+v", code, body.Error)
	}
	if got := len(env.engine.Snapshot().Contacts); got != 1 {
		t.Errorf("contacts after import = %d", got)
	}
}

func TestRouter_DataPath(t *testing.T) {
	env := newEnv(t, nil)
	other := t.TempDir()

	code, body := env.do(t, http.MethodPut, "/api/v1/settings/data-path", DataPathRequest{Path: filepath.Join(other, "nope")})
	if code != http.StatusBadRequest || errCode(body) != ErrCodeValidation {
		t.Errorf("invalid path = %d %q", code, errCode(body))
	}
	if env.engine.GetDataPath() != env.dir {
		t.Error("rejected path changed the data root")
	}

	if code, _ := env.do(t, http.MethodPut, "/api/v1/settings/data-path", DataPathRequest{Path: other}); code != http.StatusOK {
		t.Errorf("change = %d", code)
	}
	_, body = env.do(t, http.MethodGet, "/api/v1/settings/data-path", nil)
	var got map[string]string
	decodeData(t, body, &got)
	if got["path"] != other {
		t.Errorf("path = %v", got)
	}
	if code, _ := env.do(t, http.MethodDelete, "/api/v1/settings/data-path", nil); code != http.StatusOK {
		t.Errorf("reset = %d", code)
	}
}

func TestRouter_Reports(t *testing.T) {
	env := newEnv(t, nil)

	if code, _ := env.do(t, http.MethodPost, "/api/v1/bridges", BridgeRequest{Groups: []string{"Ops"}}); code != http.StatusCreated {
		t.Fatalf("record = %d", code)
	}
	if code, body := env.do(t, http.MethodPost, "/api/v1/bridges", BridgeRequest{}); code != http.StatusBadRequest || errCode(body) != ErrCodeValidation {
		t.Errorf("empty bridge = %d %q", code, errCode(body))
	}

	_, body := env.do(t, http.MethodGet, "/api/v1/reports", nil)
	var sum struct {
		BridgesLast7d int `json:"bridgesLast7d"`
	}
	decodeData(t, body, &sum)
	if sum.BridgesLast7d != 1 {
		t.Errorf("summary = %s", body.Data)
	}
	if code, _ := env.do(t, http.MethodDelete, "/api/v1/reports", nil); code != http.StatusNoContent {
		t.Errorf("reset = %d", code)
	}
}

func TestRouter_WeatherWithoutProvider(t *testing.T) {
	env := newEnv(t, nil)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/api/v1/weather?lat=52.52&lon=13.40", http.StatusOK},
		{"/api/v1/weather?lat=abc&lon=13.40", http.StatusBadRequest},
		{"/api/v1/weather?lat=95&lon=13.40", http.StatusBadRequest},
		{"/api/v1/locations?q=Berlin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if code, _ := env.do(t, http.MethodGet, tt.path, nil); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestRouter_HealthAndReload(t *testing.T) {
	env := newEnv(t, nil)

	if code, _ := env.do(t, http.MethodGet, "/api/v1/health/ready", nil); code != http.StatusServiceUnavailable {
		t.Errorf("ready before load = %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/v1/data/reload", nil); code != http.StatusOK {
		t.Errorf("reload = %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/v1/health/ready", nil); code != http.StatusOK {
		t.Errorf("ready after load = %d", code)
	}

	code, body := env.do(t, http.MethodGet, "/api/v1/health", nil)
	var health HealthStatus
	decodeData(t, body, &health)
	if code != http.StatusOK || health.Status != "healthy" || health.Version != "test" {
		t.Errorf("health = %d %+v", code, health)
	}

	if code, body := env.do(t, http.MethodGet, "/api/v1/nothing-here", nil); code != http.StatusNotFound || errCode(body) != ErrCodeNotFound {
		t.Errorf("unknown route = %d %q", code, errCode(body))
	}

	resp, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	metricsBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(metricsBody), "relay_api_requests_total") {
		t.Errorf("metrics = %d", resp.StatusCode)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	env := newEnv(t, cfg)

	for i := 0; i < 2; i++ {
		if code, _ := env.do(t, http.MethodGet, "/api/v1/data", nil); code != http.StatusOK {
			t.Fatalf("request %d = %d", i, code)
		}
	}
	code, body := env.do(t, http.MethodGet, "/api/v1/data", nil)
	if code != http.StatusTooManyRequests || errCode(body) != ErrCodeTooManyRequests {
		t.Errorf("third request = %d %q", code, errCode(body))
	}
	// health is outside the limited group
	if code, _ := env.do(t, http.MethodGet, "/api/v1/health/live", nil); code != http.StatusOK {
		t.Errorf("health = %d", code)
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.MaxBodyBytes = 64
	env := newEnv(t, cfg)

	big := `{"name":"` + strings.Repeat("x", 200) + `","email":"a@b.io"}`
	if code, _ := env.do(t, http.MethodPost, "/api/v1/contacts", big); code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body = %d", code)
	}
}

func TestRouter_WebSocketStream(t *testing.T) {
	env := newEnv(t, nil)
	if err := env.engine.ReloadData(context.Background()); err != nil {
		t.Fatal(err)
	}

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() ws.Message {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != ws.MessageTypeData {
		t.Fatalf("first message = %q", msg.Type)
	}

	deadline := time.Now().Add(time.Second)
	for env.hub.GetClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if code, _ := env.do(t, http.MethodPost, "/api/v1/groups", GroupRequest{Name: "Ops"}); code != http.StatusCreated {
		t.Fatalf("create group = %d", code)
	}
	msg := read()
	if msg.Type != ws.MessageTypeData {
		t.Fatalf("update message = %q", msg.Type)
	}
	groups, _ := msg.Data.(map[string]any)["groups"].(map[string]any)
	if _, ok := groups["Ops"]; !ok {
		t.Errorf("update = %v", msg.Data)
	}
}

func TestRouter_WebSocketOrigin(t *testing.T) {
	env := newEnv(t, nil)
	h := NewHandler(HandlerConfig{Engine: env.engine, WSHub: env.hub, CORSOrigins: []string{"http://localhost:4173"}})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:4173", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkWebSocketOrigin(req); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}
