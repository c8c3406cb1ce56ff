// internal/console/server_test.go
package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/agentdeck/internal/auth"
	"github.com/user/agentdeck/internal/state"
	"github.com/user/agentdeck/internal/types"
	"github.com/user/agentdeck/pkg/agent"
)

type staticMetrics struct {
	snapshot types.Metrics
}

func (s staticMetrics) Snapshot() types.Metrics { return s.snapshot }

type serverFixture struct {
	srv      *Server
	prompts  *state.PromptCatalog
	sessions *state.SessionStore
	relay    *mockRelay
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	prompts := state.NewPromptCatalog()
	sessions, err := state.NewSessionStore(prompts, state.NullPersister{})
	if err != nil {
		t.Fatal(err)
	}
	relay := &mockRelay{state: agent.Connected}
	chat := NewChat(sessions, relay)
	metrics := staticMetrics{snapshot: types.Metrics{
		AvgFirstTokenLatencyMs: 120,
		AvgTokensPerSec:        25.5,
		ErrorRatePct:           0.7,
	}}

	return &serverFixture{
		srv:      NewServer(auth.NewGate(false), prompts, sessions, chat, metrics),
		prompts:  prompts,
		sessions: sessions,
		relay:    relay,
	}
}

// do issues an authenticated request against the fixture's server.
func (f *serverFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "token"})
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	f := setupServer(t)

	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestLoginIssuesCookie(t *testing.T) {
	f := setupServer(t)

	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		UserID  string `json:"userId"`
	}
	decodeBody(t, w, &resp)
	if !resp.Success || resp.UserID == "" {
		t.Errorf("unexpected login response: %+v", resp)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.CookieName {
		t.Errorf("credential cookie not set: %v", cookies)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/auth/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookie not expired: %v", cookies)
	}
}

func TestAPIRequiresCredential(t *testing.T) {
	f := setupServer(t)

	for _, path := range []string{"/prompts", "/sessions", "/metrics"} {
		w := httptest.NewRecorder()
		f.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without credential: expected 401, got %d", path, w.Code)
		}
	}
}

func TestPromptCRUD(t *testing.T) {
	f := setupServer(t)

	// Create
	w := f.do(http.MethodPost, "/prompts", `{"title":"Greeter","body":"Say hello.","tags":["greeting"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Prompt *types.Prompt `json:"prompt"`
	}
	decodeBody(t, w, &created)
	if created.Prompt.Title != "Greeter" || len(created.Prompt.Versions) != 1 {
		t.Errorf("unexpected created prompt: %+v", created.Prompt)
	}
	id := string(created.Prompt.ID)

	// Get
	w = f.do(http.MethodGet, "/prompts/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// Update the body: version appended
	w = f.do(http.MethodPut, "/prompts/"+id, `{"body":"Say hello warmly."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated struct {
		Prompt *types.Prompt `json:"prompt"`
	}
	decodeBody(t, w, &updated)
	if len(updated.Prompt.Versions) != 2 {
		t.Errorf("expected 2 versions, got %d", len(updated.Prompt.Versions))
	}

	// Delete
	w = f.do(http.MethodDelete, "/prompts/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = f.do(http.MethodDelete, "/prompts/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for repeat delete, got %d", w.Code)
	}
}

func TestPromptValidationResponse(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/prompts", `{"title":"","body":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	decodeBody(t, w, &resp)
	if resp.Error != "Invalid input" {
		t.Errorf("unexpected error: %s", resp.Error)
	}
	if resp.Details["title"] == "" {
		t.Errorf("expected title detail, got %v", resp.Details)
	}
}

func TestPromptNotFound(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/prompts/prompt_missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPromptSearch(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	if _, err := f.prompts.Create(ctx, "Customer Support", "Be polite.", []string{"support"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.prompts.Create(ctx, "Code Review", "Review code.", []string{"code"}); err != nil {
		t.Fatal(err)
	}

	w := f.do(http.MethodGet, "/prompts?q=customer", "")
	var resp struct {
		Prompts []*types.Prompt `json:"prompts"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Prompts) != 1 || resp.Prompts[0].Title != "Customer Support" {
		t.Errorf("unexpected search result: %+v", resp.Prompts)
	}

	w = f.do(http.MethodGet, "/prompts?tags=code,nope", "")
	resp.Prompts = nil
	decodeBody(t, w, &resp)
	if len(resp.Prompts) != 1 || resp.Prompts[0].Title != "Code Review" {
		t.Errorf("unexpected tag result: %+v", resp.Prompts)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	p, err := f.prompts.Create(ctx, "Greeter", "Say hello.", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Create
	w := f.do(http.MethodPost, "/sessions", `{"promptId":"`+string(p.ID)+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Session *types.Session `json:"session"`
	}
	decodeBody(t, w, &created)
	if created.Session.PromptSnapshot.Body != "Say hello." {
		t.Errorf("snapshot missing: %+v", created.Session.PromptSnapshot)
	}
	id := string(created.Session.ID)

	// List
	w = f.do(http.MethodGet, "/sessions", "")
	var list struct {
		Sessions []*types.Session `json:"sessions"`
	}
	decodeBody(t, w, &list)
	if len(list.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(list.Sessions))
	}

	// Append a message directly
	w = f.do(http.MethodPost, "/sessions/"+id+"/messages", `{"role":"user","text":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Get
	w = f.do(http.MethodGet, "/sessions/"+id, "")
	var got struct {
		Session *types.Session `json:"session"`
	}
	decodeBody(t, w, &got)
	if len(got.Session.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(got.Session.Messages))
	}

	// Delete
	w = f.do(http.MethodDelete, "/sessions/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = f.do(http.MethodGet, "/sessions/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestSessionCreateRejectsBadPrompt(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/sessions", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing promptId, got %d", w.Code)
	}

	w = f.do(http.MethodPost, "/sessions", `{"promptId":"prompt_missing"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown prompt, got %d", w.Code)
	}
}

func TestSendMessage(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	p, _ := f.prompts.Create(ctx, "Greeter", "Say hello.", nil)
	sess, _ := f.sessions.Create(ctx, p.ID)

	w := f.do(http.MethodPost, "/sessions/"+string(sess.ID)+"/send", `{"text":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Session *types.Session `json:"session"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Session.Messages) != 1 || resp.Session.Messages[0].Text != "hi" {
		t.Errorf("unexpected session: %+v", resp.Session.Messages)
	}
	if len(f.relay.starts) != 1 {
		t.Errorf("expected 1 start frame, got %d", len(f.relay.starts))
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()
	f.relay.state = agent.Disconnected

	p, _ := f.prompts.Create(ctx, "Greeter", "Say hello.", nil)
	sess, _ := f.sessions.Create(ctx, p.ID)

	w := f.do(http.MethodPost, "/sessions/"+string(sess.ID)+"/send", `{"text":"hi"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["error"] != "Agent channel disconnected" {
		t.Errorf("unexpected error body: %v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var m types.Metrics
	decodeBody(t, w, &m)
	if m.AvgFirstTokenLatencyMs != 120 || m.AvgTokensPerSec != 25.5 || m.ErrorRatePct != 0.7 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestPageRedirects(t *testing.T) {
	f := setupServer(t)

	// Entry page with a credential redirects into the console
	w := f.do(http.MethodGet, "/", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/console" {
		t.Errorf("expected redirect to /console, got %d %s", w.Code, w.Header().Get("Location"))
	}

	// Console without a credential redirects back out
	w = httptest.NewRecorder()
	f.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/console", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Errorf("expected redirect to /, got %d %s", w.Code, w.Header().Get("Location"))
	}

	// And each serves its page otherwise
	w = httptest.NewRecorder()
	f.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 entry page, got %d", w.Code)
	}
	w = f.do(http.MethodGet, "/console", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 console page, got %d", w.Code)
	}
}
