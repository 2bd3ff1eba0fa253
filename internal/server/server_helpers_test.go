package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"taskbridge/internal/api"
	internalauth "taskbridge/internal/auth"
	"taskbridge/internal/config"
	"taskbridge/internal/secret"
	"taskbridge/internal/store"
)

const testPassword = "password-123"

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   string
}

// fakeJira is an httptest-backed stand-in for a Jira Cloud site.
type fakeJira struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r recordedRequest) (int, string)
}

func newFakeJira(t *testing.T) *fakeJira {
	t.Helper()
	fj := &fakeJira{t: t, respond: func(recordedRequest) (int, string) { return http.StatusOK, `[]` }}
	fj.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		}
		fj.mu.Lock()
		fj.requests = append(fj.requests, rec)
		respond := fj.respond
		fj.mu.Unlock()

		status, payload := respond(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(fj.server.Close)
	return fj
}

func (f *fakeJira) setResponse(fn func(r recordedRequest) (int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

func (f *fakeJira) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// trackIssues makes the fake remember created issues and return them from
// search, newest last.
func (f *fakeJira) trackIssues(projectKey string) {
	var mu sync.Mutex
	issues := make([]map[string]any, 0)
	f.setResponse(func(r recordedRequest) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.Path == "/rest/api/3/issue":
			var payload struct {
				Fields map[string]any `json:"fields"`
			}
			if err := json.Unmarshal([]byte(r.Body), &payload); err != nil {
				return http.StatusBadRequest, `{"errorMessages":["malformed issue"]}`
			}
			n := len(issues) + 1
			issue := map[string]any{
				"id":     strconv.Itoa(10000 + n),
				"key":    fmt.Sprintf("%s-%d", projectKey, n),
				"fields": payload.Fields,
			}
			issues = append(issues, issue)
			body, _ := json.Marshal(map[string]any{"id": issue["id"], "key": issue["key"]})
			return http.StatusCreated, string(body)
		case r.Method == http.MethodGet && r.Path == "/rest/api/3/search":
			body, _ := json.Marshal(map[string]any{"issues": issues, "total": len(issues)})
			return http.StatusOK, string(body)
		default:
			return http.StatusNotFound, `{"errorMessages":["no such resource"]}`
		}
	})
}

type testEnv struct {
	t       *testing.T
	srv     *Server
	handler http.Handler
	store   *store.Store
	jira    *fakeJira
	user    *store.AuthUser
	token   string
	logs    *bytes.Buffer
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Jira.AllowInsecure = true
	cfg.Jira.Timeout = config.Duration{Duration: 2 * time.Second}
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	sealer, err := secret.NewSealer(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "taskbridge.db"), store.WithSealer(sealer))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := New("127.0.0.1:0", st, cfg, logger)
	env := &testEnv{
		t:       t,
		srv:     srv,
		handler: srv.Handler(),
		store:   st,
		jira:    newFakeJira(t),
		logs:    logs,
	}
	env.user = env.createUser("alice")
	env.token = env.login("alice")
	return env
}

func (e *testEnv) createUser(username string) *store.AuthUser {
	e.t.Helper()
	hash, err := internalauth.HashPassword(testPassword)
	if err != nil {
		e.t.Fatalf("hash password: %v", err)
	}
	user, err := e.store.CreateUser(context.Background(), username, hash, store.RoleMember, time.Now().UTC())
	if err != nil {
		e.t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *testEnv) login(username string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+testPassword+`"}`, "")
	if w.Code != http.StatusOK {
		e.t.Fatalf("login %s: expected 200, got %d (%s)", username, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		e.t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func (e *testEnv) linkAccount(projectKey string) *store.JiraAccount {
	e.t.Helper()
	account, err := e.store.UpsertJiraAccount(context.Background(), store.JiraAccountInput{
		UserID:     e.user.ID,
		SiteURL:    e.jira.server.URL,
		Email:      "alice@example.com",
		APIToken:   "jira-secret-token",
		ProjectKey: projectKey,
	}, time.Now().UTC())
	if err != nil {
		e.t.Fatalf("link account: %v", err)
	}
	return account
}

// do sends a request with the session token as a bearer token; pass an
// empty token to send it unauthenticated.
func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) authed(method, path, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(method, path, body, e.token)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int, what string) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("%s: expected status %d, got %d (%s)", what, want, w.Code, w.Body.String())
	}
}

func expectJSON(t *testing.T, want, got string) {
	t.Helper()
	var wantValue, gotValue any
	if err := json.Unmarshal([]byte(want), &wantValue); err != nil {
		t.Fatalf("decode expected JSON %q: %v", want, err)
	}
	if err := json.Unmarshal([]byte(got), &gotValue); err != nil {
		t.Fatalf("decode JSON %q: %v", got, err)
	}
	if !reflect.DeepEqual(wantValue, gotValue) {
		t.Fatalf("JSON mismatch\nwant: %s\n got: %s", want, got)
	}
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", w.Body.String(), err)
	}
	return resp
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
