package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskbridge/internal/api"
)

func loginRequest(body, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	return req
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("expected session cookie on login response")
	return nil
}

func TestBrowserSessionLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler

	loginW := httptest.NewRecorder()
	h.ServeHTTP(loginW, loginRequest(`{"username":"alice","password":"password-123"}`, ""))
	if loginW.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d (%s)", loginW.Code, loginW.Body.String())
	}

	var loginResp api.AuthLoginResponse
	if err := json.Unmarshal(loginW.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if !loginResp.Authenticated || loginResp.Username != "alice" || loginResp.Token == "" {
		t.Fatalf("unexpected login response: %+v", loginResp)
	}
	if loginResp.AccountLinked {
		t.Fatal("expected account_linked=false before linking")
	}

	sessionCookie := sessionCookieFrom(t, loginW)
	if !sessionCookie.HttpOnly {
		t.Fatal("expected HttpOnly session cookie")
	}
	if sessionCookie.Value != loginResp.Token {
		t.Fatal("expected cookie and response token to match")
	}
	if sessionCookie.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Fatalf("expected cookie max-age of one day, got %d", sessionCookie.MaxAge)
	}

	env.linkAccount("")

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(sessionCookie)
	meW := httptest.NewRecorder()
	h.ServeHTTP(meW, meReq)
	if meW.Code != http.StatusOK {
		t.Fatalf("expected auth me 200, got %d (%s)", meW.Code, meW.Body.String())
	}

	var meResp api.AuthMeResponse
	if err := json.Unmarshal(meW.Body.Bytes(), &meResp); err != nil {
		t.Fatalf("decode auth me response: %v", err)
	}
	if !meResp.Authenticated || meResp.Username != "alice" {
		t.Fatalf("expected authenticated alice, got %+v", meResp)
	}
	if meResp.AuthType != authTypeSession {
		t.Fatalf("expected auth_type %q, got %q", authTypeSession, meResp.AuthType)
	}
	if !meResp.AccountLinked {
		t.Fatal("expected account_linked=true after linking")
	}

	logoutNoOriginReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutNoOriginReq.AddCookie(sessionCookie)
	logoutNoOriginW := httptest.NewRecorder()
	h.ServeHTTP(logoutNoOriginW, logoutNoOriginReq)
	if logoutNoOriginW.Code != http.StatusForbidden {
		t.Fatalf("expected logout without origin to be forbidden, got %d", logoutNoOriginW.Code)
	}

	logoutCrossOriginReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutCrossOriginReq.Header.Set("Origin", "https://evil.example")
	logoutCrossOriginReq.AddCookie(sessionCookie)
	logoutCrossOriginW := httptest.NewRecorder()
	h.ServeHTTP(logoutCrossOriginW, logoutCrossOriginReq)
	if logoutCrossOriginW.Code != http.StatusForbidden {
		t.Fatalf("expected cross-origin logout to be forbidden, got %d", logoutCrossOriginW.Code)
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.Header.Set("Origin", "http://example.com")
	logoutReq.AddCookie(sessionCookie)
	logoutW := httptest.NewRecorder()
	h.ServeHTTP(logoutW, logoutReq)
	if logoutW.Code != http.StatusNoContent {
		t.Fatalf("expected logout 204, got %d (%s)", logoutW.Code, logoutW.Body.String())
	}

	afterReq := httptest.NewRequest(http.MethodGet, "/jira/tasks", nil)
	afterReq.AddCookie(sessionCookie)
	afterW := httptest.NewRecorder()
	h.ServeHTTP(afterW, afterReq)
	if afterW.Code != http.StatusUnauthorized {
		t.Fatalf("expected tasks to be unauthorized after logout, got %d", afterW.Code)
	}
	if got := len(env.jira.recorded()); got != 0 {
		t.Fatalf("expected no jira calls, got %d", got)
	}
}

func TestBearerSessionSkipsOriginCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.authed(http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected auth me 200, got %d (%s)", w.Code, w.Body.String())
	}
	var meResp api.AuthMeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &meResp); err != nil {
		t.Fatalf("decode auth me response: %v", err)
	}
	if meResp.AuthType != authTypeBearer {
		t.Fatalf("expected auth_type %q, got %q", authTypeBearer, meResp.AuthType)
	}

	w = env.authed(http.MethodPost, "/auth/logout", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected bearer logout 204, got %d (%s)", w.Code, w.Body.String())
	}

	w = env.authed(http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked bearer token to be rejected, got %d", w.Code)
	}
}

func TestAuthMeRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/auth/me", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.ErrorCode != ErrCodeUnauthorized {
		t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"username":"alice","password":"wrong-password"}`,
		`{"username":"nobody","password":"password-123"}`,
	} {
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, loginRequest(body, ""))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected login 401 for %s, got %d (%s)", body, w.Code, w.Body.String())
		}
		if len(w.Result().Cookies()) != 0 {
			t.Fatal("failed login must not set a cookie")
		}
	}
}

func TestAuthLoginDisabledUser(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("bob")
	token := env.login("bob")

	if _, err := env.store.SetUserDisabled(context.Background(), "bob", true, time.Now().UTC()); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	w := env.do(http.MethodGet, "/auth/me", "", token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected disabled user session to be rejected, got %d", w.Code)
	}

	lw := httptest.NewRecorder()
	env.handler.ServeHTTP(lw, loginRequest(`{"username":"bob","password":"password-123"}`, ""))
	if lw.Code != http.StatusUnauthorized {
		t.Fatalf("expected disabled user login 401, got %d", lw.Code)
	}
}

func TestAuthLoginRateLimitedAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.srv.loginLimiter = newLoginRateLimiter(2, time.Minute, 10*time.Minute)

	for attempt := 1; attempt <= 2; attempt++ {
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, loginRequest(`{"username":"alice","password":"wrong-password"}`, "127.0.0.1:12345"))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d (%s)", attempt, w.Code, w.Body.String())
		}
	}

	blockedW := httptest.NewRecorder()
	env.handler.ServeHTTP(blockedW, loginRequest(`{"username":"alice","password":"password-123"}`, "127.0.0.1:12345"))
	if blockedW.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate-limited login to return 429, got %d (%s)", blockedW.Code, blockedW.Body.String())
	}

	if blockedW.Header().Get("Retry-After") != "600" {
		t.Fatalf("expected Retry-After 600, got %q", blockedW.Header().Get("Retry-After"))
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(blockedW.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.ErrorCode != ErrCodeResourceExhausted {
		t.Fatalf("expected error_code %d, got %d", ErrCodeResourceExhausted, errResp.ErrorCode)
	}

	otherW := httptest.NewRecorder()
	env.handler.ServeHTTP(otherW, loginRequest(`{"username":"alice","password":"password-123"}`, "127.0.0.2:12345"))
	if otherW.Code != http.StatusOK {
		t.Fatalf("expected a different client address to be unaffected, got %d", otherW.Code)
	}
}

func TestAuthLoginSuccessResetsRateLimiterState(t *testing.T) {
	env := newTestEnv(t)
	env.srv.loginLimiter = newLoginRateLimiter(2, time.Minute, 10*time.Minute)

	wrongW := httptest.NewRecorder()
	env.handler.ServeHTTP(wrongW, loginRequest(`{"username":"alice","password":"wrong-password"}`, "127.0.0.1:22334"))
	if wrongW.Code != http.StatusUnauthorized {
		t.Fatalf("expected first wrong login 401, got %d (%s)", wrongW.Code, wrongW.Body.String())
	}

	successW := httptest.NewRecorder()
	env.handler.ServeHTTP(successW, loginRequest(`{"username":"alice","password":"password-123"}`, "127.0.0.1:22334"))
	if successW.Code != http.StatusOK {
		t.Fatalf("expected successful login 200, got %d (%s)", successW.Code, successW.Body.String())
	}

	for attempt := 1; attempt <= 2; attempt++ {
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, loginRequest(`{"username":"alice","password":"wrong-password"}`, "127.0.0.1:22334"))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("post-reset attempt %d: expected 401, got %d (%s)", attempt, w.Code, w.Body.String())
		}
	}
}

func TestAuthLoginMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, loginRequest(`{"username":`, ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.ErrorCode != ErrCodeInvalidJSON {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidJSON, errResp.ErrorCode)
	}
}
