package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskbridge/internal/api"
)

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		s.writeErrorReq(w, r, http.StatusNotImplemented, apiError{
			status:  http.StatusNotImplemented,
			code:    "not_implemented",
			errCode: ErrCodeNotImplemented,
			err:     fmt.Errorf("auth login not supported"),
		})
		return
	}

	var req api.AuthLoginRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	limiterKey := loginAttemptKey(req.Username, r)
	if wait := s.loginLimiter.RetryAfter(limiterKey, now); wait > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		s.writeErrorReq(w, r, http.StatusTooManyRequests, apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many login attempts; retry later"),
		})
		return
	}

	result, err := s.authService.Login(r.Context(), req.Username, req.Password, now)
	if err != nil {
		var apiErr apiError
		switch {
		case errors.Is(err, errInvalidCredentials):
			s.loginLimiter.RegisterFailure(limiterKey, now)
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(errInvalidCredentials))
		case errors.As(err, &apiErr):
			s.writeErrorReq(w, r, apiErr.status, apiErr)
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}
	s.loginLimiter.Reset(limiterKey)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    result.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.authService.SessionTTL() / time.Second),
		Expires:  result.ExpiresAt,
	})

	linked, err := s.accountLinked(r, result.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.log().Info("user logged in", "user", result.User.Username)
	s.writeJSON(w, http.StatusOK, api.AuthLoginResponse{
		AuthMeResponse: api.AuthMeResponse{
			Authenticated: true,
			Username:      result.User.Username,
			Role:          result.User.Role,
			AuthType:      authTypeSession,
			AccountLinked: linked,
		},
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := sessionTokenFromRequest(r)
	if token != "" {
		if err := s.authService.RevokeSessionToken(r.Context(), token, time.Now().UTC()); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(errUnauthorized))
		return
	}

	linked, err := s.accountLinked(r, principal.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AuthMeResponse{
		Authenticated: true,
		Username:      principal.User.Username,
		Role:          principal.User.Role,
		AuthType:      principal.AuthType,
		AccountLinked: linked,
	})
}

func (s *Server) accountLinked(r *http.Request, userID string) (bool, error) {
	account, err := s.store.GetJiraAccount(r.Context(), userID)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

func loginAttemptKey(username string, r *http.Request) string {
	user := strings.ToLower(strings.TrimSpace(username))
	if user == "" {
		user = "<empty>"
	}
	ip := requestClientIP(r)
	if ip == "" {
		ip = "<unknown>"
	}
	return ip + "|" + user
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}
