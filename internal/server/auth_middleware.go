package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var errUnauthorized = errors.New("unauthorized")

// withAuth resolves a bearer token or session cookie into a principal and
// rejects the request when neither is valid.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, authType := sessionTokenFromRequest(r)
		if token == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(errUnauthorized))
			return
		}

		user, err := s.authService.AuthenticateSessionToken(r.Context(), token, time.Now().UTC())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(errUnauthorized))
			return
		}

		// Cookies ride along on cross-site requests; bearer tokens do not.
		if authType == authTypeSession && isUnsafeMethod(r.Method) && !sameOriginRequest(r) {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("cross-origin request rejected")))
			return
		}

		ctx := contextWithAuthPrincipal(r.Context(), authPrincipal{AuthType: authType, User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionTokenFromRequest(r *http.Request) (string, string) {
	if r == nil {
		return "", ""
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token, authTypeBearer
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, authTypeSession
		}
	}
	return "", ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// sameOriginRequest requires an Origin (or Referer) whose host matches the
// request host.
func sameOriginRequest(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		origin = strings.TrimSpace(r.Header.Get("Referer"))
	}
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	return strings.EqualFold(parsed.Host, r.Host)
}

func requestScheme(r *http.Request) string {
	if r == nil {
		return "http"
	}
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return "http"
}
