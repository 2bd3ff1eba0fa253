package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	internalauth "taskbridge/internal/auth"
	"taskbridge/internal/store"
)

const (
	sessionCookieName = "taskbridge_session"
	authTypeBearer    = "bearer"
	authTypeSession   = "session"
)

var errInvalidCredentials = errors.New("invalid credentials")

// AuthService encapsulates login and session operations backed by the store.
type AuthService struct {
	store      store.AuthStore
	sessionTTL time.Duration
}

type authLoginResult struct {
	User      *store.AuthUser
	Token     string
	ExpiresAt time.Time
}

func NewAuthService(authStore store.AuthStore, sessionTTL time.Duration) *AuthService {
	if authStore == nil {
		return nil
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{store: authStore, sessionTTL: sessionTTL}
}

func (a *AuthService) SessionTTL() time.Duration {
	if a == nil {
		return 0
	}
	return a.sessionTTL
}

func (a *AuthService) Login(ctx context.Context, username, password string, now time.Time) (*authLoginResult, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("auth store is required")
	}

	normalized, err := internalauth.NormalizeUsername(username)
	if err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidArgument)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fieldError("password", ErrCodeMissingRequired, "password is required")
	}

	user, err := a.store.GetUserByUsername(ctx, normalized)
	if err != nil {
		return nil, err
	}
	var storedHash string
	if user != nil && !user.Disabled {
		storedHash = user.PasswordHash
	}
	if !internalauth.VerifyPassword(storedHash, password) {
		return nil, errInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(a.sessionTTL)
	if err := a.store.CreateSession(ctx, user.ID, hashSessionToken(token), expiresAt, now); err != nil {
		return nil, err
	}

	return &authLoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// AuthenticateSessionToken returns the session's user, or nil when the token
// is unknown, expired, revoked, or belongs to a disabled user.
func (a *AuthService) AuthenticateSessionToken(ctx context.Context, token string, now time.Time) (*store.AuthUser, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	user, err := a.store.GetUserBySessionTokenHash(ctx, hashSessionToken(token), now)
	if err != nil || user == nil {
		return nil, err
	}
	if user.Disabled {
		return nil, nil
	}
	return user, nil
}

func (a *AuthService) RevokeSessionToken(ctx context.Context, token string, now time.Time) error {
	if a == nil || a.store == nil {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return a.store.RevokeSessionByTokenHash(ctx, hashSessionToken(token), now)
}

// PurgeExpiredSessions deletes sessions that can no longer authenticate.
func (a *AuthService) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if a == nil || a.store == nil {
		return 0, nil
	}
	return a.store.PurgeExpiredSessions(ctx, now)
}

func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
