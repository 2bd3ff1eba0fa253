package store

import (
	"context"
	"time"
)

// AuthUser is one locally provisioned user.
type AuthUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthStore is the persistence surface for users and sessions.
type AuthStore interface {
	CountEnabledUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, username, passwordHash, role string, now time.Time) (*AuthUser, error)
	GetUserByUsername(ctx context.Context, username string) (*AuthUser, error)
	GetUserByID(ctx context.Context, id string) (*AuthUser, error)
	ListUsers(ctx context.Context) ([]AuthUser, error)
	SetUserDisabled(ctx context.Context, username string, disabled bool, now time.Time) (*AuthUser, error)
	DeleteUser(ctx context.Context, username string) (bool, error)
	CreateSession(ctx context.Context, userID, tokenHash string, expiresAt, createdAt time.Time) error
	GetUserBySessionTokenHash(ctx context.Context, tokenHash string, now time.Time) (*AuthUser, error)
	RevokeSessionByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// CredentialStore is the read/write surface for per-user Jira credentials.
// GetJiraAccount returns (nil, nil) when the user has not linked an account.
type CredentialStore interface {
	GetJiraAccount(ctx context.Context, userID string) (*JiraAccount, error)
	UpsertJiraAccount(ctx context.Context, input JiraAccountInput, now time.Time) (*JiraAccount, error)
	DeleteJiraAccount(ctx context.Context, userID string) (bool, error)
	ListJiraAccounts(ctx context.Context) ([]JiraAccount, error)
}

var (
	_ AuthStore       = (*Store)(nil)
	_ CredentialStore = (*Store)(nil)
)
