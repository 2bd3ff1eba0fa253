package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ErrUsernameTaken is returned by CreateUser when the username already exists.
var ErrUsernameTaken = errors.New("username already exists")

const userColumns = `u.id, u.username, u.password_hash, u.role, u.disabled, u.created_at, u.updated_at`

// CountEnabledUsers returns the number of users able to log in.
func (s *Store) CountEnabledUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE disabled = 0`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateUser provisions a local user. An empty role means RoleMember.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, role string, now time.Time) (*AuthUser, error) {
	user := &AuthUser{
		Username:     normalizeAuthUsername(username),
		PasswordHash: passwordHash,
		Role:         strings.ToLower(strings.TrimSpace(role)),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if user.Role == "" {
		user.Role = RoleMember
	}
	switch {
	case user.Username == "":
		return nil, fmt.Errorf("username is required")
	case strings.TrimSpace(passwordHash) == "":
		return nil, fmt.Errorf("password hash is required")
	case user.Role != RoleAdmin && user.Role != RoleMember:
		return nil, fmt.Errorf("invalid role %q", role)
	}

	id, err := generateAuthID("au")
	if err != nil {
		return nil, err
	}
	user.ID = id

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, user.ID, user.Username, user.PasswordHash, user.Role, dbFormatTime(now), dbFormatTime(now))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, user.Username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername returns the user or (nil, nil) when unknown.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*AuthUser, error) {
	username = normalizeAuthUsername(username)
	if username == "" {
		return nil, nil
	}
	return s.queryUser(ctx, `FROM users u WHERE u.username = ?`, username)
}

// GetUserByID returns the user or (nil, nil) when unknown.
func (s *Store) GetUserByID(ctx context.Context, id string) (*AuthUser, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	return s.queryUser(ctx, `FROM users u WHERE u.id = ?`, id)
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]AuthUser, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]AuthUser, 0)
	for rows.Next() {
		user, err := scanAuthUser(rows)
		if err != nil {
			return nil, err
		}
		if user != nil {
			users = append(users, *user)
		}
	}
	return users, rows.Err()
}

// SetUserDisabled flips the disabled flag. Disabling also revokes the
// user's open sessions. Returns (nil, nil) for an unknown username.
func (s *Store) SetUserDisabled(ctx context.Context, username string, disabled bool, now time.Time) (*AuthUser, error) {
	username = normalizeAuthUsername(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE users SET disabled = ?, updated_at = ? WHERE username = ?`,
		boolToInt(disabled), dbFormatTime(now), username)
	if err != nil {
		return nil, err
	}
	if affected, err := result.RowsAffected(); err != nil || affected == 0 {
		return nil, err
	}

	if disabled {
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET revoked_at = ?
			WHERE revoked_at IS NULL
			  AND user_id = (SELECT id FROM users WHERE username = ?)
		`, dbFormatTime(now), username)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetUserByUsername(ctx, username)
}

// DeleteUser removes the user. Sessions and the linked Jira account go with it.
func (s *Store) DeleteUser(ctx context.Context, username string) (bool, error) {
	username = normalizeAuthUsername(username)
	if username == "" {
		return false, fmt.Errorf("username is required")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// CreateSession stores a session keyed by the hash of its bearer token.
func (s *Store) CreateSession(ctx context.Context, userID, tokenHash string, expiresAt, createdAt time.Time) error {
	userID = strings.TrimSpace(userID)
	tokenHash = strings.TrimSpace(tokenHash)
	if userID == "" || tokenHash == "" {
		return fmt.Errorf("user id and token hash are required")
	}

	id, err := generateAuthID("as")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, ?, NULL, ?)
	`, id, userID, tokenHash, dbFormatTime(expiresAt), dbFormatTime(createdAt))
	return err
}

// GetUserBySessionTokenHash resolves a live session to its enabled owner.
func (s *Store) GetUserBySessionTokenHash(ctx context.Context, tokenHash string, now time.Time) (*AuthUser, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, nil
	}
	return s.queryUser(ctx, `
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = ?
		  AND s.revoked_at IS NULL
		  AND s.expires_at > ?
		  AND u.disabled = 0
	`, tokenHash, dbFormatTime(now))
}

// RevokeSessionByTokenHash ends one session. Unknown hashes are ignored.
func (s *Store) RevokeSessionByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		dbFormatTime(revokedAt), tokenHash)
	return err
}

// PurgeExpiredSessions deletes expired and revoked sessions.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ? OR revoked_at IS NOT NULL`, dbFormatTime(now))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// queryUser selects a single user; from must alias the users table as u.
func (s *Store) queryUser(ctx context.Context, from string, args ...any) (*AuthUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` `+from+` LIMIT 1`, args...)
	return scanAuthUser(row)
}

func scanAuthUser(scanner interface {
	Scan(dest ...any) error
}) (*AuthUser, error) {
	var user AuthUser
	var disabled int
	var createdAt, updatedAt string
	err := scanner.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &disabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Disabled = disabled != 0
	if user.CreatedAt, err = dbParseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = dbParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func normalizeAuthUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// generateAuthID returns prefix-<uuidv7 hex>, which sorts by creation time.
func generateAuthID(prefix string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return prefix + "-" + strings.ReplaceAll(id.String(), "-", ""), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
