package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ErrSealerRequired is returned when credential storage is used without a sealer.
var ErrSealerRequired = errors.New("credential storage requires a secret key")

// Project keys are spliced into JQL, so only Jira's own key alphabet is accepted.
var projectKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// JiraAccount is one user's linked Jira Cloud site. APIToken holds the
// plaintext token only in memory; the database stores it sealed.
type JiraAccount struct {
	ID         string
	UserID     string
	SiteURL    string
	Email      string
	APIToken   string
	ProjectKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LogValue keeps the API token out of structured logs.
func (a JiraAccount) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", a.ID),
		slog.String("user_id", a.UserID),
		slog.String("site_url", a.SiteURL),
		slog.String("email", a.Email),
		slog.String("project_key", a.ProjectKey),
	)
}

// String keeps the API token out of %v formatting.
func (a JiraAccount) String() string {
	return fmt.Sprintf("JiraAccount{user=%s site=%s email=%s}", a.UserID, a.SiteURL, a.Email)
}

// JiraAccountInput describes a credential to link to a user.
type JiraAccountInput struct {
	UserID     string
	SiteURL    string
	Email      string
	APIToken   string
	ProjectKey string
}

// UpsertJiraAccount links (or relinks) a Jira account to a user, sealing the token.
func (s *Store) UpsertJiraAccount(ctx context.Context, input JiraAccountInput, now time.Time) (*JiraAccount, error) {
	if s.sealer == nil {
		return nil, ErrSealerRequired
	}

	input.UserID = strings.TrimSpace(input.UserID)
	input.SiteURL = strings.TrimRight(strings.TrimSpace(input.SiteURL), "/")
	input.Email = strings.TrimSpace(input.Email)
	input.ProjectKey = strings.ToUpper(strings.TrimSpace(input.ProjectKey))
	switch {
	case input.UserID == "":
		return nil, fmt.Errorf("user id is required")
	case input.SiteURL == "":
		return nil, fmt.Errorf("site url is required")
	case input.Email == "":
		return nil, fmt.Errorf("email is required")
	case strings.TrimSpace(input.APIToken) == "":
		return nil, fmt.Errorf("api token is required")
	case input.ProjectKey != "" && !projectKeyRegex.MatchString(input.ProjectKey):
		return nil, fmt.Errorf("invalid project key %q", input.ProjectKey)
	}

	sealed, err := s.sealer.Seal(input.APIToken, tokenBinding(input.UserID))
	if err != nil {
		return nil, fmt.Errorf("seal api token: %w", err)
	}

	accountID, err := generateAuthID("ja")
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jira_accounts (id, user_id, site_url, email, api_token, project_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		  site_url = excluded.site_url,
		  email = excluded.email,
		  api_token = excluded.api_token,
		  project_key = excluded.project_key,
		  updated_at = excluded.updated_at
	`, accountID, input.UserID, input.SiteURL, input.Email, sealed, nullableString(input.ProjectKey), dbFormatTime(now), dbFormatTime(now))
	if err != nil {
		return nil, err
	}

	return s.GetJiraAccount(ctx, input.UserID)
}

// GetJiraAccount returns the user's linked account with the token unsealed,
// or (nil, nil) when none is linked.
func (s *Store) GetJiraAccount(ctx context.Context, userID string) (*JiraAccount, error) {
	if s.sealer == nil {
		return nil, ErrSealerRequired
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, site_url, email, api_token, project_key, created_at, updated_at
		FROM jira_accounts
		WHERE user_id = ?
		LIMIT 1
	`, userID)

	account, sealed, err := scanJiraAccount(row)
	if err != nil || account == nil {
		return nil, err
	}

	token, err := s.sealer.Open(sealed, tokenBinding(userID))
	if err != nil {
		return nil, fmt.Errorf("open api token for user %s: %w", userID, err)
	}
	account.APIToken = token
	return account, nil
}

// DeleteJiraAccount unlinks the user's account.
func (s *Store) DeleteJiraAccount(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM jira_accounts WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListJiraAccounts returns all linked accounts without unsealing tokens.
func (s *Store) ListJiraAccounts(ctx context.Context) ([]JiraAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, site_url, email, api_token, project_key, created_at, updated_at
		FROM jira_accounts
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]JiraAccount, 0)
	for rows.Next() {
		account, _, err := scanJiraAccount(rows)
		if err != nil {
			return nil, err
		}
		if account == nil {
			continue
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func scanJiraAccount(scanner interface {
	Scan(dest ...any) error
}) (*JiraAccount, string, error) {
	var account JiraAccount
	var sealed string
	var projectKey sql.NullString
	var createdAt string
	var updatedAt string
	if err := scanner.Scan(&account.ID, &account.UserID, &account.SiteURL, &account.Email, &sealed, &projectKey, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	account.ProjectKey = projectKey.String

	parsedCreated, err := dbParseTime(createdAt)
	if err != nil {
		return nil, "", err
	}
	parsedUpdated, err := dbParseTime(updatedAt)
	if err != nil {
		return nil, "", err
	}
	account.CreatedAt = parsedCreated
	account.UpdatedAt = parsedUpdated
	return &account, sealed, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// tokenBinding ties a sealed token to the user row it was stored for.
func tokenBinding(userID string) string {
	return "jira_accounts.user_id=" + userID
}
