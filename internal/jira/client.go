package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds each outbound call unless overridden.
	DefaultTimeout = 30 * time.Second

	assignableUsersPageSize = 50
	maxResponseBytes        = 16 << 20
)

// Credentials identify one Jira Cloud site and the user acting on it.
type Credentials struct {
	SiteURL  string
	Email    string
	APIToken string
}

// Client talks to a single Jira Cloud site on behalf of one user.
type Client struct {
	baseURL string
	header  http.Header
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for boundary logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client with its auth headers computed once.
func NewClient(creds Credentials, opts ...Option) *Client {
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds.Email+":"+creds.APIToken)))
	header.Set("Accept", "application/json")
	header.Set("Content-Type", "application/json")

	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(creds.SiteURL), "/"),
		header:  header,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "jira", "site", c.baseURL)
	return c
}

// Search runs a JQL query and returns the search result page.
func (c *Client) Search(ctx context.Context, jql string, fields []string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("jql", jql)
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}
	return c.do(ctx, http.MethodGet, "/rest/api/3/search", query, nil)
}

// CreateIssue creates an issue and returns Jira's created-issue representation.
func (c *Client) CreateIssue(ctx context.Context, payload IssuePayload) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue", nil, payload)
}

// UpdateIssue edits an issue. Jira answers 204 with no body.
func (c *Client) UpdateIssue(ctx context.Context, key string, payload IssuePayload) error {
	_, err := c.do(ctx, http.MethodPut, "/rest/api/3/issue/"+url.PathEscape(key), nil, payload)
	return err
}

// AssignableUsers lists users who can be assigned issues in the project.
func (c *Client) AssignableUsers(ctx context.Context, projectKey string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("project", projectKey)
	query.Set("maxResults", strconv.Itoa(assignableUsersPageSize))
	return c.do(ctx, http.MethodGet, "/rest/api/3/user/assignable/search", query, nil)
}

func (c *Client) Priorities(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/rest/api/3/priority", nil, nil)
}

func (c *Client) Statuses(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/rest/api/3/status", nil, nil)
}

func (c *Client) Boards(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/rest/agile/1.0/board", nil, nil)
}

func (c *Client) Sprints(ctx context.Context, boardID int) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/rest/agile/1.0/board/"+strconv.Itoa(boardID)+"/sprint", nil, nil)
}

// Myself returns the user the credentials belong to.
func (c *Client) Myself(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/rest/api/3/myself", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode jira payload: %w", err)
		}
		payload = encoded
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Method: method, URL: endpoint, Err: err}
	}
	req.Header = c.header.Clone()

	c.logger.Debug("jira request", "method", method, "url", endpoint, "payload", string(payload))
	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		failure := transportFailure(method, endpoint, err)
		c.logger.Error("jira request failed", "method", method, "url", endpoint, "kind", failure.Kind, "error", err)
		return nil, failure
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		failure := transportFailure(method, endpoint, err)
		c.logger.Error("jira response read failed", "method", method, "url", endpoint, "kind", failure.Kind, "error", err)
		return nil, failure
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("jira request failed",
			"method", method,
			"url", endpoint,
			"status", resp.StatusCode,
			"body", string(data),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil, &Failure{Kind: FailureStatus, Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		c.logger.Debug("jira request succeeded", "method", method, "url", endpoint, "status", resp.StatusCode)
		return nil, nil
	}
	if !json.Valid(trimmed) {
		c.logger.Error("jira response is not json", "method", method, "url", endpoint, "status", resp.StatusCode, "body", string(data))
		return nil, &Failure{
			Kind:       FailureDecode,
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        fmt.Errorf("invalid json response"),
		}
	}

	c.logger.Debug("jira request succeeded",
		"method", method,
		"url", endpoint,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return json.RawMessage(trimmed), nil
}
