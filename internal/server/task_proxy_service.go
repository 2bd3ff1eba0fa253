package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"taskbridge/internal/api"
	"taskbridge/internal/config"
	"taskbridge/internal/jira"
	"taskbridge/internal/store"
)

const (
	msgFetchTasksFailed      = "Failed to fetch Jira tasks"
	msgCreateTaskFailed      = "Failed to create Jira task"
	msgUpdateTaskFailed      = "Failed to update Jira task"
	msgFetchUsersFailed      = "Failed to fetch assignable users"
	msgFetchPrioritiesFailed = "Failed to fetch priorities"
	msgFetchStatusesFailed   = "Failed to fetch statuses"
	msgFetchBoardsFailed     = "Failed to fetch boards"
	msgFetchSprintsFailed    = "Failed to fetch sprints"
)

var errAccountNotLinked = errors.New("Jira account not linked")

// jiraAPI is the subset of *jira.Client the proxy drives.
type jiraAPI interface {
	Search(ctx context.Context, jql string, fields []string) (json.RawMessage, error)
	CreateIssue(ctx context.Context, payload jira.IssuePayload) (json.RawMessage, error)
	UpdateIssue(ctx context.Context, key string, payload jira.IssuePayload) error
	AssignableUsers(ctx context.Context, projectKey string) (json.RawMessage, error)
	Priorities(ctx context.Context) (json.RawMessage, error)
	Statuses(ctx context.Context) (json.RawMessage, error)
	Boards(ctx context.Context) (json.RawMessage, error)
	Sprints(ctx context.Context, boardID int) (json.RawMessage, error)
}

type jiraClientFactory func(creds jira.Credentials) jiraAPI

// TaskProxyService runs one Jira call per logical operation and decides the
// wording of every user-visible failure.
type TaskProxyService struct {
	settings  config.JiraConfig
	newClient jiraClientFactory
	logger    *slog.Logger
}

func NewTaskProxyService(settings config.JiraConfig, logger *slog.Logger) *TaskProxyService {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &TaskProxyService{settings: settings, logger: logger.With("component", "proxy")}
	svc.newClient = func(creds jira.Credentials) jiraAPI {
		return jira.NewClient(creds,
			jira.WithTimeout(settings.Timeout.Duration),
			jira.WithLogger(logger),
		)
	}
	return svc
}

// Scope resolves the project, issue type and sprint field for an account.
func (p *TaskProxyService) Scope(account *store.JiraAccount) jira.Scope {
	projectKey := p.settings.ProjectKey
	if account != nil && strings.TrimSpace(account.ProjectKey) != "" {
		projectKey = account.ProjectKey
	}
	return jira.Scope{
		ProjectKey:  projectKey,
		IssueType:   p.settings.IssueType,
		SprintField: p.settings.SprintField,
	}
}

func (p *TaskProxyService) ListTasks(ctx context.Context, account *store.JiraAccount) (json.RawMessage, error) {
	client, err := p.client(account)
	if err != nil {
		return nil, err
	}
	scope := p.Scope(account)
	fields := []string{jira.FieldSummary, jira.FieldAssignee, jira.FieldProject, jira.FieldStatus, jira.FieldCreated, jira.FieldPriority}
	if scope.SprintField != "" {
		fields = append(fields, scope.SprintField)
	}

	p.logger.Info("fetching jira tasks", "project", scope.ProjectKey)
	raw, err := client.Search(ctx, taskListJQL(scope.ProjectKey), fields)
	if err != nil {
		return nil, upstreamFailed(msgFetchTasksFailed, err)
	}
	return rawOr(raw, `{}`), nil
}

func (p *TaskProxyService) CreateTask(ctx context.Context, account *store.JiraAccount, req api.TaskCreateRequest) (json.RawMessage, error) {
	client, err := p.client(account)
	if err != nil {
		return nil, err
	}
	scope := p.Scope(account)
	if sprint, ok := req.Sprint.Get(); ok {
		if id, err := sprint.ID(); err != nil || id <= 0 {
			p.logger.Debug("dropping sprint on create", "project", scope.ProjectKey, "sprint", sprint.String())
		}
	}

	raw, err := client.CreateIssue(ctx, jira.ToCreatePayload(scope, req))
	if err != nil {
		return nil, upstreamFailed(msgCreateTaskFailed, err)
	}
	return rawOr(raw, `{}`), nil
}

func (p *TaskProxyService) UpdateTask(ctx context.Context, account *store.JiraAccount, key string, req api.TaskUpdateRequest) (api.TaskUpdateResponse, error) {
	client, err := p.client(account)
	if err != nil {
		return api.TaskUpdateResponse{}, err
	}
	plan := jira.ToUpdatePayload(p.Scope(account), key, req)
	if len(plan.Ignored) > 0 {
		p.logger.Warn("update fields not applied", "task", key, "ignored", plan.Ignored)
	}
	if len(plan.Payload.Fields) == 0 {
		p.logger.Info("nothing to send for update", "task", key)
		return api.TaskUpdateResponse{Success: true, IgnoredFields: plan.Ignored}, nil
	}

	if err := client.UpdateIssue(ctx, plan.Key, plan.Payload); err != nil {
		return api.TaskUpdateResponse{}, upstreamFailed(msgUpdateTaskFailed, err)
	}
	return api.TaskUpdateResponse{Success: true, IgnoredFields: plan.Ignored}, nil
}

func (p *TaskProxyService) ListAssignableUsers(ctx context.Context, account *store.JiraAccount) (json.RawMessage, error) {
	projectKey := p.Scope(account).ProjectKey
	return p.list(account, msgFetchUsersFailed, func(client jiraAPI) (json.RawMessage, error) {
		return client.AssignableUsers(ctx, projectKey)
	})
}

func (p *TaskProxyService) ListPriorities(ctx context.Context, account *store.JiraAccount) (json.RawMessage, error) {
	return p.list(account, msgFetchPrioritiesFailed, func(client jiraAPI) (json.RawMessage, error) {
		return client.Priorities(ctx)
	})
}

func (p *TaskProxyService) ListStatuses(ctx context.Context, account *store.JiraAccount) (json.RawMessage, error) {
	return p.list(account, msgFetchStatusesFailed, func(client jiraAPI) (json.RawMessage, error) {
		return client.Statuses(ctx)
	})
}

func (p *TaskProxyService) ListBoards(ctx context.Context, account *store.JiraAccount) (json.RawMessage, error) {
	return p.list(account, msgFetchBoardsFailed, func(client jiraAPI) (json.RawMessage, error) {
		return client.Boards(ctx)
	})
}

func (p *TaskProxyService) ListSprints(ctx context.Context, account *store.JiraAccount, boardID int) (json.RawMessage, error) {
	return p.list(account, msgFetchSprintsFailed, func(client jiraAPI) (json.RawMessage, error) {
		return client.Sprints(ctx, boardID)
	})
}

// list keeps "Jira returned nothing" (an empty list) apart from "the call
// failed" (an error).
func (p *TaskProxyService) list(account *store.JiraAccount, failureMessage string, call func(jiraAPI) (json.RawMessage, error)) (json.RawMessage, error) {
	client, err := p.client(account)
	if err != nil {
		return nil, err
	}
	raw, err := call(client)
	if err != nil {
		return nil, upstreamFailed(failureMessage, err)
	}
	return rawOr(raw, `[]`), nil
}

func (p *TaskProxyService) client(account *store.JiraAccount) (jiraAPI, error) {
	if account == nil {
		return nil, accountNotLinked()
	}
	if err := p.checkSiteURL(account.SiteURL); err != nil {
		return nil, makeAPIError(http.StatusPreconditionFailed, "account_invalid", ErrCodeAccountInvalid, err)
	}
	return p.newClient(jira.Credentials{
		SiteURL:  account.SiteURL,
		Email:    account.Email,
		APIToken: account.APIToken,
	}), nil
}

func (p *TaskProxyService) checkSiteURL(siteURL string) error {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("linked Jira site URL is invalid")
	}
	if parsed.Scheme != "https" && !(parsed.Scheme == "http" && p.settings.AllowInsecure) {
		return fmt.Errorf("linked Jira site must use https")
	}
	return nil
}

func taskListJQL(projectKey string) string {
	return fmt.Sprintf("project=%s ORDER BY priority DESC, created DESC", projectKey)
}

func rawOr(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}
