package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"taskbridge/internal/api"
	"taskbridge/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok"}
	if versioned, ok := s.store.(interface{ SchemaVersion() (int, error) }); ok {
		version, err := versioned.SchemaVersion()
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.SchemaVersion = version
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.AccountResponse{
		SiteURL:    account.SiteURL,
		Email:      account.Email,
		ProjectKey: s.proxy.Scope(account).ProjectKey,
		TokenSet:   account.APIToken != "",
		UpdatedAt:  account.UpdatedAt,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	raw, err := s.proxy.ListTasks(r.Context(), account)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req api.TaskCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if err := validateCreateRequest(req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	raw, err := s.proxy.CreateTask(r.Context(), account, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("taskKey"))
	if err := validateTaskKey(key); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req api.TaskUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if err := validateUpdateRequest(req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	resp, err := s.proxy.UpdateTask(r.Context(), account, key, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.proxyList(w, r, s.proxy.ListAssignableUsers)
}

func (s *Server) handleListPriorities(w http.ResponseWriter, r *http.Request) {
	s.proxyList(w, r, s.proxy.ListPriorities)
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	s.proxyList(w, r, s.proxy.ListStatuses)
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	s.proxyList(w, r, s.proxy.ListBoards)
}

func (s *Server) handleListSprints(w http.ResponseWriter, r *http.Request) {
	boardID, err := queryRequiredInt(r, "board_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	raw, err := s.proxy.ListSprints(r.Context(), account, boardID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

func (s *Server) proxyList(w http.ResponseWriter, r *http.Request, list func(context.Context, *store.JiraAccount) (json.RawMessage, error)) {
	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	raw, err := list(r.Context(), account)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, raw)
}

// requireAccount loads the caller's linked Jira account. It writes 412 when
// none is linked.
func (s *Server) requireAccount(w http.ResponseWriter, r *http.Request) (*store.JiraAccount, bool) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(errUnauthorized))
		return nil, false
	}
	account, err := s.store.GetJiraAccount(r.Context(), principal.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	if account == nil {
		s.writeErrorReq(w, r, http.StatusPreconditionFailed, accountNotLinked())
		return nil, false
	}
	return account, true
}
