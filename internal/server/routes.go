package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Session auth.
	mux.HandleFunc("POST /auth/login", s.handleAuthLogin)
	mux.Handle("POST /auth/logout", s.withAuth(http.HandlerFunc(s.handleAuthLogout)))
	mux.Handle("GET /auth/me", s.withAuth(http.HandlerFunc(s.handleAuthMe)))

	// Linked Jira account.
	mux.Handle("GET /jira/account", s.withAuth(http.HandlerFunc(s.handleGetAccount)))

	// Tasks.
	mux.Handle("GET /jira/tasks", s.jira(s.handleListTasks))
	mux.Handle("POST /jira/tasks", s.jira(s.handleCreateTask))
	mux.Handle("PUT /jira/tasks/{taskKey}", s.jira(s.handleUpdateTask))

	// Lookups.
	mux.Handle("GET /jira/users", s.jira(s.handleListUsers))
	mux.Handle("GET /jira/priorities", s.jira(s.handleListPriorities))
	mux.Handle("GET /jira/statuses", s.jira(s.handleListStatuses))
	mux.Handle("GET /jira/boards", s.jira(s.handleListBoards))
	mux.Handle("GET /jira/sprints", s.jira(s.handleListSprints))

	return mux
}

// jira wraps a proxy handler with authentication and the outbound
// concurrency limit.
func (s *Server) jira(handler http.HandlerFunc) http.Handler {
	return s.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.withLimiter(w, r, s.jiraLimiter, "jira", func() {
			handler(w, r)
		})
	}))
}
