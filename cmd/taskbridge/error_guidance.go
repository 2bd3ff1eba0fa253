package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"taskbridge/internal/api"
	"taskbridge/internal/jira"
	"taskbridge/internal/secret"
	"taskbridge/internal/store"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: sign in with: taskbridge login <username> --password-stdin")
		case "forbidden":
			lines = append(lines, "hint: cookie sessions need a same-origin request; use a bearer token from the CLI.")
		case "account_not_linked":
			lines = append(lines, "hint: an admin can link your Jira account with: taskbridge account link <username>")
		case "account_invalid":
			lines = append(lines, "hint: relink the account with an https site URL, or set jira.allow_insecure for local testing.")
		case "resource_exhausted":
			if apiErr.RetryAfter > 0 {
				lines = append(lines, fmt.Sprintf("hint: too many failed logins; retry in %s.", apiErr.RetryAfter))
			} else {
				lines = append(lines, "hint: retry shortly or raise jira.max_concurrent.")
			}
		case "upstream_timeout":
			lines = append(lines, "hint: Jira did not answer in time; raise jira.timeout or retry.")
		}
		if apiErr.Code == "" && apiErr.Status < 500 {
			lines = append(lines, "hint: verify TASKBRIDGE_API_URL points to a taskbridge server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: the request failed server-side; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if failure, ok := jira.AsFailure(err); ok {
		switch {
		case failure.StatusCode == 401 || failure.StatusCode == 403:
			lines = append(lines, "hint: Jira rejected the credentials; create a new API token and relink the account.")
		case failure.Timeout():
			lines = append(lines, "hint: Jira did not answer in time; raise jira.timeout or retry.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, store.ErrUsernameTaken) {
		lines = append(lines, "hint: list existing users with: taskbridge user list")
		return uniqueLines(lines)
	}
	if errors.Is(err, secret.ErrKeyMissing) || errors.Is(err, store.ErrSealerRequired) {
		lines = append(lines, "hint: generate a key with: taskbridge secret keygen, then set TASKBRIDGE_SECRET_KEY or secret_key_file.")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase TASKBRIDGE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a taskbridge server is running at TASKBRIDGE_API_URL.",
			"hint: start it manually with: taskbridge srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
