package server

import (
	"errors"
	"regexp"
	"strings"

	"taskbridge/internal/api"
)

const (
	maxSummaryLength = 255
	maxLabelLength   = 255
)

var errNoUpdateFields = errors.New("no fields to update")

var taskKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

func validateTaskKey(key string) error {
	if !taskKeyRegex.MatchString(key) {
		return fieldError("taskKey", ErrCodeInvalidTaskKey, "invalid task key %q", key)
	}
	return nil
}

func validateCreateRequest(req api.TaskCreateRequest) error {
	if err := validateSummary(req.Summary); err != nil {
		return err
	}
	if labels, ok := req.Labels.Get(); ok {
		if err := validateLabels(labels); err != nil {
			return err
		}
	}
	// Non-numeric sprints are dropped by the mapper, oversized ids are not.
	if sprint, ok := req.Sprint.Get(); ok {
		if _, err := sprint.ID(); errors.Is(err, api.ErrSprintOutOfRange) {
			return sprintOutOfRange()
		}
	}
	return nil
}

func validateUpdateRequest(req api.TaskUpdateRequest) error {
	if updateRequestIsEmpty(req) {
		return badRequestCode(errNoUpdateFields, ErrCodeMissingRequired)
	}
	if !req.Summary.IsUnset() {
		summary, ok := req.Summary.Get()
		if !ok {
			return fieldError("summary", ErrCodeInvalidArgument, "summary cannot be cleared")
		}
		if err := validateSummary(summary); err != nil {
			return err
		}
	}
	if labels, ok := req.Labels.Get(); ok {
		if err := validateLabels(labels); err != nil {
			return err
		}
	}
	if sprint, ok := req.Sprint.Get(); ok {
		switch _, err := sprint.ID(); {
		case errors.Is(err, api.ErrSprintOutOfRange):
			return sprintOutOfRange()
		case err != nil:
			return fieldError("sprint", ErrCodeInvalidSprint, "sprint must be an integer or null")
		}
	}
	return nil
}

func updateRequestIsEmpty(req api.TaskUpdateRequest) bool {
	return req.Summary.IsUnset() && req.Description.IsUnset() && req.Labels.IsUnset() &&
		req.Assignee.IsUnset() && req.Priority.IsUnset() && req.Status.IsUnset() && req.Sprint.IsUnset()
}

func sprintOutOfRange() error {
	return fieldError("sprint", ErrCodeInvalidSprint, "sprint id is out of range (max %d)", int64(api.MaxSprintID))
}

func validateSummary(summary string) error {
	trimmed := strings.TrimSpace(summary)
	if trimmed == "" {
		return fieldError("summary", ErrCodeMissingRequired, "summary is required")
	}
	if len(summary) > maxSummaryLength {
		return fieldError("summary", ErrCodeInvalidArgument, "summary must be at most %d characters", maxSummaryLength)
	}
	return nil
}

// Jira rejects labels containing whitespace.
func validateLabels(labels []string) error {
	for _, label := range labels {
		if label == "" || len(label) > maxLabelLength || strings.ContainsAny(label, " \t\r\n") {
			return fieldError("labels", ErrCodeInvalidLabel, "invalid label %q", label)
		}
	}
	return nil
}
