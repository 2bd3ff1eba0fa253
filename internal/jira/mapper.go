package jira

import (
	"strings"

	"taskbridge/internal/api"
)

// Scope carries the per-request settings the mapper needs: which project new
// issues land in, their issue type, and the custom field holding the sprint.
type Scope struct {
	ProjectKey  string
	IssueType   string
	SprintField string
}

// UpdatePlan is the result of mapping a partial task onto an edit request.
type UpdatePlan struct {
	Key     string
	Payload IssuePayload
	// Ignored lists accepted input fields that have no field-level mapping.
	Ignored []string
}

// ToCreatePayload maps a new task onto an issue create request. Optional
// fields that resolve to nothing are left out; status is never sent since
// Jira does not accept it at creation time.
func ToCreatePayload(scope Scope, task api.TaskCreateRequest) IssuePayload {
	fields := Fields{
		FieldProject:   ProjectRef{Key: scope.ProjectKey},
		FieldSummary:   task.Summary,
		FieldIssueType: IssueTypeRef{Name: scope.IssueType},
	}

	if description, ok := task.Description.Get(); ok {
		fields[FieldDescription] = PlainDocument(description)
	}
	if labels, ok := task.Labels.Get(); ok {
		fields[FieldLabels] = nonNilLabels(labels)
	}
	if assignee, ok := task.Assignee.Get(); ok && strings.TrimSpace(assignee.AccountID) != "" {
		fields[FieldAssignee] = AccountRef{AccountID: assignee.AccountID}
	}
	if priority, ok := task.Priority.Get(); ok && strings.TrimSpace(priority) != "" {
		fields[FieldPriority] = PriorityRef{ID: priority}
	}
	if sprint, ok := task.Sprint.Get(); ok && scope.SprintField != "" {
		// Non-numeric and non-positive sprint values are dropped rather than rejected.
		if id, err := sprint.ID(); err == nil && id > 0 {
			fields[scope.SprintField] = id
		}
	}

	return IssuePayload{Fields: dropNulls(fields)}
}

// ToUpdatePayload maps a partial task onto an issue edit request. Unset
// fields are not touched, cleared fields are sent as null.
func ToUpdatePayload(scope Scope, key string, task api.TaskUpdateRequest) UpdatePlan {
	fields := Fields{}

	if !task.Summary.IsUnset() {
		summary, _ := task.Summary.Get()
		fields[FieldSummary] = summary
	}

	if !task.Description.IsUnset() {
		if description, ok := task.Description.Get(); ok {
			fields[FieldDescription] = PlainDocument(description)
		} else {
			fields[FieldDescription] = nil
		}
	}

	if !task.Labels.IsUnset() {
		labels, _ := task.Labels.Get()
		fields[FieldLabels] = nonNilLabels(labels)
	}

	if !task.Assignee.IsUnset() {
		assignee, ok := task.Assignee.Get()
		if ok && strings.TrimSpace(assignee.AccountID) != "" {
			fields[FieldAssignee] = AccountRef{AccountID: assignee.AccountID}
		} else {
			fields[FieldAssignee] = nil
		}
	}

	if !task.Priority.IsUnset() {
		priority, ok := task.Priority.Get()
		if ok && strings.TrimSpace(priority) != "" {
			fields[FieldPriority] = PriorityRef{ID: priority}
		} else {
			fields[FieldPriority] = nil
		}
	}

	plan := UpdatePlan{Key: key}
	if !task.Sprint.IsUnset() && scope.SprintField != "" {
		sprint, ok := task.Sprint.Get()
		if !ok {
			fields[scope.SprintField] = nil
		} else if id, err := sprint.ID(); err == nil && id > 0 {
			fields[scope.SprintField] = id
		} else {
			plan.Ignored = append(plan.Ignored, "sprint")
		}
	}

	plan.Payload = IssuePayload{Fields: fields}
	// Status changes need a workflow transition, not a field edit.
	if !task.Status.IsUnset() {
		plan.Ignored = append(plan.Ignored, FieldStatus)
	}
	return plan
}

func nonNilLabels(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

func dropNulls(fields Fields) Fields {
	for name, value := range fields {
		if value == nil {
			delete(fields, name)
		}
	}
	return fields
}
