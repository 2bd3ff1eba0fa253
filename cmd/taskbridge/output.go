package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"taskbridge/internal/format"
)

var stdout io.Writer = os.Stdout

func writeJSON(payload any) error {
	return format.JSONFormatter{Indent: true}.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeTable(header []string, rows [][]string) error {
	return format.Table(stdout, header, rows)
}

// taskRow is the handful of search fields shown in plain output.
type taskRow struct {
	Key    string `json:"key"`
	Fields struct {
		Summary  string `json:"summary"`
		Status   *named `json:"status"`
		Priority *named `json:"priority"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
	} `json:"fields"`
}

type named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (n *named) String() string {
	if n == nil {
		return "-"
	}
	return n.Name
}

func writeTaskList(raw json.RawMessage) error {
	var result struct {
		Issues []taskRow `json:"issues"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode task list: %w", err)
	}
	if len(result.Issues) == 0 {
		return writePlain("no tasks\n")
	}

	rows := make([][]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		assignee := "-"
		if issue.Fields.Assignee != nil && issue.Fields.Assignee.DisplayName != "" {
			assignee = issue.Fields.Assignee.DisplayName
		}
		rows = append(rows, []string{
			issue.Key,
			issue.Fields.Priority.String(),
			issue.Fields.Status.String(),
			assignee,
			issue.Fields.Summary,
		})
	}
	return writeTable([]string{"KEY", "PRIORITY", "STATUS", "ASSIGNEE", "SUMMARY"}, rows)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
