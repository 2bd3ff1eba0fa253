package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskbridge/internal/api"
	"taskbridge/internal/config"
)

var clearableTaskFields = []string{"description", "labels", "assignee", "priority", "sprint"}

func newTasksCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List, create and update Jira tasks through the proxy",
	}
	cmd.AddCommand(newTasksListCmd(cfg, jsonOutput))
	cmd.AddCommand(newTasksCreateCmd(cfg, jsonOutput))
	cmd.AddCommand(newTasksUpdateCmd(cfg, jsonOutput))
	return cmd
}

func newTasksListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks in your project, highest priority first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				raw, err := client.ListTasks(commandContext(cmd))
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(raw)
				}
				return writeTaskList(raw)
			})
		},
	}
}

// taskFlags holds the field flags shared by create and update.
type taskFlags struct {
	summary     string
	description string
	labels      []string
	assignee    string
	priority    string
	sprint      int64
	clear       []string
}

func (f *taskFlags) register(flags *pflag.FlagSet, withSummary bool) {
	if withSummary {
		flags.StringVar(&f.summary, "summary", "", "task summary")
	}
	flags.StringVar(&f.description, "description", "", "plain-text description")
	flags.StringSliceVar(&f.labels, "label", nil, "label (repeatable or comma-separated)")
	flags.StringVar(&f.assignee, "assignee", "", "assignee account id")
	flags.StringVar(&f.priority, "priority", "", "priority id")
	flags.Int64Var(&f.sprint, "sprint", 0, "sprint id")
}

func (f *taskFlags) createRequest(summary string, changed func(string) bool) api.TaskCreateRequest {
	req := api.TaskCreateRequest{Summary: summary}
	if changed("description") {
		req.Description = api.Set(f.description)
	}
	if changed("label") {
		req.Labels = api.Set(f.labels)
	}
	if changed("assignee") {
		req.Assignee = api.Set(api.Assignee{AccountID: f.assignee})
	}
	if changed("priority") {
		req.Priority = api.Set(f.priority)
	}
	if changed("sprint") {
		req.Sprint = api.Set(api.SprintID(f.sprint))
	}
	return req
}

func (f *taskFlags) updateRequest(changed func(string) bool) (api.TaskUpdateRequest, error) {
	var req api.TaskUpdateRequest
	for _, field := range f.clear {
		field = strings.ToLower(strings.TrimSpace(field))
		if !slices.Contains(clearableTaskFields, field) {
			return req, fmt.Errorf("cannot clear %q (clearable: %s)", field, strings.Join(clearableTaskFields, ", "))
		}
		flagName := field
		if field == "labels" {
			flagName = "label"
		}
		if changed(flagName) {
			return req, fmt.Errorf("--%s and --clear %s conflict", flagName, field)
		}
		switch field {
		case "description":
			req.Description = api.Clear[string]()
		case "labels":
			req.Labels = api.Clear[[]string]()
		case "assignee":
			req.Assignee = api.Clear[api.Assignee]()
		case "priority":
			req.Priority = api.Clear[string]()
		case "sprint":
			req.Sprint = api.Clear[api.SprintValue]()
		}
	}

	if changed("summary") {
		req.Summary = api.Set(f.summary)
	}
	if changed("description") {
		req.Description = api.Set(f.description)
	}
	if changed("label") {
		req.Labels = api.Set(f.labels)
	}
	if changed("assignee") {
		req.Assignee = api.Set(api.Assignee{AccountID: f.assignee})
	}
	if changed("priority") {
		req.Priority = api.Set(f.priority)
	}
	if changed("sprint") {
		req.Sprint = api.Set(api.SprintID(f.sprint))
	}

	if updateIsEmpty(req) {
		return req, fmt.Errorf("nothing to update")
	}
	return req, nil
}

func newTasksCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "create <summary>",
		Short: "Create a task in your project",
		Args:  requireExactlyArgs(1, "summary is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.createRequest(args[0], cmd.Flags().Changed)
			return withClient(cfg, func(client *api.Client) error {
				raw, err := client.CreateTask(commandContext(cmd), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(raw)
				}
				var created struct {
					Key string `json:"key"`
				}
				if err := json.Unmarshal(raw, &created); err != nil || created.Key == "" {
					return writeJSON(raw)
				}
				return writePlain("created %s\n", created.Key)
			})
		},
	}

	flags.register(cmd.Flags(), false)
	return cmd
}

func newTasksUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:   "update <KEY>",
		Short: "Update fields on one task",
		Args:  requireExactlyArgs(1, "task key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToUpper(strings.TrimSpace(args[0]))
			req, err := flags.updateRequest(cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UpdateTask(commandContext(cmd), key, req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writePlain("updated %s\n", key); err != nil {
					return err
				}
				if len(resp.IgnoredFields) > 0 {
					return writePlain("not applied: %s\n", strings.Join(resp.IgnoredFields, ", "))
				}
				return nil
			})
		},
	}

	flags.register(cmd.Flags(), true)
	cmd.Flags().StringSliceVar(&flags.clear, "clear", nil, "clear a field: "+strings.Join(clearableTaskFields, ", "))
	return cmd
}

func updateIsEmpty(req api.TaskUpdateRequest) bool {
	return req.Summary.IsUnset() &&
		req.Description.IsUnset() &&
		req.Labels.IsUnset() &&
		req.Assignee.IsUnset() &&
		req.Priority.IsUnset() &&
		req.Status.IsUnset() &&
		req.Sprint.IsUnset()
}
