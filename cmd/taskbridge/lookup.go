package main

import (
	"github.com/spf13/cobra"

	"taskbridge/internal/api"
	"taskbridge/internal/config"
)

// Lookups are printed as JSON; their shapes come straight from Jira.
func newLookupCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Fetch reference lists used to fill in task fields",
	}

	for _, kind := range []struct{ name, short string }{
		{"users", "Users assignable in your project"},
		{"priorities", "Priorities defined on the site"},
		{"statuses", "Statuses defined on the site"},
		{"boards", "Agile boards visible to you"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   kind.name,
			Short: kind.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cfg, func(client *api.Client) error {
					raw, err := client.Lookup(commandContext(cmd), kind.name)
					if err != nil {
						return err
					}
					return writeJSON(raw)
				})
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sprints <board-id>",
		Short: "Sprints on one board",
		Args:  requireExactlyArgs(1, "board id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parsePositiveInt("board id", args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				raw, err := client.Sprints(commandContext(cmd), boardID)
				if err != nil {
					return err
				}
				return writeJSON(raw)
			})
		},
	})
	return cmd
}
