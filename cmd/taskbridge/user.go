package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	internalauth "taskbridge/internal/auth"
	"taskbridge/internal/config"
	"taskbridge/internal/store"
)

var stdin io.Reader = os.Stdin

func newUserCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local users who sign in to the proxy",
	}
	cmd.AddCommand(newUserAddCmd(cfg, jsonOutput))
	cmd.AddCommand(newUserListCmd(cfg, jsonOutput))
	cmd.AddCommand(newUserSetDisabledCmd(cfg, jsonOutput, "disable", "Disable one user and block their sessions", true))
	cmd.AddCommand(newUserSetDisabledCmd(cfg, jsonOutput, "enable", "Enable one user", false))
	cmd.AddCommand(newUserDeleteCmd(cfg, jsonOutput))
	return cmd
}

func newUserAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var passwordStdin bool
	var admin bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one local user",
		Args:  requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}

			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			password, err := readSecret(stdin)
			if err != nil {
				return err
			}
			hash, err := internalauth.HashPassword(password)
			if err != nil {
				return err
			}

			role := store.RoleMember
			if admin {
				role = store.RoleAdmin
			}

			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			created, err := st.CreateUser(commandContext(cmd), username, hash, role, time.Now().UTC())
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(created)
			}
			return writePlain("created user %s (%s)\n", created.Username, created.ID)
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().BoolVar(&admin, "admin", false, "create the user with the admin role")
	return cmd
}

func newUserListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local users",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := commandContext(cmd)
			users, err := st.ListUsers(ctx)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(map[string]any{"count": len(users), "users": users})
			}
			if len(users) == 0 {
				return writePlain("no users configured\n")
			}

			accounts, err := st.ListJiraAccounts(ctx)
			if err != nil {
				return err
			}
			linked := make(map[string]bool, len(accounts))
			for _, account := range accounts {
				linked[account.UserID] = true
			}

			rows := make([][]string, 0, len(users))
			for _, user := range users {
				status := "enabled"
				if user.Disabled {
					status = "disabled"
				}
				jira := "-"
				if linked[user.ID] {
					jira = "linked"
				}
				rows = append(rows, []string{user.Username, user.Role, status, jira, user.ID})
			}
			return writeTable([]string{"USERNAME", "ROLE", "STATUS", "JIRA", "ID"}, rows)
		},
	}
}

func newUserSetDisabledCmd(cfg *config.Config, jsonOutput *bool, name, short string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <username>",
		Short: short,
		Args:  requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			updated, err := st.SetUserDisabled(commandContext(cmd), username, disabled, time.Now().UTC())
			if err != nil {
				return err
			}
			if updated == nil {
				return fmt.Errorf("user %s not found", username)
			}
			if *jsonOutput {
				return writeJSON(updated)
			}

			action := "enabled"
			if disabled {
				action = "disabled"
			}
			return writePlain("%s user %s\n", action, updated.Username)
		},
	}
}

func newUserDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <username>",
		Aliases: []string{"rm"},
		Short:   "Delete one user with their sessions and linked account",
		Args:    requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			deleted, err := st.DeleteUser(commandContext(cmd), username)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("user %s not found", username)
			}
			if *jsonOutput {
				return writeJSON(map[string]any{"username": username, "deleted": true})
			}
			return writePlain("deleted user %s\n", username)
		},
	}
}

// readSecret reads one secret from r, dropping the trailing line break an
// echo or heredoc adds.
func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", err
	}
	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", fmt.Errorf("no secret on stdin")
	}
	return value, nil
}

// lookupUser resolves a username to its stored user, failing when absent.
func lookupUser(cmd *cobra.Command, st *store.Store, raw string) (*store.AuthUser, error) {
	username, err := internalauth.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	user, err := st.GetUserByUsername(commandContext(cmd), username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return user, nil
}
