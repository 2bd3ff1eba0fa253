package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskbridge/internal/api"
	internalauth "taskbridge/internal/auth"
	"taskbridge/internal/config"
)

func newLoginCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var passwordStdin bool
	var printToken bool

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and remember the session for later commands",
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

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Login(commandContext(cmd), api.AuthLoginRequest{Username: username, Password: password})
				if err != nil {
					return err
				}
				if printToken {
					return writePlain("%s\n", resp.Token)
				}

				path, err := writeSessionToken(resp.Token)
				if err != nil {
					return fmt.Errorf("save session: %w", err)
				}
				if *jsonOutput {
					return writeJSON(resp.AuthMeResponse)
				}
				if err := writePlain("logged in as %s (session saved to %s)\n", resp.Username, path); err != nil {
					return err
				}
				if !resp.AccountLinked {
					return writePlain("note: no Jira account is linked yet; ask an admin to run: taskbridge account link %s\n", resp.Username)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().BoolVar(&printToken, "print-token", false, "print the session token instead of saving it")
	return cmd
}

func newLogoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withClient(cfg, func(client *api.Client) error {
				return client.Logout(commandContext(cmd))
			})
			if clearErr := clearSessionToken(); clearErr != nil && err == nil {
				err = clearErr
			}
			if err != nil {
				return err
			}
			return writePlain("logged out\n")
		},
	}
}

func newWhoamiCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				me, err := client.Me(commandContext(cmd))
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(me)
				}
				linked := "not linked"
				if me.AccountLinked {
					linked = "linked"
				}
				return writePlain("%s (%s, %s auth, jira %s)\n", me.Username, me.Role, me.AuthType, linked)
			})
		},
	}
}
