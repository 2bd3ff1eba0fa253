package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskbridge/internal/config"
	"taskbridge/internal/jira"
	"taskbridge/internal/store"
)

func newAccountCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Link users to their Jira Cloud accounts",
	}
	cmd.AddCommand(newAccountLinkCmd(cfg, jsonOutput))
	cmd.AddCommand(newAccountShowCmd(cfg, jsonOutput))
	cmd.AddCommand(newAccountUnlinkCmd(cfg))
	cmd.AddCommand(newAccountImportCmd(cfg, jsonOutput))
	cmd.AddCommand(newAccountVerifyCmd(cfg, jsonOutput))
	return cmd
}

// accountView is the printable form of a linked account. It never carries
// the API token.
type accountView struct {
	Username   string    `json:"username"`
	SiteURL    string    `json:"site_url"`
	Email      string    `json:"email"`
	ProjectKey string    `json:"project_key,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newAccountView(username string, account *store.JiraAccount) accountView {
	return accountView{
		Username:   username,
		SiteURL:    account.SiteURL,
		Email:      account.Email,
		ProjectKey: account.ProjectKey,
		UpdatedAt:  account.UpdatedAt,
	}
}

func writeAccount(view accountView, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(view)
	}
	project := view.ProjectKey
	if project == "" {
		project = "(default)"
	}
	return writePlain("user: %s\nsite: %s\nemail: %s\nproject: %s\nupdated_at: %s\n",
		view.Username, view.SiteURL, view.Email, project, formatTime(view.UpdatedAt))
}

func newAccountLinkCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var siteURL, email, projectKey string
	var tokenStdin bool

	cmd := &cobra.Command{
		Use:   "link <username>",
		Short: "Link or relink a user's Jira account",
		Args:  requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tokenStdin {
				return fmt.Errorf("--token-stdin is required")
			}
			token, err := readSecret(stdin)
			if err != nil {
				return err
			}

			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := lookupUser(cmd, st, args[0])
			if err != nil {
				return err
			}
			account, err := st.UpsertJiraAccount(commandContext(cmd), store.JiraAccountInput{
				UserID:     user.ID,
				SiteURL:    siteURL,
				Email:      email,
				APIToken:   token,
				ProjectKey: projectKey,
			}, time.Now().UTC())
			if err != nil {
				return err
			}
			slog.Info("linked jira account", "user", user.Username, "account", *account)
			return writeAccount(newAccountView(user.Username, account), *jsonOutput)
		},
	}

	cmd.Flags().StringVar(&siteURL, "site", "", "Jira Cloud site URL, e.g. https://acme.atlassian.net")
	cmd.Flags().StringVar(&email, "email", "", "Atlassian account email")
	cmd.Flags().StringVar(&projectKey, "project", "", "project key override for this user")
	cmd.Flags().BoolVar(&tokenStdin, "token-stdin", false, "read the Jira API token from stdin")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAccountShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show a user's linked Jira account",
		Args:  requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			user, account, err := linkedAccount(cmd, st, args[0])
			if err != nil {
				return err
			}
			return writeAccount(newAccountView(user.Username, account), *jsonOutput)
		},
	}
}

func newAccountUnlinkCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <username>",
		Short: "Remove a user's linked Jira account",
		Args:  requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := lookupUser(cmd, st, args[0])
			if err != nil {
				return err
			}
			deleted, err := st.DeleteJiraAccount(commandContext(cmd), user.ID)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("user %s has no linked account", user.Username)
			}
			return writePlain("unlinked jira account for %s\n", user.Username)
		},
	}
}

func newAccountVerifyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <username>",
		Short: "Check a linked account's credentials against Jira",
		Args:  requireUsername,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			user, account, err := linkedAccount(cmd, st, args[0])
			if err != nil {
				return err
			}

			client := jira.NewClient(jira.Credentials{
				SiteURL:  account.SiteURL,
				Email:    account.Email,
				APIToken: account.APIToken,
			}, jira.WithTimeout(cfg.Jira.Timeout.Duration), jira.WithLogger(slog.Default()))

			raw, err := client.Myself(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("verify %s: %w", user.Username, err)
			}
			if *jsonOutput {
				return writeJSON(raw)
			}

			var me struct {
				AccountID   string `json:"accountId"`
				DisplayName string `json:"displayName"`
			}
			if err := json.Unmarshal(raw, &me); err != nil {
				return fmt.Errorf("decode jira identity: %w", err)
			}
			return writePlain("ok: %s is %s (%s)\n", user.Username, me.DisplayName, me.AccountID)
		},
	}
}

func linkedAccount(cmd *cobra.Command, st *store.Store, username string) (*store.AuthUser, *store.JiraAccount, error) {
	user, err := lookupUser(cmd, st, username)
	if err != nil {
		return nil, nil, err
	}
	account, err := st.GetJiraAccount(commandContext(cmd), user.ID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, fmt.Errorf("user %s has no linked account", user.Username)
	}
	return user, account, nil
}

// accountSeedFile is the YAML document read by "account import".
type accountSeedFile struct {
	Accounts []accountSeed `yaml:"accounts"`
}

type accountSeed struct {
	Username    string `yaml:"username"`
	SiteURL     string `yaml:"site_url"`
	Email       string `yaml:"email"`
	APIToken    string `yaml:"api_token"`
	APITokenEnv string `yaml:"api_token_env"`
	ProjectKey  string `yaml:"project_key"`
}

func parseAccountSeeds(r io.Reader, getenv func(string) string) ([]accountSeed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file accountSeedFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(file.Accounts))
	for i := range file.Accounts {
		seed := &file.Accounts[i]
		seed.Username = strings.TrimSpace(seed.Username)
		if seed.Username == "" {
			return nil, fmt.Errorf("accounts[%d]: username is required", i)
		}
		key := strings.ToLower(seed.Username)
		if seen[key] {
			return nil, fmt.Errorf("accounts[%d]: duplicate username %s", i, seed.Username)
		}
		seen[key] = true

		switch {
		case seed.APIToken != "" && seed.APITokenEnv != "":
			return nil, fmt.Errorf("accounts[%d]: set api_token or api_token_env, not both", i)
		case seed.APITokenEnv != "":
			seed.APIToken = getenv(seed.APITokenEnv)
			if seed.APIToken == "" {
				return nil, fmt.Errorf("accounts[%d]: %s is not set", i, seed.APITokenEnv)
			}
		case seed.APIToken == "":
			return nil, fmt.Errorf("accounts[%d]: api_token or api_token_env is required", i)
		}
	}
	return file.Accounts, nil
}

func newAccountImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Link accounts for existing users from a YAML seed file",
		Args:  requireExactlyArgs(1, "seed file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			seeds, err := parseAccountSeeds(f, os.Getenv)
			if err != nil {
				return err
			}

			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			// Resolve every user before writing so a typo links nothing.
			users := make([]*store.AuthUser, len(seeds))
			for i, seed := range seeds {
				user, err := lookupUser(cmd, st, seed.Username)
				if err != nil {
					return fmt.Errorf("accounts[%d]: %w", i, err)
				}
				users[i] = user
			}

			now := time.Now().UTC()
			views := make([]accountView, 0, len(seeds))
			for i, seed := range seeds {
				account, err := st.UpsertJiraAccount(commandContext(cmd), store.JiraAccountInput{
					UserID:     users[i].ID,
					SiteURL:    seed.SiteURL,
					Email:      seed.Email,
					APIToken:   seed.APIToken,
					ProjectKey: seed.ProjectKey,
				}, now)
				if err != nil {
					return fmt.Errorf("accounts[%d]: %w", i, err)
				}
				views = append(views, newAccountView(users[i].Username, account))
			}

			if *jsonOutput {
				return writeJSON(map[string]any{"count": len(views), "accounts": views})
			}
			return writePlain("linked %d account(s)\n", len(views))
		},
	}
}
