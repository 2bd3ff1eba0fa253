package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskbridge/internal/config"
	"taskbridge/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the taskbridge API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			st, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if enabled, err := st.CountEnabledUsers(ctx); err != nil {
				return err
			} else if enabled == 0 {
				logger.Warn("no enabled users; create one with: taskbridge user add <username> --password-stdin")
			}

			logger.Info("jira proxy settings",
				"project_key", cfg.Jira.ProjectKey,
				"issue_type", cfg.Jira.IssueType,
				"sprint_field", cfg.Jira.SprintField,
				"timeout", cfg.Jira.Timeout.Duration,
				"max_concurrent", cfg.Jira.MaxConcurrent,
			)
			return server.New(addr, st, *cfg, logger).ListenAndServe(ctx)
		},
	}
}

// commandContext returns cmd's context, falling back to Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
