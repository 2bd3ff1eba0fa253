package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"taskbridge/internal/secret"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the key that seals stored Jira API tokens",
	}
	cmd.AddCommand(newSecretKeygenCmd())
	return cmd
}

func newSecretKeygenCmd() *cobra.Command {
	var outPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new sealing key",
		Long: fmt.Sprintf("Generate a base64 sealing key. Export it as %s or write it to a file\n"+
			"referenced by the secret_key_file config key.", secret.KeyEnvKey),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secret.GenerateKey()
			if err != nil {
				return err
			}
			if outPath == "" {
				return writePlain("%s\n", key)
			}

			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("%s already exists; pass --force to replace it (stored tokens become unreadable)", outPath)
				}
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(key+"\n"), 0o600); err != nil {
				return err
			}
			return writePlain("wrote sealing key to %s\n", outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the key to this file (mode 0600)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}
