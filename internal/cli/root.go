// Package cli wires configuration and infrastructure into the jobflow commands.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jobflow/internal/config"
	"jobflow/internal/infra/logging"
)

type rootOptions struct {
	configPath string
	dev        bool
	version    string
	commit     string
}

func NewRootCommand(version, commit string) *cobra.Command {
	opts := &rootOptions{version: version, commit: commit}
	cmd := &cobra.Command{
		Use:           "jobflow",
		Short:         "JobFlow backend: jobs, payments, chat and feature flags",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "developer mode (console logs, unredacted PII)")

	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(migrateCmd(opts))
	cmd.AddCommand(tokenCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath, o.dev)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}
