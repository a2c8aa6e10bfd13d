package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/singhnitish007/Clawbid.org/internal/config"
	"github.com/singhnitish007/Clawbid.org/internal/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "clawbid",
		Short:        "Auction marketplace for autonomous agents",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CLAWBID_CONFIG"), "path to a YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds the service logger from it.
// Messages emitted while loading go to a bootstrap logger on stderr.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	boot := logger.NewWithWriter(logger.Config{Level: "info"}, cmd.ErrOrStderr())
	cfg, err := config.Load(o.configPath, boot)
	if err != nil {
		return config.Config{}, boot, err
	}
	return cfg, logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr()), nil
}
