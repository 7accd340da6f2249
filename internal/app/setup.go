// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/buzzline/internal/config"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "buzzline_config.txt"

// Init loads the global configuration and sets up logging. A non-empty
// level overrides LOG_LEVEL.
func Init(configPath, level string) error {
	if err := config.InitGlobal(configPath); err != nil {
		return errors.Wrapf(err, "load config %s", configPath)
	}
	if level == "" {
		level = config.Get().LogLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// Command wraps one of the Run functions into a cobra command with the
// shared --config and --log-level flags. The context passed to run is
// cancelled on SIGINT or SIGTERM.
func Command(use, short string, run func(ctx context.Context) error) *cobra.Command {
	var configPath, level string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := Init(configPath, level); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "config file path")
	cmd.Flags().StringVar(&level, "log-level", "", "override LOG_LEVEL (trace, debug, info, warn, error)")
	return cmd
}

// Execute runs cmd and exits non-zero on failure.
func Execute(cmd *cobra.Command) {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}
