// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/placy/placy/internal/config"
	"github.com/placy/placy/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the placy CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placy",
		Short: "placy - credential and token service",
		Long: `placy registers users, verifies passwords, issues signed access and
refresh tokens, and resets forgotten passwords with one-time codes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/placy/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig reads the config file, PLACY_* variables and the flags of
// cmd that appear in flagKeys. Without --config the XDG config file is
// used when it exists.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (config.Config, error) {
	file := configFile
	if file == "" {
		file = xdg.FindConfigFile()
	}
	return config.Load(config.Sources{
		File:     file,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
	})
}
