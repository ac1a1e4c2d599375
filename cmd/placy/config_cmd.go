// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/placy/placy/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a config file against the schema and the service rules",
		Long: `Check a config file against the schema and the service rules.
FILE defaults to --config. Environment overrides are applied too, so this
reports what serve would see.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return oops.Code("CONFIG_INVALID").Errorf("no config file given; pass FILE or --config")
			}
			if _, err := config.Load(config.Sources{File: path}); err != nil {
				return err
			}
			cmd.Printf("%s is valid\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			out, err := renderConfig(cfg)
			if err != nil {
				return err
			}
			cmd.Print(out)
			return nil
		},
	})

	return cmd
}

// renderConfig returns cfg as YAML with secrets redacted.
func renderConfig(cfg config.Config) (string, error) {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return "", oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return string(data), nil
}

