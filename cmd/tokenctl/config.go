package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"secutoken/internal/platform/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect compliance configuration files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate <file>",
			Short: "Check a compliance configuration file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadCompliance(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %s service, %d countries mapped\n", cfg.Service, len(cfg.Countries))
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <file>",
			Short: "Print the effective configuration with defaults applied",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadCompliance(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			},
		},
	)
	return cmd
}
