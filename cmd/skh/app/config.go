// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillhive/skillhive/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage skh's configuration",
	}
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigCacheClearCmd())
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file skh would load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ResolvePath("")
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no .skillsrc found; relying on environment overrides only")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// newConfigCacheClearCmd exposes registryclient's cache clear() for
// test/operator use, per the client's "both caches expose a clear() for
// testing" contract.
func newConfigCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-clear",
		Short: "Clear skh's in-memory registry caches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadClients()
			if err != nil {
				return err
			}
			c.registry.ClearCaches()
			fmt.Fprintln(cmd.OutOrStdout(), "caches cleared")
			return nil
		},
	}
}
