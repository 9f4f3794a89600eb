// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillhive/skillhive/pkg/orchestrator"
	"github.com/skillhive/skillhive/pkg/orchestrator/progress"
)

func newInstallCmd() *cobra.Command {
	var (
		dir    string
		noLock bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "install <name>[@version]",
		Short: "Install a skill and its dependencies",
		Long: `Install resolves the named skill's dependency graph, downloads every
bundle in topological order, extracts it beneath the install directory,
and records the result in skills-lock.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version := splitNameVersion(args[0])

			c, err := loadClients()
			if err != nil {
				return err
			}

			events := make(chan orchestrator.Event, 64)
			done := make(chan *orchestrator.InstallResult, 1)
			errCh := make(chan error, 1)
			go func() {
				result, err := orchestrator.Install(cmd.Context(), orchestrator.InstallRequest{
					Name:       name,
					Version:    version,
					InstallDir: dir,
					Registry:   c.registry,
					Storage:    c.storage,
					NoLock:     noLock,
					Force:      force,
				}, events)
				close(events)
				if err != nil {
					errCh <- err
					return
				}
				done <- result
			}()

			if err := progress.Run(events, cmd.OutOrStdout()); err != nil {
				return err
			}

			select {
			case err := <-errCh:
				return err
			case result := <-done:
				fmt.Fprintf(cmd.OutOrStdout(), "installed %d skill(s):\n", len(result.Installed))
				for _, name := range result.Installed {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
				}
				if len(result.McpServersNeeded) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "MCP servers required: %s\n", strings.Join(result.McpServersNeeded, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "skills", "Directory to install skills into")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "Skip writing skills-lock.json")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing install directory for a skill")
	return cmd
}

// splitNameVersion parses "name" or "name@version" the way a skill
// reference is written on the command line.
func splitNameVersion(ref string) (name, version string) {
	if idx := strings.LastIndex(ref, "@"); idx > 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, ""
}
