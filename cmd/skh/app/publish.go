// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillhive/skillhive/pkg/orchestrator"
	"github.com/skillhive/skillhive/pkg/orchestrator/progress"
)

func newPublishCmd() *cobra.Command {
	var waitConfirmation bool

	cmd := &cobra.Command{
		Use:   "publish [skill-directory]",
		Short: "Publish a skill bundle to the registry",
		Long: `Publish validates the skill directory against SKILL.md's schema, builds
a bundle, uploads it to the storage network, and registers the result
with the registry process under the signer's address.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			c, err := loadClients()
			if err != nil {
				return err
			}
			if err := c.loadSigner(); err != nil {
				return err
			}

			events := make(chan orchestrator.Event, 64)
			done := make(chan error, 1)
			go func() {
				result, err := orchestrator.Publish(cmd.Context(), orchestrator.PublishRequest{
					SkillDir:         dir,
					Signer:           c.signer,
					Storage:          c.storage,
					Registry:         c.registry,
					WaitConfirmation: waitConfirmation,
				}, events)
				close(events)
				if err != nil {
					done <- err
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %s@%s (tx %s)\n", result.Name, result.Version, result.ArweaveTxID)
				done <- nil
			}()

			if err := progress.Run(events, cmd.OutOrStdout()); err != nil {
				return err
			}
			return <-done
		},
	}

	cmd.Flags().BoolVar(&waitConfirmation, "wait", false, "Wait for the upload transaction to be confirmed before registering")
	return cmd
}
