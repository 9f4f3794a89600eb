// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillhive/skillhive/pkg/orchestrator"
	"github.com/skillhive/skillhive/pkg/registry"
)

func newSearchCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the registry for published skills",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			c, err := loadClients()
			if err != nil {
				return err
			}

			results, err := orchestrator.Search(cmd.Context(), c.registry, query, tags)
			if err != nil {
				return err
			}

			if viper.GetBool("json") {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
			}
			return renderSearchTable(cmd, results)
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Filter results to skills carrying all of the given tags")
	return cmd
}

func renderSearchTable(cmd *cobra.Command, results []*registry.SkillVersion) error {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No skills matched.")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Options(
		tablewriter.WithHeader([]string{"Name", "Version", "Author", "Tags", "Description"}),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
	)

	for _, sv := range results {
		if err := table.Append([]string{
			sv.Name,
			sv.Version,
			sv.Author,
			strings.Join(sv.Tags, ", "),
			sv.Description,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
