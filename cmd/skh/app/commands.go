// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the skh command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillhive/skillhive/pkg/logger"
)

// NewRootCmd creates a new root command for the skh CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "skh",
		DisableAutoGenTag: true,
		Short:             "skh is a package manager for Agent Skills",
		Long: `skh publishes, searches, and installs Agent Skills from a decentralized
registry backed by the Arweave storage network and an AO-style actor process.

It resolves dependency graphs, verifies bundle integrity, and keeps a
project-local skills-lock.json so installs are reproducible.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Debug flag (bound to the \"debug\" key; no command reads it)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (bound to the \"config\" key; no command reads it: skh always loads ./.skillsrc, else ~/.skillsrc)")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.PersistentFlags().Bool("json", false, "Emit structured JSON errors instead of rendered text")
	if err := viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json")); err != nil {
		logger.Errorf("error binding json flag: %v", err)
	}

	rootCmd.AddCommand(newPublishCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newSkillCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true // main renders the error itself via RenderError
	return rootCmd
}
