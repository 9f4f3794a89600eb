// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillhive/skillhive/pkg/config"
	"github.com/skillhive/skillhive/pkg/lockfile"
)

func newSkillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Inspect the local skh environment",
	}
	cmd.AddCommand(newSkillDoctorCmd())
	return cmd
}

// doctorReport is a read-only snapshot of environment health. Every
// field is filled in best-effort: a failed check is recorded as a
// string, never as a process exit.
type doctorReport struct {
	ConfigPath      string `json:"configPath"`
	ConfigValid     bool   `json:"configValid"`
	ConfigError     string `json:"configError,omitempty"`
	WalletReachable bool   `json:"walletReachable"`
	WalletError     string `json:"walletError,omitempty"`
	RegistryLive    bool   `json:"registryLive"`
	RegistryError   string `json:"registryError,omitempty"`
	LockFileOK      bool   `json:"lockFileOk"`
	LockFileError   string `json:"lockFileError,omitempty"`
}

func newSkillDoctorCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report on configuration, wallet, registry, and lock-file health",
		Long: `doctor never mutates state: it loads the configuration, attempts to
resolve the signer and reach the registry's Info endpoint, and checks
that the install directory's lock file parses, then reports what it
found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := runDoctor(cmd.Context(), dir)

			if viper.GetBool("json") {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
			}
			printDoctorReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "skills", "Install directory whose lock file should be checked")
	return cmd
}

func runDoctor(ctx context.Context, installDir string) *doctorReport {
	report := &doctorReport{}

	path, err := config.ResolvePath("")
	report.ConfigPath = path
	if err != nil {
		report.ConfigError = err.Error()
		return report
	}

	cfg, err := config.Load("")
	if err != nil {
		report.ConfigError = err.Error()
		return report
	}
	if err := cfg.Validate(); err != nil {
		report.ConfigError = err.Error()
		return report
	}
	report.ConfigValid = true

	c, err := loadClients()
	if err != nil {
		report.ConfigError = err.Error()
		return report
	}

	if err := c.loadSigner(); err != nil {
		report.WalletError = err.Error()
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := c.signer.GetAddress(checkCtx); err != nil {
			report.WalletError = err.Error()
		} else {
			report.WalletReachable = true
		}
	}

	infoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.registry.Info(infoCtx); err != nil {
		report.RegistryError = err.Error()
	} else {
		report.RegistryLive = true
	}

	lockPath := lockfile.Path(installDir)
	if _, err := os.Stat(lockPath); err != nil {
		if os.IsNotExist(err) {
			report.LockFileOK = true // nothing installed yet is not a failure
		} else {
			report.LockFileError = err.Error()
		}
	} else if data, readErr := os.ReadFile(lockPath); readErr != nil { //nolint:gosec // lockPath is derived from the operator-chosen install dir
		report.LockFileError = readErr.Error()
	} else if parseErr := json.Unmarshal(data, &lockfile.File{}); parseErr != nil {
		report.LockFileError = "malformed: " + parseErr.Error()
	} else {
		report.LockFileOK = true
	}

	return report
}

func printDoctorReport(cmd *cobra.Command, r *doctorReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Config path:\t%s\n", r.ConfigPath)
	fmt.Fprintf(w, "Config valid:\t%s\n", checkMark(r.ConfigValid, r.ConfigError))
	fmt.Fprintf(w, "Wallet reachable:\t%s\n", checkMark(r.WalletReachable, r.WalletError))
	fmt.Fprintf(w, "Registry live:\t%s\n", checkMark(r.RegistryLive, r.RegistryError))
	fmt.Fprintf(w, "Lock file OK:\t%s\n", checkMark(r.LockFileOK, r.LockFileError))
	w.Flush()
}

func checkMark(ok bool, detail string) string {
	if ok {
		return "yes"
	}
	if detail == "" {
		return "no"
	}
	return "no (" + detail + ")"
}
