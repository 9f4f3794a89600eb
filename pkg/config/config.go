// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads skillhive's configuration file: a JSON object read
// from a project-root ".skillsrc" (if present, it wins) or otherwise
// "~/.skillsrc", overlaid by the SEED_PHRASE / AO_REGISTRY_PROCESS_ID /
// ARWEAVE_GATEWAY environment variables. A single Load entry point
// returns a Config struct after applying the viper-bound env overlay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// FileName is the configuration file's name, both at the project root and
// in the user's home directory.
const FileName = ".skillsrc"

// Config is the decoded configuration file plus any environment overrides.
type Config struct {
	Wallet         string `json:"wallet"`
	Registry       string `json:"registry"`
	Gateway        string `json:"gateway"`
	DynamicReadURL string `json:"dynamicReadURL,omitempty"`
	CacheDir       string `json:"cacheDir,omitempty"`
}

// envBindings maps a Config field to the environment variable that
// overrides it, per §6.
var envBindings = map[string]string{
	"wallet":   "SEED_PHRASE",
	"registry": "AO_REGISTRY_PROCESS_ID",
	"gateway":  "ARWEAVE_GATEWAY",
}

// Load resolves and parses the active configuration file, then applies any
// environment overrides. projectRoot is the directory to check for a
// project-local ".skillsrc" first; pass "" to use the current working
// directory.
func Load(projectRoot string) (*Config, error) {
	path, err := ResolvePath(projectRoot)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		data, readErr := os.ReadFile(path) //nolint:gosec // path is derived from trusted config resolution, not user input
		if readErr != nil {
			return nil, skherrors.NewConfigurationError(fmt.Sprintf("reading config file %s", path), readErr)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, skherrors.NewConfigurationError(fmt.Sprintf("parsing config file %s", path), err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Wallet != "" {
		cfg.Wallet = expandTilde(cfg.Wallet)
	}

	return cfg, nil
}

// ResolvePath finds the active config file path: a project-root
// ".skillsrc" takes precedence over "~/.skillsrc". Returns "" if neither
// exists (not an error — callers decide whether missing config + no env
// overrides is a Configuration error).
func ResolvePath(projectRoot string) (string, error) {
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", skherrors.NewFileSystemError("determining working directory", err)
		}
		projectRoot = wd
	}

	projectPath := filepath.Join(projectRoot, FileName)
	if _, err := os.Stat(projectPath); err == nil {
		return projectPath, nil
	}

	homePath := filepath.Join(xdg.Home, FileName)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", nil
}

// applyEnvOverrides overlays the SEED_PHRASE/AO_REGISTRY_PROCESS_ID/
// ARWEAVE_GATEWAY environment variables onto cfg using viper's env
// binding, the same way persistent CLI flags get bound in commands.go.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	for field, env := range envBindings {
		_ = v.BindEnv(field, env)
	}

	if val := v.GetString("wallet"); val != "" {
		cfg.Wallet = val
	}
	if val := v.GetString("registry"); val != "" {
		cfg.Registry = val
	}
	if val := v.GetString("gateway"); val != "" {
		cfg.Gateway = val
	}
}

// Validate enforces §6's required-key and HTTPS-gateway rules.
func (c *Config) Validate() error {
	if c.Wallet == "" {
		return skherrors.NewConfigurationError("missing required config key: wallet", nil)
	}
	if c.Registry == "" {
		return skherrors.NewConfigurationError("missing required config key: registry", nil)
	}
	if len(c.Registry) != 43 {
		return skherrors.NewConfigurationError(
			fmt.Sprintf("registry process address must be 43 characters, got %d", len(c.Registry)), nil)
	}
	if c.Gateway == "" {
		return skherrors.NewConfigurationError("missing required config key: gateway", nil)
	}
	if !strings.HasPrefix(c.Gateway, "https://") {
		return skherrors.NewConfigurationError("gateway URL must use HTTPS", nil)
	}
	return nil
}

func expandTilde(path string) string {
	if path == "~" {
		return xdg.Home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, path[2:])
	}
	return path
}
