// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/skillhive/skillhive/pkg/config"
	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
	"github.com/skillhive/skillhive/pkg/registryclient"
	"github.com/skillhive/skillhive/pkg/registryclient/metadatacache"
	"github.com/skillhive/skillhive/pkg/signer"
	"github.com/skillhive/skillhive/pkg/storage"
)

// clients bundles the long-lived collaborators every command except
// `version` and `config path` needs, built once from the resolved
// configuration file.
type clients struct {
	config   *config.Config
	registry *registryclient.Client
	storage  *storage.Client
	signer   signer.Signer // nil until loadSigner is called

	// cacheOpts is carried so loadSigner can rebuild the registry client
	// around a new signer without losing the durable metadata cache
	// loadClients already resolved.
	cacheOpts []registryclient.Option
}

func loadClients() (*clients, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storageClient := storage.New(cfg.Gateway, cfg.Gateway)

	var opts []registryclient.Option
	if store, err := openMetadataCache(cfg); err != nil {
		logger.Warnf("metadata cache unavailable, falling back to in-memory only: %v", err)
	} else if store != nil {
		opts = append(opts, registryclient.WithMetadataCache(store))
	}

	c := &clients{config: cfg, storage: storageClient, cacheOpts: opts}
	c.registry = registryclient.New(c.transport(), nil, opts...)
	return c, nil
}

// transport builds the HTTP transport from the resolved config, shared by
// loadClients and loadSigner so the two never drift.
func (c *clients) transport() *registryclient.HTTPTransport {
	dynamicReadURL := c.config.DynamicReadURL
	if dynamicReadURL == "" {
		dynamicReadURL = c.config.Gateway
	}
	return registryclient.NewHTTPTransport(c.config.Registry, c.config.Gateway, dynamicReadURL)
}

// openMetadataCache opens the cross-invocation metadata cache database
// under cfg.CacheDir (or the XDG cache home if unset). An error means the
// cache directory couldn't be created or the database couldn't be opened;
// loadClients then falls back to the client's default in-memory LRU cache
// instead of failing the command outright — durability here is a latency
// enrichment, never a correctness dependency.
func openMetadataCache(cfg *config.Config) (*metadatacache.Store, error) {
	dir := cfg.CacheDir
	if dir == "" {
		dir = filepath.Join(xdg.CacheHome, "skh")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return metadatacache.Open(filepath.Join(dir, "metadata.db"))
}

// loadSigner resolves cfg.Wallet into a Signer and rewires the registry
// client to sign mutating messages with it. Commands that only read
// (search, config cache-clear) never call this; skill doctor calls it to
// check that the wallet is reachable.
func (c *clients) loadSigner() error {
	s, err := signer.New(signer.FileVariant, signer.Config{KeyPath: c.config.Wallet})
	if err != nil {
		return err
	}
	c.signer = s
	c.registry = registryclient.New(c.transport(), s, c.cacheOpts...)
	return nil
}

// RenderError prints err either as rendered text (the default) or as a
// structured JSON object (--json), per §7's "structured error output on
// every command" requirement. It returns the process exit code to use.
func RenderError(err error) int {
	kind := skherrors.KindOf(err)
	if viper.GetBool("json") {
		payload := map[string]string{
			"kind":  string(kind),
			"error": err.Error(),
		}
		data, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		} else {
			fmt.Fprintln(os.Stderr, string(data))
		}
		return kind.ExitCode()
	}

	var skhErr *skherrors.Error
	if se, ok := err.(*skherrors.Error); ok {
		skhErr = se
		fmt.Fprintln(os.Stderr, skhErr.Render())
	} else {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	return kind.ExitCode()
}
