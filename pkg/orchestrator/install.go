// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/skillhive/skillhive/pkg/bundler"
	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/lockfile"
	"github.com/skillhive/skillhive/pkg/logger"
	"github.com/skillhive/skillhive/pkg/registry"
	"github.com/skillhive/skillhive/pkg/registryclient"
	"github.com/skillhive/skillhive/pkg/resolver"
	"github.com/skillhive/skillhive/pkg/storage"
)

// InstallRequest is Install's input: the skill to install, where to put
// it, and the registry client used both to resolve dependencies and to
// record anonymous download events.
type InstallRequest struct {
	Name       string
	Version    string // empty means latest
	InstallDir string
	Registry   *registryclient.Client
	Storage    *storage.Client
	NoLock     bool
	Force      bool
}

// InstallResult summarizes a completed install.
type InstallResult struct {
	Root             *registry.DependencyNode
	Installed        []string
	McpServersNeeded []string
}

// Install runs the fixed install sequence (§4.H): look up the root
// skill, ensure the install directory is usable, resolve its dependency
// graph, then download+extract every node in topological order,
// updating the lock file and firing best-effort download telemetry
// along the way.
func Install(ctx context.Context, req InstallRequest, events chan<- Event) (*InstallResult, error) {
	emit(events, Event{Phase: PhaseQueryRegistry, Target: req.Name})
	root, err := req.Registry.GetSkill(ctx, req.Name, req.Version)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, skherrors.NewValidationError("skill '"+req.Name+"' not found in registry", nil)
	}

	if err := ensureWritableDir(req.InstallDir); err != nil {
		return nil, err
	}

	emit(events, Event{Phase: PhaseResolveDeps, Target: req.Name})
	plan, err := resolver.Resolve(ctx, resolver.Reference{Name: root.Name, Version: root.Version}, req.Registry)
	if err != nil {
		return nil, err
	}

	installed := make([]string, 0, len(plan.Order))
	for _, node := range plan.Order {
		version, err := req.Registry.GetSkill(ctx, node.Name, node.Version)
		if err != nil || version == nil {
			logger.Warnf("skipping %s@%s: no longer resolvable (%v)", node.Name, node.Version, err)
			continue
		}

		bundle, err := downloadNode(ctx, req, version, events)
		if err != nil {
			return nil, err
		}
		if err := extractNode(req, version, bundle, events); err != nil {
			return nil, err
		}

		if !req.NoLock {
			updateLockFile(req.InstallDir, version, events)
		}

		if req.Registry != nil {
			emit(events, Event{Phase: PhaseRecordDownload, Target: node.Name})
			if err := req.Registry.RecordDownload(ctx, node.Name, node.Version); err != nil {
				logger.Warnf("recording download for %s@%s: %v", node.Name, node.Version, err)
			}
		}

		installed = append(installed, node.Name+"@"+node.Version)
	}

	emit(events, Event{Phase: PhaseInstallComplete, Target: root.Name})
	return &InstallResult{Root: plan.Root, Installed: installed, McpServersNeeded: plan.McpServersNeeded}, nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return skherrors.NewFileSystemError("creating install directory "+dir, err)
	}
	probe, err := os.CreateTemp(dir, ".skh-writable-*")
	if err != nil {
		return skherrors.NewFileSystemError("install directory "+dir+" is not writable", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

func downloadNode(ctx context.Context, req InstallRequest, version *registry.SkillVersion, events chan<- Event) ([]byte, error) {
	emit(events, Event{Phase: PhaseDownloadBundle, Target: version.Name, Percent: 0})
	bundle, err := req.Storage.Download(ctx, version.ArweaveTxID, func(percent int) {
		emit(events, Event{Phase: PhaseDownloadBundle, Target: version.Name, Percent: percent})
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func extractNode(req InstallRequest, version *registry.SkillVersion, bundle []byte, events chan<- Event) error {
	emit(events, Event{Phase: PhaseExtractBundle, Target: version.Name})
	targetDir := filepath.Join(req.InstallDir, version.Name)
	if _, err := bundler.Extract(bundle, targetDir, req.Force); err != nil {
		return err
	}
	return nil
}

func updateLockFile(installDir string, version *registry.SkillVersion, events chan<- Event) {
	emit(events, Event{Phase: PhaseUpdateLockFile, Target: version.Name})
	err := lockfile.Update(installDir, func(f lockfile.File) {
		f[version.Name] = lockfile.Entry{
			Version:      version.Version,
			ArweaveTxID:  version.ArweaveTxID,
			ResolvedAt:   version.UpdatedAt,
			Dependencies: version.Dependencies,
		}
	})
	if err != nil {
		logger.Warnf("updating lock file for %s: %v", version.Name, err)
	}
}
