// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"time"

	"github.com/skillhive/skillhive/pkg/bundler"
	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/manifest"
	"github.com/skillhive/skillhive/pkg/registry"
	"github.com/skillhive/skillhive/pkg/registryclient"
	"github.com/skillhive/skillhive/pkg/signer"
	"github.com/skillhive/skillhive/pkg/storage"
)

// BalanceChecker reports whether a wallet can cover an upload of size
// bytes. No storage-network balance API survived anywhere in the
// packages this module is grounded on, so Publish treats it as
// optional: a nil BalanceChecker skips the check entirely and a bundle
// under storage.FreeTierCeiling never needs funds in the first place.
type BalanceChecker interface {
	HasSufficientBalance(ctx context.Context, address string, bytes int) (bool, error)
}

// PublishRequest is Publish's input: a skill directory plus the clients
// it needs to reach the storage network and registry.
type PublishRequest struct {
	SkillDir        string
	Signer          signer.Signer
	Storage         *storage.Client
	Registry        *registryclient.Client
	Balance         BalanceChecker // optional
	WaitConfirmation bool
}

// PublishResult is Publish's final success record (§4.H step 8).
type PublishResult struct {
	Name            string
	Version         string
	ArweaveTxID     string
	RegistryMessageID string
	Bytes           int
}

// Publish runs the fixed publish sequence: validate the skill directory,
// resolve the signer's address, build the bundle, check balance unless the
// bundle is free-tier sized, upload it, optionally wait for
// confirmation, and register the result with the registry actor.
func Publish(ctx context.Context, req PublishRequest, events chan<- Event) (*PublishResult, error) {
	emit(events, Event{Phase: PhaseValidateManifest})
	validation, err := manifest.ValidateSkillDir(req.SkillDir)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, skherrors.NewValidationError("skill directory failed validation: "+joinErrors(validation.Errors), nil)
	}
	parsed := validation.Parsed

	emit(events, Event{Phase: PhaseLoadSigner})
	if req.Signer == nil {
		return nil, skherrors.NewConfigurationError("publish requires a configured signer", nil)
	}
	address, err := req.Signer.GetAddress(ctx)
	if err != nil {
		return nil, err
	}

	bundle, err := buildBundle(req.SkillDir, events)
	if err != nil {
		return nil, err
	}

	emit(events, Event{Phase: PhaseCheckBalance})
	if req.Balance != nil && len(bundle) >= storage.FreeTierCeiling {
		sufficient, err := req.Balance.HasSufficientBalance(ctx, address, len(bundle))
		if err != nil {
			return nil, err
		}
		if !sufficient {
			return nil, skherrors.NewValidationError("wallet balance is insufficient to cover this upload", nil)
		}
	}

	tags := signer.Tags{
		"Name":        parsed.Name,
		"Version":     parsed.Version,
		"Description": parsed.Description,
		"Author":      parsed.Author,
	}

	emit(events, Event{Phase: PhaseUploadBundle, Percent: 0})
	uploadResult, err := req.Storage.Upload(ctx, req.Signer, bundle, tags, req.WaitConfirmation, func(percent int) {
		emit(events, Event{Phase: PhaseUploadBundle, Percent: percent})
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	version := &registry.SkillVersion{
		Name:         parsed.Name,
		Version:      parsed.Version,
		Description:  parsed.Description,
		Author:       parsed.Author,
		Tags:         parsed.Tags,
		Dependencies: parsed.Dependencies,
		McpServers:   parsed.McpServers,
		Changelog:    parsed.Changelog,
		Owner:        address,
		ArweaveTxID:  uploadResult.TxID,
		PublishedAt:  now,
		UpdatedAt:    now,
	}

	emit(events, Event{Phase: PhaseRegisterSkill})
	messageID, err := req.Registry.RegisterSkill(ctx, version)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{
		Name:              parsed.Name,
		Version:           parsed.Version,
		ArweaveTxID:       uploadResult.TxID,
		RegistryMessageID: messageID,
		Bytes:             len(bundle),
	}
	emit(events, Event{Phase: PhasePublishComplete, Target: result.Name})
	return result, nil
}

func buildBundle(skillDir string, events chan<- Event) ([]byte, error) {
	emit(events, Event{Phase: PhaseBuildBundle})
	bundle, err := bundler.Create(skillDir, bundler.DefaultCompressionLevel)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}
