// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package signer implements a polymorphic signer abstraction: every
// mutating network operation (bundle upload, registry message) goes
// through a Signer, regardless of where its key material actually lives.
// A flat switch over a closed set of Variant values constructs the
// concrete implementation, the same shape as a provider factory.
package signer

import (
	"context"
	"errors"
)

// Variant identifies one of the three recognized signer backends (§4.B).
type Variant string

const (
	// FileVariant loads a keyfile from disk.
	FileVariant Variant = "file"
	// MnemonicVariant derives a deterministic key from a 12-word phrase.
	MnemonicVariant Variant = "mnemonic"
	// InteractiveVariant bridges to a local HTTP loopback that forwards to
	// a user-approved wallet.
	InteractiveVariant Variant = "interactive"
)

// ErrUnknownVariant is returned by New for an unrecognized Variant.
var ErrUnknownVariant = errors.New("unknown signer variant")

// Tags is the set of name/value string tags attached to a signed data
// item (registry message tags, bundle tags).
type Tags map[string]string

// SignedDataItem is the result of signing a payload: an id and the raw
// signed bytes ready for submission to the storage network. The file and
// mnemonic variants set the id to the 43-char base64url SHA-256 of the
// signature; the interactive variant sets it to a random UUID, which is
// not a content address.
type SignedDataItem struct {
	ID  string
	Raw []byte
}

// Signer is the capability set every variant implements (§4.B).
type Signer interface {
	// GetAddress returns a 43-character address in the storage network's
	// base64url alphabet, deterministic for a given identity.
	GetAddress(ctx context.Context) (string, error)

	// SignTransaction signs a raw transaction body, returning the signed
	// transaction bytes.
	SignTransaction(ctx context.Context, tx []byte) ([]byte, error)

	// SignDataItem signs payload with the given tags, returning the
	// resulting item's id and raw signed bytes.
	SignDataItem(ctx context.Context, payload []byte, tags Tags) (*SignedDataItem, error)

	// Disconnect releases any resources the signer holds. A no-op for
	// non-interactive variants; idempotent for all variants.
	Disconnect(ctx context.Context) error

	// DescribeSource returns the configuration flavor for logging (e.g.
	// "file:/path/to/wallet.json"); it must never leak private material.
	DescribeSource() string
}

// Config configures New for any variant; unused fields are ignored by
// variants that don't need them.
type Config struct {
	// KeyPath is the keyfile path for FileVariant.
	KeyPath string
	// Mnemonic is the 12-word space-separated phrase for MnemonicVariant.
	Mnemonic string
	// LoopbackAddr is the local HTTP loopback bind address for
	// InteractiveVariant (e.g. "127.0.0.1:0").
	LoopbackAddr string
	// RequestTimeoutSeconds bounds how long InteractiveVariant waits for
	// a user approval (§5 default: 300s).
	RequestTimeoutSeconds int
}

// New constructs a Signer for the given variant: a flat switch over a
// closed set of recognized variants, returning ErrUnknownVariant for
// anything else.
func New(variant Variant, cfg Config) (Signer, error) {
	switch variant {
	case FileVariant:
		return newFileSigner(cfg.KeyPath)
	case MnemonicVariant:
		return newMnemonicSigner(cfg.Mnemonic)
	case InteractiveVariant:
		return newInteractiveSigner(cfg.LoopbackAddr, cfg.RequestTimeoutSeconds)
	default:
		return nil, ErrUnknownVariant
	}
}
