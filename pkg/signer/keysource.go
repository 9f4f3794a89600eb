// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/1password/onepassword-sdk-go"
	"github.com/zalando/go-keyring"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// keyringService namespaces the OS keyring entry skillhive writes wallet
// material under.
const keyringService = "skillhive-wallet"

// opServiceAccountTokenEnv is the 1Password Connect/service-account token
// environment variable.
const opServiceAccountTokenEnv = "OP_SERVICE_ACCOUNT_TOKEN"

// resolveKeySource loads the raw wallet-JWK bytes a file signer should
// parse, dispatching on path's scheme:
//   - "op://vault/item/field"  -> resolved via the 1Password SDK
//   - "keyring:<account>"      -> read from the OS keyring
//   - anything else            -> read as a plain filesystem path
func resolveKeySource(path string) ([]byte, error) {
	switch {
	case strings.HasPrefix(path, "op://"):
		return resolveFromOnePassword(path)
	case strings.HasPrefix(path, "keyring:"):
		return resolveFromKeyring(strings.TrimPrefix(path, "keyring:"))
	default:
		data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied wallet configuration
		if err != nil {
			return nil, skherrors.NewFileSystemError("reading keyfile "+path, err)
		}
		return data, nil
	}
}

func resolveFromOnePassword(ref string) ([]byte, error) {
	token := os.Getenv(opServiceAccountTokenEnv)
	if token == "" {
		return nil, skherrors.NewConfigurationError(
			fmt.Sprintf("%s is not set; required to resolve %s", opServiceAccountTokenEnv, ref), nil)
	}

	ctx := context.Background()
	client, err := onepassword.NewClient(ctx,
		onepassword.WithServiceAccountToken(token),
		onepassword.WithIntegrationInfo("skillhive", "0.1.0"),
	)
	if err != nil {
		return nil, skherrors.NewConfigurationError("creating 1Password client", err)
	}

	secret, err := client.Secrets().Resolve(ctx, ref)
	if err != nil {
		return nil, skherrors.NewConfigurationError("resolving wallet secret "+ref, err)
	}
	return []byte(secret), nil
}

// resolveFromKeyring reads wallet JSON previously stored under
// keyringService/account via StoreInKeyring.
func resolveFromKeyring(account string) ([]byte, error) {
	secret, err := keyring.Get(keyringService, account)
	if err != nil {
		return nil, skherrors.NewConfigurationError("reading wallet from OS keyring for "+account, err)
	}
	return []byte(secret), nil
}

// StoreInKeyring saves wallet JSON in the OS keyring under account, so a
// subsequent file signer can be configured with "keyring:<account>".
func StoreInKeyring(account string, walletJSON []byte) error {
	if err := keyring.Set(keyringService, account, string(walletJSON)); err != nil {
		return skherrors.NewConfigurationError("storing wallet in OS keyring", err)
	}
	return nil
}
