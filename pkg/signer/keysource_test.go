// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKeySource_PlainFile(t *testing.T) {
	t.Parallel()
	path := writeTestWallet(t)

	data, err := resolveKeySource(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestResolveFromOnePassword_MissingToken(t *testing.T) {
	os.Unsetenv(opServiceAccountTokenEnv)

	_, err := resolveFromOnePassword("op://vault/item/field")
	require.Error(t, err)
	assert.Contains(t, err.Error(), opServiceAccountTokenEnv)
}

func TestResolveFromKeyring_NotFound(t *testing.T) {
	t.Parallel()
	_, err := resolveFromKeyring("no-such-skillhive-test-account")
	require.Error(t, err)
}
