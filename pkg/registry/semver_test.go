// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareSemver(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.0.1", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.2.3", "1.10.0", -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sign(CompareSemver(tc.a, tc.b)), "%s vs %s", tc.a, tc.b)
	}
}

func TestIsSemverGreater(t *testing.T) {
	t.Parallel()
	assert.True(t, IsSemverGreater("1.1.0", "1.0.9"))
	assert.False(t, IsSemverGreater("1.0.0", "1.0.0"))
}

func TestValidateSemver(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateSemver("1.2.3"))
	require.Error(t, ValidateSemver("1.2"))
	require.Error(t, ValidateSemver("1.2.x"))
}
