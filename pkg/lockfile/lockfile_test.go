// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	f := Load(dir)
	assert.Empty(t, f)
}

func TestLoad_MalformedFileIsEmptyNotFatal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("not json"), 0o600))

	f := Load(dir)
	assert.Empty(t, f)
}

func TestUpdate_WritesAndReadsBack(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	err := Update(dir, func(f File) {
		f["my-skill"] = Entry{
			Version:      "1.0.0",
			ArweaveTxID:  "abc123",
			ResolvedAt:   time.Now().UTC(),
			Dependencies: []string{"other-skill"},
		}
	})
	require.NoError(t, err)

	f := Load(dir)
	require.Contains(t, f, "my-skill")
	assert.Equal(t, "1.0.0", f["my-skill"].Version)
	assert.Equal(t, []string{"other-skill"}, f["my-skill"].Dependencies)
}

func TestUpdate_PreservesUnrelatedEntries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, Update(dir, func(f File) {
		f["existing-skill"] = Entry{Version: "0.1.0", ArweaveTxID: "tx1"}
	}))

	require.NoError(t, Update(dir, func(f File) {
		f["new-skill"] = Entry{Version: "2.0.0", ArweaveTxID: "tx2"}
	}))

	f := Load(dir)
	assert.Contains(t, f, "existing-skill")
	assert.Contains(t, f, "new-skill")
}

func TestPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/root", FileName), Path("/root"))
}
