// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
)

// lockAcquireTimeout bounds how long Update waits for another process to
// finish its own read-modify-write before giving up.
const lockAcquireTimeout = 5 * time.Second

// FileName is the lock file's name under the installation root (§6).
const FileName = "skills-lock.json"

// Entry is one skill's resolved install record (§3 LockFile).
type Entry struct {
	Version      string    `json:"version"`
	ArweaveTxID  string    `json:"arweaveTxId"`
	ResolvedAt   time.Time `json:"resolvedAt"`
	Dependencies []string  `json:"dependencies"`
}

// File is the full skills-lock.json document: skill name -> Entry.
type File map[string]Entry

// Path returns the lock file path for an installation root.
func Path(installRoot string) string {
	return filepath.Join(installRoot, FileName)
}

// Load reads and parses the lock file at installRoot. A missing file is
// treated as an empty document; an unreadable or malformed one is treated
// as empty with a logged warning (§4.K).
func Load(installRoot string) File {
	path := Path(installRoot)
	data, err := os.ReadFile(path) //nolint:gosec // installRoot is operator-controlled, not attacker input
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("reading lock file %s: %v", path, err)
		}
		return File{}
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warnf("lock file %s is malformed, treating as empty: %v", path, err)
		return File{}
	}
	return f
}

// Update performs a locked read-modify-write of the lock file: it acquires
// a cross-process flock on "<FileName>.lock", loads the current document,
// applies mutate, and writes the result back. §5: "concurrent installs in
// the same directory are not supported" — Update serializes them instead
// of corrupting the file. Failures are non-fatal: the caller logs a
// warning and continues (§4.H install step 5, §7).
func Update(installRoot string, mutate func(File)) error {
	lockPath := Path(installRoot) + ".lock"
	lock := NewTrackedLock(lockPath)
	defer ReleaseTrackedLock(lockPath, lock)

	ctx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		return skherrors.NewFileSystemError("acquiring lock file mutex: another install is in progress", err)
	}

	current := Load(installRoot)
	if current == nil {
		current = File{}
	}
	mutate(current)

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return skherrors.NewFileSystemError("marshaling lock file", err)
	}

	if err := os.WriteFile(Path(installRoot), data, 0o600); err != nil {
		return skherrors.NewFileSystemError("writing lock file", err)
	}
	return nil
}
