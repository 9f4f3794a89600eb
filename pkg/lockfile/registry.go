// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lockfile implements skills-lock.json: a read-modify-write JSON
// document guarded by a cross-process file lock, so that concurrent
// installs in the same directory are enforced rather than merely
// documented. The cross-process mutex is a package-level map of path ->
// *flock.Flock so an interrupted process's signal handler can release
// every lock it is still holding.
package lockfile

import (
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/skillhive/skillhive/pkg/logger"
)

// lockRegistry tracks every flock this process currently holds, so a
// SIGINT/SIGTERM handler can release them all rather than leaving stale
// .lock files behind.
type lockRegistry struct {
	mu    sync.RWMutex
	locks map[string]*flock.Flock
}

func (r *lockRegistry) RegisterLock(path string, lock *flock.Flock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks[path] = lock
}

func (r *lockRegistry) UnregisterLock(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, path)
}

// CleanupAll unlocks and removes every lock file currently tracked.
func (r *lockRegistry) CleanupAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, lock := range r.locks {
		if err := lock.Unlock(); err != nil {
			logger.Warnf("releasing lock %s: %v", path, err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warnf("removing lock file %s: %v", path, err)
		}
		delete(r.locks, path)
	}
}

var globalRegistry = &lockRegistry{locks: make(map[string]*flock.Flock)}

// NewTrackedLock creates a flock for path and registers it in the global
// registry, but does not acquire it.
func NewTrackedLock(path string) *flock.Flock {
	lock := flock.New(path)
	globalRegistry.RegisterLock(path, lock)
	return lock
}

// ReleaseTrackedLock unlocks lock, removes its backing file, and
// unregisters it from the global registry.
func ReleaseTrackedLock(path string, lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		logger.Warnf("releasing lock %s: %v", path, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("removing lock file %s: %v", path, err)
	}
	globalRegistry.UnregisterLock(path)
}

// CleanupAllLocks releases every lock this process currently holds. Install
// on SIGINT/SIGTERM so an interrupted install doesn't leave a stray lock.
func CleanupAllLocks() {
	globalRegistry.CleanupAll()
}

// CleanupStaleLocks scans dirs for "*.lock" files older than maxAge that are
// not currently held (lockable) and removes them — a best-effort sweep for
// locks abandoned by a process that crashed before it could clean up after
// itself.
func CleanupStaleLocks(dirs []string, maxAge time.Duration) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isLockFile(entry.Name()) {
				continue
			}
			path := dir + string(os.PathSeparator) + entry.Name()
			info, err := entry.Info()
			if err != nil || time.Since(info.ModTime()) < maxAge {
				continue
			}

			lock := flock.New(path)
			locked, err := lock.TryLock()
			if err != nil || !locked {
				continue // currently held elsewhere: not stale
			}
			_ = lock.Unlock()
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warnf("removing stale lock %s: %v", path, err)
			}
		}
	}
}

func isLockFile(name string) bool {
	return len(name) > 5 && name[len(name)-5:] == ".lock"
}
