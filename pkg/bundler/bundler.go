// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bundler implements the bundle pipeline: deterministic gzip-tar
// creation from a skill directory, and atomic, path-traversal-safe
// extraction back to disk, using stage-then-rename extraction, a
// file-count ceiling, and permission sanitization on every extracted
// entry.
package bundler

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
)

// MaxExtractFileCount bounds the number of entries a single bundle may
// contain, guarding against archive bombs.
const MaxExtractFileCount = 10000

// DefaultCompressionLevel is §4.F's default gzip level (≈60% compression
// on typical text bundles).
const DefaultCompressionLevel = gzip.DefaultCompression

// extractedFileMode is the permission every extracted regular file is
// sanitized to, stripping setuid/setgid/sticky bits and any execute bit
// beyond what a published skill needs.
const extractedFileMode = 0o644

// extractedDirMode is the permission every extracted directory is
// sanitized to.
const extractedDirMode = 0o755

// ExtractResult reports the outcome of a successful Extract.
type ExtractResult struct {
	SkillDir string
	Files    int
}

// Create builds a deterministic gzip-compressed tar of dir at the given
// gzip compression level. Entries are emitted in lexical path order with
// zeroed uid/gid/uname/gname and each file's own mtime as ModTime, so that
// two builds of the same unchanged tree at the same level produce
// byte-identical output.
func Create(dir string, level int) ([]byte, error) {
	paths, err := collectPaths(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, skherrors.NewValidationError("invalid gzip compression level", err)
	}
	tw := tar.NewWriter(gw)

	for _, relPath := range paths {
		if err := writeEntry(tw, dir, relPath); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, skherrors.NewFileSystemError("closing tar writer", err)
	}
	if err := gw.Close(); err != nil {
		return nil, skherrors.NewFileSystemError("closing gzip writer", err)
	}

	return buf.Bytes(), nil
}

// collectPaths walks dir and returns every entry's path relative to dir,
// sorted lexically so Create's output is independent of directory-read
// order.
func collectPaths(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, skherrors.NewFileSystemError("walking directory "+dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func writeEntry(tw *tar.Writer, dir, relPath string) error {
	fullPath := filepath.Join(dir, relPath)
	info, err := os.Lstat(fullPath)
	if err != nil {
		return skherrors.NewFileSystemError("stat "+fullPath, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return skherrors.NewFileSystemError("building tar header for "+relPath, err)
	}
	hdr.Name = relPath
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return skherrors.NewFileSystemError("writing tar header for "+relPath, err)
	}
	if info.Mode().IsRegular() {
		f, openErr := os.Open(fullPath) //nolint:gosec // fullPath is derived from a validated skill directory walk
		if openErr != nil {
			return skherrors.NewFileSystemError("opening "+fullPath, openErr)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil { //nolint:gosec // bundle contents are bounded by the caller's own skill directory
			return skherrors.NewFileSystemError("writing contents of "+relPath, err)
		}
	}
	return nil
}

// Extract decompresses and unpacks bundle into targetDir, the skill's
// final install directory as given by the caller. Extraction stages into
// a temporary sibling directory and atomically renames into place, per §4.F. If the target already
// exists and force is false, extraction is a no-op; if force is true, the
// existing target is removed first.
func Extract(bundle []byte, targetDir string, force bool) (*ExtractResult, error) {
	if _, err := os.Stat(targetDir); err == nil {
		if !force {
			logger.Infof("%s already installed, skipping extraction", targetDir)
			return &ExtractResult{SkillDir: targetDir, Files: 0}, nil
		}
		if err := os.RemoveAll(targetDir); err != nil {
			return nil, skherrors.NewFileSystemError("removing existing target "+targetDir, err)
		}
	}

	parent := filepath.Dir(targetDir)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, skherrors.NewFileSystemError("creating parent directory "+parent, err)
	}

	stagingDir, err := os.MkdirTemp(parent, "."+filepath.Base(targetDir)+".part-")
	if err != nil {
		return nil, skherrors.NewFileSystemError("creating staging directory", err)
	}
	defer os.RemoveAll(stagingDir)

	count, err := extractInto(bundle, stagingDir)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(stagingDir, targetDir); err != nil {
		return nil, skherrors.NewFileSystemError("renaming staging directory into place", err)
	}

	return &ExtractResult{SkillDir: targetDir, Files: count}, nil
}

func extractInto(bundle []byte, stagingDir string) (int, error) {
	gr, err := gzip.NewReader(bytes.NewReader(bundle))
	if err != nil {
		return 0, skherrors.NewValidationError("decompressing layer: not a valid gzip stream", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	count := 0

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, skherrors.NewValidationError("reading tar entry", err)
		}

		count++
		if count > MaxExtractFileCount {
			return 0, skherrors.NewValidationError(
				"bundle contains too many entries, exceeding limit of "+strconv.Itoa(MaxExtractFileCount), nil)
		}

		destPath, err := safeJoin(stagingDir, hdr.Name)
		if err != nil {
			return 0, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, extractedDirMode); err != nil {
				return 0, skherrors.NewFileSystemError("creating directory "+destPath, err)
			}
		case tar.TypeReg:
			if err := extractFile(tr, destPath); err != nil {
				return 0, err
			}
		default:
			logger.Warnf("skipping unsupported tar entry type %d at %s", hdr.Typeflag, hdr.Name)
			count--
		}
	}

	return count, nil
}

func extractFile(r io.Reader, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), extractedDirMode); err != nil {
		return skherrors.NewFileSystemError("creating parent directory for "+destPath, err)
	}
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, extractedFileMode)
	if err != nil {
		return skherrors.NewFileSystemError("creating "+destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(r, maxEntrySize)); err != nil { //nolint:gosec // bounded by maxEntrySize
		return skherrors.NewFileSystemError("writing "+destPath, err)
	}
	return f.Chmod(extractedFileMode)
}

// maxEntrySize bounds a single extracted file's size to guard against a
// crafted entry claiming a huge, but compressible, payload.
const maxEntrySize = 512 * 1024 * 1024

// safeJoin joins base and name, rejecting any result that escapes base —
// an absolute path or a ".." segment in name (§4.F path-traversal
// protection).
func safeJoin(base, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", skherrors.NewFileSystemError("tar entry has absolute path: "+name, nil)
	}
	cleanName := filepath.Clean(name)
	if cleanName == ".." || strings.HasPrefix(cleanName, ".."+string(filepath.Separator)) {
		return "", skherrors.NewFileSystemError("tar entry escapes target directory: "+name, nil)
	}

	joined := filepath.Join(base, cleanName)
	if joined != base && !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", skherrors.NewFileSystemError("tar entry escapes target directory: "+name, nil)
	}
	return joined, nil
}

// Remove deletes an installed skill directory. Idempotent: removing an
// already-absent path is not an error. Refuses to operate on the
// filesystem root or an empty path.
func Remove(path string) error {
	if path == "" {
		return skherrors.NewValidationError("path must not be empty", nil)
	}
	if filepath.Clean(path) == string(filepath.Separator) {
		return skherrors.NewValidationError("refusing to remove dangerous path: "+path, nil)
	}

	if err := os.RemoveAll(path); err != nil {
		return skherrors.NewFileSystemError("removing "+path, err)
	}
	return nil
}
