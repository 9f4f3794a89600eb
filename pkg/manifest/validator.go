// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SkillMDFileName is the manifest file's name at a skill directory's root.
const SkillMDFileName = "SKILL.md"

// largeSkillMDThreshold is the size (bytes) past which ValidateSkillDir
// emits a non-blocking "large SKILL.md" warning, the same threshold style
// used by bundle-size warnings elsewhere in this codebase.
const largeSkillMDThreshold = 16 * 1024

var namePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidationResult is the outcome of ValidateSkillDir: Valid iff Errors is
// empty. Warnings never affect Valid (§4.E, §7: "never cause a non-zero
// exit").
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
	Parsed   *ParseResult
}

// ValidateSkillDir validates a skill directory against the SkillManifest
// schema (§3) and the publish-time rules of §4.E: a missing SKILL.md, a
// malformed frontmatter, a schema bound violation, a name/directory
// mismatch, or a dependencies/mcpServers name collision are all reported
// as errors; a mcp__-prefixed dependency and an oversized SKILL.md are
// reported as warnings.
func ValidateSkillDir(dir string) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}

	if err := rejectSymlinks(dir, result); err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	skillMDPath := filepath.Join(dir, SkillMDFileName)
	content, err := os.ReadFile(skillMDPath) //nolint:gosec // dir is operator-supplied, not attacker input
	if err != nil {
		if os.IsNotExist(err) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s not found in %s", SkillMDFileName, dir))
			return result, nil
		}
		return nil, err
	}

	if len(content) > largeSkillMDThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("SKILL.md has %d bytes, larger than the recommended %d byte budget", len(content), largeSkillMDThreshold))
	}

	parsed, err := ParseSkillMD(content)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("invalid SKILL.md: %v", err))
		return result, nil
	}
	result.Parsed = parsed
	result.Warnings = append(result.Warnings, parsed.Warnings...)

	validateFields(parsed, dir, result)

	return result, nil
}

func validateFields(parsed *ParseResult, dir string, result *ValidationResult) {
	switch {
	case parsed.Name == "":
		result.addError("name is required")
	case validateName(parsed.Name) != nil:
		result.addError(fmt.Sprintf("invalid skill name %q: %v", parsed.Name, validateName(parsed.Name)))
	case filepath.Base(dir) != parsed.Name:
		result.addError(fmt.Sprintf("manifest name %q must match directory name %q", parsed.Name, filepath.Base(dir)))
	}

	if parsed.Description == "" {
		result.addError("description is required")
	} else if len(parsed.Description) > MaxDescriptionLength {
		result.addError(fmt.Sprintf("description exceeds maximum length of %d characters", MaxDescriptionLength))
	}

	if dup := findDuplicate(parsed.Tags); dup != "" {
		result.addError(fmt.Sprintf("duplicate tag %q", dup))
	}

	if collision := findCollision(parsed.Dependencies, parsed.McpServers); collision != "" {
		result.addError(fmt.Sprintf("%q appears in both dependencies and mcpServers", collision))
	}
}

func (r *ValidationResult) addError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// validateName enforces §3's name schema: 1..64 chars, pattern
// [a-z0-9-]+, no leading/trailing/consecutive hyphens, length >= 2. An
// empty name is accepted here (callers separately reject empty names as
// "required"); an empty string is treated as "nothing to validate yet."
func validateName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxNameLength)
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("name must not contain consecutive hyphens")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match pattern [a-z0-9-]+ with no leading/trailing hyphen")
	}
	return nil
}

func findDuplicate(items []string) string {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			return item
		}
		seen[item] = struct{}{}
	}
	return ""
}

func findCollision(dependencies, mcpServers []string) string {
	mcpSet := make(map[string]struct{}, len(mcpServers))
	for _, m := range mcpServers {
		mcpSet[m] = struct{}{}
	}
	for _, d := range dependencies {
		if _, ok := mcpSet[d]; ok {
			return d
		}
	}
	return ""
}

// rejectSymlinks walks dir and reports (as a validation error, not a Go
// error) the first symlink found — bundles must contain only regular
// files and directories (§4.F's deterministic-tar contract does not
// define symlink handling, so we exclude them at validation time rather
// than silently resolving or skipping them).
func rejectSymlinks(dir string, result *ValidationResult) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("symlink found at %s: bundles must not contain symlinks", path))
		}
		return nil
	})
}
