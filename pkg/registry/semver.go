// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"strconv"
	"strings"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// semver is a parsed MAJOR.MINOR.PATCH version (§3: "digits only").
type semver struct {
	major, minor, patch int
}

func parseSemver(version string) (semver, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return semver{}, skherrors.NewValidationError(
			fmt.Sprintf("version %q is not MAJOR.MINOR.PATCH", version), nil)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return semver{}, skherrors.NewValidationError(
				fmt.Sprintf("version %q has a non-numeric component %q", version, p), nil)
		}
		nums[i] = n
	}

	return semver{major: nums[0], minor: nums[1], patch: nums[2]}, nil
}

// CompareSemver returns -1, 0, or 1 as a compares less than, equal to, or
// greater than b. Unparseable versions sort as less than any parseable
// version, and are ordered among themselves by raw string comparison.
func CompareSemver(a, b string) int {
	va, errA := parseSemver(a)
	vb, errB := parseSemver(b)
	if errA != nil || errB != nil {
		switch {
		case errA != nil && errB != nil:
			return strings.Compare(a, b)
		case errA != nil:
			return -1
		default:
			return 1
		}
	}

	switch {
	case va.major != vb.major:
		return sign(va.major - vb.major)
	case va.minor != vb.minor:
		return sign(va.minor - vb.minor)
	default:
		return sign(va.patch - vb.patch)
	}
}

// IsSemverGreater reports whether a is strictly greater than b.
func IsSemverGreater(a, b string) bool {
	return CompareSemver(a, b) > 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// ValidateSemver reports an error if version is not MAJOR.MINOR.PATCH.
func ValidateSemver(version string) error {
	_, err := parseSemver(version)
	return err
}

// mcpServerPrefix is the exact, case-sensitive prefix that classifies an
// identifier as an MCP server requirement rather than an installable
// skill dependency (§3, §4.E, §4.G).
const mcpServerPrefix = "mcp__"

// IsMcpServer reports whether identifier begins with the exact ASCII
// prefix "mcp__" (case-sensitive; "MCP__" does not qualify).
func IsMcpServer(identifier string) bool {
	return strings.HasPrefix(identifier, mcpServerPrefix)
}
