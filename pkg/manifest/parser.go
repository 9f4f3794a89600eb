// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package manifest parses and validates a skill directory's SKILL.md: YAML
// frontmatter delimited by leading and trailing "---" lines, followed by a
// markdown body. Delimiter scanning and the StringOrSlice trick for
// space/comma/array tool lists feed into the SkillManifest schema: name,
// version, description, author, tags, dependencies, mcpServers, changelog.
package manifest

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MaxFrontmatterSize bounds the YAML frontmatter block to 64 KiB.
const MaxFrontmatterSize = 64 * 1024

// MaxDependencies bounds the combined dependencies+mcpServers count.
const MaxDependencies = 256

// MaxDescriptionLength bounds SkillManifest.Description (§3: 1..1024 chars).
const MaxDescriptionLength = 1024

// MaxNameLength bounds SkillManifest.Name (§3: 1..64 chars).
const MaxNameLength = 64

// ErrInvalidFrontmatter is returned (wrapped) when the frontmatter block is
// missing, malformed, or not valid YAML.
var ErrInvalidFrontmatter = errors.New("invalid frontmatter")

var delimiter = []byte("---")

// StringOrSlice unmarshals either a YAML sequence or a single delimited
// string (space- or comma-separated) into a string slice. Mirrors the
// teacher's allowed-tools field, generalized to manifest's tags/dependencies/
// mcpServers fields, all of which accept either shape in hand-authored
// SKILL.md files.
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	var seq []string
	if err := value.Decode(&seq); err == nil {
		*s = seq
		return nil
	}

	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	*s = splitList(str)
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	sep := " "
	for _, r := range s {
		if r == ',' {
			sep = ","
			break
		}
	}

	var out []string
	for _, field := range bytes.FieldsFunc([]byte(s), func(r rune) bool {
		return string(r) == sep || r == ' '
	}) {
		if len(field) > 0 {
			out = append(out, string(field))
		}
	}
	return out
}

// rawFrontmatter is the wire shape of SKILL.md's YAML block, unknown keys
// rejected (yaml.v3's KnownFields via a strict decoder) so frontmatter typos
// fail validation loudly rather than being silently dropped (§9).
type rawFrontmatter struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Description  string        `yaml:"description"`
	Author       string        `yaml:"author"`
	Tags         StringOrSlice `yaml:"tags"`
	Dependencies StringOrSlice `yaml:"dependencies"`
	McpServers   StringOrSlice `yaml:"mcpServers"`
	Changelog    string        `yaml:"changelog"`
}

// ParseResult is the in-memory form of a parsed SKILL.md.
type ParseResult struct {
	Name         string
	Version      string
	Description  string
	Author       string
	Tags         []string
	Dependencies []string
	McpServers   []string
	Changelog    string
	Body         []byte

	// Warnings carries non-blocking publish-time warnings, e.g. a
	// mcp__-prefixed entry found in Dependencies (§4.E).
	Warnings []string
}

// ParseSkillMD parses the content of a SKILL.md file.
func ParseSkillMD(content []byte) (*ParseResult, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	if len(frontmatter) > MaxFrontmatterSize {
		return nil, fmt.Errorf("%w: frontmatter exceeds maximum size of %d bytes", ErrInvalidFrontmatter, MaxFrontmatterSize)
	}

	dec := yaml.NewDecoder(bytes.NewReader(frontmatter))
	dec.KnownFields(true)
	var raw rawFrontmatter
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrontmatter, err)
	}

	result := &ParseResult{
		Name:        raw.Name,
		Version:     raw.Version,
		Description: raw.Description,
		Author:      raw.Author,
		Tags:        []string(raw.Tags),
		Changelog:   raw.Changelog,
		Body:        body,
	}

	deps, mcpServers, warnings := classifyDependencies([]string(raw.Dependencies), []string(raw.McpServers))
	if len(deps)+len(mcpServers) > MaxDependencies {
		return nil, fmt.Errorf("too many dependencies: more than %d entries across dependencies and mcpServers", MaxDependencies)
	}
	result.Dependencies = deps
	result.McpServers = mcpServers
	result.Warnings = warnings

	return result, nil
}

// classifyDependencies applies §4.E's classification rule: an entry is an
// MCP server iff it begins with the exact ASCII prefix "mcp__"
// (case-sensitive; "MCP__" is NOT an MCP server). A mcp__-prefixed entry
// found in the dependencies list is reclassified into mcpServers and
// produces a non-blocking warning (§4.E, §7).
func classifyDependencies(dependencies, declaredMcpServers []string) (deps, mcpServers []string, warnings []string) {
	mcpServers = append(mcpServers, declaredMcpServers...)

	for _, d := range dependencies {
		if isMcpServer(d) {
			warnings = append(warnings, fmt.Sprintf(
				"dependency %q uses the mcp__ prefix; it is treated as an MCP server requirement, not an installable dependency. Move it to mcpServers.", d))
			mcpServers = append(mcpServers, d)
			continue
		}
		deps = append(deps, d)
	}
	return deps, mcpServers, warnings
}

// isMcpServer reports whether identifier begins with the exact ASCII prefix
// "mcp__" (case-sensitive).
func isMcpServer(identifier string) bool {
	const prefix = "mcp__"
	return len(identifier) >= len(prefix) && identifier[:len(prefix)] == prefix
}

// splitFrontmatter extracts the YAML block and markdown body from raw
// SKILL.md content delimited by leading/trailing "---" lines.
func splitFrontmatter(content []byte) (frontmatter, body []byte, err error) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) == 0 || !bytes.Equal(bytes.TrimSpace(lines[0]), delimiter) {
		return nil, nil, fmt.Errorf("%w: content must begin with a %q delimiter line", ErrInvalidFrontmatter, "---")
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), delimiter) {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return nil, nil, fmt.Errorf("%w: missing closing %q delimiter", ErrInvalidFrontmatter, "---")
	}

	frontmatter = bytes.Join(lines[1:closeIdx], []byte("\n"))
	body = bytes.TrimSpace(bytes.Join(lines[closeIdx+1:], []byte("\n")))
	return frontmatter, body, nil
}
