// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dynamicread implements dynamic-read scripts: pure, read-only
// query functions over a registry.RegistryState snapshot, exposed as chi
// routes following the same apierrors.ErrorHandler decorator the
// registry actor's HTTP projection uses. Each function here never
// mutates its input and persists nothing across invocations.
package dynamicread

import (
	"sort"
	"strconv"
	"strings"

	"github.com/skillhive/skillhive/pkg/registry"
)

// StateSource returns the current RegistryState snapshot each script
// reads from. It is satisfied by the registry actor's own state
// accessor or, in tests, a fixed snapshot.
type StateSource func() *registry.RegistryState

// Result is a dynamic-read script's output: a status code (200/400/404/
// 500, §4.J) and a field map serialized as the HTTP response body.
type Result struct {
	Status int
	Fields map[string]any
}

func ok(fields map[string]any) Result { return Result{Status: 200, Fields: fields} }
func badRequest(msg string) Result    { return Result{Status: 400, Fields: map[string]any{"error": msg}} }
func notFound(msg string) Result      { return Result{Status: 404, Fields: map[string]any{"error": msg}} }
func internalError(msg string) Result { return Result{Status: 500, Fields: map[string]any{"error": msg}} }

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	haveSet := make(map[string]bool, len(have))
	for _, t := range have {
		haveSet[strings.ToLower(t)] = true
	}
	for _, w := range want {
		if !haveSet[strings.ToLower(w)] {
			return false
		}
	}
	return true
}

// SearchSkills mirrors the actor's Search-Skills semantics: case-
// insensitive substring over {name, description, tags, author}; an
// empty query matches every skill's latest version.
func SearchSkills(state *registry.RegistryState, req map[string]string) Result {
	if state == nil {
		return internalError("registry state unavailable")
	}

	query := strings.ToLower(strings.TrimSpace(req["query"]))
	var matches []*registry.SkillVersion
	for _, entry := range state.Skills {
		latest := entry.LatestVersion()
		if latest == nil {
			continue
		}
		if query != "" && !containsAny(latest, query) {
			continue
		}
		matches = append(matches, latest)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].UpdatedAt.After(matches[j].UpdatedAt) })

	return ok(map[string]any{"skills": matches})
}

func containsAny(v *registry.SkillVersion, query string) bool {
	if strings.Contains(strings.ToLower(v.Name), query) ||
		strings.Contains(strings.ToLower(v.Description), query) ||
		strings.Contains(strings.ToLower(v.Author), query) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// GetSkill mirrors the actor's Get-Skill: 400 on a missing name param,
// 404 if absent, 200 with the resolved version (latest, unless a
// version param pins it) otherwise.
func GetSkill(state *registry.RegistryState, req map[string]string) Result {
	if state == nil {
		return internalError("registry state unavailable")
	}

	name := req["name"]
	if name == "" {
		return badRequest("name is required")
	}

	entry, exists := state.Skills[name]
	if !exists {
		return notFound("skill not found")
	}

	version := req["version"]
	var sv *registry.SkillVersion
	if version == "" {
		sv = entry.LatestVersion()
	} else {
		sv = entry.Versions[version]
	}
	if sv == nil {
		return notFound("skill version not found")
	}

	return ok(map[string]any{"skill": sv})
}

// ListSkills mirrors the actor's List-Skills pagination and filter
// semantics (§4.I): author exact case-insensitive, filterTags AND,
// filterName substring; limit clamped to [1,100] default 10, offset
// clamped to >= 0 default 0.
func ListSkills(state *registry.RegistryState, req map[string]string) Result {
	if state == nil {
		return internalError("registry state unavailable")
	}

	author := strings.ToLower(strings.TrimSpace(req["author"]))
	filterName := strings.ToLower(strings.TrimSpace(req["filterName"]))
	var filterTags []string
	if raw := req["filterTags"]; raw != "" {
		filterTags = strings.Split(raw, ",")
	}
	limit := clampLimit(req["limit"])
	offset := clampOffset(req["offset"])

	var matches []*registry.SkillVersion
	for _, entry := range state.Skills {
		latest := entry.LatestVersion()
		if latest == nil {
			continue
		}
		if author != "" && strings.ToLower(latest.Author) != author {
			continue
		}
		if filterName != "" && !strings.Contains(strings.ToLower(latest.Name), filterName) {
			continue
		}
		if !hasAllTags(latest.Tags, filterTags) {
			continue
		}
		matches = append(matches, latest)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })

	total := len(matches)
	page := paginate(matches, offset, limit)

	return ok(map[string]any{
		"skills": page,
		"pagination": map[string]any{
			"total":       total,
			"limit":       limit,
			"offset":      offset,
			"returned":    len(page),
			"hasNextPage": offset+len(page) < total,
			"hasPrevPage": offset > 0,
		},
	})
}

func clampLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 10
	}
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}

func clampOffset(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func paginate(items []*registry.SkillVersion, offset, limit int) []*registry.SkillVersion {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// GetSkillVersions mirrors the actor's Get-Skill-Versions: all versions
// sorted semver-descending, plus the latest pointer.
func GetSkillVersions(state *registry.RegistryState, req map[string]string) Result {
	if state == nil {
		return internalError("registry state unavailable")
	}

	name := req["name"]
	if name == "" {
		return badRequest("name is required")
	}

	entry, exists := state.Skills[name]
	if !exists {
		return notFound("skill not found")
	}

	versions := make([]*registry.SkillVersion, 0, len(entry.Versions))
	for _, v := range entry.Versions {
		versions = append(versions, v)
	}
	sort.SliceStable(versions, func(i, j int) bool { return registry.IsSemverGreater(versions[i].Version, versions[j].Version) })

	return ok(map[string]any{"versions": versions, "latest": entry.Latest})
}

// GetDownloadStats mirrors the actor's Get-Download-Stats: a total plus
// a per-version breakdown; zero is a legitimate result, not a 404.
func GetDownloadStats(state *registry.RegistryState, req map[string]string) Result {
	if state == nil {
		return internalError("registry state unavailable")
	}

	name := req["name"]
	if name == "" {
		return badRequest("name is required")
	}

	entry, exists := state.Skills[name]
	if !exists {
		return notFound("skill not found")
	}

	total := 0
	perVersion := make(map[string]int, len(entry.Versions))
	for version, sv := range entry.Versions {
		total += sv.DownloadCount
		perVersion[version] = sv.DownloadCount
	}

	return ok(map[string]any{"total": total, "perVersion": perVersion})
}

// Info returns the same handler list as the actor's Info handler (§4.J).
// Like the actor's, it reports neither a process version nor the
// per-handler tag schemas.
func Info(_ *registry.RegistryState, _ map[string]string) Result {
	return ok(map[string]any{
		"handlers": []string{
			"Register-Skill", "Update-Skill", "Search-Skills", "List-Skills",
			"Get-Skill", "Get-Skill-Versions", "Record-Download",
			"Get-Download-Stats", "Info",
		},
	})
}
