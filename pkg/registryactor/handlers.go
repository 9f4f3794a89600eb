// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryactor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/skillhive/skillhive/pkg/registry"
)

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// handleRegisterSkill implements §4.I's Register-Skill: reject a
// duplicate (name, version); otherwise store the version, advance Latest
// iff the new version is semver-greater, and stamp Owner/PublishedAt/
// UpdatedAt from the message, never wall clock.
func (a *Actor) handleRegisterSkill(msg Message) Response {
	name := msg.Tags["Name"]
	version := msg.Tags["Version"]

	if err := registry.ValidateSemver(version); err != nil {
		return errorResponse(err.Error())
	}

	entry, exists := a.state.Skills[name]
	if exists {
		if _, taken := entry.Versions[version]; taken {
			return errorResponse(fmt.Sprintf("Skill with name '%s' version '%s' already exists", name, version))
		}
	} else {
		entry = &registry.SkillEntry{Versions: make(map[string]*registry.SkillVersion)}
		a.state.Skills[name] = entry
	}

	sv := &registry.SkillVersion{
		Name:               name,
		Version:            version,
		Description:        msg.Tags["Description"],
		Author:             msg.Tags["Author"],
		Tags:               splitCSV(msg.Tags["Tags"]),
		Dependencies:       splitCSV(msg.Tags["Dependencies"]),
		McpServers:         splitCSV(msg.Tags["McpServers"]),
		Changelog:          msg.Tags["Changelog"],
		Owner:              msg.From,
		ArweaveTxID:        msg.Tags["ArweaveTxId"],
		PublishedAt:        msg.Timestamp,
		UpdatedAt:          msg.Timestamp,
		DownloadCount:      0,
		DownloadTimestamps: nil,
	}
	entry.Versions[version] = sv

	if entry.Latest == "" || registry.IsSemverGreater(version, entry.Latest) {
		entry.Latest = version
	}

	return Response{Action: "Skill-Registered", Tags: map[string]string{"Name": name, "Version": version}}
}

// handleUpdateSkill implements §4.I's Update-Skill: ownership-restricted
// to the original owner via the cedar-backed OwnershipChecker, preserves
// PublishedAt, refreshes UpdatedAt from the message's own timestamp.
func (a *Actor) handleUpdateSkill(msg Message) Response {
	name := msg.Tags["Name"]
	version := msg.Tags["Version"]

	entry, exists := a.state.Skills[name]
	if !exists {
		return errorResponse(fmt.Sprintf("skill %q not found", name))
	}
	existing, exists := entry.Versions[version]
	if !exists {
		return errorResponse(fmt.Sprintf("skill %q version %q not found", name, version))
	}

	if !a.ownership.IsOwner(msg.From, existing.Owner) {
		return errorResponse("unauthorized: caller is not the skill owner")
	}

	updated := *existing
	if desc, ok := msg.Tags["Description"]; ok && desc != "" {
		updated.Description = desc
	}
	if tags, ok := msg.Tags["Tags"]; ok {
		updated.Tags = splitCSV(tags)
	}
	if changelog, ok := msg.Tags["Changelog"]; ok {
		updated.Changelog = changelog
	}
	updated.UpdatedAt = msg.Timestamp
	entry.Versions[version] = &updated

	return Response{Action: "Skill-Updated", Tags: map[string]string{"Name": name, "Version": version}}
}

// handleSearchSkills implements §4.I's case-insensitive substring search
// over {name, description, author} plus exact case-insensitive tag
// membership, restricted to latest versions; an empty query matches all.
func (a *Actor) handleSearchSkills(msg Message) Response {
	query := strings.ToLower(strings.TrimSpace(msg.Tags["Query"]))
	wantTags := splitCSV(msg.Tags["Tags"])

	var matches []*registry.SkillVersion
	for _, entry := range a.state.Skills {
		latest := entry.LatestVersion()
		if latest == nil {
			continue
		}
		if query != "" && !matchesQuery(latest, query) {
			continue
		}
		if !hasAllTags(latest.Tags, wantTags) {
			continue
		}
		matches = append(matches, latest)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].UpdatedAt.After(matches[j].UpdatedAt) })

	return Response{Action: "Search-Results", Tags: map[string]string{"Count": strconv.Itoa(len(matches))}}
}

func matchesQuery(v *registry.SkillVersion, query string) bool {
	return strings.Contains(strings.ToLower(v.Name), query) ||
		strings.Contains(strings.ToLower(v.Description), query) ||
		strings.Contains(strings.ToLower(v.Author), query)
}

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

// handleListSkills implements §4.I's paginated List-Skills: author exact
// (case-insensitive), filterTags AND, filterName substring; limit
// clamped to [1,100] default 10, offset >= 0 default 0.
func (a *Actor) handleListSkills(msg Message) Response {
	author := strings.ToLower(strings.TrimSpace(msg.Tags["Author"]))
	filterName := strings.ToLower(strings.TrimSpace(msg.Tags["FilterName"]))
	filterTags := splitCSV(msg.Tags["FilterTags"])

	limit := clampLimit(msg.Tags["Limit"])
	offset := clampOffset(msg.Tags["Offset"])

	var matches []*registry.SkillVersion
	for _, entry := range a.state.Skills {
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

	return Response{Action: "Skills-Listed", Tags: map[string]string{
		"Total":       strconv.Itoa(total),
		"Limit":       strconv.Itoa(limit),
		"Offset":      strconv.Itoa(offset),
		"Returned":    strconv.Itoa(len(page)),
		"HasNextPage": strconv.FormatBool(offset+len(page) < total),
		"HasPrevPage": strconv.FormatBool(offset > 0),
	}}
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

// handleGetSkill implements §4.I's Get-Skill: by name, optional Version
// tag else latest.
func (a *Actor) handleGetSkill(msg Message) Response {
	name := msg.Tags["Name"]
	entry, exists := a.state.Skills[name]
	if !exists {
		return errorResponse(fmt.Sprintf("skill %q not found", name))
	}

	version := msg.Tags["Version"]
	var sv *registry.SkillVersion
	if version == "" {
		sv = entry.LatestVersion()
	} else {
		sv = entry.Versions[version]
	}
	if sv == nil {
		return errorResponse(fmt.Sprintf("skill %q version %q not found", name, version))
	}

	return Response{Action: "Skill", Tags: map[string]string{"Name": sv.Name, "Version": sv.Version}}
}

// handleGetSkillVersions implements §4.I's Get-Skill-Versions: all
// versions, sorted semver-descending, plus the latest pointer.
func (a *Actor) handleGetSkillVersions(msg Message) Response {
	name := msg.Tags["Name"]
	entry, exists := a.state.Skills[name]
	if !exists {
		return errorResponse(fmt.Sprintf("skill %q not found", name))
	}

	versions := make([]string, 0, len(entry.Versions))
	for v := range entry.Versions {
		versions = append(versions, v)
	}
	sort.SliceStable(versions, func(i, j int) bool { return registry.IsSemverGreater(versions[i], versions[j]) })

	return Response{Action: "Skill-Versions", Tags: map[string]string{
		"Name":     name,
		"Latest":   entry.Latest,
		"Versions": strings.Join(versions, ","),
	}}
}

// handleRecordDownload implements §4.I's Record-Download: increments
// DownloadCount and appends the message's own timestamp; a missing
// skill/version is a silent no-op, a missing Name tag is an Error.
func (a *Actor) handleRecordDownload(msg Message) Response {
	name := msg.Tags["Name"]
	if name == "" {
		return errorResponse("Record-Download requires a Name tag")
	}

	entry, exists := a.state.Skills[name]
	if !exists {
		return Response{Action: "Download-Recorded", Tags: map[string]string{"Name": name}}
	}

	version := msg.Tags["Version"]
	if version == "" {
		version = entry.Latest
	}
	sv, exists := entry.Versions[version]
	if !exists {
		return Response{Action: "Download-Recorded", Tags: map[string]string{"Name": name}}
	}

	sv.DownloadCount++
	sv.DownloadTimestamps = append(sv.DownloadTimestamps, msg.Timestamp)

	return Response{Action: "Download-Recorded", Tags: map[string]string{"Name": name, "Version": version}}
}

// handleGetDownloadStats implements §4.I's Get-Download-Stats: a total
// plus a per-version breakdown. Zero is a legitimate result, not absence.
func (a *Actor) handleGetDownloadStats(msg Message) Response {
	name := msg.Tags["Name"]
	entry, exists := a.state.Skills[name]
	if !exists {
		return errorResponse(fmt.Sprintf("skill %q not found", name))
	}

	total := 0
	var parts []string
	for version, sv := range entry.Versions {
		total += sv.DownloadCount
		parts = append(parts, fmt.Sprintf("%s:%d", version, sv.DownloadCount))
	}
	sort.Strings(parts)

	return Response{Action: "Download-Stats", Tags: map[string]string{
		"Name":       name,
		"Total":      strconv.Itoa(total),
		"PerVersion": strings.Join(parts, ","),
	}}
}

// handleInfo implements §4.I's Info: a Handlers tag listing this actor's
// handler names. It reports neither a process version nor the per-handler
// tag schemas.
func (a *Actor) handleInfo(_ Message) Response {
	return Response{Action: "Info", Tags: map[string]string{
		"Handlers": strings.Join(handlerNames(), ","),
	}}
}

func handlerNames() []string {
	return []string{
		"Register-Skill", "Update-Skill", "Search-Skills", "List-Skills",
		"Get-Skill", "Get-Skill-Versions", "Record-Download",
		"Get-Download-Stats", "Info",
	}
}
