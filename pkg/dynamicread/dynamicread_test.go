// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dynamicread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillhive/skillhive/pkg/registry"
)

func stateWithSkills() *registry.RegistryState {
	state := registry.NewRegistryState()
	state.Skills["ao-basics"] = &registry.SkillEntry{
		Latest: "1.0.0",
		Versions: map[string]*registry.SkillVersion{
			"1.0.0": {
				Name: "ao-basics", Version: "1.0.0", Description: "AO fundamentals",
				Author: "alice", Tags: []string{"ao", "beginner"},
				UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	state.Skills["pixel-art"] = &registry.SkillEntry{
		Latest: "2.0.0",
		Versions: map[string]*registry.SkillVersion{
			"1.0.0": {Name: "pixel-art", Version: "1.0.0", DownloadCount: 3},
			"2.0.0": {
				Name: "pixel-art", Version: "2.0.0", Author: "bob",
				DownloadCount: 5, UpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	return state
}

func TestSearchSkills_EmptyQueryReturnsAllLatest(t *testing.T) {
	t.Parallel()
	result := SearchSkills(stateWithSkills(), map[string]string{})
	assert.Equal(t, 200, result.Status)
	skills := result.Fields["skills"].([]*registry.SkillVersion)
	assert.Len(t, skills, 2)
}

func TestSearchSkills_MatchesTag(t *testing.T) {
	t.Parallel()
	result := SearchSkills(stateWithSkills(), map[string]string{"query": "beginner"})
	skills := result.Fields["skills"].([]*registry.SkillVersion)
	require.Len(t, skills, 1)
	assert.Equal(t, "ao-basics", skills[0].Name)
}

func TestGetSkill_MissingNameIsBadRequest(t *testing.T) {
	t.Parallel()
	result := GetSkill(stateWithSkills(), map[string]string{})
	assert.Equal(t, 400, result.Status)
}

func TestGetSkill_AbsentIsNotFound(t *testing.T) {
	t.Parallel()
	result := GetSkill(stateWithSkills(), map[string]string{"name": "missing"})
	assert.Equal(t, 404, result.Status)
}

func TestGetSkill_DefaultsToLatest(t *testing.T) {
	t.Parallel()
	result := GetSkill(stateWithSkills(), map[string]string{"name": "pixel-art"})
	assert.Equal(t, 200, result.Status)
	sv := result.Fields["skill"].(*registry.SkillVersion)
	assert.Equal(t, "2.0.0", sv.Version)
}

func TestListSkills_PaginatesAndFlags(t *testing.T) {
	t.Parallel()
	result := ListSkills(stateWithSkills(), map[string]string{"limit": "1", "offset": "0"})
	pagination := result.Fields["pagination"].(map[string]any)
	assert.Equal(t, 2, pagination["total"])
	assert.Equal(t, 1, pagination["returned"])
	assert.True(t, pagination["hasNextPage"].(bool))
	assert.False(t, pagination["hasPrevPage"].(bool))
}

func TestListSkills_FilterByAuthor(t *testing.T) {
	t.Parallel()
	result := ListSkills(stateWithSkills(), map[string]string{"author": "BOB"})
	skills := result.Fields["skills"].([]*registry.SkillVersion)
	require.Len(t, skills, 1)
	assert.Equal(t, "pixel-art", skills[0].Name)
}

func TestGetSkillVersions_SortsDescending(t *testing.T) {
	t.Parallel()
	result := GetSkillVersions(stateWithSkills(), map[string]string{"name": "pixel-art"})
	assert.Equal(t, 200, result.Status)
	versions := result.Fields["versions"].([]*registry.SkillVersion)
	require.Len(t, versions, 2)
	assert.Equal(t, "2.0.0", versions[0].Version)
	assert.Equal(t, "2.0.0", result.Fields["latest"])
}

func TestGetDownloadStats_ZeroIsLegitimate(t *testing.T) {
	t.Parallel()
	result := GetDownloadStats(stateWithSkills(), map[string]string{"name": "ao-basics"})
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, 0, result.Fields["total"])
}

func TestGetDownloadStats_SumsAcrossVersions(t *testing.T) {
	t.Parallel()
	result := GetDownloadStats(stateWithSkills(), map[string]string{"name": "pixel-art"})
	assert.Equal(t, 8, result.Fields["total"])
}

func TestInfo_ListsHandlers(t *testing.T) {
	t.Parallel()
	result := Info(stateWithSkills(), nil)
	assert.Equal(t, 200, result.Status)
	handlers := result.Fields["handlers"].([]string)
	assert.Contains(t, handlers, "Register-Skill")
}
