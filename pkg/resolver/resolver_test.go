// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
)

// fakeLookup is an in-memory graph keyed by skill name, with call counts
// for asserting dedup/memoization behavior.
type fakeLookup struct {
	mu    sync.Mutex
	graph map[string]*registry.SkillVersion
	calls map[string]int
}

func newFakeLookup(skills ...*registry.SkillVersion) *fakeLookup {
	f := &fakeLookup{graph: make(map[string]*registry.SkillVersion), calls: make(map[string]int)}
	for _, s := range skills {
		f.graph[s.Name] = s
	}
	return f
}

func (f *fakeLookup) GetSkill(_ context.Context, name, _ string) (*registry.SkillVersion, error) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
	return f.graph[name], nil
}

func (f *fakeLookup) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func skill(name, version string, deps ...string) *registry.SkillVersion {
	return &registry.SkillVersion{Name: name, Version: version, Dependencies: deps}
}

func TestResolve_LinearChain_OrderIsLeavesFirst(t *testing.T) {
	t.Parallel()
	lookup := newFakeLookup(
		skill("root", "1.0.0", "dep-a"),
		skill("dep-a", "1.0.0", "dep-b"),
		skill("dep-b", "1.0.0"),
	)

	plan, err := Resolve(context.Background(), Reference{Name: "root"}, lookup)
	require.NoError(t, err)

	names := make([]string, len(plan.Order))
	for i, n := range plan.Order {
		names[i] = n.Name
	}
	assert.Equal(t, []string{"dep-b", "dep-a", "root"}, names)
}

func TestResolve_DiamondDependency_FetchedOnce(t *testing.T) {
	t.Parallel()
	lookup := newFakeLookup(
		skill("root", "1.0.0", "left", "right"),
		skill("left", "1.0.0", "shared"),
		skill("right", "1.0.0", "shared"),
		skill("shared", "1.0.0"),
	)

	plan, err := Resolve(context.Background(), Reference{Name: "root"}, lookup)
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.callCount("shared"), "diamond dependency should be fetched exactly once")

	seen := make(map[string]bool)
	for _, n := range plan.Order {
		assert.False(t, seen[n.Name], "node %q appeared twice in Order", n.Name)
		seen[n.Name] = true
	}
	assert.True(t, seen["shared"])
	assert.Equal(t, "root", plan.Order[len(plan.Order)-1].Name)
}

func TestResolve_Cycle_ReturnsDependencyError(t *testing.T) {
	t.Parallel()
	lookup := newFakeLookup(
		skill("a", "1.0.0", "b"),
		skill("b", "1.0.0", "c"),
		skill("c", "1.0.0", "a"),
	)

	_, err := Resolve(context.Background(), Reference{Name: "a"}, lookup)
	require.Error(t, err)
	assert.True(t, skherrors.IsDependency(err))
	assert.Contains(t, err.Error(), "cycle")
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestResolve_McpServerDependency_FilteredIntoSideChannel(t *testing.T) {
	t.Parallel()
	lookup := newFakeLookup(
		skill("skill-x", "1.0.0", "ao-basics", "mcp__pixel-art"),
		skill("ao-basics", "1.0.0"),
	)

	plan, err := Resolve(context.Background(), Reference{Name: "skill-x"}, lookup)
	require.NoError(t, err)

	names := make([]string, len(plan.Order))
	for i, n := range plan.Order {
		names[i] = n.Name
	}
	assert.Equal(t, []string{"ao-basics", "skill-x"}, names, "mcp__ entries must not appear as installable nodes")
	assert.Equal(t, []string{"mcp__pixel-art"}, plan.McpServersNeeded)
}

func TestResolve_DepthExceeded_ReturnsDependencyError(t *testing.T) {
	t.Parallel()
	skills := make([]*registry.SkillVersion, 0, MaxDepth+3)
	for i := 0; i <= MaxDepth+2; i++ {
		name := fmt.Sprintf("n%d", i)
		next := fmt.Sprintf("n%d", i+1)
		skills = append(skills, skill(name, "1.0.0", next))
	}
	lookup := newFakeLookup(skills...)

	_, err := Resolve(context.Background(), Reference{Name: "n0"}, lookup)
	require.Error(t, err)
	assert.True(t, skherrors.IsDependency(err))
	assert.Contains(t, err.Error(), "maximum depth exceeded")
}

func TestResolve_MissingSkill_ReturnsValidationError(t *testing.T) {
	t.Parallel()
	lookup := newFakeLookup(skill("root", "1.0.0", "missing"))

	_, err := Resolve(context.Background(), Reference{Name: "root"}, lookup)
	require.Error(t, err)
	assert.True(t, skherrors.IsValidation(err))
}
