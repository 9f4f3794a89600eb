// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package resolver implements dependency resolution: a memoized,
// cycle-safe, depth-capped depth-first walk of the registry's dependency
// graph, producing a topologically ordered install plan.
//
// Bounded concurrency uses an *errgroup.Group, the same shape used to
// fan out metadata lookups within one DFS frontier elsewhere in this
// codebase. Deduplicating concurrent lookups of a shared dependency
// (a diamond in the graph) uses golang.org/x/sync/singleflight, so two
// siblings requesting the same skill collapse into one fetch instead of
// racing each other or tripping a false cycle.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
)

// MaxDepth is §4.G's hard depth cap on the dependency walk.
const MaxDepth = 10

// FrontierConcurrency bounds how many sibling dependency lookups within
// one DFS frontier run concurrently (§4.G, §5).
const FrontierConcurrency = 8

// SkillLookup resolves a skill, optionally pinned to a version; an empty
// version requests latest. It is satisfied by *registryclient.Client,
// narrowed to the one method the resolver actually needs.
type SkillLookup interface {
	GetSkill(ctx context.Context, name, version string) (*registry.SkillVersion, error)
}

// Reference is a root skill reference, optionally version-pinned.
type Reference struct {
	Name    string
	Version string
}

// resolution is the memoization and dedup state shared across one
// Resolve call's concurrent DFS frontiers. Ancestor-path cycle detection
// uses a per-call path slice (never shared, so it needs no lock);
// completed-node memoization and post-order accumulation do, since
// multiple frontiers write to them concurrently.
type resolution struct {
	group singleflight.Group

	memoMu sync.Mutex
	memo   map[string]*registry.DependencyNode

	orderMu   sync.Mutex
	orderSeen map[string]bool
	order     []*registry.DependencyNode

	mcpMu      sync.Mutex
	mcpServers map[string]bool
}

func newResolution() *resolution {
	return &resolution{
		memo:       make(map[string]*registry.DependencyNode),
		orderSeen:  make(map[string]bool),
		mcpServers: make(map[string]bool),
	}
}

// Resolve walks the dependency graph rooted at ref via lookup, returning
// an InstallPlan whose Order is post-order (leaves first, root last) and
// whose McpServersNeeded collects every mcp__-prefixed dependency
// encountered, deduplicated and sorted.
func Resolve(ctx context.Context, ref Reference, lookup SkillLookup) (*registry.InstallPlan, error) {
	res := newResolution()

	node, err := res.walk(ctx, lookup, ref.Name, ref.Version, 0, nil)
	if err != nil {
		return nil, err
	}

	mcpList := make([]string, 0, len(res.mcpServers))
	for m := range res.mcpServers {
		mcpList = append(mcpList, m)
	}
	sort.Strings(mcpList)

	return &registry.InstallPlan{
		Root:             node,
		Order:            res.order,
		McpServersNeeded: mcpList,
	}, nil
}

func memoKey(name, version string) string {
	if version == "" {
		return name
	}
	return name + "@" + version
}

// walk resolves one node given the ancestor path leading to it. path
// never aliases a caller's slice across goroutines: each recursive call
// receives its own append-grown copy.
func (res *resolution) walk(ctx context.Context, lookup SkillLookup, name, version string, depth int, path []string) (*registry.DependencyNode, error) {
	if depth > MaxDepth {
		return nil, skherrors.NewDependencyError(
			fmt.Sprintf("maximum depth exceeded resolving %q (limit %d)", name, MaxDepth), nil)
	}

	for _, ancestor := range path {
		if ancestor == name {
			cycle := append(append([]string{}, path...), name)
			return nil, skherrors.NewDependencyError("cycle: "+strings.Join(cycle, " -> "), nil)
		}
	}

	key := memoKey(name, version)

	res.memoMu.Lock()
	if node, ok := res.memo[key]; ok {
		res.memoMu.Unlock()
		return node, nil
	}
	res.memoMu.Unlock()

	v, err, _ := res.group.Do(key, func() (interface{}, error) {
		res.memoMu.Lock()
		node, ok := res.memo[key]
		res.memoMu.Unlock()
		if ok {
			return node, nil
		}
		return res.resolveOnce(ctx, lookup, name, version, depth, path)
	})
	if err != nil {
		return nil, err
	}
	return v.(*registry.DependencyNode), nil
}

// resolveOnce fetches name's metadata and recurses into its dependencies.
// Called at most once per (name, version) key per Resolve call, via
// singleflight.
func (res *resolution) resolveOnce(ctx context.Context, lookup SkillLookup, name, version string, depth int, path []string) (*registry.DependencyNode, error) {
	skill, err := lookup.GetSkill(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if skill == nil {
		return nil, skherrors.NewValidationError(fmt.Sprintf("skill %q not found", name), nil)
	}

	node := &registry.DependencyNode{Name: skill.Name, Version: skill.Version, Depth: depth}
	childPath := append(append([]string{}, path...), name)

	var depNames []string
	for _, dep := range skill.Dependencies {
		if registry.IsMcpServer(dep) {
			res.addMcpServer(dep)
			continue
		}
		depNames = append(depNames, dep)
	}
	for _, mcp := range skill.McpServers {
		res.addMcpServer(mcp)
	}

	children := make([]*registry.DependencyNode, len(depNames))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(FrontierConcurrency)

	for i, depName := range depNames {
		i, depName := i, depName
		group.Go(func() error {
			child, err := res.walk(groupCtx, lookup, depName, "", depth+1, childPath)
			if err != nil {
				return err
			}
			children[i] = child
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	node.Children = children

	key := memoKey(name, version)
	res.memoMu.Lock()
	res.memo[key] = node
	res.memoMu.Unlock()

	res.orderMu.Lock()
	if !res.orderSeen[key] {
		res.orderSeen[key] = true
		res.order = append(res.order, node)
	}
	res.orderMu.Unlock()

	return node, nil
}

func (res *resolution) addMcpServer(name string) {
	res.mcpMu.Lock()
	res.mcpServers[name] = true
	res.mcpMu.Unlock()
}
