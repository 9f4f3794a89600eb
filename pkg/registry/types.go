// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the shared domain model for the registry actor,
// its client, the resolver, and the orchestrators: SkillVersion,
// SkillEntry, RegistryState, and InstallPlan (§3).
package registry

import "time"

// SkillVersion is a registered, immutable point in a skill's version
// history: the published manifest plus registry-assigned bookkeeping.
type SkillVersion struct {
	Name               string    `json:"name"`
	Version            string    `json:"version"`
	Description        string    `json:"description"`
	Author             string    `json:"author"`
	Tags               []string  `json:"tags"`
	Dependencies       []string  `json:"dependencies"`
	McpServers         []string  `json:"mcpServers"`
	Changelog          string    `json:"changelog,omitempty"`
	Owner              string      `json:"owner"`
	ArweaveTxID        string      `json:"arweaveTxId"`
	PublishedAt        time.Time   `json:"publishedAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	DownloadCount      int         `json:"downloadCount"`
	DownloadTimestamps []time.Time `json:"downloadTimestamps"`
}

// SkillEntry is a named row in the registry: every published version of
// one skill plus a pointer to the current latest.
type SkillEntry struct {
	Versions map[string]*SkillVersion `json:"versions"`
	Latest   string                   `json:"latest"`
}

// LatestVersion returns the SkillEntry's current latest SkillVersion, or
// nil if the invariant (versions[latest] exists) has somehow been
// violated by a caller bypassing the actor's handlers.
func (e *SkillEntry) LatestVersion() *SkillVersion {
	if e == nil {
		return nil
	}
	return e.Versions[e.Latest]
}

// RegistryState is the registry actor's authoritative, single-threaded
// state (§3, §4.I). Mutation happens only through the actor's mailbox;
// this type itself carries no synchronization.
type RegistryState struct {
	Skills          map[string]*SkillEntry `json:"skills"`
	InitialSyncDone bool                   `json:"-"`
}

// NewRegistryState returns an empty, ready-to-use RegistryState.
func NewRegistryState() *RegistryState {
	return &RegistryState{Skills: make(map[string]*SkillEntry)}
}

// Snapshot returns a shallow copy of the skills map suitable for handing
// to a dynamic-read script or an HTTP projection: the map itself is new,
// but SkillEntry/SkillVersion values are shared and must be treated as
// read-only by the caller.
func (s *RegistryState) Snapshot() map[string]*SkillEntry {
	out := make(map[string]*SkillEntry, len(s.Skills))
	for k, v := range s.Skills {
		out[k] = v
	}
	return out
}

// DependencyNode is one vertex of a resolved InstallPlan's dependency
// tree (§3).
type DependencyNode struct {
	Name     string
	Version  string
	Depth    int
	Children []*DependencyNode
}

// InstallPlan is the resolver's ephemeral, per-install output (§3):
// the dependency tree plus a flat, deduplicated, topologically sorted
// install order (leaves first, root last).
type InstallPlan struct {
	Root            *DependencyNode
	Order           []*DependencyNode
	McpServersNeeded []string
}
