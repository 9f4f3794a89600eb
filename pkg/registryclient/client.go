// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registryclient wraps the registry actor's message-passing
// primitive (§4.D) behind two operation styles — signed mutating
// messages and cached queries — shared by every orchestrator and by the
// dependency resolver.
package registryclient

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
	"github.com/skillhive/skillhive/pkg/registryclient/cache"
	"github.com/skillhive/skillhive/pkg/signer"
)

// SearchCacheTTL and MetadataCacheCapacity are §4.D's defaults.
const (
	SearchCacheTTL        = 5 * time.Minute
	MetadataCacheCapacity = 100
)

// Client is the registry client: it owns the search and metadata caches
// and dispatches mutating/query operations over a Transport.
type Client struct {
	transport     Transport
	signer        signer.Signer
	searchCache   cache.Cache[[]*registry.SkillVersion]
	metadataCache cache.Cache[*registry.SkillVersion]
}

// Option configures a Client.
type Option func(*Client)

// WithSearchCache overrides the default in-memory TTL search cache
// (e.g. with a cache.RedisCache for cross-process sharing).
func WithSearchCache(c cache.Cache[[]*registry.SkillVersion]) Option {
	return func(cl *Client) { cl.searchCache = c }
}

// WithMetadataCache overrides the default in-memory LRU metadata cache.
func WithMetadataCache(c cache.Cache[*registry.SkillVersion]) Option {
	return func(cl *Client) { cl.metadataCache = c }
}

// New constructs a Client. s may be nil for read-only (query) use.
func New(transport Transport, s signer.Signer, opts ...Option) *Client {
	c := &Client{
		transport:     transport,
		signer:        s,
		searchCache:   cache.NewTTLCache[[]*registry.SkillVersion](SearchCacheTTL),
		metadataCache: cache.NewLRUCache[*registry.SkillVersion](MetadataCacheCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClearCaches empties both caches, for test isolation (§9).
func (c *Client) ClearCaches() {
	c.searchCache.Clear()
	c.metadataCache.Clear()
}

// normalizeQuery implements §4.H's Search normalization: lowercase, trim.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Search consults the search cache before issuing Search-Skills, caches
// a miss's result, and stable-sorts results by most-recently-updated
// first (§4.D).
func (c *Client) Search(ctx context.Context, query string, tags []string) ([]*registry.SkillVersion, error) {
	key := normalizeQuery(query) + "|" + strings.Join(tags, ",")
	if cached, ok := c.searchCache.Get(key); ok {
		return cached, nil
	}

	reqTags := map[string]string{"Action": "Search-Skills", "Query": normalizeQuery(query)}
	if len(tags) > 0 {
		reqTags["Tags"] = strings.Join(tags, ",")
	}

	respTags, err := c.sendAndDecodeSkills(ctx, reqTags, "Skills")
	if err != nil {
		return nil, err
	}

	sort.SliceStable(respTags, func(i, j int) bool {
		return respTags[i].UpdatedAt.After(respTags[j].UpdatedAt)
	})

	c.searchCache.Put(key, respTags)
	return respTags, nil
}

// GetSkill looks up name, optionally pinned to version; an empty version
// requests latest. A nil, nil result means "not found" (§4.H: `null` ->
// Validation "not found" is the orchestrator's responsibility, not the
// client's).
func (c *Client) GetSkill(ctx context.Context, name, version string) (*registry.SkillVersion, error) {
	cacheKey := name
	if version != "" {
		cacheKey = name + "@" + version
	}
	if cached, ok := c.metadataCache.Get(cacheKey); ok {
		return cached, nil
	}

	tags := map[string]string{"Action": "Get-Skill", "Name": name}
	if version != "" {
		tags["Version"] = version
	}

	body, status, err := c.transport.DynamicRead(ctx, "now", "getSkill", tags)
	if err != nil {
		return nil, err
	}
	switch status {
	case 404:
		return nil, nil
	case 400:
		return nil, skherrors.NewValidationError("get-skill request missing required parameter", nil)
	case 200:
		version, err := decodeSkillVersion(body)
		if err != nil {
			return nil, err
		}
		c.metadataCache.Put(cacheKey, version)
		c.metadataCache.Put(version.Name+"@"+version.Version, version)
		return version, nil
	default:
		return nil, skherrors.NewNetworkError(fmt.Sprintf("get-skill returned unexpected status %d", status), nil)
	}
}

// ListOptions mirrors the actor's List-Skills filters (§4.I).
type ListOptions struct {
	Author     string
	FilterTags []string
	FilterName string
	Limit      int
	Offset     int
}

// ListResult mirrors the actor's paginated List-Skills response.
type ListResult struct {
	Skills      []*registry.SkillVersion
	Total       int
	Limit       int
	Offset      int
	Returned    int
	HasNextPage bool
	HasPrevPage bool
}

// List issues List-Skills with opts' filters and pagination.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	tags := map[string]string{"Action": "List-Skills"}
	if opts.Author != "" {
		tags["Author"] = opts.Author
	}
	if opts.FilterName != "" {
		tags["FilterName"] = opts.FilterName
	}
	if len(opts.FilterTags) > 0 {
		tags["FilterTags"] = strings.Join(opts.FilterTags, ",")
	}
	tags["Limit"] = strconv.Itoa(opts.Limit)
	tags["Offset"] = strconv.Itoa(opts.Offset)

	body, status, err := c.transport.DynamicRead(ctx, "cache", "listSkills", tags)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, skherrors.NewNetworkError(fmt.Sprintf("list-skills returned status %d", status), nil)
	}

	return decodeListResult(body)
}

// GetVersions returns all versions of name, sorted semver-descending,
// plus the latest pointer.
func (c *Client) GetVersions(ctx context.Context, name string) ([]*registry.SkillVersion, string, error) {
	tags := map[string]string{"Action": "Get-Skill-Versions", "Name": name}
	body, status, err := c.transport.DynamicRead(ctx, "now", "getSkillVersions", tags)
	if err != nil {
		return nil, "", err
	}
	if status == 404 {
		return nil, "", nil
	}
	if status != 200 {
		return nil, "", skherrors.NewNetworkError(fmt.Sprintf("get-skill-versions returned status %d", status), nil)
	}

	versions, latest, err := decodeVersionsResult(body)
	if err != nil {
		return nil, "", err
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return registry.IsSemverGreater(versions[i].Version, versions[j].Version)
	})
	return versions, latest, nil
}

// RegisterSkill signs and submits a Register-Skill message. An
// actor-reported error whose reason mentions "unauthorized" is surfaced
// as Authorization; every other actor-reported error (such as "already
// exists") as Validation, per §4.D.
func (c *Client) RegisterSkill(ctx context.Context, version *registry.SkillVersion) (messageID string, err error) {
	if c.signer == nil {
		return "", skherrors.NewConfigurationError("registering a skill requires a signer", nil)
	}

	tags := manifestTags(version)
	tags["Action"] = "Register-Skill"

	return c.sendMutating(ctx, tags, "Skill-Registered")
}

// UpdateSkill signs and submits an Update-Skill message.
func (c *Client) UpdateSkill(ctx context.Context, version *registry.SkillVersion) (messageID string, err error) {
	if c.signer == nil {
		return "", skherrors.NewConfigurationError("updating a skill requires a signer", nil)
	}

	tags := manifestTags(version)
	tags["Action"] = "Update-Skill"

	return c.sendMutating(ctx, tags, "Skill-Updated")
}

// RecordDownload fires a best-effort Record-Download message. Callers
// (the install orchestrator) are expected to swallow its error per §4.H
// step 6.
func (c *Client) RecordDownload(ctx context.Context, name, version string) error {
	if c.signer == nil {
		return skherrors.NewConfigurationError("recording a download requires a signer", nil)
	}
	tags := map[string]string{"Action": "Record-Download", "Name": name, "Version": version}
	_, err := c.sendMutating(ctx, tags, "Download-Recorded")
	return err
}

// GetDownloadStats returns total and per-version download counts.
func (c *Client) GetDownloadStats(ctx context.Context, name string) (total int, perVersion map[string]int, err error) {
	tags := map[string]string{"Action": "Get-Download-Stats", "Name": name}
	body, status, err := c.transport.DynamicRead(ctx, "now", "getDownloadStats", tags)
	if err != nil {
		return 0, nil, err
	}
	if status != 200 {
		return 0, nil, skherrors.NewNetworkError(fmt.Sprintf("get-download-stats returned status %d", status), nil)
	}
	return decodeDownloadStats(body)
}

// Info returns the info script's raw response body: the registry's
// handler list, without a process version or tag schemas.
func (c *Client) Info(ctx context.Context) ([]byte, error) {
	body, status, err := c.transport.DynamicRead(ctx, "now", "info", nil)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, skherrors.NewNetworkError(fmt.Sprintf("info returned status %d", status), nil)
	}
	return body, nil
}

func manifestTags(v *registry.SkillVersion) map[string]string {
	tags := map[string]string{
		"Name":         v.Name,
		"Version":      v.Version,
		"Description":  v.Description,
		"Author":       v.Author,
		"ArweaveTxId":  v.ArweaveTxID,
		"Tags":         strings.Join(v.Tags, ","),
		"Dependencies": strings.Join(v.Dependencies, ","),
		"McpServers":   strings.Join(v.McpServers, ","),
	}
	if v.Changelog != "" {
		tags["Changelog"] = v.Changelog
	}
	return tags
}

// sendMutating signs tags as a data item, submits it, and interprets the
// response: Action == successAction -> ok; Action == "Error" -> a
// classified *errors.Error.
func (c *Client) sendMutating(ctx context.Context, tags map[string]string, successAction string) (string, error) {
	item, err := c.signer.SignDataItem(ctx, nil, tags)
	if err != nil {
		return "", err
	}

	resp, err := c.transport.SendMessage(ctx, item.Raw)
	if err != nil {
		return "", err
	}

	if resp["Action"] == "Error" {
		return "", classifyActorError(resp["Error"])
	}
	if resp["Action"] != successAction {
		return "", skherrors.NewNetworkError("unexpected registry response action: "+resp["Action"], nil)
	}

	return item.ID, nil
}

// classifyActorError wraps an actor-reported error reason in the Kind
// its content implies (§4.D point 1).
func classifyActorError(reason string) error {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "unauthorized"):
		return skherrors.NewAuthorizationError(reason, nil)
	default:
		return skherrors.NewValidationError(reason, nil)
	}
}

func (c *Client) sendAndDecodeSkills(ctx context.Context, tags map[string]string, _ string) ([]*registry.SkillVersion, error) {
	body, status, err := c.transport.DynamicRead(ctx, "now", "searchSkills", tags)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, skherrors.NewNetworkError(fmt.Sprintf("search-skills returned status %d", status), nil)
	}
	return decodeSkillList(body)
}
