// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"strings"

	"github.com/skillhive/skillhive/pkg/registry"
	"github.com/skillhive/skillhive/pkg/registryclient"
)

// Search normalizes the query and delegates to the registry client,
// which already owns the cache and the most-recently-updated-first
// ordering (§4.D); this wrapper exists so CLI callers depend on
// orchestrator's narrower surface rather than reaching into
// registryclient directly, matching Publish and Install's shape.
func Search(ctx context.Context, client *registryclient.Client, query string, tags []string) ([]*registry.SkillVersion, error) {
	return client.Search(ctx, strings.TrimSpace(query), tags)
}
