// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryactor

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/skillhive/skillhive/pkg/apierrors"
	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
)

// HTTPProjection is the patch device's HTTP-facing half: it buffers the
// latest skills snapshot pushed by the actor after every mutating
// handler and serves it to readers over chi routes, using the same
// apierrors.ErrorHandler-wrapping-a-HandlerWithError decorator pattern
// as the rest of this codebase's HTTP surface.
type HTTPProjection struct {
	mu   sync.RWMutex
	skip bool
	data map[string]*registry.SkillEntry
}

// NewHTTPProjection returns an empty projection; it implements
// PatchEmitter, so pass it to registryactor.WithPatchEmitter.
func NewHTTPProjection() *HTTPProjection {
	return &HTTPProjection{}
}

// Patch stores skills as the latest snapshot (PatchEmitter).
func (p *HTTPProjection) Patch(skills map[string]*registry.SkillEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = skills
}

func (p *HTTPProjection) snapshot() map[string]*registry.SkillEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// Router builds the read-only projection's chi router: a single route
// exposing the current skills snapshot as JSON. Readers observe an
// eventually-consistent view, never a live query against the actor.
func (p *HTTPProjection) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/skills", apierrors.ErrorHandler(p.getSkills))
	return r
}

func (p *HTTPProjection) getSkills(w http.ResponseWriter, _ *http.Request) error {
	skills := p.snapshot()
	if skills == nil {
		skills = map[string]*registry.SkillEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"skills": skills}); err != nil {
		return skherrors.NewNetworkError("encoding skills projection", err)
	}
	return nil
}
