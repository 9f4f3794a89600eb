// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dynamicread

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillhive/skillhive/pkg/apierrors"
	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
)

type scriptFunc func(*registry.RegistryState, map[string]string) Result

// Router builds the dynamic-read HTTP surface: two routes per script,
// /now/{function} and /cache/{function}, matching the Transport's
// DynamicRead URL shape (pkg/registryclient/transport.go).
func Router(source StateSource) http.Handler {
	scripts := map[string]scriptFunc{
		"searchSkills":     SearchSkills,
		"getSkill":         GetSkill,
		"listSkills":       ListSkills,
		"getSkillVersions": GetSkillVersions,
		"getDownloadStats": GetDownloadStats,
		"info":             Info,
	}

	r := chi.NewRouter()
	for path, fn := range scripts {
		fn := fn
		handler := func(w http.ResponseWriter, req *http.Request) error {
			return serveScript(w, req, source, fn)
		}
		r.Get("/now/"+path, apierrors.ErrorHandler(handler))
		r.Get("/cache/"+path, apierrors.ErrorHandler(handler))
	}
	return r
}

func serveScript(w http.ResponseWriter, r *http.Request, source StateSource, fn scriptFunc) error {
	req := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			req[k] = v[0]
		}
	}

	result := fn(source(), req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	if err := json.NewEncoder(w).Encode(result.Fields); err != nil {
		return skherrors.NewNetworkError("encoding dynamic-read response", err)
	}
	return nil
}
