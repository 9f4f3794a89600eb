// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryclient

import (
	"encoding/json"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/registry"
)

// The wire shapes below mirror the dynamic-read scripts' JSON responses
// (§4.J) and the actor's query-path responses (§4.I).

func decodeSkillVersion(body []byte) (*registry.SkillVersion, error) {
	var payload struct {
		Skill *registry.SkillVersion `json:"skill"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, skherrors.NewNetworkError("decoding skill response", err)
	}
	return payload.Skill, nil
}

func decodeSkillList(body []byte) ([]*registry.SkillVersion, error) {
	var payload struct {
		Skills []*registry.SkillVersion `json:"skills"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, skherrors.NewNetworkError("decoding skill list response", err)
	}
	return payload.Skills, nil
}

func decodeListResult(body []byte) (*ListResult, error) {
	var payload struct {
		Skills     []*registry.SkillVersion `json:"skills"`
		Pagination struct {
			Total       int  `json:"total"`
			Limit       int  `json:"limit"`
			Offset      int  `json:"offset"`
			Returned    int  `json:"returned"`
			HasNextPage bool `json:"hasNextPage"`
			HasPrevPage bool `json:"hasPrevPage"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, skherrors.NewNetworkError("decoding list-skills response", err)
	}
	return &ListResult{
		Skills:      payload.Skills,
		Total:       payload.Pagination.Total,
		Limit:       payload.Pagination.Limit,
		Offset:      payload.Pagination.Offset,
		Returned:    payload.Pagination.Returned,
		HasNextPage: payload.Pagination.HasNextPage,
		HasPrevPage: payload.Pagination.HasPrevPage,
	}, nil
}

func decodeVersionsResult(body []byte) ([]*registry.SkillVersion, string, error) {
	var payload struct {
		Versions []*registry.SkillVersion `json:"versions"`
		Latest   string                   `json:"latest"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", skherrors.NewNetworkError("decoding skill-versions response", err)
	}
	return payload.Versions, payload.Latest, nil
}

func decodeDownloadStats(body []byte) (int, map[string]int, error) {
	var payload struct {
		Total      int            `json:"total"`
		PerVersion map[string]int `json:"perVersion"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, nil, skherrors.NewNetworkError("decoding download-stats response", err)
	}
	return payload.Total, payload.PerVersion, nil
}
