// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryactor

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
)

// tagSchemas declares each mutating action's required/optional tags as a
// JSON Schema (dispatch enforces them before a handler body runs; the
// Info handler does not report them). Read-only actions carry no schema,
// since an absent required param there is a 400 the dynamic-read script
// itself reports (§4.J), not a registration-time rejection.
var tagSchemas = map[string]string{
	"Register-Skill": `{
		"type": "object",
		"required": ["Name", "Version"],
		"properties": {
			"Name":    {"type": "string", "minLength": 1, "maxLength": 64, "pattern": "^[a-z0-9-]+$"},
			"Version": {"type": "string", "minLength": 1}
		}
	}`,
	"Update-Skill": `{
		"type": "object",
		"required": ["Name", "Version"],
		"properties": {
			"Name":    {"type": "string", "minLength": 1},
			"Version": {"type": "string", "minLength": 1}
		}
	}`,
	"Record-Download": `{
		"type": "object",
		"required": ["Name"],
		"properties": {
			"Name": {"type": "string", "minLength": 1}
		}
	}`,
}

// validateTags runs action's JSON Schema (if any) against tags, turning
// a gojsonschema violation into a Validation error the dispatch loop
// renders as Action: "Error" without ever entering the handler body.
func validateTags(action string, tags map[string]string) error {
	schema, ok := tagSchemas[action]
	if !ok {
		return nil
	}

	document := make(map[string]any, len(tags))
	for k, v := range tags {
		document[k] = v
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return skherrors.NewValidationError(fmt.Sprintf("%s: malformed tag schema evaluation: %v", action, err), nil)
	}
	if !result.Valid() {
		return skherrors.NewValidationError(fmt.Sprintf("%s: %s", action, result.Errors()[0].String()), nil)
	}
	return nil
}
