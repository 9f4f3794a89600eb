// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryactor

import (
	"github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"

	"github.com/skillhive/skillhive/pkg/logger"
)

// ownershipPolicy is the single Cedar policy governing Update-Skill: the
// caller must be the principal recorded as the skill's owner, expressed
// as a one-line permit policy keyed on a matching principal/resource
// pair, the same way cedar-go's PolicySet/IsAuthorized API is exercised
// survived in the pack, so that wiring follows cedar-go's documented API
// rather than a pack example.
const ownershipPolicy = `permit(principal, action == Action::"UpdateSkill", resource) when { principal == resource.owner };`

// OwnershipChecker decides whether caller may mutate a resource owned by
// owner.
type OwnershipChecker interface {
	IsOwner(caller, owner string) bool
}

type cedarOwnershipChecker struct {
	policySet *cedar.PolicySet
}

func newCedarOwnershipChecker() *cedarOwnershipChecker {
	ps, err := cedar.NewPolicySetFromBytes("ownership.cedar", []byte(ownershipPolicy))
	if err != nil {
		logger.Warnf("registry actor: failed to parse ownership policy, denying all updates: %v", err)
		return &cedarOwnershipChecker{}
	}
	return &cedarOwnershipChecker{policySet: ps}
}

// IsOwner evaluates the ownership policy for (caller, owner). A nil or
// unparsed policy set always denies, failing closed.
func (c *cedarOwnershipChecker) IsOwner(caller, owner string) bool {
	if c.policySet == nil {
		return false
	}

	entities := types.EntityMap{
		types.NewEntityUID("Principal", types.String(caller)): {
			UID: types.NewEntityUID("Principal", types.String(caller)),
		},
		types.NewEntityUID("Resource", types.String(owner)): {
			UID: types.NewEntityUID("Resource", types.String(owner)),
			Attributes: types.NewRecord(types.RecordMap{
				"owner": types.NewEntityUID("Principal", types.String(owner)),
			}),
		},
	}

	req := cedar.Request{
		Principal: types.NewEntityUID("Principal", types.String(caller)),
		Action:    types.NewEntityUID("Action", "UpdateSkill"),
		Resource:  types.NewEntityUID("Resource", types.String(owner)),
		Context:   types.NewRecord(types.RecordMap{}),
	}

	decision, _ := c.policySet.IsAuthorized(entities, req)
	return decision == types.Allow
}
