package access

import "github.com/google/uuid"

// Decision is the outcome of an authorization check. Deny is always a
// value, never an error, so callers cannot accidentally proceed on a
// failure path.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns an allowing decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with a reason
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// RolePolicy maps role names to the actions they grant by default.
// Role defaults sit below explicit bindings in precedence.
type RolePolicy map[string][]Action

// DefaultRolePolicy returns the built-in role grants
func DefaultRolePolicy() RolePolicy {
	return RolePolicy{
		"admin":  AllActions(),
		"editor": {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionRevert, ActionCompare},
		"viewer": {ActionRead, ActionCompare},
	}
}

// Grants reports whether any of the principal's roles grants the action
func (rp RolePolicy) Grants(roles []string, action Action) bool {
	for _, role := range roles {
		for _, granted := range rp[role] {
			if granted == action {
				return true
			}
		}
	}
	return false
}

// Evaluate resolves whether a principal may perform an action on a shard.
// Precedence: explicit deny > explicit allow > role default > deny.
// It is a pure function over its inputs.
func Evaluate(p Principal, tenantID, shardID uuid.UUID, action Action, bindings []Binding, policy RolePolicy) Decision {
	if !p.MemberOf(tenantID) {
		return Deny("principal is not a member of the tenant")
	}

	var allowed bool
	for i := range bindings {
		b := &bindings[i]
		if !b.AppliesTo(p, shardID, action) {
			continue
		}
		if b.Effect == EffectDeny {
			return Deny("explicitly denied by binding " + b.ID.String())
		}
		allowed = true
	}
	if allowed {
		return Allow()
	}

	if policy.Grants(p.Roles, action) {
		return Allow()
	}

	return Deny("no binding or role grants " + string(action))
}
