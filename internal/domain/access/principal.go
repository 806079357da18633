package access

import "github.com/google/uuid"

// Principal is a resolved identity supplied by the external authentication
// collaborator. The subsystem never resolves identity itself; it trusts
// the roles and tenant membership carried here.
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Roles    []string
}

// HasRole reports whether the principal carries the given role
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// MemberOf reports whether the principal belongs to the given tenant
func (p Principal) MemberOf(tenantID uuid.UUID) bool {
	return p.TenantID == tenantID
}
