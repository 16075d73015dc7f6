package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin      = "admin"
	RoleBoard      = "board"
	RoleCompliance = "compliance"
	RoleRisk       = "risk"
	RoleAudit      = "audit"
	RoleICT        = "ict"
	RoleManagement = "management"
)

var allRoles = []string{RoleAdmin, RoleBoard, RoleCompliance, RoleRisk, RoleAudit, RoleICT, RoleManagement}

func IsKnownRole(role string) bool {
	for _, r := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Roles returns a copy of every known role.
func Roles() []string {
	out := make([]string, len(allRoles))
	copy(out, allRoles)
	return out
}
