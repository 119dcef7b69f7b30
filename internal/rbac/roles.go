package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsElevated reports whether a role may act on any query regardless of
// assignment (resolve, transfer, accept calls on behalf of other agents).
func IsElevated(role string) bool {
	return role == RoleSupervisor || role == RoleSuperAdmin
}
