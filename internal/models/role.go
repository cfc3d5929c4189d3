package models

// Role is a user's standing within one project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// InvitableRoles are the roles an invitation or a role change may grant.
var InvitableRoles = []string{string(RoleEditor), string(RoleViewer)}

// ParseRole accepts the canonical lower-case role names.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleEditor, RoleViewer:
		return Role(s), true
	}
	return "", false
}

// Invitable reports whether r can be granted by invitation or role change.
func (r Role) Invitable() bool {
	return r == RoleEditor || r == RoleViewer
}
