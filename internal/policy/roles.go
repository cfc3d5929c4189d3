package policy

import (
	"github.com/diewo77/go-expenses/gate"
	"github.com/diewo77/go-expenses/internal/models"
)

// Resource types used in permissions.
const (
	ResourceProject  = "project"
	ResourceMember   = "member"
	ResourceExpense  = "expense"
	ResourceCategory = "category"
	ResourceStats    = "stats"
	ResourceHistory  = "history"
	ResourceBudget   = "budget"
)

// The closed set of project operations.
var (
	PermDeleteProject  = gate.NewPermission(ResourceProject, gate.ActionDelete)
	PermInviteMembers  = gate.NewPermission(ResourceMember, gate.ActionInvite)
	PermRemoveMembers  = gate.NewPermission(ResourceMember, gate.ActionRemove)
	PermChangeRoles    = gate.NewPermission(ResourceMember, gate.ActionChangeRole)
	PermAddExpense     = gate.NewPermission(ResourceExpense, gate.ActionCreate)
	PermEditExpense    = gate.NewPermission(ResourceExpense, gate.ActionUpdate)
	PermDeleteExpense  = gate.NewPermission(ResourceExpense, gate.ActionDelete)
	PermAddCategory    = gate.NewPermission(ResourceCategory, gate.ActionCreate)
	PermEditCategory   = gate.NewPermission(ResourceCategory, gate.ActionUpdate)
	PermDeleteCategory = gate.NewPermission(ResourceCategory, gate.ActionDelete)
	PermViewStats      = gate.NewPermission(ResourceStats, gate.ActionView)
	PermViewHistory    = gate.NewPermission(ResourceHistory, gate.ActionView)
	PermViewMembers    = gate.NewPermission(ResourceMember, gate.ActionView)
	PermSetBudget      = gate.NewPermission(ResourceBudget, gate.ActionSet)
	PermViewBudget     = gate.NewPermission(ResourceBudget, gate.ActionView)
)

// Operation pairs an operation's wire name with its permission.
type Operation struct {
	Name       string
	Permission gate.Permission
}

// Operations lists every operation in a stable order.
var Operations = []Operation{
	{"delete_project", PermDeleteProject},
	{"invite_members", PermInviteMembers},
	{"remove_members", PermRemoveMembers},
	{"change_roles", PermChangeRoles},
	{"add_expense", PermAddExpense},
	{"edit_expense", PermEditExpense},
	{"delete_expense", PermDeleteExpense},
	{"add_category", PermAddCategory},
	{"edit_category", PermEditCategory},
	{"delete_category", PermDeleteCategory},
	{"view_stats", PermViewStats},
	{"view_history", PermViewHistory},
	{"view_members", PermViewMembers},
	{"set_budget", PermSetBudget},
	{"view_budget", PermViewBudget},
}

// OperationByName looks up an operation by its wire name.
func OperationByName(name string) (Operation, bool) {
	for _, op := range Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// OperationName returns the wire name of perm, or perm itself.
func OperationName(perm gate.Permission) string {
	for _, op := range Operations {
		if op.Permission == perm {
			return op.Name
		}
	}
	return string(perm)
}

var (
	ownerProfile = gate.NewStaticProfile(string(models.RoleOwner), gate.PermissionSuperAdmin)
	// editor: everything except the four owner-only operations
	editorProfile = gate.NewStaticProfile(string(models.RoleEditor),
		"expense:*",
		"category:*",
		"budget:*",
		PermViewStats,
		PermViewHistory,
		PermViewMembers,
	)
	viewerProfile = gate.NewStaticProfile(string(models.RoleViewer),
		PermViewStats,
		PermViewHistory,
		PermViewMembers,
		PermViewBudget,
	)
	// personal scope has no sharing; the acting user holds every operation
	personalProfile = gate.NewStaticProfile("personal", gate.PermissionSuperAdmin)

	roleProfiles = map[models.Role]gate.Profile{
		models.RoleOwner:  ownerProfile,
		models.RoleEditor: editorProfile,
		models.RoleViewer: viewerProfile,
	}
)

// ProfileFor returns the permission profile of role, or nil for no role.
func ProfileFor(role models.Role) gate.Profile {
	return roleProfiles[role]
}

// RoleHasPermission is the pure role -> operation mapping.
func RoleHasPermission(role models.Role, perm gate.Permission) bool {
	p := ProfileFor(role)
	return p != nil && p.HasPermission(perm)
}

// RolePermissions returns the operations role may perform, in Operations order.
func RolePermissions(role models.Role) []Operation {
	var out []Operation
	for _, op := range Operations {
		if RoleHasPermission(role, op.Permission) {
			out = append(out, op)
		}
	}
	return out
}

// RoleDescription is a short human description of a role.
func RoleDescription(role models.Role) string {
	switch role {
	case models.RoleOwner:
		return "Owner: full control of the project, its members and its data"
	case models.RoleEditor:
		return "Editor: can add expenses and categories and view statistics"
	case models.RoleViewer:
		return "Viewer: can only view statistics, history, members and budgets"
	}
	return "No access"
}
