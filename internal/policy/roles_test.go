package policy_test

import (
	"testing"

	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
)

var ownerOnly = map[string]bool{
	"delete_project": true,
	"invite_members": true,
	"remove_members": true,
	"change_roles":   true,
}

var viewOnly = map[string]bool{
	"view_stats":   true,
	"view_history": true,
	"view_members": true,
	"view_budget":  true,
}

func TestRolePermissionMatrix(t *testing.T) {
	if len(policy.Operations) != 15 {
		t.Fatalf("expected 15 operations, got %d", len(policy.Operations))
	}
	for _, op := range policy.Operations {
		t.Run(op.Name, func(t *testing.T) {
			if !policy.RoleHasPermission(models.RoleOwner, op.Permission) {
				t.Errorf("owner must hold %s", op.Name)
			}
			if got, want := policy.RoleHasPermission(models.RoleEditor, op.Permission), !ownerOnly[op.Name]; got != want {
				t.Errorf("editor %s = %v, want %v", op.Name, got, want)
			}
			if got, want := policy.RoleHasPermission(models.RoleViewer, op.Permission), viewOnly[op.Name]; got != want {
				t.Errorf("viewer %s = %v, want %v", op.Name, got, want)
			}
			if policy.RoleHasPermission("", op.Permission) {
				t.Errorf("no role must never hold %s", op.Name)
			}
		})
	}
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleOwner, 15},
		{models.RoleEditor, 11},
		{models.RoleViewer, 4},
		{"", 0},
	}
	for _, tt := range tests {
		if got := len(policy.RolePermissions(tt.role)); got != tt.want {
			t.Errorf("RolePermissions(%q) has %d ops, want %d", tt.role, got, tt.want)
		}
	}
}

func TestOperationLookup(t *testing.T) {
	op, ok := policy.OperationByName("add_expense")
	if !ok || op.Permission != policy.PermAddExpense {
		t.Fatalf("OperationByName(add_expense) = %v, %v", op, ok)
	}
	if _, ok := policy.OperationByName("fly"); ok {
		t.Fatal("unknown operation should not resolve")
	}
	if got := policy.OperationName(policy.PermChangeRoles); got != "change_roles" {
		t.Fatalf("OperationName = %q", got)
	}
}

func TestRoleDescription(t *testing.T) {
	for _, r := range []models.Role{models.RoleOwner, models.RoleEditor, models.RoleViewer} {
		if policy.RoleDescription(r) == policy.RoleDescription("") {
			t.Errorf("role %s should have its own description", r)
		}
	}
}
