package gate_test

import (
	"testing"

	"github.com/diewo77/go-expenses/gate"
)

func TestPermission_NewPermission(t *testing.T) {
	perm := gate.NewPermission("expense", gate.ActionCreate)
	if perm != "expense:create" {
		t.Errorf("expected 'expense:create', got '%s'", perm)
	}
}

func TestPermission_Parse(t *testing.T) {
	res, act := gate.Permission("member:change_role").Parse()
	if res != "member" {
		t.Errorf("expected resource 'member', got '%s'", res)
	}
	if act != gate.ActionChangeRole {
		t.Errorf("expected action 'change_role', got '%s'", act)
	}
}

func TestPermission_Parse_Invalid(t *testing.T) {
	res, act := gate.Permission("invalid").Parse()
	if res != "" || act != "" {
		t.Errorf("expected empty strings, got '%s' and '%s'", res, act)
	}
}

func TestPermission_Matches(t *testing.T) {
	tests := []struct {
		name      string
		held      gate.Permission
		requested gate.Permission
		want      bool
	}{
		{"exact", "expense:create", "expense:create", true},
		{"different action", "expense:create", "expense:delete", false},
		{"different resource", "expense:create", "category:create", false},
		{"superadmin", gate.PermissionSuperAdmin, "project:delete", true},
		{"resource wildcard", "budget:*", "budget:set", true},
		{"resource wildcard other resource", "budget:*", "stats:view", false},
		{"action wildcard is not a resource wildcard", "*:view", "stats:view", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.held.Matches(tt.requested); got != tt.want {
				t.Errorf("%s.Matches(%s) = %v, want %v", tt.held, tt.requested, got, tt.want)
			}
		})
	}
}
