package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-expenses/gate"
	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"gorm.io/gorm"
)

// Authorizer is the single entry point every service uses to check roles and
// permissions. Bind it to a transaction with With so checks and writes see
// the same state.
type Authorizer struct {
	resolver *RoleResolver
	gate     *gate.Gate[Subject]
}

// NewAuthorizer wires the role resolver, the gate and the resource policies.
func NewAuthorizer(db *gorm.DB) *Authorizer {
	r := NewRoleResolver(db)
	g := gate.New[Subject](r)
	ownership := NewOwnershipPolicy()
	g.Register(ResourceProject, ownership)
	g.Register(ResourceMember, ownership)
	g.Register(ResourceExpense, gate.PolicyFunc[Subject](func(ctx context.Context, s Subject, _ gate.Action, resource any) bool {
		e, ok := resource.(*models.Expense)
		if !ok {
			return false
		}
		allowed, err := canModifyExpense(ctx, r, s.UserID, e)
		return err == nil && allowed
	}))
	return &Authorizer{resolver: r, gate: g}
}

// With returns an Authorizer reading through tx.
func (a *Authorizer) With(tx *gorm.DB) *Authorizer {
	return NewAuthorizer(tx)
}

// ResolveRole returns the caller's role in project, or "" for none.
func (a *Authorizer) ResolveRole(ctx context.Context, userID, projectID uint) (models.Role, error) {
	if userID == 0 || projectID == 0 {
		return "", nil
	}
	return a.resolver.ResolveRole(ctx, userID, projectID)
}

// HasPermission reports whether userID may perform perm in the scope. A nil
// project is the personal scope and always grants.
func (a *Authorizer) HasPermission(ctx context.Context, userID uint, projectID *uint, perm gate.Permission) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	if projectID == nil {
		return true, nil
	}
	resource, action := perm.Parse()
	err := a.gate.Authorize(ctx, SubjectFor(userID, projectID), action, resource, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gate.ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

// Require is HasPermission as an error: PermissionDenied or Storage.
func (a *Authorizer) Require(ctx context.Context, userID uint, projectID *uint, perm gate.Permission) error {
	ok, err := a.HasPermission(ctx, userID, projectID, perm)
	if err != nil {
		return apperr.Storage("resolve_role", err, "user", userID, "project", models.ScopeKey(projectID))
	}
	if !ok {
		return apperr.Denied(OperationName(perm))
	}
	return nil
}

// AuthorizeResource checks perm together with the resource policy registered
// for perm's resource type, e.g. ownership of a project or authorship of an
// expense.
func (a *Authorizer) AuthorizeResource(ctx context.Context, userID uint, projectID *uint, perm gate.Permission, resource any) error {
	resType, action := perm.Parse()
	err := a.gate.Authorize(ctx, SubjectFor(userID, projectID), action, resType, resource)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrUnauthorized):
		return apperr.Denied(OperationName(perm))
	default:
		return apperr.Storage("resolve_role", err, "user", userID, "project", models.ScopeKey(projectID))
	}
}

// CanModifyExpense: the creator may always modify their own expense, anyone
// else needs edit_expense in the expense's project. Personal expenses are
// only ever modifiable by their creator.
func (a *Authorizer) CanModifyExpense(ctx context.Context, userID uint, e *models.Expense) (bool, error) {
	return canModifyExpense(ctx, a.resolver, userID, e)
}

func canModifyExpense(ctx context.Context, r *RoleResolver, userID uint, e *models.Expense) (bool, error) {
	if userID != 0 && e.UserID == userID {
		return true, nil
	}
	if e.ProjectID == nil {
		return false, nil
	}
	role, err := r.ResolveRole(ctx, userID, *e.ProjectID)
	if err != nil {
		return false, err
	}
	return RoleHasPermission(role, PermEditExpense), nil
}
