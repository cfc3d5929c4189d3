package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-expenses/gate"
	"github.com/diewo77/go-expenses/internal/models"
	"gorm.io/gorm"
)

// Subject is a user acting in a scope. ProjectID 0 is the personal scope.
type Subject struct {
	UserID    uint
	ProjectID uint
}

// SubjectFor builds the subject for an optional project.
func SubjectFor(userID uint, projectID *uint) Subject {
	return Subject{UserID: userID, ProjectID: models.ScopeKey(projectID)}
}

// RoleResolver reads roles from the database on every call. Nothing is
// cached: a kick or downgrade must apply to the very next request.
type RoleResolver struct {
	DB *gorm.DB
}

// NewRoleResolver creates a new database-backed role resolver.
func NewRoleResolver(db *gorm.DB) *RoleResolver {
	return &RoleResolver{DB: db}
}

// ResolveRole returns RoleOwner when userID owns the active project, else the
// membership role, else "". Project ownership is authoritative.
func (r *RoleResolver) ResolveRole(ctx context.Context, userID, projectID uint) (models.Role, error) {
	var project models.Project
	err := r.DB.WithContext(ctx).
		Select("id", "owner_user_id").
		Where("id = ? AND is_active = ?", projectID, true).
		Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if project.OwnerUserID == userID {
		return models.RoleOwner, nil
	}

	var member models.ProjectMember
	err = r.DB.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if member.Role == models.RoleOwner {
		// an owner row for someone who is not the owner grants nothing
		return "", nil
	}
	return member.Role, nil
}

// Resolve implements gate.ProfileResolver.
func (r *RoleResolver) Resolve(ctx context.Context, s Subject) (gate.Profile, error) {
	if s.ProjectID == 0 {
		return personalProfile, nil
	}
	role, err := r.ResolveRole(ctx, s.UserID, s.ProjectID)
	if err != nil {
		return nil, err
	}
	return ProfileFor(role), nil
}
