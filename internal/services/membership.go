package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/diewo77/go-expenses/gate"
	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"github.com/diewo77/go-expenses/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipService manages who belongs to which project and with what role.
type MembershipService struct {
	*base
}

func NewMembershipService(db *gorm.DB, log *slog.Logger, opts ...Option) *MembershipService {
	return &MembershipService{base: newBase(db, log, opts...)}
}

// Member is one row of a project's member list.
type Member struct {
	UserID   uint        `json:"user_id"`
	Role     models.Role `json:"role"`
	JoinedAt string      `json:"joined_at"`
	About    string      `json:"about"`
}

// EnsureUser creates the user on first contact and seeds the system
// categories. Calling it again is a no-op.
func (s *MembershipService) EnsureUser(ctx context.Context, userID uint) (bool, error) {
	var created bool
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		var err error
		created, err = ensureUser(tx, userID)
		return err
	})
	if err != nil {
		return false, s.fail("ensure_user", err, "user", userID)
	}
	if created {
		s.log.Info("user_created", "user", userID)
	}
	return created, nil
}

// ResolveRole returns the caller's role in the project, "" meaning none.
func (s *MembershipService) ResolveRole(ctx context.Context, userID, projectID uint) (models.Role, error) {
	role, err := s.auth.ResolveRole(ctx, userID, projectID)
	if err != nil {
		return "", s.fail("resolve_role", err, "user", userID, "project", projectID)
	}
	return role, nil
}

// HasPermission reports whether userID may perform perm in the scope.
func (s *MembershipService) HasPermission(ctx context.Context, userID uint, projectID *uint, perm gate.Permission) (bool, error) {
	ok, err := s.auth.HasPermission(ctx, userID, projectID, perm)
	if err != nil {
		return false, s.fail("has_permission", err, "user", userID, "project", models.ScopeKey(projectID))
	}
	return ok, nil
}

// AddMember grants role to userID. Adding an existing member changes nothing.
func (s *MembershipService) AddMember(ctx context.Context, projectID, userID uint, role models.Role) error {
	if !role.Invitable() {
		return apperr.Invalid("add_member", "role must be editor or viewer")
	}
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		if err := loadProject(tx, "add_member", projectID, &models.Project{}); err != nil {
			return err
		}
		if _, err := ensureUser(tx, userID); err != nil {
			return err
		}
		_, err := addMember(tx, projectID, userID, role, s.now())
		return err
	})
	return s.fail("add_member", err, "user", userID, "project", projectID)
}

// RemoveMember drops userID from the project. Removing a non-member is a
// no-op; removing the owner is a conflict.
func (s *MembershipService) RemoveMember(ctx context.Context, projectID, userID uint) error {
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		var p models.Project
		if err := loadProject(tx, "remove_member", projectID, &p); err != nil {
			return err
		}
		return removeMember(tx, &p, userID)
	})
	if err != nil {
		return s.fail("remove_member", err, "user", userID, "project", projectID)
	}
	s.log.Info("member_removed", "user", userID, "project", projectID)
	return nil
}

// ChangeRole moves a member between editor and viewer.
func (s *MembershipService) ChangeRole(ctx context.Context, projectID, userID uint, newRole string) error {
	v := validation.Violations{}
	validation.OneOf("role", newRole, models.InvitableRoles, v)
	if !v.Empty() {
		return apperr.InvalidFields("change_role", v)
	}
	role := models.Role(newRole)
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		var p models.Project
		if err := loadProject(tx, "change_role", projectID, &p); err != nil {
			return err
		}
		return changeRole(tx, &p, userID, role)
	})
	if err != nil {
		return s.fail("change_role", err, "user", userID, "project", projectID)
	}
	s.log.Info("member_role_changed", "user", userID, "project", projectID, "role", role)
	return nil
}

// ListMembers returns the owner first, then members by join time.
func (s *MembershipService) ListMembers(ctx context.Context, projectID uint) ([]Member, error) {
	var out []Member
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		var p models.Project
		if err := loadProject(tx, "list_members", projectID, &p); err != nil {
			return err
		}
		var err error
		out, err = listMembers(tx, &p)
		return err
	})
	if err != nil {
		return nil, s.fail("list_members", err, "project", projectID)
	}
	return out, nil
}

// KickMember is RemoveMember on behalf of actor, who needs remove_members.
func (s *MembershipService) KickMember(ctx context.Context, actor, projectID, target uint) error {
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, "remove_members", actor, projectID, &p); err != nil {
			return err
		}
		if err := auth.AuthorizeResource(ctx, actor, &projectID, policy.PermRemoveMembers, &p); err != nil {
			return err
		}
		return removeMember(tx, &p, target)
	})
	if err != nil {
		return s.fail("remove_members", err, "actor", actor, "user", target, "project", projectID)
	}
	s.log.Info("member_removed", "actor", actor, "user", target, "project", projectID)
	return nil
}

// ChangeMemberRole is ChangeRole on behalf of actor, who needs change_roles.
func (s *MembershipService) ChangeMemberRole(ctx context.Context, actor, projectID, target uint, newRole string) error {
	role, ok := models.ParseRole(newRole)
	if !ok || !role.Invitable() {
		return apperr.Invalid("change_roles", "role must be editor or viewer")
	}
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, "change_roles", actor, projectID, &p); err != nil {
			return err
		}
		if err := auth.AuthorizeResource(ctx, actor, &projectID, policy.PermChangeRoles, &p); err != nil {
			return err
		}
		return changeRole(tx, &p, target, role)
	})
	if err != nil {
		return s.fail("change_roles", err, "actor", actor, "user", target, "project", projectID)
	}
	s.log.Info("member_role_changed", "actor", actor, "user", target, "project", projectID, "role", role)
	return nil
}

// ListProjectMembers is ListMembers for a caller holding view_members.
func (s *MembershipService) ListProjectMembers(ctx context.Context, actor, projectID uint) ([]Member, error) {
	var out []Member
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, "view_members", actor, projectID, &p); err != nil {
			return err
		}
		if err := auth.Require(ctx, actor, &projectID, policy.PermViewMembers); err != nil {
			return err
		}
		var err error
		out, err = listMembers(tx, &p)
		return err
	})
	if err != nil {
		return nil, s.fail("view_members", err, "actor", actor, "project", projectID)
	}
	return out, nil
}

// SetActiveProject selects the project the chat session works in. A nil
// project returns the session to personal scope.
func (s *MembershipService) SetActiveProject(ctx context.Context, userID uint, projectID *uint) error {
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if _, err := ensureUser(tx, userID); err != nil {
			return err
		}
		if projectID != nil {
			if err := visibleProject(ctx, tx, auth, "set_active_project", userID, *projectID, &models.Project{}); err != nil {
				return err
			}
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("active_project_id", projectID).Error
	})
	return s.fail("set_active_project", err, "user", userID, "project", models.ScopeKey(projectID))
}

// ActiveProject returns the selected project, or nil for personal scope. A
// pointer to a project the user can no longer see reads as personal scope.
func (s *MembershipService) ActiveProject(ctx context.Context, userID uint) (*models.Project, error) {
	var out *models.Project
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var u models.User
		err := tx.Where("id = ?", userID).Take(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.ActiveProjectID == nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var p models.Project
		err = visibleProject(ctx, tx, auth, "active_project", userID, *u.ActiveProjectID, &p)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, s.fail("active_project", err, "user", userID)
	}
	return out, nil
}

// loadProject reads an active project or fails with NotFound.
func loadProject(tx *gorm.DB, op string, projectID uint, dst *models.Project) error {
	err := tx.Where("id = ? AND is_active = ?", projectID, true).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "project")
	}
	return err
}

// visibleProject loads the project only when userID holds a role in it, so
// absent and hidden projects are indistinguishable.
func visibleProject(ctx context.Context, tx *gorm.DB, auth *policy.Authorizer, op string, userID, projectID uint, dst *models.Project) error {
	role, err := auth.ResolveRole(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if role == "" {
		return apperr.NotFound(op, "project")
	}
	return loadProject(tx, op, projectID, dst)
}

func addMember(tx *gorm.DB, projectID, userID uint, role models.Role, now time.Time) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role, JoinedAt: now})
	return res.RowsAffected == 1, res.Error
}

func removeMember(tx *gorm.DB, p *models.Project, userID uint) error {
	if userID == p.OwnerUserID {
		return apperr.Conflict("remove_member", "the owner cannot be removed")
	}
	if err := tx.Where("project_id = ? AND user_id = ?", p.ID, userID).Delete(&models.ProjectMember{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).
		Where("id = ? AND active_project_id = ?", userID, p.ID).
		Update("active_project_id", nil).Error
}

func changeRole(tx *gorm.DB, p *models.Project, userID uint, role models.Role) error {
	if userID == p.OwnerUserID {
		return apperr.Conflict("change_role", "the owner's role cannot be changed")
	}
	var m models.ProjectMember
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("project_id = ? AND user_id = ?", p.ID, userID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && m.Role == models.RoleOwner) {
		return apperr.NotFound("change_role", "member")
	}
	if err != nil {
		return err
	}
	if m.Role == role {
		return apperr.Conflict("change_role", "member already has role "+string(role))
	}
	return tx.Model(&models.ProjectMember{}).Where("id = ?", m.ID).Update("role", role).Error
}

func listMembers(tx *gorm.DB, p *models.Project) ([]Member, error) {
	var rows []models.ProjectMember
	if err := tx.Where("project_id = ?", p.ID).Order("joined_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(rows)+1)
	ownerSeen := false
	for _, m := range rows {
		role := m.Role
		if m.UserID == p.OwnerUserID {
			role = models.RoleOwner
			ownerSeen = true
		} else if role == models.RoleOwner {
			continue
		}
		out = append(out, Member{UserID: m.UserID, Role: role, JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339), About: policy.RoleDescription(role)})
	}
	if !ownerSeen {
		out = append(out, Member{UserID: p.OwnerUserID, Role: models.RoleOwner, JoinedAt: p.CreatedAt.UTC().Format(time.RFC3339), About: policy.RoleDescription(models.RoleOwner)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Role == models.RoleOwner && out[j].Role != models.RoleOwner
	})
	return out, nil
}
