package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"github.com/diewo77/go-expenses/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxProjectName = 255

// ProjectService creates, lists and tears down projects.
type ProjectService struct {
	*base
	stats *StatsService
}

func NewProjectService(db *gorm.DB, log *slog.Logger, opts ...Option) *ProjectService {
	b := newBase(db, log, opts...)
	return &ProjectService{base: b, stats: &StatsService{base: b}}
}

// ProjectView is a project as seen by one user.
type ProjectView struct {
	models.Project
	Role    models.Role `json:"role"`
	IsOwner bool        `json:"is_owner"`
}

// CreateProject creates a project owned by ownerID, adds the owner's
// membership row and makes the project active for them. The name must not
// match, ignoring case, any project the owner can already see.
func (s *ProjectService) CreateProject(ctx context.Context, ownerID uint, name string) (*models.Project, error) {
	const op = "create_project"
	v := validation.Violations{}
	validation.Required("name", name, v)
	name = normalizeName(name)
	validation.MaxLength("name", name, maxProjectName, v)
	if !v.Empty() {
		return nil, apperr.InvalidFields(op, v)
	}
	var p *models.Project
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		if _, err := ensureUser(tx, ownerID); err != nil {
			return err
		}
		// serialize creations by the same owner
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", ownerID).Take(&models.User{}).Error; err != nil {
			return err
		}
		visible, err := visibleProjects(tx, ownerID)
		if err != nil {
			return err
		}
		key := models.NameKey(name)
		for _, vp := range visible {
			if models.NameKey(normalizeName(vp.Name)) == key {
				return apperr.Conflict(op, "a project with this name already exists")
			}
		}
		now := s.now()
		p = &models.Project{OwnerUserID: ownerID, Name: name, IsActive: true, CreatedAt: now}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if _, err := addMember(tx, p.ID, ownerID, models.RoleOwner, now); err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", ownerID).Update("active_project_id", p.ID).Error
	})
	if err != nil {
		return nil, s.fail(op, err, "user", ownerID)
	}
	s.log.Info("project_created", "user", ownerID, "project", p.ID)
	return p, nil
}

// cascadeStep is one idempotent stage of project deletion.
type cascadeStep struct {
	name string
	run  func(tx *gorm.DB, projectID uint) (int64, error)
}

// deleteCascade runs in order: data first, then memberships, then the project
// row, so checks made mid-cascade still see a valid project.
var deleteCascade = []cascadeStep{
	{"expenses", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Where("project_id = ?", id).Delete(&models.Expense{})
		return res.RowsAffected, res.Error
	}},
	{"categories", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Model(&models.Category{}).
			Where("project_id = ? AND is_active = ?", id, true).
			Updates(map[string]any{"is_active": false, "active_name": nil})
		return res.RowsAffected, res.Error
	}},
	{"budgets", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Where("project_id = ?", id).Delete(&models.Budget{})
		return res.RowsAffected, res.Error
	}},
	{"memberships", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{})
		return res.RowsAffected, res.Error
	}},
	{"invitations", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Where("project_id = ?", id).Delete(&models.Invitation{})
		return res.RowsAffected, res.Error
	}},
	{"project", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Where("id = ?", id).Delete(&models.Project{})
		return res.RowsAffected, res.Error
	}},
	{"active_pointers", func(tx *gorm.DB, id uint) (int64, error) {
		res := tx.Model(&models.User{}).Where("active_project_id = ?", id).Update("active_project_id", nil)
		return res.RowsAffected, res.Error
	}},
}

// DeleteProject removes a project and everything in it. Owner only.
func (s *ProjectService) DeleteProject(ctx context.Context, actor, projectID uint) error {
	const op = "delete_project"
	counts := make([]any, 0, 2*len(deleteCascade))
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, op, actor, projectID, &p); err != nil {
			return err
		}
		if err := auth.AuthorizeResource(ctx, actor, &projectID, policy.PermDeleteProject, &p); err != nil {
			return err
		}
		for _, step := range deleteCascade {
			n, err := step.run(tx, p.ID)
			if err != nil {
				return fmt.Errorf("cascade %s: %w", step.name, err)
			}
			counts = append(counts, step.name, n)
		}
		return nil
	})
	if err != nil {
		return s.fail(op, err, "user", actor, "project", projectID)
	}
	s.log.Info("project_deleted", append([]any{"user", actor, "project", projectID}, counts...)...)
	return nil
}

// LeaveProject removes the caller from a project they are a member of. The
// owner cannot leave; ownership transfer does not exist, so they must delete
// the project instead.
func (s *ProjectService) LeaveProject(ctx context.Context, userID, projectID uint) error {
	const op = "leave_project"
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, op, userID, projectID, &p); err != nil {
			return err
		}
		if p.OwnerUserID == userID {
			return apperr.Conflict(op, "the owner cannot leave; delete the project instead")
		}
		return removeMember(tx, &p, userID)
	})
	if err != nil {
		return s.fail(op, err, "user", userID, "project", projectID)
	}
	s.log.Info("member_left", "user", userID, "project", projectID)
	return nil
}

// ProjectsForUser lists the active projects the user owns or belongs to,
// oldest first.
func (s *ProjectService) ProjectsForUser(ctx context.Context, userID uint) ([]ProjectView, error) {
	var out []ProjectView
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		var err error
		out, err = visibleProjects(tx, userID)
		return err
	})
	if err != nil {
		return nil, s.fail("list_projects", err, "user", userID)
	}
	return out, nil
}

// GetProject returns one project the user can see.
func (s *ProjectService) GetProject(ctx context.Context, userID, projectID uint) (*ProjectView, error) {
	var out *ProjectView
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, "get_project", userID, projectID, &p); err != nil {
			return err
		}
		role, err := auth.ResolveRole(ctx, userID, projectID)
		if err != nil {
			return err
		}
		out = &ProjectView{Project: p, Role: role, IsOwner: role == models.RoleOwner}
		return nil
	})
	if err != nil {
		return nil, s.fail("get_project", err, "user", userID, "project", projectID)
	}
	return out, nil
}

// ProjectStats is the all-time summary of a project, for view_stats holders.
func (s *ProjectService) ProjectStats(ctx context.Context, userID, projectID uint) (ScopeTotals, error) {
	return s.stats.ScopeTotals(ctx, userID, &projectID)
}

func visibleProjects(tx *gorm.DB, userID uint) ([]ProjectView, error) {
	var owned []models.Project
	if err := tx.Where("owner_user_id = ? AND is_active = ?", userID, true).Order("id").Find(&owned).Error; err != nil {
		return nil, err
	}
	var joined []struct {
		models.Project
		Role models.Role
	}
	err := tx.Table("projects").
		Select("projects.*, project_members.role AS role").
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ? AND projects.is_active = ? AND projects.owner_user_id <> ?", userID, true, userID).
		Where("project_members.role <> ?", models.RoleOwner).
		Order("projects.id").
		Scan(&joined).Error
	if err != nil {
		return nil, err
	}
	out := make([]ProjectView, 0, len(owned)+len(joined))
	for _, p := range owned {
		out = append(out, ProjectView{Project: p, Role: models.RoleOwner, IsOwner: true})
	}
	for _, j := range joined {
		out = append(out, ProjectView{Project: j.Project, Role: j.Role})
	}
	sortProjects(out)
	return out, nil
}

func sortProjects(list []ProjectView) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

// normalizeName trims and collapses inner whitespace.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
