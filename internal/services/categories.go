package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/db"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"github.com/diewo77/go-expenses/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCategoryName = 100

// CategoryService owns the per-scope category catalogues.
type CategoryService struct {
	*base
}

func NewCategoryService(db *gorm.DB, log *slog.Logger, opts ...Option) *CategoryService {
	return &CategoryService{base: newBase(db, log, opts...)}
}

// SavedCategory is the outcome of CreateCategory.
type SavedCategory struct {
	Category    *models.Category `json:"category"`
	Reactivated bool             `json:"reactivated"`
}

// CreateCategory adds name to the scope. An inactive category with the same
// name is reactivated in place and keeps its id.
func (s *CategoryService) CreateCategory(ctx context.Context, userID uint, name string, projectID *uint) (*SavedCategory, error) {
	const op = "add_category"
	v := validation.Violations{}
	validation.Required("name", name, v)
	validation.MaxLength("name", models.NameKey(name), maxCategoryName, v)
	var out *SavedCategory
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, userID, projectID, policy.PermAddCategory); err != nil {
			return err
		}
		if !v.Empty() {
			return apperr.InvalidFields(op, v)
		}
		if _, err := ensureUser(tx, userID); err != nil {
			return err
		}
		c, outcome, err := db.SaveCategory(tx, models.NewCategory(userID, projectID, name, false))
		if errors.Is(err, db.ErrCategoryExists) {
			return apperr.Conflict(op, "category already exists")
		}
		if err != nil {
			return err
		}
		out = &SavedCategory{Category: c, Reactivated: outcome == db.CategoryReactivated}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err, "user", userID, "project", models.ScopeKey(projectID))
	}
	s.log.Info("category_saved", "user", userID, "project", models.ScopeKey(projectID),
		"category", out.Category.ID, "reactivated", out.Reactivated)
	return out, nil
}

// CategoriesForScope lists the active categories usable in the scope: the
// caller's own globals for personal scope, otherwise the project's categories
// plus the owner's globals, one per case-insensitive name. System categories
// come first, then by name.
func (s *CategoryService) CategoriesForScope(ctx context.Context, userID uint, projectID *uint) ([]models.Category, error) {
	var out []models.Category
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, userID, projectID, policy.PermViewStats); err != nil {
			return err
		}
		var err error
		out, err = scopeCategories(tx, userID, projectID)
		return err
	})
	if err != nil {
		return nil, s.fail("list_categories", err, "user", userID, "project", models.ScopeKey(projectID))
	}
	db.Decorate(out)
	return out, nil
}

// CategoryByID returns an active category the caller can see: one they own or
// one belonging to a project they have a role in.
func (s *CategoryService) CategoryByID(ctx context.Context, userID, categoryID uint) (*models.Category, error) {
	var c models.Category
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		return visibleCategory(ctx, tx, auth, "get_category", userID, categoryID, &c)
	})
	if err != nil {
		return nil, s.fail("get_category", err, "user", userID, "category", categoryID)
	}
	return &c, nil
}

// ResolveCategoryName maps a display name to the category it names in the
// scope, case-insensitively.
func (s *CategoryService) ResolveCategoryName(ctx context.Context, userID uint, projectID *uint, name string) (*models.Category, error) {
	list, err := s.CategoriesForScope(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	key := models.NameKey(name)
	for i := range list {
		if list[i].NameKey == key {
			return &list[i], nil
		}
	}
	return nil, apperr.NotFound("resolve_category", "category")
}

// DeactivateCategory soft-deletes an unused category. Any expense in the
// category's scope that still references it blocks the call.
func (s *CategoryService) DeactivateCategory(ctx context.Context, userID, categoryID uint) error {
	const op = "delete_category"
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var c models.Category
		if err := lockedCategory(ctx, tx, auth, userID, categoryID, &c); err != nil {
			return err
		}
		var used int64
		if err := inCategoryScope(tx.Model(&models.Expense{}), &c).Where("category_id = ?", c.ID).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return apperr.Conflict(op, "category is used by "+strconv.FormatInt(used, 10)+" expenses")
		}
		return tx.Model(&models.Category{}).Where("id = ?", c.ID).Updates(c.StateColumns(models.CategoryInactive)).Error
	})
	if err != nil {
		return s.fail(op, err, "user", userID, "category", categoryID)
	}
	s.log.Info("category_deactivated", "user", userID, "category", categoryID)
	return nil
}

// DeleteWithTransfer moves every expense in scope from categoryID to
// targetID and deactivates categoryID, atomically. It returns how many
// expenses moved.
func (s *CategoryService) DeleteWithTransfer(ctx context.Context, userID, categoryID, targetID uint) (int64, error) {
	const op = "delete_category"
	if categoryID == targetID {
		return 0, apperr.Invalid(op, "target must differ from the deleted category")
	}
	var moved int64
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var src models.Category
		if err := lockedCategory(ctx, tx, auth, userID, categoryID, &src); err != nil {
			return err
		}
		var dst models.Category
		if err := usableCategory(ctx, tx, auth, op, userID, src.ProjectID, targetID, &dst); err != nil {
			return err
		}
		res := inCategoryScope(tx.Model(&models.Expense{}), &src).
			Where("category_id = ?", src.ID).
			Update("category_id", dst.ID)
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected
		return tx.Model(&models.Category{}).Where("id = ?", src.ID).Updates(src.StateColumns(models.CategoryInactive)).Error
	})
	if err != nil {
		return 0, s.fail(op, err, "user", userID, "category", categoryID, "target", targetID)
	}
	s.log.Info("category_transferred", "user", userID, "category", categoryID, "target", targetID, "moved", moved)
	return moved, nil
}

// EnsureSystemCategories seeds or reactivates the system catalogue for a
// user, returning how many rows changed.
func (s *CategoryService) EnsureSystemCategories(ctx context.Context, userID uint) (int, error) {
	var changed int
	err := s.tx(ctx, func(tx *gorm.DB, _ *policy.Authorizer) error {
		created, err := ensureUser(tx, userID)
		if err != nil || created {
			changed = len(db.SystemCategories())
			return err
		}
		changed, err = db.EnsureSystemCategories(tx, userID)
		return err
	})
	if err != nil {
		return 0, s.fail("ensure_system_categories", err, "user", userID)
	}
	return changed, nil
}

func scopeCategories(tx *gorm.DB, userID uint, projectID *uint) ([]models.Category, error) {
	var rows []models.Category
	if projectID == nil {
		err := tx.Where("user_id = ? AND scope_id = 0 AND is_active = ?", userID, true).Find(&rows).Error
		if err != nil {
			return nil, err
		}
		sortCategories(rows)
		return rows, nil
	}
	var p models.Project
	if err := loadProject(tx, "list_categories", *projectID, &p); err != nil {
		return nil, err
	}
	err := tx.Where("is_active = ? AND (scope_id = ? OR (scope_id = 0 AND user_id = ?))", true, p.ID, p.OwnerUserID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	// project-scoped beats global, system beats user, then oldest
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.ScopeID != 0) != (b.ScopeID != 0) {
			return a.ScopeID != 0
		}
		if a.IsSystem != b.IsSystem {
			return a.IsSystem
		}
		return a.ID < b.ID
	})
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, c := range rows {
		if seen[c.NameKey] {
			continue
		}
		seen[c.NameKey] = true
		out = append(out, c)
	}
	sortCategories(out)
	return out, nil
}

func sortCategories(list []models.Category) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsSystem != list[j].IsSystem {
			return list[i].IsSystem
		}
		if list[i].NameKey != list[j].NameKey {
			return list[i].NameKey < list[j].NameKey
		}
		return list[i].ID < list[j].ID
	})
}

// inCategoryScope restricts an expenses query to c's visibility scope: every
// member's rows for a project category, the owner's personal rows otherwise.
func inCategoryScope(q *gorm.DB, c *models.Category) *gorm.DB {
	if c.ProjectID != nil {
		return q.Where("project_id = ?", *c.ProjectID)
	}
	return q.Where("user_id = ? AND project_id IS NULL", c.UserID)
}

func visibleCategory(ctx context.Context, tx *gorm.DB, auth *policy.Authorizer, op string, userID, categoryID uint, dst *models.Category) error {
	err := tx.Where("id = ? AND is_active = ?", categoryID, true).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "category")
	}
	if err != nil {
		return err
	}
	if dst.UserID == userID && userID != 0 {
		return nil
	}
	if dst.ProjectID != nil {
		role, err := auth.ResolveRole(ctx, userID, *dst.ProjectID)
		if err != nil {
			return err
		}
		if role != "" {
			return nil
		}
	}
	return apperr.NotFound(op, "category")
}

// lockedCategory loads a category for deletion: visible, locked, and the
// caller holds delete_category in its scope. Only the owner may delete a
// personal category.
func lockedCategory(ctx context.Context, tx *gorm.DB, auth *policy.Authorizer, userID, categoryID uint, dst *models.Category) error {
	const op = "delete_category"
	if err := visibleCategory(ctx, tx, auth, op, userID, categoryID, dst); err != nil {
		return err
	}
	if dst.ProjectID == nil && dst.UserID != userID {
		return apperr.NotFound(op, "category")
	}
	if err := auth.Require(ctx, userID, dst.ProjectID, policy.PermDeleteCategory); err != nil {
		return err
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", categoryID, true).
		Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "category")
	}
	return err
}

// usableCategory resolves a category an expense in scope may reference. In
// personal scope the caller's own categories are visible; inside a project
// only that project's categories and its owner's globals are, which is
// exactly what CategoriesForScope lists.
func usableCategory(ctx context.Context, tx *gorm.DB, auth *policy.Authorizer, op string, userID uint, projectID *uint, categoryID uint, dst *models.Category) error {
	err := tx.Where("id = ?", categoryID).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "category")
	}
	if err != nil {
		return err
	}
	visible := projectID == nil && dst.UserID == userID
	if !visible && projectID != nil && dst.ProjectID == nil {
		var p models.Project
		if err := loadProject(tx, op, *projectID, &p); err != nil {
			return err
		}
		visible = dst.UserID == p.OwnerUserID
	}
	if !visible && dst.ProjectID != nil {
		role, err := auth.ResolveRole(ctx, userID, *dst.ProjectID)
		if err != nil {
			return err
		}
		visible = role != ""
	}
	if !visible {
		return apperr.NotFound(op, "category")
	}
	if !dst.IsActive {
		return apperr.Integrity(op, "category is inactive")
	}
	if !dst.UsableIn(projectID) {
		return apperr.Integrity(op, "category belongs to a different scope")
	}
	return nil
}
