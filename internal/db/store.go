package db

import (
	"errors"
	"strings"

	"github.com/diewo77/go-expenses/internal/models"
	"gorm.io/gorm"
)

// ErrCategoryExists is returned when an active category with the same name
// already exists in the target scope.
var ErrCategoryExists = errors.New("category already exists")

// CategoryOutcome tells how SaveCategory satisfied the request.
type CategoryOutcome int

const (
	CategoryCreated CategoryOutcome = iota + 1
	CategoryReactivated
)

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") || strings.Contains(msg, "duplicate entry")
}

// SaveCategory applies the reactivation rule for want's (user, scope, name):
// an active match is a conflict, an inactive match is reactivated in place
// (keeping its id and taking want's system flag), otherwise want is inserted.
// The unique index on active names turns a lost race into ErrCategoryExists.
func SaveCategory(tx *gorm.DB, want *models.Category) (*models.Category, CategoryOutcome, error) {
	var existing models.Category
	err := tx.Where("user_id = ? AND scope_id = ? AND name_key = ?", want.UserID, want.ScopeID, want.NameKey).
		Order("is_active DESC, id ASC").
		First(&existing).Error
	switch {
	case err == nil && existing.State() == models.CategoryActive:
		return &existing, 0, ErrCategoryExists
	case err == nil:
		cols := existing.StateColumns(models.CategoryActive)
		cols["is_system"] = want.IsSystem
		res := tx.Model(&models.Category{}).
			Where("id = ? AND is_active = ?", existing.ID, false).
			Updates(cols)
		if res.Error != nil {
			if IsDuplicate(res.Error) {
				return nil, 0, ErrCategoryExists
			}
			return nil, 0, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, 0, ErrCategoryExists
		}
		existing.SetState(models.CategoryActive)
		existing.IsSystem = want.IsSystem
		return &existing, CategoryReactivated, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// savepoint so a lost race leaves the caller's transaction usable
		err := tx.Transaction(func(sp *gorm.DB) error { return sp.Create(want).Error })
		if err != nil {
			if IsDuplicate(err) {
				return nil, 0, ErrCategoryExists
			}
			return nil, 0, err
		}
		return want, CategoryCreated, nil
	default:
		return nil, 0, err
	}
}
