package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"github.com/diewo77/go-expenses/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxDescription = 500
	maxRecent      = 100
)

// ExpenseService records and lists expenses.
type ExpenseService struct {
	*base
}

func NewExpenseService(db *gorm.DB, log *slog.Logger, opts ...Option) *ExpenseService {
	return &ExpenseService{base: newBase(db, log, opts...)}
}

// NewExpense is the input of AddExpense. A nil ProjectID records a personal
// expense.
type NewExpense struct {
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  uint            `json:"category_id"`
	Description string          `json:"description"`
	ProjectID   *uint           `json:"project_id,omitempty"`
}

// ExpenseLine is an expense joined with its category name.
type ExpenseLine struct {
	ID          uint            `json:"id"`
	UserID      uint            `json:"user_id"`
	ProjectID   *uint           `json:"project_id,omitempty"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  uint            `json:"category_id"`
	Category    string          `json:"category"`
	CategoryKey string          `json:"-"`
	Description string          `json:"description,omitempty"`
}

// AddExpense checks permission, then the input, then the category, and only
// then writes. Date and time come from the server clock.
func (s *ExpenseService) AddExpense(ctx context.Context, actor uint, in NewExpense) (*models.Expense, error) {
	const op = "add_expense"
	v := validation.Violations{}
	validation.PositiveDecimal("amount", in.Amount, v)
	validation.MaxPlaces("amount", in.Amount, 2, v)
	validation.MaxIntDigits("amount", in.Amount, models.AmountIntDigits, v)
	validation.MaxLength("description", in.Description, maxDescription, v)

	var e *models.Expense
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, actor, in.ProjectID, policy.PermAddExpense); err != nil {
			return err
		}
		if !v.Empty() {
			return apperr.InvalidFields(op, v)
		}
		var c models.Category
		if err := usableCategory(ctx, tx, auth, op, actor, in.ProjectID, in.CategoryID, &c); err != nil {
			return err
		}
		if _, err := ensureUser(tx, actor); err != nil {
			return err
		}
		e = &models.Expense{
			UserID:      actor,
			ProjectID:   in.ProjectID,
			Amount:      in.Amount,
			CategoryID:  c.ID,
			Description: in.Description,
		}
		e.Stamp(s.now())
		return tx.Create(e).Error
	})
	if err != nil {
		return nil, s.fail(op, err, "user", actor, "project", models.ScopeKey(in.ProjectID), "category", in.CategoryID)
	}
	s.log.Info("expense_added", "user", actor, "project", models.ScopeKey(in.ProjectID), "expense", e.ID)
	return e, nil
}

// RecentExpenses returns the latest expenses in the scope, newest first.
func (s *ExpenseService) RecentExpenses(ctx context.Context, actor uint, projectID *uint, limit int) ([]ExpenseLine, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	var out []ExpenseLine
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, actor, projectID, policy.PermViewHistory); err != nil {
			return err
		}
		var err error
		out, err = expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB {
			return q.Order("expenses.date DESC, expenses.time DESC, expenses.id DESC").Limit(limit)
		})
		return err
	})
	if err != nil {
		return nil, s.fail("view_history", err, "user", actor, "project", models.ScopeKey(projectID))
	}
	return out, nil
}

// YearExpenses returns every expense of the year in the scope, oldest first.
// A caller without view_history gets an empty list.
func (s *ExpenseService) YearExpenses(ctx context.Context, actor uint, projectID *uint, year int) ([]ExpenseLine, error) {
	out, err := s.yearExpenses(ctx, actor, projectID, year)
	if errors.Is(err, apperr.ErrPermissionDenied) {
		return []ExpenseLine{}, nil
	}
	return out, err
}

// StrictYearExpenses is YearExpenses reporting PermissionDenied.
func (s *ExpenseService) StrictYearExpenses(ctx context.Context, actor uint, projectID *uint, year int) ([]ExpenseLine, error) {
	return s.yearExpenses(ctx, actor, projectID, year)
}

func (s *ExpenseService) yearExpenses(ctx context.Context, actor uint, projectID *uint, year int) ([]ExpenseLine, error) {
	var out []ExpenseLine
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, actor, projectID, policy.PermViewHistory); err != nil {
			return err
		}
		var err error
		out, err = expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB {
			return q.Where("expenses.year = ?", year).Order("expenses.date, expenses.time, expenses.id")
		})
		return err
	})
	if err != nil {
		return nil, s.fail("view_history", err, "user", actor, "project", models.ScopeKey(projectID), "year", year)
	}
	return out, nil
}

// inScope restricts an expenses query to what the scope shows: every
// member's rows for a project, the actor's own personal rows otherwise.
func inScope(q *gorm.DB, actor uint, projectID *uint) *gorm.DB {
	if projectID != nil {
		return q.Where("expenses.project_id = ?", *projectID)
	}
	return q.Where("expenses.user_id = ? AND expenses.project_id IS NULL", actor)
}

func expenseLines(tx *gorm.DB, actor uint, projectID *uint, refine func(*gorm.DB) *gorm.DB) ([]ExpenseLine, error) {
	q := tx.Table("expenses").
		Select("expenses.id, expenses.user_id, expenses.project_id, expenses.date, expenses.time, " +
			"expenses.year, expenses.month, expenses.amount, expenses.category_id, " +
			"categories.name AS category, categories.name_key AS category_key, expenses.description").
		Joins("JOIN categories ON categories.id = expenses.category_id")
	q = refine(inScope(q, actor, projectID))
	out := []ExpenseLine{}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
