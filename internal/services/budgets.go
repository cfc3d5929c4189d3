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
	"gorm.io/gorm/clause"
)

// BudgetService keeps one monthly limit per scope.
type BudgetService struct {
	*base
}

func NewBudgetService(db *gorm.DB, log *slog.Logger, opts ...Option) *BudgetService {
	return &BudgetService{base: newBase(db, log, opts...)}
}

// BudgetStatus compares a month's budget with what was spent.
type BudgetStatus struct {
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	HasBudget bool            `json:"has_budget"`
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
}

// SetBudget creates or replaces the scope's budget for the month.
func (s *BudgetService) SetBudget(ctx context.Context, actor uint, projectID *uint, year, month int, amount decimal.Decimal) (*models.Budget, error) {
	const op = "set_budget"
	v := validation.Violations{}
	validation.PositiveDecimal("amount", amount, v)
	validation.MaxPlaces("amount", amount, 2, v)
	validation.MaxIntDigits("amount", amount, models.AmountIntDigits, v)
	validation.RangeInt("year", year, 1970, 9999, v)
	validation.RangeInt("month", month, 1, 12, v)

	var b *models.Budget
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, actor, projectID, policy.PermSetBudget); err != nil {
			return err
		}
		if !v.Empty() {
			return apperr.InvalidFields(op, v)
		}
		if _, err := ensureUser(tx, actor); err != nil {
			return err
		}
		scopeUser, scopeID := models.BudgetScope(actor, projectID)
		b = &models.Budget{
			UserID:      actor,
			ProjectID:   projectID,
			ScopeUserID: scopeUser,
			ScopeID:     scopeID,
			Year:        year,
			Month:       month,
			Amount:      amount,
			UpdatedAt:   s.now(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_user_id"}, {Name: "scope_id"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "user_id", "updated_at"}),
		}).Create(b).Error
		if err != nil {
			return err
		}
		var saved models.Budget
		if err := tx.Where("scope_user_id = ? AND scope_id = ? AND year = ? AND month = ?", scopeUser, scopeID, year, month).Take(&saved).Error; err != nil {
			return err
		}
		b = &saved
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err, "user", actor, "project", models.ScopeKey(projectID))
	}
	s.log.Info("budget_set", "user", actor, "project", models.ScopeKey(projectID), "year", year, "month", month)
	return b, nil
}

// BudgetStatus reports the month's budget and spending in the scope.
func (s *BudgetService) BudgetStatus(ctx context.Context, actor uint, projectID *uint, year, month int) (BudgetStatus, error) {
	const op = "view_budget"
	out := BudgetStatus{Year: year, Month: month}
	if err := checkPeriod(op, year, month); err != nil {
		return out, err
	}
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, actor, projectID, policy.PermViewBudget); err != nil {
			return err
		}
		scopeUser, scopeID := models.BudgetScope(actor, projectID)
		var b models.Budget
		err := tx.Where("scope_user_id = ? AND scope_id = ? AND year = ? AND month = ?", scopeUser, scopeID, year, month).Take(&b).Error
		switch {
		case err == nil:
			out.HasBudget = true
			out.Budget = b.Amount
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		sum, err := monthSummary(tx, actor, projectID, year, month)
		if err != nil {
			return err
		}
		out.Spent = sum.Total
		return nil
	})
	if err != nil {
		return BudgetStatus{Year: year, Month: month}, s.fail(op, err, "user", actor, "project", models.ScopeKey(projectID))
	}
	if out.HasBudget {
		out.Remaining = out.Budget.Sub(out.Spent)
		out.Exceeded = out.Spent.GreaterThan(out.Budget)
	}
	return out, nil
}
