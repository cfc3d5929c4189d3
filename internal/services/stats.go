package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"github.com/diewo77/go-expenses/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatsService aggregates expenses. All reads are read-only and use the same
// scope filter as the ledger, so project totals include every member's rows.
type StatsService struct {
	*base
}

func NewStatsService(db *gorm.DB, log *slog.Logger, opts ...Option) *StatsService {
	return &StatsService{base: newBase(db, log, opts...)}
}

type MonthSummary struct {
	Year       int                        `json:"year"`
	Month      int                        `json:"month"`
	Total      decimal.Decimal            `json:"total"`
	Count      int                        `json:"count"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

type DaySummary struct {
	Date       string                     `json:"date"`
	Total      decimal.Decimal            `json:"total"`
	Count      int                        `json:"count"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
	Expenses   []ExpenseLine              `json:"expenses"`
}

// CategoryYear is one category's spending over a year, keyed by month.
type CategoryYear struct {
	Category string                  `json:"category"`
	Year     int                     `json:"year"`
	Total    decimal.Decimal         `json:"total"`
	Count    int                     `json:"count"`
	ByMonth  map[int]decimal.Decimal `json:"by_month"`
}

type YearSummary struct {
	Year       int                        `json:"year"`
	Total      decimal.Decimal            `json:"total"`
	Count      int                        `json:"count"`
	ByMonth    map[int]decimal.Decimal    `json:"by_month"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// MonthComparison pairs a month with the one before it.
type MonthComparison struct {
	Current  MonthSummary    `json:"current"`
	Previous MonthSummary    `json:"previous"`
	Delta    decimal.Decimal `json:"delta"`
}

// ScopeTotals is the all-time summary of a scope.
type ScopeTotals struct {
	Total      decimal.Decimal            `json:"total"`
	Count      int                        `json:"count"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// byName sums amounts per category, merging names that differ only in case
// under the first spelling seen.
type byName struct {
	names map[string]string
	sums  map[string]decimal.Decimal
}

func newByName() *byName {
	return &byName{names: map[string]string{}, sums: map[string]decimal.Decimal{}}
}

func (b *byName) add(l ExpenseLine) {
	name, ok := b.names[l.CategoryKey]
	if !ok {
		name = l.Category
		b.names[l.CategoryKey] = name
	}
	b.sums[name] = b.sums[name].Add(l.Amount)
}

func emptyMonth(year, month int) MonthSummary {
	return MonthSummary{Year: year, Month: month, ByCategory: map[string]decimal.Decimal{}}
}

func checkPeriod(op string, year, month int) error {
	v := validation.Violations{}
	validation.RangeInt("year", year, 1970, 9999, v)
	if month != 0 {
		validation.RangeInt("month", month, 1, 12, v)
	}
	if !v.Empty() {
		return apperr.InvalidFields(op, v)
	}
	return nil
}

// lenient turns a permission denial into the zero value, so callers without
// access learn nothing from the error channel.
func lenient[T any](zero T, v T, err error) (T, error) {
	if errors.Is(err, apperr.ErrPermissionDenied) {
		return zero, nil
	}
	return v, err
}

// read runs fn after checking perm, inside a read transaction.
func (s *StatsService) read(ctx context.Context, op string, actor uint, projectID *uint, fn func(tx *gorm.DB) error) error {
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		if err := auth.Require(ctx, actor, projectID, policy.PermViewStats); err != nil {
			return err
		}
		return fn(tx)
	})
	return s.fail(op, err, "user", actor, "project", models.ScopeKey(projectID))
}

// MonthExpenses totals a month, broken down by category name. Callers
// without view_stats get an empty summary.
func (s *StatsService) MonthExpenses(ctx context.Context, actor uint, projectID *uint, year, month int) (MonthSummary, error) {
	sum, err := s.StrictMonthExpenses(ctx, actor, projectID, year, month)
	return lenient(emptyMonth(year, month), sum, err)
}

// StrictMonthExpenses is MonthExpenses reporting PermissionDenied.
func (s *StatsService) StrictMonthExpenses(ctx context.Context, actor uint, projectID *uint, year, month int) (MonthSummary, error) {
	if err := checkPeriod("month_expenses", year, month); err != nil {
		return emptyMonth(year, month), err
	}
	out := emptyMonth(year, month)
	err := s.read(ctx, "month_expenses", actor, projectID, func(tx *gorm.DB) error {
		var err error
		out, err = monthSummary(tx, actor, projectID, year, month)
		return err
	})
	if err != nil {
		return emptyMonth(year, month), err
	}
	return out, nil
}

// DayExpenses totals one day and lists its expenses.
func (s *StatsService) DayExpenses(ctx context.Context, actor uint, projectID *uint, day time.Time) (DaySummary, error) {
	sum, err := s.StrictDayExpenses(ctx, actor, projectID, day)
	return lenient(emptyDay(day), sum, err)
}

// StrictDayExpenses is DayExpenses reporting PermissionDenied.
func (s *StatsService) StrictDayExpenses(ctx context.Context, actor uint, projectID *uint, day time.Time) (DaySummary, error) {
	out := emptyDay(day)
	err := s.read(ctx, "day_expenses", actor, projectID, func(tx *gorm.DB) error {
		lines, err := expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB {
			return q.Where("expenses.date = ?", out.Date).Order("expenses.time, expenses.id")
		})
		if err != nil {
			return err
		}
		cats := newByName()
		for _, l := range lines {
			out.Total = out.Total.Add(l.Amount)
			cats.add(l)
		}
		out.Count = len(lines)
		out.ByCategory = cats.sums
		out.Expenses = lines
		return nil
	})
	if err != nil {
		return emptyDay(day), err
	}
	return out, nil
}

func emptyDay(day time.Time) DaySummary {
	return DaySummary{
		Date:       day.Format(models.DateLayout),
		ByCategory: map[string]decimal.Decimal{},
		Expenses:   []ExpenseLine{},
	}
}

// CategoryExpenses totals one category over a year, by month number. Rows of
// every category sharing the name in the scope are included, matching the
// by-name breakdown of MonthExpenses.
func (s *StatsService) CategoryExpenses(ctx context.Context, actor uint, projectID *uint, categoryID uint, year int) (CategoryYear, error) {
	sum, err := s.StrictCategoryExpenses(ctx, actor, projectID, categoryID, year)
	return lenient(CategoryYear{Year: year, ByMonth: map[int]decimal.Decimal{}}, sum, err)
}

// StrictCategoryExpenses is CategoryExpenses reporting PermissionDenied.
func (s *StatsService) StrictCategoryExpenses(ctx context.Context, actor uint, projectID *uint, categoryID uint, year int) (CategoryYear, error) {
	out := CategoryYear{Year: year, ByMonth: map[int]decimal.Decimal{}}
	if err := checkPeriod("category_expenses", year, 0); err != nil {
		return out, err
	}
	err := s.read(ctx, "category_expenses", actor, projectID, func(tx *gorm.DB) error {
		var c models.Category
		err := tx.Where("id = ?", categoryID).Take(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("category_expenses", "category")
		}
		if err != nil {
			return err
		}
		if ok, err := listedInScope(tx, &c, actor, projectID); err != nil || !ok {
			if err == nil {
				err = apperr.NotFound("category_expenses", "category")
			}
			return err
		}
		lines, err := expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB {
			return q.Where("expenses.year = ? AND categories.name_key = ?", year, c.NameKey)
		})
		if err != nil {
			return err
		}
		out.Category = c.Name
		for _, l := range lines {
			out.Total = out.Total.Add(l.Amount)
			out.ByMonth[l.Month] = out.ByMonth[l.Month].Add(l.Amount)
		}
		out.Count = len(lines)
		return nil
	})
	if err != nil {
		return CategoryYear{Year: year, ByMonth: map[int]decimal.Decimal{}}, err
	}
	return out, nil
}

// YearSummary totals a year by month and by category.
func (s *StatsService) YearSummary(ctx context.Context, actor uint, projectID *uint, year int) (YearSummary, error) {
	sum, err := s.StrictYearSummary(ctx, actor, projectID, year)
	return lenient(emptyYear(year), sum, err)
}

// StrictYearSummary is YearSummary reporting PermissionDenied.
func (s *StatsService) StrictYearSummary(ctx context.Context, actor uint, projectID *uint, year int) (YearSummary, error) {
	out := emptyYear(year)
	if err := checkPeriod("year_expenses", year, 0); err != nil {
		return out, err
	}
	err := s.read(ctx, "year_expenses", actor, projectID, func(tx *gorm.DB) error {
		lines, err := expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB {
			return q.Where("expenses.year = ?", year)
		})
		if err != nil {
			return err
		}
		cats := newByName()
		for _, l := range lines {
			out.Total = out.Total.Add(l.Amount)
			out.ByMonth[l.Month] = out.ByMonth[l.Month].Add(l.Amount)
			cats.add(l)
		}
		out.Count = len(lines)
		out.ByCategory = cats.sums
		return nil
	})
	if err != nil {
		return emptyYear(year), err
	}
	return out, nil
}

func emptyYear(year int) YearSummary {
	return YearSummary{Year: year, ByMonth: map[int]decimal.Decimal{}, ByCategory: map[string]decimal.Decimal{}}
}

// CompareMonths returns the month, the month before it and the change.
func (s *StatsService) CompareMonths(ctx context.Context, actor uint, projectID *uint, year, month int) (MonthComparison, error) {
	if err := checkPeriod("compare_months", year, month); err != nil {
		return MonthComparison{}, err
	}
	py, pm := year, month-1
	if pm == 0 {
		py, pm = year-1, 12
	}
	out := MonthComparison{Current: emptyMonth(year, month), Previous: emptyMonth(py, pm)}
	err := s.read(ctx, "compare_months", actor, projectID, func(tx *gorm.DB) error {
		var err error
		if out.Current, err = monthSummary(tx, actor, projectID, year, month); err != nil {
			return err
		}
		out.Previous, err = monthSummary(tx, actor, projectID, py, pm)
		return err
	})
	if err != nil {
		return MonthComparison{}, err
	}
	out.Delta = out.Current.Total.Sub(out.Previous.Total)
	return out, nil
}

// ScopeTotals summarizes everything ever recorded in the scope.
func (s *StatsService) ScopeTotals(ctx context.Context, actor uint, projectID *uint) (ScopeTotals, error) {
	out := ScopeTotals{ByCategory: map[string]decimal.Decimal{}}
	err := s.read(ctx, "scope_totals", actor, projectID, func(tx *gorm.DB) error {
		var err error
		out, err = scopeTotals(tx, actor, projectID)
		return err
	})
	if err != nil {
		return ScopeTotals{ByCategory: map[string]decimal.Decimal{}}, err
	}
	return out, nil
}

func scopeTotals(tx *gorm.DB, actor uint, projectID *uint) (ScopeTotals, error) {
	out := ScopeTotals{ByCategory: map[string]decimal.Decimal{}}
	lines, err := expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB { return q })
	if err != nil {
		return out, err
	}
	cats := newByName()
	for _, l := range lines {
		out.Total = out.Total.Add(l.Amount)
		cats.add(l)
	}
	out.Count = len(lines)
	out.ByCategory = cats.sums
	return out, nil
}

func monthSummary(tx *gorm.DB, actor uint, projectID *uint, year, month int) (MonthSummary, error) {
	out := emptyMonth(year, month)
	lines, err := expenseLines(tx, actor, projectID, func(q *gorm.DB) *gorm.DB {
		return q.Where("expenses.year = ? AND expenses.month = ?", year, month)
	})
	if err != nil {
		return out, err
	}
	cats := newByName()
	for _, l := range lines {
		out.Total = out.Total.Add(l.Amount)
		cats.add(l)
	}
	out.Count = len(lines)
	out.ByCategory = cats.sums
	return out, nil
}

// listedInScope reports whether c belongs to the scope's catalogue, active or
// not: the actor's own globals, the project's categories, or the project
// owner's globals.
func listedInScope(tx *gorm.DB, c *models.Category, actor uint, projectID *uint) (bool, error) {
	if c.ScopeID == 0 && c.UserID == actor {
		return true, nil
	}
	if projectID == nil {
		return false, nil
	}
	if c.ScopeID == *projectID {
		return true, nil
	}
	if c.ScopeID != 0 {
		return false, nil
	}
	var p models.Project
	if err := loadProject(tx, "category_expenses", *projectID, &p); err != nil {
		return false, err
	}
	return c.UserID == p.OwnerUserID, nil
}
