package services_test

import (
	"testing"
	"time"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddExpenseStampsServerClock(t *testing.T) {
	e := newEnv(t)
	e.clock.Set(time.Date(2026, time.July, 4, 23, 59, 58, 0, time.UTC))
	_, err := e.svc.Members.EnsureUser(e.ctx, owner)
	require.NoError(t, err)

	exp := e.spend(t, owner, nil, e.category(t, owner, nil, "Restaurants"), "18.40")
	assert.Equal(t, "2026-07-04", exp.Date)
	assert.Equal(t, "23:59:58", exp.Time)
	assert.Equal(t, 2026, exp.Year)
	assert.Equal(t, 7, exp.Month)
	assert.Nil(t, exp.ProjectID)
}

func TestAddExpenseCheckOrder(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")

	tests := []struct {
		name  string
		actor uint
		in    services.NewExpense
		want  error
	}{
		{"outsider with bad amount", outsider, services.NewExpense{Amount: dec("-1"), CategoryID: groceries, ProjectID: &pid}, apperr.ErrPermissionDenied},
		{"viewer", viewer, services.NewExpense{Amount: dec("1"), CategoryID: groceries, ProjectID: &pid}, apperr.ErrPermissionDenied},
		{"zero amount", editor, services.NewExpense{Amount: dec("0"), CategoryID: groceries, ProjectID: &pid}, apperr.ErrValidation},
		{"negative amount", editor, services.NewExpense{Amount: dec("-3"), CategoryID: groceries, ProjectID: &pid}, apperr.ErrValidation},
		{"wider than the column", editor, services.NewExpense{Amount: dec("12345678901234567.89"), CategoryID: groceries, ProjectID: &pid}, apperr.ErrValidation},
		{"three decimals", editor, services.NewExpense{Amount: dec("1.005"), CategoryID: groceries, ProjectID: &pid}, apperr.ErrValidation},
		{"bad amount and missing category", editor, services.NewExpense{Amount: dec("0"), CategoryID: 99999, ProjectID: &pid}, apperr.ErrValidation},
		{"missing category", editor, services.NewExpense{Amount: dec("1"), CategoryID: 99999, ProjectID: &pid}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		_, err := e.svc.Expenses.AddExpense(e.ctx, tt.actor, tt.in)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}

	_, err := e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("0"), CategoryID: groceries, ProjectID: &pid})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "must_be_positive", ae.Fields["amount"])
	assert.False(t, apperr.Retryable(err))

	_, err = e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("10000000000"), CategoryID: groceries, ProjectID: &pid})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "too_large", ae.Fields["amount"])
	_, err = e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("9999999999.99"), CategoryID: groceries, ProjectID: &pid})
	require.NoError(t, err)
	sum, err := e.svc.Stats.MonthExpenses(e.ctx, editor, &pid, 2026, 3)
	require.NoError(t, err)
	assert.True(t, sum.Total.Equal(dec("9999999999.99")), "stored exactly, got %s", sum.Total)
}

func TestAddExpenseCategoryScope(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	home, err := e.svc.Projects.CreateProject(e.ctx, owner, "Home")
	require.NoError(t, err)
	garden, err := e.svc.Categories.CreateCategory(e.ctx, owner, "Garden", &home.ID)
	require.NoError(t, err)

	// a category of another project is an integrity error
	_, err = e.svc.Expenses.AddExpense(e.ctx, owner, services.NewExpense{Amount: dec("1"), CategoryID: garden.Category.ID, ProjectID: &pid})
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
	_, err = e.svc.Expenses.AddExpense(e.ctx, owner, services.NewExpense{Amount: dec("1"), CategoryID: garden.Category.ID})
	assert.ErrorIs(t, err, apperr.ErrIntegrity)

	// the editor cannot see Home at all
	_, err = e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("1"), CategoryID: garden.Category.ID, ProjectID: &pid})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// someone else's personal category stays invisible
	ownerFood := e.category(t, owner, nil, "Groceries")
	_, err = e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("1"), CategoryID: ownerFood})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// the owner's globals are usable inside the project, a member's own
	// globals are not
	e.spend(t, editor, &pid, ownerFood, "2")
	sport := e.category(t, editor, nil, "Sport")
	_, err = e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("3"), CategoryID: sport, ProjectID: &pid})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	listed, err := e.svc.Categories.CategoriesForScope(e.ctx, editor, &pid)
	require.NoError(t, err)
	for _, c := range listed {
		assert.NotEqual(t, sport, c.ID)
	}

	// an inactive category cannot take new expenses
	tickets, err := e.svc.Categories.CreateCategory(e.ctx, owner, "Tickets", &pid)
	require.NoError(t, err)
	require.NoError(t, e.svc.Categories.DeactivateCategory(e.ctx, owner, tickets.Category.ID))
	_, err = e.svc.Expenses.AddExpense(e.ctx, editor, services.NewExpense{Amount: dec("1"), CategoryID: tickets.Category.ID, ProjectID: &pid})
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestRecentExpenses(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")
	for i, amount := range []string{"1", "2", "3"} {
		e.clock.Set(time.Date(2026, time.March, 10+i, 12, 0, 0, 0, time.UTC))
		e.spend(t, editor, &pid, groceries, amount)
	}

	lines, err := e.svc.Expenses.RecentExpenses(e.ctx, viewer, &pid, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Amount.Equal(dec("3")))
	assert.Equal(t, "Groceries", lines[0].Category)
	assert.Equal(t, "2026-03-11", lines[1].Date)

	_, err = e.svc.Expenses.RecentExpenses(e.ctx, outsider, &pid, 2)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestYearExpenses(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")
	e.spend(t, editor, &pid, groceries, "4")
	e.clock.Set(time.Date(2025, time.December, 31, 8, 0, 0, 0, time.UTC))
	e.spend(t, editor, &pid, groceries, "5")

	lines, err := e.svc.Expenses.YearExpenses(e.ctx, owner, &pid, 2026)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, editor, lines[0].UserID)

	lines, err = e.svc.Expenses.YearExpenses(e.ctx, outsider, &pid, 2026)
	require.NoError(t, err)
	assert.Empty(t, lines)
	_, err = e.svc.Expenses.StrictYearExpenses(e.ctx, outsider, &pid, 2026)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	// personal scope only ever shows the caller's own rows
	lines, err = e.svc.Expenses.YearExpenses(e.ctx, editor, nil, 2026)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
