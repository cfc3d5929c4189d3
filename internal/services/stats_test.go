package services_test

import (
	"testing"
	"time"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthExpensesSharedAndPersonal(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")
	transport := e.category(t, owner, &pid, "Transport")
	e.spend(t, owner, &pid, groceries, "10.10")
	e.spend(t, editor, &pid, groceries, "0.20")
	e.spend(t, editor, &pid, transport, "7")
	e.spend(t, editor, nil, e.category(t, editor, nil, "Health"), "1000")

	// every member sees the same project totals
	for _, user := range []uint{owner, editor, viewer} {
		sum, err := e.svc.Stats.MonthExpenses(e.ctx, user, &pid, 2026, 3)
		require.NoError(t, err)
		assert.True(t, sum.Total.Equal(dec("17.30")), "user %d total %s", user, sum.Total)
		assert.Equal(t, 3, sum.Count)
		assert.True(t, sum.ByCategory["Groceries"].Equal(dec("10.30")))
		assert.True(t, sum.ByCategory["Transport"].Equal(dec("7")))
	}

	mine, err := e.svc.Stats.MonthExpenses(e.ctx, editor, nil, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Count)
	assert.True(t, mine.Total.Equal(dec("1000")))

	theirs, err := e.svc.Stats.MonthExpenses(e.ctx, owner, nil, 2026, 3)
	require.NoError(t, err)
	assert.Zero(t, theirs.Count)

	_, err = e.svc.Stats.MonthExpenses(e.ctx, owner, &pid, 2026, 13)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDayExpenses(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")
	e.clock.Set(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC))
	e.spend(t, owner, &pid, groceries, "1")
	e.clock.Set(time.Date(2026, time.March, 15, 8, 0, 0, 0, time.UTC))
	e.spend(t, editor, &pid, groceries, "2")
	e.clock.Set(time.Date(2026, time.March, 16, 8, 0, 0, 0, time.UTC))
	e.spend(t, editor, &pid, groceries, "4")

	day, err := e.svc.Stats.DayExpenses(e.ctx, viewer, &pid, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", day.Date)
	assert.Equal(t, 2, day.Count)
	assert.True(t, day.Total.Equal(dec("3")))
	require.Len(t, day.Expenses, 2)
	assert.Equal(t, "08:00:00", day.Expenses[0].Time)

	empty, err := e.svc.Stats.DayExpenses(e.ctx, outsider, &pid, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Empty(t, empty.Expenses)
	_, err = e.svc.Stats.StrictDayExpenses(e.ctx, outsider, &pid, time.Now())
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestCategoryExpensesByMonth(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")
	transport := e.category(t, owner, &pid, "Transport")
	for _, m := range []time.Month{time.January, time.January, time.May} {
		e.clock.Set(time.Date(2026, m, 3, 12, 0, 0, 0, time.UTC))
		e.spend(t, editor, &pid, groceries, "2.50")
	}
	e.spend(t, editor, &pid, transport, "9")

	got, err := e.svc.Stats.CategoryExpenses(e.ctx, owner, &pid, groceries, 2026)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Category)
	assert.Equal(t, 3, got.Count)
	assert.True(t, got.Total.Equal(dec("7.50")))
	assert.True(t, got.ByMonth[1].Equal(dec("5")))
	assert.True(t, got.ByMonth[5].Equal(dec("2.50")))
	assert.NotContains(t, got.ByMonth, 3)

	// another user's personal category is not part of this scope
	sport := e.category(t, editor, nil, "Sport")
	_, err = e.svc.Stats.CategoryExpenses(e.ctx, owner, &pid, sport, 2026)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	none, err := e.svc.Stats.CategoryExpenses(e.ctx, outsider, &pid, groceries, 2026)
	require.NoError(t, err)
	assert.Zero(t, none.Count)
}

func TestYearSummaryAndCompareMonths(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Members.EnsureUser(e.ctx, owner)
	require.NoError(t, err)
	food := e.category(t, owner, nil, "Restaurants")
	e.clock.Set(time.Date(2025, time.December, 20, 12, 0, 0, 0, time.UTC))
	e.spend(t, owner, nil, food, "30")
	e.clock.Set(time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC))
	e.spend(t, owner, nil, food, "45.50")
	e.clock.Set(time.Date(2026, time.February, 5, 12, 0, 0, 0, time.UTC))
	e.spend(t, owner, nil, food, "4.50")

	year, err := e.svc.Stats.YearSummary(e.ctx, owner, nil, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, year.Count)
	assert.True(t, year.Total.Equal(dec("50")))
	assert.True(t, year.ByMonth[1].Equal(dec("45.50")))
	assert.True(t, year.ByCategory["Restaurants"].Equal(dec("50")))

	cmp, err := e.svc.Stats.CompareMonths(e.ctx, owner, nil, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, 2025, cmp.Previous.Year)
	assert.Equal(t, 12, cmp.Previous.Month)
	assert.True(t, cmp.Delta.Equal(dec("15.50")))
}

func TestScopeTotals(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	groceries := e.category(t, owner, &pid, "Groceries")
	e.spend(t, editor, &pid, groceries, "1.25")
	e.clock.Set(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	e.spend(t, owner, &pid, groceries, "2")

	all, err := e.svc.Stats.ScopeTotals(e.ctx, viewer, &pid)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)
	assert.True(t, all.Total.Equal(dec("3.25")))
	assert.True(t, all.ByCategory["Groceries"].Equal(dec("3.25")))

	_, err = e.svc.Stats.ScopeTotals(e.ctx, outsider, &pid)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}
