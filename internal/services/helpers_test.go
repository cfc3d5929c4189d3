package services_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-expenses/internal/db"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	owner    uint = 100
	editor   uint = 200
	viewer   uint = 300
	outsider uint = 400
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Set(t time.Time) { c.t = t }

type env struct {
	ctx   context.Context
	db    *gorm.DB
	svc   *services.Services
	clock *testClock
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := d.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(d))
	return d
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d := setupTestDB(t)
	clock := &testClock{t: time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &env{
		ctx:   context.Background(),
		db:    d,
		svc:   services.New(d, log, services.WithClock(clock.Now)),
		clock: clock,
	}
}

// trip creates "Trip" owned by owner with an editor and a viewer.
func (e *env) trip(t *testing.T) uint {
	t.Helper()
	p, err := e.svc.Projects.CreateProject(e.ctx, owner, "Trip")
	require.NoError(t, err)
	require.NoError(t, e.svc.Members.AddMember(e.ctx, p.ID, editor, models.RoleEditor))
	require.NoError(t, e.svc.Members.AddMember(e.ctx, p.ID, viewer, models.RoleViewer))
	return p.ID
}

// category returns the id of the named category in the user's scope.
func (e *env) category(t *testing.T, user uint, projectID *uint, name string) uint {
	t.Helper()
	c, err := e.svc.Categories.ResolveCategoryName(e.ctx, user, projectID, name)
	require.NoError(t, err)
	return c.ID
}

func (e *env) spend(t *testing.T, user uint, projectID *uint, categoryID uint, amount string) *models.Expense {
	t.Helper()
	exp, err := e.svc.Expenses.AddExpense(e.ctx, user, services.NewExpense{
		Amount:     decimal.RequireFromString(amount),
		CategoryID: categoryID,
		ProjectID:  projectID,
	})
	require.NoError(t, err)
	return exp
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func count(t *testing.T, d *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, d.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
