package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-expenses/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Category{},
		&models.Expense{},
		&models.Invitation{},
		&models.Budget{},
	}
}

// Migrate runs AutoMigrate for all models.
// Used for sqlite and mysql, and for postgres when SQL migrations are off.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	for _, table := range []string{"users", "projects", "project_members", "categories", "expenses", "project_invites"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the versioned postgres migrations found in dir.
// url must be in postgres:// form.
func RunSQLMigrations(dir, url string) error {
	m, err := migrate.New("file://"+dir, ToURLDSN(url))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
