package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a monthly spending limit. Personal budgets belong to a user,
// project budgets are shared by the project; ScopeUserID/ScopeID carry the
// non-null unique key (user, 0) or (0, project).
type Budget struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UpdatedAt   time.Time       `json:"updated_at"`
	UserID      uint            `gorm:"not null" json:"user_id"`
	ProjectID   *uint           `gorm:"index" json:"project_id,omitempty"`
	ScopeUserID uint            `gorm:"not null;uniqueIndex:idx_budget_scope_period,priority:1" json:"-"`
	ScopeID     uint            `gorm:"not null;uniqueIndex:idx_budget_scope_period,priority:2" json:"-"`
	Year        int             `gorm:"not null;uniqueIndex:idx_budget_scope_period,priority:3" json:"year"`
	Month       int             `gorm:"not null;uniqueIndex:idx_budget_scope_period,priority:4" json:"month"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
}

// BudgetScope returns the (ScopeUserID, ScopeID) key for a budget.
func BudgetScope(userID uint, projectID *uint) (uint, uint) {
	if projectID == nil {
		return userID, 0
	}
	return 0, *projectID
}
