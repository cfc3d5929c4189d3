package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Date and time layouts used for the denormalized expense columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// AmountIntDigits is the integer precision of the decimal(12,2) amount
// columns.
const AmountIntDigits = 10

// Expense is a single spending record. Rows are never edited in place.
type Expense struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	ProjectID   *uint           `gorm:"index" json:"project_id,omitempty"`
	Date        string          `gorm:"size:10;not null;index" json:"date"`
	Time        string          `gorm:"size:8;not null" json:"time"`
	Year        int             `gorm:"not null;index:idx_expense_period,priority:1" json:"year"`
	Month       int             `gorm:"not null;index:idx_expense_period,priority:2" json:"month"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	Category    *Category       `gorm:"constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Description string          `gorm:"size:500" json:"description,omitempty"`
}

// Stamp fills the date, time and period columns from t.
func (e *Expense) Stamp(t time.Time) {
	e.Date = t.Format(DateLayout)
	e.Time = t.Format(TimeLayout)
	e.Year = t.Year()
	e.Month = int(t.Month())
}

// GetUserID returns the creator.
func (e *Expense) GetUserID() uint { return e.UserID }
