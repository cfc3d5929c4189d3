package models

import (
	"strings"
	"time"
)

// CategoryState is the soft-delete state of a category.
type CategoryState int

const (
	CategoryActive CategoryState = iota
	CategoryInactive
)

func (s CategoryState) String() string {
	if s == CategoryActive {
		return "active"
	}
	return "inactive"
}

// Category groups expenses. ProjectID nil means a personal (global) category
// usable from any scope by its owner.
//
// ScopeID mirrors ProjectID with 0 for personal so it can take part in the
// unique index, and ActiveName is NameKey while active and NULL otherwise:
// the index idx_category_active then admits one active row per name and
// scope while inactive rows never collide.
type Category struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UserID     uint      `gorm:"not null;index;uniqueIndex:idx_category_active,priority:1" json:"user_id"`
	ProjectID  *uint     `gorm:"index" json:"project_id,omitempty"`
	ScopeID    uint      `gorm:"not null;uniqueIndex:idx_category_active,priority:2" json:"-"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	NameKey    string    `gorm:"size:100;not null;index" json:"-"`
	ActiveName *string   `gorm:"size:100;uniqueIndex:idx_category_active,priority:3" json:"-"`
	IsSystem   bool      `gorm:"not null" json:"is_system"`
	IsActive   bool      `gorm:"not null" json:"is_active"`

	// Display metadata of system categories, filled on listing.
	Emoji string `gorm:"-" json:"emoji,omitempty"`
	Color string `gorm:"-" json:"color,omitempty"`
}

// NameKey is the case-insensitive identity of a category name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ScopeKey maps an optional project to the non-null scope column value.
func ScopeKey(projectID *uint) uint {
	if projectID == nil {
		return 0
	}
	return *projectID
}

// NewCategory builds an active category for the given scope.
func NewCategory(userID uint, projectID *uint, name string, system bool) *Category {
	c := &Category{
		UserID:    userID,
		ProjectID: projectID,
		ScopeID:   ScopeKey(projectID),
		Name:      strings.TrimSpace(name),
		NameKey:   NameKey(name),
		IsSystem:  system,
	}
	c.SetState(CategoryActive)
	return c
}

func (c *Category) State() CategoryState {
	if c.IsActive {
		return CategoryActive
	}
	return CategoryInactive
}

// SetState keeps IsActive and ActiveName consistent.
func (c *Category) SetState(s CategoryState) {
	if s == CategoryActive {
		key := c.NameKey
		c.IsActive = true
		c.ActiveName = &key
		return
	}
	c.IsActive = false
	c.ActiveName = nil
}

// StateColumns returns the column updates that move a row into state s.
func (c *Category) StateColumns(s CategoryState) map[string]any {
	if s == CategoryActive {
		return map[string]any{"is_active": true, "active_name": c.NameKey}
	}
	return map[string]any{"is_active": false, "active_name": nil}
}

// UsableIn reports whether the category may be referenced by an expense
// recorded in the given scope.
func (c *Category) UsableIn(projectID *uint) bool {
	if c.ProjectID == nil {
		return true
	}
	return projectID != nil && *c.ProjectID == *projectID
}

func (c *Category) GetUserID() uint { return c.UserID }
