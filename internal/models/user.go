package models

import "time"

// User is a chat platform account. The ID is the platform's own numeric id,
// so it is never generated here. Rows are created lazily and never deleted.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// ActiveProjectID is the project selected in the chat session. It is a UI
	// convenience only and never consulted for authorization.
	ActiveProjectID *uint `gorm:"index" json:"active_project_id,omitempty"`
}
