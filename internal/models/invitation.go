package models

import "time"

// Invitation is a single-use, time-boxed grant of a role in a project.
type Invitation struct {
	Token     string    `gorm:"primaryKey;size:64" json:"token"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	InviterID uint      `gorm:"not null" json:"inviter_id"`
	Role      Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (Invitation) TableName() string { return "project_invites" }

// Expired reports whether the invitation can no longer be redeemed at now.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
