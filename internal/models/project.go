package models

import "time"

// Project is a shared expense space owned by exactly one user.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	OwnerUserID uint      `gorm:"index;not null" json:"owner_user_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
}

// GetUserID returns the owner, making projects Ownable.
func (p *Project) GetUserID() uint { return p.OwnerUserID }

// ProjectMember ties a user to a project with a role. The owner always has a
// row with RoleOwner, written in the same transaction that creates the project.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_user" json:"project_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_project_user;index" json:"user_id"`
	Role      Role      `gorm:"size:20;not null" json:"role"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
}
