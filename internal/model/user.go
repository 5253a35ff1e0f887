package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Known role values. Role is stored as an open string so new roles can be
// introduced without a migration; these are the ones the API validates.
const (
	RoleUser     = "user"
	RoleApprover = "approver"
	RoleFinance  = "finance"
	RoleAdmin    = "admin"
)

// User represents the central user entity for logic and database structure.
// ManagerID is a weak self-reference (id only, reverse lookups go through the
// index) so the management relation stays a forest instead of an ownership
// cycle between manager and direct reports.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role      string         `gorm:"type:varchar(50);not null;default:'user'" json:"role"`
	ManagerID *uuid.UUID     `gorm:"type:uuid;index" json:"manager_id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
