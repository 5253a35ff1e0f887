package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionRegisterUser   = "REGISTER_USER"
	ActionUpdateUserRole = "UPDATE_USER_ROLE"
	ActionBulkUploadUser = "BULK_UPLOAD_USERS"

	ActionCreateExpense = "CREATE_EXPENSE"
	ActionUpdateDraft   = "UPDATE_DRAFT"

	// Approval workflow actions
	ActionSubmitExpense  = "SUBMIT_EXPENSE"
	ActionApproveExpense = "APPROVE_EXPENSE"
	ActionRejectExpense  = "REJECT_EXPENSE"
	ActionApproveReport  = "APPROVE_REPORT"
	ActionRejectReport   = "REJECT_REPORT"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
