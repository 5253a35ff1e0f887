package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification type enum constants
const (
	NotifTypeSubmission = "submission"
	NotifTypeApproval   = "approval"
	NotifTypeRejection  = "rejection"
)

// Notification is an append-only event belonging to one recipient. Rows are
// created only inside workflow transactions; the owner may flip the read flag
// or delete the row, nothing else mutates it.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	Type      string    `gorm:"type:varchar(20);not null" json:"type"` // submission, approval, rejection
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
