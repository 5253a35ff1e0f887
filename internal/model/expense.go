package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense status enum constants. The set is closed: only the workflow service
// moves an expense out of draft, and approved/rejected are terminal.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// Expense is the record moved through the approval workflow. ApproverID is
// non-nil exactly while status is submitted: the single outstanding approver.
type Expense struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner         *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	ApproverID    *uuid.UUID `gorm:"type:uuid;index" json:"approver_id"`
	Approver      *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`

	Vendor        string          `gorm:"type:varchar(255);not null" json:"vendor"`
	Date          time.Time       `gorm:"not null" json:"date"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(10);not null" json:"currency"`
	Category      string          `gorm:"type:varchar(255);not null" json:"category"`
	GLCode        *string         `gorm:"type:varchar(50)" json:"gl_code"`
	Description   string          `gorm:"type:text" json:"description"`
	ImageFilename string          `gorm:"type:varchar(255)" json:"image_filename"`
	Status        string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	LineItems []LineItem `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"line_items"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is one row of a parsed receipt. Quantity and unit price are
// optional because receipts often only carry a line total.
type LineItem struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"expense_id"`
	Description string           `gorm:"type:varchar(255);not null" json:"description"`
	Quantity    *decimal.Decimal `gorm:"type:decimal(18,4)" json:"quantity"`
	UnitPrice   *decimal.Decimal `gorm:"type:decimal(18,4)" json:"unit_price"`
	TotalPrice  decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"total_price"`
}
