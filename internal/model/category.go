package model

import "github.com/google/uuid"

// Category maps an expense category name to its general-ledger code.
type Category struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name   string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	GLCode string    `gorm:"type:varchar(50);not null" json:"gl_code"`
}
