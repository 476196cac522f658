package models

import "time"

// BudgetLine is a pool of allocated funds conventions are charged against.
// Consumed/remaining amounts are never stored here: they are derived from
// settled payment tranches by the reporting service.
type BudgetLine struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Code          string    `gorm:"uniqueIndex;not null" json:"code"`
	Label         string    `gorm:"not null" json:"label"`
	Description   string    `json:"description,omitempty"`
	InitialAmount float64   `gorm:"not null;default:0" json:"initialAmount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
