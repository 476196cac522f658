package models

import "time"

// Partner is the counterparty of a convention.
type Partner struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"not null" json:"name"`
	LegalStatus         string    `json:"legalStatus,omitempty"`
	LegalRepresentative string    `json:"legalRepresentative,omitempty"`
	Address             string    `json:"address,omitempty"`
	Email               string    `json:"email,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	Fax                 string    `json:"fax,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
