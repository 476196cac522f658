package models

import "time"

type ConventionStatus string

const (
	ConventionDraft      ConventionStatus = "draft"
	ConventionActive     ConventionStatus = "active"
	ConventionInProgress ConventionStatus = "in_progress"
	ConventionSuspended  ConventionStatus = "suspended"
	ConventionCompleted  ConventionStatus = "completed"
	ConventionTerminated ConventionStatus = "terminated"
)

// AllConventionStatuses in display order; reporting emits zero counts for
// statuses with no members so charts stay stable.
var AllConventionStatuses = []ConventionStatus{
	ConventionDraft,
	ConventionActive,
	ConventionInProgress,
	ConventionSuspended,
	ConventionCompleted,
	ConventionTerminated,
}

func (s ConventionStatus) Valid() bool {
	for _, v := range AllConventionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Closed reports whether the convention no longer counts as overdue-able.
func (s ConventionStatus) Closed() bool {
	return s == ConventionCompleted || s == ConventionTerminated
}

// Convention is a contractual commitment of a fixed total value, charged to
// exactly one budget line under one mandate with one partner.
type Convention struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Number       string           `gorm:"uniqueIndex;not null" json:"number"`
	BudgetLineID uint             `gorm:"not null;index" json:"budgetLineId"`
	MandateID    uint             `gorm:"not null;index" json:"mandateId"`
	PartnerID    uint             `gorm:"not null;index" json:"partnerId"`
	BudgetLine   BudgetLine       `gorm:"foreignKey:BudgetLineID" json:"budgetLine,omitzero"`
	Mandate      Mandate          `gorm:"foreignKey:MandateID" json:"mandate,omitzero"`
	Partner      Partner          `gorm:"foreignKey:PartnerID" json:"partner,omitzero"`
	Objective    string           `gorm:"not null" json:"objective"`
	Description  string           `gorm:"size:191" json:"description,omitempty"`
	StartDate    time.Time        `gorm:"not null" json:"startDate"`
	EndDate      time.Time        `gorm:"not null" json:"endDate"`
	DurationDays int              `gorm:"not null" json:"durationDays"`
	TotalAmount  float64          `gorm:"not null" json:"totalAmount"`
	Status       ConventionStatus `gorm:"not null;default:'draft'" json:"status"`
	Payments     []Payment        `gorm:"foreignKey:ConventionID" json:"payments,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// DescriptionMaxLen mirrors the column bound; longer input is truncated at
// the boundary rather than rejected.
const DescriptionMaxLen = 191
