package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSettled   PaymentStatus = "settled"
	PaymentCancelled PaymentStatus = "cancelled"
)

var AllPaymentStatuses = []PaymentStatus{PaymentPending, PaymentSettled, PaymentCancelled}

func (s PaymentStatus) Valid() bool {
	for _, v := range AllPaymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CountsTowardConsumption reports whether the tranche reduces the remaining
// budget of its line. Pending tranches never do.
func (s PaymentStatus) CountsTowardConsumption() bool { return s == PaymentSettled }

// Payment is a percentage-based partial settlement (tranche) of a convention.
// Amount is derived from the parent convention's total at read time and never
// persisted, so a later change of the total cannot leave stale amounts behind.
type Payment struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	ConventionID  uint          `gorm:"not null;index" json:"conventionId"`
	Percentage    float64       `gorm:"not null" json:"percentage"`
	Amount        float64       `gorm:"-" json:"amount"`
	ScheduledDate *time.Time    `json:"scheduledDate,omitempty"`
	SettledDate   *time.Time    `json:"settledDate,omitempty"`
	Status        PaymentStatus `gorm:"not null;default:'pending'" json:"status"`
	Note          string        `json:"note,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
