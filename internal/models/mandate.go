package models

import "time"

type MandateStatus string

const (
	MandateDraft  MandateStatus = "draft"
	MandateActive MandateStatus = "active"
	MandateClosed MandateStatus = "closed"
)

func (s MandateStatus) Valid() bool {
	return s == MandateDraft || s == MandateActive || s == MandateClosed
}

// RegionCodes is the set of intervention region codes a mandate may cover.
var RegionCodes = map[string]bool{
	"dakar":       true,
	"diourbel":    true,
	"fatick":      true,
	"kaffrine":    true,
	"kaolack":     true,
	"kedougou":    true,
	"kolda":       true,
	"louga":       true,
	"matam":       true,
	"saint-louis": true,
	"sedhiou":     true,
	"tambacounda": true,
	"thies":       true,
	"ziguinchor":  true,
}

// Mandate is an organizational authorization/period under which conventions
// are issued. Regions is a native ordered list (stored via the gorm JSON
// serializer), validated against RegionCodes at the boundary.
type Mandate struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Number      string        `gorm:"uniqueIndex" json:"number"`
	Name        string        `gorm:"not null" json:"name"`
	Title       string        `gorm:"not null" json:"title"`
	StartDate   time.Time     `gorm:"not null" json:"startDate"`
	EndDate     time.Time     `gorm:"not null" json:"endDate"`
	Regions     []string      `gorm:"serializer:json" json:"regions"`
	Status      MandateStatus `gorm:"not null;default:'active'" json:"status"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
