package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/validation"
	"gorm.io/gorm"
)

type MandateService struct{ DB *gorm.DB }

func NewMandateService(db *gorm.DB) *MandateService { return &MandateService{DB: db} }

type MandateInput struct {
	Name        string
	Title       string
	StartDate   time.Time
	EndDate     time.Time
	Regions     []string
	Status      models.MandateStatus
	Description string
}

// MandateView adds the derived fields the listing screens need.
type MandateView struct {
	models.Mandate
	DurationDays    int `json:"durationDays"`
	ConventionCount int `json:"conventionCount"`
}

func validateMandate(in MandateInput) (models.MandateStatus, validation.Violations) {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.Required("title", in.Title, v)
	validation.DateOrder("startDate", "endDate", in.StartDate, in.EndDate, v)
	if len(in.Regions) == 0 {
		v["regions"] = "required"
	}
	for _, r := range in.Regions {
		if !models.RegionCodes[r] {
			v["regions"] = "unknown_region_code"
			break
		}
	}
	status := in.Status
	if status == "" {
		status = models.MandateActive
	}
	if !status.Valid() {
		v["status"] = "unknown_status"
	}
	return status, v
}

func (s *MandateService) Create(in MandateInput) (*MandateView, error) {
	status, v := validateMandate(in)
	if !v.Empty() {
		return nil, NewValidationError(v)
	}
	m := models.Mandate{
		Name:        in.Name,
		Title:       in.Title,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Regions:     in.Regions,
		Status:      status,
		Description: in.Description,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		// Number is derived from the generated id.
		m.Number = fmt.Sprintf("MAN-%d", m.ID)
		return tx.Model(&m).Update("number", m.Number).Error
	})
	if err != nil {
		return nil, err
	}
	return &MandateView{Mandate: m, DurationDays: wholeDays(m.StartDate, m.EndDate)}, nil
}

func (s *MandateService) Update(id uint, in MandateInput) (*MandateView, error) {
	var m models.Mandate
	if err := s.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "mandate"}
		}
		return nil, err
	}
	status, v := validateMandate(in)
	if !v.Empty() {
		return nil, NewValidationError(v)
	}
	m.Name = in.Name
	m.Title = in.Title
	m.StartDate = in.StartDate
	m.EndDate = in.EndDate
	m.Regions = in.Regions
	m.Status = status
	m.Description = in.Description
	if err := s.DB.Save(&m).Error; err != nil {
		return nil, err
	}
	var count int64
	if err := s.DB.Model(&models.Convention{}).Where("mandate_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	return &MandateView{Mandate: m, DurationDays: wholeDays(m.StartDate, m.EndDate), ConventionCount: int(count)}, nil
}

// Delete is blocked while conventions reference the mandate.
func (s *MandateService) Delete(id uint) error {
	var m models.Mandate
	if err := s.DB.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "mandate"}
		}
		return err
	}
	var count int64
	if err := s.DB.Model(&models.Convention{}).Where("mandate_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Code: "referenced_by_conventions"}
	}
	return s.DB.Delete(&m).Error
}

func (s *MandateService) List() ([]MandateView, error) {
	var mandates []models.Mandate
	if err := s.DB.Order("id asc").Find(&mandates).Error; err != nil {
		return nil, err
	}
	views := make([]MandateView, 0, len(mandates))
	for _, m := range mandates {
		var count int64
		if err := s.DB.Model(&models.Convention{}).Where("mandate_id = ?", m.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		views = append(views, MandateView{Mandate: m, DurationDays: wholeDays(m.StartDate, m.EndDate), ConventionCount: int(count)})
	}
	return views, nil
}
