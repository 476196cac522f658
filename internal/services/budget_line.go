package services

import (
	"errors"

	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/validation"
	"gorm.io/gorm"
)

type BudgetLineService struct{ DB *gorm.DB }

func NewBudgetLineService(db *gorm.DB) *BudgetLineService { return &BudgetLineService{DB: db} }

type BudgetLineInput struct {
	Code          string
	Label         string
	Description   string
	InitialAmount *float64
}

// Create registers a new budget line. The initial amount may be omitted (a
// line can be created before its funding is known) but a supplied amount must
// be positive.
func (s *BudgetLineService) Create(in BudgetLineInput) (*models.BudgetLine, error) {
	v := validation.Violations{}
	validation.Required("code", in.Code, v)
	validation.Required("label", in.Label, v)
	amount := 0.0
	if in.InitialAmount != nil {
		validation.PositiveFloat("initialAmount", *in.InitialAmount, v)
		amount = *in.InitialAmount
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	var count int64
	if err := s.DB.Model(&models.BudgetLine{}).Where("code = ?", in.Code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &ConflictError{Code: "duplicate_code"}
	}

	line := models.BudgetLine{Code: in.Code, Label: in.Label, Description: in.Description, InitialAmount: amount}
	if err := s.DB.Create(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// Delete removes a budget line unless conventions still charge against it.
func (s *BudgetLineService) Delete(id uint) error {
	var line models.BudgetLine
	if err := s.DB.First(&line, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "budget_line"}
		}
		return err
	}
	var count int64
	if err := s.DB.Model(&models.Convention{}).Where("budget_line_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Code: "referenced_by_conventions"}
	}
	return s.DB.Delete(&line).Error
}
