package services

import (
	"errors"

	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/validation"
	"gorm.io/gorm"
)

type PartnerService struct{ DB *gorm.DB }

func NewPartnerService(db *gorm.DB) *PartnerService { return &PartnerService{DB: db} }

type PartnerInput struct {
	Name                string
	LegalStatus         string
	LegalRepresentative string
	Address             string
	Email               string
	Phone               string
	Fax                 string
	Notes               string
}

func validatePartner(in PartnerInput) validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.Email("email", in.Email, v)
	return v
}

func (s *PartnerService) Create(in PartnerInput) (*models.Partner, error) {
	if v := validatePartner(in); !v.Empty() {
		return nil, NewValidationError(v)
	}
	p := models.Partner{
		Name:                in.Name,
		LegalStatus:         in.LegalStatus,
		LegalRepresentative: in.LegalRepresentative,
		Address:             in.Address,
		Email:               in.Email,
		Phone:               in.Phone,
		Fax:                 in.Fax,
		Notes:               in.Notes,
	}
	if err := s.DB.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PartnerService) Update(id uint, in PartnerInput) (*models.Partner, error) {
	var p models.Partner
	if err := s.DB.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "partner"}
		}
		return nil, err
	}
	if v := validatePartner(in); !v.Empty() {
		return nil, NewValidationError(v)
	}
	p.Name = in.Name
	p.LegalStatus = in.LegalStatus
	p.LegalRepresentative = in.LegalRepresentative
	p.Address = in.Address
	p.Email = in.Email
	p.Phone = in.Phone
	p.Fax = in.Fax
	p.Notes = in.Notes
	if err := s.DB.Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete is blocked while conventions reference the partner.
func (s *PartnerService) Delete(id uint) error {
	var p models.Partner
	if err := s.DB.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "partner"}
		}
		return err
	}
	var count int64
	if err := s.DB.Model(&models.Convention{}).Where("partner_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Code: "referenced_by_conventions"}
	}
	return s.DB.Delete(&p).Error
}

func (s *PartnerService) List() ([]models.Partner, error) {
	var partners []models.Partner
	if err := s.DB.Order("name asc").Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}
