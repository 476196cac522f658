package services

import (
	"errors"
	"time"

	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/validation"
	"gorm.io/gorm"
)

type PaymentService struct {
	DB    *gorm.DB
	Locks *ConventionLocks
}

func NewPaymentService(db *gorm.DB, locks *ConventionLocks) *PaymentService {
	return &PaymentService{DB: db, Locks: locks}
}

type AddPaymentInput struct {
	ConventionID  uint
	Percentage    float64
	ScheduledDate *time.Time
	SettledDate   *time.Time
	Status        models.PaymentStatus
	Note          string
}

// Add appends a tranche to a convention. The whole tranche is rejected when
// it would push the non-cancelled sum past 100%; it is never truncated to
// fit. Runs under the convention's lock so two concurrent adds cannot both
// pass the ceiling check.
func (s *PaymentService) Add(in AddPaymentInput) (*models.Payment, error) {
	v := validation.Violations{}
	if in.ConventionID == 0 {
		v["conventionId"] = "required"
	}
	if in.Percentage <= 0 || in.Percentage > 100 {
		v["percentage"] = "out_of_range"
	}
	status := in.Status
	if status == "" {
		status = models.PaymentPending
	}
	if !status.Valid() {
		v["status"] = "unknown_status"
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	unlock := s.Locks.Lock(in.ConventionID)
	defer unlock()

	var payment models.Payment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var conv models.Convention
		if err := tx.First(&conv, in.ConventionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "convention"}
			}
			return err
		}
		var existing []models.Payment
		if err := tx.Where("convention_id = ?", conv.ID).Find(&existing).Error; err != nil {
			return err
		}
		settled := sumActivePercentages(existing)
		if settled.GreaterThanOrEqual(hundred) {
			return ErrNoRemainingBalance
		}
		if settled.Add(pct(in.Percentage)).GreaterThan(hundred) {
			return NewValidationError(validation.Violations{"percentage": "exceeds_remaining_balance"})
		}
		payment = models.Payment{
			ConventionID:  conv.ID,
			Percentage:    in.Percentage,
			ScheduledDate: in.ScheduledDate,
			SettledDate:   in.SettledDate,
			Status:        status,
			Note:          in.Note,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		payment.Amount = TrancheAmount(conv.TotalAmount, payment.Percentage)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByConvention returns tranches in insertion order. Scheduled and settled
// dates may be null or revised later, so they are no basis for ordering.
func (s *PaymentService) ListByConvention(conventionID uint) ([]models.Payment, error) {
	var conv models.Convention
	if err := s.DB.First(&conv, conventionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "convention"}
		}
		return nil, err
	}
	var payments []models.Payment
	if err := s.DB.Where("convention_id = ?", conventionID).Order("id asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	fillPaymentAmounts(conv.TotalAmount, payments)
	return payments, nil
}

// Cancel marks a tranche cancelled, freeing its percentage for later
// tranches.
func (s *PaymentService) Cancel(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.DB.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "payment"}
		}
		return nil, err
	}
	unlock := s.Locks.Lock(payment.ConventionID)
	defer unlock()

	if payment.Status != models.PaymentCancelled {
		if err := s.DB.Model(&payment).Update("status", models.PaymentCancelled).Error; err != nil {
			return nil, err
		}
		payment.Status = models.PaymentCancelled
	}
	var conv models.Convention
	if err := s.DB.First(&conv, payment.ConventionID).Error; err == nil {
		payment.Amount = TrancheAmount(conv.TotalAmount, payment.Percentage)
	}
	return &payment, nil
}
