package services

import (
	"errors"
	"math"
	"time"

	"github.com/diewo77/gescon/internal/models"
	"github.com/diewo77/gescon/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ConventionService owns the commitment records and their wholesale payment
// replacement. Tranche-by-tranche additions live in PaymentService; both
// share the per-convention locks.
type ConventionService struct {
	DB    *gorm.DB
	Locks *ConventionLocks
}

func NewConventionService(db *gorm.DB, locks *ConventionLocks) *ConventionService {
	return &ConventionService{DB: db, Locks: locks}
}

type CreateConventionInput struct {
	Number       string
	BudgetLineID uint
	MandateID    uint
	PartnerID    uint
	Objective    string
	Description  string
	StartDate    time.Time
	EndDate      time.Time
	TotalAmount  float64
	Status       models.ConventionStatus
}

type UpdateConventionInput struct {
	Number       *string
	BudgetLineID *uint
	MandateID    *uint
	PartnerID    *uint
	Objective    *string
	Description  *string
	StartDate    *time.Time
	EndDate      *time.Time
	TotalAmount  *float64
	Status       *models.ConventionStatus
	// Payments, when non-nil, replaces the whole tranche set atomically.
	Payments *[]PaymentInput
}

type PaymentInput struct {
	Percentage    float64
	ScheduledDate *time.Time
	SettledDate   *time.Time
	Status        models.PaymentStatus
	Note          string
}

// ConventionView is a convention with its derived balance fields.
type ConventionView struct {
	models.Convention
	SettledPercentage float64 `json:"settledPercentage"`
	BalancePercentage float64 `json:"balancePercentage"`
	SettledAmount     float64 `json:"settledAmount"`
}

type ConventionBalance struct {
	ConventionID      uint    `json:"conventionId"`
	SettledPercentage float64 `json:"settledPercentage"`
	BalancePercentage float64 `json:"balancePercentage"`
	SettledAmount     float64 `json:"settledAmount"`
	RemainingAmount   float64 `json:"remainingAmount"`
}

func wholeDays(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

func truncateDescription(s string) string {
	if len(s) > models.DescriptionMaxLen {
		return s[:models.DescriptionMaxLen]
	}
	return s
}

func (s *ConventionService) Create(in CreateConventionInput) (*models.Convention, error) {
	v := validation.Violations{}
	validation.Required("number", in.Number, v)
	validation.Required("objective", in.Objective, v)
	validation.PositiveFloat("totalAmount", in.TotalAmount, v)
	validation.DateOrder("startDate", "endDate", in.StartDate, in.EndDate, v)
	if in.BudgetLineID == 0 {
		v["budgetLineId"] = "required"
	}
	if in.MandateID == 0 {
		v["mandateId"] = "required"
	}
	if in.PartnerID == 0 {
		v["partnerId"] = "required"
	}
	status := in.Status
	if status == "" {
		status = models.ConventionDraft
	}
	if !status.Valid() {
		v["status"] = "unknown_status"
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	// Referential existence before insert.
	if err := s.requireExists(&models.BudgetLine{}, in.BudgetLineID, "budget_line"); err != nil {
		return nil, err
	}
	if err := s.requireExists(&models.Mandate{}, in.MandateID, "mandate"); err != nil {
		return nil, err
	}
	if err := s.requireExists(&models.Partner{}, in.PartnerID, "partner"); err != nil {
		return nil, err
	}

	// Number uniqueness is a global, case-sensitive exact match.
	taken, err := s.numberTaken(in.Number, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &ConflictError{Code: "duplicate_number"}
	}

	conv := models.Convention{
		Number:       in.Number,
		BudgetLineID: in.BudgetLineID,
		MandateID:    in.MandateID,
		PartnerID:    in.PartnerID,
		Objective:    in.Objective,
		Description:  truncateDescription(in.Description),
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		DurationDays: wholeDays(in.StartDate, in.EndDate),
		TotalAmount:  in.TotalAmount,
		Status:       status,
	}
	if err := s.DB.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// Update applies only the supplied fields. When a payment list is supplied it
// replaces all tranches in the same transaction, after re-validating the 100%
// ceiling over the whole new set.
func (s *ConventionService) Update(id uint, in UpdateConventionInput) (*ConventionView, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	var conv models.Convention
	if err := s.DB.First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "convention"}
		}
		return nil, err
	}

	v := validation.Violations{}
	if in.Number != nil {
		validation.Required("number", *in.Number, v)
	}
	if in.Objective != nil {
		validation.Required("objective", *in.Objective, v)
	}
	if in.TotalAmount != nil {
		validation.PositiveFloat("totalAmount", *in.TotalAmount, v)
	}
	start, end := conv.StartDate, conv.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if in.StartDate != nil || in.EndDate != nil {
		validation.DateOrder("startDate", "endDate", start, end, v)
	}
	if in.Status != nil && !in.Status.Valid() {
		v["status"] = "unknown_status"
	}
	var newSet []models.Payment
	if in.Payments != nil {
		var err error
		newSet, err = buildTrancheSet(*in.Payments, v)
		if err != nil {
			return nil, err
		}
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	if in.BudgetLineID != nil && *in.BudgetLineID != conv.BudgetLineID {
		if err := s.requireExists(&models.BudgetLine{}, *in.BudgetLineID, "budget_line"); err != nil {
			return nil, err
		}
		conv.BudgetLineID = *in.BudgetLineID
	}
	if in.MandateID != nil && *in.MandateID != conv.MandateID {
		if err := s.requireExists(&models.Mandate{}, *in.MandateID, "mandate"); err != nil {
			return nil, err
		}
		conv.MandateID = *in.MandateID
	}
	if in.PartnerID != nil && *in.PartnerID != conv.PartnerID {
		if err := s.requireExists(&models.Partner{}, *in.PartnerID, "partner"); err != nil {
			return nil, err
		}
		conv.PartnerID = *in.PartnerID
	}
	if in.Number != nil && *in.Number != conv.Number {
		taken, err := s.numberTaken(*in.Number, conv.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, &ConflictError{Code: "duplicate_number"}
		}
		conv.Number = *in.Number
	}
	if in.Objective != nil {
		conv.Objective = *in.Objective
	}
	if in.Description != nil {
		conv.Description = truncateDescription(*in.Description)
	}
	if in.TotalAmount != nil {
		conv.TotalAmount = *in.TotalAmount
	}
	if in.Status != nil {
		conv.Status = *in.Status
	}
	conv.StartDate, conv.EndDate = start, end
	conv.DurationDays = wholeDays(start, end)

	// All-or-nothing: field changes and tranche replacement commit together.
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&conv).Error; err != nil {
			return err
		}
		if in.Payments == nil {
			return nil
		}
		if err := tx.Where("convention_id = ?", conv.ID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		for i := range newSet {
			newSet[i].ConventionID = conv.ID
			if err := tx.Create(&newSet[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(conv.ID)
}

// Delete removes the convention and cascades to its tranches.
func (s *ConventionService) Delete(id uint) error {
	var conv models.Convention
	if err := s.DB.First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "convention"}
		}
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("convention_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conv).Error
	})
}

// List returns every convention with its derived balance fields, newest first.
func (s *ConventionService) List() ([]ConventionView, error) {
	var convs []models.Convention
	err := s.DB.Preload("BudgetLine").Preload("Mandate").Preload("Partner").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payments.id asc") }).
		Order("id desc").Find(&convs).Error
	if err != nil {
		return nil, err
	}
	views := make([]ConventionView, 0, len(convs))
	for i := range convs {
		views = append(views, newConventionView(convs[i]))
	}
	return views, nil
}

func (s *ConventionService) Get(id uint) (*ConventionView, error) {
	var conv models.Convention
	err := s.DB.Preload("BudgetLine").Preload("Mandate").Preload("Partner").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payments.id asc") }).
		First(&conv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "convention"}
		}
		return nil, err
	}
	view := newConventionView(conv)
	return &view, nil
}

// Balance derives the settlement state of one convention. The settled and
// remaining amounts always sum to the total exactly.
func (s *ConventionService) Balance(id uint) (*ConventionBalance, error) {
	var conv models.Convention
	err := s.DB.Preload("Payments").First(&conv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "convention"}
		}
		return nil, err
	}
	settledPct := sumActivePercentages(conv.Payments)
	total := decimal.NewFromFloat(conv.TotalAmount)
	settled := total.Mul(settledPct).Div(hundred).Round(2)
	return &ConventionBalance{
		ConventionID:      conv.ID,
		SettledPercentage: settledPct.InexactFloat64(),
		BalancePercentage: hundred.Sub(settledPct).InexactFloat64(),
		SettledAmount:     settled.InexactFloat64(),
		RemainingAmount:   total.Sub(settled).InexactFloat64(),
	}, nil
}

func newConventionView(conv models.Convention) ConventionView {
	settledPct := sumActivePercentages(conv.Payments)
	fillPaymentAmounts(conv.TotalAmount, conv.Payments)
	return ConventionView{
		Convention:        conv,
		SettledPercentage: settledPct.InexactFloat64(),
		BalancePercentage: hundred.Sub(settledPct).InexactFloat64(),
		SettledAmount:     decimal.NewFromFloat(conv.TotalAmount).Mul(settledPct).Div(hundred).Round(2).InexactFloat64(),
	}
}

// buildTrancheSet validates a replacement batch as a whole: each tranche in
// range, the non-cancelled sum within the ceiling. Row-by-row acceptance is
// deliberately not offered.
func buildTrancheSet(inputs []PaymentInput, v validation.Violations) ([]models.Payment, error) {
	set := make([]models.Payment, 0, len(inputs))
	sum := decimal.Zero
	for _, in := range inputs {
		if in.Percentage <= 0 || in.Percentage > 100 {
			v["payments"] = "percentage_out_of_range"
			return nil, nil
		}
		status := in.Status
		if status == "" {
			status = models.PaymentPending
		}
		if !status.Valid() {
			v["payments"] = "unknown_status"
			return nil, nil
		}
		if status != models.PaymentCancelled {
			sum = sum.Add(pct(in.Percentage))
		}
		set = append(set, models.Payment{
			Percentage:    in.Percentage,
			ScheduledDate: in.ScheduledDate,
			SettledDate:   in.SettledDate,
			Status:        status,
			Note:          in.Note,
		})
	}
	if sum.GreaterThan(hundred) {
		v["payments"] = "percentage_ceiling_exceeded"
		return nil, nil
	}
	return set, nil
}

func (s *ConventionService) requireExists(model any, id uint, resource string) error {
	var count int64
	if err := s.DB.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return &NotFoundError{Resource: resource}
	}
	return nil
}

func (s *ConventionService) numberTaken(number string, excludeID uint) (bool, error) {
	var count int64
	q := s.DB.Model(&models.Convention{}).Where("number = ?", number)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
