package services

import (
	"math"
	"sort"
	"time"

	"github.com/diewo77/gescon/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportingService is the single read-side aggregator. Every number it emits
// is recomputed from the convention and payment ledgers on each call; it
// maintains no state of its own, so two calls over an unchanged snapshot
// return identical results.
type ReportingService struct{ DB *gorm.DB }

func NewReportingService(db *gorm.DB) *ReportingService { return &ReportingService{DB: db} }

type MandateShare struct {
	MandateID     uint    `json:"mandateId"`
	Name          string  `json:"name"`
	SettledAmount float64 `json:"settledAmount"`
}

type BudgetLineConsumption struct {
	ID              uint           `json:"id"`
	Code            string         `json:"code"`
	Label           string         `json:"label"`
	InitialAmount   float64        `json:"initialAmount"`
	ConsumedAmount  float64        `json:"consumedAmount"`
	RemainingAmount float64        `json:"remainingAmount"`
	ConsumptionRate float64        `json:"consumptionRate"`
	ByMandate       []MandateShare `json:"byMandate"`
}

type BudgetLineShare struct {
	BudgetLineID    uint    `json:"budgetLineId"`
	Label           string  `json:"label"`
	Amount          float64 `json:"amount"`
	ConventionCount int     `json:"conventionCount"`
}

type MandateBudgetSplit struct {
	MandateID       uint              `json:"mandateId"`
	Number          string            `json:"number"`
	Name            string            `json:"name"`
	CommittedTotal  float64           `json:"committedTotal"`
	ConventionCount int               `json:"conventionCount"`
	ByBudgetLine    []BudgetLineShare `json:"byBudgetLine"`
}

type OverdueConvention struct {
	ID          uint                    `json:"id"`
	Number      string                  `json:"number"`
	Objective   string                  `json:"objective"`
	EndDate     time.Time               `json:"endDate"`
	DaysOverdue int                     `json:"daysOverdue"`
	Partner     string                  `json:"partner"`
	TotalAmount float64                 `json:"totalAmount"`
	Status      models.ConventionStatus `json:"status"`
}

type MonthBucket struct {
	Month       string  `json:"month"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

type StatusCount struct {
	Status models.ConventionStatus `json:"status"`
	Count  int                     `json:"count"`
}

type Totals struct {
	Conventions        int     `json:"conventions"`
	Mandates           int     `json:"mandates"`
	Partners           int     `json:"partners"`
	BudgetInitial      float64 `json:"budgetInitial"`
	BudgetConsumed     float64 `json:"budgetConsumed"`
	BudgetRemaining    float64 `json:"budgetRemaining"`
	CommittedTotal     float64 `json:"committedTotal"`
	SettledTotal       float64 `json:"settledTotal"`
	OverdueConventions int     `json:"overdueConventions"`
}

type DashboardStats struct {
	Totals                Totals                  `json:"totals"`
	BudgetLineConsumption []BudgetLineConsumption `json:"budgetLineConsumption"`
	MandateBudgetSplit    []MandateBudgetSplit    `json:"mandateBudgetSplit"`
	OverdueConventions    []OverdueConvention     `json:"overdueConventions"`
	MonthlyEvolution      []MonthBucket           `json:"monthlyEvolution"`
	StatusBreakdown       []StatusCount           `json:"statusBreakdown"`
}

// settledAmount of one convention: sum of settled tranche amounts, derived
// from the convention total. Pending tranches never count.
func settledAmount(conv models.Convention) decimal.Decimal {
	sum := decimal.Zero
	total := decimal.NewFromFloat(conv.TotalAmount)
	for _, p := range conv.Payments {
		if !p.Status.CountsTowardConsumption() {
			continue
		}
		sum = sum.Add(total.Mul(pct(p.Percentage)).Div(hundred).Round(2))
	}
	return sum
}

// BudgetLineConsumption derives, per line, the amounts consumed by settled
// tranches across all conventions of the line, broken down per mandate.
func (s *ReportingService) BudgetLineConsumption() ([]BudgetLineConsumption, error) {
	var lines []models.BudgetLine
	if err := s.DB.Order("id asc").Find(&lines).Error; err != nil {
		return nil, err
	}
	var convs []models.Convention
	if err := s.DB.Preload("Payments").Preload("Mandate").Find(&convs).Error; err != nil {
		return nil, err
	}

	byLine := map[uint][]models.Convention{}
	for _, c := range convs {
		byLine[c.BudgetLineID] = append(byLine[c.BudgetLineID], c)
	}

	out := make([]BudgetLineConsumption, 0, len(lines))
	for _, line := range lines {
		consumed := decimal.Zero
		shares := map[uint]*MandateShare{}
		for _, c := range byLine[line.ID] {
			settled := settledAmount(c)
			consumed = consumed.Add(settled)
			sh, ok := shares[c.MandateID]
			if !ok {
				sh = &MandateShare{MandateID: c.MandateID, Name: c.Mandate.Name}
				shares[c.MandateID] = sh
			}
			sh.SettledAmount = decimal.NewFromFloat(sh.SettledAmount).Add(settled).InexactFloat64()
		}
		byMandate := make([]MandateShare, 0, len(shares))
		for _, sh := range shares {
			byMandate = append(byMandate, *sh)
		}
		sort.Slice(byMandate, func(i, j int) bool { return byMandate[i].MandateID < byMandate[j].MandateID })

		consumedF := consumed.InexactFloat64()
		remaining := decimal.NewFromFloat(line.InitialAmount).Sub(consumed).InexactFloat64()
		if remaining < 0 {
			// Over-commitment is allowed, but consumption never drives the
			// remaining amount negative.
			remaining = 0
		}
		out = append(out, BudgetLineConsumption{
			ID:              line.ID,
			Code:            line.Code,
			Label:           line.Label,
			InitialAmount:   line.InitialAmount,
			ConsumedAmount:  consumedF,
			RemainingAmount: remaining,
			ConsumptionRate: ConsumptionRate(consumedF, line.InitialAmount),
			ByMandate:       byMandate,
		})
	}
	return out, nil
}

// MandateBudgetSplit totals committed amounts per mandate with a per-line
// breakdown.
func (s *ReportingService) MandateBudgetSplit() ([]MandateBudgetSplit, error) {
	var mandates []models.Mandate
	if err := s.DB.Order("id asc").Find(&mandates).Error; err != nil {
		return nil, err
	}
	var convs []models.Convention
	if err := s.DB.Preload("BudgetLine").Find(&convs).Error; err != nil {
		return nil, err
	}

	byMandate := map[uint][]models.Convention{}
	for _, c := range convs {
		byMandate[c.MandateID] = append(byMandate[c.MandateID], c)
	}

	out := make([]MandateBudgetSplit, 0, len(mandates))
	for _, m := range mandates {
		committed := decimal.Zero
		shares := map[uint]*BudgetLineShare{}
		for _, c := range byMandate[m.ID] {
			committed = committed.Add(decimal.NewFromFloat(c.TotalAmount))
			sh, ok := shares[c.BudgetLineID]
			if !ok {
				sh = &BudgetLineShare{BudgetLineID: c.BudgetLineID, Label: c.BudgetLine.Label}
				shares[c.BudgetLineID] = sh
			}
			sh.Amount = decimal.NewFromFloat(sh.Amount).Add(decimal.NewFromFloat(c.TotalAmount)).InexactFloat64()
			sh.ConventionCount++
		}
		byLine := make([]BudgetLineShare, 0, len(shares))
		for _, sh := range shares {
			byLine = append(byLine, *sh)
		}
		sort.Slice(byLine, func(i, j int) bool { return byLine[i].BudgetLineID < byLine[j].BudgetLineID })
		out = append(out, MandateBudgetSplit{
			MandateID:       m.ID,
			Number:          m.Number,
			Name:            m.Name,
			CommittedTotal:  committed.InexactFloat64(),
			ConventionCount: len(byMandate[m.ID]),
			ByBudgetLine:    byLine,
		})
	}
	return out, nil
}

// OverdueConventions lists conventions past their end date that are neither
// completed nor terminated. asOf is explicit so callers and tests control
// the clock.
func (s *ReportingService) OverdueConventions(asOf time.Time) ([]OverdueConvention, error) {
	var convs []models.Convention
	if err := s.DB.Preload("Partner").Order("end_date asc").Find(&convs).Error; err != nil {
		return nil, err
	}
	out := []OverdueConvention{}
	for _, c := range convs {
		if !c.EndDate.Before(asOf) || c.Status.Closed() {
			continue
		}
		out = append(out, OverdueConvention{
			ID:          c.ID,
			Number:      c.Number,
			Objective:   c.Objective,
			EndDate:     c.EndDate,
			DaysOverdue: int(math.Ceil(asOf.Sub(c.EndDate).Hours() / 24)),
			Partner:     c.Partner.Name,
			TotalAmount: c.TotalAmount,
			Status:      c.Status,
		})
	}
	return out, nil
}

// MonthlyEvolution buckets conventions by creation year-month, ascending,
// capped to the most recent 12 buckets.
func (s *ReportingService) MonthlyEvolution() ([]MonthBucket, error) {
	var convs []models.Convention
	if err := s.DB.Find(&convs).Error; err != nil {
		return nil, err
	}
	byMonth := map[string]*MonthBucket{}
	for _, c := range convs {
		key := c.CreatedAt.Format("2006-01")
		b, ok := byMonth[key]
		if !ok {
			b = &MonthBucket{Month: key}
			byMonth[key] = b
		}
		b.Count++
		b.TotalAmount = decimal.NewFromFloat(b.TotalAmount).Add(decimal.NewFromFloat(c.TotalAmount)).InexactFloat64()
	}
	out := make([]MonthBucket, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	if len(out) > 12 {
		out = out[len(out)-12:]
	}
	return out, nil
}

// StatusBreakdown counts conventions per status, including zero counts so
// chart rendering stays stable.
func (s *ReportingService) StatusBreakdown() ([]StatusCount, error) {
	var convs []models.Convention
	if err := s.DB.Find(&convs).Error; err != nil {
		return nil, err
	}
	counts := map[models.ConventionStatus]int{}
	for _, c := range convs {
		counts[c.Status]++
	}
	out := make([]StatusCount, 0, len(models.AllConventionStatuses))
	for _, st := range models.AllConventionStatuses {
		out = append(out, StatusCount{Status: st, Count: counts[st]})
	}
	return out, nil
}

// Dashboard assembles every aggregate in one payload.
func (s *ReportingService) Dashboard(asOf time.Time) (*DashboardStats, error) {
	consumption, err := s.BudgetLineConsumption()
	if err != nil {
		return nil, err
	}
	split, err := s.MandateBudgetSplit()
	if err != nil {
		return nil, err
	}
	overdue, err := s.OverdueConventions(asOf)
	if err != nil {
		return nil, err
	}
	evolution, err := s.MonthlyEvolution()
	if err != nil {
		return nil, err
	}
	breakdown, err := s.StatusBreakdown()
	if err != nil {
		return nil, err
	}

	totals := Totals{OverdueConventions: len(overdue)}
	initial, consumed, remaining := decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range consumption {
		initial = initial.Add(decimal.NewFromFloat(line.InitialAmount))
		consumed = consumed.Add(decimal.NewFromFloat(line.ConsumedAmount))
		remaining = remaining.Add(decimal.NewFromFloat(line.RemainingAmount))
	}
	totals.BudgetInitial = initial.InexactFloat64()
	totals.BudgetConsumed = consumed.InexactFloat64()
	totals.BudgetRemaining = remaining.InexactFloat64()
	totals.SettledTotal = totals.BudgetConsumed

	committed := decimal.Zero
	for _, m := range split {
		committed = committed.Add(decimal.NewFromFloat(m.CommittedTotal))
		totals.Conventions += m.ConventionCount
	}
	totals.CommittedTotal = committed.InexactFloat64()
	totals.Mandates = len(split)

	var partnerCount int64
	if err := s.DB.Model(&models.Partner{}).Count(&partnerCount).Error; err != nil {
		return nil, err
	}
	totals.Partners = int(partnerCount)

	return &DashboardStats{
		Totals:                totals,
		BudgetLineConsumption: consumption,
		MandateBudgetSplit:    split,
		OverdueConventions:    overdue,
		MonthlyEvolution:      evolution,
		StatusBreakdown:       breakdown,
	}, nil
}
