package services

import (
	"github.com/diewo77/gescon/internal/models"
	"github.com/shopspring/decimal"
)

// All percentage and amount arithmetic goes through decimals, with
// percentages rounded to 2 decimal places before summation, so float
// accumulation can never produce a false ceiling violation.

var hundred = decimal.NewFromInt(100)

func pct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// sumActivePercentages sums the rounded percentages of non-cancelled tranches.
func sumActivePercentages(payments []models.Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		if p.Status == models.PaymentCancelled {
			continue
		}
		sum = sum.Add(pct(p.Percentage))
	}
	return sum
}

// TrancheAmount derives a tranche amount from its convention total.
func TrancheAmount(total, percentage float64) float64 {
	return decimal.NewFromFloat(total).Mul(pct(percentage)).Div(hundred).Round(2).InexactFloat64()
}

// ConsumptionRate expresses consumed/initial as a percentage rounded to 2
// decimal places; 0 when the line has no funding yet.
func ConsumptionRate(consumed, initial float64) float64 {
	if initial <= 0 {
		return 0
	}
	return decimal.NewFromFloat(consumed).Div(decimal.NewFromFloat(initial)).Mul(hundred).Round(2).InexactFloat64()
}

// fillPaymentAmounts derives tranche amounts for serialization.
func fillPaymentAmounts(total float64, payments []models.Payment) {
	for i := range payments {
		payments[i].Amount = TrancheAmount(total, payments[i].Percentage)
	}
}
