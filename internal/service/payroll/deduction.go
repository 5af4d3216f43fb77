package payroll

import (
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var (
	DefaultPFRate     = decimal.RequireFromString("0.12")
	DefaultESIRate    = decimal.RequireFromString("0.0075")
	DefaultESICeiling = decimal.NewFromInt(21000)

	hundred = decimal.NewFromInt(100)
)

// DeductionRules computes statutory deductions. All methods are pure.
type DeductionRules struct {
	PFRate     decimal.Decimal
	ESIRate    decimal.Decimal
	ESICeiling decimal.Decimal
}

func DefaultDeductionRules() DeductionRules {
	return DeductionRules{
		PFRate:     DefaultPFRate,
		ESIRate:    DefaultESIRate,
		ESICeiling: DefaultESICeiling,
	}
}

// PF is charged on basic earned only.
func (r DeductionRules) PF(basicEarned decimal.Decimal, profile payroll.StatutoryProfile) decimal.Decimal {
	if !profile.PFApplicable {
		return decimal.Zero
	}
	if profile.PFPercentageOverride != nil {
		return roundMoney(basicEarned.Mul(*profile.PFPercentageOverride).Div(hundred))
	}
	return roundMoney(basicEarned.Mul(r.PFRate))
}

// ESI is charged on full gross, only while gross is strictly below the ceiling.
func (r DeductionRules) ESI(gross decimal.Decimal, profile payroll.StatutoryProfile) decimal.Decimal {
	if !profile.ESIApplicable || !gross.LessThan(r.ESICeiling) {
		return decimal.Zero
	}
	if profile.ESIPercentageOverride != nil {
		return roundMoney(gross.Mul(*profile.ESIPercentageOverride).Div(hundred))
	}
	return roundMoney(gross.Mul(r.ESIRate))
}

// Fixed sums LWF and the site's other flat amounts.
func (r DeductionRules) Fixed(fixed payroll.FixedDeductions) decimal.Decimal {
	return roundMoney(fixed.Total())
}

// roundMoney rounds to whole currency units, half away from zero.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
