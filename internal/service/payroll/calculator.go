package payroll

import (
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var (
	StandardWorkingDays = decimal.NewFromInt(26)
	StandardShiftHours  = decimal.NewFromInt(8)
	OvertimeMultiplier  = decimal.NewFromInt(2)
)

// Calculator turns one attendance record into one payroll line.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	Rules DeductionRules
}

func NewCalculator(rules DeductionRules) Calculator {
	return Calculator{Rules: rules}
}

// Compute applies the earnings and deduction pipeline. Every monetary stage is
// rounded on its own; net pay is re-rounded only when settings ask for it.
func (c Calculator) Compute(
	att payroll.AttendanceRecord,
	rates payroll.RateCard,
	profile payroll.StatutoryProfile,
	fixed payroll.FixedDeductions,
	settings payroll.SalarySettings,
) payroll.PayrollResult {
	days := att.PayableDays
	if days.IsNegative() {
		days = decimal.Zero
	}

	basicEarned := prorate(rates.BasicMonthly, days)
	hraEarned := prorate(rates.HRAMonthly, days)
	otherEarned := prorate(rates.OtherAllowanceMonthly, days)
	otAmount := overtime(rates.BasicMonthly, att.OTHours)

	gross := basicEarned.
		Add(hraEarned).
		Add(otherEarned).
		Add(otAmount).
		Add(att.Incentive).
		Add(att.Arrear)

	pf := c.Rules.PF(basicEarned, profile)
	esi := c.Rules.ESI(gross, profile)
	fixedTotal := c.Rules.Fixed(fixed)
	totalDeductions := pf.Add(esi).Add(fixedTotal)

	net := gross.Sub(totalDeductions)
	if settings.ApplyRounding {
		net = roundMoney(net)
	}

	return payroll.PayrollResult{
		EmployeeID:      att.EmployeeID,
		PayableDays:     att.PayableDays,
		OTHours:         att.OTHours,
		BasicEarned:     basicEarned,
		HRAEarned:       hraEarned,
		OtherEarned:     otherEarned,
		OTAmount:        otAmount,
		Incentive:       att.Incentive,
		Arrear:          att.Arrear,
		GrossEarning:    gross,
		PFDeduction:     pf,
		ESIDeduction:    esi,
		FixedDeductions: fixedTotal,
		TotalDeductions: totalDeductions,
		NetPay:          net,
	}
}

// prorate is monthly / 26 * days. Multiplying first keeps the quotient exact
// wherever the true value is, so half-unit ties round the same way a spreadsheet does.
func prorate(monthly, days decimal.Decimal) decimal.Decimal {
	return roundMoney(monthly.Mul(days).Div(StandardWorkingDays))
}

// overtime is monthly basic / 26 / 8 * 2 * hours.
func overtime(basicMonthly, hours decimal.Decimal) decimal.Decimal {
	hourly := StandardWorkingDays.Mul(StandardShiftHours)
	return roundMoney(basicMonthly.Mul(OvertimeMultiplier).Mul(hours).Div(hourly))
}
