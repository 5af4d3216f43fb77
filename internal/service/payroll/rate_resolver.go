package payroll

import (
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// RateResolver picks the rate card in effect for an employee.
type RateResolver struct{}

// Resolve returns the first assigned skill's rates, or an all-zero card when the
// employee has no skill. The zero card yields a zero-pay line rather than an error.
func (RateResolver) Resolve(emp payroll.Employee) payroll.RateCard {
	if len(emp.Skills) == 0 {
		return payroll.RateCard{
			BasicMonthly:          decimal.Zero,
			HRAMonthly:            decimal.Zero,
			OtherAllowanceMonthly: decimal.Zero,
		}
	}
	return emp.Skills[0]
}
