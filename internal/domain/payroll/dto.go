package payroll

import (
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== RUN DTOs ==========

type RunSettingsRequest struct {
	SkipExceptions *bool `json:"skip_exceptions,omitempty"`
	ApplyRounding  *bool `json:"apply_rounding,omitempty"`
}

// ToSettings fills unset flags from DefaultRunSettings.
func (r *RunSettingsRequest) ToSettings() RunSettings {
	settings := DefaultRunSettings()
	if r == nil {
		return settings
	}
	if r.SkipExceptions != nil {
		settings.SkipExceptions = *r.SkipExceptions
	}
	if r.ApplyRounding != nil {
		settings.ApplyRounding = *r.ApplyRounding
	}
	return settings
}

type RunPayrollRequest struct {
	SiteID       string              `json:"site_id" validate:"required"`
	PayrollMonth int                 `json:"payroll_month" validate:"min=1,max=12"`
	PayrollYear  int                 `json:"payroll_year" validate:"min=2000,max=2100"`
	Settings     *RunSettingsRequest `json:"settings,omitempty"`
}

func (r *RunPayrollRequest) Validate() error {
	errs := validator.Struct(r)
	if _, reported := errs.ToMap()["site_id"]; !reported && validator.IsEmpty(r.SiteID) {
		errs = append(errs, validator.ValidationError{Field: "site_id", Message: "is required"})
	}
	return errs.OrNil()
}

type AdvanceStatusRequest struct {
	RunID  string `json:"-" validate:"required"`
	Status string `json:"status" validate:"required,oneof=draft reviewed approved locked"`
}

func (r *AdvanceStatusRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type ListRunsRequest struct {
	SiteID       string `json:"site_id"`
	PayrollMonth int    `json:"payroll_month" validate:"omitempty,min=1,max=12"`
	PayrollYear  int    `json:"payroll_year" validate:"omitempty,min=2000,max=2100"`
	Status       string `json:"status" validate:"omitempty,oneof=draft reviewed approved locked"`
}

func (r *ListRunsRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type PayrollResultResponse struct {
	EmployeeID       string          `json:"employee_id"`
	EmployeeCode     string          `json:"employee_code,omitempty"`
	EmployeeName     string          `json:"employee_name,omitempty"`
	PayableDays      decimal.Decimal `json:"payable_days"`
	OTHours          decimal.Decimal `json:"ot_hours"`
	BasicEarned      decimal.Decimal `json:"basic_earned"`
	HRAEarned        decimal.Decimal `json:"hra_earned"`
	OtherEarned      decimal.Decimal `json:"other_earned"`
	OTAmount         decimal.Decimal `json:"ot_amount"`
	Incentive        decimal.Decimal `json:"incentive"`
	Arrear           decimal.Decimal `json:"arrear"`
	GrossEarning     decimal.Decimal `json:"gross_earning"`
	PFDeduction      decimal.Decimal `json:"pf_deduction"`
	ESIDeduction     decimal.Decimal `json:"esi_deduction"`
	FixedDeductions  decimal.Decimal `json:"fixed_deductions"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	NetPay           decimal.Decimal `json:"net_pay"`
	IsException      bool            `json:"is_exception"`
	ExceptionReasons []string        `json:"exception_reasons,omitempty"`
}

type SkippedExceptionResponse struct {
	EmployeeID string   `json:"employee_id"`
	Reasons    []string `json:"reasons"`
}

type PayrollRunResponse struct {
	ID                string                     `json:"id"`
	SiteID            string                     `json:"site_id"`
	PayrollMonth      int                        `json:"payroll_month"`
	PayrollYear       int                        `json:"payroll_year"`
	Status            string                     `json:"status"`
	Settings          RunSettings                `json:"settings"`
	TotalEmployees    int                        `json:"total_employees"`
	TotalGross        decimal.Decimal            `json:"total_gross"`
	TotalDeductions   decimal.Decimal            `json:"total_deductions"`
	TotalNetPay       decimal.Decimal            `json:"total_net_pay"`
	ExceptionCount    int                        `json:"exception_count"`
	RunBy             string                     `json:"run_by"`
	RunAt             string                     `json:"run_at"`
	ReviewedBy        *string                    `json:"reviewed_by,omitempty"`
	ReviewedAt        *string                    `json:"reviewed_at,omitempty"`
	ApprovedBy        *string                    `json:"approved_by,omitempty"`
	ApprovedAt        *string                    `json:"approved_at,omitempty"`
	LockedBy          *string                    `json:"locked_by,omitempty"`
	LockedAt          *string                    `json:"locked_at,omitempty"`
	Results           []PayrollResultResponse    `json:"results,omitempty"`
	SkippedExceptions []SkippedExceptionResponse `json:"skipped_exceptions,omitempty"`
}

type RunSummaryResponse struct {
	Processed  int `json:"processed"`
	Included   int `json:"included"`
	Exceptions int `json:"exceptions"`
}

type RunPayrollResponse struct {
	Message string             `json:"message"`
	Summary RunSummaryResponse `json:"summary"`
	Run     PayrollRunResponse `json:"run"`
}

// ========== PREVIEW DTOs ==========

type PreviewLineRequest struct {
	BasicMonthly          decimal.Decimal  `json:"basic_monthly"`
	HRAMonthly            decimal.Decimal  `json:"hra_monthly"`
	OtherAllowanceMonthly decimal.Decimal  `json:"other_allowance_monthly"`
	PayableDays           decimal.Decimal  `json:"payable_days"`
	OTHours               decimal.Decimal  `json:"ot_hours"`
	Incentive             decimal.Decimal  `json:"incentive"`
	Arrear                decimal.Decimal  `json:"arrear"`
	PFApplicable          bool             `json:"pf_applicable"`
	ESIApplicable         bool             `json:"esi_applicable"`
	PFPercentageOverride  *decimal.Decimal `json:"pf_percentage_override,omitempty"`
	ESIPercentageOverride *decimal.Decimal `json:"esi_percentage_override,omitempty"`
	LWF                   decimal.Decimal  `json:"lwf"`
	OtherFlatDeductions   decimal.Decimal  `json:"other_flat_deductions"`
	ApplyRounding         *bool            `json:"apply_rounding,omitempty"`
}

func (r *PreviewLineRequest) Validate() error {
	var errs validator.ValidationErrors

	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"basic_monthly", r.BasicMonthly},
		{"hra_monthly", r.HRAMonthly},
		{"other_allowance_monthly", r.OtherAllowanceMonthly},
		{"payable_days", r.PayableDays},
		{"ot_hours", r.OTHours},
		{"incentive", r.Incentive},
		{"lwf", r.LWF},
		{"other_flat_deductions", r.OtherFlatDeductions},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: a.field, Message: "must be non-negative"})
		}
	}
	if r.PayableDays.GreaterThan(MaxPayableDays) {
		errs = append(errs, validator.ValidationError{Field: "payable_days", Message: "must be at most 31"})
	}
	errs = append(errs, validatePercentage("pf_percentage_override", r.PFPercentageOverride)...)
	errs = append(errs, validatePercentage("esi_percentage_override", r.ESIPercentageOverride)...)

	return errs.OrNil()
}

func validatePercentage(field string, pct *decimal.Decimal) validator.ValidationErrors {
	if pct == nil {
		return nil
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return validator.ValidationErrors{{Field: field, Message: "must be between 0 and 100"}}
	}
	return nil
}

// ToInputs converts the preview request into calculator inputs.
func (r *PreviewLineRequest) ToInputs() (AttendanceRecord, RateCard, StatutoryProfile, FixedDeductions, SalarySettings) {
	attendance := AttendanceRecord{
		PayableDays: r.PayableDays,
		OTHours:     r.OTHours,
		Incentive:   r.Incentive,
		Arrear:      r.Arrear,
	}
	rates := RateCard{
		BasicMonthly:          r.BasicMonthly,
		HRAMonthly:            r.HRAMonthly,
		OtherAllowanceMonthly: r.OtherAllowanceMonthly,
	}
	profile := StatutoryProfile{
		PFApplicable:          r.PFApplicable,
		ESIApplicable:         r.ESIApplicable,
		PFPercentageOverride:  r.PFPercentageOverride,
		ESIPercentageOverride: r.ESIPercentageOverride,
	}
	fixed := FixedDeductions{LWF: r.LWF}
	if !r.OtherFlatDeductions.IsZero() {
		fixed.Other = []FlatDeduction{{Name: "other", Amount: r.OtherFlatDeductions}}
	}
	settings := SalarySettings{ApplyRounding: true}
	if r.ApplyRounding != nil {
		settings.ApplyRounding = *r.ApplyRounding
	}
	return attendance, rates, profile, fixed, settings
}

// ========== ATTENDANCE BOUNDARY ==========

// MaxPayableDays bounds a single month of attendance.
var MaxPayableDays = decimal.NewFromInt(31)

// ValidateAttendance checks a provider record before it enters the engine.
// Zero or negative payable days are left to the exception detector.
func ValidateAttendance(rec AttendanceRecord, index int) validator.ValidationErrors {
	var errs validator.ValidationErrors
	prefix := "attendance[" + validator.Itoa(index) + "]"

	if validator.IsEmpty(rec.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: prefix + ".employee_id", Message: "is required"})
	}
	if rec.PayableDays.GreaterThan(MaxPayableDays) {
		errs = append(errs, validator.ValidationError{Field: prefix + ".payable_days", Message: "must be at most 31"})
	}
	if rec.OTHours.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: prefix + ".ot_hours", Message: "must be non-negative"})
	}
	if rec.Incentive.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: prefix + ".incentive", Message: "must be non-negative"})
	}
	return errs
}
