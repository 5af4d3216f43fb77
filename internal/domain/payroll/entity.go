package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Site - payroll unit; runs are keyed by site and period
type Site struct {
	ID        string
	CompanyID string
	Code      string
	Name      string
}

// RateCard - monthly rates owned by a skill
type RateCard struct {
	SkillID               string
	BasicMonthly          decimal.Decimal
	HRAMonthly            decimal.Decimal
	OtherAllowanceMonthly decimal.Decimal
}

// StatutoryProfile - banking and statutory fields read by the engine
type StatutoryProfile struct {
	PFApplicable          bool
	ESIApplicable         bool
	PFPercentageOverride  *decimal.Decimal
	ESIPercentageOverride *decimal.Decimal
	BankName              string
	BankAccountNumber     string
	IFSCCode              string
	UAN                   string
	PFNumber              string
	ESICode               string
}

// Employee as delivered by the employee directory.
// Skills are ordered by assignment; the first one carries the rate card.
type Employee struct {
	ID           string
	EmployeeCode string
	FullName     string
	SiteID       string
	Skills       []RateCard
	Statutory    StatutoryProfile
}

// AttendanceRecord - one per (employee, site, period)
type AttendanceRecord struct {
	EmployeeID   string
	SiteID       string
	PayrollMonth int
	PayrollYear  int
	PayableDays  decimal.Decimal
	OTHours      decimal.Decimal
	Incentive    decimal.Decimal
	Arrear       decimal.Decimal
}

// FlatDeduction - named fixed amount from the site's deduction config
type FlatDeduction struct {
	Name   string
	Amount decimal.Decimal
}

// FixedDeductions - per-employee flat deductions for a site and period
type FixedDeductions struct {
	LWF   decimal.Decimal
	Other []FlatDeduction
}

// Total returns LWF plus every other flat amount.
func (f FixedDeductions) Total() decimal.Decimal {
	total := f.LWF
	for _, d := range f.Other {
		total = total.Add(d.Amount)
	}
	return total
}

// SalarySettings - calculation policy for a single line
type SalarySettings struct {
	ApplyRounding bool
}

// RunSettings - policy flags stored with the run
type RunSettings struct {
	SkipExceptions bool `json:"skip_exceptions"`
	ApplyRounding  bool `json:"apply_rounding"`
}

// DefaultRunSettings rounds net pay and keeps exception lines visible.
func DefaultRunSettings() RunSettings {
	return RunSettings{SkipExceptions: false, ApplyRounding: true}
}

func (s RunSettings) Salary() SalarySettings {
	return SalarySettings{ApplyRounding: s.ApplyRounding}
}

// PayrollResult - computed line for one employee in a run
type PayrollResult struct {
	EmployeeID       string
	EmployeeCode     string
	EmployeeName     string
	PayableDays      decimal.Decimal
	OTHours          decimal.Decimal
	BasicEarned      decimal.Decimal
	HRAEarned        decimal.Decimal
	OtherEarned      decimal.Decimal
	OTAmount         decimal.Decimal
	Incentive        decimal.Decimal
	Arrear           decimal.Decimal
	GrossEarning     decimal.Decimal
	PFDeduction      decimal.Decimal
	ESIDeduction     decimal.Decimal
	FixedDeductions  decimal.Decimal
	TotalDeductions  decimal.Decimal
	NetPay           decimal.Decimal
	IsException      bool
	ExceptionReasons []string
}

// SkippedException - an exception line left out of results
type SkippedException struct {
	EmployeeID string
	Reasons    []string
}

// Classification - outcome of the exception detector
type Classification struct {
	IsException bool
	Reasons     []string
}

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft    RunStatus = "draft"
	RunStatusReviewed RunStatus = "reviewed"
	RunStatusApproved RunStatus = "approved"
	RunStatusLocked   RunStatus = "locked"
)

var runStatusOrder = map[RunStatus]int{
	RunStatusDraft:    0,
	RunStatusReviewed: 1,
	RunStatusApproved: 2,
	RunStatusLocked:   3,
}

// IsValid reports whether s is one of the four lifecycle states.
func (s RunStatus) IsValid() bool {
	_, ok := runStatusOrder[s]
	return ok
}

// Next returns the single legal successor; false for locked.
func (s RunStatus) Next() (RunStatus, bool) {
	switch s {
	case RunStatusDraft:
		return RunStatusReviewed, true
	case RunStatusReviewed:
		return RunStatusApproved, true
	case RunStatusApproved:
		return RunStatusLocked, true
	default:
		return "", false
	}
}

// Reached reports whether s is at or past target.
func (s RunStatus) Reached(target RunStatus) bool {
	return runStatusOrder[s] >= runStatusOrder[target]
}

// PayrollRun - immutable snapshot of one computation for a site and period
type PayrollRun struct {
	ID                string
	SiteID            string
	PayrollMonth      int
	PayrollYear       int
	Status            RunStatus
	Settings          RunSettings
	Results           []PayrollResult
	SkippedExceptions []SkippedException
	TotalEmployees    int
	TotalGross        decimal.Decimal
	TotalDeductions   decimal.Decimal
	TotalNetPay       decimal.Decimal
	ExceptionCount    int
	RunBy             string
	RunAt             time.Time
	ReviewedBy        *string
	ReviewedAt        *time.Time
	ApprovedBy        *string
	ApprovedAt        *time.Time
	LockedBy          *string
	LockedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RunKey - uniqueness key of an active run
type RunKey struct {
	SiteID       string
	PayrollMonth int
	PayrollYear  int
}

func (r PayrollRun) Key() RunKey {
	return RunKey{SiteID: r.SiteID, PayrollMonth: r.PayrollMonth, PayrollYear: r.PayrollYear}
}

// Actor - authenticated caller. SiteID is the home site for site-scoped roles.
type Actor struct {
	UserID string
	Role   string
	SiteID string
}

// Action - capability checked by the authorizer
type Action string

const (
	ActionRun     Action = "run"
	ActionReview  Action = "review"
	ActionApprove Action = "approve"
	ActionLock    Action = "lock"
	ActionDelete  Action = "delete"
	ActionRead    Action = "read"
)

// TransitionAction maps a target status to the capability needed to reach it.
func TransitionAction(target RunStatus) (Action, bool) {
	switch target {
	case RunStatusReviewed:
		return ActionReview, true
	case RunStatusApproved:
		return ActionApprove, true
	case RunStatusLocked:
		return ActionLock, true
	default:
		return "", false
	}
}

// RunSummary - counts returned alongside a freshly created run
type RunSummary struct {
	Processed  int
	Included   int
	Exceptions int
}
