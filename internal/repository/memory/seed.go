package memory

import (
	"fmt"
	"io"
	"os"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML fixture format accepted by LoadSeed.
// Amounts are strings so they parse exactly.
type Seed struct {
	Sites      []seedSite       `yaml:"sites"`
	Employees  []seedEmployee   `yaml:"employees"`
	Attendance []seedAttendance `yaml:"attendance"`
	Deductions []seedDeduction  `yaml:"deductions"`
}

type seedSite struct {
	ID        string `yaml:"id"`
	CompanyID string `yaml:"company_id"`
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
}

type seedSkill struct {
	SkillID               string `yaml:"skill_id"`
	BasicMonthly          string `yaml:"basic_monthly"`
	HRAMonthly            string `yaml:"hra_monthly"`
	OtherAllowanceMonthly string `yaml:"other_allowance_monthly"`
}

type seedStatutory struct {
	PFApplicable          bool    `yaml:"pf_applicable"`
	ESIApplicable         bool    `yaml:"esi_applicable"`
	PFPercentageOverride  *string `yaml:"pf_percentage_override"`
	ESIPercentageOverride *string `yaml:"esi_percentage_override"`
	BankName              string  `yaml:"bank_name"`
	BankAccountNumber     string  `yaml:"bank_account_number"`
	IFSCCode              string  `yaml:"ifsc_code"`
	UAN                   string  `yaml:"uan"`
	PFNumber              string  `yaml:"pf_number"`
	ESICode               string  `yaml:"esi_code"`
}

type seedEmployee struct {
	ID           string        `yaml:"id"`
	EmployeeCode string        `yaml:"employee_code"`
	FullName     string        `yaml:"full_name"`
	SiteID       string        `yaml:"site_id"`
	Skills       []seedSkill   `yaml:"skills"`
	Statutory    seedStatutory `yaml:"statutory"`
}

type seedAttendance struct {
	EmployeeID   string `yaml:"employee_id"`
	SiteID       string `yaml:"site_id"`
	PayrollMonth int    `yaml:"payroll_month"`
	PayrollYear  int    `yaml:"payroll_year"`
	PayableDays  string `yaml:"payable_days"`
	OTHours      string `yaml:"ot_hours"`
	Incentive    string `yaml:"incentive"`
	Arrear       string `yaml:"arrear"`
}

type seedFlat struct {
	Name   string `yaml:"name"`
	Amount string `yaml:"amount"`
}

type seedDeduction struct {
	SiteID       string     `yaml:"site_id"`
	PayrollMonth int        `yaml:"payroll_month"`
	PayrollYear  int        `yaml:"payroll_year"`
	LWF          string     `yaml:"lwf"`
	Other        []seedFlat `yaml:"other"`
}

// LoadSeedFile reads a YAML fixture from disk into the store.
func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}

// LoadSeed decodes a YAML fixture and writes it into the store.
// Nothing is written if any entry fails to parse.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode seed: %w", err)
	}

	employees := make([]payroll.Employee, 0, len(seed.Employees))
	for i, e := range seed.Employees {
		emp, err := e.toEmployee()
		if err != nil {
			return fmt.Errorf("employees[%d]: %w", i, err)
		}
		employees = append(employees, emp)
	}

	attendance := make([]payroll.AttendanceRecord, 0, len(seed.Attendance))
	for i, a := range seed.Attendance {
		rec, err := a.toRecord()
		if err != nil {
			return fmt.Errorf("attendance[%d]: %w", i, err)
		}
		attendance = append(attendance, rec)
	}

	deductions := make([]payroll.FixedDeductions, 0, len(seed.Deductions))
	for i, d := range seed.Deductions {
		fixed, err := d.toFixed()
		if err != nil {
			return fmt.Errorf("deductions[%d]: %w", i, err)
		}
		deductions = append(deductions, fixed)
	}

	for _, site := range seed.Sites {
		s.PutSite(payroll.Site{ID: site.ID, CompanyID: site.CompanyID, Code: site.Code, Name: site.Name})
	}
	for _, emp := range employees {
		s.PutEmployee(emp)
	}
	for _, rec := range attendance {
		s.PutAttendance(rec)
	}
	for i, d := range seed.Deductions {
		s.PutFixedDeductions(d.SiteID, d.PayrollMonth, d.PayrollYear, deductions[i])
	}
	return nil
}

func (e seedEmployee) toEmployee() (payroll.Employee, error) {
	emp := payroll.Employee{
		ID:           e.ID,
		EmployeeCode: e.EmployeeCode,
		FullName:     e.FullName,
		SiteID:       e.SiteID,
	}
	for j, sk := range e.Skills {
		basic, err := parseAmount(sk.BasicMonthly)
		if err != nil {
			return emp, fmt.Errorf("skills[%d].basic_monthly: %w", j, err)
		}
		hra, err := parseAmount(sk.HRAMonthly)
		if err != nil {
			return emp, fmt.Errorf("skills[%d].hra_monthly: %w", j, err)
		}
		other, err := parseAmount(sk.OtherAllowanceMonthly)
		if err != nil {
			return emp, fmt.Errorf("skills[%d].other_allowance_monthly: %w", j, err)
		}
		emp.Skills = append(emp.Skills, payroll.RateCard{
			SkillID:               sk.SkillID,
			BasicMonthly:          basic,
			HRAMonthly:            hra,
			OtherAllowanceMonthly: other,
		})
	}

	st := e.Statutory
	pfOverride, err := parseOptional(st.PFPercentageOverride)
	if err != nil {
		return emp, fmt.Errorf("statutory.pf_percentage_override: %w", err)
	}
	esiOverride, err := parseOptional(st.ESIPercentageOverride)
	if err != nil {
		return emp, fmt.Errorf("statutory.esi_percentage_override: %w", err)
	}
	emp.Statutory = payroll.StatutoryProfile{
		PFApplicable:          st.PFApplicable,
		ESIApplicable:         st.ESIApplicable,
		PFPercentageOverride:  pfOverride,
		ESIPercentageOverride: esiOverride,
		BankName:              st.BankName,
		BankAccountNumber:     st.BankAccountNumber,
		IFSCCode:              st.IFSCCode,
		UAN:                   st.UAN,
		PFNumber:              st.PFNumber,
		ESICode:               st.ESICode,
	}
	return emp, nil
}

func (a seedAttendance) toRecord() (payroll.AttendanceRecord, error) {
	rec := payroll.AttendanceRecord{
		EmployeeID:   a.EmployeeID,
		SiteID:       a.SiteID,
		PayrollMonth: a.PayrollMonth,
		PayrollYear:  a.PayrollYear,
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"payable_days", a.PayableDays, &rec.PayableDays},
		{"ot_hours", a.OTHours, &rec.OTHours},
		{"incentive", a.Incentive, &rec.Incentive},
		{"arrear", a.Arrear, &rec.Arrear},
	}
	for _, f := range fields {
		v, err := parseAmount(f.raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return rec, nil
}

func (d seedDeduction) toFixed() (payroll.FixedDeductions, error) {
	lwf, err := parseAmount(d.LWF)
	if err != nil {
		return payroll.FixedDeductions{}, fmt.Errorf("lwf: %w", err)
	}
	fixed := payroll.FixedDeductions{LWF: lwf}
	for j, o := range d.Other {
		amount, err := parseAmount(o.Amount)
		if err != nil {
			return payroll.FixedDeductions{}, fmt.Errorf("other[%d].amount: %w", j, err)
		}
		fixed.Other = append(fixed.Other, payroll.FlatDeduction{Name: o.Name, Amount: amount})
	}
	return fixed, nil
}

// parseAmount treats an empty string as zero.
func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func parseOptional(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
