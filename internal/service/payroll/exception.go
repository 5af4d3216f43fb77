package payroll

import (
	"strings"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
)

const (
	ReasonMissingBankName    = "missing bank name"
	ReasonMissingBankAccount = "missing bank account number"
	ReasonMissingIFSC        = "missing IFSC code"
	ReasonMissingPFNumber    = "PF applicable but UAN and PF number are missing"
	ReasonMissingESICode     = "ESI applicable but ESI code is missing"
	ReasonNoPayableDays      = "no payable days"
)

// ExceptionDetector flags lines that should not be paid without review.
type ExceptionDetector struct{}

func (ExceptionDetector) Classify(emp payroll.Employee, att payroll.AttendanceRecord) payroll.Classification {
	var reasons []string
	p := emp.Statutory

	if blank(p.BankName) {
		reasons = append(reasons, ReasonMissingBankName)
	}
	if blank(p.BankAccountNumber) {
		reasons = append(reasons, ReasonMissingBankAccount)
	}
	if blank(p.IFSCCode) {
		reasons = append(reasons, ReasonMissingIFSC)
	}
	if p.PFApplicable && blank(p.UAN) && blank(p.PFNumber) {
		reasons = append(reasons, ReasonMissingPFNumber)
	}
	if p.ESIApplicable && blank(p.ESICode) {
		reasons = append(reasons, ReasonMissingESICode)
	}
	if !att.PayableDays.IsPositive() {
		reasons = append(reasons, ReasonNoPayableDays)
	}

	return payroll.Classification{IsException: len(reasons) > 0, Reasons: reasons}
}

// Include reports whether a classified line belongs in the run's results.
// Exception lines are dropped only when the run skips exceptions; they are
// counted either way.
func (ExceptionDetector) Include(c payroll.Classification, settings payroll.RunSettings) bool {
	return !c.IsException || !settings.SkipExceptions
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
