package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
)

type periodKey struct {
	siteID string
	month  int
	year   int
}

// Store keeps every payroll collaborator in process memory. Runs are copied on
// the way in and out so callers never share slices with the store.
type Store struct {
	mu sync.RWMutex

	sites      map[string]payroll.Site
	employees  map[string]payroll.Employee
	attendance map[periodKey][]payroll.AttendanceRecord
	deductions map[periodKey]payroll.FixedDeductions

	runs   map[string]payroll.PayrollRun
	active map[payroll.RunKey]string

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		sites:      make(map[string]payroll.Site),
		employees:  make(map[string]payroll.Employee),
		attendance: make(map[periodKey][]payroll.AttendanceRecord),
		deductions: make(map[periodKey]payroll.FixedDeductions),
		runs:       make(map[string]payroll.PayrollRun),
		active:     make(map[payroll.RunKey]string),
		now:        time.Now,
	}
}

// ========== FIXTURE WRITERS ==========

func (s *Store) PutSite(site payroll.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site
}

func (s *Store) PutEmployee(emp payroll.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emp.Skills = slices.Clone(emp.Skills)
	s.employees[emp.ID] = emp
}

func (s *Store) PutAttendance(rec payroll.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := periodKey{rec.SiteID, rec.PayrollMonth, rec.PayrollYear}
	s.attendance[k] = append(s.attendance[k], rec)
}

// PutFixedDeductions sets a site's flat deductions. Month and year zero apply to every period.
func (s *Store) PutFixedDeductions(siteID string, month, year int, fixed payroll.FixedDeductions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fixed.Other = slices.Clone(fixed.Other)
	s.deductions[periodKey{siteID, month, year}] = fixed
}

// ========== DIRECTORIES ==========

func (s *Store) GetSite(ctx context.Context, siteID string) (payroll.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[strings.TrimSpace(siteID)]
	if !ok {
		return payroll.Site{}, payroll.ErrSiteNotFound
	}
	return site, nil
}

func (s *Store) ListAttendance(ctx context.Context, siteID string, month, year int) ([]payroll.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := slices.Clone(s.attendance[periodKey{siteID, month, year}])
	slices.SortStableFunc(records, func(a, b payroll.AttendanceRecord) int {
		return strings.Compare(a.EmployeeID, b.EmployeeID)
	})
	return records, nil
}

func (s *Store) ListEmployees(ctx context.Context, ids []string) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	employees := make([]payroll.Employee, 0, len(ids))
	for _, id := range ids {
		if emp, ok := s.employees[id]; ok {
			emp.Skills = slices.Clone(emp.Skills)
			employees = append(employees, emp)
		}
	}
	return employees, nil
}

func (s *Store) GetFixedDeductions(ctx context.Context, siteID string, month, year int) (payroll.FixedDeductions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if fixed, ok := s.deductions[periodKey{siteID, month, year}]; ok {
		fixed.Other = slices.Clone(fixed.Other)
		return fixed, nil
	}
	if fixed, ok := s.deductions[periodKey{siteID, 0, 0}]; ok {
		fixed.Other = slices.Clone(fixed.Other)
		return fixed, nil
	}
	return payroll.FixedDeductions{}, nil
}

// ========== RUNS ==========

func (s *Store) Create(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	if err := ctx.Err(); err != nil {
		return payroll.PayrollRun{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[run.Key()]; exists {
		return payroll.PayrollRun{}, payroll.ErrRunExists
	}
	if _, exists := s.runs[run.ID]; exists {
		return payroll.PayrollRun{}, payroll.ErrRunExists
	}

	now := s.now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	run = cloneRun(run)
	s.runs[run.ID] = run
	s.active[run.Key()] = run.ID
	return cloneRun(run), nil
}

func (s *Store) FindActive(ctx context.Context, key payroll.RunKey) (payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[key]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return cloneRun(s.runs[id]), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return cloneRun(run), nil
}

// List returns matching runs newest period first, without results.
func (s *Store) List(ctx context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []payroll.PayrollRun
	for _, run := range s.runs {
		if filter.SiteID != "" && run.SiteID != filter.SiteID {
			continue
		}
		if filter.PayrollMonth != 0 && run.PayrollMonth != filter.PayrollMonth {
			continue
		}
		if filter.PayrollYear != 0 && run.PayrollYear != filter.PayrollYear {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		run.Results = nil
		run.SkippedExceptions = nil
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b payroll.PayrollRun) int {
		if a.PayrollYear != b.PayrollYear {
			return b.PayrollYear - a.PayrollYear
		}
		if a.PayrollMonth != b.PayrollMonth {
			return b.PayrollMonth - a.PayrollMonth
		}
		if c := strings.Compare(a.SiteID, b.SiteID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return runs, nil
}

func (s *Store) Transition(ctx context.Context, id string, expected, next payroll.RunStatus, actorID string) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	if run.Status != expected {
		return payroll.PayrollRun{}, payroll.ErrRunStatusChanged
	}

	now := s.now().UTC()
	actor := actorID
	switch next {
	case payroll.RunStatusReviewed:
		run.ReviewedBy, run.ReviewedAt = &actor, &now
	case payroll.RunStatusApproved:
		run.ApprovedBy, run.ApprovedAt = &actor, &now
	case payroll.RunStatusLocked:
		run.LockedBy, run.LockedAt = &actor, &now
	}
	run.Status = next
	run.UpdatedAt = now
	s.runs[id] = run
	return cloneRun(run), nil
}

func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return payroll.ErrRunNotFound
	}
	if run.Status != payroll.RunStatusDraft {
		return payroll.ErrRunNotDraft
	}
	delete(s.runs, id)
	delete(s.active, run.Key())
	return nil
}

func cloneRun(run payroll.PayrollRun) payroll.PayrollRun {
	if run.Results != nil {
		results := make([]payroll.PayrollResult, len(run.Results))
		for i, r := range run.Results {
			r.ExceptionReasons = slices.Clone(r.ExceptionReasons)
			results[i] = r
		}
		run.Results = results
	}
	if run.SkippedExceptions != nil {
		skipped := make([]payroll.SkippedException, len(run.SkippedExceptions))
		for i, sk := range run.SkippedExceptions {
			sk.Reasons = slices.Clone(sk.Reasons)
			skipped[i] = sk
		}
		run.SkippedExceptions = skipped
	}
	return run
}

var (
	_ payroll.SiteDirectory           = (*Store)(nil)
	_ payroll.AttendanceProvider      = (*Store)(nil)
	_ payroll.EmployeeDirectory       = (*Store)(nil)
	_ payroll.DeductionConfigProvider = (*Store)(nil)
	_ payroll.RunStore                = (*Store)(nil)
)
