package payroll

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/authz"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/runlock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hrActor      = payroll.Actor{UserID: "hr-1", Role: "hr", SiteID: "site-a"}
	managerActor = payroll.Actor{UserID: "mgr-1", Role: "manager", SiteID: "site-a"}
	financeActor = payroll.Actor{UserID: "fin-1", Role: "finance"}
	otherHR      = payroll.Actor{UserID: "hr-9", Role: "hr", SiteID: "site-b"}
)

type fakeAuthorizer struct {
	canFn func(actor payroll.Actor, siteID string, action payroll.Action) bool
}

func (f *fakeAuthorizer) Can(actor payroll.Actor, siteID string, action payroll.Action) bool {
	return f.canFn(actor, siteID, action)
}

func (f *fakeAuthorizer) CanRunPayroll(actor payroll.Actor, siteID string) bool {
	return f.canFn(actor, siteID, payroll.ActionRun)
}

func (f *fakeAuthorizer) CanTransition(actor payroll.Actor, siteID string, target payroll.RunStatus) bool {
	action, ok := payroll.TransitionAction(target)
	return ok && f.canFn(actor, siteID, action)
}

// createFailingStore fails Create after delegating everything else to the memory store.
type createFailingStore struct {
	*memory.Store
	err error
}

func (s *createFailingStore) Create(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	return payroll.PayrollRun{}, s.err
}

func completeProfile() payroll.StatutoryProfile {
	return payroll.StatutoryProfile{
		PFApplicable:      true,
		ESIApplicable:     true,
		BankName:          "State Bank",
		BankAccountNumber: "00011122233",
		IFSCCode:          "SBIN0000001",
		UAN:               "100200300400",
		ESICode:           "3100123456",
	}
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	s.PutSite(payroll.Site{ID: "site-a", Code: "A", Name: "Site A"})
	s.PutSite(payroll.Site{ID: "site-b", Code: "B", Name: "Site B"})

	s.PutEmployee(payroll.Employee{
		ID: "emp-1", EmployeeCode: "A-001", FullName: "Asha", SiteID: "site-a",
		Skills:    []payroll.RateCard{{SkillID: "supervisor", BasicMonthly: d("26000"), HRAMonthly: d("5200")}},
		Statutory: completeProfile(),
	})
	noBank := completeProfile()
	noBank.BankAccountNumber = ""
	s.PutEmployee(payroll.Employee{
		ID: "emp-2", EmployeeCode: "A-002", FullName: "Ravi", SiteID: "site-a",
		Skills:    []payroll.RateCard{{SkillID: "helper", BasicMonthly: d("13000"), HRAMonthly: d("2600"), OtherAllowanceMonthly: d("1300")}},
		Statutory: noBank,
	})

	s.PutAttendance(payroll.AttendanceRecord{EmployeeID: "emp-2", SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025, PayableDays: d("24"), OTHours: d("10"), Incentive: d("500")})
	s.PutAttendance(payroll.AttendanceRecord{EmployeeID: "emp-1", SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025, PayableDays: d("26")})
	return s
}

func newTestService(t *testing.T, store *memory.Store, runs payroll.RunStore, a payroll.Authorizer) *PayrollServiceImpl {
	t.Helper()
	if runs == nil {
		runs = store
	}
	if a == nil {
		real, err := authz.NewAuthorizer("")
		require.NoError(t, err)
		a = real
	}
	svc := NewPayrollService(store, store, store, store, runs, a, runlock.NewLocal(0), DefaultDeductionRules(), 4)
	return svc.(*PayrollServiceImpl)
}

func april(siteID string) payroll.RunPayrollRequest {
	return payroll.RunPayrollRequest{SiteID: siteID, PayrollMonth: 4, PayrollYear: 2025}
}

func boolPtr(b bool) *bool { return &b }

func TestRunPayroll_CreatesDraftRun(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store, nil, nil)

	resp, err := svc.RunPayroll(context.Background(), hrActor, april("site-a"))
	require.NoError(t, err)

	run := resp.Run
	assert.Equal(t, string(payroll.RunStatusDraft), run.Status)
	assert.Equal(t, "hr-1", run.RunBy)
	assert.NotEmpty(t, run.ID)
	require.Len(t, run.Results, 2)

	// Ordered by employee ID regardless of attendance order
	assert.Equal(t, "emp-1", run.Results[0].EmployeeID)
	assert.Equal(t, "emp-2", run.Results[1].EmployeeID)

	first := run.Results[0]
	assertMoney(t, "31200", first.GrossEarning, "gross")
	assertMoney(t, "3120", first.PFDeduction, "pf")
	assertMoney(t, "0", first.ESIDeduction, "esi")
	assertMoney(t, "28080", first.NetPay, "net")
	assert.False(t, first.IsException)
	assert.Equal(t, "A-001", first.EmployeeCode)

	second := run.Results[1]
	assert.True(t, second.IsException)
	assert.Equal(t, []string{ReasonMissingBankAccount}, second.ExceptionReasons)
	assertMoney(t, "15780", second.NetPay, "net with exception")

	assert.Equal(t, 2, run.TotalEmployees)
	assert.Equal(t, 1, run.ExceptionCount)
	assertMoney(t, "48550", run.TotalGross, "total gross")
	assertMoney(t, "4690", run.TotalDeductions, "total deductions")
	assertMoney(t, "43860", run.TotalNetPay, "total net")

	assert.Equal(t, payroll.RunSummaryResponse{Processed: 2, Included: 2, Exceptions: 1}, resp.Summary)
	assert.Equal(t, "Payroll processed for 2 employees, 1 exceptions", resp.Message)

	stored, err := store.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NoError(t, VerifyTotals(stored))
}

func TestRunPayroll_SkipExceptions(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store, nil, nil)

	req := april("site-a")
	req.Settings = &payroll.RunSettingsRequest{SkipExceptions: boolPtr(true)}
	resp, err := svc.RunPayroll(context.Background(), hrActor, req)
	require.NoError(t, err)

	run := resp.Run
	require.Len(t, run.Results, 1)
	assert.Equal(t, "emp-1", run.Results[0].EmployeeID)
	assert.Equal(t, 1, run.TotalEmployees)
	assert.Equal(t, 1, run.ExceptionCount)
	assertMoney(t, "28080", run.TotalNetPay, "total net")
	require.Len(t, run.SkippedExceptions, 1)
	assert.Equal(t, "emp-2", run.SkippedExceptions[0].EmployeeID)
	assert.True(t, run.Settings.SkipExceptions)
	assert.True(t, run.Settings.ApplyRounding)
	assert.Equal(t, payroll.RunSummaryResponse{Processed: 2, Included: 1, Exceptions: 1}, resp.Summary)
}

func TestRunPayroll_Preconditions(t *testing.T) {
	denyAll := &fakeAuthorizer{canFn: func(payroll.Actor, string, payroll.Action) bool { return false }}

	tests := []struct {
		name    string
		actor   payroll.Actor
		req     payroll.RunPayrollRequest
		authz   payroll.Authorizer
		prepare func(t *testing.T, svc *PayrollServiceImpl)
		wantErr error
	}{
		{name: "missing actor", actor: payroll.Actor{}, req: april("site-a"), wantErr: payroll.ErrForbidden},
		{name: "unknown site", actor: hrActor, req: april("site-x"), wantErr: payroll.ErrNotFound},
		{name: "other site", actor: otherHR, req: april("site-a"), wantErr: payroll.ErrForbidden},
		{name: "role without capability", actor: managerActor, req: april("site-a"), wantErr: payroll.ErrForbidden},
		{name: "authorizer denies", actor: hrActor, req: april("site-a"), authz: denyAll, wantErr: payroll.ErrForbidden},
		{name: "no attendance", actor: hrActor, req: payroll.RunPayrollRequest{SiteID: "site-a", PayrollMonth: 5, PayrollYear: 2025}, wantErr: payroll.ErrPreconditionFailed},
		{
			name: "run already exists", actor: hrActor, req: april("site-a"),
			prepare: func(t *testing.T, svc *PayrollServiceImpl) {
				_, err := svc.RunPayroll(context.Background(), hrActor, april("site-a"))
				require.NoError(t, err)
			},
			wantErr: payroll.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, seedStore(t), nil, tt.authz)
			if tt.prepare != nil {
				tt.prepare(t, svc)
			}
			_, err := svc.RunPayroll(context.Background(), tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunPayroll_InvalidRequest(t *testing.T) {
	svc := newTestService(t, seedStore(t), nil, nil)

	_, err := svc.RunPayroll(context.Background(), hrActor, payroll.RunPayrollRequest{SiteID: "  ", PayrollMonth: 13, PayrollYear: 2025})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := verrs.ToMap()
	assert.Contains(t, fields, "site_id")
	assert.Contains(t, fields, "payroll_month")
}

func TestRunPayroll_BadAttendance(t *testing.T) {
	tests := []struct {
		name  string
		extra payroll.AttendanceRecord
		field string
	}{
		{
			name:  "duplicate employee",
			extra: payroll.AttendanceRecord{EmployeeID: "emp-1", SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025, PayableDays: d("2")},
			field: "attendance[1].employee_id",
		},
		{
			name:  "unknown employee",
			extra: payroll.AttendanceRecord{EmployeeID: "ghost", SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025, PayableDays: d("2")},
			field: "attendance[ghost]",
		},
		{
			name:  "too many days",
			extra: payroll.AttendanceRecord{EmployeeID: "emp-3", SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025, PayableDays: d("32")},
			field: "attendance[2].payable_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedStore(t)
			store.PutEmployee(payroll.Employee{ID: "emp-3", SiteID: "site-a", Statutory: completeProfile()})
			store.PutAttendance(tt.extra)
			svc := newTestService(t, store, nil, nil)

			_, err := svc.RunPayroll(context.Background(), hrActor, april("site-a"))
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Contains(t, verrs.ToMap(), tt.field)

			runs, err := store.List(context.Background(), payroll.RunFilter{})
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestRunPayroll_ConcurrentRequestsCreateOneRun(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store, nil, nil)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.RunPayroll(context.Background(), hrActor, april("site-a"))
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, payroll.ErrConflict)
	}
	assert.Equal(t, 1, ok)

	runs, err := store.List(context.Background(), payroll.RunFilter{SiteID: "site-a"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunPayroll_IsDeterministic(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store, nil, nil)
	ctx := context.Background()

	first, err := svc.RunPayroll(ctx, hrActor, april("site-a"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDraftRun(ctx, hrActor, first.Run.ID))

	second, err := svc.RunPayroll(ctx, hrActor, april("site-a"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, first.Run.Results, second.Run.Results)
	assert.True(t, first.Run.TotalNetPay.Equal(second.Run.TotalNetPay))
}

func TestRunPayroll_StoreFailureLeavesNothing(t *testing.T) {
	store := seedStore(t)
	failing := &createFailingStore{Store: store, err: errors.New("disk full")}
	svc := newTestService(t, store, failing, nil)

	_, err := svc.RunPayroll(context.Background(), hrActor, april("site-a"))
	assert.EqualError(t, err, "disk full")

	_, err = store.FindActive(context.Background(), payroll.RunKey{SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025})
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestRunPayroll_EmployeeWithoutSkill(t *testing.T) {
	store := seedStore(t)
	store.PutEmployee(payroll.Employee{ID: "emp-0", SiteID: "site-a", Statutory: completeProfile()})
	store.PutAttendance(payroll.AttendanceRecord{EmployeeID: "emp-0", SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025, PayableDays: d("26")})
	svc := newTestService(t, store, nil, nil)

	resp, err := svc.RunPayroll(context.Background(), hrActor, april("site-a"))
	require.NoError(t, err)
	require.Len(t, resp.Run.Results, 3)
	assert.Equal(t, "emp-0", resp.Run.Results[0].EmployeeID)
	assertMoney(t, "0", resp.Run.Results[0].GrossEarning, "gross")
}

func TestVerifyTotals(t *testing.T) {
	run := payroll.PayrollRun{
		Results: []payroll.PayrollResult{
			{GrossEarning: d("100"), TotalDeductions: d("10"), NetPay: d("90")},
			{GrossEarning: d("50"), TotalDeductions: d("5"), NetPay: d("45")},
		},
		TotalEmployees:  2,
		TotalGross:      d("150"),
		TotalDeductions: d("15"),
		TotalNetPay:     d("135"),
	}
	assert.NoError(t, VerifyTotals(run))

	broken := run
	broken.TotalNetPay = d("136")
	assert.ErrorIs(t, VerifyTotals(broken), payroll.ErrInconsistentAggregate)

	broken = run
	broken.TotalEmployees = 3
	assert.ErrorIs(t, VerifyTotals(broken), payroll.ErrTotalsMismatch)
}
