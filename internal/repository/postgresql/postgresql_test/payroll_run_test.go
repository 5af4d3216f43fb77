package postgresql_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/postgresql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRun(id string) payroll.PayrollRun {
	return payroll.PayrollRun{
		ID:           id,
		SiteID:       "site-a",
		PayrollMonth: 4,
		PayrollYear:  2025,
		Status:       payroll.RunStatusDraft,
		Settings:     payroll.RunSettings{SkipExceptions: true, ApplyRounding: true},
		Results: []payroll.PayrollResult{
			{
				EmployeeID: "emp-2", EmployeeCode: "A-002", EmployeeName: "Ravi",
				PayableDays: dec("24"), OTHours: dec("10"),
				BasicEarned: dec("12000"), HRAEarned: dec("2400"), OtherEarned: dec("1200"), OTAmount: dec("1250"),
				Incentive: dec("500"), Arrear: dec("0"), GrossEarning: dec("17350"),
				PFDeduction: dec("1440"), ESIDeduction: dec("130"), FixedDeductions: dec("0"),
				TotalDeductions: dec("1570"), NetPay: dec("15780"),
			},
			{
				EmployeeID: "emp-1", EmployeeCode: "A-001", EmployeeName: "Asha",
				PayableDays: dec("26"), OTHours: dec("0"),
				BasicEarned: dec("26000"), HRAEarned: dec("5200"), OtherEarned: dec("0"), OTAmount: dec("0"),
				Incentive: dec("0"), Arrear: dec("0"), GrossEarning: dec("31200"),
				PFDeduction: dec("3120"), ESIDeduction: dec("0"), FixedDeductions: dec("0"),
				TotalDeductions: dec("3120"), NetPay: dec("28080"),
			},
		},
		SkippedExceptions: []payroll.SkippedException{{EmployeeID: "emp-3", Reasons: []string{"missing IFSC code"}}},
		TotalEmployees:    2,
		TotalGross:        dec("48550"),
		TotalDeductions:   dec("4690"),
		TotalNetPay:       dec("43860"),
		ExceptionCount:    1,
		RunBy:             "hr-1",
		RunAt:             time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPayrollRunRepository_CreateAndRead(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleRun("run-1"))
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusDraft, got.Status)
	assert.True(t, got.Settings.SkipExceptions)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "emp-1", got.Results[0].EmployeeID)
	assert.True(t, got.Results[1].NetPay.Equal(dec("15780")))
	assert.True(t, got.TotalNetPay.Equal(dec("43860")))
	require.Len(t, got.SkippedExceptions, 1)
	assert.Equal(t, "emp-3", got.SkippedExceptions[0].EmployeeID)

	active, err := repo.FindActive(ctx, payroll.RunKey{SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025})
	require.NoError(t, err)
	assert.Equal(t, "run-1", active.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestPayrollRunRepository_UniquePerPeriod(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, sampleRun("run-"+string(rune('a'+i))))
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, payroll.ErrRunExists)
	}
	assert.Equal(t, 1, ok)

	var results int
	require.NoError(t, setup.DB.QueryRow(ctx, "SELECT COUNT(*) FROM payroll_results").Scan(&results))
	assert.Equal(t, 2, results)
}

func TestPayrollRunRepository_Transition(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleRun("run-1"))
	require.NoError(t, err)

	run, err := repo.Transition(ctx, "run-1", payroll.RunStatusDraft, payroll.RunStatusReviewed, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusReviewed, run.Status)
	require.NotNil(t, run.ReviewedBy)
	assert.Equal(t, "hr-1", *run.ReviewedBy)
	assert.NotNil(t, run.ReviewedAt)
	assert.Len(t, run.Results, 2)

	_, err = repo.Transition(ctx, "run-1", payroll.RunStatusDraft, payroll.RunStatusReviewed, "hr-2")
	assert.ErrorIs(t, err, payroll.ErrRunStatusChanged)

	_, err = repo.Transition(ctx, "missing", payroll.RunStatusDraft, payroll.RunStatusReviewed, "hr-2")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)

	assert.ErrorIs(t, repo.DeleteDraft(ctx, "run-1"), payroll.ErrRunNotDraft)
}

func TestPayrollRunRepository_DeleteDraftAndList(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleRun("run-1"))
	require.NoError(t, err)
	other := sampleRun("run-2")
	other.PayrollMonth = 5
	_, err = repo.Create(ctx, other)
	require.NoError(t, err)

	runs, err := repo.List(ctx, payroll.RunFilter{SiteID: "site-a"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 5, runs[0].PayrollMonth)
	assert.Nil(t, runs[0].Results)

	runs, err = repo.List(ctx, payroll.RunFilter{PayrollMonth: 4, Status: payroll.RunStatusDraft})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, repo.DeleteDraft(ctx, "run-1"))
	assert.ErrorIs(t, repo.DeleteDraft(ctx, "run-1"), payroll.ErrRunNotFound)

	var results int
	require.NoError(t, setup.DB.QueryRow(ctx, "SELECT COUNT(*) FROM payroll_results WHERE run_id = 'run-1'").Scan(&results))
	assert.Zero(t, results)
}
