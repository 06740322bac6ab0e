package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const testRunKey = "AUTO_COMM_FULLPAID_2026-02_MONTHLY"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func alloc(invoice, salesPerson, netTotal string, source commission.RevenueSource) commission.Allocation {
	return commission.Allocation{Invoice: invoice, SalesPerson: salesPerson, NetTotal: dec(netTotal), Source: source}
}

func enabledSettings() commission.Settings {
	return commission.Settings{Enabled: true, ForceRun: true}
}

type runFixture struct {
	ledger    *MockInvoiceLedger
	directory *MockEmployeeDirectory
	audit     *MockAuditLog
	store     *memoryDraftStore
	lock      *MockRunLock
	entries   []commission.AuditEntry
}

func newRunFixture() *runFixture {
	f := &runFixture{
		ledger:    new(MockInvoiceLedger),
		directory: new(MockEmployeeDirectory),
		audit:     new(MockAuditLog),
		store:     newMemoryDraftStore(),
		lock:      new(MockRunLock),
	}
	f.audit.On("Record", mock.Anything, mock.AnythingOfType("commission.AuditEntry")).
		Run(func(args mock.Arguments) {
			f.entries = append(f.entries, args.Get(1).(commission.AuditEntry))
		}).
		Return(nil).Maybe()
	return f
}

func (f *runFixture) service(settings commission.Settings, lock RunLock) *RunService {
	svc := NewRunService(
		NewSettingsResolver(nil, settings),
		NewRevenueAggregator(f.ledger, nil, nil),
		NewDraftReconciler(f.store, nil, nil),
		f.directory,
		f.audit,
		lock,
		nil,
		nil,
		RunServiceConfig{},
	)
	svc.clock = func() time.Time { return testNow }
	return svc
}

func TestRunService_EndToEnd(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{alloc("SINV-001", "S1", "120000", commission.SourceImmediate)}, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{alloc("SINV-002", "S1", "40000", commission.SourceDeferred)}, nil)
	f.directory.On("EmployeeFor", mock.Anything, "S1").Return("E1", nil)

	result, err := f.service(enabledSettings(), nil).Run(context.Background(), RunRequest{Trigger: "test"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, testRunKey, result.RunKey)
	assert.Equal(t, "2026-02-01..2026-02-28", result.Period.String())
	assert.Equal(t, 1, result.Done)
	assert.Equal(t, 0, result.Errors)
	assert.True(t, result.Totals.Get("S1").Equal(dec("160000")))

	drafts := f.store.all()
	require.Len(t, drafts, 1)
	assert.Equal(t, "E1", drafts[0].Employee)
	assert.Equal(t, commission.DefaultComponent, drafts[0].SalaryComponent)
	assert.Equal(t, "3200.00", drafts[0].Amount.StringFixed(2))
	assert.Equal(t, testRunKey, drafts[0].Remarks)
	assert.True(t, drafts[0].OverwriteSalaryStructureAmount)
	assert.True(t, drafts[0].PayrollDate.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionCreated, result.Outcomes[0].Action)

	require.Len(t, f.entries, 1)
	assert.Equal(t, TitleResult, f.entries[0].Title)
	assert.Equal(t, testRunKey, f.entries[0].RunKey)
	assert.Contains(t, f.entries[0].Body, "CREATED SP=S1 DRAFT Additional Salary")
	assert.Contains(t, f.entries[0].Body, "STEP 3 CALC START")
	assert.Contains(t, f.entries[0].Body, "DONE errors=0 run_key="+testRunKey+" updated_or_created_draft=1")
}

func TestRunService_RerunUpdatesInPlace(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{alloc("SINV-001", "S1", "85000", commission.SourceImmediate)}, nil).Once()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{alloc("SINV-001", "S1", "85000", commission.SourceImmediate), alloc("SINV-003", "S1", "15000", commission.SourceImmediate)}, nil).Once()
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	f.directory.On("EmployeeFor", mock.Anything, "S1").Return("E1", nil)

	svc := f.service(enabledSettings(), nil)

	first, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, first.Outcomes[0].Action)

	second, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	require.Len(t, second.Outcomes, 1)
	assert.Equal(t, ActionUpdated, second.Outcomes[0].Action)
	assert.Equal(t, first.Outcomes[0].DraftID, second.Outcomes[0].DraftID)

	drafts := f.store.all()
	require.Len(t, drafts, 1)
	// 100000 moves S1 into the 1.5% tier
	assert.Equal(t, "1500.00", drafts[0].Amount.StringFixed(2))
	assert.Equal(t, 1, f.store.creates)
	assert.Equal(t, 1, f.store.saves)
}

func TestRunService_PartialFailure(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{
			alloc("SINV-001", "S1", "85000", commission.SourceImmediate),
			alloc("SINV-002", "S2", "90000", commission.SourceImmediate),
		}, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	f.directory.On("EmployeeFor", mock.Anything, "S1").Return("E1", nil)
	f.directory.On("EmployeeFor", mock.Anything, "S2").Return("", errors.New("directory unavailable"))

	result, err := f.service(enabledSettings(), nil).Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.Done)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "S2", result.Failures[0].SalesPerson)
	assert.Contains(t, result.Failures[0].Message, "directory unavailable")

	drafts := f.store.all()
	require.Len(t, drafts, 1)
	assert.Equal(t, "E1", drafts[0].Employee)
	assert.Equal(t, "850.00", drafts[0].Amount.StringFixed(2))

	assert.Contains(t, f.entries[0].Body, "ERROR SP=S2 msg=")
	assert.Contains(t, f.entries[0].Body, "errors=1")
}

func TestRunService_SkipsWithoutDraft(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{
			alloc("SINV-001", "Low", "69999.99", commission.SourceImmediate),
			alloc("SINV-002", "Orphan", "90000", commission.SourceImmediate),
		}, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	f.directory.On("EmployeeFor", mock.Anything, "Orphan").Return("", nil)

	result, err := f.service(enabledSettings(), nil).Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Done)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, f.store.all())
	f.directory.AssertNotCalled(t, "EmployeeFor", mock.Anything, "Low")

	body := f.entries[0].Body
	assert.Contains(t, body, "SKIP SP=Low commission<=0")
	assert.Contains(t, body, "SKIP SP=Orphan no employee linked")
}

func TestRunService_Disabled(t *testing.T) {
	f := newRunFixture()

	result, err := f.service(commission.Settings{Enabled: false, ForceRun: true}, f.lock).Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, StatusDisabled, result.Status)
	require.Equal(t, 1, result.Trace.Len())
	assert.Equal(t, commission.EventDisabled, result.Trace.Events()[0].Kind)
	assert.Empty(t, f.entries)
	f.ledger.AssertNotCalled(t, "ImmediateAllocations", mock.Anything, mock.Anything)
	f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_ForceRunOffSkips(t *testing.T) {
	f := newRunFixture()

	result, err := f.service(commission.Settings{Enabled: true, ForceRun: false}, nil).Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, result.Status)
	assert.Equal(t, testRunKey, result.RunKey)
	assert.Empty(t, f.store.all())
	f.ledger.AssertNotCalled(t, "ImmediateAllocations", mock.Anything, mock.Anything)

	require.Len(t, f.entries, 1)
	assert.Equal(t, TitleSkipped, f.entries[0].Title)
	assert.Contains(t, f.entries[0].Body, "PING")
	assert.Contains(t, f.entries[0].Body, "STOP FORCE_RUN=0")
}

func TestRunService_AggregationFailureAborts(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	result, err := f.service(enabledSettings(), nil).Run(context.Background(), RunRequest{})
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, f.entries)
}

func TestRunService_RunLock(t *testing.T) {
	t.Run("held by another run", func(t *testing.T) {
		f := newRunFixture()
		f.lock.On("Acquire", mock.Anything, testRunKey, 30*time.Minute).Return(false, nil)

		_, err := f.service(enabledSettings(), f.lock).Run(context.Background(), RunRequest{})
		assert.True(t, errors.Is(err, commission.ErrRunInProgress))
		f.ledger.AssertNotCalled(t, "ImmediateAllocations", mock.Anything, mock.Anything)
	})

	t.Run("acquired and released", func(t *testing.T) {
		f := newRunFixture()
		f.lock.On("Acquire", mock.Anything, testRunKey, 30*time.Minute).Return(true, nil)
		f.lock.On("Release", mock.Anything, testRunKey).Return(nil)
		f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
		f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)

		result, err := f.service(enabledSettings(), f.lock).Run(context.Background(), RunRequest{})
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, result.Status)
		f.lock.AssertExpectations(t)
	})
}

func TestRunService_DryRunWritesNothing(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{alloc("SINV-001", "S1", "160000", commission.SourceImmediate)}, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	f.directory.On("EmployeeFor", mock.Anything, "S1").Return("E1", nil)

	settings := commission.Settings{Enabled: true, ForceRun: false}
	result, err := f.service(settings, f.lock).Run(context.Background(), RunRequest{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionWouldCreate, result.Outcomes[0].Action)
	assert.Equal(t, "3200.00", result.Outcomes[0].Amount.StringFixed(2))
	assert.Empty(t, f.store.all())
	f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, f.entries, 1)
	assert.Equal(t, TitleDryRun, f.entries[0].Title)
}

func TestRunService_SubmittedDraftIsLeftAlone(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).
		Return([]commission.Allocation{alloc("SINV-001", "S1", "85000", commission.SourceImmediate)}, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	f.directory.On("EmployeeFor", mock.Anything, "S1").Return("E1", nil)

	svc := f.service(enabledSettings(), nil)
	first, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitDraft(context.Background(), first.Outcomes[0].DraftID))

	second, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, second.Outcomes[0].Action)
	assert.NotEqual(t, first.Outcomes[0].DraftID, second.Outcomes[0].DraftID)

	submitted, err := f.store.FindByID(context.Background(), first.Outcomes[0].DraftID)
	require.NoError(t, err)
	assert.False(t, submitted.IsDraft())
	assert.Equal(t, "850.00", submitted.Amount.StringFixed(2))

	payroll, err := svc.Drafts(context.Background(), first.Period.PayrollDate)
	require.NoError(t, err)
	assert.Len(t, payroll, 2)
}

func TestRunService_ExplicitRangeAndSelector(t *testing.T) {
	f := newRunFixture()
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)
	svc := f.service(enabledSettings(), nil)

	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	result, err := svc.Run(context.Background(), RunRequest{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, "AUTO_COMM_FULLPAID_2026-01_MONTHLY", result.RunKey)
	assert.Equal(t, "2026-01-05..2026-01-20", result.Period.String())

	current := commission.PeriodCurrentMonth
	result, err = svc.Run(context.Background(), RunRequest{Period: &current})
	require.NoError(t, err)
	assert.Equal(t, "AUTO_COMM_FULLPAID_2026-03_MONTHLY", result.RunKey)

	_, err = svc.Run(context.Background(), RunRequest{From: &to, To: &from})
	assert.True(t, errors.Is(err, commission.ErrInvalidPeriod))
}

func TestRunService_AuditFailureStillReturnsResult(t *testing.T) {
	f := newRunFixture()
	f.audit = new(MockAuditLog)
	f.audit.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	result, err := f.service(commission.Settings{Enabled: true}, nil).Run(context.Background(), RunRequest{})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusSkipped, result.Status)
}

func TestRunService_TraceIsTruncated(t *testing.T) {
	f := newRunFixture()
	rows := make([]commission.Allocation, 0, 400)
	for i := 0; i < 400; i++ {
		rows = append(rows, alloc(fmt.Sprintf("SINV-%03d", i), fmt.Sprintf("SP-%03d", i), "1000", commission.SourceImmediate))
	}
	f.ledger.On("ImmediateAllocations", mock.Anything, mock.Anything).Return(rows, nil)
	f.ledger.On("DeferredAllocations", mock.Anything, mock.Anything).Return([]commission.Allocation{}, nil)

	result, err := f.service(enabledSettings(), nil).Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 400, result.Skipped)
	assert.Greater(t, result.Trace.Len(), commission.ResultTraceLimit)

	lines := strings.Split(f.entries[0].Body, "\n")
	assert.Len(t, lines, commission.ResultTraceLimit)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "DONE"))
}

func TestRunService_PreviewRate(t *testing.T) {
	f := newRunFixture()
	settings := enabledSettings()
	settings.SlabRows = []commission.SlabRow{{LimitAmount: dec("50000"), Rate: dec("2")}}
	svc := f.service(settings, nil)

	preview, err := svc.PreviewRate(context.Background(), dec("40000"))
	require.NoError(t, err)
	assert.True(t, preview.Rate.Equal(dec("0.02")))
	assert.Equal(t, "800.00", preview.Commission.StringFixed(2))
	assert.Len(t, preview.Tiers, 2)

	_, err = svc.PreviewRate(context.Background(), dec("-1"))
	assert.True(t, errors.Is(err, commission.ErrInvalidAmount))
}

func TestSettingsResolver(t *testing.T) {
	fallback := commission.Settings{Enabled: true, Component: "File Component"}

	t.Run("stored settings win", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Load", mock.Anything).Return(&commission.Settings{Enabled: true, ForceRun: true, Component: "Bonus"}, nil)

		s, err := NewSettingsResolver(repo, fallback).Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bonus", s.Component)
		assert.Equal(t, commission.DefaultRunKeySuffix, s.RunKeySuffix)
	})

	t.Run("falls back to file settings", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Load", mock.Anything).Return(nil, nil)

		s, err := NewSettingsResolver(repo, fallback).Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "File Component", s.Component)
		assert.Equal(t, commission.PeriodLastMonth, s.Period)
	})

	t.Run("load error propagates", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Load", mock.Anything).Return(nil, errors.New("db down"))

		_, err := NewSettingsResolver(repo, fallback).Resolve(context.Background())
		assert.Error(t, err)
	})
}
