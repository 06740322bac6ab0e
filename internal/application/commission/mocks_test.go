package commission

import (
	"context"
	"sync"
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockInvoiceLedger is a mock implementation of commission.InvoiceLedger
type MockInvoiceLedger struct {
	mock.Mock
}

func (m *MockInvoiceLedger) ImmediateAllocations(ctx context.Context, period commission.Period) ([]commission.Allocation, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commission.Allocation), args.Error(1)
}

func (m *MockInvoiceLedger) DeferredAllocations(ctx context.Context, period commission.Period) ([]commission.Allocation, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commission.Allocation), args.Error(1)
}

// MockEmployeeDirectory is a mock implementation of commission.EmployeeDirectory
type MockEmployeeDirectory struct {
	mock.Mock
}

func (m *MockEmployeeDirectory) EmployeeFor(ctx context.Context, salesPerson string) (string, error) {
	args := m.Called(ctx, salesPerson)
	return args.String(0), args.Error(1)
}

// MockAuditLog is a mock implementation of commission.AuditLog
type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Record(ctx context.Context, entry commission.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLog) ListByRunKey(ctx context.Context, runKey string) ([]commission.AuditEntry, error) {
	args := m.Called(ctx, runKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commission.AuditEntry), args.Error(1)
}

// MockSettingsRepository is a mock implementation of commission.SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Load(ctx context.Context) (*commission.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commission.Settings), args.Error(1)
}

func (m *MockSettingsRepository) Save(ctx context.Context, settings commission.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockAdditionalSalaryRepository is a mock implementation of commission.AdditionalSalaryRepository
type MockAdditionalSalaryRepository struct {
	mock.Mock
}

func (m *MockAdditionalSalaryRepository) FindDraft(ctx context.Context, key commission.DraftKey) (*commission.AdditionalSalary, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commission.AdditionalSalary), args.Error(1)
}

func (m *MockAdditionalSalaryRepository) FindByID(ctx context.Context, id uuid.UUID) (*commission.AdditionalSalary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commission.AdditionalSalary), args.Error(1)
}

func (m *MockAdditionalSalaryRepository) Create(ctx context.Context, draft *commission.AdditionalSalary) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *MockAdditionalSalaryRepository) Save(ctx context.Context, draft *commission.AdditionalSalary) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *MockAdditionalSalaryRepository) Submit(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAdditionalSalaryRepository) FindByPayrollDate(ctx context.Context, payrollDate time.Time) ([]commission.AdditionalSalary, error) {
	args := m.Called(ctx, payrollDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commission.AdditionalSalary), args.Error(1)
}

// MockRunLock is a mock implementation of RunLock
type MockRunLock struct {
	mock.Mock
}

func (m *MockRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// memoryDraftStore enforces the one-draft-per-key rule the way the
// database partial unique index does.
type memoryDraftStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]commission.AdditionalSalary
	creates int
	saves   int
}

func newMemoryDraftStore() *memoryDraftStore {
	return &memoryDraftStore{records: make(map[uuid.UUID]commission.AdditionalSalary)}
}

func (s *memoryDraftStore) FindDraft(_ context.Context, key commission.DraftKey) (*commission.AdditionalSalary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.IsDraft() && sameKey(r.Key(), key) {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memoryDraftStore) FindByID(_ context.Context, id uuid.UUID) (*commission.AdditionalSalary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memoryDraftStore) Create(_ context.Context, draft *commission.AdditionalSalary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.IsDraft() && sameKey(r.Key(), draft.Key()) {
			return commission.ErrDraftAlreadyExists
		}
	}
	s.records[draft.ID] = *draft
	s.creates++
	return nil
}

func (s *memoryDraftStore) Save(_ context.Context, draft *commission.AdditionalSalary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[draft.ID] = *draft
	s.saves++
	return nil
}

func (s *memoryDraftStore) Submit(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return commission.ErrDraftNotEditable
	}
	if err := r.Submit(); err != nil {
		return err
	}
	s.records[id] = r
	return nil
}

func (s *memoryDraftStore) FindByPayrollDate(_ context.Context, payrollDate time.Time) ([]commission.AdditionalSalary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []commission.AdditionalSalary
	for _, r := range s.records {
		if r.PayrollDate.Equal(payrollDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryDraftStore) all() []commission.AdditionalSalary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]commission.AdditionalSalary, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

func sameKey(a, b commission.DraftKey) bool {
	return a.Employee == b.Employee && a.SalaryComponent == b.SalaryComponent && a.PayrollDate.Equal(b.PayrollDate)
}
