/*
store.go - Persistence interfaces for the production ledger and payroll

PURPOSE:
  Defines the interface between the domain logic and the database.
  Interfaces are split by role so each component documents what it reads
  and writes. Store aggregates all of them; TxStore adds transactions.

KEY INTERFACES:
  SlabStore:         Incentive slab tables per product
  WorkforceStore:    Workers, products, attendance
  ProductionStore:   Production days and lines
  CompensationStore: Salary profiles, allowances, commissions, deductions
  PayrollStore:      Payroll periods and frozen records
  AuditLog:          Append-only who-did-what-when
  TxStore:           WithTx for atomic read-check-write sequences

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the row doesn't exist. Callers turn
  that into the error that fits their context (DayNotFoundError,
  NotFoundError, or lazy creation).

ATOMICITY:
  Anything that reads state, checks a rule and then writes (finalize vs.
  add entry, record creation vs. deduction marking, period overlap vs.
  period creation) must run inside WithTx. The Store handed to fn sees
  the transaction's writes; if fn returns an error nothing is kept.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - production/ledger.go, payroll/runner.go: Main WithTx users
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// ROLE INTERFACES
// =============================================================================

// SlabStore persists incentive slabs.
type SlabStore interface {
	// ListSlabs returns a product's slabs ordered by QtyFrom.
	ListSlabs(ctx context.Context, productID ProductID) ([]Slab, error)
	GetSlab(ctx context.Context, id string) (*Slab, error)
	// SaveSlab inserts or replaces by ID.
	SaveSlab(ctx context.Context, s Slab) error
	DeleteSlab(ctx context.Context, id string) error
}

// WorkforceStore persists workers, products and attendance.
type WorkforceStore interface {
	SaveWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, id WorkerID) (*Worker, error)
	// ListWorkers returns workers ordered by Code.
	ListWorkers(ctx context.Context, activeOnly bool) ([]Worker, error)

	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// SaveAttendance upserts on (WorkerID, Date).
	SaveAttendance(ctx context.Context, a Attendance) error
	ListAttendance(ctx context.Context, workerID WorkerID, period Period) ([]Attendance, error)
	// CountPresentDays counts Present rows for the worker inside the period.
	CountPresentDays(ctx context.Context, workerID WorkerID, period Period) (int, error)
}

// ProductionStore persists production days and their lines.
type ProductionStore interface {
	GetDay(ctx context.Context, date Date) (*ProductionDay, error)
	// SaveDay inserts or updates by ID. Dates are unique.
	SaveDay(ctx context.Context, d ProductionDay) error
	ListDays(ctx context.Context, period Period) ([]ProductionDay, error)

	GetLine(ctx context.Context, id string) (*ProductionLine, error)
	FindLine(ctx context.Context, dayID string, workerID WorkerID, productID ProductID) (*ProductionLine, error)
	ListLines(ctx context.Context, dayID string) ([]ProductionLine, error)
	// SaveLine inserts or updates by ID. A second line for the same
	// (day, worker, product) fails with ErrDuplicateEntry.
	SaveLine(ctx context.Context, l ProductionLine) error
	DeleteLine(ctx context.Context, id string) error

	// FinalizedLines returns the worker's lines on Finalized days whose
	// date lies in the period, ordered by date.
	FinalizedLines(ctx context.Context, workerID WorkerID, period Period) ([]ProductionLine, error)
}

// CompensationStore persists pay inputs. An empty WorkerID in a List call
// means all workers.
type CompensationStore interface {
	GetSalaryProfile(ctx context.Context, workerID WorkerID) (*SalaryProfile, error)
	// SaveSalaryProfile upserts on WorkerID.
	SaveSalaryProfile(ctx context.Context, p SalaryProfile) error

	SaveAllowance(ctx context.Context, a Allowance) error
	GetAllowance(ctx context.Context, id string) (*Allowance, error)
	ListAllowances(ctx context.Context, workerID WorkerID, activeOnly bool) ([]Allowance, error)

	SaveCommission(ctx context.Context, c Commission) error
	GetCommission(ctx context.Context, id string) (*Commission, error)
	ListCommissions(ctx context.Context, workerID WorkerID) ([]Commission, error)

	SaveDeduction(ctx context.Context, d Deduction) error
	GetDeduction(ctx context.Context, id string) (*Deduction, error)
	ListDeductions(ctx context.Context, workerID WorkerID, unappliedOnly bool) ([]Deduction, error)
	DeleteDeduction(ctx context.Context, id string) error
	// MarkDeductionsApplied flags the deductions as consumed by periodID.
	MarkDeductionsApplied(ctx context.Context, ids []string, periodID string) error
}

// PayrollStore persists payroll periods and records.
type PayrollStore interface {
	// SavePeriod inserts or updates by ID.
	SavePeriod(ctx context.Context, p PayrollPeriod) error
	GetPeriod(ctx context.Context, id string) (*PayrollPeriod, error)
	// ListPeriods returns periods, most recent start first.
	ListPeriods(ctx context.Context) ([]PayrollPeriod, error)

	// SaveRecord inserts a record. Records are never updated; a second
	// record for the same (period, worker) fails with ErrDuplicateRecord.
	SaveRecord(ctx context.Context, r PayrollRecord) error
	GetRecord(ctx context.Context, periodID string, workerID WorkerID) (*PayrollRecord, error)
	// ListRecords returns a period's records ordered by worker name.
	ListRecords(ctx context.Context, periodID string) ([]PayrollRecord, error)
}

// =============================================================================
// AUDIT LOG - Separate from the payroll tables, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditGenerate    AuditAction = "GENERATE"
	AuditFinalize    AuditAction = "FINALIZE"
	AuditDayFinalize AuditAction = "DAY_FINALIZE"
	AuditDayUnlock   AuditAction = "DAY_UNLOCK"
)

// AuditEntry records who did what when. PeriodID is set for payroll
// actions, Date for production-day actions.
type AuditEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	ActorID   string      `json:"actor_id"`
	Action    AuditAction `json:"action"`
	PeriodID  string      `json:"period_id,omitempty"`
	Date      Date        `json:"date,omitzero"`
	Detail    string      `json:"detail"`
}

type AuditFilter struct {
	PeriodID *string
	ActorID  *string
	Actions  []AuditAction
	From     *time.Time
	To       *time.Time
}

// Matches applies the filter to one entry. Nil fields match everything.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.PeriodID != nil && e.PeriodID != *f.PeriodID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// QueryAudit returns matching entries, oldest first.
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// AGGREGATE + TRANSACTIONAL STORE
// =============================================================================

// Store is everything the engine persists.
type Store interface {
	SlabStore
	WorkforceStore
	ProductionStore
	CompensationStore
	PayrollStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
