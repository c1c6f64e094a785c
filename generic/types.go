/*
Package generic provides the core types of the production and payroll engine.

PURPOSE:
  Domain types shared by every package: workers and products, incentive
  slabs, production days and lines, compensation master data, payroll
  periods and their frozen records. No business rules live here beyond
  small invariants on the types themselves.

KEY CONCEPTS IN THIS FILE (types.go):
  - Slab: One quantity tier of a product's piece-rate table
  - ProductionDay / ProductionLine: The per-date production ledger
  - SalaryProfile, Allowance, Commission, Deduction: Compensation inputs
  - PayrollPeriod / PayrollRecord: Payroll output, frozen at generation

DESIGN PRINCIPLES:
  1. Precision: Money is decimal.Decimal, rounded to whole units with Round()
  2. Type Safety: Worker and product IDs are distinct types
  3. Snapshots: Payroll line items copy their values instead of referencing
     master data, so later edits never rewrite history

SEE ALSO:
  - lockstate.go: Open/Finalized lifecycle
  - errors.go: Error taxonomy
  - store.go: Persistence interfaces
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type ProductID string

// =============================================================================
// WORKFORCE
// =============================================================================

type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "Active"
	WorkerInactive WorkerStatus = "Inactive"
)

type Worker struct {
	ID          WorkerID     `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Designation string       `json:"designation,omitempty"`
	Status      WorkerStatus `json:"status"`
}

func (w Worker) IsActive() bool { return w.Status == WorkerActive }

type Product struct {
	ID   ProductID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceLeave   AttendanceStatus = "Leave"
	AttendanceHalfDay AttendanceStatus = "HalfDay"
)

// Attendance is unique per (worker, date). Saving again overwrites the status.
type Attendance struct {
	WorkerID WorkerID         `json:"worker_id"`
	Date     Date             `json:"date"`
	Status   AttendanceStatus `json:"status"`
}

// =============================================================================
// INCENTIVE SLABS
// =============================================================================

// Slab is one tier of a product's piece-rate table: any quantity in the
// closed range [QtyFrom, QtyTo] is paid RatePerUnit for every unit.
type Slab struct {
	ID          string          `json:"id"`
	ProductID   ProductID       `json:"product_id"`
	QtyFrom     int             `json:"qty_from"`
	QtyTo       int             `json:"qty_to"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
}

// Covers reports whether qty falls inside the slab's closed range.
func (s Slab) Covers(qty int) bool {
	return qty >= s.QtyFrom && qty <= s.QtyTo
}

// =============================================================================
// PRODUCTION LEDGER
// =============================================================================

// ProductionDay is created lazily by the first entry recorded for its date.
type ProductionDay struct {
	ID          string     `json:"id"`
	Date        Date       `json:"date"`
	Status      LockState  `json:"status"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	FinalizedBy string     `json:"finalized_by,omitempty"`
}

// ProductionLine records one worker's output of one product on one day.
// AppliedRate is captured when the line is written and never recomputed.
type ProductionLine struct {
	ID          string          `json:"id"`
	DayID       string          `json:"day_id"`
	Date        Date            `json:"date"`
	WorkerID    WorkerID        `json:"worker_id"`
	ProductID   ProductID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	AppliedRate decimal.Decimal `json:"applied_rate"`
	LineTotal   decimal.Decimal `json:"line_total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// =============================================================================
// COMPENSATION MASTER DATA
// =============================================================================

type WorkerType string

const (
	WorkerTypeSalary    WorkerType = "Salary"
	WorkerTypePieceRate WorkerType = "PieceRate"
	WorkerTypeBoth      WorkerType = "Both"
)

// SalaryProfile is at most one per worker.
type SalaryProfile struct {
	WorkerID     WorkerID        `json:"worker_id"`
	BasicSalary  decimal.Decimal `json:"basic_salary"`
	OvertimeRate decimal.Decimal `json:"overtime_rate"`
	WorkerType   WorkerType      `json:"worker_type"`
}

type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyOneTime Frequency = "OneTime"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOneTime:
		return true
	}
	return false
}

// Allowance is a recurring or one-off payment. Removing one sets Active=false.
type Allowance struct {
	ID        string          `json:"id"`
	WorkerID  WorkerID        `json:"worker_id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Frequency Frequency       `json:"frequency"`
	Active    bool            `json:"active"`
}

// Commission is paid only when approved and its Window lies inside the payroll period.
type Commission struct {
	ID       string          `json:"id"`
	WorkerID WorkerID        `json:"worker_id"`
	Series   string          `json:"series"`
	Amount   decimal.Decimal `json:"amount"`
	Window   Period          `json:"window"`
	Approved bool            `json:"approved"`
}

// Deduction is consumed by the first payroll generated after it is recorded.
// It has no date window.
type Deduction struct {
	ID              string          `json:"id"`
	WorkerID        WorkerID        `json:"worker_id"`
	Type            string          `json:"type"`
	Description     string          `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Applied         bool            `json:"applied"`
	AppliedPeriodID string          `json:"applied_period_id,omitempty"`
}

// =============================================================================
// PAYROLL
// =============================================================================

type PayrollPeriod struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Period      Period     `json:"period"`
	Status      LockState  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// PayrollRecord is one worker's pay for one period. It is written once and
// never updated; the line slices are copies taken at generation time.
type PayrollRecord struct {
	ID               string          `json:"id"`
	PeriodID         string          `json:"period_id"`
	WorkerID         WorkerID        `json:"worker_id"`
	WorkerName       string          `json:"worker_name"`
	BasicSalary      decimal.Decimal `json:"basic_salary"`
	OvertimeHours    decimal.Decimal `json:"overtime_hours"`
	OvertimePay      decimal.Decimal `json:"overtime_pay"`
	AllowancesTotal  decimal.Decimal `json:"allowances_total"`
	CommissionsTotal decimal.Decimal `json:"commissions_total"`
	AssemblyEarnings decimal.Decimal `json:"assembly_earnings"`
	DeductionsTotal  decimal.Decimal `json:"deductions_total"`
	GrossPay         decimal.Decimal `json:"gross_pay"`
	NetPay           decimal.Decimal `json:"net_pay"`
	PresentDays      int             `json:"present_days"`
	PeriodDays       int             `json:"period_days"`
	NoSalaryProfile  bool            `json:"no_salary_profile,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`

	AssemblyLines   []AssemblyLine   `json:"assembly_lines"`
	AllowanceLines  []AllowanceLine  `json:"allowance_lines"`
	DeductionLines  []DeductionLine  `json:"deduction_lines"`
	CommissionLines []CommissionLine `json:"commission_lines"`
}

type AssemblyLine struct {
	Date        Date            `json:"date"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	AppliedRate decimal.Decimal `json:"applied_rate"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// AllowanceLine keeps the unit amount and the multiplier that scaled it.
type AllowanceLine struct {
	Name       string          `json:"name"`
	Frequency  Frequency       `json:"frequency"`
	Amount     decimal.Decimal `json:"amount"`
	Multiplier int             `json:"multiplier"`
	Total      decimal.Decimal `json:"total"`
}

type DeductionLine struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

type CommissionLine struct {
	Series string          `json:"series"`
	Amount decimal.Decimal `json:"amount"`
}

// Clone returns a copy whose line slices do not alias the receiver's.
func (r PayrollRecord) Clone() PayrollRecord {
	r.AssemblyLines = append([]AssemblyLine(nil), r.AssemblyLines...)
	r.AllowanceLines = append([]AllowanceLine(nil), r.AllowanceLines...)
	r.DeductionLines = append([]DeductionLine(nil), r.DeductionLines...)
	r.CommissionLines = append([]CommissionLine(nil), r.CommissionLines...)
	return r
}
