/*
dto.go - Request bodies for the HTTP API

PURPOSE:
  JSON request shapes with go-playground/validator tags. Responses reuse
  the domain types (generic.*, production.*, payroll.*) directly; their json
  tags are the API contract.

VALIDATION:
  Shape checks (required, formats, enums, ranges) live in the struct tags
  and run in decode(). Business rules (slab overlap, day lock, money > 0)
  stay in the services, which return typed errors mapped in errors.go.

DATES:
  Dates travel as "YYYY-MM-DD" strings and are parsed with generic.ParseDate.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: Error to status mapping
*/
package api

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MASTER DATA
// =============================================================================

type WorkerRequest struct {
	ID          string `json:"id" validate:"omitempty,max=64"`
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required,max=128"`
	Designation string `json:"designation" validate:"max=128"`
	Status      string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

type ProductRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64"`
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=128"`
}

type SalaryProfileRequest struct {
	BasicSalary  decimal.Decimal `json:"basic_salary"`
	OvertimeRate decimal.Decimal `json:"overtime_rate"`
	WorkerType   string          `json:"worker_type" validate:"required,oneof=Salary PieceRate Both"`
}

type AttendanceRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Status string `json:"status" validate:"required,oneof=Present Absent Leave HalfDay"`
}

type AllowanceRequest struct {
	WorkerID  string          `json:"worker_id" validate:"required"`
	Name      string          `json:"name" validate:"required,max=128"`
	Amount    decimal.Decimal `json:"amount"`
	Frequency string          `json:"frequency" validate:"required,oneof=Daily Weekly Monthly OneTime"`
}

type CommissionRequest struct {
	WorkerID    string          `json:"worker_id" validate:"required"`
	Series      string          `json:"series" validate:"required,max=64"`
	Amount      decimal.Decimal `json:"amount"`
	PeriodStart string          `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string          `json:"period_end" validate:"required,datetime=2006-01-02"`
	Approved    bool            `json:"approved"`
}

type DeductionRequest struct {
	WorkerID    string          `json:"worker_id" validate:"required"`
	Type        string          `json:"type" validate:"required,max=64"`
	Description string          `json:"description" validate:"max=256"`
	Amount      decimal.Decimal `json:"amount"`
}

// =============================================================================
// SLABS
// =============================================================================

type SlabRequest struct {
	QtyFrom     int             `json:"qty_from" validate:"min=1"`
	QtyTo       int             `json:"qty_to" validate:"gtfield=QtyFrom"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
}

// =============================================================================
// PRODUCTION
// =============================================================================

type EntryRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	WorkerID  string `json:"worker_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

type UpdateEntryRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// GeneratePayrollRequest creates a period and its records. OvertimeHours is
// keyed by worker id.
type GeneratePayrollRequest struct {
	Name          string                     `json:"name" validate:"required,max=128"`
	PeriodStart   string                     `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd     string                     `json:"period_end" validate:"required,datetime=2006-01-02"`
	OvertimeHours map[string]decimal.Decimal `json:"overtime_hours"`
}

type ResumePayrollRequest struct {
	OvertimeHours map[string]decimal.Decimal `json:"overtime_hours"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
	// Month anchors the scenario's dates, "YYYY-MM". Defaults to the current month.
	Month string `json:"month" validate:"omitempty,datetime=2006-01"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
