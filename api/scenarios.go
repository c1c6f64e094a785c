/*
scenarios.go - Demo data loaders

PURPOSE:
  Populates the database with a small, realistic data set so the API can
  be explored without typing master data by hand. Each scenario is
  anchored to a month so its production days and commission windows fall
  inside a payroll period the caller can then generate.

AVAILABLE SCENARIOS:
  small-factory:        Three workers, two products with tiered slabs,
                        attendance, one open and several finalized days
  payslip-walkthrough:  One worker whose payslip exercises every component
                        (basic 50000, overtime, assembly, allowance,
                        commission, deduction)

HOW SCENARIOS WORK:
  Loaders write through the same services as the API where a rule applies
  (production entries, day finalization) and upsert master data with fixed
  IDs. Loading a scenario twice leaves the data as after the first load:
  entries that already exist or sit on finalized days are skipped, and
  deductions already consumed by a payroll are left alone.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "payslip-walkthrough", "month": "2025-03"}

SEE ALSO:
  - handlers.go: Service wiring
  - cmd/server/main.go: `seed` command
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/production"
)

// =============================================================================
// SCENARIO CATALOGUE
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler, month generic.Period) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "small-factory",
			Name:        "Small Factory",
			Description: "Three workers, two products with tiered slabs and a week of production. The fifth production day is left open.",
		},
		load: loadSmallFactory,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "payslip-walkthrough",
			Name:        "Payslip Walkthrough",
			Description: "One worker with every pay component. Generating the month with 10 overtime hours yields gross 57500 and net 57000.",
		},
		load: loadPayslipWalkthrough,
	},
}

// ScenarioResult tells the caller which period to generate next.
type ScenarioResult struct {
	Scenario ScenarioDTO    `json:"scenario"`
	Period   generic.Period `json:"period"`
}

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario loads a scenario anchored to a month.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Seed(r.Context(), req.ScenarioID, req.Month)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Seed loads the named scenario. An empty month means the current one.
func (h *Handler) Seed(ctx context.Context, id, month string) (*ScenarioResult, error) {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
			break
		}
	}
	if sc == nil {
		return nil, &generic.NotFoundError{Resource: "scenario", ID: id}
	}
	period, err := h.monthPeriod(month)
	if err != nil {
		return nil, err
	}
	if err := sc.load(ctx, h, period); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", id, err)
	}
	h.log.Info("scenario loaded", zap.String("scenario", id), zap.Stringer("period", period))
	return &ScenarioResult{Scenario: sc.ScenarioDTO, Period: period}, nil
}

func (h *Handler) monthPeriod(month string) (generic.Period, error) {
	var first generic.Date
	if month == "" {
		now := h.now()
		first = generic.NewDate(now.Year(), now.Month(), 1)
	} else {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return generic.Period{}, &generic.ValidationError{Field: "month", Reason: "use YYYY-MM"}
		}
		first = generic.NewDate(t.Year(), t.Month(), 1)
	}
	last := generic.DateOf(first.Time.AddDate(0, 1, -1))
	return generic.Period{Start: first, End: last}, nil
}

// =============================================================================
// LOADERS
// =============================================================================

func loadSmallFactory(ctx context.Context, h *Handler, month generic.Period) error {
	day := func(n int) generic.Date { return month.Start.AddDays(n - 1) }

	workers := []generic.Worker{
		{ID: "sf-w1", Code: "SF-001", Name: "Asha Rao", Designation: "Line Lead", Status: generic.WorkerActive},
		{ID: "sf-w2", Code: "SF-002", Name: "Bilal Khan", Designation: "Assembler", Status: generic.WorkerActive},
		{ID: "sf-w3", Code: "SF-003", Name: "Chen Wei", Designation: "Packer", Status: generic.WorkerActive},
	}
	profiles := []generic.SalaryProfile{
		{WorkerID: "sf-w1", BasicSalary: dec("30000"), OvertimeRate: dec("150"), WorkerType: generic.WorkerTypeBoth},
		{WorkerID: "sf-w2", BasicSalary: decimal.Zero, OvertimeRate: decimal.Zero, WorkerType: generic.WorkerTypePieceRate},
		{WorkerID: "sf-w3", BasicSalary: dec("18000"), OvertimeRate: dec("90"), WorkerType: generic.WorkerTypeSalary},
	}
	products := []generic.Product{
		{ID: "sf-p1", Code: "FAN-12", Name: "Table Fan"},
		{ID: "sf-p2", Code: "LMP-01", Name: "Desk Lamp"},
	}
	slabs := []generic.Slab{
		{ID: "sf-s1", ProductID: "sf-p1", QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("12")},
		{ID: "sf-s2", ProductID: "sf-p1", QtyFrom: 51, QtyTo: 100, RatePerUnit: dec("15")},
		{ID: "sf-s3", ProductID: "sf-p1", QtyFrom: 101, QtyTo: 1000, RatePerUnit: dec("18")},
		{ID: "sf-s4", ProductID: "sf-p2", QtyFrom: 1, QtyTo: 80, RatePerUnit: dec("6.5")},
		{ID: "sf-s5", ProductID: "sf-p2", QtyFrom: 81, QtyTo: 1000, RatePerUnit: dec("8")},
	}
	if err := seedMasterData(ctx, h.Store, workers, profiles, products, slabs); err != nil {
		return err
	}

	for n := 1; n <= 10; n++ {
		for _, wk := range workers {
			status := generic.AttendancePresent
			if wk.ID == "sf-w3" && n == 4 {
				status = generic.AttendanceLeave
			}
			if err := h.Store.SaveAttendance(ctx, generic.Attendance{WorkerID: wk.ID, Date: day(n), Status: status}); err != nil {
				return err
			}
		}
	}

	if err := seedCompensation(ctx, h.Store,
		[]generic.Allowance{
			{ID: "sf-a1", WorkerID: "sf-w1", Name: "Lead Allowance", Amount: dec("1500"), Frequency: generic.FrequencyMonthly, Active: true},
			{ID: "sf-a2", WorkerID: "sf-w2", Name: "Meal", Amount: dec("60"), Frequency: generic.FrequencyDaily, Active: true},
			{ID: "sf-a3", WorkerID: "sf-w3", Name: "Transport", Amount: dec("250"), Frequency: generic.FrequencyWeekly, Active: true},
		},
		[]generic.Commission{
			{ID: "sf-c1", WorkerID: "sf-w1", Series: "FAN-12 launch", Amount: dec("2000"), Window: generic.Period{Start: day(1), End: day(14)}, Approved: true},
		},
		[]generic.Deduction{
			{ID: "sf-d1", WorkerID: "sf-w2", Type: "Advance", Description: "Salary advance", Amount: dec("1000")},
		},
	); err != nil {
		return err
	}

	entries := []production.Entry{
		{Date: day(1), WorkerID: "sf-w1", ProductID: "sf-p1", Quantity: 40},
		{Date: day(1), WorkerID: "sf-w2", ProductID: "sf-p1", Quantity: 75},
		{Date: day(1), WorkerID: "sf-w2", ProductID: "sf-p2", Quantity: 30},
		{Date: day(2), WorkerID: "sf-w1", ProductID: "sf-p1", Quantity: 55},
		{Date: day(2), WorkerID: "sf-w2", ProductID: "sf-p1", Quantity: 120},
		{Date: day(3), WorkerID: "sf-w2", ProductID: "sf-p2", Quantity: 95},
		{Date: day(4), WorkerID: "sf-w1", ProductID: "sf-p2", Quantity: 20},
		{Date: day(4), WorkerID: "sf-w2", ProductID: "sf-p1", Quantity: 101},
		{Date: day(5), WorkerID: "sf-w2", ProductID: "sf-p1", Quantity: 60},
	}
	return seedProduction(ctx, h, entries, []generic.Date{day(1), day(2), day(3), day(4)})
}

func loadPayslipWalkthrough(ctx context.Context, h *Handler, month generic.Period) error {
	day := func(n int) generic.Date { return month.Start.AddDays(n - 1) }

	if err := seedMasterData(ctx, h.Store,
		[]generic.Worker{{ID: "pw-w1", Code: "PW-001", Name: "Priya Walker", Designation: "Technician", Status: generic.WorkerActive}},
		[]generic.SalaryProfile{{WorkerID: "pw-w1", BasicSalary: dec("50000"), OvertimeRate: dec("100"), WorkerType: generic.WorkerTypeBoth}},
		[]generic.Product{{ID: "pw-p1", Code: "WDG-1", Name: "Widget"}},
		[]generic.Slab{{ID: "pw-s1", ProductID: "pw-p1", QtyFrom: 1, QtyTo: 500, RatePerUnit: dec("10")}},
	); err != nil {
		return err
	}
	if err := seedCompensation(ctx, h.Store,
		[]generic.Allowance{{ID: "pw-a1", WorkerID: "pw-w1", Name: "Housing", Amount: dec("2000"), Frequency: generic.FrequencyMonthly, Active: true}},
		[]generic.Commission{{ID: "pw-c1", WorkerID: "pw-w1", Series: "S-1", Amount: dec("1500"), Window: generic.Period{Start: day(5), End: day(20)}, Approved: true}},
		[]generic.Deduction{{ID: "pw-d1", WorkerID: "pw-w1", Type: "Advance", Amount: dec("500")}},
	); err != nil {
		return err
	}
	return seedProduction(ctx, h,
		[]production.Entry{
			{Date: day(3), WorkerID: "pw-w1", ProductID: "pw-p1", Quantity: 100},
			{Date: day(4), WorkerID: "pw-w1", ProductID: "pw-p1", Quantity: 200},
		},
		[]generic.Date{day(3), day(4)},
	)
}

// =============================================================================
// HELPERS
// =============================================================================

func seedMasterData(ctx context.Context, st generic.Store, workers []generic.Worker, profiles []generic.SalaryProfile, products []generic.Product, slabs []generic.Slab) error {
	for _, w := range workers {
		if err := st.SaveWorker(ctx, w); err != nil {
			return fmt.Errorf("worker %s: %w", w.ID, err)
		}
	}
	for _, p := range profiles {
		if err := st.SaveSalaryProfile(ctx, p); err != nil {
			return fmt.Errorf("salary profile %s: %w", p.WorkerID, err)
		}
	}
	for _, p := range products {
		if err := st.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	// Fixed, non-overlapping ranges keyed by ID; saving again replaces them.
	for _, s := range slabs {
		if err := st.SaveSlab(ctx, s); err != nil {
			return fmt.Errorf("slab %s: %w", s.ID, err)
		}
	}
	return nil
}

func seedCompensation(ctx context.Context, st generic.Store, allowances []generic.Allowance, commissions []generic.Commission, deductions []generic.Deduction) error {
	for _, a := range allowances {
		if err := st.SaveAllowance(ctx, a); err != nil {
			return fmt.Errorf("allowance %s: %w", a.ID, err)
		}
	}
	for _, c := range commissions {
		if err := st.SaveCommission(ctx, c); err != nil {
			return fmt.Errorf("commission %s: %w", c.ID, err)
		}
	}
	for _, d := range deductions {
		existing, err := st.GetDeduction(ctx, d.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := st.SaveDeduction(ctx, d); err != nil {
			return fmt.Errorf("deduction %s: %w", d.ID, err)
		}
	}
	return nil
}

func seedProduction(ctx context.Context, h *Handler, entries []production.Entry, finalize []generic.Date) error {
	for _, e := range entries {
		_, err := h.Ledger.AddEntry(ctx, e)
		switch {
		case err == nil:
		case errors.Is(err, generic.ErrDuplicateEntry), errors.Is(err, generic.ErrDayLocked):
			// Already loaded.
		default:
			return fmt.Errorf("entry %s %s %s: %w", e.Date, e.WorkerID, e.ProductID, err)
		}
	}
	for _, d := range finalize {
		if _, err := h.Ledger.Finalize(ctx, d, "scenario-loader"); err != nil {
			return fmt.Errorf("finalize %s: %w", d, err)
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return generic.MustParseDecimal(s)
}
