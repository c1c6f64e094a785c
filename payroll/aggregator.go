/*
aggregator.go - One worker's pay for one payroll period

PURPOSE:
  Turns the production ledger and compensation master data into a single
  frozen PayrollRecord. Every figure on the record is computed here; the
  record is then written once and never recomputed.

CALCULATION (fixed order):
  1. Assembly     = sum of LineTotal over the worker's lines on Finalized
                    production days inside [Start, End]. Open days are ignored.
  2. Allowances   = Daily x effectiveDays, Weekly x workWeeks, Monthly and
                    OneTime unscaled; total rounded.
                      periodDays    = End - Start + 1
                      workWeeks     = max(1, round(periodDays / 7))
                      effectiveDays = presentDays if > 0 else periodDays
  3. Commissions  = approved commissions whose window lies entirely inside
                    the period; total rounded.
  4. Deductions   = every unapplied deduction, no date window; total rounded.
  5. Basic        = round(BasicSalary); OvertimePay = round(OvertimeRate x hours)
  6. Gross        = Basic + OvertimePay + Allowances + Commissions + Assembly
  7. Net          = max(0, Gross - Deductions)

  A worker without a salary profile gets zero basic and overtime and the
  record is flagged NoSalaryProfile.

ATOMICITY:
  Generate runs compute, SaveRecord and MarkDeductionsApplied in one
  transaction. A deduction is therefore consumed by exactly one record, and
  a failure leaves neither a record nor an applied flag behind.

SEE ALSO:
  - payroll/runner.go: Period creation and fan-out over workers
  - production/ledger.go: Where Finalized lines come from
  - generic/money.go: Round (half-up to whole units)
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	log *zap.Logger
	now func() time.Time
}

func NewAggregator(log *zap.Logger, now func() time.Time) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{log: log, now: now}
}

// Input identifies one worker's slice of a run.
type Input struct {
	Worker        generic.Worker
	Period        generic.PayrollPeriod
	OvertimeHours decimal.Decimal
}

// Computation is a record ready to persist plus the deductions it consumes.
type Computation struct {
	Record       generic.PayrollRecord
	DeductionIDs []string
}

// Compute reads everything the record needs from st and writes nothing.
func (a *Aggregator) Compute(ctx context.Context, st generic.Store, in Input) (*Computation, error) {
	if in.OvertimeHours.IsNegative() {
		return nil, &generic.ValidationError{Field: "overtime_hours", Reason: "must not be negative"}
	}
	period := in.Period.Period
	workerID := in.Worker.ID

	acc := newAccumulator(in)

	lines, err := st.FinalizedLines(ctx, workerID, period)
	if err != nil {
		return nil, fmt.Errorf("load production lines: %w", err)
	}
	acc.addAssembly(lines)

	presentDays, err := st.CountPresentDays(ctx, workerID, period)
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	allowances, err := st.ListAllowances(ctx, workerID, true)
	if err != nil {
		return nil, fmt.Errorf("load allowances: %w", err)
	}
	acc.addAllowances(allowances, presentDays, period.Len())

	commissions, err := st.ListCommissions(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("load commissions: %w", err)
	}
	acc.addCommissions(commissions, period)

	deductions, err := st.ListDeductions(ctx, workerID, true)
	if err != nil {
		return nil, fmt.Errorf("load deductions: %w", err)
	}
	acc.addDeductions(deductions)

	profile, err := st.GetSalaryProfile(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("load salary profile: %w", err)
	}
	if profile == nil {
		a.log.Warn("worker has no salary profile, basic and overtime are zero",
			zap.String("worker_id", string(workerID)),
			zap.String("period_id", in.Period.ID))
	}
	acc.addSalary(profile, in.OvertimeHours)

	rec := acc.finish()
	rec.ID = uuid.NewString()
	rec.CreatedAt = a.now().UTC()
	return &Computation{Record: rec, DeductionIDs: acc.deductionIDs}, nil
}

// Generate computes and persists one record in a single transaction. It fails
// with PeriodLockedError if the period was finalized in the meantime and with
// ErrDuplicateRecord if the worker already has a record for the period.
func (a *Aggregator) Generate(ctx context.Context, store generic.TxStore, in Input) (*generic.PayrollRecord, error) {
	var rec generic.PayrollRecord
	err := store.WithTx(ctx, func(tx generic.Store) error {
		period, err := tx.GetPeriod(ctx, in.Period.ID)
		if err != nil {
			return fmt.Errorf("load period: %w", err)
		}
		if period == nil {
			return &generic.NotFoundError{Resource: "payroll period", ID: in.Period.ID}
		}
		if !period.Status.Mutable() {
			return &generic.PeriodLockedError{PeriodID: period.ID}
		}
		in.Period = *period

		c, err := a.Compute(ctx, tx, in)
		if err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, c.Record); err != nil {
			return fmt.Errorf("save record for %s: %w", in.Worker.ID, err)
		}
		if len(c.DeductionIDs) > 0 {
			if err := tx.MarkDeductionsApplied(ctx, c.DeductionIDs, period.ID); err != nil {
				return fmt.Errorf("apply deductions: %w", err)
			}
		}
		rec = c.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// accumulator holds one worker's running totals. Each run owns its own.
type accumulator struct {
	rec          generic.PayrollRecord
	deductionIDs []string
}

func newAccumulator(in Input) *accumulator {
	return &accumulator{rec: generic.PayrollRecord{
		PeriodID:         in.Period.ID,
		WorkerID:         in.Worker.ID,
		WorkerName:       in.Worker.Name,
		BasicSalary:      decimal.Zero,
		OvertimeHours:    in.OvertimeHours,
		OvertimePay:      decimal.Zero,
		AllowancesTotal:  decimal.Zero,
		CommissionsTotal: decimal.Zero,
		AssemblyEarnings: decimal.Zero,
		DeductionsTotal:  decimal.Zero,
		PeriodDays:       in.Period.Period.Len(),
		AssemblyLines:    []generic.AssemblyLine{},
		AllowanceLines:   []generic.AllowanceLine{},
		DeductionLines:   []generic.DeductionLine{},
		CommissionLines:  []generic.CommissionLine{},
	}}
}

func (a *accumulator) addAssembly(lines []generic.ProductionLine) {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
		a.rec.AssemblyLines = append(a.rec.AssemblyLines, generic.AssemblyLine{
			Date:        l.Date,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			AppliedRate: l.AppliedRate,
			LineTotal:   l.LineTotal,
		})
	}
	a.rec.AssemblyEarnings = total
}

func (a *accumulator) addAllowances(allowances []generic.Allowance, presentDays, periodDays int) {
	a.rec.PresentDays = presentDays
	effectiveDays := periodDays
	if presentDays > 0 {
		effectiveDays = presentDays
	}
	weeks := WorkWeeks(periodDays)

	total := decimal.Zero
	for _, al := range allowances {
		mult := 1
		switch al.Frequency {
		case generic.FrequencyDaily:
			mult = effectiveDays
		case generic.FrequencyWeekly:
			mult = weeks
		}
		amount := al.Amount.Mul(decimal.NewFromInt(int64(mult)))
		total = total.Add(amount)
		a.rec.AllowanceLines = append(a.rec.AllowanceLines, generic.AllowanceLine{
			Name:       al.Name,
			Frequency:  al.Frequency,
			Amount:     al.Amount,
			Multiplier: mult,
			Total:      generic.Round(amount),
		})
	}
	a.rec.AllowancesTotal = generic.Round(total)
}

func (a *accumulator) addCommissions(commissions []generic.Commission, period generic.Period) {
	total := decimal.Zero
	for _, c := range commissions {
		if !c.Approved || !period.Covers(c.Window) {
			continue
		}
		total = total.Add(c.Amount)
		a.rec.CommissionLines = append(a.rec.CommissionLines, generic.CommissionLine{
			Series: c.Series,
			Amount: generic.Round(c.Amount),
		})
	}
	a.rec.CommissionsTotal = generic.Round(total)
}

func (a *accumulator) addDeductions(deductions []generic.Deduction) {
	total := decimal.Zero
	for _, d := range deductions {
		if d.Applied {
			continue
		}
		total = total.Add(d.Amount)
		a.deductionIDs = append(a.deductionIDs, d.ID)
		a.rec.DeductionLines = append(a.rec.DeductionLines, generic.DeductionLine{
			Type:        d.Type,
			Description: d.Description,
			Amount:      generic.Round(d.Amount),
		})
	}
	a.rec.DeductionsTotal = generic.Round(total)
}

func (a *accumulator) addSalary(profile *generic.SalaryProfile, overtimeHours decimal.Decimal) {
	if profile == nil {
		a.rec.NoSalaryProfile = true
		return
	}
	a.rec.BasicSalary = generic.Round(profile.BasicSalary)
	a.rec.OvertimePay = generic.Round(profile.OvertimeRate.Mul(overtimeHours))
}

func (a *accumulator) finish() generic.PayrollRecord {
	r := a.rec
	r.GrossPay = generic.Sum(r.BasicSalary, r.OvertimePay, r.AllowancesTotal, r.CommissionsTotal, r.AssemblyEarnings)
	r.NetPay = generic.MaxZero(r.GrossPay.Sub(r.DeductionsTotal))
	return r
}

// WorkWeeks is the Weekly allowance multiplier: periodDays/7 rounded half-up,
// never less than one.
func WorkWeeks(periodDays int) int {
	w := int(decimal.NewFromInt(int64(periodDays)).Div(decimal.NewFromInt(7)).Round(0).IntPart())
	if w < 1 {
		return 1
	}
	return w
}
