package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/metrics"
)

// SystemActor is recorded when a caller doesn't identify itself.
const SystemActor = "system"

// DefaultConcurrency bounds how many workers are aggregated at once.
const DefaultConcurrency = 4

type Config struct {
	// Concurrency is the number of workers aggregated in parallel.
	Concurrency int
	// RequireSalaryProfile rejects a run up front if any active worker
	// has no salary profile, instead of zero-filling basic and overtime.
	RequireSalaryProfile bool
}

// Runner creates payroll periods and fills them with one record per active worker.
type Runner struct {
	store   generic.TxStore
	agg     *Aggregator
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

type Option func(*Runner)

func WithMetrics(m *metrics.Recorder) Option { return func(r *Runner) { r.metrics = m } }
func WithClock(now func() time.Time) Option  { return func(r *Runner) { r.now = now } }

func NewRunner(store generic.TxStore, cfg Config, log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	r := &Runner{store: store, cfg: cfg, log: log.Named("payroll"), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.agg = NewAggregator(r.log, r.now)
	return r
}

// RunInput describes a payroll run. OvertimeHours is keyed by worker; a
// worker without an entry works no overtime.
type RunInput struct {
	Name          string
	Start         generic.Date
	End           generic.Date
	OvertimeHours map[generic.WorkerID]decimal.Decimal
	ActorID       string
}

func (in RunInput) validate() error {
	if in.Name == "" {
		return &generic.ValidationError{Field: "name", Reason: "required"}
	}
	if err := (generic.Period{Start: in.Start, End: in.End}).Validate(); err != nil {
		return err
	}
	return validateOvertime(in.OvertimeHours)
}

func validateOvertime(hours map[generic.WorkerID]decimal.Decimal) error {
	for id, h := range hours {
		if h.IsNegative() {
			return &generic.ValidationError{Field: "overtime_hours", Reason: "negative hours for worker " + string(id)}
		}
	}
	return nil
}

type RunResult struct {
	Period  generic.PayrollPeriod   `json:"period"`
	Records []generic.PayrollRecord `json:"records"`
}

// =============================================================================
// RUN
// =============================================================================

// Run creates an Open period for [Start, End] and generates a record for
// every active worker. The period is rejected if it intersects any existing
// period. If a worker fails, the period stays Open with the records written
// so far and Resume can complete it.
func (r *Runner) Run(ctx context.Context, in RunInput) (res *RunResult, err error) {
	start := r.now()
	defer func() { r.observeRun(start, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	actor := actorOrSystem(in.ActorID)
	requested := generic.Period{Start: in.Start, End: in.End}

	workers, err := r.store.ListWorkers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	if r.cfg.RequireSalaryProfile {
		if err := r.requireProfiles(ctx, workers); err != nil {
			return nil, err
		}
	}
	r.warnUnknownOvertime(workers, in.OvertimeHours)

	period := generic.PayrollPeriod{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Period:    requested,
		Status:    generic.StateOpen,
		CreatedAt: r.now().UTC(),
	}
	err = r.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := tx.ListPeriods(ctx)
		if err != nil {
			return fmt.Errorf("list periods: %w", err)
		}
		for _, p := range existing {
			if p.Period.Overlaps(requested) {
				return &generic.PeriodOverlapError{Requested: requested, Existing: p}
			}
		}
		return tx.SavePeriod(ctx, period)
	})
	if err != nil {
		return nil, err
	}

	records, err := r.generate(ctx, period, workers, in.OvertimeHours)
	if err != nil {
		return nil, err
	}
	if err := r.audit(ctx, period, actor, generic.AuditGenerate,
		fmt.Sprintf("Payroll generated for period: %s", period.Name)); err != nil {
		return nil, err
	}

	r.log.Info("payroll generated",
		zap.String("period_id", period.ID),
		zap.String("name", period.Name),
		zap.Stringer("period", period.Period),
		zap.Int("records", len(records)),
		zap.String("actor", actor))
	return &RunResult{Period: period, Records: records}, nil
}

// Resume generates records for the active workers that an interrupted run
// left without one. Existing records are not touched.
func (r *Runner) Resume(ctx context.Context, periodID string, overtime map[generic.WorkerID]decimal.Decimal, actorID string) (res *RunResult, err error) {
	start := r.now()
	defer func() { r.observeRun(start, err) }()

	if err := validateOvertime(overtime); err != nil {
		return nil, err
	}
	period, err := r.openPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}

	workers, err := r.store.ListWorkers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	existing, err := r.store.ListRecords(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	done := make(map[generic.WorkerID]bool, len(existing))
	for _, rec := range existing {
		done[rec.WorkerID] = true
	}
	var missing []generic.Worker
	for _, w := range workers {
		if !done[w.ID] {
			missing = append(missing, w)
		}
	}
	if r.cfg.RequireSalaryProfile {
		if err := r.requireProfiles(ctx, missing); err != nil {
			return nil, err
		}
	}

	if _, err := r.generate(ctx, *period, missing, overtime); err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		if err := r.audit(ctx, *period, actorOrSystem(actorID), generic.AuditGenerate,
			fmt.Sprintf("Payroll generated for period: %s (resumed, %d workers)", period.Name, len(missing))); err != nil {
			return nil, err
		}
	}

	records, err := r.store.ListRecords(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	r.log.Info("payroll resumed",
		zap.String("period_id", period.ID),
		zap.Int("generated", len(missing)),
		zap.Int("records", len(records)))
	return &RunResult{Period: *period, Records: records}, nil
}

// generate fans out over workers, one transaction each. Results come back in
// the order of workers.
func (r *Runner) generate(ctx context.Context, period generic.PayrollPeriod, workers []generic.Worker, overtime map[generic.WorkerID]decimal.Decimal) ([]generic.PayrollRecord, error) {
	records := make([]generic.PayrollRecord, len(workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, w := range workers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hours, ok := overtime[w.ID]
			if !ok {
				hours = decimal.Zero
			}
			rec, err := r.agg.Generate(gctx, r.store, Input{Worker: w, Period: period, OvertimeHours: hours})
			if err != nil {
				r.log.Error("payroll record failed",
					zap.String("period_id", period.ID),
					zap.String("worker_id", string(w.ID)),
					zap.Error(err))
				return err
			}
			records[i] = *rec
			r.metrics.RecordGenerated(rec.NetPay.InexactFloat64())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Runner) requireProfiles(ctx context.Context, workers []generic.Worker) error {
	var missing []generic.WorkerID
	for _, w := range workers {
		p, err := r.store.GetSalaryProfile(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("load salary profile: %w", err)
		}
		if p == nil {
			missing = append(missing, w.ID)
		}
	}
	if len(missing) > 0 {
		return &generic.MissingSalaryProfileError{WorkerIDs: missing}
	}
	return nil
}

func (r *Runner) warnUnknownOvertime(workers []generic.Worker, overtime map[generic.WorkerID]decimal.Decimal) {
	active := make(map[generic.WorkerID]bool, len(workers))
	for _, w := range workers {
		active[w.ID] = true
	}
	for id := range overtime {
		if !active[id] {
			r.log.Warn("overtime given for a worker who is not active, ignored", zap.String("worker_id", string(id)))
		}
	}
}

// =============================================================================
// FINALIZE
// =============================================================================

// Finalize locks a period. Finalized is terminal; finalizing again returns
// the period unchanged and writes no audit entry. A period with active
// workers still missing a record is refused until Resume fills them in.
func (r *Runner) Finalize(ctx context.Context, periodID, actorID string) (*generic.PayrollPeriod, error) {
	actor := actorOrSystem(actorID)
	var (
		result  generic.PayrollPeriod
		changed bool
	)
	err := r.store.WithTx(ctx, func(tx generic.Store) error {
		p, err := tx.GetPeriod(ctx, periodID)
		if err != nil {
			return fmt.Errorf("load period: %w", err)
		}
		if p == nil {
			return &generic.NotFoundError{Resource: "payroll period", ID: periodID}
		}
		next, err := p.Status.Finalize()
		if errors.Is(err, generic.ErrAlreadyFinalized) {
			result = *p
			return nil
		}
		if err := requireComplete(ctx, tx, p.ID); err != nil {
			return err
		}
		now := r.now().UTC()
		p.Status = next
		p.FinalizedAt = &now
		if err := tx.SavePeriod(ctx, *p); err != nil {
			return fmt.Errorf("save period: %w", err)
		}
		if err := tx.AppendAudit(ctx, generic.AuditEntry{
			ID:        uuid.NewString(),
			Timestamp: now,
			ActorID:   actor,
			Action:    generic.AuditFinalize,
			PeriodID:  p.ID,
			Detail:    fmt.Sprintf("Payroll finalized: %s", p.Name),
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		result = *p
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		r.log.Info("payroll finalized", zap.String("period_id", result.ID), zap.String("actor", actor))
	}
	return &result, nil
}

// requireComplete fails when an active worker has no record for the period,
// which is what an interrupted run leaves behind.
func requireComplete(ctx context.Context, tx generic.Store, periodID string) error {
	workers, err := tx.ListWorkers(ctx, true)
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	records, err := tx.ListRecords(ctx, periodID)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	done := make(map[generic.WorkerID]bool, len(records))
	for _, rec := range records {
		done[rec.WorkerID] = true
	}
	missing := 0
	for _, w := range workers {
		if !done[w.ID] {
			missing++
		}
	}
	if missing > 0 {
		return &generic.ValidationError{
			Field:  "period",
			Reason: fmt.Sprintf("%d active workers have no record, resume the period before finalizing", missing),
		}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// PeriodSummary is a period with its record count, for listings.
type PeriodSummary struct {
	generic.PayrollPeriod
	RecordCount int `json:"record_count"`
}

// List returns every period, most recent start first.
func (r *Runner) List(ctx context.Context) ([]PeriodSummary, error) {
	periods, err := r.store.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	out := make([]PeriodSummary, 0, len(periods))
	for _, p := range periods {
		records, err := r.store.ListRecords(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		out = append(out, PeriodSummary{PayrollPeriod: p, RecordCount: len(records)})
	}
	return out, nil
}

// Report is a period with its records and column totals.
type Report struct {
	Period          generic.PayrollPeriod   `json:"period"`
	Records         []generic.PayrollRecord `json:"records"`
	GrossTotal      decimal.Decimal         `json:"gross_total"`
	DeductionsTotal decimal.Decimal         `json:"deductions_total"`
	NetTotal        decimal.Decimal         `json:"net_total"`
}

func (r *Runner) Report(ctx context.Context, periodID string) (*Report, error) {
	p, err := r.store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load period: %w", err)
	}
	if p == nil {
		return nil, &generic.NotFoundError{Resource: "payroll period", ID: periodID}
	}
	records, err := r.store.ListRecords(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if records == nil {
		records = []generic.PayrollRecord{}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].WorkerName < records[j].WorkerName })

	rep := &Report{Period: *p, Records: records, GrossTotal: decimal.Zero, DeductionsTotal: decimal.Zero, NetTotal: decimal.Zero}
	for _, rec := range records {
		rep.GrossTotal = rep.GrossTotal.Add(rec.GrossPay)
		rep.DeductionsTotal = rep.DeductionsTotal.Add(rec.DeductionsTotal)
		rep.NetTotal = rep.NetTotal.Add(rec.NetPay)
	}
	return rep, nil
}

// Audit returns the audit trail of one period, oldest first.
func (r *Runner) Audit(ctx context.Context, periodID string) ([]generic.AuditEntry, error) {
	return r.store.QueryAudit(ctx, generic.AuditFilter{PeriodID: &periodID})
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *Runner) openPeriod(ctx context.Context, periodID string) (*generic.PayrollPeriod, error) {
	p, err := r.store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load period: %w", err)
	}
	if p == nil {
		return nil, &generic.NotFoundError{Resource: "payroll period", ID: periodID}
	}
	if !p.Status.Mutable() {
		return nil, &generic.PeriodLockedError{PeriodID: p.ID}
	}
	return p, nil
}

func (r *Runner) audit(ctx context.Context, p generic.PayrollPeriod, actor string, action generic.AuditAction, detail string) error {
	err := r.store.AppendAudit(ctx, generic.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: r.now().UTC(),
		ActorID:   actor,
		Action:    action,
		PeriodID:  p.ID,
		Detail:    detail,
	})
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (r *Runner) observeRun(start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case generic.IsClientError(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	r.metrics.PayrollRun(outcome, r.now().Sub(start))
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}
