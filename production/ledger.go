/*
ledger.go - Production day ledger with Open/Finalized locking

PURPOSE:
  Records what each worker produced each day and prices it with the
  product's incentive slabs. A supervisor finalizes the day once the
  numbers are checked; from then on the day's lines are frozen and only
  Finalized days count toward payroll.

STATE MACHINE (generic.LockState):
  (no day) --first entry--> Open --Finalize--> Finalized --Unlock--> Open

  - The day row is created lazily by the first entry for its date.
  - Finalizing a Finalized day is a no-op success.
  - Unlock is an administrative override; access control is the caller's job.

INVARIANTS:
  1. No line is added, changed or removed while its day is Finalized.
  2. At most one line per (day, worker, product). A second entry is a
     DuplicateEntryError, never a merge.
  3. AppliedRate is captured when the line is written. Later slab edits
     do not reprice existing lines.

ATOMICITY:
  Every operation is one WithTx: load the day, check its state, write.
  Finalize runs the same way, so an entry either lands before the day is
  finalized (and is frozen with it) or sees the Finalized state and fails.

CHECK ORDER FOR AddEntry:
  input validation -> DayLocked -> DuplicateEntry -> worker/product exist
  -> NoMatchingSlab -> write

SEE ALSO:
  - slab/slab.go: Match and LineTotal
  - generic/lockstate.go: Transition functions
  - payroll/aggregator.go: Reads Finalized lines
*/
package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/metrics"
	"github.com/warp/payroll-engine/slab"
)

// SystemActor is recorded when a caller doesn't identify itself.
const SystemActor = "system"

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store   generic.TxStore
	log     *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

type Option func(*Ledger)

func WithMetrics(m *metrics.Recorder) Option { return func(l *Ledger) { l.metrics = m } }
func WithClock(now func() time.Time) Option  { return func(l *Ledger) { l.now = now } }

func NewLedger(store generic.TxStore, log *zap.Logger, opts ...Option) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{store: store, log: log.Named("production"), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Entry is one worker's output of one product on one date.
type Entry struct {
	Date      generic.Date
	WorkerID  generic.WorkerID
	ProductID generic.ProductID
	Quantity  int
}

func (e Entry) validate() error {
	if e.Date.IsZero() {
		return &generic.ValidationError{Field: "date", Reason: "required"}
	}
	if e.WorkerID == "" {
		return &generic.ValidationError{Field: "worker_id", Reason: "required"}
	}
	if e.ProductID == "" {
		return &generic.ValidationError{Field: "product_id", Reason: "required"}
	}
	return validateQuantity(e.Quantity)
}

func validateQuantity(qty int) error {
	if qty < 1 {
		return &generic.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	return nil
}

// =============================================================================
// ENTRY OPERATIONS
// =============================================================================

// AddEntry records an entry, creating the day if this is its first line.
func (l *Ledger) AddEntry(ctx context.Context, e Entry) (*generic.ProductionLine, error) {
	if err := e.validate(); err != nil {
		l.metrics.ProductionEntry("add", metrics.OutcomeRejected)
		return nil, err
	}

	var line generic.ProductionLine
	err := l.store.WithTx(ctx, func(tx generic.Store) error {
		day, err := tx.GetDay(ctx, e.Date)
		if err != nil {
			return fmt.Errorf("load day: %w", err)
		}
		if day != nil {
			if !day.Status.Mutable() {
				return &generic.DayLockedError{Date: e.Date}
			}
			existing, err := tx.FindLine(ctx, day.ID, e.WorkerID, e.ProductID)
			if err != nil {
				return fmt.Errorf("find line: %w", err)
			}
			if existing != nil {
				return &generic.DuplicateEntryError{Date: e.Date, WorkerID: e.WorkerID, ProductID: e.ProductID, LineID: existing.ID}
			}
		}

		if err := requireActiveWorker(ctx, tx, e.WorkerID); err != nil {
			return err
		}
		product, err := tx.GetProduct(ctx, e.ProductID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		if product == nil {
			return &generic.NotFoundError{Resource: "product", ID: string(e.ProductID)}
		}

		quote, err := quoteTx(ctx, tx, e.ProductID, e.Quantity)
		if err != nil {
			return err
		}

		if day == nil {
			day = &generic.ProductionDay{ID: uuid.NewString(), Date: e.Date, Status: generic.StateOpen}
			if err := tx.SaveDay(ctx, *day); err != nil {
				return fmt.Errorf("create day: %w", err)
			}
		}

		line = generic.ProductionLine{
			ID:          uuid.NewString(),
			DayID:       day.ID,
			Date:        e.Date,
			WorkerID:    e.WorkerID,
			ProductID:   e.ProductID,
			ProductName: product.Name,
			Quantity:    e.Quantity,
			AppliedRate: quote.Rate,
			LineTotal:   quote.Total,
			CreatedAt:   l.now().UTC(),
		}
		if err := tx.SaveLine(ctx, line); err != nil {
			if errors.Is(err, generic.ErrDuplicateEntry) {
				return &generic.DuplicateEntryError{Date: e.Date, WorkerID: e.WorkerID, ProductID: e.ProductID}
			}
			return fmt.Errorf("save line: %w", err)
		}
		return nil
	})
	if err != nil {
		l.observe("add", err)
		return nil, err
	}
	l.observe("add", nil)
	l.log.Debug("production entry added",
		zap.Stringer("date", e.Date),
		zap.String("worker_id", string(e.WorkerID)),
		zap.String("product_id", string(e.ProductID)),
		zap.Int("quantity", e.Quantity),
		zap.String("line_total", line.LineTotal.String()))
	return &line, nil
}

// UpdateEntry changes a line's quantity and re-prices it at the current slabs.
func (l *Ledger) UpdateEntry(ctx context.Context, lineID string, quantity int) (*generic.ProductionLine, error) {
	if err := validateQuantity(quantity); err != nil {
		l.metrics.ProductionEntry("update", metrics.OutcomeRejected)
		return nil, err
	}

	var line generic.ProductionLine
	err := l.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := lockedLine(ctx, tx, lineID)
		if err != nil {
			return err
		}
		quote, err := quoteTx(ctx, tx, existing.ProductID, quantity)
		if err != nil {
			return err
		}
		line = *existing
		line.Quantity = quantity
		line.AppliedRate = quote.Rate
		line.LineTotal = quote.Total
		return tx.SaveLine(ctx, line)
	})
	l.observe("update", err)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// RemoveEntry deletes a line from an Open day.
func (l *Ledger) RemoveEntry(ctx context.Context, lineID string) error {
	err := l.store.WithTx(ctx, func(tx generic.Store) error {
		if _, err := lockedLine(ctx, tx, lineID); err != nil {
			return err
		}
		return tx.DeleteLine(ctx, lineID)
	})
	l.observe("remove", err)
	return err
}

// lockedLine loads a line and fails if it is missing or its day is Finalized.
func lockedLine(ctx context.Context, tx generic.Store, lineID string) (*generic.ProductionLine, error) {
	line, err := tx.GetLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("load line: %w", err)
	}
	if line == nil {
		return nil, &generic.NotFoundError{Resource: "line", ID: lineID}
	}
	day, err := tx.GetDay(ctx, line.Date)
	if err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}
	if day != nil && !day.Status.Mutable() {
		return nil, &generic.DayLockedError{Date: line.Date}
	}
	return line, nil
}

func quoteTx(ctx context.Context, tx generic.Store, productID generic.ProductID, qty int) (slab.Quote, error) {
	slabs, err := tx.ListSlabs(ctx, productID)
	if err != nil {
		return slab.Quote{}, fmt.Errorf("load slabs: %w", err)
	}
	return slab.QuoteFor(slabs, productID, qty)
}

func requireActiveWorker(ctx context.Context, tx generic.Store, id generic.WorkerID) error {
	w, err := tx.GetWorker(ctx, id)
	if err != nil {
		return fmt.Errorf("load worker: %w", err)
	}
	if w == nil {
		return &generic.NotFoundError{Resource: "worker", ID: string(id)}
	}
	if !w.IsActive() {
		return &generic.ValidationError{Field: "worker_id", Reason: "worker " + string(id) + " is inactive"}
	}
	return nil
}

func (l *Ledger) observe(op string, err error) {
	switch {
	case err == nil:
		l.metrics.ProductionEntry(op, metrics.OutcomeOK)
	case generic.IsClientError(err):
		l.metrics.ProductionEntry(op, metrics.OutcomeRejected)
	default:
		l.metrics.ProductionEntry(op, metrics.OutcomeError)
		l.log.Error("production entry failed", zap.String("operation", op), zap.Error(err))
	}
}

// =============================================================================
// DAY LIFECYCLE
// =============================================================================

// Finalize locks a day. A day that is already Finalized is returned unchanged.
func (l *Ledger) Finalize(ctx context.Context, date generic.Date, actor string) (*generic.ProductionDay, error) {
	return l.transition(ctx, date, actor, generic.AuditDayFinalize)
}

// Unlock re-opens a Finalized day. An Open day is returned unchanged.
func (l *Ledger) Unlock(ctx context.Context, date generic.Date, actor string) (*generic.ProductionDay, error) {
	return l.transition(ctx, date, actor, generic.AuditDayUnlock)
}

func (l *Ledger) transition(ctx context.Context, date generic.Date, actor string, action generic.AuditAction) (*generic.ProductionDay, error) {
	if actor == "" {
		actor = SystemActor
	}
	var (
		result  generic.ProductionDay
		changed bool
	)
	err := l.store.WithTx(ctx, func(tx generic.Store) error {
		day, err := tx.GetDay(ctx, date)
		if err != nil {
			return fmt.Errorf("load day: %w", err)
		}
		if day == nil {
			return &generic.DayNotFoundError{Date: date}
		}

		var next generic.LockState
		if action == generic.AuditDayFinalize {
			next, err = day.Status.Finalize()
		} else {
			next, err = day.Status.Unlock()
		}
		if errors.Is(err, generic.ErrAlreadyFinalized) || errors.Is(err, generic.ErrAlreadyOpen) {
			result = *day
			return nil
		}

		now := l.now().UTC()
		day.Status = next
		if next == generic.StateFinalized {
			day.FinalizedAt = &now
			day.FinalizedBy = actor
		} else {
			day.FinalizedAt = nil
			day.FinalizedBy = ""
		}
		if err := tx.SaveDay(ctx, *day); err != nil {
			return fmt.Errorf("save day: %w", err)
		}

		lines, err := tx.ListLines(ctx, day.ID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}
		if err := tx.AppendAudit(ctx, generic.AuditEntry{
			ID:        uuid.NewString(),
			Timestamp: now,
			ActorID:   actor,
			Action:    action,
			Date:      date,
			Detail:    fmt.Sprintf("Production day %s %s (%d entries)", date, next, len(lines)),
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		result = *day
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.metrics.DayTransition(string(result.Status))
		l.log.Info("production day transitioned",
			zap.Stringer("date", date),
			zap.String("status", string(result.Status)),
			zap.String("actor", actor))
	}
	return &result, nil
}
