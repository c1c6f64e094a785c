package production_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/metrics"
	"github.com/warp/payroll-engine/production"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var march10 = generic.NewDate(2025, time.March, 10)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// backends runs a test against both store implementations.
func backends(t *testing.T, run func(t *testing.T, st generic.TxStore)) {
	t.Run("memory", func(t *testing.T) { run(t, seed(t, store.NewMemory())) })
	t.Run("sqlite", func(t *testing.T) {
		db, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		run(t, seed(t, db))
	})
}

// seed: workers w1, w2 (active), w3 (inactive); product "widget" with
// slabs [1,50] @ 10 and [51,100] @ 12.5.
func seed(t *testing.T, st generic.TxStore) generic.TxStore {
	ctx := context.Background()
	require.NoError(t, st.SaveWorker(ctx, generic.Worker{ID: "w1", Code: "W001", Name: "Asha", Status: generic.WorkerActive}))
	require.NoError(t, st.SaveWorker(ctx, generic.Worker{ID: "w2", Code: "W002", Name: "Bilal", Status: generic.WorkerActive}))
	require.NoError(t, st.SaveWorker(ctx, generic.Worker{ID: "w3", Code: "W003", Name: "Chen", Status: generic.WorkerInactive}))
	require.NoError(t, st.SaveProduct(ctx, generic.Product{ID: "widget", Code: "WDG", Name: "Widget"}))
	require.NoError(t, st.SaveProduct(ctx, generic.Product{ID: "gadget", Code: "GDG", Name: "Gadget"}))
	require.NoError(t, st.SaveSlab(ctx, generic.Slab{ID: "s1", ProductID: "widget", QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("10")}))
	require.NoError(t, st.SaveSlab(ctx, generic.Slab{ID: "s2", ProductID: "widget", QtyFrom: 51, QtyTo: 100, RatePerUnit: dec("12.5")}))
	require.NoError(t, st.SaveSlab(ctx, generic.Slab{ID: "s3", ProductID: "gadget", QtyFrom: 1, QtyTo: 10, RatePerUnit: dec("12.5")}))
	return st
}

func newTestLedger(t *testing.T, st generic.TxStore) *production.Ledger {
	return production.NewLedger(st, zaptest.NewLogger(t), production.WithMetrics(metrics.New()))
}

func entry(worker generic.WorkerID, product generic.ProductID, qty int) production.Entry {
	return production.Entry{Date: march10, WorkerID: worker, ProductID: product, Quantity: qty}
}

// =============================================================================
// ADD ENTRY
// =============================================================================

func TestLedger_AddEntry_CreatesDayLazily(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		day, err := st.GetDay(ctx, march10)
		require.NoError(t, err)
		require.Nil(t, day, "no day before the first entry")

		line, err := ledger.AddEntry(ctx, entry("w1", "gadget", 7))
		require.NoError(t, err)
		assert.True(t, line.AppliedRate.Equal(dec("12.5")))
		assert.True(t, line.LineTotal.Equal(dec("88")), "7 x 12.5 = 87.5 rounds to 88")
		assert.Equal(t, "Gadget", line.ProductName)

		day, err = st.GetDay(ctx, march10)
		require.NoError(t, err)
		require.NotNil(t, day)
		assert.Equal(t, generic.StateOpen, day.Status)
		assert.Equal(t, day.ID, line.DayID)
	})
}

func TestLedger_AddEntry_DuplicateRejectedNotMerged(t *testing.T) {
	// GIVEN: w1 already logged 40 widgets on March 10
	// WHEN: Logging widgets for w1 on March 10 again
	// THEN: DuplicateEntryError; the original line is untouched

	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		first, err := ledger.AddEntry(ctx, entry("w1", "widget", 40))
		require.NoError(t, err)

		_, err = ledger.AddEntry(ctx, entry("w1", "widget", 5))
		var dup *generic.DuplicateEntryError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, generic.WorkerID("w1"), dup.WorkerID)
		assert.Equal(t, first.ID, dup.LineID)

		sheet, err := ledger.Sheet(ctx, march10)
		require.NoError(t, err)
		require.Len(t, sheet.Lines, 1)
		assert.Equal(t, 40, sheet.Lines[0].Quantity)

		// Different product, same worker and day, is fine.
		_, err = ledger.AddEntry(ctx, entry("w1", "gadget", 3))
		assert.NoError(t, err)
	})
}

func TestLedger_AddEntry_NoMatchingSlab(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		_, err := ledger.AddEntry(ctx, entry("w1", "widget", 101))
		var noSlab *generic.NoMatchingSlabError
		require.ErrorAs(t, err, &noSlab)
		assert.Equal(t, 101, noSlab.Quantity)

		day, err := st.GetDay(ctx, march10)
		require.NoError(t, err)
		assert.Nil(t, day, "a rejected entry does not create the day")
	})
}

func TestLedger_AddEntry_Validation(t *testing.T) {
	ledger := newTestLedger(t, seed(t, store.NewMemory()))
	ctx := context.Background()

	for _, e := range []production.Entry{
		entry("w1", "widget", 0),
		entry("", "widget", 1),
		entry("w1", "", 1),
		{WorkerID: "w1", ProductID: "widget", Quantity: 1},
	} {
		_, err := ledger.AddEntry(ctx, e)
		assert.ErrorIs(t, err, generic.ErrValidation, "%+v", e)
	}

	_, err := ledger.AddEntry(ctx, entry("w3", "widget", 1))
	assert.ErrorIs(t, err, generic.ErrValidation, "inactive worker")

	_, err = ledger.AddEntry(ctx, entry("ghost", "widget", 1))
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// LOCKING
// =============================================================================

func TestLedger_FinalizedDayRejectsMutations(t *testing.T) {
	// GIVEN: March 10 has one line and is finalized
	// WHEN: Adding, updating or removing lines
	// THEN: DayLockedError each time, line count unchanged

	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		line, err := ledger.AddEntry(ctx, entry("w1", "widget", 10))
		require.NoError(t, err)
		_, err = ledger.Finalize(ctx, march10, "supervisor-1")
		require.NoError(t, err)

		_, err = ledger.AddEntry(ctx, entry("w2", "widget", 10))
		var locked *generic.DayLockedError
		require.ErrorAs(t, err, &locked)
		assert.True(t, locked.Date.Equal(march10))

		_, err = ledger.UpdateEntry(ctx, line.ID, 20)
		assert.ErrorIs(t, err, generic.ErrDayLocked)

		err = ledger.RemoveEntry(ctx, line.ID)
		assert.ErrorIs(t, err, generic.ErrDayLocked)

		sheet, err := ledger.Sheet(ctx, march10)
		require.NoError(t, err)
		require.Len(t, sheet.Lines, 1)
		assert.Equal(t, 10, sheet.Lines[0].Quantity)
	})
}

func TestLedger_LockCheckedBeforeDuplicate(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		_, err := ledger.AddEntry(ctx, entry("w1", "widget", 10))
		require.NoError(t, err)
		_, err = ledger.Finalize(ctx, march10, "")
		require.NoError(t, err)

		_, err = ledger.AddEntry(ctx, entry("w1", "widget", 10))
		assert.ErrorIs(t, err, generic.ErrDayLocked)
	})
}

func TestLedger_Finalize_IsIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		_, err := ledger.AddEntry(ctx, entry("w1", "widget", 10))
		require.NoError(t, err)

		first, err := ledger.Finalize(ctx, march10, "supervisor-1")
		require.NoError(t, err)
		assert.Equal(t, generic.StateFinalized, first.Status)
		require.NotNil(t, first.FinalizedAt)
		before, err := ledger.Sheet(ctx, march10)
		require.NoError(t, err)
		require.Len(t, before.Lines, 1)

		second, err := ledger.Finalize(ctx, march10, "supervisor-2")
		require.NoError(t, err)
		assert.Equal(t, generic.StateFinalized, second.Status)
		assert.Equal(t, "supervisor-1", second.FinalizedBy, "no-op keeps the original finalizer")

		after, err := ledger.Sheet(ctx, march10)
		require.NoError(t, err)
		assert.Equal(t, before.Lines, after.Lines, "lines are untouched by a repeated finalize")
		assert.Equal(t, before.Day, after.Day)

		entries, err := st.QueryAudit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditDayFinalize}})
		require.NoError(t, err)
		assert.Len(t, entries, 1, "only the real transition is audited")
	})
}

func TestLedger_Finalize_DayNotFound(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)

		_, err := ledger.Finalize(context.Background(), march10, "")
		var notFound *generic.DayNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.True(t, notFound.Date.Equal(march10))

		_, err = ledger.Unlock(context.Background(), march10, "")
		assert.ErrorIs(t, err, generic.ErrDayNotFound)
	})
}

func TestLedger_Unlock_ReopensDay(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		line, err := ledger.AddEntry(ctx, entry("w1", "widget", 10))
		require.NoError(t, err)
		_, err = ledger.Finalize(ctx, march10, "supervisor-1")
		require.NoError(t, err)

		day, err := ledger.Unlock(ctx, march10, "admin")
		require.NoError(t, err)
		assert.Equal(t, generic.StateOpen, day.Status)
		assert.Nil(t, day.FinalizedAt)

		// Mutations work again.
		updated, err := ledger.UpdateEntry(ctx, line.ID, 60)
		require.NoError(t, err)
		assert.True(t, updated.AppliedRate.Equal(dec("12.5")), "re-matched into the second tier")
		assert.True(t, updated.LineTotal.Equal(dec("750")))

		// Unlocking an Open day is a no-op.
		again, err := ledger.Unlock(ctx, march10, "admin")
		require.NoError(t, err)
		assert.Equal(t, generic.StateOpen, again.Status)

		audit, err := st.QueryAudit(ctx, generic.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, audit, 2)
		assert.Equal(t, generic.AuditDayFinalize, audit[0].Action)
		assert.Equal(t, generic.AuditDayUnlock, audit[1].Action)
		assert.Equal(t, "admin", audit[1].ActorID)
	})
}

func TestLedger_RemoveEntry(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		line, err := ledger.AddEntry(ctx, entry("w1", "widget", 10))
		require.NoError(t, err)

		require.NoError(t, ledger.RemoveEntry(ctx, line.ID))
		assert.True(t, generic.IsNotFound(ledger.RemoveEntry(ctx, line.ID)))

		// The slot is free again.
		_, err = ledger.AddEntry(ctx, entry("w1", "widget", 12))
		assert.NoError(t, err)
	})
}

func TestLedger_RateCapturedAtWriteTime(t *testing.T) {
	// GIVEN: A line priced at 10/unit
	// WHEN: The slab rate changes afterwards
	// THEN: The stored line keeps 10/unit

	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		line, err := ledger.AddEntry(ctx, entry("w1", "widget", 10))
		require.NoError(t, err)

		require.NoError(t, st.SaveSlab(ctx, generic.Slab{ID: "s1", ProductID: "widget", QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("99")}))

		stored, err := st.GetLine(ctx, line.ID)
		require.NoError(t, err)
		assert.True(t, stored.AppliedRate.Equal(dec("10")))
		assert.True(t, stored.LineTotal.Equal(dec("100")))
	})
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestLedger_ConcurrentAddsAndFinalize(t *testing.T) {
	// Entries racing a finalize either land before it (and are frozen with
	// the day) or fail with DayLockedError. Nothing lands after.

	st := seed(t, store.NewMemory())
	ledger := newTestLedger(t, st)
	ctx := context.Background()

	// Make sure the day exists so Finalize can't hit DayNotFound.
	_, err := ledger.AddEntry(ctx, entry("w1", "gadget", 1))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for qty := 1; qty <= 50; qty++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			worker := generic.WorkerID("w1")
			if qty%2 == 0 {
				worker = "w2"
			}
			// Each (worker, product) pair gets one winner; the rest are duplicates.
			_, err := ledger.AddEntry(ctx, production.Entry{Date: march10, WorkerID: worker, ProductID: "widget", Quantity: qty})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, generic.ErrDayLocked), errors.Is(err, generic.ErrDuplicateEntry):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(qty)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := ledger.Finalize(ctx, march10, "supervisor-1")
		assert.NoError(t, err)
	}()
	wg.Wait()

	sheet, err := ledger.Sheet(ctx, march10)
	require.NoError(t, err)
	assert.Equal(t, generic.StateFinalized, sheet.Status())
	assert.Len(t, sheet.Lines, succeeded+1)

	_, err = ledger.AddEntry(ctx, entry("w2", "gadget", 1))
	assert.ErrorIs(t, err, generic.ErrDayLocked)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestLedger_Summary(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()

		_, err := ledger.AddEntry(ctx, entry("w1", "widget", 40)) // 400
		require.NoError(t, err)
		_, err = ledger.AddEntry(ctx, entry("w1", "gadget", 7)) // 88
		require.NoError(t, err)
		_, err = ledger.AddEntry(ctx, entry("w2", "widget", 60)) // 750
		require.NoError(t, err)

		summary, err := ledger.Summary(ctx, march10)
		require.NoError(t, err)
		assert.Equal(t, generic.StateOpen, summary.Status)
		assert.True(t, summary.FactoryTotal.Equal(dec("1238")))
		require.Len(t, summary.Workers, 2)
		assert.Equal(t, "Bilal", summary.Workers[0].WorkerName)
		assert.True(t, summary.Workers[1].Earnings.Equal(dec("488")))
		assert.Equal(t, 47, summary.Workers[1].Quantity)
	})
}

func TestLedger_RangeSummary(t *testing.T) {
	backends(t, func(t *testing.T, st generic.TxStore) {
		ledger := newTestLedger(t, st)
		ctx := context.Background()
		march11 := march10.AddDays(1)
		april1 := generic.NewDate(2025, time.April, 1)

		// GIVEN a finalized day, an open day and a day outside the range
		_, err := ledger.AddEntry(ctx, entry("w1", "widget", 40)) // 400
		require.NoError(t, err)
		_, err = ledger.AddEntry(ctx, entry("w2", "gadget", 4)) // 50
		require.NoError(t, err)
		_, err = ledger.Finalize(ctx, march10, "supervisor")
		require.NoError(t, err)
		_, err = ledger.AddEntry(ctx, production.Entry{Date: march11, WorkerID: "w1", ProductID: "widget", Quantity: 60}) // 750
		require.NoError(t, err)
		_, err = ledger.AddEntry(ctx, production.Entry{Date: april1, WorkerID: "w2", ProductID: "widget", Quantity: 10})
		require.NoError(t, err)

		// WHEN March is summarised
		march := generic.Period{Start: generic.NewDate(2025, time.March, 1), End: generic.NewDate(2025, time.March, 31)}
		report, err := ledger.RangeSummary(ctx, march)
		require.NoError(t, err)

		// THEN both March days count and April is left out
		assert.Equal(t, 2, report.WorkingDays)
		assert.Equal(t, 1, report.OpenDays)
		assert.True(t, report.FactoryTotal.Equal(dec("1200")), "factory = %s", report.FactoryTotal)

		require.Len(t, report.Workers, 2)
		assert.Equal(t, "Asha", report.Workers[0].WorkerName)
		assert.Equal(t, 2, report.Workers[0].Entries)
		assert.Equal(t, 100, report.Workers[0].Quantity)
		assert.True(t, report.Workers[0].Earnings.Equal(dec("1150")))
		assert.True(t, report.Workers[1].Earnings.Equal(dec("50")))

		require.Len(t, report.Products, 2)
		assert.Equal(t, generic.ProductID("widget"), report.Products[0].ProductID)
		assert.Equal(t, 100, report.Products[0].Quantity)
		assert.True(t, report.Products[0].Total.Equal(dec("1150")))
		assert.Equal(t, "Gadget", report.Products[1].ProductName)
		assert.Equal(t, 4, report.Products[1].Quantity)
	})
}

func TestLedger_RangeSummary_EmptyAndInvalid(t *testing.T) {
	ledger := newTestLedger(t, seed(t, store.NewMemory()))
	ctx := context.Background()

	report, err := ledger.RangeSummary(ctx, generic.Period{Start: march10, End: march10})
	require.NoError(t, err)
	assert.Zero(t, report.WorkingDays)
	assert.Empty(t, report.Workers)
	assert.Empty(t, report.Products)
	assert.True(t, report.FactoryTotal.IsZero())

	_, err = ledger.RangeSummary(ctx, generic.Period{Start: march10, End: march10.AddDays(-1)})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestLedger_Sheet_EmptyDate(t *testing.T) {
	ledger := newTestLedger(t, seed(t, store.NewMemory()))

	sheet, err := ledger.Sheet(context.Background(), march10)
	require.NoError(t, err)
	assert.Nil(t, sheet.Day)
	assert.Empty(t, sheet.Lines)
	assert.Equal(t, generic.StateOpen, sheet.Status())
}
