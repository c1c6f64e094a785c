package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	day1 = generic.NewDate(2025, time.March, 3)
	day2 = generic.NewDate(2025, time.March, 4)
)

func TestNew_URIWithQuery(t *testing.T) {
	ctx := context.Background()

	// GIVEN two stores on the same shared-cache memory URI
	first, err := sqlite.New("file:payroll-uri?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	second, err := sqlite.New("file:payroll-uri?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	// WHEN one of them writes
	require.NoError(t, first.SaveWorker(ctx, generic.Worker{ID: "w1", Code: "W001", Name: "Asha", Status: generic.WorkerActive}))

	// THEN the other sees it
	w, err := second.GetWorker(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "Asha", w.Name)

	// AND foreign keys are still enforced
	err = first.SaveLine(ctx, generic.ProductionLine{
		ID: "l1", DayID: "no-such-day", Date: day1, WorkerID: "w1", ProductID: "p", ProductName: "Widget",
		Quantity: 1, AppliedRate: dec("1"), LineTotal: dec("1"), CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestSlabs_OrderedByLowerBound(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SaveSlab(ctx, generic.Slab{ID: "b", ProductID: "p", QtyFrom: 51, QtyTo: 100, RatePerUnit: dec("12.5")}))
	require.NoError(t, st.SaveSlab(ctx, generic.Slab{ID: "a", ProductID: "p", QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("10")}))

	slabs, err := st.ListSlabs(ctx, "p")
	require.NoError(t, err)
	require.Len(t, slabs, 2)
	assert.Equal(t, "a", slabs[0].ID)
	assert.True(t, slabs[1].RatePerUnit.Equal(dec("12.5")))

	missing, err := st.GetSlab(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLines_UniquePerDayWorkerProduct(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SaveDay(ctx, generic.ProductionDay{ID: "d1", Date: day1, Status: generic.StateOpen}))
	line := generic.ProductionLine{
		ID: "l1", DayID: "d1", Date: day1, WorkerID: "w1", ProductID: "p", ProductName: "Widget",
		Quantity: 7, AppliedRate: dec("12.5"), LineTotal: dec("88"), CreatedAt: time.Now(),
	}
	require.NoError(t, st.SaveLine(ctx, line))

	// Same key under a new ID is rejected by the schema.
	dup := line
	dup.ID = "l2"
	err := st.SaveLine(ctx, dup)
	assert.True(t, errors.Is(err, generic.ErrDuplicateEntry))

	// Same ID is an update.
	line.Quantity = 8
	line.LineTotal = dec("100")
	require.NoError(t, st.SaveLine(ctx, line))
	got, err := st.GetLine(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Quantity)
	assert.True(t, got.LineTotal.Equal(dec("100")))
	assert.Equal(t, day1, got.Date)
}

func TestDays_OnePerDate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SaveDay(ctx, generic.ProductionDay{ID: "d1", Date: day1, Status: generic.StateOpen}))
	err := st.SaveDay(ctx, generic.ProductionDay{ID: "d2", Date: day1, Status: generic.StateOpen})
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestFinalizedLines_SkipsOpenDays(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	now := time.Now()
	require.NoError(t, st.SaveDay(ctx, generic.ProductionDay{ID: "d1", Date: day1, Status: generic.StateFinalized, FinalizedAt: &now, FinalizedBy: "sup"}))
	require.NoError(t, st.SaveDay(ctx, generic.ProductionDay{ID: "d2", Date: day2, Status: generic.StateOpen}))
	for _, l := range []generic.ProductionLine{
		{ID: "l1", DayID: "d1", Date: day1, WorkerID: "w1", ProductID: "p", ProductName: "Widget", Quantity: 10, AppliedRate: dec("10"), LineTotal: dec("100"), CreatedAt: now},
		{ID: "l2", DayID: "d2", Date: day2, WorkerID: "w1", ProductID: "p", ProductName: "Widget", Quantity: 10, AppliedRate: dec("10"), LineTotal: dec("100"), CreatedAt: now},
	} {
		require.NoError(t, st.SaveLine(ctx, l))
	}

	lines, err := st.FinalizedLines(ctx, "w1", generic.Period{Start: day1, End: day2})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "l1", lines[0].ID)

	d, err := st.GetDay(ctx, day1)
	require.NoError(t, err)
	require.NotNil(t, d.FinalizedAt)
	assert.Equal(t, "sup", d.FinalizedBy)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.SaveWorker(ctx, generic.Worker{ID: "w1", Code: "W1", Name: "Asha", Status: generic.WorkerActive}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := st.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestDeductions_MarkApplied(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SaveDeduction(ctx, generic.Deduction{ID: "x1", WorkerID: "w1", Type: "Advance", Amount: dec("500")}))
	require.NoError(t, st.SaveDeduction(ctx, generic.Deduction{ID: "x2", WorkerID: "w2", Type: "Loan", Amount: dec("250")}))

	require.NoError(t, st.MarkDeductionsApplied(ctx, []string{"x1"}, "p1"))

	pending, err := st.ListDeductions(ctx, "", true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "x2", pending[0].ID)

	applied, err := st.GetDeduction(ctx, "x1")
	require.NoError(t, err)
	assert.True(t, applied.Applied)
	assert.Equal(t, "p1", applied.AppliedPeriodID)

	err = st.MarkDeductionsApplied(ctx, []string{"ghost"}, "p1")
	assert.True(t, generic.IsNotFound(err))
}

func TestRecords_InsertOnceWithLines(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SavePeriod(ctx, generic.PayrollPeriod{
		ID: "p1", Name: "March", Period: generic.Period{Start: day1, End: day2},
		Status: generic.StateOpen, CreatedAt: time.Now(),
	}))
	rec := generic.PayrollRecord{
		ID: "r1", PeriodID: "p1", WorkerID: "w1", WorkerName: "Asha",
		BasicSalary: dec("50000"), OvertimeHours: dec("10"), OvertimePay: dec("2000"),
		AllowancesTotal: dec("3000"), CommissionsTotal: dec("1000"), AssemblyEarnings: dec("1500"),
		DeductionsTotal: dec("500"), GrossPay: dec("57500"), NetPay: dec("57000"),
		PresentDays: 2, PeriodDays: 2, CreatedAt: time.Now(),
		AssemblyLines:  []generic.AssemblyLine{{Date: day1, ProductName: "Widget", Quantity: 150, AppliedRate: dec("10"), LineTotal: dec("1500")}},
		AllowanceLines: []generic.AllowanceLine{{Name: "Transport", Frequency: generic.FrequencyMonthly, Amount: dec("3000"), Multiplier: 1, Total: dec("3000")}},
		DeductionLines: []generic.DeductionLine{{Type: "Advance", Amount: dec("500")}},
	}
	require.NoError(t, st.SaveRecord(ctx, rec))

	again := rec
	again.ID = "r2"
	assert.ErrorIs(t, st.SaveRecord(ctx, again), generic.ErrDuplicateRecord)

	got, err := st.GetRecord(ctx, "p1", "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.NetPay.Equal(dec("57000")))
	require.Len(t, got.AssemblyLines, 1)
	assert.Equal(t, day1, got.AssemblyLines[0].Date)
	assert.Equal(t, 1, got.AllowanceLines[0].Multiplier)
	assert.Empty(t, got.CommissionLines)
}

func TestAudit_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	entries := []generic.AuditEntry{
		{ID: "a1", Timestamp: base, ActorID: "sup", Action: generic.AuditDayFinalize, Date: day1, Detail: "day"},
		{ID: "a2", Timestamp: base.Add(time.Minute), ActorID: "hr", Action: generic.AuditGenerate, PeriodID: "p1", Detail: "gen"},
		{ID: "a3", Timestamp: base.Add(2 * time.Minute), ActorID: "hr", Action: generic.AuditFinalize, PeriodID: "p1", Detail: "fin"},
	}
	for _, e := range entries {
		require.NoError(t, st.AppendAudit(ctx, e))
	}

	pid := "p1"
	got, err := st.QueryAudit(ctx, generic.AuditFilter{PeriodID: &pid})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, generic.AuditGenerate, got[0].Action)

	from := base.Add(30 * time.Second)
	got, err = st.QueryAudit(ctx, generic.AuditFilter{From: &from, Actions: []generic.AuditAction{generic.AuditFinalize, generic.AuditDayFinalize}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ID)

	all, err := st.QueryAudit(ctx, generic.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, day1, all[0].Date)
	assert.True(t, all[1].Date.IsZero())
}

func TestNew_FileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "payroll.db")

	st, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, st.SaveProduct(ctx, generic.Product{ID: "p", Code: "P", Name: "Widget"}))
	require.NoError(t, st.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()
	p, err := reopened.GetProduct(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Widget", p.Name)
}
