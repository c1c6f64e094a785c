package slab_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/slab"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tiers(product generic.ProductID) []generic.Slab {
	return []generic.Slab{
		{ID: "s1", ProductID: product, QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("10")},
		{ID: "s2", ProductID: product, QtyFrom: 51, QtyTo: 100, RatePerUnit: dec("12.5")},
	}
}

func newTestService(t *testing.T) (*slab.Service, *store.Memory) {
	mem := store.NewMemory()
	require.NoError(t, mem.SaveProduct(context.Background(), generic.Product{ID: "widget", Code: "W", Name: "Widget"}))
	return slab.NewService(mem, zaptest.NewLogger(t)), mem
}

// =============================================================================
// MATCHING
// =============================================================================

func TestMatch_PicksCoveringTier(t *testing.T) {
	slabs := tiers("widget")

	cases := []struct {
		qty    int
		wantID string
	}{
		{1, "s1"}, {7, "s1"}, {50, "s1"}, {51, "s2"}, {100, "s2"},
	}
	for _, tc := range cases {
		got, ok := slab.Match(slabs, tc.qty)
		require.True(t, ok, "qty %d should match", tc.qty)
		assert.Equal(t, tc.wantID, got.ID, "qty %d", tc.qty)
	}
}

func TestMatch_UncoveredQuantityHasNoRate(t *testing.T) {
	slabs := tiers("widget")

	for _, qty := range []int{0, 101, 1000} {
		_, ok := slab.Match(slabs, qty)
		assert.False(t, ok, "qty %d must not match", qty)
	}
}

func TestMatch_OrderIndependent(t *testing.T) {
	slabs := tiers("widget")
	reversed := []generic.Slab{slabs[1], slabs[0]}

	for qty := 1; qty <= 100; qty++ {
		a, _ := slab.Match(slabs, qty)
		b, _ := slab.Match(reversed, qty)
		assert.Equal(t, a.ID, b.ID)
	}
}

func TestLineTotal_RoundsHalfUp(t *testing.T) {
	assert.True(t, slab.LineTotal(7, dec("12.5")).Equal(dec("88")), "87.5 rounds up")
	assert.True(t, slab.LineTotal(3, dec("10.1")).Equal(dec("30")), "30.3 rounds down")
	assert.True(t, slab.LineTotal(1, dec("0.5")).Equal(dec("1")))
	assert.True(t, slab.LineTotal(40, dec("10")).Equal(dec("400")))
}

func TestQuoteFor_NoSlab(t *testing.T) {
	_, err := slab.QuoteFor(tiers("widget"), "widget", 101)

	var noSlab *generic.NoMatchingSlabError
	require.ErrorAs(t, err, &noSlab)
	assert.Equal(t, 101, noSlab.Quantity)
	assert.Equal(t, generic.ProductID("widget"), noSlab.ProductID)
}

// =============================================================================
// OVERLAP
// =============================================================================

func TestOverlaps_ClosedIntervals(t *testing.T) {
	existing := []slab.Range{{From: 1, To: 50}, {From: 51, To: 100}}

	assert.True(t, slab.Overlaps(existing, slab.Range{From: 50, To: 60}), "shared endpoint 50")
	assert.True(t, slab.Overlaps(existing, slab.Range{From: 10, To: 20}), "nested")
	assert.True(t, slab.Overlaps(existing, slab.Range{From: 0, To: 200}), "enclosing")
	assert.True(t, slab.Overlaps(existing, slab.Range{From: 100, To: 150}), "touching upper end")
	assert.False(t, slab.Overlaps(existing, slab.Range{From: 101, To: 150}))
	assert.False(t, slab.Overlaps(nil, slab.Range{From: 1, To: 2}))
}

func TestRange_IntersectsIsSymmetric(t *testing.T) {
	ranges := []slab.Range{
		{From: 1, To: 5}, {From: 5, To: 9}, {From: 6, To: 8}, {From: 10, To: 20}, {From: 2, To: 3},
	}
	for _, a := range ranges {
		for _, b := range ranges {
			assert.Equal(t, a.Intersects(b), b.Intersects(a), "%v vs %v", a, b)
		}
	}
}

// =============================================================================
// SERVICE
// =============================================================================

func TestService_Add_RejectsOverlap(t *testing.T) {
	// GIVEN: Widget has [1,50]
	// WHEN: Adding [50,60]
	// THEN: SlabOverlapError, and the table still has one slab

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, slab.Input{ProductID: "widget", QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("10")})
	require.NoError(t, err)

	_, err = svc.Add(ctx, slab.Input{ProductID: "widget", QtyFrom: 50, QtyTo: 60, RatePerUnit: dec("11")})
	var overlap *generic.SlabOverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, 50, overlap.QtyFrom)

	slabs, err := svc.List(ctx, "widget")
	require.NoError(t, err)
	assert.Len(t, slabs, 1)
}

func TestService_Add_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := []slab.Input{
		{ProductID: "widget", QtyFrom: 0, QtyTo: 5, RatePerUnit: dec("1")},
		{ProductID: "widget", QtyFrom: 5, QtyTo: 5, RatePerUnit: dec("1")},
		{ProductID: "widget", QtyFrom: 1, QtyTo: 5, RatePerUnit: dec("0")},
		{ProductID: "", QtyFrom: 1, QtyTo: 5, RatePerUnit: dec("1")},
	}
	for _, in := range bad {
		_, err := svc.Add(ctx, in)
		assert.ErrorIs(t, err, generic.ErrValidation, "%+v", in)
	}
}

func TestService_Add_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Add(context.Background(), slab.Input{ProductID: "ghost", QtyFrom: 1, QtyTo: 5, RatePerUnit: dec("1")})
	assert.True(t, generic.IsNotFound(err))
}

func TestService_Update_ExcludesItself(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Add(ctx, slab.Input{ProductID: "widget", QtyFrom: 1, QtyTo: 50, RatePerUnit: dec("10")})
	require.NoError(t, err)
	_, err = svc.Add(ctx, slab.Input{ProductID: "widget", QtyFrom: 51, QtyTo: 100, RatePerUnit: dec("12")})
	require.NoError(t, err)

	// [1,40] intersects only the slab's own old range.
	updated, err := svc.Update(ctx, a.ID, slab.Input{ProductID: "widget", QtyFrom: 1, QtyTo: 40, RatePerUnit: dec("9")})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.QtyTo)

	// Growing into the next tier is still rejected.
	_, err = svc.Update(ctx, a.ID, slab.Input{ProductID: "widget", QtyFrom: 1, QtyTo: 60, RatePerUnit: dec("9")})
	assert.ErrorIs(t, err, generic.ErrSlabOverlap)
}

func TestService_Quote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, slab.Input{ProductID: "widget", QtyFrom: 1, QtyTo: 10, RatePerUnit: dec("12.5")})
	require.NoError(t, err)

	q, err := svc.Quote(ctx, "widget", 7)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("88")))
	assert.True(t, q.Rate.Equal(dec("12.5")))

	_, err = svc.Quote(ctx, "widget", 11)
	assert.ErrorIs(t, err, generic.ErrNoMatchingSlab)
}

func TestService_Remove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	s, err := svc.Add(ctx, slab.Input{ProductID: "widget", QtyFrom: 1, QtyTo: 10, RatePerUnit: dec("1")})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, s.ID))
	assert.True(t, generic.IsNotFound(svc.Remove(ctx, s.ID)))
}
