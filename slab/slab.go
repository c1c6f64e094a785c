/*
slab.go - Incentive slab matching and overlap validation

PURPOSE:
  A product's piece rate depends on how many units a worker made that day.
  The rate table is a set of slabs, each a closed quantity range with a
  per-unit rate. This file holds the pure functions over that table:

  Match:     quantity -> the single slab whose range covers it
  LineTotal: round(quantity x rate), half-up to whole currency units
  Overlaps:  closed-interval intersection, used to keep ranges disjoint

INVARIANTS:
  - Slabs of one product never intersect, so Match finds at most one.
  - An uncovered quantity has NO rate. Callers must reject the entry
    (NoMatchingSlabError); there is no default or nearest-tier fallback.
  - The rate applies to every unit. Slabs are not marginal brackets.

EXAMPLE:
  slabs: [1,50] @ 10, [51,100] @ 12.5
  Match(slabs, 7)   -> [1,50] @ 10
  LineTotal(7, 12.5) -> 88   (87.5 rounds half-up)
  Match(slabs, 101) -> no slab

SEE ALSO:
  - service.go: Persists slabs with overlap validation
  - production/ledger.go: Applies Match and LineTotal to each entry
*/
package slab

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// RANGE
// =============================================================================

// Range is a closed quantity interval [From, To].
type Range struct {
	From int
	To   int
}

func RangeOf(s generic.Slab) Range {
	return Range{From: s.QtyFrom, To: s.QtyTo}
}

// Validate enforces From >= 1 and To > From.
func (r Range) Validate() error {
	if r.From < 1 {
		return &generic.ValidationError{Field: "qty_from", Reason: "must be at least 1"}
	}
	if r.To <= r.From {
		return &generic.ValidationError{Field: "qty_to", Reason: "must be greater than qty_from"}
	}
	return nil
}

// Intersects: [a,b] and [c,d] intersect iff c <= b && d >= a.
func (r Range) Intersects(other Range) bool {
	return other.From <= r.To && other.To >= r.From
}

// =============================================================================
// MATCHING
// =============================================================================

// Match returns the slab covering qty. The slab set is scanned in full;
// no ordering is assumed.
func Match(slabs []generic.Slab, qty int) (generic.Slab, bool) {
	for _, s := range slabs {
		if s.Covers(qty) {
			return s, true
		}
	}
	return generic.Slab{}, false
}

// LineTotal is round(qty x rate), half-up.
func LineTotal(qty int, rate decimal.Decimal) decimal.Decimal {
	return generic.Round(rate.Mul(decimal.NewFromInt(int64(qty))))
}

// Quote is the rate and total a quantity would earn.
type Quote struct {
	ProductID generic.ProductID `json:"product_id"`
	Quantity  int               `json:"quantity"`
	SlabID    string            `json:"slab_id"`
	Rate      decimal.Decimal   `json:"rate"`
	Total     decimal.Decimal   `json:"total"`
}

// QuoteFor matches qty and prices it, or fails with NoMatchingSlabError.
func QuoteFor(slabs []generic.Slab, productID generic.ProductID, qty int) (Quote, error) {
	s, ok := Match(slabs, qty)
	if !ok {
		return Quote{}, &generic.NoMatchingSlabError{ProductID: productID, Quantity: qty}
	}
	return Quote{
		ProductID: productID,
		Quantity:  qty,
		SlabID:    s.ID,
		Rate:      s.RatePerUnit,
		Total:     LineTotal(qty, s.RatePerUnit),
	}, nil
}

// =============================================================================
// OVERLAP VALIDATION
// =============================================================================

// Overlaps reports whether candidate intersects any existing range. It is
// re-evaluated against the whole set on every call.
func Overlaps(existing []Range, candidate Range) bool {
	for _, r := range existing {
		if r.Intersects(candidate) {
			return true
		}
	}
	return false
}

// rangesExcept collects slab ranges, skipping excludeID (the slab being edited).
func rangesExcept(slabs []generic.Slab, excludeID string) []Range {
	out := make([]Range, 0, len(slabs))
	for _, s := range slabs {
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		out = append(out, RangeOf(s))
	}
	return out
}
