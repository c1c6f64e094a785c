package generic

import "github.com/shopspring/decimal"

// =============================================================================
// MONEY - Whole-unit currency arithmetic
// =============================================================================

// Round rounds an amount to whole currency units, half-up.
//
// decimal.Round rounds half away from zero. Every amount that reaches this
// function is non-negative (quantities, rates and salaries are positive), so
// that is exactly half-up: 87.5 -> 88.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Sum adds amounts without rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// MaxZero floors a value at zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MustParseDecimal parses a stored decimal string. Unparseable input becomes zero.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
