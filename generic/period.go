package generic

// =============================================================================
// PERIOD - Closed date range used by payroll periods and commission windows
// =============================================================================

// Period is the inclusive range [Start, End].
//
// Examples:
//   - Monthly payroll: Jan 1 - Jan 31 (31 days)
//   - Weekly payroll:  Mon - Sun (7 days)
//   - Commission window for one product series: Jan 10 - Jan 20
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end Date) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects zero bounds and ranges that end before they start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Reason: "start and end are required"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period", Reason: "end " + p.End.String() + " is before start " + p.Start.String()}
	}
	return nil
}

// Contains returns true if the date is within the period [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Covers returns true if other lies entirely inside p.
func (p Period) Covers(other Period) bool {
	return p.Contains(other.Start) && p.Contains(other.End)
}

// Overlaps is the closed-interval intersection test: [a,b] and [c,d]
// intersect iff c <= b && d >= a. Touching endpoints count as overlap.
func (p Period) Overlaps(other Period) bool {
	return other.Start.BeforeOrEqual(p.End) && other.End.AfterOrEqual(p.Start)
}

// Len is the inclusive day count, End - Start + 1.
func (p Period) Len() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns every day in the period, in order.
func (p Period) Days() []Date {
	days := make([]Date, 0, p.Len())
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
