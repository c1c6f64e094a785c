package generic_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
)

func d(s string) generic.Date { return generic.MustParseDate(s) }

func TestParseDate(t *testing.T) {
	got, err := generic.ParseDate("2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, generic.NewDate(2025, time.March, 31), got)

	for _, bad := range []string{"", "2025-3-1", "31/03/2025", "2025-02-30"} {
		_, err := generic.ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(d("2025-03-01"))
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-03-01"`, string(b))

	var back generic.Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-02-29"`), &back))
	assert.Equal(t, "2024-02-29", back.String())
	assert.Error(t, json.Unmarshal([]byte(`"2025-02-29"`), &back))
}

func TestDateOf_TruncatesTime(t *testing.T) {
	ts := time.Date(2025, time.March, 3, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, d("2025-03-03"), generic.DateOf(ts))
}

func TestPeriod(t *testing.T) {
	march, err := generic.NewPeriod(d("2025-03-01"), d("2025-03-31"))
	require.NoError(t, err)

	assert.Equal(t, 31, march.Len())
	assert.Len(t, march.Days(), 31)
	assert.True(t, march.Contains(d("2025-03-01")), "start is inclusive")
	assert.True(t, march.Contains(d("2025-03-31")), "end is inclusive")
	assert.False(t, march.Contains(d("2025-04-01")))

	single := generic.Period{Start: d("2025-03-05"), End: d("2025-03-05")}
	assert.Equal(t, 1, single.Len())

	_, err = generic.NewPeriod(d("2025-03-31"), d("2025-03-01"))
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, err = generic.NewPeriod(generic.Date{}, d("2025-03-01"))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestPeriod_LenBeyondDurationRange(t *testing.T) {
	all := generic.Period{Start: d("0001-01-02"), End: d("9999-12-31")}
	require.NoError(t, all.Validate())
	assert.Equal(t, 3652058, all.Len())

	assert.Equal(t, 146097, generic.DaysBetween(d("1600-01-01"), d("2000-01-01")))
	assert.Equal(t, -146097, generic.DaysBetween(d("2000-01-01"), d("1600-01-01")))
}

func TestPeriod_Overlaps(t *testing.T) {
	march := generic.Period{Start: d("2025-03-01"), End: d("2025-03-31")}

	tests := []struct {
		name  string
		other generic.Period
		want  bool
	}{
		{"same", march, true},
		{"touching end", generic.Period{Start: d("2025-03-31"), End: d("2025-04-30")}, true},
		{"touching start", generic.Period{Start: d("2025-02-01"), End: d("2025-03-01")}, true},
		{"inside", generic.Period{Start: d("2025-03-10"), End: d("2025-03-12")}, true},
		{"before", generic.Period{Start: d("2025-02-01"), End: d("2025-02-28")}, false},
		{"after", generic.Period{Start: d("2025-04-01"), End: d("2025-04-30")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, march.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(march), "overlap is symmetric")
		})
	}
}

func TestPeriod_Covers(t *testing.T) {
	march := generic.Period{Start: d("2025-03-01"), End: d("2025-03-31")}
	assert.True(t, march.Covers(march))
	assert.True(t, march.Covers(generic.Period{Start: d("2025-03-05"), End: d("2025-03-20")}))
	assert.False(t, march.Covers(generic.Period{Start: d("2025-02-25"), End: d("2025-03-10")}))
	assert.False(t, march.Covers(generic.Period{Start: d("2025-03-25"), End: d("2025-04-02")}))
}

func TestLockState(t *testing.T) {
	next, err := generic.StateOpen.Finalize()
	require.NoError(t, err)
	assert.Equal(t, generic.StateFinalized, next)
	assert.False(t, next.Mutable())

	_, err = generic.StateFinalized.Finalize()
	assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)

	next, err = generic.StateFinalized.Unlock()
	require.NoError(t, err)
	assert.Equal(t, generic.StateOpen, next)
	assert.True(t, next.Mutable())

	_, err = generic.StateOpen.Unlock()
	assert.ErrorIs(t, err, generic.ErrAlreadyOpen)

	_, err = generic.ParseLockState("Closed")
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"87.5", "88"},
		{"87.49", "87"},
		{"0.5", "1"},
		{"100", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.Round(generic.MustParseDecimal(tt.in)).String())
		})
	}

	assert.Equal(t, "6.5", generic.Sum(decimal.NewFromInt(1), generic.MustParseDecimal("5.5")).String())
	assert.True(t, generic.Sum().IsZero())
	assert.True(t, generic.MaxZero(decimal.NewFromInt(-3)).IsZero())
	assert.Equal(t, "3", generic.MaxZero(decimal.NewFromInt(3)).String())
}

func TestErrorHelpers(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("outer: %w", err) }

	locked := wrap(&generic.DayLockedError{Date: d("2025-03-03")})
	assert.True(t, generic.IsLocked(locked))
	assert.True(t, generic.IsClientError(locked))
	var dle *generic.DayLockedError
	require.True(t, errors.As(locked, &dle))
	assert.Equal(t, "2025-03-03", dle.Date.String())

	assert.True(t, generic.IsNotFound(wrap(&generic.NotFoundError{Resource: "worker", ID: "w1"})))
	assert.True(t, generic.IsNotFound(&generic.DayNotFoundError{}))
	assert.True(t, generic.IsConflict(&generic.SlabOverlapError{}))
	assert.True(t, generic.IsConflict(&generic.PeriodOverlapError{}))
	assert.True(t, generic.IsClientError(&generic.MissingSalaryProfileError{WorkerIDs: []generic.WorkerID{"w1", "w2"}}))
	assert.Contains(t, (&generic.MissingSalaryProfileError{WorkerIDs: []generic.WorkerID{"w1", "w2"}}).Error(), "w1, w2")

	assert.False(t, generic.IsClientError(errors.New("disk I/O error")))
}

func TestAuditFilter_Matches(t *testing.T) {
	p1 := "p1"
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := generic.AuditEntry{PeriodID: "p1", ActorID: "alice", Action: generic.AuditGenerate, Timestamp: at}

	assert.True(t, generic.AuditFilter{}.Matches(e))
	assert.True(t, generic.AuditFilter{PeriodID: &p1, Actions: []generic.AuditAction{generic.AuditFinalize, generic.AuditGenerate}}.Matches(e))
	assert.False(t, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditFinalize}}.Matches(e))

	later := at.Add(time.Hour)
	assert.False(t, generic.AuditFilter{From: &later}.Matches(e))
	assert.True(t, generic.AuditFilter{To: &later}.Matches(e))
}

func TestPayrollRecord_CloneDoesNotAlias(t *testing.T) {
	r := generic.PayrollRecord{DeductionLines: []generic.DeductionLine{{Type: "Advance"}}}
	c := r.Clone()
	c.DeductionLines[0].Type = "Loan"
	assert.Equal(t, "Advance", r.DeductionLines[0].Type)
}
