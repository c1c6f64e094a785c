package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/metrics"
)

func TestRecorder_CountsAndServes(t *testing.T) {
	rec := metrics.New()

	rec.ProductionEntry("add", metrics.OutcomeOK)
	rec.ProductionEntry("add", metrics.OutcomeRejected)
	rec.DayTransition("finalize")
	rec.PayrollRun(metrics.OutcomeOK, 20*time.Millisecond)
	rec.RecordGenerated(57000)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	n, err := testutil.GatherAndCount(rec.Registry(), "payroll_production_entries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per (operation, outcome)")

	expected := `
# HELP payroll_records_generated_total Payroll records written.
# TYPE payroll_records_generated_total counter
payroll_records_generated_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "payroll_records_generated_total"))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *metrics.Recorder

	assert.NotPanics(t, func() {
		rec.ProductionEntry("add", metrics.OutcomeOK)
		rec.DayTransition("unlock")
		rec.PayrollRun(metrics.OutcomeError, time.Second)
		rec.RecordGenerated(1)
	})
	assert.Nil(t, rec.Registry())
}
