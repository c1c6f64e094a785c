package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func TestParseOvertime(t *testing.T) {
	got, err := parseOvertime([]string{"w1=10", "w2=4.5"})
	require.NoError(t, err)
	assert.Equal(t, "10", got["w1"].String())
	assert.Equal(t, "4.5", got["w2"].String())

	for _, bad := range []string{"w1", "=3", "w1=abc"} {
		_, err := parseOvertime([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSeedThenGenerate(t *testing.T) {
	// GIVEN a file database seeded with the walkthrough scenario
	dir := t.TempDir()
	db := filepath.Join(dir, "payroll.db")

	run := func(args ...string) []byte {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append(args, "--config-dir", dir, "--db", db))
		require.NoError(t, rootCmd.Execute())
		return out.Bytes()
	}
	t.Setenv("PAYROLL_LOG_LEVEL", "error")

	run("seed", "payslip-walkthrough", "--month", "2025-03")

	// WHEN payroll is generated from the command line
	out := run("generate", "--name", "March 2025", "--from", "2025-03-01", "--to", "2025-03-31", "--overtime", "pw-w1=10")

	// THEN the printed report has the walkthrough totals
	var report payroll.Report
	require.NoError(t, json.Unmarshal(out, &report))
	require.Len(t, report.Records, 1)
	assert.Equal(t, "57000", report.NetTotal.String())
	assert.Equal(t, generic.StateOpen, report.Period.Status)
}
