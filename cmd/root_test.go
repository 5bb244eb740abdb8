package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScenario = `
duration_s: 10.0
seed: 42
nodes:
  - name: alice
    memory_qubits: 2
  - name: bob
    memory_qubits: 2
links:
  - a: alice
    b: bob
    loss_prob: 0.0
    base_fidelity: 0.9
    attempt_interval_s: 0.001
    heralding_delay_s: 0.0005
requests:
  - id: r1
    path: [alice-bob]
`

// writeTestScenario writes the shared scenario to a temp file and points the
// --scenario flag variable at it.
func writeTestScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScenario), 0o644))
	return path
}

func TestLoadScenario_FlagOverrides(t *testing.T) {
	// GIVEN a scenario file with seed 42 and duration 10
	scenarioPath = writeTestScenario(t)

	// WHEN no overrides are passed (the flag defaults)
	seed = -1
	duration = 0
	cfg := loadScenario()

	// THEN the file's values govern
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 10.0, cfg.Duration)

	// WHEN --seed and --duration are set
	seed = 9
	duration = 2.5
	cfg = loadScenario()

	// THEN the flags win
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, 2.5, cfg.Duration)
}

func TestRunCmd_PrintsMetricsAndWritesRecords(t *testing.T) {
	// GIVEN a valid scenario and a records destination
	scenarioPath = writeTestScenario(t)
	seed = -1
	duration = 0
	logLevel = "error"
	recordsPath = filepath.Join(t.TempDir(), "records.csv")

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// WHEN the run command executes
	runCmd.Run(runCmd, nil)

	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	output := buf.String()

	// THEN the metrics summary appears on stdout
	assert.Contains(t, output, "Simulation Metrics")
	assert.Contains(t, output, "Requests satisfied   : 1")

	// AND the record stream was written with its header and the request row
	data, err := os.ReadFile(recordsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_id,outcome,reason,fidelity")
	assert.Contains(t, string(data), "r1,satisfied,")

	recordsPath = ""
}
