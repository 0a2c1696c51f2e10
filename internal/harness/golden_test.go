package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_ZoneLifecycle(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/zone_lifecycle.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/character_schema.yaml")
	require.NoError(t, err)

	var outputs [][]byte
	for range 3 {
		result, err := Run(s)
		require.NoError(t, err)
		snap := TraceSnapshot{ScenarioName: s.Name, Trace: result.Trace}
		data, err := snap.Canonical()
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestTraceSnapshot_OmitsEmptyStatus(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Phase: PhaseFlow, Op: OpDelete, Model: "Zone", ResourceID: "z1", Outcome: OutcomeOK, Revisions: 1, Deleted: true},
		},
	}
	data, err := snap.Canonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[{"deleted":true,"model":"Zone","op":"delete","outcome":"ok","phase":"flow","resource_id":"z1","revisions":1,"step":0}]}`,
		string(data))
}
