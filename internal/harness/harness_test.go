package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml), "")
	require.NoError(t, err)
	return s
}

func TestRun_ZoneLifecycle(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/zone_lifecycle.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 8)

	assert.Equal(t, TraceEvent{
		Phase: PhaseSetup, Step: 0, Op: OpCreate, Model: "Zone", ResourceID: "forest",
		Outcome: OutcomeOK, Status: "stable", Revisions: 1,
	}, result.Trace[0])
	assert.Equal(t, "CONFLICT", result.Trace[2].Outcome)
	assert.Empty(t, result.Trace[2].Status, "failed steps produce no revision")
	assert.True(t, result.Trace[5].Deleted)
	assert.False(t, result.Trace[7].Deleted)
}

func TestRun_CUESchemaAndDrafts(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/character_schema.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	outcomes := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		outcomes[i] = ev.Outcome
	}
	assert.Equal(t, []string{"ok", "VALIDATION", "VALIDATION", "ok", "ok"}, outcomes)
	assert.Equal(t, "draft", result.Trace[3].Status)
	assert.Equal(t, "stable", result.Trace[4].Status)
	assert.Equal(t, 2, result.Trace[4].Revisions, "modify amends the draft in place")
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	s := mustParse(t, `
name: unexpected
description: "expectations that do not hold"
models:
  - name: Zone
setup:
  - {op: create, model: Zone, id: z1, payload: {name: Forest}}
flow:
  - op: update
    model: Zone
    id: z1
    payload: {name: Cave}
    expect: {error: CONFLICT}
  - op: delete
    model: Zone
    id: missing
  - op: update
    model: Zone
    id: z1
    payload: {name: Hill}
    expect:
      status: draft
      payload: {name: Mountain}
assertions:
  - type: consistent
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, "flow[0]: update Zone/z1: expected CONFLICT, got ok", result.Errors[0])
	assert.Contains(t, result.Errors[1], "flow[1]: delete Zone/missing: expected ok, got NOT_FOUND")
	assert.Equal(t, "flow[2]: expected status draft, got stable", result.Errors[2])
	assert.Equal(t, "flow[2]: payload mismatch: name: expected Mountain, got Hill", result.Errors[3])

	// The run continues after a failed expectation.
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "NOT_FOUND", result.Trace[2].Outcome)
	assert.Zero(t, result.Trace[2].Revisions)
}

func TestRun_SetupFailureAbortsRun(t *testing.T) {
	s := mustParse(t, `
name: bad_setup
description: "setup updates a resource that does not exist"
models:
  - name: Zone
setup:
  - {op: update, model: Zone, id: ghost, payload: {name: Ghost}}
flow:
  - {op: create, model: Zone, id: z1, payload: {name: Forest}}
assertions:
  - type: consistent
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestRun_LabelsResolveRevisions(t *testing.T) {
	s := mustParse(t, `
name: labels
description: "labels name revisions for later steps"
models:
  - name: Zone
setup:
  - {op: create, model: Zone, id: z1, payload: {name: One}, label: first}
flow:
  - {op: update, model: Zone, id: z1, payload: {name: Two}, label: second}
  - {op: switch, model: Zone, id: z1, revision: first}
  - op: update
    model: Zone
    id: z1
    payload: {name: Three}
    expect_revision: first
  - op: switch
    model: Zone
    id: z1
    revision: no-such-revision
    expect: {error: NOT_FOUND}
assertions:
  - type: payload
    model: Zone
    id: z1
    expect: {name: Three}
  - type: revisions
    model: Zone
    id: z1
    count: 3
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Patch(t *testing.T) {
	s := mustParse(t, `
name: patch
description: "JSON Patch edits the current payload"
models:
  - name: Zone
    indexed:
      - {path: level, type: int}
setup:
  - {op: create, model: Zone, id: z1, payload: {name: Forest, level: 1, tags: [green]}}
flow:
  - op: patch
    model: Zone
    id: z1
    payload:
      - {op: replace, path: /level, value: 4}
      - {op: add, path: /tags/-, value: dark}
  - op: patch
    model: Zone
    id: z1
    payload:
      - {op: remove, path: /missing}
    expect: {error: VALIDATION}
assertions:
  - type: payload
    model: Zone
    id: z1
    expect: {level: 4, tags: [green, dark]}
  - type: count
    model: Zone
    query:
      filter: {field: level, op: gte, value: 4}
    count: 1
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
