// Package harness runs YAML scenarios against the resource manager.
//
// A scenario declares models the same way the configuration file does,
// drives them through setup and flow steps, and checks the final state
// with assertions:
//
//	name: zone_lifecycle
//	description: "A zone is created, renamed and soft-deleted"
//	models:
//	  - name: Zone
//	    indexed:
//	      - {path: name, type: string}
//	setup:
//	  - op: create
//	    model: Zone
//	    id: forest
//	    payload: {name: Forest, level: 1}
//	flow:
//	  - op: update
//	    model: Zone
//	    id: forest
//	    payload: {name: Deep Forest, level: 2}
//	    label: renamed
//	  - op: update
//	    model: Zone
//	    id: forest
//	    expect_revision: v1
//	    payload: {name: Lost, level: 3}
//	    expect: {error: CONFLICT}
//	assertions:
//	  - type: meta
//	    model: Zone
//	    id: forest
//	    expect: {total_revision_count: 2, is_deleted: false}
//	  - type: count
//	    model: Zone
//	    query: {filter: {field: name, op: starts_with, value: Deep}}
//	    count: 1
//
// # Steps
//
// The op of a step is one of create, update, patch, delete, restore, switch
// and migrate. A step labelled with label records the revision it produced;
// later steps may name that label wherever a revision id is expected.
// Setup steps must succeed. Flow steps succeed unless expect.error names
// the error code they must fail with.
//
// # Assertion Types
//
//   - meta: subset match against the resource's meta record
//   - payload: subset match against the current payload
//   - revisions: the number of stored revisions
//   - count: the number of resources matching a search query
//   - consistent: the engine finds no inconsistencies
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory backend, a testutil.Clock and
// testutil.IDs, so the trace of a scenario is identical across runs and can
// be compared against a golden file.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/zones.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
