// Package harness provides conformance testing for brix route sets.
//
// The harness loads a route set, seeds artifact relationships, feeds change
// events through the real engine and asserts on the plans it produced.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	routes: ../routes            # relative to the scenario file
//	relationships:
//	  - id: rel-1
//	    source: {endpoint: se-source, type: SEISSUE, key: SRC-1}
//	    target: {endpoint: se-target, type: SEISSUE, key: TGT-1}
//	events:
//	  - source:
//	      endpoint: se-source
//	      type: SEISSUE
//	      key: SRC-1
//	      attributes: {severity: 1}
//	    headers: {BRIXExtractResourceSide: TARGET}
//	    expect:
//	      fired: [severity-sync]
//	      actions: 1
//	assertions:
//	  - type: action
//	    command: MODIFYATTRIBUTE
//	    attributes: {severity: 1}
//	  - type: recorded_runs
//	    count: 1
//
// # Assertion Types
//
//   - fired / not_fired: a rule fired, or did not
//   - action: an action matches command, side, key, rule and a subset of its payload
//   - action_count: total number of actions
//   - warning: a soft failure with the given code was raised
//   - header: a run header holds a value after processing
//   - recorded_runs: the store holds the given number of runs
//
// Every assertion except recorded_runs may be limited to one event with
// "event: N".
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory SQLite store with sequential
// run ids ("run-1", "run-2", ...), so plan snapshots compare byte for byte
// with the golden files under testdata/golden.
package harness
