// Package engine implements the brix sync pipeline.
//
// One change event drives exactly one pass per matching route:
//
//  1. Normalize the source artifact (and the target, when fetched)
//  2. Compare source and target into a delta
//  3. Assert the route's rules against the run's private delta copy
//  4. Generate the ordered action list from the fired rules
//
// The resulting Plan is returned to the caller and, when a Recorder is set,
// persisted. Executing actions against external systems is the job of
// system-specific adapters outside this package.
//
// ORDERING:
//
// Rules, conditions and action configs are processed in ascending sequence;
// ties keep configuration order. Each appended action is stamped from the
// run's own Clock, so action sequence equals append order.
//
// COPY BEFORE MUTATE:
//
// Rule assertion and action generation consume attributes from the delta.
// Each gets its own Delta.Working(), a deep copy owned by the run, so a
// claim made during assertion never hides the attribute from the claiming
// rule's actions. Routes
// are read-only.
//
// Runs share no mutable state, so Process may be called concurrently. The
// Run loop is an optional single-consumer queue in front of Process.
package engine
