package harness

import (
	"github.com/roach88/brix/internal/engine"
	"github.com/roach88/brix/internal/ir"
)

// Outcome is what the engine produced for one scenario event.
type Outcome struct {
	// Event is the 0-based index of the event in the scenario.
	Event int

	// Plans holds one plan per matching route. Empty when Err is set.
	Plans []*engine.Plan

	// Err is the processing error, if any.
	Err error
}

// Fired returns the fired rule names across the outcome's plans.
func (o Outcome) Fired() []string {
	var names []string
	for _, p := range o.Plans {
		names = append(names, p.Fired...)
	}
	return names
}

// Actions returns the actions across the outcome's plans.
func (o Outcome) Actions() []ir.Action {
	var actions []ir.Action
	for _, p := range o.Plans {
		actions = append(actions, p.Actions...)
	}
	return actions
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Outcomes holds one entry per event, in event order.
	Outcomes []Outcome `json:"-"`

	// Runs are the runs the engine recorded, read back from the store.
	Runs []ir.Run `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddOutcome appends the outcome of the next event.
func (r *Result) AddOutcome(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// outcomes returns the outcome of event, or all outcomes when event is nil.
func (r *Result) outcomes(event *int) []Outcome {
	if event == nil {
		return r.Outcomes
	}
	if *event < 0 || *event >= len(r.Outcomes) {
		return nil
	}
	return r.Outcomes[*event : *event+1]
}
