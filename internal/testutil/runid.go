package testutil

import (
	"fmt"
	"sync/atomic"
)

// FixedRunIDGenerator returns the same run id for every run.
//
// Golden plan files embed the run id, so scenarios need a stable one.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequentialRunIDGenerator returns "<prefix>-1", "<prefix>-2", ... in call
// order. Scenarios with several events use it so each stored run keeps a
// distinct, stable id.
//
// Thread-safety: safe for concurrent use; concurrent callers get distinct
// ids but their order follows call order.
type SequentialRunIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialRunIDGenerator creates a generator for prefix. An empty
// prefix becomes "run".
func NewSequentialRunIDGenerator(prefix string) *SequentialRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.RunIDGenerator.
func (g *SequentialRunIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
