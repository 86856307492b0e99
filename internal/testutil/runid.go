package testutil

import (
	"strconv"
	"sync/atomic"
)

// FixedRunIDGenerator generates the same run ID every time.
//
// This enables deterministic reconciliation reports and golden snapshot
// comparison: the same scenario with the same generator produces
// byte-identical reports and journal rows.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a new fixed run ID generator.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequentialRunIDGenerator generates "<prefix>1", "<prefix>2", ... so a
// scenario with several operations gets distinct but reproducible run IDs.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialRunIDGenerator struct {
	prefix string
	next   atomic.Int64
}

// NewSequentialRunIDGenerator creates a generator whose first ID is prefix+"1".
func NewSequentialRunIDGenerator(prefix string) *SequentialRunIDGenerator {
	return &SequentialRunIDGenerator{prefix: prefix}
}

// Generate returns the next run ID.
//
// Implements engine.RunIDGenerator.
func (g *SequentialRunIDGenerator) Generate() string {
	return g.prefix + strconv.FormatInt(g.next.Add(1), 10)
}
