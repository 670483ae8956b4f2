// Package arena provides the per-thread scratch budget the hot paths use
// for half-pel interpolation buffers, partial-SAD row caches, and
// candidate arrays. The budget is scoped to one thread context and reset
// between CTBs, so scratch stays thread-local instead of contended across
// threads.
package arena

import "fmt"

// ErrExhausted is returned when a thread's scratch budget is exceeded,
// surfaced to the caller as hme.ResourceExhausted.
var ErrExhausted = fmt.Errorf("hme/arena: scratch budget exhausted")

// Arena tracks one thread context's scratch-memory budget across a
// picture. It does not itself pool byte slices (Go's allocator and escape
// analysis already handle small, short-lived scratch buffers well); its
// job is to bound how much a single thread may carve out between Reset
// calls, so a runaway allocation fails fast as ResourceExhausted rather
// than growing unbounded.
type Arena struct {
	budget int
	used   int
}

// New allocates an arena with the given byte budget.
func New(budget int) *Arena {
	return &Arena{budget: budget}
}

// Reserve accounts `size` bytes against the budget, returning ErrExhausted
// if doing so would exceed it. Call this once per scratch buffer obtained
// via make() in the caller, immediately before allocating it.
func (a *Arena) Reserve(size int) error {
	if a.used+size > a.budget {
		return ErrExhausted
	}
	a.used += size
	return nil
}

// Reset releases all accounting since the last Reset — the per-CTB
// boundary a thread's job loop calls at, after which every scratch buffer
// obtained against the prior accounting must be considered invalid.
func (a *Arena) Reset() {
	a.used = 0
}

// Used reports how many bytes are currently reserved, for diagnostics.
func (a *Arena) Used() int { return a.used }

// Remaining reports how much budget is left before Reserve fails.
func (a *Arena) Remaining() int { return a.budget - a.used }
