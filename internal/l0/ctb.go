// Package l0 implements the finest-layer search and CTB-level partition
// decision: candidate construction, fullpel and subpel refinement,
// bi-prediction evaluation, merge/skip evaluation, partition selection,
// and CTB writeback, driven by an explicit forward-only state machine per
// CTB so cancellation can observe exactly how far a CTB progressed.
package l0

import "fmt"

// State is a CTB's position in its strictly-forward processing pipeline.
type State int

const (
	Idle State = iota
	CandidatesBuilt
	FpelRefined
	SubpelRefined
	BiEvaluated
	MergeEvaluated
	PartitionSelected
	WrittenBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case CandidatesBuilt:
		return "CandidatesBuilt"
	case FpelRefined:
		return "FpelRefined"
	case SubpelRefined:
		return "SubpelRefined"
	case BiEvaluated:
		return "BiEvaluated"
	case MergeEvaluated:
		return "MergeEvaluated"
	case PartitionSelected:
		return "PartitionSelected"
	case WrittenBack:
		return "WrittenBack"
	default:
		return "Unknown"
	}
}

// ErrBackwardTransition is returned by CTB.Advance when asked to move to a
// state that is not strictly later than the current one.
var ErrBackwardTransition = fmt.Errorf("hme/l0: CTB state transitions must be strictly forward")

// CTB holds one 64x64 coding tree block's search state across its
// pipeline, including its current stage and whatever partial results each
// completed stage produced.
type CTB struct {
	X, Y  int // picture-pixel coordinates of the CTB's top-left corner
	state State

	Candidates []PUCandidate
	FpelBest   []PUCandidate
	SubpelBest []PUCandidate
	BiBest     []PUCandidate
	MergeBest  []PUCandidate

	Output []PUResult
}

// NewCTB returns a CTB in the Idle state at picture coordinate (x, y).
func NewCTB(x, y int) *CTB {
	return &CTB{X: x, Y: y, state: Idle}
}

// State reports the CTB's current pipeline stage.
func (c *CTB) State() State { return c.state }

// Advance moves the CTB to next, failing if next is not strictly later
// than the current state.
func (c *CTB) Advance(next State) error {
	if next <= c.state {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, c.state, next)
	}
	c.state = next
	return nil
}

// Cancel drops all in-progress results for a CTB that has not reached
// WrittenBack. It is a no-op for a CTB that has already been written back.
func (c *CTB) Cancel() {
	if c.state == WrittenBack {
		return
	}
	c.Candidates = nil
	c.FpelBest = nil
	c.SubpelBest = nil
	c.BiBest = nil
	c.MergeBest = nil
	c.Output = nil
	c.state = Idle
}
