// Package hme implements the hierarchical motion estimation engine of an
// HEVC/H.265 encoder: multi-resolution pyramid construction, coarse-to-fine
// multi-reference motion search, and CTB-level partition decision, exposed
// through an Encoder handle whose methods cover the init/add-input/
// process-frame/discard lifecycle a surrounding encode loop drives.
package hme

import "fmt"

// Sentinel error kinds surfaced at every Encoder method boundary.
var (
	// ErrInvalidPyramid is returned when the requested layer geometry
	// cannot satisfy the pyramid's ratio or minimum-size constraints.
	ErrInvalidPyramid = fmt.Errorf("hme: invalid pyramid")
	// ErrInvalidReferenceMap is returned when a frame's reference map
	// names a POC with no added input, or double-claims one already
	// active.
	ErrInvalidReferenceMap = fmt.Errorf("hme: invalid reference map")
	// ErrResourceExhausted is returned when a layer's reference pool or a
	// thread's scratch arena is exhausted.
	ErrResourceExhausted = fmt.Errorf("hme: resource exhausted")
	// ErrCancelled is returned by ProcessFrame when ctx is cancelled
	// before every CTB reaches WrittenBack.
	ErrCancelled = fmt.Errorf("hme: picture cancelled")
)
