// Package refctx owns the reference-descriptor pool: the only shared
// mutable resource across pictures. Claim/release are serialized by a
// bounded semaphore taken only at picture boundaries, never on the
// per-block hot path.
package refctx

import (
	"context"
	"fmt"
	"sync"

	"github.com/hme-project/hme/internal/plane"
	"golang.org/x/sync/semaphore"
)

// HalfPelPlane indexes the four interpolation planes a reference may
// carry. FxFy is the fullpel source itself; HxFy is interpolated at a
// horizontal half offset, FxHy at a vertical half offset, and HxHy at
// both.
type HalfPelPlane int

const (
	HalfPelFxFy HalfPelPlane = iota // fullpel on both axes (the source plane)
	HalfPelHxFy                     // half-pel horizontally, fullpel vertically
	HalfPelFxHy                     // fullpel horizontally, half-pel vertically
	HalfPelHxHy                     // half-pel on both axes
	NumHalfPelPlanes
)

// Descriptor describes one reference picture at one pyramid layer: its
// source plane, optional half-pel planes (layer 0 only), POC, and
// weighted-prediction parameters. Reference-layer pointers are read-only
// for the duration of a picture.
type Descriptor struct {
	Source  *plane.Plane
	HalfPel [NumHalfPelPlanes]*plane.Plane // nil where not computed

	POC     int32
	IsPast  bool
	RefIDLC int32 // picture-local combined ref list index
	RefIDL0 int32
	RefIDL1 int32

	// Weighted prediction. Weight is a Q8 scale (256 = identity) and must
	// be positive and non-zero; zero or negative weights are rejected at
	// claim time rather than rounded. InvWeightQ15 is the rounded Q15
	// reciprocal of the raw Weight (2^15/Weight, i.e. 256/Weight in Q7:
	// 128 for the identity weight), derived once at claim so the hot path
	// can inverse-weight source samples with a multiply and a 7-bit shift.
	WPWeight     int32
	WPOffset     int32
	InvWeightQ15 int32

	inUse bool
}

// HasIdentityWeight reports whether weighted prediction is a no-op for
// this reference (unit weight, zero offset).
func (d *Descriptor) HasIdentityWeight() bool {
	return d.WPWeight == 256 && d.WPOffset == 0
}

// FillHalfPel computes the three interpolated planes from Source: HxFy and
// FxHy by 2-tap rounded averaging of the bracketing fullpel samples, and
// HxHy by the same filter applied vertically to HxFy. The FxFy slot
// aliases Source. The whole padded extent is filled so subpel search can
// read into the border ring the same way fullpel search does.
func (d *Descriptor) FillHalfPel() {
	src := d.Source
	if src == nil {
		return
	}
	d.HalfPel[HalfPelFxFy] = src

	hxfy := planeLike(d.HalfPel[HalfPelHxFy], src)
	fxhy := planeLike(d.HalfPel[HalfPelFxHy], src)
	hxhy := planeLike(d.HalfPel[HalfPelHxHy], src)
	d.HalfPel[HalfPelHxFy] = hxfy
	d.HalfPel[HalfPelFxHy] = fxhy
	d.HalfPel[HalfPelHxHy] = hxhy

	x0, x1 := -src.PadX, src.Width+src.PadX
	y0, y1 := -src.PadY, src.Height+src.PadY
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := src.At(x, y)
			r := c
			if x+1 < x1 {
				r = src.At(x+1, y)
			}
			b := c
			if y+1 < y1 {
				b = src.At(x, y+1)
			}
			hxfy.Set(x, y, uint8((int(c)+int(r)+1)>>1))
			fxhy.Set(x, y, uint8((int(c)+int(b)+1)>>1))
		}
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := hxfy.At(x, y)
			b := c
			if y+1 < y1 {
				b = hxfy.At(x, y+1)
			}
			hxhy.Set(x, y, uint8((int(c)+int(b)+1)>>1))
		}
	}
}

// planeLike reuses p when it matches src's geometry, otherwise allocates a
// fresh plane of the same shape.
func planeLike(p, src *plane.Plane) *plane.Plane {
	if p != nil && p.Width == src.Width && p.Height == src.Height && p.PadX >= src.PadX && p.PadY >= src.PadY {
		return p
	}
	return plane.New(src.Width, src.Height, maxPad(src.PadX, src.PadY))
}

func maxPad(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// InverseWeight maps one already-weighted sample back toward the unweighted
// domain: (v - offset) * 256/weight, computed with the descriptor's Q15
// reciprocal and rounded, clipped to 8 bits.
func (d *Descriptor) InverseWeight(v uint8) uint8 {
	x := (int32(v) - d.WPOffset) * d.InvWeightQ15
	x = (x + (1 << 6)) >> 7
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// InverseWeightPlane returns a copy of src with every padded sample passed
// through d.InverseWeight, or src itself when the weight is identity. This
// is the per-reference weighted-input cache the finest-layer search reads
// in place of the raw source when weighted prediction is active.
func InverseWeightPlane(src *plane.Plane, d *Descriptor) *plane.Plane {
	if d.HasIdentityWeight() {
		return src
	}
	out := plane.New(src.Width, src.Height, maxPad(src.PadX, src.PadY))
	for y := -src.PadY; y < src.Height+src.PadY; y++ {
		for x := -src.PadX; x < src.Width+src.PadX; x++ {
			out.Set(x, y, d.InverseWeight(src.At(x, y)))
		}
	}
	return out
}

// ErrInvalidWeight is returned when a non-positive weighted-prediction
// weight is supplied to Claim.
var ErrInvalidWeight = fmt.Errorf("hme/refctx: weighted-prediction weight must be positive")

// Pool is a bounded pool of reference descriptors. The in-flight count is
// bounded by the semaphore's weight, so Claim blocks (or fails under
// ctx cancellation) rather than over-allocating descriptors.
type Pool struct {
	mu    sync.Mutex
	slots []*Descriptor
	sem   *semaphore.Weighted
}

// NewPool allocates a pool of `capacity` descriptor slots, each sized to
// hold a plane of planeWidth x planeHeight with the given padding.
// Half-pel planes are not preallocated; FillHalfPel builds them on demand
// for the layers that need subpel search.
func NewPool(capacity, planeWidth, planeHeight, pad int) *Pool {
	p := &Pool{
		slots: make([]*Descriptor, capacity),
		sem:   semaphore.NewWeighted(int64(capacity)),
	}
	for i := range p.slots {
		p.slots[i] = &Descriptor{Source: plane.New(planeWidth, planeHeight, pad)}
	}
	return p
}

// Claim reserves a free descriptor slot for the given POC, blocking until
// one is available or ctx is cancelled. wpWeight must be positive.
func (p *Pool) Claim(ctx context.Context, poc int32, isPast bool, wpWeight, wpOffset int32) (*Descriptor, error) {
	if wpWeight <= 0 {
		return nil, ErrInvalidWeight
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("hme/refctx: claim: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.slots {
		if !d.inUse {
			d.inUse = true
			d.POC = poc
			d.IsPast = isPast
			d.WPWeight = wpWeight
			d.WPOffset = wpOffset
			d.InvWeightQ15 = ((1 << 15) + wpWeight/2) / wpWeight
			return d, nil
		}
	}
	// Semaphore accounting guarantees a free slot exists; reaching here
	// means pool bookkeeping is corrupt.
	p.sem.Release(1)
	return nil, fmt.Errorf("hme/refctx: claim: semaphore admitted but no free slot found")
}

// Release marks d free for reuse. Callers must not touch d afterward.
func (p *Pool) Release(d *Descriptor) {
	p.mu.Lock()
	d.inUse = false
	p.mu.Unlock()
	p.sem.Release(1)
}

// FindByPOC returns the in-use descriptor for poc, or ErrPOCNotFound.
func (p *Pool) FindByPOC(poc int32) (*Descriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.slots {
		if d.inUse && d.POC == poc {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: poc=%d", ErrPOCNotFound, poc)
}

// ErrPOCNotFound is returned by FindByPOC when no claimed descriptor
// carries the requested POC.
var ErrPOCNotFound = fmt.Errorf("hme/refctx: POC not found in any claimed descriptor")
