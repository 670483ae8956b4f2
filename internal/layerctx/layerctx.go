// Package layerctx composes one pyramid layer's per-reference state:
// reference descriptor bindings, the layer's MV bank, global-MV storage,
// the max MV search range permitted at the layer, and the row-sync handle
// its wavefront publishes through.
package layerctx

import (
	"fmt"

	"github.com/hme-project/hme/internal/depmgr"
	"github.com/hme-project/hme/internal/globalmv"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/pyramid"
	"github.com/hme-project/hme/internal/refctx"
)

// RefSlot is the global-MV and POC bookkeeping this layer keeps for one
// active reference, alongside the reference descriptor itself.
type RefSlot struct {
	Desc     *refctx.Descriptor
	GlobalMV globalmv.GlobalMV
	Hist     *globalmv.Histogram
	RefIdx   int16

	// WeightedInput, when non-nil, is the current picture's source plane
	// inverse-weighted by this reference's weighted-prediction parameters;
	// the finest-layer search reads it in place of the raw source so the
	// SAD it measures corresponds to the weighted prediction the encode
	// loop will actually form.
	WeightedInput *plane.Plane
}

// GlobalLobe returns the global-MV lobe matching this reference's temporal
// classification: the past lobe for a past reference, the future lobe for
// a future one. A slot with no descriptor is treated as past.
func (s *RefSlot) GlobalLobe() (mv.MV, bool) {
	if s.Desc == nil || s.Desc.IsPast {
		if s.GlobalMV.HavePast {
			return s.GlobalMV.PastLobe, true
		}
		return mv.MV{}, false
	}
	if s.GlobalMV.HaveFuture {
		return s.GlobalMV.FutureLobe, true
	}
	return mv.MV{}, false
}

// LayerContext is the per-layer, per-picture state a search stage operates
// against: the layer's geometry, its MV bank, its active reference slots,
// the max MV range permitted at this layer, and (for non-encode layers)
// the downsampled input plane for this picture.
type LayerContext struct {
	Geometry  pyramid.Geometry
	LayerIdx  int
	IsEncode  bool // false for the two coarsest seed-only layers
	Bank      *mv.Bank
	RangeX    int32
	RangeY    int32
	Input     *plane.Plane // downsampled source plane for this picture, non-encode layers only
	Refs      []RefSlot
	RowSync   *depmgr.RowRow

	// PrevGlobal carries each reference's finished global-MV lobes across
	// pictures, keyed by reference index: the search stages consume the
	// previous picture's dominant motion while the current picture's
	// histogram is still accumulating.
	PrevGlobal map[int16]globalmv.GlobalMV
}

// New builds a layer context over the given geometry with bank sized for
// the layer's block granularity. numActiveRefs must match the picture's
// active reference count; numResultsPerRef is typically 2-4 depending on
// quality preset.
func New(geom pyramid.Geometry, layerIdx int, isEncode bool, blockSize mv.BlockSize, numActiveRefs, numResultsPerRef int, rangeX, rangeY int32) *LayerContext {
	gridW := (geom.Width + int(blockSize) - 1) / int(blockSize)
	gridH := (geom.Height + int(blockSize) - 1) / int(blockSize)
	return &LayerContext{
		Geometry: geom,
		LayerIdx: layerIdx,
		IsEncode: isEncode,
		Bank:     mv.NewBank(blockSize, gridW, gridH, 1, numResultsPerRef, numActiveRefs),
		RangeX:     rangeX,
		RangeY:     rangeY,
		RowSync:    depmgr.NewRowRow(gridH),
		PrevGlobal: make(map[int16]globalmv.GlobalMV),
	}
}

// ResetForPicture reinitializes the MV bank and row-sync state and empties
// every reference slot's global-MV histogram; the slots' finished GlobalMV
// lobes are kept. No MV may alias across pictures other than through the
// explicit global-MV and colocated lookups, so the bank is cleared rather
// than carried.
func (lc *LayerContext) ResetForPicture() {
	lc.Bank.Reset()
	lc.RowSync.Reset()
	for i := range lc.Refs {
		// GlobalMV keeps the previous picture's lobes (seeded at AddRef);
		// only the histogram restarts for the new picture.
		if lc.Refs[i].Hist != nil {
			lc.Refs[i].Hist.Reset()
		}
	}
}

// ErrRefNotFound is returned by RefByIdx when no active slot carries the
// requested reference index.
var ErrRefNotFound = fmt.Errorf("hme/layerctx: reference index not active in this layer")

// RefByIdx returns the slot for refIdx, or ErrRefNotFound if refIdx is not
// among this layer's active references. A bank entry is only meaningful
// for an active reference, and that is enforced at this lookup rather
// than inside the bank itself.
func (lc *LayerContext) RefByIdx(refIdx int16) (*RefSlot, error) {
	for i := range lc.Refs {
		if lc.Refs[i].RefIdx == refIdx {
			return &lc.Refs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrRefNotFound, refIdx)
}

// AddRef attaches an active reference descriptor to this layer under
// refIdx, allocating its global-MV histogram and seeding the slot's lobes
// from the previous picture's finished histogram for the same reference
// index.
func (lc *LayerContext) AddRef(refIdx int16, desc *refctx.Descriptor) {
	lc.Refs = append(lc.Refs, RefSlot{
		Desc:     desc,
		Hist:     globalmv.New(globalmv.DefaultBucketSize),
		RefIdx:   refIdx,
		GlobalMV: lc.PrevGlobal[refIdx],
	})
}

// FinalizeGlobalMV folds every reference slot's accumulated histogram into
// its GlobalMV lobes and records them for the next picture, called once
// per picture after the layer's search pass completes.
func (lc *LayerContext) FinalizeGlobalMV() {
	for i := range lc.Refs {
		if lc.Refs[i].Hist != nil {
			lc.Refs[i].GlobalMV.Accumulate(lc.Refs[i].Hist)
		}
		lc.PrevGlobal[lc.Refs[i].RefIdx] = lc.Refs[i].GlobalMV
	}
}

// DeriveWorstCaseSearchRange scales a picture-wide base MV range (in
// quarter-pel units) by the temporal POC distance to the reference and
// clamps the result to the layer's supported maximum. The `- 4` applied to
// the horizontal range before scaling is inherited from the original
// derivation without a recorded rationale; it is preserved as-is rather
// than re-derived.
// TODO: revisit whether the horizontal `- 4` can be retired once the
// derivation it came from is understood.
func DeriveWorstCaseSearchRange(rangeX, rangeY, pocDist, maxX, maxY int32) (int32, int32) {
	if pocDist < 1 {
		pocDist = 1
	}
	x := (rangeX - 4) * pocDist
	y := rangeY * pocDist
	if x < 4 {
		x = 4
	}
	if y < 4 {
		y = 4
	}
	if x > maxX {
		x = maxX
	}
	if y > maxY {
		y = maxY
	}
	return x, y
}
