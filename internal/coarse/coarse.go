// Package coarse implements the coarsest-layer exhaustive motion search:
// for every 4x4 block in the layer, sweep a fixed-step search window
// against each active reference, score candidates by SAD plus an MV-cost
// term, and write the best-per-reference results into the layer's MV bank,
// while accumulating the reference's global-MV histogram.
//
// The sweep is organized around a row-sized SAD cache: at each window
// offset one pass fills the 4x4 SADs of the whole row (and of the row
// below), so the 8x4 combination with the east neighbour and the 4x8
// combination with the south neighbour come from two adds instead of
// fresh pixel reads. A combined 8x4 result that beats the sum of the two
// blocks' own best costs, or a 4x8 result that beats twice the current
// block's own best cost, is written into both blocks, so the east/south
// neighbour consumes it when its turn comes.
package coarse

import (
	"github.com/hme-project/hme/internal/cost"
	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/refctx"
)

// Params configures one coarse-layer search pass.
type Params struct {
	Step             int32 // search window step, 2 or 4 depending on quality preset
	Lambda           uint32
	LambdaQShift     uint
	RefBitsFor       func(refIdx int16) uint32
	NumResultsPerRef int

	// CurrPOC and RangeX/RangeY (quarter-pel) drive the per-reference
	// picture-wide range derivation: the base range is scaled by the POC
	// distance to each reference and clamped to the layer's maximum. A
	// zero RangeX/RangeY falls back to whatever the reference plane's
	// padding can serve.
	CurrPOC int32
	RangeX  int32
	RangeY  int32
}

// SearchPicture runs the coarse search for every active reference in lc
// against the current picture's downsampled plane cur, writing results
// into lc.Bank and lc.Refs[*].Hist, then folds each reference's histogram
// into its global-MV lobes.
//
// This single-goroutine driver advances rows in order; a concurrent worker
// pool can drive the same SearchRow from multiple goroutines and observe
// the same per-row publish contract through lc.RowSync.
func SearchPicture(lc *layerctx.LayerContext, cur *plane.Plane, p Params) {
	gridW, gridH := lc.Bank.GridW, lc.Bank.GridH
	for _, slot := range lc.Refs {
		refBits := RefBits(slot.RefIdx, p)
		for by := 0; by < gridH; by++ {
			SearchRow(lc, cur, slot.Desc, slot.RefIdx, slot.Hist, by, gridW, refBits, p)
			lc.RowSync.Set(by, gridW)
		}
	}
	lc.FinalizeGlobalMV()
}

// RefBits resolves p.RefBitsFor for refIdx, defaulting to 1 when unset.
// Exported so a wavefront driver sequencing per-row jobs across references
// can compute it once per (ref, row) job without re-deriving Params'
// internals.
func RefBits(refIdx int16, p Params) uint32 {
	if p.RefBitsFor != nil {
		return p.RefBitsFor(refIdx)
	}
	return 1
}

// rowScratch carries the per-offset SAD caches for one row sweep.
type rowScratch struct {
	cur   []uint32 // 4x4 SADs of this row at the current offset
	south []uint32 // 4x4 SADs of the row below at the same offset
}

// SearchRow runs the exhaustive search for every block in row `by` against
// one reference, writing results into lc.Bank. Combined 8x4/4x8 winners
// are also written into the east/south neighbour's cell (the south cell
// belongs to row by+1, which cannot start until this row publishes, so
// the write is race-free). SearchRow does not publish lc.RowSync itself —
// callers driving a wavefront own that publish.
func SearchRow(lc *layerctx.LayerContext, cur *plane.Plane, desc *refctx.Descriptor, refIdx int16, hist interface {
	Add(mv.MV)
}, by, gridW int, refBits uint32, p Params) {
	blockSize := int(lc.Bank.Size)
	ref := desc.Source
	rangeFpel := rangeForRef(lc, desc, ref, p)
	step := int(p.Step)
	if step < 1 {
		step = 1
	}

	// Predictor for the MV-cost term: the published best of the block
	// directly above (zero on the first row). Left-neighbour prediction
	// would chain this row's own inserts through the offset-major sweep
	// below, so the causal row above serves instead.
	preds := make([]mv.MV, gridW)
	if by > 0 {
		for bx := 0; bx < gridW; bx++ {
			if n, ok := lc.Bank.At(bx, by-1).Best(refIdx); ok {
				preds[bx] = n.MV
			}
		}
	}

	best := make([]mv.Node, gridW)
	best8x4 := make([]mv.Node, gridW) // shared (bx, bx+1) winner, keyed at bx
	best4x8 := make([]mv.Node, gridW) // shared (bx, south) winner, keyed at bx

	scratch := rowScratch{
		cur:   make([]uint32, gridW),
		south: make([]uint32, gridW),
	}
	py := by * blockSize
	haveSouth := (by+1)*blockSize+blockSize <= cur.Height+cur.PadY

	for dy := -rangeFpel; dy <= rangeFpel; dy += step {
		ry := py + dy
		if ry < -ref.PadY || ry+2*blockSize > ref.Height+ref.PadY {
			continue
		}
		for dx := -rangeFpel; dx <= rangeFpel; dx += step {
			if bad := fillRowSADs(&scratch, cur, ref, py, dx, dy, blockSize, gridW, haveSouth); bad {
				continue
			}
			candMV := mv.MV{X: int16(dx * 4), Y: int16(dy * 4)}

			for bx := 0; bx < gridW; bx++ {
				mvCost := cost.MVCost(candMV.X-preds[bx].X, candMV.Y-preds[bx].Y, refBits, p.Lambda, p.LambdaQShift)
				own := scratch.cur[bx]
				updateBest(&best[bx], candMV, refIdx, own, mvCost)

				if bx+1 < gridW {
					updateBest(&best8x4[bx], candMV, refIdx, own+scratch.cur[bx+1], mvCost)
				}
				if haveSouth {
					updateBest(&best4x8[bx], candMV, refIdx, own+scratch.south[bx], mvCost)
				}
			}
		}
	}

	for bx := 0; bx < gridW; bx++ {
		if best[bx].IsAvail {
			lc.Bank.At(bx, by).Insert(best[bx], p.NumResultsPerRef)
			if hist != nil {
				hist.Add(best[bx].MV)
			}
		}
	}

	// A shared-partition winner only displaces the constituents' own
	// results when it beats their combined cost (for the south pair, whose
	// lower cell has not been searched yet, twice the current block's own
	// best stands in for it); it then lands in both cells so the neighbour
	// sees it as a ready-made candidate.
	for bx := 0; bx < gridW; bx++ {
		if e := best8x4[bx]; e.IsAvail && bx+1 < gridW {
			if e.TotalCost < best[bx].TotalCost+best[bx+1].TotalCost {
				lc.Bank.At(bx, by).Insert(e, p.NumResultsPerRef)
				lc.Bank.At(bx+1, by).Insert(e, p.NumResultsPerRef)
			}
		}
		if s := best4x8[bx]; s.IsAvail && by+1 < lc.Bank.GridH {
			if s.TotalCost < 2*best[bx].TotalCost {
				lc.Bank.At(bx, by).Insert(s, p.NumResultsPerRef)
				lc.Bank.At(bx, by+1).Insert(s, p.NumResultsPerRef)
			}
		}
	}
}

// fillRowSADs computes the 4x4 SAD of every block in the row (and the row
// below it, when present) at window offset (dx, dy), reporting true when
// the offset cannot be served for this row at all.
func fillRowSADs(s *rowScratch, cur, ref *plane.Plane, py, dx, dy, blockSize, gridW int, haveSouth bool) bool {
	for bx := 0; bx < gridW; bx++ {
		px := bx * blockSize
		rx, ry := px+dx, py+dy
		if rx < -ref.PadX || rx+blockSize > ref.Width+ref.PadX {
			return true
		}
		s.cur[bx] = cost.SAD(
			cur.Data[cur.Offset(px, py):], cur.Stride,
			ref.Data[ref.Offset(rx, ry):], ref.Stride,
			blockSize, blockSize,
		)
		if haveSouth {
			s.south[bx] = cost.SAD(
				cur.Data[cur.Offset(px, py+blockSize):], cur.Stride,
				ref.Data[ref.Offset(rx, ry+blockSize):], ref.Stride,
				blockSize, blockSize,
			)
		}
	}
	return false
}

func updateBest(n *mv.Node, candMV mv.MV, refIdx int16, sad uint32, mvCost uint32) {
	total := sad + mvCost
	if !n.IsAvail || total < n.TotalCost {
		*n = mv.Node{
			MV:        candMV,
			RefIdx:    refIdx,
			SAD:       sad,
			MVCost:    mvCost,
			TotalCost: total,
			IsAvail:   true,
		}
	}
}

// rangeForRef derives this reference's fullpel search range: the
// picture-wide base range scaled by POC distance and clamped to the
// layer's maximum, then bounded by what the padded plane can serve so the
// sweep never needs an out-of-bounds fallback.
func rangeForRef(lc *layerctx.LayerContext, desc *refctx.Descriptor, ref *plane.Plane, p Params) int {
	padBound := ref.PadX
	if ref.PadY < padBound {
		padBound = ref.PadY
	}
	if padBound < 0 {
		padBound = 0
	}
	// The sweep also reads one block row below the current one, so keep a
	// block of headroom against the vertical pad.
	padBound -= int(lc.Bank.Size)
	if padBound < 0 {
		padBound = 0
	}
	if p.RangeX <= 0 || p.RangeY <= 0 {
		return padBound
	}
	pocDist := p.CurrPOC - desc.POC
	if pocDist < 0 {
		pocDist = -pocDist
	}
	rx, ry := layerctx.DeriveWorstCaseSearchRange(p.RangeX, p.RangeY, pocDist, lc.RangeX, lc.RangeY)
	r := rx
	if ry < r {
		r = ry
	}
	rFpel := int(r / 4)
	if rFpel > padBound {
		rFpel = padBound
	}
	return rFpel
}
