// Package refine implements the intermediate-layer refinement search:
// layers between the coarsest and the finest project parent-layer results,
// combine them with spatial, colocated, and global candidates, and refine
// each survivor with a small grid/diamond search.
package refine

import (
	"github.com/hme-project/hme/internal/candidate"
	"github.com/hme-project/hme/internal/cost"
	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
)

// GridKind selects the refinement search pattern.
type GridKind int

const (
	Grid9x9    GridKind = iota // 9-point 3x3 grid
	Diamond5                   // 4 cross-shaped offsets plus centre
	Rectangle9                 // 9-point rectangular pattern at 2:1 aspect
)

// Params configures one refinement pass over a layer.
type Params struct {
	Grid             GridKind
	MaxIterations    int
	Lambda           uint32
	LambdaQShift     uint
	RefBitsFor       func(refIdx int16) uint32
	NumResultsPerRef int
	BlockSize        int // 8 for an 8x8-block refinement layer
}

var gridOffsets = map[GridKind][]mv.MV{
	Grid9x9: {
		{X: -4, Y: -4}, {X: 0, Y: -4}, {X: 4, Y: -4},
		{X: -4, Y: 0}, {X: 4, Y: 0},
		{X: -4, Y: 4}, {X: 0, Y: 4}, {X: 4, Y: 4},
	},
	Diamond5: {
		{X: 0, Y: -4}, {X: -4, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 4},
	},
	Rectangle9: {
		{X: -8, Y: -4}, {X: 0, Y: -4}, {X: 8, Y: -4},
		{X: -8, Y: 0}, {X: 8, Y: 0},
		{X: -8, Y: 4}, {X: 0, Y: 4}, {X: 8, Y: 4},
	},
}

// SearchPicture refines every active reference's MV bank at this layer.
// parent is the coarser layer this one was derived from (its bank supplies
// the "projected" candidate); colocated, when non-nil, supplies the "Z"
// candidate from the same layer's previous-picture bank.
func SearchPicture(lc *layerctx.LayerContext, parent *layerctx.LayerContext, colocated *mv.Bank, cur *plane.Plane, ratioQ8 int32, p Params) {
	gridW, gridH := lc.Bank.GridW, lc.Bank.GridH
	for _, slot := range lc.Refs {
		refBits := RefBits(slot.RefIdx, p)
		for by := 0; by < gridH; by++ {
			SearchRow(lc, parent, colocated, cur, slot.Desc.Source, slot.RefIdx, slot.Hist, ratioQ8, by, gridW, refBits, p)
			lc.RowSync.Set(by, gridW)
		}
	}
	lc.FinalizeGlobalMV()
}

// RefBits resolves p.RefBitsFor for refIdx, defaulting to 1 when unset.
func RefBits(refIdx int16, p Params) uint32 {
	if p.RefBitsFor != nil {
		return p.RefBitsFor(refIdx)
	}
	return 1
}

// SearchRow refines every block in row `by` against one reference. As in
// coarse.SearchRow, the caller owns publishing lc.RowSync so a wavefront
// driver spanning multiple layers can sequence the publish after whatever
// else it needs to do for that row (e.g. waiting on the parent layer).
func SearchRow(lc, parent *layerctx.LayerContext, colocated *mv.Bank, cur, ref *plane.Plane, refIdx int16, hist interface {
	Add(mv.MV)
}, ratioQ8 int32, by, gridW int, refBits uint32, p Params) {
	for bx := 0; bx < gridW; bx++ {
		cands := buildCandidates(lc, parent, colocated, bx, by, refIdx, ratioQ8)
		best := refineBlock(cur, ref, bx*p.BlockSize, by*p.BlockSize, p.BlockSize, refIdx, cands, refBits, p)
		lc.Bank.At(bx, by).Insert(best, p.NumResultsPerRef)
		if hist != nil {
			hist.Add(best.MV)
		}
	}
}

func buildCandidates(lc, parent *layerctx.LayerContext, colocated *mv.Bank, bx, by int, refIdx int16, ratioQ8 int32) []mv.MV {
	var dedup candidate.DedupSet
	var out []mv.MV

	add := func(m mv.MV) {
		if dedup.TryAdd(m, refIdx) {
			out = append(out, m)
		}
	}

	if colocated != nil && colocated.InBounds(bx, by) {
		if n, ok := colocated.At(bx, by).Best(refIdx); ok {
			add(n.MV)
		}
	}

	nb := candidate.ExtractSpatial(lc.Bank, bx, by, refIdx)
	for _, n := range []mv.Node{nb.Left, nb.TopCenterLeft, nb.TopLeft, nb.TopRight} {
		if n.IsAvail {
			add(n.MV)
		}
	}

	if parent != nil {
		parentBX, parentBY := scaleCoord(bx, parent.Bank.GridW, lc.Bank.GridW), scaleCoord(by, parent.Bank.GridH, lc.Bank.GridH)
		if n, ok := candidate.Project(parent.Bank, parentBX, parentBY, refIdx, ratioQ8, lc.RangeX, lc.RangeY); ok {
			add(n.MV)
		}
	}

	if slot, err := lc.RefByIdx(refIdx); err == nil {
		if lobe, ok := slot.GlobalLobe(); ok {
			add(lobe)
		}
	}

	add(mv.MV{})
	return out
}

func scaleCoord(c, parentExtent, childExtent int) int {
	if childExtent == 0 {
		return 0
	}
	return c * parentExtent / childExtent
}

func refineBlock(cur, ref *plane.Plane, px, py, blockSize int, refIdx int16, cands []mv.MV, refBits uint32, p Params) mv.Node {
	var best mv.Node
	haveBest := false

	// A candidate whose block footprint spills past the padded plane is a
	// silent skip, never an error.
	score := func(m mv.MV) (uint32, uint32, uint32, bool) {
		rx, ry := px+int(m.X)/4, py+int(m.Y)/4
		if rx < -ref.PadX || rx+blockSize > ref.Width+ref.PadX ||
			ry < -ref.PadY || ry+blockSize > ref.Height+ref.PadY {
			return 0, 0, 0, false
		}
		sad := cost.SAD(
			cur.Data[cur.Offset(px, py):], cur.Stride,
			ref.Data[ref.Offset(rx, ry):], ref.Stride,
			blockSize, blockSize,
		)
		mvCost := cost.MVCost(m.X, m.Y, refBits, p.Lambda, p.LambdaQShift)
		return sad, mvCost, sad + mvCost, true
	}

	for _, c := range cands {
		sad, mvCost, total, ok := score(c)
		if !ok {
			continue
		}
		if !haveBest || total < best.TotalCost {
			best = mv.Node{MV: c, RefIdx: refIdx, SAD: sad, MVCost: mvCost, TotalCost: total, IsAvail: true}
			haveBest = true
		}
	}
	if !haveBest {
		return mv.Node{RefIdx: refIdx, IsAvail: true}
	}

	offsets := gridOffsets[p.Grid]
	divisor := int16(1)
	for iter := 0; iter < p.MaxIterations; iter++ {
		improved := false
		centre := best.MV
		if p.Grid == Grid9x9 && divisor == 1 && centre.X&3 == 0 && centre.Y&3 == 0 {
			// Fullpel 3x3 iteration: one grid-SAD call covers all nine
			// offsets, amortizing the source-side reads.
			improved = refineGridStep(cur, ref, px, py, blockSize, refIdx, refBits, centre, &best, p)
		} else {
			for _, off := range offsets {
				cand := mv.MV{X: centre.X + off.X/divisor, Y: centre.Y + off.Y/divisor}
				sad, mvCost, total, ok := score(cand)
				if !ok {
					continue
				}
				if total < best.TotalCost {
					best = mv.Node{MV: cand, RefIdx: refIdx, SAD: sad, MVCost: mvCost, TotalCost: total, IsAvail: true}
					improved = true
				}
			}
		}
		if !improved {
			if divisor >= 4 {
				break
			}
			divisor *= 2
		}
	}
	return best
}

// refineGridStep evaluates the nine fullpel offsets of a 3x3 grid around
// centre with a single cost.SADGrid call, updating best in place and
// reporting whether any neighbour improved on it.
func refineGridStep(cur, ref *plane.Plane, px, py, blockSize int, refIdx int16, refBits uint32, centre mv.MV, best *mv.Node, p Params) bool {
	cx := px + int(centre.X)/4
	cy := py + int(centre.Y)/4
	if cx-1 < -ref.PadX || cx+1+blockSize > ref.Width+ref.PadX ||
		cy-1 < -ref.PadY || cy+1+blockSize > ref.Height+ref.PadY {
		return false
	}
	// The grid base is the raw (pad-inclusive) buffer origin so negative
	// logical coordinates inside the pad ring stay valid slice offsets.
	sads := cost.SADGrid(
		cur.Data[cur.Offset(px, py):], cur.Stride,
		ref.Data, ref.Stride,
		blockSize, blockSize, cx+ref.PadX, cy+ref.PadY, 1,
	)
	improved := false
	i := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				i++
				continue
			}
			cand := mv.MV{X: centre.X + int16(dx*4), Y: centre.Y + int16(dy*4)}
			mvCost := cost.MVCost(cand.X, cand.Y, refBits, p.Lambda, p.LambdaQShift)
			total := sads[i] + mvCost
			if total < best.TotalCost {
				*best = mv.Node{MV: cand, RefIdx: refIdx, SAD: sads[i], MVCost: mvCost, TotalCost: total, IsAvail: true}
				improved = true
			}
			i++
		}
	}
	return improved
}
