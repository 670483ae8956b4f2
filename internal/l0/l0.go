package l0

import (
	"fmt"

	"github.com/hme-project/hme/internal/arena"
	"github.com/hme-project/hme/internal/candidate"
	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/refctx"
)

// blockSize is the granularity of a single L0 search unit: the 16x16
// decomposition of a CTB.
const blockSize = 16

// ctbGrid is how many blockSize units span one side of a 64x64 CTB.
const ctbGrid = 4

// Params bundles every knob the per-CTB pipeline needs across its stages.
type Params struct {
	Fpel         FpelRefineParams
	Subpel       SubpelRefineParams
	Merge        MergeParams
	BiPred       BiPredParams
	BidirEnabled bool // gates whether the pipeline builds an L1Ref for ProcessCTB
	TopK         int

	// SubpelCandsPerPart caps how many results each (partition, direction)
	// row of a block's search-results table keeps. Zero means 2.
	SubpelCandsPerPart int

	// ActivePartsLimited restricts partition coverage to the symmetric
	// 2Nx2N/2NxN/Nx2N set, the speed-preset trade the quality presets
	// leave off.
	ActivePartsLimited bool

	// RatioQ8 converts a parent-layer MV into this layer's pixel grid
	// (256 = same scale). Zero is treated as 256.
	RatioQ8 int32

	// Scratch, when non-nil, is the calling thread's scratch budget; it is
	// reset and re-reserved per CTB, and exhaustion aborts the picture.
	Scratch *arena.Arena
}

// scratchPerBlock is the worst-case per-16x16-block scratch footprint
// across the subpel, bi-pred, and merge stages: one interpolation buffer,
// two direction predictions, and one averaged signal.
const scratchPerBlock = blockSize * blockSize * 4

// L1Ref supplies the second reference direction's slot and colocated seed
// for bi-prediction. When nil, ProcessCTB runs the single-reference (L0
// only) path and never reaches RefDirBi.
type L1Ref struct {
	RefIdx        int16
	Colocated     mv.MV
	HaveColocated bool
}

// subBlock carries one 16x16 unit's state across ProcessCTB's stages. A
// 64x64 CTB owns up to ctbGrid*ctbGrid of these. rb is the block's
// search-results table: every refined candidate lands in it under its
// (partition, direction) row, and the later stages read their inputs back
// out of it.
type subBlock struct {
	bx, by int
	px, py int

	candsL0 []mv.MV
	fpelL0  []PUCandidate

	candsL1 []mv.MV
	fpelL1  []PUCandidate

	rb *mv.ResultBlock

	mergeBest map[mv.PartID]MergeCandidate

	results []PUResult
}

// ProcessCTB drives one 64x64 CTB through every stage of the finest-layer
// pipeline, refining each of its ctbGrid*ctbGrid constituent 16x16 blocks
// in turn and writing every block's ranked partition results, with
// geometry derived from each result's Part, into one list sorted ascending
// by TotalCost. cur is the picture's L0 plane; lc is the L0
// layer context (refIdx must already have an active slot); parent is the
// coarser layer whose bank seeds the projected candidate. l1, when
// non-nil, supplies the second reference direction: each 16x16 block then
// also runs the L1 unipred pipeline and pairs it against L0 via
// EvaluateBiPred before SelectPartitions.
//
// When the reference carries non-identity weighted prediction, the slot's
// inverse-weighted input cache stands in for cur on that direction's
// unipred stages, so distortion is measured in the domain the weighted
// prediction will be formed in.
func ProcessCTB(c *CTB, lc, parent *layerctx.LayerContext, cur *plane.Plane, refIdx int16, colocated mv.MV, haveColocated bool, l1 *L1Ref, p Params) error {
	bx0, by0 := c.X/blockSize, c.Y/blockSize

	resultCap := p.SubpelCandsPerPart
	if resultCap < 1 {
		resultCap = 2
	}
	var blocks []*subBlock
	for dy := 0; dy < ctbGrid; dy++ {
		for dx := 0; dx < ctbGrid; dx++ {
			bx, by := bx0+dx, by0+dy
			if !lc.Bank.InBounds(bx, by) {
				continue
			}
			blocks = append(blocks, &subBlock{
				bx: bx, by: by,
				px: c.X + dx*blockSize, py: c.Y + dy*blockSize,
				rb: mv.NewResultBlock(resultCap),
			})
		}
	}

	if p.Scratch != nil {
		p.Scratch.Reset()
		if err := p.Scratch.Reserve(len(blocks) * scratchPerBlock); err != nil {
			return fmt.Errorf("ctb (%d,%d): %w", c.X, c.Y, err)
		}
	}

	ratioQ8 := p.RatioQ8
	if ratioQ8 == 0 {
		ratioQ8 = 256
	}

	slot, err := lc.RefByIdx(refIdx)
	if err != nil {
		return err
	}
	srcL0 := cur
	if slot.WeightedInput != nil {
		srcL0 = slot.WeightedInput
	}
	var l1Slot *layerctx.RefSlot
	srcL1 := cur
	if l1 != nil {
		l1Slot, err = lc.RefByIdx(l1.RefIdx)
		if err != nil {
			return err
		}
		if l1Slot.WeightedInput != nil {
			srcL1 = l1Slot.WeightedInput
		}
	}

	if err := c.Advance(CandidatesBuilt); err != nil {
		return err
	}
	var allCands []PUCandidate
	for _, b := range blocks {
		b.candsL0 = BuildCandidates(lc, parent, colocated, haveColocated, b.bx, b.by, refIdx, ratioQ8)
		allCands = append(allCands, toCandidates(b.candsL0, refIdx, mv.RefDirL0)...)
		if l1 != nil {
			b.candsL1 = BuildCandidates(lc, parent, l1.Colocated, l1.HaveColocated, b.bx, b.by, l1.RefIdx, ratioQ8)
			allCands = append(allCands, toCandidates(b.candsL1, l1.RefIdx, mv.RefDirL1)...)
		}
	}
	c.Candidates = allCands

	if err := c.Advance(FpelRefined); err != nil {
		return err
	}
	var allFpel []PUCandidate
	for _, b := range blocks {
		// The MV rate term measures against the block's AMVP winner, so a
		// candidate near the predicted motion is not penalized for its raw
		// magnitude.
		pf := p.Fpel
		pf.Pred = amvpPredictor(lc, b.bx, b.by, refIdx, colocated, haveColocated)
		b.fpelL0 = RefineFullpel(srcL0, slot.Desc.Source, b.px, b.py, refIdx, mv.RefDirL0, b.candsL0, pf)
		allFpel = append(allFpel, b.fpelL0...)
		if l1 != nil {
			pf1 := p.Fpel
			pf1.Pred = amvpPredictor(lc, b.bx, b.by, l1.RefIdx, l1.Colocated, l1.HaveColocated)
			b.fpelL1 = RefineFullpel(srcL1, l1Slot.Desc.Source, b.px, b.py, l1.RefIdx, mv.RefDirL1, b.candsL1, pf1)
			allFpel = append(allFpel, b.fpelL1...)
		}
	}
	c.FpelBest = allFpel

	if err := c.Advance(SubpelRefined); err != nil {
		return err
	}
	var allSubpel []PUCandidate
	for _, b := range blocks {
		subpelL0 := refinePerPartition(srcL0, slot.Desc, b.px, b.py, b.fpelL0, p.Subpel)
		for _, sc := range subpelL0 {
			b.rb.Insert(sc.Part, sc.Dir, sc.Node)
		}
		allSubpel = append(allSubpel, subpelL0...)
		if l1 != nil {
			subpelL1 := refinePerPartition(srcL1, l1Slot.Desc, b.px, b.py, b.fpelL1, p.Subpel)
			for _, sc := range subpelL1 {
				b.rb.Insert(sc.Part, sc.Dir, sc.Node)
			}
			allSubpel = append(allSubpel, subpelL1...)
		}
	}
	c.SubpelBest = allSubpel

	if err := c.Advance(BiEvaluated); err != nil {
		return err
	}
	var allBi []PUCandidate
	for _, b := range blocks {
		if l1 == nil {
			continue
		}
		bi := evaluateBiPredForBlock(cur, b.px, b.py, b.rb, slot.Desc, l1Slot.Desc, p.BiPred)
		for _, bc := range bi {
			b.rb.Insert(bc.Part, mv.RefDirBi, bc.Node)
		}
		allBi = append(allBi, bi...)
	}
	c.BiBest = allBi

	if err := c.Advance(MergeEvaluated); err != nil {
		return err
	}
	var allMerge []PUCandidate
	for _, b := range blocks {
		nb := candidate.ExtractSpatial(lc.Bank, b.bx, b.by, refIdx)
		mergeCands := BuildMergeCandidates(nb, colocated, haveColocated, refIdx, p.Merge)
		evaluatedMerge := EvaluateMerge(srcL0, slot.Desc.Source, b.px, b.py, blockSize, blockSize, refIdx, mergeCands, p.Merge)
		b.mergeBest = make(map[mv.PartID]MergeCandidate, 1)
		if best, ok := BestMerge(evaluatedMerge); ok {
			b.mergeBest[mv.Part2Nx2N] = best
			allMerge = append(allMerge, PUCandidate{Part: mv.Part2Nx2N, Dir: mv.RefDirL0, Node: mv.Node{MV: best.MVL0, RefIdx: best.RefIdxL0, TotalCost: best.TotalCost, IsAvail: true}})
		}
	}
	c.MergeBest = allMerge

	if err := c.Advance(PartitionSelected); err != nil {
		return err
	}
	for _, b := range blocks {
		b.results = SelectPartitions(b.rb, b.mergeBest, p.ActivePartsLimited, p.TopK)
	}

	if err := c.Advance(WrittenBack); err != nil {
		return err
	}
	var output []PUResult
	for _, b := range blocks {
		for i := range b.results {
			dx, dy, w, h := partGeometry(b.results[i].Part)
			b.results[i].X = b.px + dx
			b.results[i].Y = b.py + dy
			b.results[i].Width = w
			b.results[i].Height = h
		}
		if best, ok := bestResult(b.results); ok {
			lc.Bank.At(b.bx, b.by).Insert(mv.Node{MV: best.MVL0, RefIdx: refIdx, TotalCost: best.TotalCost, IsAvail: true}, 2)
		}
		output = append(output, b.results...)
	}
	sortResultsByCost(output)
	c.Output = output
	return nil
}

// refinePerPartition subpel-refines each fullpel candidate against its
// own partition's sub-rectangle within the 16x16 block at (px, py),
// rather than the whole block, so geometry stays correct for every
// non-2Nx2N partition.
func refinePerPartition(cur *plane.Plane, desc *refctx.Descriptor, px, py int, cands []PUCandidate, p SubpelRefineParams) []PUCandidate {
	out := make([]PUCandidate, 0, len(cands))
	for _, c := range cands {
		dx, dy, w, h := partGeometry(c.Part)
		refined := RefineSubpel(cur, desc, px+dx, py+dy, w, h, []PUCandidate{c}, p)
		out = append(out, refined...)
	}
	return out
}

// amvpPredictor derives the block's MVP from its causal neighbours per the
// AMVP rules, falling back to the colocated candidate and then zero. All
// of this layer's bank entries were measured against the same reference
// list, so no cross-POC rescale is needed here.
func amvpPredictor(lc *layerctx.LayerContext, bx, by int, refIdx int16, colocated mv.MV, haveColocated bool) mv.MV {
	nb := candidate.ExtractSpatial(lc.Bank, bx, by, refIdx)
	samePOC := func(string) (int32, bool) { return 0, false }
	preds := candidate.SelectAMVP(nb, 0, 0, samePOC, colocated, haveColocated, lc.RangeX, lc.RangeY)
	return preds[0]
}

// bestResult returns the lowest-cost PU in results, for the single
// representative node the MV bank keeps per block position.
func bestResult(results []PUResult) (PUResult, bool) {
	if len(results) == 0 {
		return PUResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.TotalCost < best.TotalCost {
			best = r
		}
	}
	return best, true
}

func toCandidates(mvs []mv.MV, refIdx int16, dir mv.RefDir) []PUCandidate {
	out := make([]PUCandidate, len(mvs))
	for i, m := range mvs {
		out[i] = PUCandidate{Part: mv.Part2Nx2N, Dir: dir, Node: mv.Node{MV: m, RefIdx: refIdx, IsAvail: true}}
	}
	return out
}

// ProcessCTBSkip drives a CTB straight through its lifecycle with a single
// zero-MV skip PU covering the whole block. This is the degenerate path a
// picture with no active references takes: there is nothing to search, so
// every CTB is emitted as an all-zero skip.
func ProcessCTBSkip(c *CTB) error {
	for _, s := range []State{CandidatesBuilt, FpelRefined, SubpelRefined, BiEvaluated, MergeEvaluated, PartitionSelected, WrittenBack} {
		if err := c.Advance(s); err != nil {
			return err
		}
	}
	c.Output = []PUResult{{
		X: c.X, Y: c.Y, Width: ctbGrid * blockSize, Height: ctbGrid * blockSize,
		Part: mv.Part2Nx2N, Dir: mv.RefDirL0,
		IsMerge: true, IsSkip: true,
	}}
	return nil
}
