package l0

import (
	"github.com/hme-project/hme/internal/candidate"
	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
)

// MaxColocatedCandidates bounds how many colocated-projected candidates
// are retained per 16x16 block.
const MaxColocatedCandidates = 4

// BuildCandidates constructs the candidate list for the 16x16 block at
// grid position (bx, by): projected parent-layer results, spatial causal
// neighbours, a colocated temporal candidate, the global MV, and zero —
// deduplicated against a bounded per-block set.
func BuildCandidates(lc, parent *layerctx.LayerContext, colocatedMV mv.MV, haveColocated bool, bx, by int, refIdx int16, ratioQ8 int32) []mv.MV {
	var dedup candidate.DedupSet
	var out []mv.MV

	add := func(m mv.MV) {
		if len(out) >= MaxColocatedCandidates*4 {
			return
		}
		if dedup.TryAdd(m, refIdx) {
			out = append(out, m)
		}
	}

	if parent != nil {
		parentBX := bx * parent.Bank.GridW / maxInt(lc.Bank.GridW, 1)
		parentBY := by * parent.Bank.GridH / maxInt(lc.Bank.GridH, 1)
		projected := 0
		for dy := -1; dy <= 1 && projected < MaxColocatedCandidates; dy++ {
			for dx := -1; dx <= 1 && projected < MaxColocatedCandidates; dx++ {
				if n, ok := candidate.Project(parent.Bank, parentBX+dx, parentBY+dy, refIdx, ratioQ8, lc.RangeX, lc.RangeY); ok {
					add(n.MV)
					projected++
				}
			}
		}
	}

	nb := candidate.ExtractSpatial(lc.Bank, bx, by, refIdx)
	for _, n := range []mv.Node{nb.Left, nb.TopCenterLeft, nb.TopLeft, nb.TopRight, nb.BottomLeft} {
		if n.IsAvail {
			add(n.MV)
		}
	}

	if haveColocated {
		add(colocatedMV)
	}

	if slot, err := lc.RefByIdx(refIdx); err == nil {
		if lobe, ok := slot.GlobalLobe(); ok {
			add(lobe)
		}
	}

	add(mv.MV{})
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
