package l0

import (
	"sort"

	"github.com/hme-project/hme/internal/cost"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
)

// partIDs lists every partition id the 16x16 decomposition produces, in
// the same order cost.PartialSADs16x16 emits them.
var partIDs = [int(mv.NumPartIDs)]mv.PartID{
	mv.Part2Nx2N,
	mv.Part2NxN_T, mv.Part2NxN_B,
	mv.PartNx2N_L, mv.PartNx2N_R,
	mv.PartNxN_TL, mv.PartNxN_TR, mv.PartNxN_BL, mv.PartNxN_BR,
	mv.Part2NxnU_U, mv.Part2NxnU_D,
	mv.Part2NxnD_U, mv.Part2NxnD_D,
	mv.PartnLx2N_L, mv.PartnLx2N_R,
	mv.PartnRx2N_L, mv.PartnRx2N_R,
}

// FpelRefineParams configures the fullpel refinement stage.
type FpelRefineParams struct {
	MaxRefineCenters int
	RefBits          uint32
	Lambda           uint32
	LambdaQShift     uint

	// Pred is the MVP the rate term measures differences against (the
	// AMVP winner for the block; zero when no predictor is available).
	Pred mv.MV

	// ActivePartsLimited restricts the evaluated partition ids to the
	// symmetric set; the partial-SAD call still produces all 17 sums, but
	// only the active ones are scored and kept.
	ActivePartsLimited bool
}

// RefineFullpel evaluates a 3x3 fullpel grid around each of the top
// p.MaxRefineCenters candidates (ranked by MV cost against p.Pred, used
// as a proxy for "running total cost" before any SAD has been measured),
// keeping for each partition id the cheapest result across all surviving
// centres, via a single partial_sads_16x16 call per grid offset.
func RefineFullpel(cur, ref *plane.Plane, px, py int, refIdx int16, dir mv.RefDir, cands []mv.MV, p FpelRefineParams) []PUCandidate {
	centers := rankCenters(cands, p)
	best := make(map[mv.PartID]PUCandidate, len(partIDs))

	for _, c := range centers {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				offMV := mv.MV{X: c.X + int16(dx*4), Y: c.Y + int16(dy*4)}
				rx := px + int(offMV.X)/4
				ry := py + int(offMV.Y)/4
				if rx < -ref.PadX || rx+16 > ref.Width+ref.PadX || ry < -ref.PadY || ry+16 > ref.Height+ref.PadY {
					continue
				}
				sads := cost.PartialSADs16x16(
					cur.Data[cur.Offset(px, py):], cur.Stride,
					ref.Data[ref.Offset(rx, ry):], ref.Stride,
				)
				for i, part := range partIDs {
					if !partActive(part, p.ActivePartsLimited) {
						continue
					}
					mvCost := cost.MVCost(offMV.X-p.Pred.X, offMV.Y-p.Pred.Y, p.RefBits, p.Lambda, p.LambdaQShift)
					total := sads[i] + mvCost
					if prev, ok := best[part]; !ok || total < prev.Node.TotalCost {
						best[part] = PUCandidate{
							Part: part,
							Dir:  dir,
							Node: mv.Node{MV: offMV, RefIdx: refIdx, SAD: sads[i], MVCost: mvCost, TotalCost: total, IsAvail: true},
						}
					}
				}
			}
		}
	}

	out := make([]PUCandidate, 0, len(partIDs))
	for _, part := range partIDs {
		if c, ok := best[part]; ok {
			out = append(out, c)
		}
	}
	return out
}

func rankCenters(cands []mv.MV, p FpelRefineParams) []mv.MV {
	type scored struct {
		mv   mv.MV
		cost uint32
	}
	scoredList := make([]scored, len(cands))
	for i, c := range cands {
		scoredList[i] = scored{mv: c, cost: cost.MVCost(c.X-p.Pred.X, c.Y-p.Pred.Y, p.RefBits, p.Lambda, p.LambdaQShift)}
	}
	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].cost < scoredList[j].cost })
	n := p.MaxRefineCenters
	if n <= 0 || n > len(scoredList) {
		n = len(scoredList)
	}
	out := make([]mv.MV, n)
	for i := 0; i < n; i++ {
		out[i] = scoredList[i].mv
	}
	return out
}
