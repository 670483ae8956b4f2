package l0

import (
	"github.com/hme-project/hme/internal/cost"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/refctx"
)

// BiPredParams configures the bi-prediction evaluation stage.
type BiPredParams struct {
	UseSATD bool
}

// EvaluateBiPred pairs, for every partition id present in both l0Best and
// l1Best, the best L0 and best L1 unidirectional results and scores the
// bi-pred signal formed by averaging the two unipred predictions. w and h
// must match the partition's dimensions.
func EvaluateBiPred(cur *plane.Plane, px, py, w, h int, l0Best, l1Best map[mv.PartID]PUCandidate, predL0, predL1 map[mv.PartID][]byte, p BiPredParams) []PUCandidate {
	var out []PUCandidate
	for part, l0 := range l0Best {
		l1, ok := l1Best[part]
		if !ok {
			continue
		}
		p0, ok0 := predL0[part]
		p1, ok1 := predL1[part]
		if !ok0 || !ok1 {
			continue
		}
		avg := make([]byte, w*h)
		averageBlocks(avg, w, p0, w, p1, w, w, h)

		var dist uint32
		if p.UseSATD {
			dist = cost.SATD(cur.Data[cur.Offset(px, py):], cur.Stride, avg, w, w, h)
		} else {
			dist = cost.SAD(cur.Data[cur.Offset(px, py):], cur.Stride, avg, w, w, h)
		}
		totalCost := dist + l0.Node.MVCost + l1.Node.MVCost
		out = append(out, PUCandidate{
			Part: part,
			Dir:  mv.RefDirBi,
			Node: mv.Node{
				MV:        l0.Node.MV,
				RefIdx:    l0.Node.RefIdx,
				SAD:       dist,
				MVCost:    l0.Node.MVCost + l1.Node.MVCost,
				TotalCost: totalCost,
				IsAvail:   true,
			},
		})
	}
	return out
}

// evaluateBiPredForBlock pairs, for every partition id with a best result
// in both directions of the block's search-results table, the L0 and L1
// winners, building each partition's own correctly-sized prediction
// buffer from its own reference descriptor before scoring. EvaluateBiPred
// itself assumes a single (w, h) per call, so each partition is evaluated
// with its own single-entry maps rather than widening that function's
// contract to mixed partition sizes.
func evaluateBiPredForBlock(cur *plane.Plane, px, py int, rb *mv.ResultBlock, descL0, descL1 *refctx.Descriptor, p BiPredParams) []PUCandidate {
	var out []PUCandidate
	for part := mv.PartID(0); part < mv.NumPartIDs; part++ {
		l0n, okL0 := rb.Best(part, mv.RefDirL0)
		l1n, okL1 := rb.Best(part, mv.RefDirL1)
		if !okL0 || !okL1 {
			continue
		}
		dx, dy, w, h := partGeometry(part)
		ppx, ppy := px+dx, py+dy

		pred0, ok0 := BuildPrediction(descL0, ppx, ppy, w, h, l0n.MV)
		pred1, ok1 := BuildPrediction(descL1, ppx, ppy, w, h, l1n.MV)
		if !ok0 || !ok1 {
			continue
		}

		l0c := PUCandidate{Part: part, Dir: mv.RefDirL0, Node: l0n}
		l1c := PUCandidate{Part: part, Dir: mv.RefDirL1, Node: l1n}
		evaluated := EvaluateBiPred(cur, ppx, ppy, w, h,
			map[mv.PartID]PUCandidate{part: l0c},
			map[mv.PartID]PUCandidate{part: l1c},
			map[mv.PartID][]byte{part: pred0},
			map[mv.PartID][]byte{part: pred1},
			p,
		)
		out = append(out, evaluated...)
	}
	return out
}
