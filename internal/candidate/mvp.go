package candidate

import "github.com/hme-project/hme/internal/mv"

// SelectAMVP implements the HEVC AMVP predictor derivation: pick the
// first valid predictor from {bottom-left, left}, then the first from
// {top-right, top, top-left}; scale to the target reference when the POC
// differs; drop duplicates; fall back to colocated then zero.
//
// targetPOC/neighbourPOC let the caller rescale a same-direction neighbour
// whose MV was measured against a different reference POC; curr is the
// current picture's POC.
func SelectAMVP(n Neighbours, curr, targetPOC int32, neighbourPOC func(pos string) (int32, bool), colocated mv.MV, haveColocated bool, rangeX, rangeY int32) [2]mv.MV {
	var preds []mv.MV

	tryAdd := func(pos string, node mv.Node) {
		if !node.IsAvail {
			return
		}
		v := node.MV
		if poc, ok := neighbourPOC(pos); ok && poc != targetPOC {
			scf := ScaleFactorQ8(curr, poc, targetPOC)
			v = v.Scale(scf)
		}
		v = v.Clamp(rangeX, rangeY)
		preds = append(preds, v)
	}

	// Left group: bottom-left first, then left.
	leftFound := len(preds)
	tryAdd("bottom-left", n.BottomLeft)
	if len(preds) == leftFound {
		tryAdd("left", n.Left)
	}

	// Top group: top-right, then top, then top-left.
	topFound := len(preds)
	tryAdd("top-right", n.TopRight)
	if len(preds) == topFound {
		tryAdd("top", n.TopCenterLeft)
	}
	if len(preds) == topFound {
		tryAdd("top-left", n.TopLeft)
	}

	preds = dedupMVs(preds)

	if haveColocated {
		co := colocated.Clamp(rangeX, rangeY)
		dup := false
		for _, p := range preds {
			if p == co {
				dup = true
				break
			}
		}
		if !dup {
			preds = append(preds, co)
		}
	}
	for len(preds) < 2 {
		preds = append(preds, mv.MV{})
	}
	return [2]mv.MV{preds[0], preds[1]}
}

func dedupMVs(in []mv.MV) []mv.MV {
	out := in[:0]
	for _, v := range in {
		dup := false
		for _, o := range out {
			if o == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
