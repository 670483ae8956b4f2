package l0

import (
	"github.com/hme-project/hme/internal/cost"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/refctx"
)

// SubpelRefineParams configures the subpel refinement stage.
type SubpelRefineParams struct {
	UseSATD      bool // SATD replaces SAD when use_satd_subpel is set
	RefBits      uint32
	Lambda       uint32
	LambdaQShift uint
}

// halfPelDiamond and quarterPelDiamond are the two subpel passes: a
// half-pel diamond (4 offsets) followed by a quarter-pel diamond around
// whatever the half-pel pass converged on, both in quarter-pel units.
var halfPelDiamond = [4]mv.MV{
	{X: 0, Y: -2}, {X: -2, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2},
}
var quarterPelDiamond = [4]mv.MV{
	{X: 0, Y: -1}, {X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1},
}

// RefineSubpel seeds a half-pel diamond followed by a quarter-pel diamond
// around each surviving fullpel result, reading pre-computed half-pel
// planes from desc (quarter-pel positions are approximated by averaging
// the two nearest half/full-pel samples, since true quarter-pel taps
// would require the eighth-pel source filters this layer never carries).
func RefineSubpel(cur *plane.Plane, desc *refctx.Descriptor, px, py, w, h int, cands []PUCandidate, p SubpelRefineParams) []PUCandidate {
	out := make([]PUCandidate, len(cands))
	for i, c := range cands {
		out[i] = refineOneSubpel(cur, desc, px, py, w, h, c, p)
	}
	return out
}

func refineOneSubpel(cur *plane.Plane, desc *refctx.Descriptor, px, py, w, h int, c PUCandidate, p SubpelRefineParams) PUCandidate {
	best := c
	best.Node.SubpelDone = true

	buf := make([]byte, w*h)

	evaluate := func(offset mv.MV) (PUCandidate, bool) {
		cand := mv.MV{X: best.Node.MV.X + offset.X, Y: best.Node.MV.Y + offset.Y}
		if !resolveSource(desc, px, py, w, h, cand, buf) {
			return PUCandidate{}, false
		}
		var dist uint32
		if p.UseSATD {
			dist = cost.SATD(cur.Data[cur.Offset(px, py):], cur.Stride, buf, w, w, h)
		} else {
			dist = cost.SAD(cur.Data[cur.Offset(px, py):], cur.Stride, buf, w, w, h)
		}
		mvCost := cost.MVCost(cand.X, cand.Y, p.RefBits, p.Lambda, p.LambdaQShift)
		total := dist + mvCost
		return PUCandidate{
			Part: c.Part, Dir: c.Dir,
			Node: mv.Node{MV: cand, RefIdx: c.Node.RefIdx, SAD: dist, MVCost: mvCost, TotalCost: total, IsAvail: true, SubpelDone: true},
		}, true
	}

	for _, off := range halfPelDiamond {
		if cand, ok := evaluate(off); ok && cand.Node.TotalCost < best.Node.TotalCost {
			best = cand
		}
	}
	for _, off := range quarterPelDiamond {
		if cand, ok := evaluate(off); ok && cand.Node.TotalCost < best.Node.TotalCost {
			best = cand
		}
	}
	return best
}

// BuildPrediction resolves the w x h prediction buffer a reference
// candidate MV produces at (px, py), for callers outside this package's
// own refinement loop (bi-pred averaging needs each direction's
// prediction signal independently before it can combine them).
func BuildPrediction(desc *refctx.Descriptor, px, py, w, h int, cand mv.MV) ([]byte, bool) {
	dst := make([]byte, w*h)
	if !resolveSource(desc, px, py, w, h, cand, dst) {
		return nil, false
	}
	return dst, true
}

// resolveSource fills dst (a w*h, stride-w buffer) with the prediction
// samples for candidate MV cand. Even fullpel/half-pel positions are read
// directly from the source or the appropriate pre-computed half-pel
// plane; quarter-pel positions (exactly one axis with an odd quarter-pel
// remainder, which is all this package's diamond search ever produces)
// are the rounded average of the two bracketing even-frac anchors.
func resolveSource(desc *refctx.Descriptor, px, py, w, h int, cand mv.MV, dst []byte) bool {
	fracX, fracY := cand.X&3, cand.Y&3
	if fracX%2 == 0 && fracY%2 == 0 {
		src, stride, ok := evenFracSource(desc, px, py, w, h, cand)
		if !ok {
			return false
		}
		copyBlock(dst, w, src, stride, w, h)
		return true
	}

	var lo, hi mv.MV
	if fracX%2 != 0 {
		lo = mv.MV{X: cand.X - 1, Y: cand.Y}
		hi = mv.MV{X: cand.X + 1, Y: cand.Y}
	} else {
		lo = mv.MV{X: cand.X, Y: cand.Y - 1}
		hi = mv.MV{X: cand.X, Y: cand.Y + 1}
	}
	loSrc, loStride, ok := evenFracSource(desc, px, py, w, h, lo)
	if !ok {
		return false
	}
	hiSrc, hiStride, ok := evenFracSource(desc, px, py, w, h, hi)
	if !ok {
		return false
	}
	averageBlocks(dst, w, loSrc, loStride, hiSrc, hiStride, w, h)
	return true
}

// evenFracSource resolves a candidate whose quarter-pel remainder is even
// on both axes (i.e. a fullpel or half-pel position) to a direct plane
// read — no copy needed.
func evenFracSource(desc *refctx.Descriptor, px, py, w, h int, cand mv.MV) ([]byte, int, bool) {
	fracX, fracY := cand.X&3, cand.Y&3
	fullX, fullY := int(cand.X>>2), int(cand.Y>>2)
	rx, ry := px+fullX, py+fullY

	switch {
	case fracX == 0 && fracY == 0:
		src := desc.Source
		if src == nil || !inBounds(src, rx, ry, w, h) {
			return nil, 0, false
		}
		return src.Data[src.Offset(rx, ry):], src.Stride, true
	case fracX == 2 && fracY == 0:
		return halfPelAt(desc, refctx.HalfPelHxFy, rx, ry, w, h)
	case fracX == 0 && fracY == 2:
		return halfPelAt(desc, refctx.HalfPelFxHy, rx, ry, w, h)
	case fracX == 2 && fracY == 2:
		return halfPelAt(desc, refctx.HalfPelHxHy, rx, ry, w, h)
	default:
		return nil, 0, false
	}
}

func halfPelAt(desc *refctx.Descriptor, which refctx.HalfPelPlane, rx, ry, w, h int) ([]byte, int, bool) {
	p := desc.HalfPel[which]
	if p == nil || !inBounds(p, rx, ry, w, h) {
		return nil, 0, false
	}
	return p.Data[p.Offset(rx, ry):], p.Stride, true
}

func inBounds(p *plane.Plane, x, y, w, h int) bool {
	return x >= -p.PadX && x+w <= p.Width+p.PadX && y >= -p.PadY && y+h <= p.Height+p.PadY
}

func copyBlock(dst []byte, dstStride int, src []byte, srcStride, w, h int) {
	for y := 0; y < h; y++ {
		copy(dst[y*dstStride:y*dstStride+w], src[y*srcStride:y*srcStride+w])
	}
}

func averageBlocks(dst []byte, dstStride int, a []byte, aStride int, b []byte, bStride int, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst[y*dstStride+x] = uint8((int(a[y*aStride+x]) + int(b[y*bStride+x]) + 1) >> 1)
		}
	}
}
