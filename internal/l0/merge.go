package l0

import (
	"github.com/hme-project/hme/internal/candidate"
	"github.com/hme-project/hme/internal/cost"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
)

// MergeParams configures the merge/skip evaluation stage.
type MergeParams struct {
	MaxMergeCandidates int
	UseSATD            bool

	// NoiseAware scales each candidate's distortion by the source/reference
	// variance ratio (the STIM factor) so flat, noisy regions are not
	// over-eagerly collapsed into skips that erase their texture.
	NoiseAware bool
}

// MergeCandidate is one scored merge/skip option for a partition.
type MergeCandidate struct {
	MVL0, MVL1         mv.MV
	RefIdxL0, RefIdxL1 int16
	Bi                 bool
	TotalCost          uint32
	IsSkipEligible     bool // zero coded-block-flag, i.e. the averaged prediction matches the source exactly
}

// BuildMergeCandidates constructs up to p.MaxMergeCandidates merge
// candidates following the HEVC merge derivation order: spatial
// neighbours, a colocated candidate, a combined-bi candidate, and zero,
// deduplicated by MV.
func BuildMergeCandidates(nb candidate.Neighbours, colocated mv.MV, haveColocated bool, refIdx int16, p MergeParams) []mv.MV {
	var dedup candidate.DedupSet
	var out []mv.MV
	add := func(m mv.MV) {
		if len(out) >= p.MaxMergeCandidates {
			return
		}
		if dedup.TryAdd(m, refIdx) {
			out = append(out, m)
		}
	}
	for _, n := range []mv.Node{nb.Left, nb.Above, nb.TopRight, nb.BottomLeft, nb.TopLeft} {
		if n.IsAvail {
			add(n.MV)
		}
	}
	if haveColocated {
		add(colocated)
	}
	if len(out) >= 2 {
		// Combined-bi candidate: average of the first two candidates in the
		// list (spatial, or spatial and colocated), standing in for the HEVC
		// combined-bi merge candidate derivation.
		combo := mv.MV{X: (out[0].X + out[1].X) / 2, Y: (out[0].Y + out[1].Y) / 2}
		add(combo)
	}
	add(mv.MV{})
	return out
}

// EvaluateMerge scores each merge candidate MV by distortion of the
// reference block it predicts (no residual, per merge semantics), marking
// IsSkipEligible true when the predicted block exactly matches the
// source (zero coded-block-flag).
func EvaluateMerge(cur, ref *plane.Plane, px, py, w, h int, refIdx int16, cands []mv.MV, p MergeParams) []MergeCandidate {
	out := make([]MergeCandidate, 0, len(cands))
	for _, m := range cands {
		rx, ry := px+int(m.X)/4, py+int(m.Y)/4
		if rx < -ref.PadX || rx+w > ref.Width+ref.PadX || ry < -ref.PadY || ry+h > ref.Height+ref.PadY {
			continue
		}
		var dist uint32
		if p.UseSATD {
			dist = cost.SATD(cur.Data[cur.Offset(px, py):], cur.Stride, ref.Data[ref.Offset(rx, ry):], ref.Stride, w, h)
		} else {
			dist = cost.SAD(cur.Data[cur.Offset(px, py):], cur.Stride, ref.Data[ref.Offset(rx, ry):], ref.Stride, w, h)
		}
		if p.NoiseAware && dist > 0 {
			dist = ApplyStim(dist, StimFactor(
				gatherBlock(cur, px, py, w, h),
				gatherBlock(ref, rx, ry, w, h),
			))
		}
		out = append(out, MergeCandidate{
			MVL0:           m,
			RefIdxL0:       refIdx,
			TotalCost:      dist,
			IsSkipEligible: dist == 0,
		})
	}
	return out
}

// gatherBlock copies a w x h region of p starting at logical (x, y) into a
// flat slice for the variance computation behind the STIM factor.
func gatherBlock(p *plane.Plane, x, y, w, h int) []byte {
	out := make([]byte, 0, w*h)
	for dy := 0; dy < h; dy++ {
		off := p.Offset(x, y+dy)
		out = append(out, p.Data[off:off+w]...)
	}
	return out
}

// BestMerge returns the lowest-cost merge candidate, or false if none
// were evaluated.
func BestMerge(cands []MergeCandidate) (MergeCandidate, bool) {
	if len(cands) == 0 {
		return MergeCandidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.TotalCost < best.TotalCost {
			best = c
		}
	}
	return best, true
}
