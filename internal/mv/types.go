// Package mv defines the motion vector, search-node, and MV-bank types
// shared by every stage of the hierarchical motion search (coarse,
// refinement, L0) as well as the per-CU search-results tables the L0
// partition decision operates on.
package mv

// MV is a motion vector in quarter-pel units. Fullpel values have both low
// bits of X and Y clear.
type MV struct {
	X, Y int16
}

// IsZero reports whether mv is the zero vector.
func (v MV) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Add returns the component-wise sum of v and o.
func (v MV) Add(o MV) MV { return MV{v.X + o.X, v.Y + o.Y} }

// Scale returns v scaled by a Q8 factor (numerator over 256), rounded.
func (v MV) Scale(q8 int32) MV {
	return MV{
		X: int16(roundedShift(int32(v.X)*q8, 8)),
		Y: int16(roundedShift(int32(v.Y)*q8, 8)),
	}
}

// roundedShift computes (x + round) >> shift with rounding toward nearest,
// matching the HEVC scaling convention used throughout candidate projection.
func roundedShift(x int32, shift uint) int32 {
	if shift == 0 {
		return x
	}
	half := int32(1) << (shift - 1)
	if x >= 0 {
		return (x + half) >> shift
	}
	return -((-x + half) >> shift)
}

// Clamp clips v's components to the inclusive range [-rangeX, rangeX] and
// [-rangeY, rangeY], matching a layer's i2_max_mv_x / i2_max_mv_y bounds.
func (v MV) Clamp(rangeX, rangeY int32) MV {
	return MV{
		X: clampInt16(int32(v.X), -rangeX, rangeX),
		Y: clampInt16(int32(v.Y), -rangeY, rangeY),
	}
}

func clampInt16(v, lo, hi int32) int16 {
	if v < lo {
		v = lo
	} else if v > hi {
		v = hi
	}
	return int16(v)
}

// PartID enumerates the partition shapes a search node's results can be
// organized under: 2Nx2N, the symmetric halves and quadrants, and the
// eight asymmetric variants.
type PartID uint8

// PartID values are ordered to match the 17-entry output of
// cost.PartialSADs16x16. Each of the four AMP directions (2NxnU, 2NxnD,
// nLx2N, nRx2N) contributes two PU-level partitions at a 1:3 split, for
// eight asymmetric entries total.
const (
	Part2Nx2N PartID = iota
	Part2NxN_T
	Part2NxN_B
	PartNx2N_L
	PartNx2N_R
	PartNxN_TL
	PartNxN_TR
	PartNxN_BL
	PartNxN_BR
	Part2NxnU_U // top quarter of a 2NxnU split
	Part2NxnU_D // bottom three-quarters of a 2NxnU split
	Part2NxnD_U // top three-quarters of a 2NxnD split
	Part2NxnD_D // bottom quarter of a 2NxnD split
	PartnLx2N_L // left quarter of an nLx2N split
	PartnLx2N_R // right three-quarters of an nLx2N split
	PartnRx2N_L // left three-quarters of an nRx2N split
	PartnRx2N_R // right quarter of an nRx2N split
	NumPartIDs
)

// RefDir is the prediction direction of a search node: unidirectional from
// L0, unidirectional from L1, or bi-predicted from both.
type RefDir uint8

const (
	RefDirL0 RefDir = iota
	RefDirL1
	RefDirBi
)

// Node is a single candidate/result: one motion vector against one
// reference, with its evaluated cost. subpel_done is monotonic within a
// picture — once true it is never reset.
type Node struct {
	MV         MV
	RefIdx     int16 // index into the picture-local active reference list
	Dir        RefDir
	SAD        uint32
	MVCost     uint32
	TotalCost  uint32
	SubpelDone bool
	IsAvail    bool
}

// Less orders nodes ascending by TotalCost, matching the MV-bank sort
// invariant (results[i].total_cost <= results[i+1].total_cost).
func (n Node) Less(o Node) bool { return n.TotalCost < o.TotalCost }
