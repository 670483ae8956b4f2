package l0

import "github.com/hme-project/hme/internal/mv"

// PUCandidate is one scored prediction-unit candidate during the L0
// pipeline: a partition id, a reference direction, and the search node
// (MV, SAD/SATD, MV cost, total cost) produced for it.
type PUCandidate struct {
	Part mv.PartID
	Dir  mv.RefDir
	Node mv.Node
}

// PUResult is a finalized prediction unit ready for CTB writeback: its
// placement within the CTB, partition id, MV(s), reference indices, and
// merge metadata.
type PUResult struct {
	X, Y, Width, Height int
	Part                mv.PartID
	Dir                 mv.RefDir
	MVL0, MVL1          mv.MV
	RefIdxL0, RefIdxL1  int16
	IsMerge             bool
	MergeIndex          int
	IsSkip              bool
	TotalCost           uint32
}
