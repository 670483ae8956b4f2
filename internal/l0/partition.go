package l0

import "github.com/hme-project/hme/internal/mv"

// partActive reports whether a partition id participates under the
// current coverage setting: the speed presets restrict the search to the
// symmetric 2Nx2N/2NxN/Nx2N set, skipping the NxN quadrants and the
// asymmetric splits.
func partActive(part mv.PartID, limited bool) bool {
	if !limited {
		return true
	}
	switch part {
	case mv.Part2Nx2N, mv.Part2NxN_T, mv.Part2NxN_B, mv.PartNx2N_L, mv.PartNx2N_R:
		return true
	}
	return false
}

// SelectPartitions compares, for each active partition id, the best
// unipred-per-direction, best bi-pred, and best merge/skip result in the
// block's search-results table, and returns a ranked (ascending
// TotalCost) list of surviving partitions. The downstream
// transform/quantization recursion makes the final choice among them;
// motion estimation itself only ranks.
func SelectPartitions(rb *mv.ResultBlock, mergeBest map[mv.PartID]MergeCandidate, limited bool, topK int) []PUResult {
	var results []PUResult

	// Partitions are visited in canonical id order so tied costs always
	// rank the same way and repeated runs stay bit-identical.
	for part := mv.PartID(0); part < mv.NumPartIDs; part++ {
		if !partActive(part, limited) {
			continue
		}
		best := PUResult{Part: part, TotalCost: ^uint32(0)}
		haveBest := false

		if n, ok := rb.Best(part, mv.RefDirL0); ok {
			best, haveBest = PUResult{Part: part, Dir: mv.RefDirL0, MVL0: n.MV, RefIdxL0: n.RefIdx, TotalCost: n.TotalCost}, true
		}
		if n, ok := rb.Best(part, mv.RefDirL1); ok && (!haveBest || n.TotalCost < best.TotalCost) {
			best, haveBest = PUResult{Part: part, Dir: mv.RefDirL1, MVL1: n.MV, RefIdxL1: n.RefIdx, TotalCost: n.TotalCost}, true
		}
		if n, ok := rb.Best(part, mv.RefDirBi); ok && (!haveBest || n.TotalCost < best.TotalCost) {
			best, haveBest = PUResult{Part: part, Dir: mv.RefDirBi, MVL0: n.MV, RefIdxL0: n.RefIdx, TotalCost: n.TotalCost}, true
		}
		if m, ok := mergeBest[part]; ok && (!haveBest || m.TotalCost < best.TotalCost) {
			best, haveBest = PUResult{
				Part: part, Dir: mv.RefDirL0, MVL0: m.MVL0, RefIdxL0: m.RefIdxL0,
				IsMerge: true, IsSkip: m.IsSkipEligible, TotalCost: m.TotalCost,
			}, true
		}
		if haveBest {
			results = append(results, best)
		}
	}

	sortResultsByCost(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func sortResultsByCost(r []PUResult) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].TotalCost < r[j-1].TotalCost; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}

// partGeometry returns part's pixel offset and size within the 16x16
// block it subdivides, matching the same row/column groupings
// cost.PartialSADs16x16 folds its sixteen 4x4 SADs into.
func partGeometry(part mv.PartID) (dx, dy, w, h int) {
	switch part {
	case mv.Part2Nx2N:
		return 0, 0, 16, 16
	case mv.Part2NxN_T:
		return 0, 0, 16, 8
	case mv.Part2NxN_B:
		return 0, 8, 16, 8
	case mv.PartNx2N_L:
		return 0, 0, 8, 16
	case mv.PartNx2N_R:
		return 8, 0, 8, 16
	case mv.PartNxN_TL:
		return 0, 0, 8, 8
	case mv.PartNxN_TR:
		return 8, 0, 8, 8
	case mv.PartNxN_BL:
		return 0, 8, 8, 8
	case mv.PartNxN_BR:
		return 8, 8, 8, 8
	case mv.Part2NxnU_U:
		return 0, 0, 16, 4
	case mv.Part2NxnU_D:
		return 0, 4, 16, 12
	case mv.Part2NxnD_U:
		return 0, 0, 16, 12
	case mv.Part2NxnD_D:
		return 0, 12, 16, 4
	case mv.PartnLx2N_L:
		return 0, 0, 4, 16
	case mv.PartnLx2N_R:
		return 4, 0, 12, 16
	case mv.PartnRx2N_L:
		return 0, 0, 12, 16
	case mv.PartnRx2N_R:
		return 12, 0, 4, 16
	default:
		return 0, 0, 16, 16
	}
}
