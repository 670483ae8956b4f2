package l0

import (
	"testing"

	"github.com/hme-project/hme/internal/mv"
)

func TestSelectPartitionsPicksLowestCostAcrossSources(t *testing.T) {
	rb := mv.NewResultBlock(2)
	rb.Insert(mv.Part2Nx2N, mv.RefDirL0, mv.Node{MV: mv.MV{X: 4, Y: 0}, TotalCost: 50, IsAvail: true})
	rb.Insert(mv.Part2Nx2N, mv.RefDirBi, mv.Node{MV: mv.MV{X: 4, Y: 0}, TotalCost: 30, IsAvail: true})
	mergeBest := map[mv.PartID]MergeCandidate{
		mv.Part2Nx2N: {TotalCost: 80},
	}
	results := SelectPartitions(rb, mergeBest, false, 0)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].TotalCost != 30 {
		t.Errorf("TotalCost = %d, want 30 (the bi-pred candidate)", results[0].TotalCost)
	}
	if results[0].Dir != mv.RefDirBi {
		t.Errorf("Dir = %v, want RefDirBi", results[0].Dir)
	}
}

func TestSelectPartitionsSortedAscendingAndTruncated(t *testing.T) {
	rb := mv.NewResultBlock(2)
	rb.Insert(mv.Part2Nx2N, mv.RefDirL0, mv.Node{TotalCost: 50, IsAvail: true})
	rb.Insert(mv.Part2NxN_T, mv.RefDirL0, mv.Node{TotalCost: 10, IsAvail: true})
	rb.Insert(mv.Part2NxN_B, mv.RefDirL0, mv.Node{TotalCost: 30, IsAvail: true})
	results := SelectPartitions(rb, nil, false, 2)
	if len(results) != 2 {
		t.Fatalf("expected truncation to 2 results, got %d", len(results))
	}
	if results[0].TotalCost > results[1].TotalCost {
		t.Errorf("results not sorted ascending: %d before %d", results[0].TotalCost, results[1].TotalCost)
	}
	if results[0].TotalCost != 10 {
		t.Errorf("cheapest result TotalCost = %d, want 10", results[0].TotalCost)
	}
}

// With coverage limited, the NxN quadrants and asymmetric splits never
// survive selection even when they carry the cheapest result.
func TestSelectPartitionsLimitedSkipsQuadrantsAndAMP(t *testing.T) {
	rb := mv.NewResultBlock(2)
	rb.Insert(mv.Part2Nx2N, mv.RefDirL0, mv.Node{TotalCost: 40, IsAvail: true})
	rb.Insert(mv.PartNxN_TL, mv.RefDirL0, mv.Node{TotalCost: 5, IsAvail: true})
	rb.Insert(mv.Part2NxnU_U, mv.RefDirL0, mv.Node{TotalCost: 7, IsAvail: true})

	results := SelectPartitions(rb, nil, true, 0)
	if len(results) != 1 {
		t.Fatalf("expected only the symmetric partition to survive, got %d results", len(results))
	}
	if results[0].Part != mv.Part2Nx2N {
		t.Errorf("surviving part = %v, want Part2Nx2N", results[0].Part)
	}

	unrestricted := SelectPartitions(rb, nil, false, 0)
	if len(unrestricted) != 3 {
		t.Fatalf("expected all 3 partitions without the limit, got %d", len(unrestricted))
	}
}

func TestPartActiveTable(t *testing.T) {
	for part := mv.PartID(0); part < mv.NumPartIDs; part++ {
		if !partActive(part, false) {
			t.Errorf("part %v must be active when coverage is unrestricted", part)
		}
	}
	active := 0
	for part := mv.PartID(0); part < mv.NumPartIDs; part++ {
		if partActive(part, true) {
			active++
		}
	}
	if active != 5 {
		t.Errorf("limited coverage keeps %d partition ids, want the 5 symmetric ones", active)
	}
}
