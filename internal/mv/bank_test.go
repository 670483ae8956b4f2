package mv

import "testing"

func TestBankPaddingNeverPanics(t *testing.T) {
	b := NewBank(Block4x4, 8, 8, 2, 4, 2)
	// Coordinates far outside the grid must clamp, not panic.
	coords := [][2]int{{-5, -5}, {100, 100}, {-1, 0}, {0, -1}, {8, 8}}
	for _, c := range coords {
		blk := b.At(c[0], c[1])
		if blk == nil {
			t.Fatalf("At(%d,%d) returned nil", c[0], c[1])
		}
	}
}

func TestBankInBounds(t *testing.T) {
	b := NewBank(Block4x4, 4, 4, 1, 2, 1)
	if !b.InBounds(0, 0) || !b.InBounds(3, 3) {
		t.Errorf("expected interior cells in bounds")
	}
	if b.InBounds(-1, 0) || b.InBounds(4, 0) {
		t.Errorf("expected out-of-grid cells out of bounds")
	}
}

func TestBlockInsertSortedAscending(t *testing.T) {
	blk := &Block{}
	costs := []uint32{50, 10, 30, 5, 40}
	for _, c := range costs {
		blk.Insert(Node{TotalCost: c, RefIdx: 0, IsAvail: true}, 8)
	}
	got := blk.All(0)
	for i := 1; i < len(got); i++ {
		if got[i-1].TotalCost > got[i].TotalCost {
			t.Fatalf("results not sorted ascending: %v", got)
		}
	}
	if got[0].TotalCost != 5 {
		t.Errorf("best cost = %d, want 5", got[0].TotalCost)
	}
}

func TestBlockInsertCapsPerReference(t *testing.T) {
	blk := &Block{}
	for i := uint32(0); i < 10; i++ {
		blk.Insert(Node{TotalCost: i, RefIdx: 0, IsAvail: true}, 3)
	}
	got := blk.All(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].TotalCost != 0 || got[2].TotalCost != 2 {
		t.Errorf("expected the 3 lowest costs kept, got %v", got)
	}
}

func TestBlockInsertSeparatesReferences(t *testing.T) {
	blk := &Block{}
	blk.Insert(Node{TotalCost: 5, RefIdx: 0, IsAvail: true}, 2)
	blk.Insert(Node{TotalCost: 1, RefIdx: 1, IsAvail: true}, 2)
	if len(blk.All(0)) != 1 || len(blk.All(1)) != 1 {
		t.Fatalf("expected independent per-ref runs, got %v", blk.Results)
	}
}

func TestResultBlockSortedAndCapped(t *testing.T) {
	rb := NewResultBlock(2)
	rb.Insert(Part2Nx2N, RefDirL0, Node{TotalCost: 9})
	rb.Insert(Part2Nx2N, RefDirL0, Node{TotalCost: 3})
	rb.Insert(Part2Nx2N, RefDirL0, Node{TotalCost: 7})
	nodes := rb.Nodes(Part2Nx2N, RefDirL0)
	if len(nodes) != 2 {
		t.Fatalf("len = %d, want 2", len(nodes))
	}
	if nodes[0].TotalCost != 3 || nodes[1].TotalCost != 7 {
		t.Errorf("got %v", nodes)
	}
	best, ok := rb.Best(Part2Nx2N, RefDirL0)
	if !ok || best.TotalCost != 3 {
		t.Errorf("Best = %v, ok=%v", best, ok)
	}
}

func TestMVScaleAndClamp(t *testing.T) {
	v := MV{X: 8, Y: -8}
	scaled := v.Scale(128) // half
	if scaled.X != 4 || scaled.Y != -4 {
		t.Errorf("Scale(128) = %v, want (4,-4)", scaled)
	}
	clamped := MV{X: 100, Y: -100}.Clamp(64, 64)
	if clamped.X != 64 || clamped.Y != -64 {
		t.Errorf("Clamp = %v, want (64,-64)", clamped)
	}
}

func TestBankCloneIsIndependentOfReset(t *testing.T) {
	b := NewBank(Block4x4, 4, 4, 1, 2, 1)
	b.At(1, 1).Insert(Node{MV: MV{X: 8, Y: 8}, RefIdx: 0, TotalCost: 5, IsAvail: true}, 2)

	clone := b.Clone()
	b.Reset()

	if _, ok := b.At(1, 1).Best(0); ok {
		t.Fatalf("expected original bank to be empty after Reset")
	}
	n, ok := clone.At(1, 1).Best(0)
	if !ok {
		t.Fatalf("expected clone to retain the entry Reset cleared from the original")
	}
	if n.MV != (MV{X: 8, Y: 8}) {
		t.Errorf("clone entry MV = %v, want (8,8)", n.MV)
	}
}
