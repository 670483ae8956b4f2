package coarse

import (
	"testing"

	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/pyramid"
	"github.com/hme-project/hme/internal/refctx"
)

// TestCoarseSearchRecoversUniformShift: a 64x64 region whose reference is
// offset by (dx,dy)=(3,0) fullpel must report best MV=(3,0) ((12,0) in
// quarter-pel units), ref_idx=0, sad=0 for every 4x4 block.
func TestCoarseSearchRecoversUniformShift(t *testing.T) {
	const size = 64
	const pad = 16
	const shiftX = 3

	// pattern is defined over all integers (including the padded region) so
	// cur and ref can be filled consistently everywhere the search reads,
	// with no reliance on border replication. A literally flat plane would
	// tie every candidate offset at SAD=0, so the pattern must vary.
	pattern := func(x, y int) uint8 {
		v := (x*7 + y*13 + 100000) % 251
		return uint8(v)
	}

	cur := plane.New(size, size, pad)
	for y := -pad; y < size+pad; y++ {
		for x := -pad; x < size+pad; x++ {
			cur.Set(x, y, pattern(x, y))
		}
	}

	// ref is cur shifted right by shiftX fullpel: ref(x,y) = cur(x-shiftX,y).
	// A search that reads ref at rx=px+shiftX recovers the original content
	// exactly, so the best MV must be (shiftX,0).
	ref := plane.New(size, size, pad)
	for y := -pad; y < size+pad; y++ {
		for x := -pad; x < size+pad; x++ {
			ref.Set(x, y, pattern(x-shiftX, y))
		}
	}

	geom := pyramid.Geometry{Width: size, Height: size}
	lc := layerctx.New(geom, 0, false, mv.Block4x4, 1, 2, 16, 16)

	desc := &refctx.Descriptor{Source: ref}
	lc.AddRef(0, desc)

	SearchPicture(lc, cur, Params{
		Step:             1,
		Lambda:           1,
		LambdaQShift:     6,
		NumResultsPerRef: 2,
	})

	for by := 0; by < lc.Bank.GridH; by++ {
		for bx := 0; bx < lc.Bank.GridW; bx++ {
			node, ok := lc.Bank.At(bx, by).Best(0)
			if !ok {
				t.Fatalf("block (%d,%d): no result recorded", bx, by)
			}
			if node.SAD != 0 {
				t.Errorf("block (%d,%d): SAD = %d, want 0 for the exact-shift offset", bx, by, node.SAD)
			}
			if node.MV != (mv.MV{X: shiftX * 4, Y: 0}) {
				t.Errorf("block (%d,%d): MV = %+v, want (%d,0)", bx, by, node.MV, shiftX*4)
			}
			if node.RefIdx != 0 {
				t.Errorf("block (%d,%d): RefIdx = %d, want 0", bx, by, node.RefIdx)
			}
		}
	}
}

// Shared east/south winners are inserted alongside each block's own best;
// the per-block result lists must stay sorted and capped regardless.
func TestCoarseSearchBankStaysSortedAndCapped(t *testing.T) {
	const size = 32
	const pad = 16
	pattern := func(x, y int) uint8 { return uint8((x*7 + y*13 + 100000) % 251) }

	cur := plane.New(size, size, pad)
	ref := plane.New(size, size, pad)
	for y := -pad; y < size+pad; y++ {
		for x := -pad; x < size+pad; x++ {
			cur.Set(x, y, pattern(x, y))
			ref.Set(x, y, pattern(x-2, y-1))
		}
	}

	geom := pyramid.Geometry{Width: size, Height: size}
	lc := layerctx.New(geom, 0, false, mv.Block4x4, 1, 2, 64, 64)
	lc.AddRef(0, &refctx.Descriptor{Source: ref})

	SearchPicture(lc, cur, Params{Step: 1, Lambda: 4, LambdaQShift: 6, NumResultsPerRef: 2})

	for by := 0; by < lc.Bank.GridH; by++ {
		for bx := 0; bx < lc.Bank.GridW; bx++ {
			results := lc.Bank.At(bx, by).All(0)
			if len(results) == 0 {
				t.Fatalf("block (%d,%d): no results", bx, by)
			}
			if len(results) > 2 {
				t.Errorf("block (%d,%d): %d results exceed the per-ref cap of 2", bx, by, len(results))
			}
			for i := 1; i < len(results); i++ {
				if results[i].TotalCost < results[i-1].TotalCost {
					t.Errorf("block (%d,%d): results not sorted ascending at %d", bx, by, i)
				}
			}
		}
	}
}
