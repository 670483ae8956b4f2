package l0

import (
	"testing"

	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/pyramid"
	"github.com/hme-project/hme/internal/refctx"
)

func TestProcessCTBReachesWrittenBackWithOutput(t *testing.T) {
	const size = 128
	const pad = 32
	pattern := func(x, y int) uint8 { return uint8((x*3 + y*5 + 30000) % 211) }

	cur := plane.New(size, size, pad)
	ref := plane.New(size, size, pad)
	for y := -pad; y < size+pad; y++ {
		for x := -pad; x < size+pad; x++ {
			cur.Set(x, y, pattern(x, y))
			ref.Set(x, y, pattern(x-1, y))
		}
	}

	geom := pyramid.Geometry{Width: size, Height: size}
	lc := layerctx.New(geom, 0, true, mv.Block16x16, 1, 2, 32, 32)
	lc.AddRef(0, &refctx.Descriptor{Source: ref})

	c := NewCTB(0, 0)
	p := Params{
		Fpel:  FpelRefineParams{MaxRefineCenters: 4, RefBits: 1, Lambda: 1, LambdaQShift: 6},
		Merge: MergeParams{MaxMergeCandidates: 5},
		TopK:  17,
	}
	if err := ProcessCTB(c, lc, nil, cur, 0, mv.MV{}, false, nil, p); err != nil {
		t.Fatalf("ProcessCTB: %v", err)
	}
	if c.State() != WrittenBack {
		t.Fatalf("final state = %s, want WrittenBack", c.State())
	}
	if len(c.Output) == 0 {
		t.Fatal("expected at least one partition result in CTB output")
	}

	blockOrigins := make(map[[2]int]bool)
	for _, r := range c.Output {
		dx, dy, w, h := partGeometry(r.Part)
		if r.Width != w || r.Height != h {
			t.Errorf("part %v: output PU size = %dx%d, want %dx%d", r.Part, r.Width, r.Height, w, h)
		}
		blockOrigins[[2]int{r.X - dx, r.Y - dy}] = true
	}
	// The CTB spans a 4x4 grid of 16x16 blocks; every one of them must have
	// produced output, not just the top-left corner.
	if len(blockOrigins) != 16 {
		t.Errorf("expected all 16 of the CTB's 16x16 sub-positions to produce output, got %d distinct positions", len(blockOrigins))
	}
}

func TestProcessCTBRejectsDoubleProcessing(t *testing.T) {
	const size = 64
	const pad = 16
	cur := plane.New(size, size, pad)
	ref := plane.New(size, size, pad)

	geom := pyramid.Geometry{Width: size, Height: size}
	lc := layerctx.New(geom, 0, true, mv.Block16x16, 1, 2, 16, 16)
	lc.AddRef(0, &refctx.Descriptor{Source: ref})

	c := NewCTB(0, 0)
	p := Params{TopK: 17, Merge: MergeParams{MaxMergeCandidates: 5}}
	if err := ProcessCTB(c, lc, nil, cur, 0, mv.MV{}, false, nil, p); err != nil {
		t.Fatalf("first ProcessCTB: %v", err)
	}
	if err := ProcessCTB(c, lc, nil, cur, 0, mv.MV{}, false, nil, p); err == nil {
		t.Error("expected a second ProcessCTB call on an already-WrittenBack CTB to fail")
	}
}

func TestProcessCTBWithL1RefProducesBiPredResults(t *testing.T) {
	const size = 64
	const pad = 16
	pattern := func(x, y int) uint8 { return uint8((x*3 + y*5 + 30000) % 211) }

	cur := plane.New(size, size, pad)
	refL0 := plane.New(size, size, pad)
	refL1 := plane.New(size, size, pad)
	for y := -pad; y < size+pad; y++ {
		for x := -pad; x < size+pad; x++ {
			cur.Set(x, y, pattern(x, y))
			refL0.Set(x, y, pattern(x-1, y))
			refL1.Set(x, y, pattern(x+1, y))
		}
	}

	geom := pyramid.Geometry{Width: size, Height: size}
	lc := layerctx.New(geom, 0, true, mv.Block16x16, 2, 2, 16, 16)
	lc.AddRef(0, &refctx.Descriptor{Source: refL0})
	lc.AddRef(1, &refctx.Descriptor{Source: refL1})

	c := NewCTB(0, 0)
	p := Params{
		Fpel:         FpelRefineParams{MaxRefineCenters: 4, RefBits: 1, Lambda: 1, LambdaQShift: 6},
		Merge:        MergeParams{MaxMergeCandidates: 5},
		BidirEnabled: true,
		TopK:         17,
	}
	l1 := &L1Ref{RefIdx: 1}
	if err := ProcessCTB(c, lc, nil, cur, 0, mv.MV{}, false, l1, p); err != nil {
		t.Fatalf("ProcessCTB: %v", err)
	}
	if len(c.BiBest) == 0 {
		t.Fatal("expected EvaluateBiPred to have produced at least one bi-pred candidate with an L1Ref present")
	}
}
