package hme

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hme-project/hme/preset"
)

func testFrameParams() FrameParams {
	return FrameParams{
		Lambda:       16,
		LambdaQShift: 6,
		MVRangeX:     256,
		MVRangeY:     256,
		Preset:       preset.MediumSpeed,
	}
}

func testInitParams(width, height int) InitParams {
	return InitParams{
		Width:            width,
		Height:           height,
		MaxLayers:        3,
		MinCoarsestSize:  16,
		Preset:           preset.MediumSpeed,
		Pad:              16,
		MaxActiveRefs:    2,
		NumResultsPerRef: 2,
		Workers:          2,
	}
}

func texturedInput(poc int32, width, height int) InputDescriptor {
	data := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = byte((x*3 + y*7 + int(poc)*11 + 50000) % 229)
		}
	}
	return InputDescriptor{POC: poc, Data: data, Width: width, Height: height, Stride: width}
}

func TestInitRejectsImpossiblePyramid(t *testing.T) {
	p := testInitParams(64, 64)
	p.MinCoarsestSize = 128 // larger than the source itself
	if _, err := Init(p); !errors.Is(err, ErrInvalidPyramid) {
		t.Fatalf("Init err = %v, want ErrInvalidPyramid", err)
	}
}

func TestProcessFrameUnknownPOC(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := enc.ProcessFrame(context.Background(), 99, testFrameParams(), 1); !errors.Is(err, ErrInvalidReferenceMap) {
		t.Fatalf("ProcessFrame err = %v, want ErrInvalidReferenceMap", err)
	}
}

func TestProcessFrameInitRejectsUnknownReferencePOC(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	refMap := []ReferenceMapEntry{{POC: 7, IsPast: true}}
	if err := enc.ProcessFrameInit(context.Background(), refMap, testFrameParams()); !errors.Is(err, ErrInvalidReferenceMap) {
		t.Fatalf("ProcessFrameInit err = %v, want ErrInvalidReferenceMap", err)
	}
}

func TestProcessFrameInitRejectsNegativeWeight(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.AddInput(texturedInput(-1, 128, 128)); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	refMap := []ReferenceMapEntry{{POC: -1, IsPast: true, WPWeight: -3}}
	if err := enc.ProcessFrameInit(context.Background(), refMap, testFrameParams()); !errors.Is(err, ErrInvalidReferenceMap) {
		t.Fatalf("ProcessFrameInit err = %v, want ErrInvalidReferenceMap", err)
	}
}

// A picture with no active references has nothing to search against: every
// CTB must come back as a single all-zero skip PU.
func TestZeroReferencePictureIsAllSkip(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()
	if err := enc.AddInput(texturedInput(0, 128, 128)); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	if err := enc.ProcessFrameInit(ctx, nil, testFrameParams()); err != nil {
		t.Fatalf("ProcessFrameInit: %v", err)
	}
	results, err := enc.ProcessFrame(ctx, 0, testFrameParams(), 2)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d CTBs for a 128x128 picture, want 4", len(results))
	}
	for _, r := range results {
		if len(r.PUs) != 1 {
			t.Fatalf("CTB (%d,%d): %d PUs, want a single skip PU", r.X, r.Y, len(r.PUs))
		}
		pu := r.PUs[0]
		if !pu.MergeFlag {
			t.Errorf("CTB (%d,%d): skip PU must carry the merge flag", r.X, r.Y)
		}
		if !pu.MVL0.IsZero() || !pu.MVL1.IsZero() {
			t.Errorf("CTB (%d,%d): skip PU MVs = %+v/%+v, want zero", r.X, r.Y, pu.MVL0, pu.MVL1)
		}
	}
}

// Two freshly initialized encoders fed identical inputs must produce
// bit-identical CTB outputs.
func TestProcessFrameDeterministic(t *testing.T) {
	run := func() []CTBResult {
		enc, err := Init(testInitParams(128, 128))
		if err != nil {
			t.Fatalf("Init: %v", err)
		}
		ctx := context.Background()
		if err := enc.AddInput(texturedInput(0, 128, 128)); err != nil {
			t.Fatalf("AddInput current: %v", err)
		}
		if err := enc.AddInput(texturedInput(-1, 128, 128)); err != nil {
			t.Fatalf("AddInput ref: %v", err)
		}
		fp := testFrameParams()
		refMap := []ReferenceMapEntry{{POC: -1, IsPast: true, WPWeight: 256}}
		if err := enc.ProcessFrameInit(ctx, refMap, fp); err != nil {
			t.Fatalf("ProcessFrameInit: %v", err)
		}
		results, err := enc.ProcessFrame(ctx, 0, fp, 4)
		if err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
		return results
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced diverging CTB outputs across two runs")
	}
	if len(first) == 0 {
		t.Fatal("expected at least one CTB result")
	}
}

// Every stored MV must respect the per-layer range the frame parameters
// configured, and every CTB's PU list must be sorted ascending by cost.
func TestProcessFrameOutputInvariants(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()
	if err := enc.AddInput(texturedInput(0, 128, 128)); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	if err := enc.AddInput(texturedInput(-2, 128, 128)); err != nil {
		t.Fatalf("AddInput ref: %v", err)
	}
	fp := testFrameParams()
	refMap := []ReferenceMapEntry{{POC: -2, IsPast: true, WPWeight: 256}}
	if err := enc.ProcessFrameInit(ctx, refMap, fp); err != nil {
		t.Fatalf("ProcessFrameInit: %v", err)
	}
	results, err := enc.ProcessFrame(ctx, 0, fp, 2)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	for _, r := range results {
		for i, pu := range r.PUs {
			if int32(pu.MVL0.X) > fp.MVRangeX || int32(pu.MVL0.X) < -fp.MVRangeX ||
				int32(pu.MVL0.Y) > fp.MVRangeY || int32(pu.MVL0.Y) < -fp.MVRangeY {
				t.Errorf("CTB (%d,%d) PU %d: MV %+v outside configured range", r.X, r.Y, i, pu.MVL0)
			}
			if i > 0 && r.PUs[i].TotalCost < r.PUs[i-1].TotalCost {
				t.Errorf("CTB (%d,%d): PU list not sorted ascending at index %d", r.X, r.Y, i)
			}
		}
	}
}

// Discarding a frame must return its descriptor slots, so a bounded pool
// can be claimed again for the next picture.
func TestDiscardFrameReleasesPoolSlots(t *testing.T) {
	p := testInitParams(128, 128)
	p.MaxActiveRefs = 1
	enc, err := Init(p)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()
	fp := testFrameParams()

	if err := enc.AddInput(texturedInput(-1, 128, 128)); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	refMap := []ReferenceMapEntry{{POC: -1, IsPast: true, WPWeight: 256}}
	if err := enc.ProcessFrameInit(ctx, refMap, fp); err != nil {
		t.Fatalf("first ProcessFrameInit: %v", err)
	}

	enc.DiscardFrame([]int32{-1})

	if err := enc.AddInput(texturedInput(-1, 128, 128)); err != nil {
		t.Fatalf("AddInput after discard: %v", err)
	}
	if err := enc.ProcessFrameInit(ctx, refMap, fp); err != nil {
		t.Fatalf("ProcessFrameInit after discard: %v", err)
	}
}

func TestAddInputRejectsMismatchedGeometry(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.AddInput(texturedInput(0, 64, 64)); !errors.Is(err, ErrInvalidPyramid) {
		t.Fatalf("AddInput err = %v, want ErrInvalidPyramid", err)
	}
}

func TestSetResolutionRederivesPyramid(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.SetResolution(256, 256); err != nil {
		t.Fatalf("SetResolution: %v", err)
	}
	// The old 128x128 geometry must no longer be accepted.
	if err := enc.AddInput(texturedInput(0, 128, 128)); !errors.Is(err, ErrInvalidPyramid) {
		t.Fatalf("AddInput err = %v, want ErrInvalidPyramid after resolution change", err)
	}
	if err := enc.AddInput(texturedInput(0, 256, 256)); err != nil {
		t.Fatalf("AddInput at the new resolution: %v", err)
	}
}

func TestSetSimulcastResolutionPinsEncodedLayers(t *testing.T) {
	enc, err := Init(testInitParams(128, 128))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := enc.SetSimulcastResolution([]int{256, 128}, []int{256, 128}); err != nil {
		t.Fatalf("SetSimulcastResolution: %v", err)
	}
	if err := enc.AddInput(texturedInput(0, 256, 256)); err != nil {
		t.Fatalf("AddInput at the pinned finest layer: %v", err)
	}
	// A 2:5 step violates the per-step ratio constraint.
	if err := enc.SetSimulcastResolution([]int{250, 100}, []int{250, 100}); !errors.Is(err, ErrInvalidPyramid) {
		t.Fatalf("err = %v, want ErrInvalidPyramid for an out-of-range simulcast step", err)
	}
	if err := enc.SetSimulcastResolution([]int{100}, nil); !errors.Is(err, ErrInvalidPyramid) {
		t.Fatalf("err = %v, want ErrInvalidPyramid for mismatched lists", err)
	}
}
