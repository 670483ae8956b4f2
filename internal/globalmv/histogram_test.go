package globalmv

import (
	"testing"

	"github.com/hme-project/hme/internal/mv"
)

// TestHistogramLobesFromMixedPopulation injects 100 MVs at (4,0), 50 at
// (-4,0), 10 at (0,4). The past lobe (strongest bucket) must be (4,0); the
// future lobe (second-strongest bucket) must be (-4,0).
func TestHistogramLobesFromMixedPopulation(t *testing.T) {
	h := New(DefaultBucketSize)
	for i := 0; i < 100; i++ {
		h.Add(mv.MV{X: 4, Y: 0})
	}
	for i := 0; i < 50; i++ {
		h.Add(mv.MV{X: -4, Y: 0})
	}
	for i := 0; i < 10; i++ {
		h.Add(mv.MV{X: 0, Y: 4})
	}

	var g GlobalMV
	g.Accumulate(h)
	if !g.HavePast || g.PastLobe != (mv.MV{X: 4, Y: 0}) {
		t.Errorf("past lobe = %+v, want (4,0)", g.PastLobe)
	}
	if !g.HaveFuture || g.FutureLobe != (mv.MV{X: -4, Y: 0}) {
		t.Errorf("future lobe = %+v, want (-4,0)", g.FutureLobe)
	}
}

func TestHistogramPeaksOrderedByCount(t *testing.T) {
	h := New(DefaultBucketSize)
	for i := 0; i < 5; i++ {
		h.Add(mv.MV{X: 1, Y: 1})
	}
	for i := 0; i < 20; i++ {
		h.Add(mv.MV{X: 2, Y: 2})
	}
	peaks := h.Peaks()
	if len(peaks) != 2 {
		t.Fatalf("expected 2 peaks, got %d", len(peaks))
	}
	if peaks[0] != (mv.MV{X: 2, Y: 2}) {
		t.Errorf("strongest peak = %+v, want (2,2)", peaks[0])
	}
	if peaks[1] != (mv.MV{X: 1, Y: 1}) {
		t.Errorf("second peak = %+v, want (1,1)", peaks[1])
	}
}

func TestHistogramTieBreakPrefersSmallerMagnitude(t *testing.T) {
	h := New(DefaultBucketSize)
	h.Add(mv.MV{X: 10, Y: 0})
	h.Add(mv.MV{X: 2, Y: 0})
	peaks := h.Peaks()
	if peaks[0] != (mv.MV{X: 2, Y: 0}) {
		t.Errorf("tie-break winner = %+v, want the smaller-magnitude MV (2,0)", peaks[0])
	}
}

func TestHistogramEmptyLobeIsZero(t *testing.T) {
	h := New(DefaultBucketSize)
	if lobe := h.Lobe(); lobe != (mv.MV{}) {
		t.Errorf("empty histogram lobe = %+v, want zero MV", lobe)
	}
}

func TestHistogramResetClearsCounts(t *testing.T) {
	h := New(DefaultBucketSize)
	h.Add(mv.MV{X: 3, Y: 3})
	h.Reset()
	if h.Count() != 0 {
		t.Errorf("Count() after Reset = %d, want 0", h.Count())
	}
	if lobe := h.Lobe(); lobe != (mv.MV{}) {
		t.Errorf("Lobe() after Reset = %+v, want zero MV", lobe)
	}
}
