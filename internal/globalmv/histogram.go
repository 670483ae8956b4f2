// Package globalmv accumulates the per-reference global motion vector
// histogram: every motion vector a layer's search produces for a given
// reference is dropped into a 2-D bucket, and after the picture the two
// strongest buckets become that reference's "past" lobe (strongest) and
// "future" lobe (second strongest); see GlobalMV.
package globalmv

import (
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/hme-project/hme/internal/mv"
)

// DefaultBucketSize is the MV-space quantization granularity for histogram
// buckets, in quarter-pel units. A value of 1 buckets at native
// quarter-pel resolution.
const DefaultBucketSize int32 = 1

type bucketKey struct {
	bx, by int32
}

// Histogram accumulates per-bucket MV counts for one reference. Rows of a
// layer are searched concurrently and all feed the same reference's
// histogram, so Add and the readers lock internally.
type Histogram struct {
	mu         sync.Mutex
	bucketSize int32
	counts     map[bucketKey]int
	// order records first-seen bucket insertion; peak extraction
	// total-orders buckets itself, so order only provides a stable
	// iteration base.
	order []bucketKey
}

// New returns an empty histogram bucketing MVs at bucketSize quarter-pel
// granularity. A bucketSize <= 0 defaults to DefaultBucketSize.
func New(bucketSize int32) *Histogram {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return &Histogram{
		bucketSize: bucketSize,
		counts:     make(map[bucketKey]int),
	}
}

// Reset empties the histogram for reuse at the next picture.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k := range h.counts {
		delete(h.counts, k)
	}
	h.order = h.order[:0]
}

func (h *Histogram) key(m mv.MV) bucketKey {
	return bucketKey{
		bx: floorDiv(int32(m.X), h.bucketSize),
		by: floorDiv(int32(m.Y), h.bucketSize),
	}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Add records one occurrence of m in the histogram.
func (h *Histogram) Add(m mv.MV) {
	k := h.key(m)
	h.mu.Lock()
	if _, ok := h.counts[k]; !ok {
		h.order = append(h.order, k)
	}
	h.counts[k]++
	h.mu.Unlock()
}

// Count returns the total number of samples recorded, used by tests and by
// callers deciding whether a histogram carries enough samples to trust its
// peak.
func (h *Histogram) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, c := range h.counts {
		total += c
	}
	return total
}

func (h *Histogram) bucketCenter(k bucketKey) mv.MV {
	return mv.MV{
		X: int16(k.bx * h.bucketSize),
		Y: int16(k.by * h.bucketSize),
	}
}

// Peaks returns the up-to-two strongest bucket centres, highest count
// first, ties broken by smaller |mv| and then by bucket coordinates, so
// the result is a pure function of the recorded counts regardless of the
// order concurrent rows happened to insert buckets. An empty histogram
// returns an empty slice.
func (h *Histogram) Peaks() []mv.MV {
	h.mu.Lock()
	keys := make([]bucketKey, len(h.order))
	copy(keys, h.order)
	counts := make([]float64, len(keys))
	for i, k := range keys {
		counts[i] = float64(h.counts[k])
	}
	h.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	var out []mv.MV
	for len(out) < 2 {
		maxCount := floats.Max(counts)
		if maxCount <= 0 {
			break
		}
		best := -1
		for i := range counts {
			if counts[i] != maxCount {
				continue
			}
			if best < 0 || bucketLess(h, keys[i], keys[best]) {
				best = i
			}
		}
		out = append(out, h.bucketCenter(keys[best]))
		counts[best] = -1
	}
	return out
}

// bucketLess total-orders equal-count buckets: smaller |mv| first, then
// lexicographic bucket coordinates.
func bucketLess(h *Histogram, a, b bucketKey) bool {
	am, bm := absMV(h.bucketCenter(a)), absMV(h.bucketCenter(b))
	if am != bm {
		return am < bm
	}
	if a.bx != b.bx {
		return a.bx < b.bx
	}
	return a.by < b.by
}

func absMV(m mv.MV) int32 {
	x, y := int32(m.X), int32(m.Y)
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	return x + y
}

// Lobe returns the single strongest bucket centre, or the zero MV if the
// histogram has no samples. This is what a layer context stores as a
// reference's past-lobe or future-lobe global MV.
func (h *Histogram) Lobe() mv.MV {
	peaks := h.Peaks()
	if len(peaks) == 0 {
		return mv.MV{}
	}
	return peaks[0]
}

// GlobalMV is the per-reference global motion storage held by a layer
// context: one "past" lobe and one "future" lobe. Both are drawn from the
// same per-reference histogram's two strongest buckets — the stronger
// bucket is the past lobe, the second-strongest the future lobe — so a
// reference classified as past consults PastLobe and one classified as
// future consults FutureLobe, independent of which classification the
// histogram itself was built under.
type GlobalMV struct {
	PastLobe, FutureLobe mv.MV
	HavePast, HaveFuture bool
}

// Accumulate fills g's two lobes from hist's two strongest buckets.
func (g *GlobalMV) Accumulate(hist *Histogram) {
	peaks := hist.Peaks()
	if len(peaks) > 0 {
		g.PastLobe = peaks[0]
		g.HavePast = true
	}
	if len(peaks) > 1 {
		g.FutureLobe = peaks[1]
		g.HaveFuture = true
	}
}
