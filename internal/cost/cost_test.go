package cost

import (
	"math/rand"
	"testing"

	"github.com/hme-project/hme/internal/mv"
)

func TestSADZeroForIdenticalBlocks(t *testing.T) {
	src := make([]byte, 16*16)
	for i := range src {
		src[i] = byte(i)
	}
	if got := SAD(src, 16, src, 16, 16, 16); got != 0 {
		t.Errorf("SAD(identical) = %d, want 0", got)
	}
}

func TestSADConstantOffset(t *testing.T) {
	src := make([]byte, 4*4)
	ref := make([]byte, 4*4)
	for i := range src {
		src[i] = 100
		ref[i] = 95
	}
	if got := SAD(src, 4, ref, 4, 4, 4); got != 5*16 {
		t.Errorf("SAD = %d, want %d", got, 5*16)
	}
}

// TestPartialSADsIdentities checks the arithmetic identities between the
// 17 partition SADs: the partitions of every split family must sum back to
// the full-block SAD.
func TestPartialSADsIdentities(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := make([]byte, 16*16)
	ref := make([]byte, 16*16)
	for i := range src {
		src[i] = byte(rng.Intn(256))
		ref[i] = byte(rng.Intn(256))
	}
	out := PartialSADs16x16(src, 16, ref, 16)

	full := out[mv.Part2Nx2N]
	if got := out[mv.Part2NxN_T] + out[mv.Part2NxN_B]; got != full {
		t.Errorf("2NxN_T+2NxN_B = %d, want %d", got, full)
	}
	if got := out[mv.PartNx2N_L] + out[mv.PartNx2N_R]; got != full {
		t.Errorf("Nx2N_L+Nx2N_R = %d, want %d", got, full)
	}
	if got := out[mv.PartNxN_TL] + out[mv.PartNxN_TR] + out[mv.PartNxN_BL] + out[mv.PartNxN_BR]; got != full {
		t.Errorf("NxN quadrants sum = %d, want %d", got, full)
	}
	if got := out[mv.Part2NxnU_U] + out[mv.Part2NxnU_D]; got != full {
		t.Errorf("2NxnU split sum = %d, want %d", got, full)
	}
	if got := out[mv.Part2NxnD_U] + out[mv.Part2NxnD_D]; got != full {
		t.Errorf("2NxnD split sum = %d, want %d", got, full)
	}
	if got := out[mv.PartnLx2N_L] + out[mv.PartnLx2N_R]; got != full {
		t.Errorf("nLx2N split sum = %d, want %d", got, full)
	}
	if got := out[mv.PartnRx2N_L] + out[mv.PartnRx2N_R]; got != full {
		t.Errorf("nRx2N split sum = %d, want %d", got, full)
	}
}

func TestPartialSADsMatchesDirectSAD(t *testing.T) {
	src := make([]byte, 16*16)
	ref := make([]byte, 16*16)
	for i := range src {
		src[i] = byte(i * 3)
		ref[i] = byte(i * 5)
	}
	out := PartialSADs16x16(src, 16, ref, 16)
	want := SAD(src, 16, ref, 16, 16, 16)
	if out[mv.Part2Nx2N] != want {
		t.Errorf("Part2Nx2N = %d, want %d (direct SAD)", out[mv.Part2Nx2N], want)
	}
}

func TestSATDZeroForIdenticalBlocks(t *testing.T) {
	src := make([]byte, 8*8)
	for i := range src {
		src[i] = byte(i * 7)
	}
	if got := SATD(src, 8, src, 8, 8, 8); got != 0 {
		t.Errorf("SATD(identical) = %d, want 0", got)
	}
	if got := SATD4x4(src, 8, src, 8); got != 0 {
		t.Errorf("SATD4x4(identical) = %d, want 0", got)
	}
}

func TestMVDiffBitsZeroIsCheapest(t *testing.T) {
	zero := MVDiffBits(0, 0)
	nonzero := MVDiffBits(4, 0)
	if zero >= nonzero {
		t.Errorf("MVDiffBits(0,0)=%d should be cheaper than MVDiffBits(4,0)=%d", zero, nonzero)
	}
}

func TestMVCostMonotonicInLambda(t *testing.T) {
	low := MVCost(4, 4, 2, 10, 8)
	high := MVCost(4, 4, 2, 100, 8)
	if high <= low {
		t.Errorf("MVCost should increase with lambda: low=%d high=%d", low, high)
	}
}

func TestRangeBitsMonotonic(t *testing.T) {
	prev := RangeBits(0)
	for n := uint32(1); n < 1000; n *= 2 {
		cur := RangeBits(n)
		if cur < prev {
			t.Fatalf("RangeBits not monotonic at n=%d: prev=%d cur=%d", n, prev, cur)
		}
		prev = cur
	}
}

func TestSADGridMatchesDirectSADPerOffset(t *testing.T) {
	const w, h, stride = 8, 8, 32
	src := make([]byte, stride*h)
	ref := make([]byte, stride*(h+8))
	for i := range src {
		src[i] = byte((i*13 + 7) % 251)
	}
	for i := range ref {
		ref[i] = byte((i*17 + 3) % 241)
	}
	const refX, refY, step = 8, 4, 2
	grid := SADGrid(src, stride, ref, stride, w, h, refX, refY, step)
	i := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			off := (refY + dy*step) * stride + (refX + dx*step)
			want := SAD(src, stride, ref[off:], stride, w, h)
			if grid[i] != want {
				t.Errorf("grid[%d] (dx=%d dy=%d) = %d, want %d", i, dx, dy, grid[i], want)
			}
			i++
		}
	}
}
