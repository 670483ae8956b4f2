package refctx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClaimReleaseRoundTrip(t *testing.T) {
	p := NewPool(2, 64, 64, 16)
	d1, err := p.Claim(context.Background(), 10, true, 256, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if d1.POC != 10 {
		t.Errorf("POC = %d, want 10", d1.POC)
	}
	p.Release(d1)

	d2, err := p.Claim(context.Background(), 20, false, 256, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if d2 != d1 {
		t.Errorf("expected released slot to be reused")
	}
}

func TestClaimRejectsNonPositiveWeight(t *testing.T) {
	p := NewPool(1, 16, 16, 4)
	if _, err := p.Claim(context.Background(), 1, true, 0, 0); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("err = %v, want ErrInvalidWeight", err)
	}
	if _, err := p.Claim(context.Background(), 1, true, -5, 0); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("err = %v, want ErrInvalidWeight", err)
	}
}

func TestClaimBlocksWhenExhausted(t *testing.T) {
	p := NewPool(1, 16, 16, 4)
	d, err := p.Claim(context.Background(), 1, true, 256, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Claim(ctx, 2, true, 256, 0); err == nil {
		t.Fatalf("expected Claim to block/fail while pool is exhausted")
	}

	p.Release(d)
	if _, err := p.Claim(context.Background(), 3, true, 256, 0); err != nil {
		t.Fatalf("Claim after release: %v", err)
	}
}

func TestFindByPOC(t *testing.T) {
	p := NewPool(2, 16, 16, 4)
	if _, err := p.Claim(context.Background(), 42, true, 256, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := p.FindByPOC(42); err != nil {
		t.Fatalf("FindByPOC(42): %v", err)
	}
	if _, err := p.FindByPOC(99); !errors.Is(err, ErrPOCNotFound) {
		t.Errorf("err = %v, want ErrPOCNotFound", err)
	}
}

func TestClaimDerivesInverseWeight(t *testing.T) {
	p := NewPool(1, 16, 16, 4)
	d, err := p.Claim(context.Background(), 1, true, 256, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if d.InvWeightQ15 != 128 {
		t.Errorf("InvWeightQ15 for unit weight = %d, want 128", d.InvWeightQ15)
	}
	if !d.HasIdentityWeight() {
		t.Error("weight 256 with zero offset must be identity")
	}
	if got := d.InverseWeight(100); got != 100 {
		t.Errorf("identity InverseWeight(100) = %d, want 100", got)
	}
}

func TestInverseWeightUndoesHalving(t *testing.T) {
	p := NewPool(1, 16, 16, 4)
	d, err := p.Claim(context.Background(), 1, true, 128, 10)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	// A reference weighted by w=128 (0.5) with offset 10 maps sample s to
	// s/2+10; the inverse must map 60 back to 100.
	if got := d.InverseWeight(60); got != 100 {
		t.Errorf("InverseWeight(60) = %d, want 100", got)
	}
	if got := d.InverseWeight(0); got != 0 {
		t.Errorf("InverseWeight(0) = %d, want clip at 0", got)
	}
}

func TestFillHalfPelAveragesNeighbours(t *testing.T) {
	p := NewPool(1, 8, 8, 4)
	d, err := p.Claim(context.Background(), 1, true, 256, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	for y := -4; y < 12; y++ {
		for x := -4; x < 12; x++ {
			d.Source.Set(x, y, uint8((x+4)*10))
		}
	}
	d.FillHalfPel()

	if d.HalfPel[HalfPelFxFy] != d.Source {
		t.Error("FxFy plane must alias the source")
	}
	// Columns step by 10, so the horizontal half-pel sample between
	// columns 2 (60) and 3 (70) is 65.
	if got := d.HalfPel[HalfPelHxFy].At(2, 2); got != 65 {
		t.Errorf("HxFy at (2,2) = %d, want 65", got)
	}
	// Rows are constant, so the vertical half-pel plane matches the source
	// and HxHy matches HxFy.
	if got := d.HalfPel[HalfPelFxHy].At(2, 2); got != 60 {
		t.Errorf("FxHy at (2,2) = %d, want 60", got)
	}
	if got := d.HalfPel[HalfPelHxHy].At(2, 2); got != 65 {
		t.Errorf("HxHy at (2,2) = %d, want 65", got)
	}
}
