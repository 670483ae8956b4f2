package candidate

import "testing"

// TestScaleFactorQ8OppositeDirection pins the sign and magnitude of the
// scale factor when the target reference sits on the opposite temporal
// side of the current picture.
func TestScaleFactorQ8OppositeDirection(t *testing.T) {
	tests := []struct {
		name             string
		curr, from, to   int32
		want             int32
	}{
		{"case1", 10, 6, 14, -256},
		{"case2", 0, -2, 2, -256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScaleFactorQ8(tt.curr, tt.from, tt.to)
			if got != tt.want {
				t.Errorf("ScaleFactorQ8(%d,%d,%d) = %d, want %d", tt.curr, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestScaleFactorQ8IdentityWhenSamePicture(t *testing.T) {
	if got := ScaleFactorQ8(10, 10, 4); got != 256 {
		t.Errorf("ScaleFactorQ8 with td=0 = %d, want 256 (identity)", got)
	}
}

func TestScaleFactorQ8Clamped(t *testing.T) {
	got := ScaleFactorQ8(1000, 1, 0)
	if got < scaleQ8Min || got > scaleQ8Max {
		t.Errorf("ScaleFactorQ8 = %d, outside clamp range [%d,%d]", got, scaleQ8Min, scaleQ8Max)
	}
}
