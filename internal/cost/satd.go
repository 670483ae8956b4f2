package cost

// hadamard4 performs an in-place 1-D order-4 Hadamard (Walsh-Hadamard)
// butterfly: two add/subtract passes, no multiplies.
func hadamard4(a *[4]int32) {
	a0 := a[0] + a[2]
	a1 := a[1] + a[3]
	a2 := a[1] - a[3]
	a3 := a[0] - a[2]
	a[0] = a0 + a1
	a[1] = a3 + a2
	a[2] = a3 - a2
	a[3] = a0 - a1
}

// satd4x4 computes the SATD of a 4x4 residual block: a row-pass then a
// column-pass Hadamard transform, followed by a sum of absolute
// coefficients, matching the standard two-pass Hadamard SATD definition.
func satd4x4(diff [4][4]int32) uint32 {
	for r := 0; r < 4; r++ {
		hadamard4(&diff[r])
	}
	var col [4]int32
	var sum uint32
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			col[r] = diff[r][c]
		}
		hadamard4(&col)
		for r := 0; r < 4; r++ {
			v := col[r]
			if v < 0 {
				v = -v
			}
			sum += uint32(v)
		}
	}
	return (sum + 2) >> 2
}

// SATD4x4 computes the Hadamard-transformed absolute sum of differences
// between a 4x4 block of src and ref.
func SATD4x4(src []byte, srcStride int, ref []byte, refStride int) uint32 {
	var diff [4][4]int32
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			diff[y][x] = int32(src[y*srcStride+x]) - int32(ref[y*refStride+x])
		}
	}
	return satd4x4(diff)
}

// SATD8x8 computes an 8x8 SATD as the sum of four 4x4 Hadamard SATDs.
func SATD8x8(src []byte, srcStride int, ref []byte, refStride int) uint32 {
	var sum uint32
	for by := 0; by < 8; by += 4 {
		for bx := 0; bx < 8; bx += 4 {
			sum += SATD4x4(src[by*srcStride+bx:], srcStride, ref[by*refStride+bx:], refStride)
		}
	}
	return sum
}

// SATD computes SATD for an MxN block using 4x4 Hadamard sub-transforms
// for blocks no larger than 16x16, and 8x8-composed sub-transforms for
// larger blocks.
func SATD(src []byte, srcStride int, ref []byte, refStride int, w, h int) uint32 {
	if w <= 16 && h <= 16 {
		var sum uint32
		for by := 0; by < h; by += 4 {
			for bx := 0; bx < w; bx += 4 {
				sum += SATD4x4(src[by*srcStride+bx:], srcStride, ref[by*refStride+bx:], refStride)
			}
		}
		return sum
	}
	var sum uint32
	for by := 0; by < h; by += 8 {
		for bx := 0; bx < w; bx += 8 {
			sum += SATD8x8(src[by*srcStride+bx:], srcStride, ref[by*refStride+bx:], refStride)
		}
	}
	return sum
}
