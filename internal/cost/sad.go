package cost

import "github.com/hme-project/hme/internal/mv"

// SAD computes the sum of absolute differences between an MxN block of src
// and ref, each with its own stride. This is the scalar reference
// definition; any SIMD specialization must be bit-identical to it.
func SAD(src []byte, srcStride int, ref []byte, refStride int, w, h int) uint32 {
	var sum uint32
	for y := 0; y < h; y++ {
		s := src[y*srcStride : y*srcStride+w]
		r := ref[y*refStride : y*refStride+w]
		for x := 0; x < w; x++ {
			d := int(s[x]) - int(r[x])
			if d < 0 {
				d = -d
			}
			sum += uint32(d)
		}
	}
	return sum
}

// SADGrid evaluates SAD at the nine offsets of a 3x3 grid around (refX,
// refY) with the given step, returning all nine sums from one call; each
// offset is a separate SAD pass over src. grid[4] is the centre offset
// (0,0).
//
// Offsets are laid out row-major: grid[dy*3+dx] for dy,dx in {-1,0,1}
// mapped to {0,1,2}.
func SADGrid(src []byte, srcStride int, ref []byte, refStride int, w, h, refX, refY, step int) [9]uint32 {
	var out [9]uint32
	i := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			ox := refX + dx*step
			oy := refY + dy*step
			offset := oy*refStride + ox
			out[i] = SAD(src, srcStride, ref[offset:], refStride, w, h)
			i++
		}
	}
	return out
}

// PartialSADs16x16 computes the 16 constituent 4x4 SADs of a 16x16 block
// and folds them into the 17 partition SADs enumerated by mv.PartID by
// fixed additive combination. The four asymmetric (AMP) directions split
// the 16 4x4 sub-blocks at a 1:3 ratio along rows or columns.
func PartialSADs16x16(src []byte, srcStride int, ref []byte, refStride int) [int(mv.NumPartIDs)]uint32 {
	var sub [4][4]uint32 // sub[row][col], each a 4x4 SAD
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			so := row*4*srcStride + col*4
			ro := row*4*refStride + col*4
			sub[row][col] = SAD(src[so:], srcStride, ref[ro:], refStride, 4, 4)
		}
	}

	rowSum := func(r int) uint32 { return sub[r][0] + sub[r][1] + sub[r][2] + sub[r][3] }
	colSum := func(c int) uint32 { return sub[0][c] + sub[1][c] + sub[2][c] + sub[3][c] }
	quad := func(r0, r1, c0, c1 int) uint32 {
		var s uint32
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				s += sub[r][c]
			}
		}
		return s
	}

	var out [int(mv.NumPartIDs)]uint32
	full := rowSum(0) + rowSum(1) + rowSum(2) + rowSum(3)

	out[mv.Part2Nx2N] = full
	out[mv.Part2NxN_T] = rowSum(0) + rowSum(1)
	out[mv.Part2NxN_B] = rowSum(2) + rowSum(3)
	out[mv.PartNx2N_L] = colSum(0) + colSum(1)
	out[mv.PartNx2N_R] = colSum(2) + colSum(3)
	out[mv.PartNxN_TL] = quad(0, 1, 0, 1)
	out[mv.PartNxN_TR] = quad(0, 1, 2, 3)
	out[mv.PartNxN_BL] = quad(2, 3, 0, 1)
	out[mv.PartNxN_BR] = quad(2, 3, 2, 3)

	out[mv.Part2NxnU_U] = rowSum(0)
	out[mv.Part2NxnU_D] = rowSum(1) + rowSum(2) + rowSum(3)
	out[mv.Part2NxnD_U] = rowSum(0) + rowSum(1) + rowSum(2)
	out[mv.Part2NxnD_D] = rowSum(3)

	out[mv.PartnLx2N_L] = colSum(0)
	out[mv.PartnLx2N_R] = colSum(1) + colSum(2) + colSum(3)
	out[mv.PartnRx2N_L] = colSum(0) + colSum(1) + colSum(2)
	out[mv.PartnRx2N_R] = colSum(3)

	return out
}
