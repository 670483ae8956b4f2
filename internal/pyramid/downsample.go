package pyramid

import "github.com/hme-project/hme/internal/plane"

// Downsample box-filters src into a freshly allocated dst plane sized to
// geometry g, extends dst's borders, and returns it. The filter runs as a
// single whole-plane pass with exact-ratio integer accumulation, since
// every pyramid layer's source plane is already fully resident in memory.
func Downsample(src *plane.Plane, g Geometry, pad int) *plane.Plane {
	dst := plane.New(g.Width, g.Height, pad)

	// Horizontal box-filter accumulation per output column, done for every
	// output row by accumulating contributing source rows first.
	xWeights, xBase := boxWeights(src.Width, dst.Width)
	yWeights, yBase := boxWeights(src.Height, dst.Height)

	// rowAcc holds the horizontally-filtered value of one source row,
	// reused across the vertical accumulation for every output row band.
	rowAcc := make([]uint32, dst.Width)

	for oy := 0; oy < dst.Height; oy++ {
		dstRow := dst.Row(oy)
		for ox := range rowAcc {
			rowAcc[ox] = 0
		}
		var totalWeight uint32
		for _, yc := range yWeights[oy] {
			srcRow := src.Row(yBase[oy] + yc.idx)
			for ox := 0; ox < dst.Width; ox++ {
				var acc uint32
				var wsum uint32
				for _, xc := range xWeights[ox] {
					px := srcRow[xBase[ox]+xc.idx]
					acc += uint32(px) * xc.weight
					wsum += xc.weight
				}
				if wsum == 0 {
					wsum = 1
				}
				rowAcc[ox] += (acc / wsum) * yc.weight
			}
			totalWeight += yc.weight
		}
		if totalWeight == 0 {
			totalWeight = 1
		}
		for ox := 0; ox < dst.Width; ox++ {
			v := (rowAcc[ox] + totalWeight/2) / totalWeight
			if v > 255 {
				v = 255
			}
			dstRow[ox] = uint8(v)
		}
	}

	dst.ExtendBorders()
	return dst
}

type weightedIdx struct {
	idx    int
	weight uint32
}

// boxWeights computes, for each output sample, the list of contributing
// source sample offsets (relative to a per-output base index) and their box
// weights, matching a simple area-average downsample filter. srcLen >=
// dstLen is assumed (HME only downsamples).
func boxWeights(srcLen, dstLen int) ([][]weightedIdx, []int) {
	weights := make([][]weightedIdx, dstLen)
	base := make([]int, dstLen)
	ratioNum := uint64(srcLen)
	ratioDen := uint64(dstLen)
	for o := 0; o < dstLen; o++ {
		// Contributing source range computed in exact integer ratio
		// arithmetic rather than float rounding, so the same input always
		// selects the same taps.
		start := uint64(o) * ratioNum
		end := uint64(o+1) * ratioNum
		startIdx := int(start / ratioDen)
		endIdx := int((end + ratioDen - 1) / ratioDen)
		if endIdx <= startIdx {
			endIdx = startIdx + 1
		}
		if endIdx > srcLen {
			endIdx = srcLen
		}
		base[o] = startIdx
		list := make([]weightedIdx, 0, endIdx-startIdx)
		for s := startIdx; s < endIdx; s++ {
			// Weight is uniform within the contributing window; edge
			// fractional overlap is approximated as a full sample. The
			// padded border's content is undefined anyway, so the
			// approximation never leaks into a comparable region.
			list = append(list, weightedIdx{idx: s - startIdx, weight: 1})
		}
		weights[o] = list
	}
	return weights, base
}
