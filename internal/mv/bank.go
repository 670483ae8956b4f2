package mv

// BlockSize is the granularity of an MV bank's grid, which differs by
// pyramid layer: coarsest layers use 4x4, intermediate layers 8x8, the
// finest (L0) layer 16x16.
type BlockSize int

const (
	Block4x4 BlockSize = 4
	Block8x8 BlockSize = 8
	Block16x16 BlockSize = 16
)

// Block holds the up-to-K best results for one grid cell, one slot per
// active reference, in best-first (ascending TotalCost) order.
type Block struct {
	Results []Node // len == numResultsPerRef * numActiveRefs, sorted per ref run
}

// Bank is a 2-D grid of Blocks for one pyramid layer, padded by Pad (at
// least one) rows/columns of blocks on every side so boundary lookups never
// need bounds checks.
//
// Grid coordinates (gx, gy) are in block units over the *unpadded* region;
// internal storage is offset by Pad blocks on every side.
type Bank struct {
	Size              BlockSize
	GridW, GridH      int // unpadded grid dimensions, in blocks
	Pad               int // padding blocks on every side (>=1)
	NumResultsPerRef  int
	NumActiveRefs     int
	cells             []Block
	stride            int // row stride in the padded storage, in cells
}

// NewBank allocates a bank for a gridW x gridH (unpadded) layer with the
// given per-block result capacity. Every cell, including the pad ring, is
// allocated so lookups never nil-check.
func NewBank(size BlockSize, gridW, gridH, pad, numResultsPerRef, numActiveRefs int) *Bank {
	if pad < 1 {
		pad = 1
	}
	stride := gridW + 2*pad
	rows := gridH + 2*pad
	b := &Bank{
		Size:             size,
		GridW:            gridW,
		GridH:            gridH,
		Pad:              pad,
		NumResultsPerRef: numResultsPerRef,
		NumActiveRefs:    numActiveRefs,
		stride:           stride,
		cells:            make([]Block, stride*rows),
	}
	cap := numResultsPerRef * numActiveRefs
	for i := range b.cells {
		b.cells[i].Results = make([]Node, 0, cap)
	}
	return b
}

// Reset clears every cell (including padding) to empty, as required at the
// start of every picture for every layer — no cross-picture MV aliasing is
// permitted other than via the explicit global-MV / colocated lookups.
func (b *Bank) Reset() {
	for i := range b.cells {
		b.cells[i].Results = b.cells[i].Results[:0]
	}
}

// Clone returns an independent deep copy of b, so a picture's finished bank
// can be kept as the next picture's colocated-temporal-candidate source
// even though Reset is about to clear the original in place.
func (b *Bank) Clone() *Bank {
	out := &Bank{
		Size:             b.Size,
		GridW:            b.GridW,
		GridH:            b.GridH,
		Pad:              b.Pad,
		NumResultsPerRef: b.NumResultsPerRef,
		NumActiveRefs:    b.NumActiveRefs,
		stride:           b.stride,
		cells:            make([]Block, len(b.cells)),
	}
	for i := range b.cells {
		out.cells[i].Results = append([]Node(nil), b.cells[i].Results...)
	}
	return out
}

// index maps a (possibly out-of-[0,GridW)) grid coordinate into the padded
// cell slice, clamping to the pad ring so off-picture lookups read defined
// (empty) cells instead of panicking.
func (b *Bank) index(gx, gy int) int {
	x := gx + b.Pad
	y := gy + b.Pad
	if x < 0 {
		x = 0
	} else if x >= b.stride {
		x = b.stride - 1
	}
	maxRow := b.GridH + 2*b.Pad - 1
	if y < 0 {
		y = 0
	} else if y > maxRow {
		y = maxRow
	}
	return y*b.stride + x
}

// At returns the block at grid coordinate (gx, gy). Coordinates outside
// [0,GridW)x[0,GridH) but inside the pad ring return the padding cell;
// coordinates further out are clamped to the nearest pad cell.
func (b *Bank) At(gx, gy int) *Block {
	return &b.cells[b.index(gx, gy)]
}

// InBounds reports whether (gx, gy) addresses a real (non-padding) cell.
func (b *Bank) InBounds(gx, gy int) bool {
	return gx >= 0 && gx < b.GridW && gy >= 0 && gy < b.GridH
}

// Insert adds candidate n into the block under its reference n.RefIdx,
// maintaining ascending-TotalCost order and the per-reference
// top-numResultsPerRef cap. Results for other references already in the
// block are left untouched.
func (blk *Block) Insert(n Node, numResultsPerRef int) {
	// Count existing entries for this reference and find insertion point.
	count := 0
	insertAt := len(blk.Results)
	for i, r := range blk.Results {
		if r.RefIdx != n.RefIdx {
			continue
		}
		count++
		if insertAt == len(blk.Results) && n.TotalCost < r.TotalCost {
			insertAt = i
		}
	}
	if insertAt == len(blk.Results) {
		// Only place at the very end among this ref's run; find that run's end.
		last := -1
		for i, r := range blk.Results {
			if r.RefIdx == n.RefIdx {
				last = i
			}
		}
		insertAt = last + 1
	}
	if count >= numResultsPerRef && insertAt >= len(blk.Results) {
		return // full and not better than the worst kept entry
	}
	blk.Results = append(blk.Results, Node{})
	copy(blk.Results[insertAt+1:], blk.Results[insertAt:len(blk.Results)-1])
	blk.Results[insertAt] = n
	// Trim this reference's run down to numResultsPerRef, dropping the
	// worst (last) entries for this ref if the cap was exceeded.
	if count+1 > numResultsPerRef {
		blk.trimRef(n.RefIdx, numResultsPerRef)
	}
}

func (blk *Block) trimRef(refIdx int16, cap int) {
	kept := 0
	out := blk.Results[:0]
	for _, r := range blk.Results {
		if r.RefIdx != refIdx {
			out = append(out, r)
			continue
		}
		if kept < cap {
			out = append(out, r)
			kept++
		}
	}
	blk.Results = out
}

// Best returns the best (lowest TotalCost) result for refIdx in this block,
// or false if none is available.
func (blk *Block) Best(refIdx int16) (Node, bool) {
	for _, r := range blk.Results {
		if r.RefIdx == refIdx && r.IsAvail {
			return r, true
		}
	}
	return Node{}, false
}

// All returns every result for refIdx, already sorted ascending by
// TotalCost since Insert maintains that order.
func (blk *Block) All(refIdx int16) []Node {
	var out []Node
	for _, r := range blk.Results {
		if r.RefIdx == refIdx {
			out = append(out, r)
		}
	}
	return out
}

// ResultBlock is the per-CU best-N search-results table used by the L0
// engine: one row of Nodes per (PartID, RefDir) pair, each row sorted
// ascending by TotalCost.
type ResultBlock struct {
	rows [NumPartIDs][3]struct {
		nodes []Node
		cap   int
	}
}

// NewResultBlock allocates a ResultBlock where every (part, dir) row keeps
// up to cap entries.
func NewResultBlock(cap int) *ResultBlock {
	rb := &ResultBlock{}
	for p := range rb.rows {
		for d := range rb.rows[p] {
			rb.rows[p][d].cap = cap
			rb.rows[p][d].nodes = make([]Node, 0, cap)
		}
	}
	return rb
}

// Reset empties every row without reallocating.
func (rb *ResultBlock) Reset() {
	for p := range rb.rows {
		for d := range rb.rows[p] {
			rb.rows[p][d].nodes = rb.rows[p][d].nodes[:0]
		}
	}
}

// Insert records a candidate result under (part, dir), keeping the row
// sorted ascending by TotalCost and capped at the row's configured size.
func (rb *ResultBlock) Insert(part PartID, dir RefDir, n Node) {
	row := &rb.rows[part][dir]
	at := len(row.nodes)
	for i, r := range row.nodes {
		if n.TotalCost < r.TotalCost {
			at = i
			break
		}
	}
	if at >= row.cap {
		return
	}
	row.nodes = append(row.nodes, Node{})
	copy(row.nodes[at+1:], row.nodes[at:len(row.nodes)-1])
	row.nodes[at] = n
	if len(row.nodes) > row.cap {
		row.nodes = row.nodes[:row.cap]
	}
}

// Best returns the lowest-cost node recorded for (part, dir), or false if
// none was inserted.
func (rb *ResultBlock) Best(part PartID, dir RefDir) (Node, bool) {
	row := rb.rows[part][dir]
	if len(row.nodes) == 0 {
		return Node{}, false
	}
	return row.nodes[0], true
}

// Nodes returns the sorted result list for (part, dir).
func (rb *ResultBlock) Nodes(part PartID, dir RefDir) []Node {
	return rb.rows[part][dir].nodes
}
