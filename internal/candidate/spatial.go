package candidate

import "github.com/hme-project/hme/internal/mv"

// Neighbours holds the causal spatial neighbour MVs available when
// building a candidate list for a block at (blkX, blkY): four top-row
// positions and two left-column positions (Left, BottomLeft), each
// possibly unavailable (outside the CTB or picture). Above is the cell
// directly above the block, the same cell as TopCenterLeft; there is no
// third left-column position.
type Neighbours struct {
	TopLeft, TopCenterLeft, TopCenterRight, TopRight mv.Node
	Left, BottomLeft, Above mv.Node
}

// ExtractSpatial reads the top-row and left-column neighbours of the block
// at grid position (bx, by) from bank, for reference refIdx, marking
// positions outside the picture or still-unwritten (causal) region as
// unavailable. Neighbour offsets follow the standard HEVC spatial merge
// layout: top row at {-1,-1}..{+2,-1} relative to the block's top-left
// corner in block units, left column at {-1,0}..{-1,+1}.
func ExtractSpatial(bank *mv.Bank, bx, by int, refIdx int16) Neighbours {
	get := func(gx, gy int) mv.Node {
		if !bank.InBounds(gx, gy) {
			return mv.Node{IsAvail: false}
		}
		if n, ok := bank.At(gx, gy).Best(refIdx); ok {
			return n
		}
		return mv.Node{IsAvail: false}
	}
	return Neighbours{
		TopLeft:        get(bx-1, by-1),
		TopCenterLeft:  get(bx, by-1),
		TopCenterRight: get(bx+1, by-1),
		TopRight:       get(bx+2, by-1),
		Left:           get(bx-1, by),
		BottomLeft:     get(bx-1, by+1),
		Above:          get(bx, by-1),
	}
}

// Project scales a parent-layer MV bank result down to a child-layer
// block by the Q8 layer ratio and clips it to the child layer's MV range.
func Project(parentBank *mv.Bank, parentBX, parentBY int, refIdx int16, ratioQ8 int32, rangeX, rangeY int32) (mv.Node, bool) {
	if !parentBank.InBounds(parentBX, parentBY) {
		return mv.Node{}, false
	}
	n, ok := parentBank.At(parentBX, parentBY).Best(refIdx)
	if !ok {
		return mv.Node{}, false
	}
	n.MV = n.MV.Scale(ratioQ8).Clamp(rangeX, rangeY)
	return n, true
}
