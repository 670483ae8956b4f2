// Package plane provides the padded 2-D pixel buffer shared by every
// pyramid layer, reference descriptor, and search kernel. Padding lets the
// hot search loops read beyond the picture border without per-pixel bounds
// checks; logical coordinates may go negative into the pad ring.
package plane

// Plane is a single 8-bit luma plane with symmetric padding on every side.
// Data is laid out row-major with Stride bytes per row; (0,0) in logical
// picture coordinates sits at Data[PadY*Stride+PadX].
type Plane struct {
	Data          []byte
	Width, Height int // unpadded, logical picture dimensions
	Stride        int
	PadX, PadY    int
}

// New allocates a plane of width x height with at least pad pixels of
// padding on every side, extended so Stride is a multiple of 16 (keeps the
// common SIMD contract alignment assumption satisfiable even though this
// implementation is pure Go).
func New(width, height, pad int) *Plane {
	if pad < 1 {
		pad = 1
	}
	stride := width + 2*pad
	if rem := stride % 16; rem != 0 {
		stride += 16 - rem
	}
	rows := height + 2*pad
	return &Plane{
		Data:   make([]byte, stride*rows),
		Width:  width,
		Height: height,
		Stride: stride,
		PadX:   pad,
		PadY:   pad,
	}
}

// Offset returns the index into Data of logical pixel (x, y). x and y may
// be negative or beyond Width/Height as long as they stay within the
// padded extents; callers that search beyond the pad ring are a bug in the
// caller, not in Plane.
func (p *Plane) Offset(x, y int) int {
	return (y+p.PadY)*p.Stride + (x + p.PadX)
}

// At returns the pixel value at logical coordinate (x, y).
func (p *Plane) At(x, y int) uint8 {
	return p.Data[p.Offset(x, y)]
}

// Set writes the pixel value at logical coordinate (x, y).
func (p *Plane) Set(x, y int, v uint8) {
	p.Data[p.Offset(x, y)] = v
}

// Row returns the Width-length (unpadded) slice of row y; the left/right
// pad ring is not included.
func (p *Plane) Row(y int) []byte {
	off := p.Offset(0, y)
	return p.Data[off : off+p.Width]
}

// ExtendBorders replicates the outermost row/column of real pixels into the
// padding ring on every side, so search windows that spill past the picture
// edge read a clamped extension rather than garbage or zero.
func (p *Plane) ExtendBorders() {
	// Left/right columns, for every real row.
	for y := 0; y < p.Height; y++ {
		rowOff := p.Offset(0, y)
		left := p.Data[rowOff]
		right := p.Data[rowOff+p.Width-1]
		for x := 1; x <= p.PadX; x++ {
			p.Data[rowOff-x] = left
			p.Data[rowOff+p.Width-1+x] = right
		}
	}
	// Top/bottom rows, now including the left/right pad just filled.
	fullRowOff := p.Offset(-p.PadX, 0)
	fullWidth := p.Width + 2*p.PadX
	topRow := p.Data[fullRowOff : fullRowOff+fullWidth]
	bottomOff := p.Offset(-p.PadX, p.Height-1)
	bottomRow := p.Data[bottomOff : bottomOff+fullWidth]
	for y := 1; y <= p.PadY; y++ {
		dstTop := p.Offset(-p.PadX, -y)
		copy(p.Data[dstTop:dstTop+fullWidth], topRow)
		dstBottom := p.Offset(-p.PadX, p.Height-1+y)
		copy(p.Data[dstBottom:dstBottom+fullWidth], bottomRow)
	}
}
