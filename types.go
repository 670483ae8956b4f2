package hme

import (
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/preset"
)

// InitParams configures a new Encoder: the finest-layer resolution, the
// derived-pyramid bounds, the quality preset driving every search stage's
// defaults, and the padding/reference-pool sizing every layer allocates.
type InitParams struct {
	Width, Height   int
	MaxLayers       int
	MinCoarsestSize int

	Preset      preset.Preset
	PresetTable preset.Table // optional override table; nil uses preset.Default()

	Pad              int
	MaxActiveRefs    int
	NumResultsPerRef int
	Workers          int
}

// InputDescriptor hands a picture's raw finest-layer (layer 0) luma plane
// to the encoder; coarser pyramid layers are derived internally by
// downsampling. Stride is in bytes per row; PadX/PadY describe how much
// border padding Data already carries (0 is fine — the encoder extends
// borders itself after copying).
type InputDescriptor struct {
	POC              int32
	Data             []byte
	Width, Height    int
	Stride           int
	PadX, PadY       int
}

// ReferenceMapEntry names one active reference for the frame about to be
// processed: which previously added picture (by POC) it is, its role
// (past/future), and its weighted-prediction parameters.
type ReferenceMapEntry struct {
	RefIDLC int32
	RefIDL0 int32
	RefIDL1 int32
	POC     int32
	IsPast  bool

	WPWeight int32
	WPOffset int32
}

// FrameParams carries the per-picture search parameters that are not fixed
// by the quality preset: rate-distortion lambda, MV search range, and the
// picture's coding role.
type FrameParams struct {
	Lambda       uint32
	LambdaQShift uint
	BidirEnabled bool
	IsIPic       bool
	IsRefPic     bool
	MVRangeX     int32
	MVRangeY     int32
	QStep        uint32
	Preset       preset.Preset
	WeightedPred bool
	NoiseAware   bool // enable the STIM noise-preservation bias on merge/skip cost
}

// PUOutput is one prediction-unit decision inside a CTB: placement, the
// motion vectors and reference indices per direction, prediction
// direction, and merge metadata.
type PUOutput struct {
	X, Y          int
	Width, Height int

	MVL0     mv.MV
	RefL0    int16
	MVL1     mv.MV
	RefL1    int16
	PredDir  mv.RefDir
	MergeFlag bool
	MergeIdx  int

	TotalCost uint32
}

// CTBResult is one coding-tree-block's finished partition decision: its
// picture-pixel position and the ranked PU entries the caller should
// consume downstream (transform/quant, bitstream, etc. — all external to
// this engine).
type CTBResult struct {
	X, Y int
	PUs  []PUOutput
}
