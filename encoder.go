package hme

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hme-project/hme/internal/arena"
	"github.com/hme-project/hme/internal/coarse"
	"github.com/hme-project/hme/internal/l0"
	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/pipeline"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/pyramid"
	"github.com/hme-project/hme/internal/refctx"
	"github.com/hme-project/hme/internal/refine"
	"github.com/hme-project/hme/preset"
)

// pictureEntry holds one added-but-not-yet-discarded input's per-layer
// planes, indexed finest-first the same way Encoder.layers is.
type pictureEntry struct {
	poc    int32
	planes []*plane.Plane
}

// refEntry tracks the per-layer descriptors claimed for one active
// reference, so DiscardFrame can release them back to their pools.
type refEntry struct {
	poc       int32
	perLayer  []*refctx.Descriptor // one per layer, finest-first, nil where the layer has no pool entry for it
}

// Encoder is the stateful handle returned by Init. Its exported methods
// cover the engine's external surface: resolution changes, input handover,
// per-frame reference binding, the search itself, and reference discard.
type Encoder struct {
	mu sync.Mutex

	params      InitParams
	presetTable preset.Table
	geometries  []pyramid.Geometry // finest-first (index 0 = layer 0 = encode layer)

	layers    []*layerctx.LayerContext // same indexing as geometries, persistent across pictures
	refPools  []*refctx.Pool           // same indexing, one pool per layer
	colocated []*mv.Bank               // same indexing, previous picture's finished bank per layer

	pictures map[int32]*pictureEntry
	refs     map[int32]*refEntry // currently claimed references, by POC
}

// blockSizeForLayer maps a geometries-array index (0 = finest) to the MV
// bank granularity that layer searches at: 16x16 at the encode layer, 4x4
// at the coarsest, 8x8 at every layer in between.
func blockSizeForLayer(layerIdx, numLayers int) mv.BlockSize {
	if numLayers <= 1 || layerIdx == numLayers-1 {
		return mv.Block4x4
	}
	if layerIdx == 0 {
		return mv.Block16x16
	}
	return mv.Block8x8
}

// layerRatioQ8 returns the Q8 scale factor that converts a motion vector
// expressed in parent's pixel grid into child's, i.e. 256*childWidth/parentWidth.
func layerRatioQ8(child, parent pyramid.Geometry) int32 {
	if parent.Width == 0 {
		return 256
	}
	return int32(child.Width) * 256 / int32(parent.Width)
}

// Init validates and derives the pyramid geometry, allocates a persistent
// layer-context and reference-pool set, and returns a ready Encoder.
// Returns ErrInvalidPyramid if the requested geometry cannot be derived.
func Init(p InitParams) (*Encoder, error) {
	geoms, err := pyramid.Derive(p.Width, p.Height, p.MaxLayers, p.MinCoarsestSize, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPyramid, err)
	}
	pad := p.Pad
	if pad < 16 {
		pad = 16
	}
	table := p.PresetTable
	if table == nil {
		table = preset.Default()
	}
	if _, err := table.Get(p.Preset); err != nil {
		return nil, fmt.Errorf("%w: preset %s not in table: %v", ErrInvalidPyramid, p.Preset, err)
	}

	e := &Encoder{
		params:      p,
		presetTable: table,
		geometries:  geoms,
		layers:      make([]*layerctx.LayerContext, len(geoms)),
		refPools:    make([]*refctx.Pool, len(geoms)),
		colocated:   make([]*mv.Bank, len(geoms)),
		pictures:    make(map[int32]*pictureEntry),
		refs:        make(map[int32]*refEntry),
	}
	for i, g := range geoms {
		blockSize := blockSizeForLayer(i, len(geoms))
		e.layers[i] = layerctx.New(g, i, i == 0, blockSize, p.MaxActiveRefs, p.NumResultsPerRef, 0, 0)
		e.refPools[i] = refctx.NewPool(p.MaxActiveRefs, g.Width, g.Height, pad)
	}
	logrus.Infof("[hme] init: %dx%d, %d layers, preset=%s", p.Width, p.Height, len(geoms), p.Preset)
	return e, nil
}

// SetResolution recomputes the derived pyramid for a new finest-layer
// resolution, discarding any in-flight pictures and claimed references
// first.
func (e *Encoder) SetResolution(width, height int) error {
	return e.setResolution(width, height, nil, nil)
}

// SetSimulcastResolution recomputes the pyramid with the encoded layers'
// dimensions pinned exactly as given (finest first); only the non-encoded
// seed layers beyond them are derived by downsampling. The pinned list
// must still satisfy the per-step ratio constraints.
func (e *Encoder) SetSimulcastResolution(widths, heights []int) error {
	if len(widths) == 0 || len(widths) != len(heights) {
		return fmt.Errorf("%w: mismatched simulcast width/height counts", ErrInvalidPyramid)
	}
	return e.setResolution(widths[0], heights[0], widths, heights)
}

func (e *Encoder) setResolution(width, height int, simulcastW, simulcastH []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	geoms, err := pyramid.Derive(width, height, e.params.MaxLayers, e.params.MinCoarsestSize, simulcastW, simulcastH)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPyramid, err)
	}
	for poc := range e.refs {
		e.releaseRefLocked(poc)
	}
	e.pictures = make(map[int32]*pictureEntry)
	e.geometries = geoms
	pad := e.params.Pad
	if pad < 16 {
		pad = 16
	}
	e.layers = make([]*layerctx.LayerContext, len(geoms))
	e.refPools = make([]*refctx.Pool, len(geoms))
	e.colocated = make([]*mv.Bank, len(geoms))
	for i, g := range geoms {
		blockSize := blockSizeForLayer(i, len(geoms))
		e.layers[i] = layerctx.New(g, i, i == 0, blockSize, e.params.MaxActiveRefs, e.params.NumResultsPerRef, 0, 0)
		e.refPools[i] = refctx.NewPool(e.params.MaxActiveRefs, g.Width, g.Height, pad)
	}
	e.params.Width, e.params.Height = width, height
	logrus.Infof("[hme] set_resolution: %dx%d, %d layers", width, height, len(geoms))
	return nil
}

// AddInput hands a picture's raw layer-0 plane to the encoder, builds the
// downsampled pyramid for every coarser layer, and keeps the result keyed
// by POC until DiscardFrame releases it.
func (e *Encoder) AddInput(desc InputDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	finest := e.geometries[0]
	if desc.Width != finest.Width || desc.Height != finest.Height {
		return fmt.Errorf("%w: input %dx%d does not match layer-0 geometry %dx%d",
			ErrInvalidPyramid, desc.Width, desc.Height, finest.Width, finest.Height)
	}

	pad := e.params.Pad
	if pad < 16 {
		pad = 16
	}
	l0Plane := plane.New(finest.Width, finest.Height, pad)
	for y := 0; y < desc.Height; y++ {
		srcOff := y * desc.Stride
		copy(l0Plane.Row(y), desc.Data[srcOff:srcOff+desc.Width])
	}
	l0Plane.ExtendBorders()

	planes := make([]*plane.Plane, len(e.geometries))
	planes[0] = l0Plane
	for i := 1; i < len(e.geometries); i++ {
		planes[i] = pyramid.Downsample(planes[i-1], e.geometries[i], pad)
	}

	e.pictures[desc.POC] = &pictureEntry{poc: desc.POC, planes: planes}
	logrus.Debugf("[hme] add_input: poc=%d", desc.POC)
	return nil
}

// ProcessFrameInit binds the active reference list named by refMap to
// every layer's context, claiming a descriptor per layer from each
// reference's added input. Returns ErrInvalidReferenceMap if any entry
// names a POC that was never added, and ErrResourceExhausted if a layer's
// reference pool is already fully claimed.
func (e *Encoder) ProcessFrameInit(ctx context.Context, refMap []ReferenceMapEntry, fp FrameParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, lc := range e.layers {
		lc.Refs = nil
	}

	for refIdx, entry := range refMap {
		pic, ok := e.pictures[entry.POC]
		if !ok {
			return fmt.Errorf("%w: poc %d not found among added inputs", ErrInvalidReferenceMap, entry.POC)
		}
		if _, already := e.refs[entry.POC]; already {
			return fmt.Errorf("%w: poc %d already claimed as a reference", ErrInvalidReferenceMap, entry.POC)
		}
		if len(e.refs) >= e.params.MaxActiveRefs {
			return fmt.Errorf("%w: poc %d: all %d reference slots already claimed", ErrResourceExhausted, entry.POC, e.params.MaxActiveRefs)
		}

		re := &refEntry{poc: entry.POC, perLayer: make([]*refctx.Descriptor, len(e.layers))}
		wpWeight, wpOffset := entry.WPWeight, entry.WPOffset
		if wpWeight < 0 {
			return fmt.Errorf("%w: poc %d: weighted-prediction weight must be positive, got %d",
				ErrInvalidReferenceMap, entry.POC, wpWeight)
		}
		if wpWeight == 0 {
			// Zero-value means the caller is not using weighted prediction.
			wpWeight = 256
		}
		for i, lc := range e.layers {
			desc, err := e.refPools[i].Claim(ctx, entry.POC, entry.IsPast, wpWeight, wpOffset)
			if err != nil {
				e.releaseClaimedSoFar(re)
				return fmt.Errorf("%w: layer %d: %v", ErrResourceExhausted, i, err)
			}
			desc.Source = pic.planes[i]
			desc.RefIDLC = entry.RefIDLC
			desc.RefIDL0 = entry.RefIDL0
			desc.RefIDL1 = entry.RefIDL1
			if i == 0 {
				// Subpel refinement at the encode layer reads pre-computed
				// half-pel planes; coarser layers never search below fullpel.
				desc.FillHalfPel()
			}
			re.perLayer[i] = desc
			lc.AddRef(int16(refIdx), desc)
		}
		e.refs[entry.POC] = re
	}

	// Each layer's supported MV range shrinks with its resolution: the
	// caller-supplied range is expressed at the finest layer and scaled
	// down by the layer's width ratio, floored so even the coarsest layer
	// keeps a usable window.
	for i, lc := range e.layers {
		ratio := layerRatioQ8(e.geometries[i], e.geometries[0])
		lc.RangeX = scaleRange(fp.MVRangeX, ratio)
		lc.RangeY = scaleRange(fp.MVRangeY, ratio)
	}
	logrus.Debugf("[hme] process_frame_init: %d active references", len(refMap))
	return nil
}

// scaleRange scales a quarter-pel MV range by a Q8 layer ratio, keeping a
// floor of 16 (4 fullpel) so no layer's window degenerates.
func scaleRange(r int32, ratioQ8 int32) int32 {
	s := r * ratioQ8 / 256
	if s < 16 {
		s = 16
	}
	return s
}

func (e *Encoder) releaseClaimedSoFar(re *refEntry) {
	for i, d := range re.perLayer {
		if d != nil {
			e.refPools[i].Release(d)
		}
	}
}

// ProcessFrame runs the full coarse-to-fine search for the picture added
// under poc, using whatever active references ProcessFrameInit last bound,
// and returns one CTBResult per coding-tree block in raster order.
// workers bounds how many goroutines the internal job queue drives
// concurrently; 0 falls back to the Workers value given to Init.
// correlationID is logged at every lifecycle boundary for cross-thread
// tracing and otherwise plays no role in the search itself.
func (e *Encoder) ProcessFrame(ctx context.Context, poc int32, fp FrameParams, workers int) ([]CTBResult, error) {
	e.mu.Lock()
	if workers < 1 {
		workers = e.params.Workers
	}
	pic, ok := e.pictures[poc]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: poc %d not found among added inputs", ErrInvalidReferenceMap, poc)
	}
	params, err := e.presetTable.Get(fp.Preset)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrInvalidReferenceMap, err)
	}
	layerPlans := e.buildLayerPlansLocked(pic, fp, params)
	e.mu.Unlock()

	correlationID := uuid.New().String()
	logrus.Infof("[hme] process_frame start: poc=%d corr=%s", poc, correlationID)

	pipe := pipeline.New(layerPlans)
	if err := pipe.RunPicture(ctx, workers); err != nil {
		logrus.Warnf("[hme] process_frame cancelled: poc=%d corr=%s err=%v", poc, correlationID, err)
		if errors.Is(err, arena.ErrExhausted) {
			return nil, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	e.mu.Lock()
	for i, lc := range e.layers {
		e.colocated[i] = lc.Bank.Clone()
	}
	e.mu.Unlock()

	results := collectResults(pipe)
	logrus.Infof("[hme] process_frame done: poc=%d corr=%s ctbs=%d", poc, correlationID, len(results))
	return results, nil
}

func (e *Encoder) buildLayerPlansLocked(pic *pictureEntry, fp FrameParams, params preset.Params) []pipeline.LayerPlan {
	refineGrid := map[preset.GridKind]refine.GridKind{
		preset.Grid9x9:    refine.Grid9x9,
		preset.Diamond5:   refine.Diamond5,
		preset.Rectangle9: refine.Rectangle9,
	}[params.RefineGrid]

	n := len(e.layers)
	plans := make([]pipeline.LayerPlan, n)
	// Assemble coarsest-first for the pipeline even though e.layers/e.geometries
	// are indexed finest-first (geometries-array index 0 = layer 0 = encode layer).
	for pi := 0; pi < n; pi++ {
		gi := n - 1 - pi // geometries-array index for this pipeline position
		lc := e.layers[gi]

		var parent *layerctx.LayerContext
		var parentGeom pyramid.Geometry
		if gi+1 < n {
			parent = e.layers[gi+1]
			parentGeom = e.geometries[gi+1]
		}

		plan := pipeline.LayerPlan{
			LC:        lc,
			Parent:    parent,
			Colocated: e.colocated[gi],
			Cur:       pic.planes[gi],
		}
		if parent != nil {
			plan.RatioQ8 = layerRatioQ8(e.geometries[gi], parentGeom)
		}

		switch {
		case gi == n-1:
			plan.Kind = pipeline.Coarse
			plan.CoarseParams = coarse.Params{
				Step:             params.CoarseStep,
				Lambda:           fp.Lambda,
				LambdaQShift:     fp.LambdaQShift,
				NumResultsPerRef: e.params.NumResultsPerRef,
				CurrPOC:          pic.poc,
				RangeX:           lc.RangeX,
				RangeY:           lc.RangeY,
			}
		case gi == 0:
			plan.Kind = pipeline.L0
			for ri := range lc.Refs {
				slot := &lc.Refs[ri]
				slot.WeightedInput = nil
				if fp.WeightedPred && !slot.Desc.HasIdentityWeight() {
					slot.WeightedInput = refctx.InverseWeightPlane(pic.planes[0], slot.Desc)
				}
			}
			plan.L0Params = l0.Params{
				Fpel: l0.FpelRefineParams{
					MaxRefineCenters:   params.FpelRefineCentres,
					RefBits:            1,
					Lambda:             fp.Lambda,
					LambdaQShift:       fp.LambdaQShift,
					ActivePartsLimited: params.ActivePartsLimited,
				},
				Subpel: l0.SubpelRefineParams{
					UseSATD:      params.SATDSubpel,
					RefBits:      1,
					Lambda:       fp.Lambda,
					LambdaQShift: fp.LambdaQShift,
				},
				Merge: l0.MergeParams{
					MaxMergeCandidates: params.MergeCands,
					UseSATD:            params.SATDSubpel,
					NoiseAware:         fp.NoiseAware,
				},
				BiPred:             l0.BiPredParams{UseSATD: params.SATDSubpel},
				BidirEnabled:       fp.BidirEnabled,
				TopK:               int(mv.NumPartIDs),
				SubpelCandsPerPart: params.SubpelCandPerPart,
				ActivePartsLimited: params.ActivePartsLimited,
			}
		default:
			plan.Kind = pipeline.Refine
			plan.RefineParams = refine.Params{
				Grid:             refineGrid,
				MaxIterations:    params.RefineMaxIterations,
				Lambda:           fp.Lambda,
				LambdaQShift:     fp.LambdaQShift,
				NumResultsPerRef: e.params.NumResultsPerRef,
				BlockSize:        int(lc.Bank.Size),
			}
		}
		plans[pi] = plan
	}
	return plans
}

func collectResults(pipe *pipeline.Pipeline) []CTBResult {
	grid := pipe.FinestCTBs()
	var out []CTBResult
	for _, row := range grid {
		for _, c := range row {
			r := CTBResult{X: c.X, Y: c.Y}
			for _, pu := range c.Output {
				r.PUs = append(r.PUs, PUOutput{
					X: pu.X, Y: pu.Y, Width: pu.Width, Height: pu.Height,
					MVL0: pu.MVL0, RefL0: pu.RefIdxL0,
					MVL1: pu.MVL1, RefL1: pu.RefIdxL1,
					PredDir:   pu.Dir,
					MergeFlag: pu.IsMerge,
					MergeIdx:  pu.MergeIndex,
					TotalCost: pu.TotalCost,
				})
			}
			out = append(out, r)
		}
	}
	return out
}

// DiscardFrame releases the per-layer reference descriptors and added-input
// planes for every POC in pocList, returning their pool slots for reuse.
func (e *Encoder) DiscardFrame(pocList []int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, poc := range pocList {
		e.releaseRefLocked(poc)
		delete(e.pictures, poc)
	}
	logrus.Debugf("[hme] discard_frame: %d pictures released", len(pocList))
}

func (e *Encoder) releaseRefLocked(poc int32) {
	re, ok := e.refs[poc]
	if !ok {
		return
	}
	for i, d := range re.perLayer {
		if d != nil {
			e.refPools[i].Release(d)
		}
	}
	delete(e.refs, poc)
}
