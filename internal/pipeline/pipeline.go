package pipeline

import (
	"context"
	"fmt"

	"github.com/hme-project/hme/internal/arena"
	"github.com/hme-project/hme/internal/coarse"
	"github.com/hme-project/hme/internal/l0"
	"github.com/hme-project/hme/internal/layerctx"
	"github.com/hme-project/hme/internal/mv"
	"github.com/hme-project/hme/internal/plane"
	"github.com/hme-project/hme/internal/refine"
	"golang.org/x/sync/errgroup"
)

// Kind distinguishes the three search algorithms a pyramid layer may run:
// the coarsest layer always runs Coarse, the finest (encoded) layer always
// runs L0, and every layer between runs Refine.
type Kind int

const (
	Coarse Kind = iota
	Refine
	L0
)

// LayerPlan bundles one pyramid layer's context with the parameters its
// search pass needs and the layer it depends on. Layers are assembled
// coarsest-first; Parent is nil only for the coarsest layer.
type LayerPlan struct {
	Kind      Kind
	LC        *layerctx.LayerContext
	Parent    *layerctx.LayerContext
	Colocated *mv.Bank // same layer's previous-picture bank, nil if unavailable
	Cur       *plane.Plane
	RatioQ8   int32 // parent-to-this-layer scale, Q8; unused for Coarse

	CoarseParams coarse.Params
	RefineParams refine.Params
	L0Params     l0.Params

	ctbs [][]*l0.CTB // lazily built per RunPicture call, L0 layers only
}

func (lp *LayerPlan) rowUnit() int {
	if lp.Kind == L0 {
		return 4 // one CTB row covers four 16x16 block rows
	}
	return 1
}

func (lp *LayerPlan) numRowJobs() int {
	gridH := lp.LC.Bank.GridH
	unit := lp.rowUnit()
	return (gridH + unit - 1) / unit
}

// Pipeline drives one picture's full coarse-to-fine search across every
// layer in Layers, ordered coarsest (index 0) to finest (last, the L0
// layer).
type Pipeline struct {
	Layers []LayerPlan
}

// New builds a Pipeline over the given layer plans.
func New(layers []LayerPlan) *Pipeline {
	return &Pipeline{Layers: layers}
}

// ErrNoLayers is returned by RunPicture when the pipeline has no layers
// configured.
var ErrNoLayers = fmt.Errorf("hme/pipeline: no layers configured")

// RunPicture resets every layer for a new picture and drives the full
// pyramid search with `workers` concurrent goroutines pulling rows from a
// shared job queue. A row's handler blocks on depmgr.RowRow.Check for
// whatever rows it depends on (the previous row in its own layer, and the
// corresponding row(s) of its parent layer) before doing any work, so
// workers naturally stall behind real data dependencies rather than a
// fixed per-layer barrier. ctx cancellation (or the first worker error)
// unblocks every waiting worker by cancelling their checks' context.
func (p *Pipeline) RunPicture(ctx context.Context, workers int) error {
	if len(p.Layers) == 0 {
		return ErrNoLayers
	}
	if workers < 1 {
		workers = 1
	}
	for i := range p.Layers {
		p.Layers[i].LC.ResetForPicture()
		if p.Layers[i].Kind == L0 {
			p.Layers[i].ctbs = buildCTBGrid(&p.Layers[i])
		}
	}

	q := NewJobQueue(p.buildJobs())
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			// Each worker owns a scratch arena; the L0 stage resets and
			// re-reserves it per CTB, so exhaustion surfaces as a per-job
			// error that cancels the picture rather than growing unbounded.
			scratch := arena.New(workerScratchBudget)
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				job, ok := q.GetNextJob()
				if !ok {
					return nil
				}
				if err := p.runJob(gctx, job, scratch); err != nil {
					return fmt.Errorf("hme/pipeline: layer %d row %d: %w", job.LayerIdx, job.Row, err)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Global-MV lobes fold once per picture, after every row of every layer
	// has finished feeding its histogram; the search stages only ever read
	// the previous picture's lobes, so deferring the fold costs nothing.
	for i := range p.Layers {
		p.Layers[i].LC.FinalizeGlobalMV()
	}
	return nil
}

// workerScratchBudget bounds one worker thread's scratch footprint. Sized
// for a full CTB row of interpolation/prediction buffers with generous
// headroom; a real exhaustion here indicates a leak, not genuine demand.
const workerScratchBudget = 1 << 20

func (p *Pipeline) buildJobs() []Job {
	var jobs []Job
	for li := range p.Layers {
		n := p.Layers[li].numRowJobs()
		for r := 0; r < n; r++ {
			jobs = append(jobs, Job{LayerIdx: li, Row: r})
		}
	}
	return jobs
}

func (p *Pipeline) runJob(ctx context.Context, job Job, scratch *arena.Arena) error {
	lp := &p.Layers[job.LayerIdx]
	switch lp.Kind {
	case Coarse:
		return p.runCoarseRow(ctx, lp, job.Row)
	case Refine:
		return p.runRefineRow(ctx, lp, job.Row)
	case L0:
		return p.runL0Row(ctx, lp, job.Row, scratch)
	default:
		return fmt.Errorf("hme/pipeline: unknown layer kind %d", lp.Kind)
	}
}

func (p *Pipeline) runCoarseRow(ctx context.Context, lp *LayerPlan, by int) error {
	gridW := lp.LC.Bank.GridW
	// Row by reads row by-1's published results as MV-cost predictors and
	// receives row by-1's shared 4x8 winners into its own cells, so it may
	// not start until the row above is complete.
	if by > 0 {
		if err := checkRow(ctx, lp.LC.RowSync, by-1, gridW); err != nil {
			return err
		}
	}
	for _, slot := range lp.LC.Refs {
		refBits := coarse.RefBits(slot.RefIdx, lp.CoarseParams)
		coarse.SearchRow(lp.LC, lp.Cur, slot.Desc, slot.RefIdx, slot.Hist, by, gridW, refBits, lp.CoarseParams)
	}
	lp.LC.RowSync.Set(by, gridW)
	return nil
}

func (p *Pipeline) runRefineRow(ctx context.Context, lp *LayerPlan, by int) error {
	if by > 0 {
		if err := checkRow(ctx, lp.LC.RowSync, by-1, lp.LC.Bank.GridW); err != nil {
			return err
		}
	}
	if lp.Parent != nil {
		parentRow := scaleRow(by, lp.LC.Bank.GridH, lp.Parent.Bank.GridH)
		if err := checkRow(ctx, lp.Parent.RowSync, parentRow, lp.Parent.Bank.GridW); err != nil {
			return err
		}
	}
	gridW := lp.LC.Bank.GridW
	for _, slot := range lp.LC.Refs {
		refBits := refine.RefBits(slot.RefIdx, lp.RefineParams)
		refine.SearchRow(lp.LC, lp.Parent, lp.Colocated, lp.Cur, slot.Desc.Source, slot.RefIdx, slot.Hist, lp.RatioQ8, by, gridW, refBits, lp.RefineParams)
	}
	lp.LC.RowSync.Set(by, gridW)
	return nil
}

func (p *Pipeline) runL0Row(ctx context.Context, lp *LayerPlan, ctbRow int, scratch *arena.Arena) error {
	firstBlockRow := ctbRow * 4
	if firstBlockRow > 0 {
		if err := checkRow(ctx, lp.LC.RowSync, firstBlockRow-1, lp.LC.Bank.GridW); err != nil {
			return err
		}
	}
	if lp.Parent != nil {
		// Candidate projection reads a one-cell ring around every parent
		// position this CTB row maps onto, so wait for the parent row that
		// covers the CTB row's last block row plus that ring.
		lastBlockRow := firstBlockRow + 3
		if lastBlockRow >= lp.LC.Bank.GridH {
			lastBlockRow = lp.LC.Bank.GridH - 1
		}
		parentRow := scaleRow(lastBlockRow, lp.LC.Bank.GridH, lp.Parent.Bank.GridH) + 1
		if parentRow >= lp.Parent.Bank.GridH {
			parentRow = lp.Parent.Bank.GridH - 1
		}
		if err := checkRow(ctx, lp.Parent.RowSync, parentRow, lp.Parent.Bank.GridW); err != nil {
			return err
		}
	}
	ctbGridW := len(lp.ctbs[ctbRow])

	if len(lp.LC.Refs) == 0 {
		// No references to search against: every CTB degenerates to an
		// all-zero skip, but still walks its full lifecycle so downstream
		// consumers observe a normally completed picture.
		for cx := 0; cx < ctbGridW; cx++ {
			if err := l0.ProcessCTBSkip(lp.ctbs[ctbRow][cx]); err != nil {
				return err
			}
		}
		return p.publishL0Row(lp, firstBlockRow)
	}

	primary := lp.LC.Refs[0]
	var secondary *layerctx.RefSlot
	if lp.L0Params.BidirEnabled && len(lp.LC.Refs) > 1 {
		secondary = &lp.LC.Refs[1]
	}

	params := lp.L0Params
	params.RatioQ8 = lp.RatioQ8
	params.Scratch = scratch

	for cx := 0; cx < ctbGridW; cx++ {
		c := lp.ctbs[ctbRow][cx]
		bx0, by0 := c.X/16, c.Y/16
		colocMV, haveColoc := colocatedMV(lp.Colocated, bx0, by0, primary.RefIdx)

		var l1 *l0.L1Ref
		if secondary != nil {
			l1MV, l1Have := colocatedMV(lp.Colocated, bx0, by0, secondary.RefIdx)
			l1 = &l0.L1Ref{RefIdx: secondary.RefIdx, Colocated: l1MV, HaveColocated: l1Have}
		}

		if err := l0.ProcessCTB(c, lp.LC, lp.Parent, lp.Cur, primary.RefIdx, colocMV, haveColoc, l1, params); err != nil {
			return err
		}
	}

	return p.publishL0Row(lp, firstBlockRow)
}

// publishL0Row marks every 16x16 block row covered by one CTB row as fully
// published.
func (p *Pipeline) publishL0Row(lp *LayerPlan, firstBlockRow int) error {
	lastBlockRow := firstBlockRow + 3
	if lastBlockRow >= lp.LC.Bank.GridH {
		lastBlockRow = lp.LC.Bank.GridH - 1
	}
	for r := firstBlockRow; r <= lastBlockRow; r++ {
		lp.LC.RowSync.Set(r, lp.LC.Bank.GridW)
	}
	return nil
}

// checkRow blocks until row `row` of sync has published through `gridW`
// columns, or ctx is cancelled. The depmgr primitive itself has no
// context awareness, so cancellation is observed by racing the blocking
// call against ctx.Done in a helper goroutine; the contract only requires
// that a cancelled job not leave a CTB partially written, not that the
// wait itself abort instantly.
func checkRow(ctx context.Context, sync interface {
	Check(row, offset, col int)
	TryCheck(row, offset, col int) bool
}, row, gridW int) error {
	if sync.TryCheck(row, 0, gridW) {
		return nil
	}
	done := make(chan struct{})
	go func() {
		sync.Check(row, 0, gridW)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// colocatedMV looks up the best same-picture-layer, previous-picture
// candidate for refIdx at grid position (bx, by), the temporal seed every
// reference direction's candidate build needs.
func colocatedMV(colocated *mv.Bank, bx, by int, refIdx int16) (mv.MV, bool) {
	if colocated == nil || !colocated.InBounds(bx, by) {
		return mv.MV{}, false
	}
	if n, ok := colocated.At(bx, by).Best(refIdx); ok {
		return n.MV, true
	}
	return mv.MV{}, false
}

func scaleRow(childRow, childGridH, parentGridH int) int {
	if childGridH == 0 {
		return 0
	}
	r := childRow * parentGridH / childGridH
	if r >= parentGridH {
		r = parentGridH - 1
	}
	return r
}

// FinestCTBs returns the CTB grid of the last (finest, L0) layer after a
// completed RunPicture call, for converting partition-decision output into
// the caller's per-picture result record.
func (p *Pipeline) FinestCTBs() [][]*l0.CTB {
	if len(p.Layers) == 0 {
		return nil
	}
	return p.Layers[len(p.Layers)-1].ctbs
}

func buildCTBGrid(lp *LayerPlan) [][]*l0.CTB {
	gridW, gridH := lp.LC.Bank.GridW, lp.LC.Bank.GridH
	ctbGridW := (gridW + 3) / 4
	ctbGridH := (gridH + 3) / 4
	grid := make([][]*l0.CTB, ctbGridH)
	for cy := 0; cy < ctbGridH; cy++ {
		row := make([]*l0.CTB, ctbGridW)
		for cx := 0; cx < ctbGridW; cx++ {
			row[cx] = l0.NewCTB(cx*64, cy*64)
		}
		grid[cy] = row
	}
	return grid
}
