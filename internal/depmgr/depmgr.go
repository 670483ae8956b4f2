// Package depmgr implements the dependency manager: the producer/consumer
// synchronization between rows and between layers that lets many worker
// threads advance concurrently across the pyramid without data races. Each
// primitive pairs an atomic fast-path read with a sync.Cond slow path, and
// per-row state is padded to avoid false sharing.
package depmgr

import (
	"sync"
	"sync/atomic"
)

// rowState is padded to a full cache line to prevent false sharing between
// adjacent rows' producer/consumer pairs.
type rowState struct {
	done    atomic.Int32
	waiters atomic.Int32
	mu      sync.Mutex
	cond    *sync.Cond
	_       [40]byte // 24 bytes of fields above + 40 = 64
}

// RowRow couples a producer's (row, column) progress to a consumer that
// blocks until a target column has been published. This is the workhorse
// mode used between adjacent pyramid layers and within a layer's own rows.
type RowRow struct {
	rows []rowState
}

// NewRowRow allocates a row-row manager for numRows producer rows.
func NewRowRow(numRows int) *RowRow {
	m := &RowRow{rows: make([]rowState, numRows)}
	for i := range m.rows {
		m.rows[i].cond = sync.NewCond(&m.rows[i].mu)
	}
	return m
}

// Reset clears all rows' published progress back to zero, for reuse across
// pictures without reallocating.
func (m *RowRow) Reset() {
	for i := range m.rows {
		m.rows[i].done.Store(0)
	}
}

// Set publishes that `row` has completed through column `col` (inclusive),
// waking any blocked Check callers.
func (m *RowRow) Set(row, col int) {
	r := &m.rows[row]
	r.done.Store(int32(col))
	if r.waiters.Load() > 0 {
		r.mu.Lock()
		r.mu.Unlock()
		r.cond.Broadcast()
	}
}

// Check blocks until producer row `row` has advanced far enough that its
// published column, plus the consumer's allowed lag `offset`, covers `col`:
// it returns once published+offset >= col. A producer that has published
// column 5 therefore satisfies Check(row, 2, 3) immediately, while
// Check(row, 2, 8) waits for column 6.
func (m *RowRow) Check(row, offset, col int) {
	target := int32(col - offset)
	r := &m.rows[row]
	if r.done.Load() >= target {
		return
	}
	r.waiters.Add(1)
	r.mu.Lock()
	for r.done.Load() < target {
		r.cond.Wait()
	}
	r.mu.Unlock()
	r.waiters.Add(-1)
}

// TryCheck is the non-blocking poll variant: it reports whether row `row`
// has already published through column col-offset, without waiting.
func (m *RowRow) TryCheck(row, offset, col int) bool {
	return m.rows[row].done.Load() >= int32(col-offset)
}

// RowFrame is the simpler case where the consumer waits for an entire
// producer row to complete rather than a specific column.
type RowFrame struct {
	inner *RowRow
	width int
}

// NewRowFrame allocates a row-frame manager for numRows rows, each of
// `width` columns.
func NewRowFrame(numRows, width int) *RowFrame {
	return &RowFrame{inner: NewRowRow(numRows), width: width}
}

// Reset clears all rows' completion state.
func (m *RowFrame) Reset() { m.inner.Reset() }

// SetRowComplete publishes that `row` is fully done.
func (m *RowFrame) SetRowComplete(row int) { m.inner.Set(row, m.width) }

// WaitRow blocks until `row` is fully done.
func (m *RowFrame) WaitRow(row int) { m.inner.Check(row, 0, m.width) }

// FrameFrame couples one stage of the previous picture to the corresponding
// stage of the current one: consumer waits for the single prior-frame
// completion signal.
type FrameFrame struct {
	mu      sync.Mutex
	cond    *sync.Cond
	done    atomic.Bool
	waiters atomic.Int32
}

// NewFrameFrame allocates a frame-frame manager, initially not done.
func NewFrameFrame() *FrameFrame {
	m := &FrameFrame{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Reset marks the manager not-done, for reuse at the start of a new frame.
func (m *FrameFrame) Reset() { m.done.Store(false) }

// SetDone publishes that the producer's stage for this frame has finished.
func (m *FrameFrame) SetDone() {
	m.done.Store(true)
	if m.waiters.Load() > 0 {
		m.mu.Lock()
		m.mu.Unlock()
		m.cond.Broadcast()
	}
}

// Wait blocks until SetDone has been called for this frame.
func (m *FrameFrame) Wait() {
	if m.done.Load() {
		return
	}
	m.waiters.Add(1)
	m.mu.Lock()
	for !m.done.Load() {
		m.cond.Wait()
	}
	m.mu.Unlock()
	m.waiters.Add(-1)
}

// Map is an arbitrary 2-D grid of states, one rowState per (x, y) cell.
// Used where producer/consumer coupling is neither row-oriented nor
// whole-frame (e.g. CTB-granularity availability maps).
type Map struct {
	w, h int
	rows []rowState
}

// NewMap allocates a w x h state grid.
func NewMap(w, h int) *Map {
	m := &Map{w: w, h: h, rows: make([]rowState, w*h)}
	for i := range m.rows {
		m.rows[i].cond = sync.NewCond(&m.rows[i].mu)
	}
	return m
}

// Reset clears every cell's published state.
func (m *Map) Reset() {
	for i := range m.rows {
		m.rows[i].done.Store(0)
	}
}

func (m *Map) cell(x, y int) *rowState { return &m.rows[y*m.w+x] }

// Set publishes state `v` (v > 0 means "ready") for cell (x, y).
func (m *Map) Set(x, y int, v int32) {
	c := m.cell(x, y)
	c.done.Store(v)
	if c.waiters.Load() > 0 {
		c.mu.Lock()
		c.mu.Unlock()
		c.cond.Broadcast()
	}
}

// Check blocks until cell (x, y) has a published state >= target.
func (m *Map) Check(x, y int, target int32) {
	c := m.cell(x, y)
	if c.done.Load() >= target {
		return
	}
	c.waiters.Add(1)
	c.mu.Lock()
	for c.done.Load() < target {
		c.cond.Wait()
	}
	c.mu.Unlock()
	c.waiters.Add(-1)
}

// TryCheck is the non-blocking poll variant of Check.
func (m *Map) TryCheck(x, y int, target int32) bool {
	return m.cell(x, y).done.Load() >= target
}
