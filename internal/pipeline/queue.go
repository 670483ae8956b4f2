// Package pipeline drives a whole picture's layer pyramid through a bounded
// worker pool, sequencing coarse, refine, and L0 row-wavefronts by their
// cross-layer and intra-layer dependencies rather than by a fixed schedule.
// Workers pull rows from a shared job queue, and the only place a
// goroutine waits on another's progress is the dependency manager's
// row-row check; the queue's GetNextJob only takes a short mutex.
package pipeline

import "sync"

// Job identifies one unit of wavefront work: a single row (block-row for
// coarse/refine layers, CTB-row for the L0 layer) within one layer of the
// pyramid.
type Job struct {
	LayerIdx int
	Row      int
}

// JobQueue is the shared FIFO work list every pool worker pulls from.
// GetNextJob never actually blocks (an empty queue just reports no more
// work), since the real blocking for unsatisfied dependencies happens
// inside the per-row handler's depmgr.RowRow.Check calls instead.
type JobQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewJobQueue builds a queue preloaded with jobs, in the order workers
// should prefer to drain them (coarsest layer first, ascending row).
func NewJobQueue(jobs []Job) *JobQueue {
	q := &JobQueue{jobs: make([]Job, len(jobs))}
	copy(q.jobs, jobs)
	return q
}

// GetNextJob pops the head of the queue, reporting false once it is empty.
func (q *JobQueue) GetNextJob() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

// Remaining reports how many jobs are still queued, for diagnostics.
func (q *JobQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
