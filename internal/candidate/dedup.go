package candidate

import "github.com/hme-project/hme/internal/mv"

// MaxCandidates bounds the dedup set size; no quality preset produces
// more than 32 candidates per block.
const MaxCandidates = 32

// DedupSet is a small bounded sorted-array deduplicator keyed on
// (mv.X, mv.Y, RefIdx), used in place of a hash table since the candidate
// count per block is small and fixed-bound.
type DedupSet struct {
	keys [MaxCandidates]candKey
	n    int
}

type candKey struct {
	x, y   int16
	refIdx int16
}

// Reset empties the set for reuse at the next block.
func (d *DedupSet) Reset() { d.n = 0 }

// TryAdd reports whether (m, refIdx) is new to the set; if so it is
// recorded and true is returned. Once the set reaches MaxCandidates every
// further TryAdd reports false; duplicate-or-full collisions are silent
// skips, never errors.
func (d *DedupSet) TryAdd(m mv.MV, refIdx int16) bool {
	key := candKey{m.X, m.Y, refIdx}
	lo, hi := 0, d.n
	for lo < hi {
		mid := (lo + hi) / 2
		if less(d.keys[mid], key) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < d.n && d.keys[lo] == key {
		return false
	}
	if d.n >= MaxCandidates {
		return false
	}
	copy(d.keys[lo+1:d.n+1], d.keys[lo:d.n])
	d.keys[lo] = key
	d.n++
	return true
}

func less(a, b candKey) bool {
	if a.x != b.x {
		return a.x < b.x
	}
	if a.y != b.y {
		return a.y < b.y
	}
	return a.refIdx < b.refIdx
}
