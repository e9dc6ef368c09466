package gbt

import (
	"container/heap"
	"sort"
)

// lessPriority reports whether a has strictly lower selection priority
// than b: ascending by score, and on a tied score, whichever has the
// HIGHER order or (on a further tie) the HIGHER uid is considered
// "less" — i.e. the lower order/uid wins ties. This mirrors
// partial_cmp_uid_score from the original, which sorts ascending by
// score and descending by order/uid on ties.
func lessPriority(a, b *auditTransaction) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.order != b.order {
		return a.order > b.order
	}
	return a.uid > b.uid
}

// txStack is the initial work list: every transaction in the run,
// sorted once so that repeated Pop calls hand back the highest
// remaining priority item. Entries are discarded when consumed or found
// stale (the transaction moved to the modified queue or was already
// used); the only growth is push, which returns overflowed uids at a
// block boundary.
type txStack struct {
	ids  []uint32
	pool *auditPool
}

// newTxStack builds the stack over ids, sorted ascending by
// lessPriority so the end of the slice holds the next pick.
func newTxStack(pool *auditPool, ids []uint32) *txStack {
	s := &txStack{ids: ids, pool: pool}
	sortByPriorityAscending(s.ids, pool)
	return s
}

func sortByPriorityAscending(ids []uint32, pool *auditPool) {
	sort.Slice(ids, func(i, j int) bool {
		return lessPriority(pool.get(ids[i]), pool.get(ids[j]))
	})
}

// peek discards any stale entries (already used, or promoted to the
// modified queue) from the top of the stack and returns the next
// valid candidate without removing it. Returns nil once exhausted.
func (s *txStack) peek() *auditTransaction {
	for len(s.ids) > 0 {
		top := s.ids[len(s.ids)-1]
		at := s.pool.get(top)
		if at != nil && !at.used && !at.modified {
			return at
		}
		s.ids = s.ids[:len(s.ids)-1]
	}
	return nil
}

// pop removes the top entry, which must have just been returned by peek.
func (s *txStack) pop() {
	s.ids = s.ids[:len(s.ids)-1]
}

func (s *txStack) empty() bool { return len(s.ids) == 0 }

// push returns a uid to the stack (used when an overflowed package
// wasn't promoted to the modified queue), preserving sort order.
func (s *txStack) push(uid uint32) {
	s.ids = append(s.ids, uid)
	sortByPriorityAscending(s.ids, s.pool)
}

// modifiedHeap is a container/heap max-heap over uids whose priority
// is read live from the pool on every comparison. Re-pushing a uid
// after its score changes is therefore always safe: stale duplicate
// entries simply lose every comparison to the live one and are
// discarded the first time they reach the top of the heap (see
// modifiedQueue.peek), which is the sanctioned emulation of a
// decrease/increase-key operation without an indexed heap.
type modifiedHeap struct {
	ids  []uint32
	pool *auditPool
}

func (h modifiedHeap) Len() int { return len(h.ids) }

func (h modifiedHeap) Less(i, j int) bool {
	ai, aj := h.pool.get(h.ids[i]), h.pool.get(h.ids[j])
	if ai == nil {
		return false
	}
	if aj == nil {
		return true
	}
	return lessPriority(aj, ai)
}

func (h modifiedHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *modifiedHeap) Push(x any) { h.ids = append(h.ids, x.(uint32)) }

func (h *modifiedHeap) Pop() any {
	old := h.ids
	n := len(old)
	item := old[n-1]
	h.ids = old[:n-1]
	return item
}

// modifiedQueue wraps modifiedHeap with the same peek/pop/push surface
// as txStack, so the scheduler's main loop treats both sources
// uniformly.
type modifiedQueue struct {
	h modifiedHeap
}

func newModifiedQueue(pool *auditPool, capacity int) *modifiedQueue {
	return &modifiedQueue{h: modifiedHeap{ids: make([]uint32, 0, capacity), pool: pool}}
}

func (q *modifiedQueue) push(uid uint32) { heap.Push(&q.h, uid) }

// peek discards any uid at the top whose transaction is already used
// (committed or dropped elsewhere) and returns the next valid
// candidate without removing it.
func (q *modifiedQueue) peek() *auditTransaction {
	for q.h.Len() > 0 {
		top := q.h.ids[0]
		at := q.h.pool.get(top)
		if at != nil && !at.used {
			return at
		}
		heap.Pop(&q.h)
	}
	return nil
}

func (q *modifiedQueue) pop() { heap.Pop(&q.h) }

func (q *modifiedQueue) empty() bool { return q.h.Len() == 0 }
