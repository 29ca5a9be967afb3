package storage

import (
	"container/list"
	"math"
	"sync"
)

// LRUKReplacer tracks per-frame access histories and selects an
// evictable frame whose k-th-most-recent access is farthest in the past
// (SPEC_FULL.md §4.3). Recency bookkeeping is a container/list deque per
// frame, the same structure the teacher's pkg/cache.LRUCache and
// pkg/concurrent.ShardedLRUCache use for their own recency ordering.
type LRUKReplacer struct {
	mu        sync.Mutex
	k         int
	clock     uint64
	records   map[FrameID]*frameRecord
	evictable int
}

type frameRecord struct {
	history   *list.List // back = most recent; bounded to k entries
	evictable bool
	class     AccessClass
}

// NewLRUKReplacer returns a replacer that remembers the last k accesses
// per frame.
func NewLRUKReplacer(k int) *LRUKReplacer {
	if k < 1 {
		k = 1
	}
	return &LRUKReplacer{
		k:       k,
		records: make(map[FrameID]*frameRecord),
	}
}

// RecordAccess logs an access to frame at the current logical timestamp,
// creating its record on first sight.
func (r *LRUKReplacer) RecordAccess(frame FrameID, class AccessClass) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[frame]
	if !ok {
		rec = &frameRecord{history: list.New()}
		r.records[frame] = rec
	}
	rec.class = class

	r.clock++
	rec.history.PushBack(r.clock)
	if rec.history.Len() > r.k {
		rec.history.Remove(rec.history.Front())
	}
}

// SetEvictable marks frame as evictable or not, updating the evictable
// count. It is a no-op if frame has no record.
func (r *LRUKReplacer) SetEvictable(frame FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[frame]
	if !ok || rec.evictable == evictable {
		return
	}
	rec.evictable = evictable
	if evictable {
		r.evictable++
	} else {
		r.evictable--
	}
}

// Remove erases frame's record. It reports false (and leaves the record
// untouched) if frame is recorded but not evictable; removing an
// unrecorded frame is a silent no-op.
func (r *LRUKReplacer) Remove(frame FrameID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[frame]
	if !ok {
		return true
	}
	if !rec.evictable {
		return false
	}
	delete(r.records, frame)
	r.evictable--
	return true
}

// Evict returns the evictable frame with the greatest backward
// k-distance (current timestamp minus its k-th-most-recent access,
// +infinity if fewer than k accesses have been recorded), breaking ties
// among infinite-distance frames by earliest first access. It reports
// ok=false if no frame is evictable.
func (r *LRUKReplacer) Evict() (frame FrameID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestFrame    FrameID
		bestDistance int64 = -1
		bestFirstTs  uint64
		found        bool
	)

	for f, rec := range r.records {
		if !rec.evictable {
			continue
		}

		distance := int64(math.MaxInt64)
		if rec.history.Len() >= r.k {
			kth := rec.history.Front().Value.(uint64)
			distance = int64(r.clock - kth)
		}
		firstTs := rec.history.Front().Value.(uint64)

		better := !found
		if !better {
			if distance > bestDistance {
				better = true
			} else if distance == bestDistance && distance == int64(math.MaxInt64) && firstTs < bestFirstTs {
				better = true
			}
		}
		if better {
			bestFrame, bestDistance, bestFirstTs, found = f, distance, firstTs, true
		}
	}

	if !found {
		return InvalidFrameID, false
	}
	delete(r.records, bestFrame)
	r.evictable--
	return bestFrame, true
}

// Size returns the number of currently evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictable
}
