package storage

import "testing"

func TestLRUKReplacerFewerThanKAccessesAreEvictedFirst(t *testing.T) {
	r := NewLRUKReplacer(2)

	// Frame 1 accessed once; frame 2 accessed twice. Both evictable.
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	frame, ok := r.Evict()
	if !ok || frame != 1 {
		t.Fatalf("Evict() = (%d, %v), want (1, true): frame with <k accesses has infinite backward distance", frame, ok)
	}
}

func TestLRUKReplacerTieBreaksByEarliestFirstAccess(t *testing.T) {
	r := NewLRUKReplacer(2)

	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	frame, ok := r.Evict()
	if !ok || frame != 1 {
		t.Fatalf("Evict() = (%d, %v), want (1, true): both have <k accesses, earliest first access wins", frame, ok)
	}
}

func TestLRUKReplacerGreatestBackwardDistanceWins(t *testing.T) {
	r := NewLRUKReplacer(2)

	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	frame, ok := r.Evict()
	if !ok || frame != 1 {
		t.Fatalf("Evict() = (%d, %v), want (1, true): frame 1's 2nd-most-recent access is further in the past", frame, ok)
	}
}

func TestLRUKReplacerNonEvictableFrameIsNeverChosen(t *testing.T) {
	r := NewLRUKReplacer(1)

	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, false)
	r.SetEvictable(2, true)

	frame, ok := r.Evict()
	if !ok || frame != 2 {
		t.Fatalf("Evict() = (%d, %v), want (2, true)", frame, ok)
	}
}

func TestLRUKReplacerEvictReturnsFalseWhenNothingEvictable(t *testing.T) {
	r := NewLRUKReplacer(2)
	if _, ok := r.Evict(); ok {
		t.Fatal("Evict() on an empty replacer should report ok=false")
	}

	r.RecordAccess(1, AccessUnknown)
	if _, ok := r.Evict(); ok {
		t.Fatal("Evict() with only non-evictable frames should report ok=false")
	}
}

func TestLRUKReplacerRemove(t *testing.T) {
	r := NewLRUKReplacer(2)
	r.RecordAccess(1, AccessUnknown)

	if ok := r.Remove(1); ok {
		t.Fatal("Remove() on a recorded-but-not-evictable frame should report false")
	}
	r.SetEvictable(1, true)
	if ok := r.Remove(1); !ok {
		t.Fatal("Remove() on an evictable frame should report true")
	}
	if ok := r.Remove(1); !ok {
		t.Fatal("Remove() on an unrecorded frame should be a no-op reporting true")
	}
}

func TestLRUKReplacerSize(t *testing.T) {
	r := NewLRUKReplacer(2)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, true)

	if got := r.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1", got)
	}
}

func TestLRUKReplacerClassicLRUAtKEqualsOne(t *testing.T) {
	r := NewLRUKReplacer(1)

	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.RecordAccess(3, AccessUnknown)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	// At k=1, backward distance is always well-defined; the replacer must
	// degenerate to classic LRU and pick the least recently used frame.
	frame, ok := r.Evict()
	if !ok || frame != 1 {
		t.Fatalf("Evict() = (%d, %v), want (1, true)", frame, ok)
	}
	frame, ok = r.Evict()
	if !ok || frame != 2 {
		t.Fatalf("Evict() = (%d, %v), want (2, true)", frame, ok)
	}
}
