package index

import (
	"fmt"

	"github.com/mnohosten/bustubcore/pkg/storage"
)

// HashTable is a disk-resident extendible hash index over the buffer
// pool, keyed by K with unique-key insert semantics (SPEC_FULL.md §4.5).
// It descends header → directory → bucket with read guards during lookup.
// Insert takes a write guard on the header and Remove a read guard; either
// releases the header guard before taking the directory guard. Mutations
// then hold a write guard on the directory for the whole bucket operation,
// including any split, and an insert that split retries from the
// directory page.
type HashTable[K comparable, V any] struct {
	name string
	bpm  *storage.BufferPoolManager

	cmp    Comparator[K]
	hashFn HashFunc[K]
	serde  EntrySerde[K, V]

	headerMaxDepth    int
	directoryMaxDepth int
	bucketMaxSize     int

	headerPageID storage.PageID
}

// New creates a fresh hash table backed by bpm, allocating its header
// page. headerMaxDepth and directoryMaxDepth are clamped to 9
// (SPEC_FULL.md §4.5's configuration clause); bucketMaxSize of 0 or
// larger than the page can hold is replaced by the page/entry-size
// derived maximum.
func New[K comparable, V any](
	name string,
	bpm *storage.BufferPoolManager,
	cmp Comparator[K],
	hashFn HashFunc[K],
	serde EntrySerde[K, V],
	headerMaxDepth, directoryMaxDepth, bucketMaxSize int,
) (*HashTable[K, V], error) {
	if headerMaxDepth > 9 {
		headerMaxDepth = 9
	}
	if directoryMaxDepth > 9 {
		directoryMaxDepth = 9
	}
	if derived := maxBucketSize(serde); bucketMaxSize <= 0 || bucketMaxSize > derived {
		bucketMaxSize = derived
	}

	headerPID, ok := bpm.NewPage()
	if !ok {
		return nil, fmt.Errorf("index %s: no frame available to allocate header page", name)
	}
	hg := bpm.MustFetchPageWrite(headerPID, storage.AccessIndex)
	initHeaderPage(hg.GetDataMut(), headerMaxDepth)
	hg.Drop()

	return &HashTable[K, V]{
		name:              name,
		bpm:               bpm,
		cmp:               cmp,
		hashFn:            hashFn,
		serde:             serde,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
		headerPageID:      headerPID,
	}, nil
}

// GetHeaderPageID returns the table's header page ID.
func (h *HashTable[K, V]) GetHeaderPageID() storage.PageID { return h.headerPageID }

// Get looks up key, returning every matching value (at most one, since
// Insert enforces unique keys) and whether any was found.
func (h *HashTable[K, V]) Get(key K) ([]V, bool) {
	hash := h.hashFn(key)

	hg := h.bpm.MustFetchPageRead(h.headerPageID, storage.AccessIndex)
	header := loadHeaderPage(hg.GetData())
	dirIdx := header.hashToIndex(hash)
	dirPID := header.directoryPageID(dirIdx)
	hg.Drop()

	if dirPID == storage.InvalidPageID {
		return nil, false
	}

	dg := h.bpm.MustFetchPageRead(dirPID, storage.AccessIndex)
	dir := loadDirectoryPage(dg.GetData())
	bucketIdx := dir.bucketIndex(hash)
	bucketPID := dir.bucketPageID(bucketIdx)
	dg.Drop()

	if bucketPID == storage.InvalidPageID {
		return nil, false
	}

	bg := h.bpm.MustFetchPageRead(bucketPID, storage.AccessIndex)
	defer bg.Drop()
	bucket := loadBucketPage(bg.GetData(), h.serde)

	v, ok := bucket.find(key, h.cmp)
	if !ok {
		return nil, false
	}
	return []V{v}, true
}

// Insert adds (key, value), splitting buckets and growing the directory
// as needed. It returns false if key already exists, or if insertion
// capacity is exhausted (directory at directory_max_depth and its bucket
// still full after every possible split).
func (h *HashTable[K, V]) Insert(key K, val V) bool {
	hash := h.hashFn(key)

	hg := h.bpm.MustFetchPageWrite(h.headerPageID, storage.AccessIndex)
	header := loadHeaderPage(hg.GetData())
	dirIdx := header.hashToIndex(hash)
	dirPID := header.directoryPageID(dirIdx)

	if dirPID == storage.InvalidPageID {
		var ok bool
		dirPID, ok = h.allocateDirectory()
		if !ok {
			hg.Drop()
			return false
		}
		header2 := loadHeaderPage(hg.GetDataMut())
		header2.setDirectoryPageID(dirIdx, dirPID)
	}
	hg.Drop()

	// Bounded by the invariant local_depth ≤ directory_max_depth: at most
	// directory_max_depth+1 splits can ever be needed for one insert.
	maxAttempts := h.directoryMaxDepth + 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		done, ok, retry := h.insertAttempt(dirPID, hash, key, val)
		if done {
			return ok
		}
		if !retry {
			return false
		}
	}
	return false
}

// allocateDirectory creates a directory page with global_depth=0 and a
// single empty bucket, per SPEC_FULL.md §4.5's "if the header-page
// directory slot is INVALID_PAGE_ID" clause.
func (h *HashTable[K, V]) allocateDirectory() (storage.PageID, bool) {
	dirPID, ok := h.bpm.NewPage()
	if !ok {
		return storage.InvalidPageID, false
	}
	bucketPID, ok := h.bpm.NewPage()
	if !ok {
		h.bpm.DeletePage(dirPID)
		return storage.InvalidPageID, false
	}

	bg := h.bpm.MustFetchPageWrite(bucketPID, storage.AccessIndex)
	initBucketPage[K, V](bg.GetDataMut(), h.serde, h.bucketMaxSize)
	bg.Drop()

	dg := h.bpm.MustFetchPageWrite(dirPID, storage.AccessIndex)
	dir := initDirectoryPage(dg.GetDataMut(), h.directoryMaxDepth)
	dir.setBucketPageID(0, bucketPID)
	dir.setLocalDepth(0, 0)
	dg.Drop()

	return dirPID, true
}

// insertAttempt performs one lookup-then-maybe-split pass under a single
// directory write guard. done=true means the caller should return ok;
// done=false with retry=true means the directory changed shape (a split
// happened) and the caller should retry from the top with a fresh
// directory guard; retry=false alongside done=false never occurs in
// practice but is handled defensively as a hard failure.
func (h *HashTable[K, V]) insertAttempt(dirPID storage.PageID, hash uint32, key K, val V) (done, ok, retry bool) {
	dg := h.bpm.MustFetchPageWrite(dirPID, storage.AccessIndex)
	defer dg.Drop()
	dir := loadDirectoryPage(dg.GetData())

	bucketIdx := dir.bucketIndex(hash)
	bucketPID := dir.bucketPageID(bucketIdx)
	if bucketPID == storage.InvalidPageID {
		return true, false, false
	}

	bg := h.bpm.MustFetchPageWrite(bucketPID, storage.AccessIndex)
	bucket := loadBucketPage(bg.GetData(), h.serde)

	if _, exists := bucket.find(key, h.cmp); exists {
		bg.Drop()
		return true, false, false
	}

	if !bucket.isFull() {
		bucket = loadBucketPage(bg.GetDataMut(), h.serde)
		bucket.insert(key, val)
		bg.Drop()
		return true, true, false
	}

	// Full: split. Grow the directory first if this bucket is shared by
	// every directory slot at the current global depth.
	localDepth := dir.localDepth(bucketIdx)
	if localDepth == dir.globalDepth() {
		if dir.globalDepth() >= h.directoryMaxDepth {
			bg.Drop()
			return true, false, false
		}
		dirMut := loadDirectoryPage(dg.GetDataMut())
		dirMut.grow()
		dir = dirMut
		bucketIdx = dir.bucketIndex(hash)
	}

	newBucketPID, ok2 := h.bpm.NewPage()
	if !ok2 {
		bg.Drop()
		return true, false, false
	}
	nbg := h.bpm.MustFetchPageWrite(newBucketPID, storage.AccessIndex)
	newBucket := initBucketPage[K, V](nbg.GetDataMut(), h.serde, h.bucketMaxSize)

	newLocalDepth := localDepth + 1
	splitMask := uint32(1) << uint(localDepth)

	oldMut := loadBucketPage(bg.GetDataMut(), h.serde)
	originalEntries := oldMut.entries()
	oldMut.clear()
	for _, e := range originalEntries {
		if h.hashFn(e.Key)&splitMask != 0 {
			newBucket.insert(e.Key, e.Val)
		} else {
			oldMut.insert(e.Key, e.Val)
		}
	}

	dirMut := loadDirectoryPage(dg.GetDataMut())
	remapAfterSplit(dirMut, bucketIdx, localDepth, newLocalDepth, newBucketPID)

	bg.Drop()
	nbg.Drop()
	return false, false, true
}

// remapAfterSplit updates every directory slot sharing the split
// bucket's low localDepth bits: slots with the split bit set point at
// newBucketPID and adopt newLocalDepth; slots with the split bit unset
// keep their existing bucket pointer but still adopt newLocalDepth
// (SPEC_FULL.md §4.5, "Directory remap").
func remapAfterSplit(dir directoryView, splitIndex, oldLocalDepth, newLocalDepth int, newBucketPID storage.PageID) {
	lowMask := (1 << oldLocalDepth) - 1
	splitBit := 1 << oldLocalDepth
	want := splitIndex & lowMask

	for j := 0; j < dir.size(); j++ {
		if j&lowMask != want {
			continue
		}
		if j&splitBit != 0 {
			dir.setBucketPageID(j, newBucketPID)
		}
		dir.setLocalDepth(j, newLocalDepth)
	}
}

// Remove deletes key, reporting whether it was present. Merge/shrink is
// implemented at a single level only (no cascading chain merges), per
// the open question's "optional" allowance: an emptied bucket merges
// into its split image when they share a local depth, and the directory
// shrinks by one level when every active bucket's local depth has fallen
// below the current global depth.
func (h *HashTable[K, V]) Remove(key K) bool {
	hash := h.hashFn(key)

	hg := h.bpm.MustFetchPageRead(h.headerPageID, storage.AccessIndex)
	header := loadHeaderPage(hg.GetData())
	dirIdx := header.hashToIndex(hash)
	dirPID := header.directoryPageID(dirIdx)
	hg.Drop()
	if dirPID == storage.InvalidPageID {
		return false
	}

	dg := h.bpm.MustFetchPageWrite(dirPID, storage.AccessIndex)
	defer dg.Drop()
	dir := loadDirectoryPage(dg.GetData())

	bucketIdx := dir.bucketIndex(hash)
	bucketPID := dir.bucketPageID(bucketIdx)
	if bucketPID == storage.InvalidPageID {
		return false
	}

	bg := h.bpm.MustFetchPageWrite(bucketPID, storage.AccessIndex)
	bucket := loadBucketPage(bg.GetDataMut(), h.serde)
	removed := bucket.remove(key, h.cmp)
	if !removed {
		bg.Drop()
		return false
	}

	localDepth := dir.localDepth(bucketIdx)
	if bucket.size() == 0 && localDepth > 0 {
		splitIdx := splitImage(bucketIdx, localDepth)
		if dir.localDepth(splitIdx) == localDepth {
			siblingPID := dir.bucketPageID(splitIdx)
			dirMut := loadDirectoryPage(dg.GetDataMut())
			mergeBuckets(dirMut, bucketIdx, splitIdx, localDepth, siblingPID)
			bg.Drop()
			h.bpm.DeletePage(bucketPID)

			dirMut2 := loadDirectoryPage(dg.GetData())
			if dirMut2.canShrink() {
				loadDirectoryPage(dg.GetDataMut()).shrink()
			}
			return true
		}
	}

	bg.Drop()
	return true
}

// mergeBuckets points every directory slot that referenced either half
// of a split pair at survivorPID and drops their local depth by one.
func mergeBuckets(dir directoryView, emptiedIdx, survivorIdx, localDepth int, survivorPID storage.PageID) {
	lowMask := (1 << (localDepth - 1)) - 1
	want := emptiedIdx & lowMask
	for j := 0; j < dir.size(); j++ {
		if j&lowMask != want {
			continue
		}
		dir.setBucketPageID(j, survivorPID)
		dir.setLocalDepth(j, localDepth-1)
	}
}

// VerifyIntegrity walks the header and, for every non-invalid directory
// slot, checks the three invariants from SPEC_FULL.md §3/§8: local depth
// bounds, split-count consistency, and hash-prefix consistency within
// each bucket. It returns the first violation found, or nil.
func (h *HashTable[K, V]) VerifyIntegrity() error {
	hg := h.bpm.MustFetchPageRead(h.headerPageID, storage.AccessIndex)
	header := loadHeaderPage(hg.GetData())
	seen := map[storage.PageID]bool{}
	var dirPIDs []storage.PageID
	for i := 0; i < header.maxDirectorySlots(); i++ {
		pid := header.directoryPageID(i)
		if pid != storage.InvalidPageID && !seen[pid] {
			seen[pid] = true
			dirPIDs = append(dirPIDs, pid)
		}
	}
	hg.Drop()

	for _, dirPID := range dirPIDs {
		if err := h.verifyDirectory(dirPID); err != nil {
			return err
		}
	}
	return nil
}

func (h *HashTable[K, V]) verifyDirectory(dirPID storage.PageID) error {
	dg := h.bpm.MustFetchPageRead(dirPID, storage.AccessIndex)
	defer dg.Drop()
	dir := loadDirectoryPage(dg.GetData())

	global := dir.globalDepth()
	if global > h.directoryMaxDepth {
		return fmt.Errorf("index %s: global depth %d exceeds directory_max_depth %d", h.name, global, h.directoryMaxDepth)
	}

	counts := map[storage.PageID]int{}
	depths := map[storage.PageID]int{}
	for i := 0; i < dir.size(); i++ {
		pid := dir.bucketPageID(i)
		if pid == storage.InvalidPageID {
			continue
		}
		d := dir.localDepth(i)
		if d > global {
			return fmt.Errorf("index %s: local depth %d at slot %d exceeds global depth %d", h.name, d, i, global)
		}
		counts[pid]++
		depths[pid] = d
	}

	for pid, count := range counts {
		want := 1 << (global - depths[pid])
		if count != want {
			return fmt.Errorf("index %s: bucket %d appears in %d directory slots, want %d", h.name, pid, count, want)
		}
		if err := h.verifyBucketPrefix(pid, depths[pid]); err != nil {
			return err
		}
	}
	return nil
}

func (h *HashTable[K, V]) verifyBucketPrefix(bucketPID storage.PageID, localDepth int) error {
	bg := h.bpm.MustFetchPageRead(bucketPID, storage.AccessIndex)
	defer bg.Drop()
	bucket := loadBucketPage(bg.GetData(), h.serde)

	mask := uint32((1 << localDepth) - 1)
	var prefix uint32
	first := true
	for _, e := range bucket.entries() {
		p := h.hashFn(e.Key) & mask
		if first {
			prefix, first = p, false
			continue
		}
		if p != prefix {
			return fmt.Errorf("index %s: bucket %d holds keys with inconsistent hash prefixes at local depth %d", h.name, bucketPID, localDepth)
		}
	}
	return nil
}
