package storage

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// BufferPoolManager maps logical page IDs to in-memory frames, using an
// LRU-K replacer to pick eviction victims and a disk scheduler to move
// pages to and from the backing store (SPEC_FULL.md §4.4).
//
// mu is the single coordination latch (the "bpm latch"): it protects the
// page table, the free list, and frame-to-page assignment. It is always
// released before a frame's own latch is acquired, and is never held
// across a disk-scheduler wait, per the crabbing/deadlock-avoidance rule
// in SPEC_FULL.md §4.4/§5.
type BufferPoolManager struct {
	mu sync.Mutex

	frames    []*frame
	pageTable map[PageID]FrameID
	freeList  []FrameID

	replacer  *LRUKReplacer
	scheduler *DiskScheduler
	dm        DiskManager

	nextPageID atomic.Int32
}

// NewBufferPoolManager creates a pool of numFrames frames backed by dm,
// using an LRU-K replacer with history length k.
func NewBufferPoolManager(numFrames int, k int, dm DiskManager) *BufferPoolManager {
	bp := &BufferPoolManager{
		frames:    make([]*frame, numFrames),
		pageTable: make(map[PageID]FrameID, numFrames),
		freeList:  make([]FrameID, numFrames),
		replacer:  NewLRUKReplacer(k),
		scheduler: NewDiskScheduler(dm),
		dm:        dm,
	}
	for i := 0; i < numFrames; i++ {
		bp.frames[i] = newFrame(FrameID(i))
		bp.freeList[i] = FrameID(i)
	}
	return bp
}

// Size returns the number of frames in the pool.
func (bp *BufferPoolManager) Size() int {
	return len(bp.frames)
}

// Shutdown flushes every dirty page, stops the disk scheduler's worker,
// and closes the underlying disk manager — the reverse of construction
// order described in SPEC_FULL.md §5.
func (bp *BufferPoolManager) Shutdown() error {
	bp.FlushAllPages()
	bp.scheduler.Shutdown()
	return bp.dm.Shutdown()
}

// NewPage allocates a fresh page ID and materializes it into a frame,
// evicting and flushing a dirty victim if the pool is full. The new
// frame is resident with a pin count of zero and is registered with the
// replacer as immediately evictable — a caller that never fetches a
// guard for it does not leak the frame forever, it just becomes the
// next victim. Fetching a guard for it marks it non-evictable and hands
// it the usual pin/unpin lifecycle, same as any other resident page. It
// reports ok=false if no frame could be freed.
func (bp *BufferPoolManager) NewPage() (PageID, bool) {
	bp.mu.Lock()
	frameID, evictedDirty, victimPage, ok := bp.obtainFrameLocked()
	if !ok {
		bp.mu.Unlock()
		return InvalidPageID, false
	}
	f := bp.frames[frameID]
	bp.mu.Unlock()

	if evictedDirty {
		bp.flushViaScheduler(victimPage, &f.data)
	}

	pid := PageID(bp.nextPageID.Add(1) - 1)

	bp.mu.Lock()
	f.reset(pid)
	bp.pageTable[pid] = frameID
	bp.replacer.RecordAccess(frameID, AccessUnknown)
	bp.replacer.SetEvictable(frameID, true)
	bp.mu.Unlock()

	return pid, true
}

// DeletePage frees the page from the pool (and reclaims its frame) and
// instructs the scheduler to deallocate it on disk. It returns false if
// the page is currently pinned; a page that is not resident is still
// deallocated on disk, and the call reports true.
func (bp *BufferPoolManager) DeletePage(pid PageID) bool {
	bp.mu.Lock()

	frameID, resident := bp.pageTable[pid]
	if !resident {
		bp.mu.Unlock()
		bp.scheduler.DeallocatePage(pid)
		return true
	}

	f := bp.frames[frameID]
	if f.pinCount > 0 {
		bp.mu.Unlock()
		return false
	}

	delete(bp.pageTable, pid)
	bp.replacer.Remove(frameID)
	f.pageID = InvalidPageID
	bp.freeList = append(bp.freeList, frameID)
	bp.mu.Unlock()

	bp.scheduler.DeallocatePage(pid)
	return true
}

// FetchPageRead returns a shared guard on pid, reading it from disk on a
// miss. It reports ok=false if no frame could be obtained.
func (bp *BufferPoolManager) FetchPageRead(pid PageID, class AccessClass) (*ReadPageGuard, bool) {
	f, ok := bp.fetch(pid, class)
	if !ok {
		return nil, false
	}
	f.latch.RLock()
	return &ReadPageGuard{bp: bp, f: f, valid: true}, true
}

// FetchPageWrite returns an exclusive guard on pid, reading it from disk
// on a miss. It reports ok=false if no frame could be obtained.
func (bp *BufferPoolManager) FetchPageWrite(pid PageID, class AccessClass) (*WritePageGuard, bool) {
	f, ok := bp.fetch(pid, class)
	if !ok {
		return nil, false
	}
	f.latch.Lock()
	return &WritePageGuard{bp: bp, f: f, valid: true}, true
}

// MustFetchPageRead is FetchPageRead, panicking on failure — the "panics
// if unavailable" variant from SPEC_FULL.md §6, reserved for callers that
// treat pool exhaustion as a programmer error.
func (bp *BufferPoolManager) MustFetchPageRead(pid PageID, class AccessClass) *ReadPageGuard {
	g, ok := bp.FetchPageRead(pid, class)
	if !ok {
		panic(fmt.Sprintf("storage: no frame available to read page %d", pid))
	}
	return g
}

// MustFetchPageWrite is FetchPageWrite, panicking on failure.
func (bp *BufferPoolManager) MustFetchPageWrite(pid PageID, class AccessClass) *WritePageGuard {
	g, ok := bp.FetchPageWrite(pid, class)
	if !ok {
		panic(fmt.Sprintf("storage: no frame available to write page %d", pid))
	}
	return g
}

// FlushPage writes pid to disk if it is resident and dirty, clearing the
// dirty flag on success. It returns false if pid is not in the pool.
func (bp *BufferPoolManager) FlushPage(pid PageID) bool {
	bp.mu.Lock()
	frameID, resident := bp.pageTable[pid]
	if !resident {
		bp.mu.Unlock()
		return false
	}
	f := bp.frames[frameID]
	bp.mu.Unlock()

	return bp.flushLocked(f)
}

// FlushAllPages flushes every dirty resident page.
func (bp *BufferPoolManager) FlushAllPages() {
	bp.mu.Lock()
	pids := make([]PageID, 0, len(bp.pageTable))
	for pid := range bp.pageTable {
		pids = append(pids, pid)
	}
	bp.mu.Unlock()

	for _, pid := range pids {
		bp.FlushPage(pid)
	}
}

// GetPinCount reports pid's pin count, for tests; ok is false if pid is
// not resident.
func (bp *BufferPoolManager) GetPinCount(pid PageID) (count int, ok bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, resident := bp.pageTable[pid]
	if !resident {
		return 0, false
	}
	return bp.frames[frameID].pinCount, true
}

// fetch is the shared hit/miss path behind FetchPageRead/Write. It pins
// the frame and records the access before returning, but does not take
// the frame's own latch — callers do that themselves so a read fetch
// takes RLock and a write fetch takes Lock.
func (bp *BufferPoolManager) fetch(pid PageID, class AccessClass) (*frame, bool) {
	bp.mu.Lock()

	if frameID, resident := bp.pageTable[pid]; resident {
		f := bp.frames[frameID]
		f.pinCount++
		bp.replacer.RecordAccess(frameID, class)
		bp.replacer.SetEvictable(frameID, false)
		bp.mu.Unlock()
		return f, true
	}

	frameID, evictedDirty, victimPage, ok := bp.obtainFrameLocked()
	if !ok {
		bp.mu.Unlock()
		return nil, false
	}
	f := bp.frames[frameID]
	bp.mu.Unlock()

	if evictedDirty {
		bp.flushViaScheduler(victimPage, &f.data)
	}

	readFuture := bp.scheduler.ReadPageAsync(pid, &f.data)
	readFuture.Wait()

	bp.mu.Lock()

	// The bpm latch was released for the disk read above, so another
	// goroutine's concurrent miss on the same pid may have already won
	// and installed its own frame. Re-check the page table before
	// claiming ownership: installing unconditionally here would let two
	// frames both believe they hold pid, and the page table would keep
	// only the last writer — an orphaned, permanently pinned frame the
	// table no longer points to (violates the "at most one frame per
	// resident page ID" invariant, SPEC_FULL.md §3).
	if winnerID, resident := bp.pageTable[pid]; resident {
		f.pageID = InvalidPageID
		bp.freeList = append(bp.freeList, frameID)

		winner := bp.frames[winnerID]
		winner.pinCount++
		bp.replacer.RecordAccess(winnerID, class)
		bp.replacer.SetEvictable(winnerID, false)
		bp.mu.Unlock()
		return winner, true
	}

	f.pageID = pid
	f.pinCount = 1
	f.isDirty = false
	bp.pageTable[pid] = frameID
	bp.replacer.RecordAccess(frameID, class)
	bp.replacer.SetEvictable(frameID, false)
	bp.mu.Unlock()

	return f, true
}

// obtainFrameLocked returns a frame ready to be relabeled for a new page:
// the head of the free list if non-empty, otherwise an evicted victim.
// evictedDirty reports whether the victim must be flushed — the caller
// does so via flushViaScheduler after releasing bp.mu, before reusing
// the frame's data buffer. Must be called with bp.mu held; never itself
// blocks on disk I/O. Reports ok=false if no frame can be freed.
func (bp *BufferPoolManager) obtainFrameLocked() (frameID FrameID, evictedDirty bool, victimPage PageID, ok bool) {
	if n := len(bp.freeList); n > 0 {
		frameID = bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return frameID, false, InvalidPageID, true
	}

	victim, evicted := bp.replacer.Evict()
	if !evicted {
		return InvalidFrameID, false, InvalidPageID, false
	}
	f := bp.frames[victim]
	delete(bp.pageTable, f.pageID)
	return victim, f.isDirty, f.pageID, true
}

// flushViaScheduler synchronously writes data as pid through the
// scheduler, waiting for completion. Used both for victim eviction and
// for FlushPage/FlushAllPages.
func (bp *BufferPoolManager) flushViaScheduler(pid PageID, data *[PageSize]byte) bool {
	future := bp.scheduler.WritePageAsync(pid, data)
	ok := future.Wait()
	if !ok {
		log.Printf("storage: failed to flush page %d", pid)
	}
	return ok
}

// flushLocked writes f's page to disk. A guard's Flush calls it while
// holding f's own latch; FlushPage calls it without taking f's latch, so
// a goroutine holding a write guard on f may mutate f.data during that
// write. It is a no-op returning true if f is not dirty.
func (bp *BufferPoolManager) flushLocked(f *frame) bool {
	if !f.isDirty {
		return true
	}
	ok := bp.flushViaScheduler(f.pageID, &f.data)
	if ok {
		f.isDirty = false
	}
	return ok
}

// unpin is called by a guard's Drop. It decrements the pin count and, if
// it reaches zero, tells the replacer the frame is evictable again.
func (bp *BufferPoolManager) unpin(f *frame) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if f.pinCount == 0 {
		panic(fmt.Sprintf("storage: unpinning page %d with zero pin count", f.pageID))
	}
	f.pinCount--
	if f.pinCount == 0 {
		bp.replacer.SetEvictable(f.id, true)
	}
}
