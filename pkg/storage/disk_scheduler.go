package storage

import (
	"log"
	"sync"
)

// DiskRequest is a single scheduled read or write (SPEC_FULL.md §4.2).
// Done is resolved to true on success and false on I/O failure.
type DiskRequest struct {
	IsWrite bool
	Data    *[PageSize]byte
	PageID  PageID
	Done    *Future
}

// DiskScheduler serializes read/write requests onto a single background
// worker, which services them through a DiskManager. Schedule never
// blocks on I/O itself — it only enqueues — and requests for the same
// page are processed strictly in the order they were scheduled, so a
// read always observes the effects of every write enqueued before it
// (SPEC_FULL.md §4.2, §5).
type DiskScheduler struct {
	dm      DiskManager
	queue   chan *DiskRequest // nil request is the shutdown sentinel
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

const diskSchedulerQueueDepth = 256

// NewDiskScheduler starts the background worker and returns a scheduler
// bound to dm.
func NewDiskScheduler(dm DiskManager) *DiskScheduler {
	s := &DiskScheduler{
		dm:    dm,
		queue: make(chan *DiskRequest, diskSchedulerQueueDepth),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Schedule enqueues r for processing and returns immediately.
func (s *DiskScheduler) Schedule(r *DiskRequest) {
	s.queue <- r
}

// ReadPageAsync schedules a read of id into buf and returns its future.
func (s *DiskScheduler) ReadPageAsync(id PageID, buf *[PageSize]byte) *Future {
	f := NewFuture()
	s.Schedule(&DiskRequest{IsWrite: false, Data: buf, PageID: id, Done: f})
	return f
}

// WritePageAsync schedules a write of buf to id and returns its future.
func (s *DiskScheduler) WritePageAsync(id PageID, buf *[PageSize]byte) *Future {
	f := NewFuture()
	s.Schedule(&DiskRequest{IsWrite: true, Data: buf, PageID: id, Done: f})
	return f
}

// DeallocatePage asks the underlying disk manager to free id. It calls
// the disk manager directly and synchronously, outside the request queue,
// and only logs a failure; it returns nothing to wait on.
func (s *DiskScheduler) DeallocatePage(id PageID) {
	if err := s.dm.DeletePage(id); err != nil {
		log.Printf("storage: deallocate page %d: %v", id, err)
	}
}

// Shutdown enqueues the sentinel and waits for the worker to drain and
// exit. Safe to call more than once.
func (s *DiskScheduler) Shutdown() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	s.closeMu.Unlock()

	s.queue <- nil
	s.wg.Wait()
}

// run is the single background worker. It processes requests strictly in
// FIFO order until it dequeues the shutdown sentinel.
func (s *DiskScheduler) run() {
	defer s.wg.Done()

	for r := range s.queue {
		if r == nil {
			return
		}

		var err error
		if r.IsWrite {
			err = s.dm.WritePage(r.PageID, r.Data)
		} else {
			err = s.dm.ReadPage(r.PageID, r.Data)
		}

		if err != nil {
			log.Printf("storage: disk I/O failed for page %d (write=%v): %v", r.PageID, r.IsWrite, err)
			r.Done.Resolve(false)
			continue
		}
		r.Done.Resolve(true)
	}
}
