package storage

import "sync"

// InMemoryDiskManager is a DiskManager surrogate backed by a map instead
// of a file, for tests that want disk-scheduler/buffer-pool behavior
// without touching the filesystem. Grounded on BusTub's
// disk_manager_memory.cpp: no allocation bookkeeping is needed since the
// backing store has no fixed capacity to pre-size or grow.
type InMemoryDiskManager struct {
	mu    sync.Mutex
	pages map[PageID]*[PageSize]byte
}

// NewInMemoryDiskManager returns an empty in-memory disk manager.
func NewInMemoryDiskManager() *InMemoryDiskManager {
	return &InMemoryDiskManager{pages: make(map[PageID]*[PageSize]byte)}
}

// ReadPage fills buf with the contents of page id, or zeros if id was
// never written.
func (dm *InMemoryDiskManager) ReadPage(id PageID, buf *[PageSize]byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if data, ok := dm.pages[id]; ok {
		*buf = *data
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

// WritePage stores a copy of buf as the contents of page id.
func (dm *InMemoryDiskManager) WritePage(id PageID, buf *[PageSize]byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	data := *buf
	dm.pages[id] = &data
	return nil
}

// DeletePage forgets page id, if present.
func (dm *InMemoryDiskManager) DeletePage(id PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	delete(dm.pages, id)
	return nil
}

// Shutdown is a no-op: there is no backing file to close.
func (dm *InMemoryDiskManager) Shutdown() error {
	return nil
}
