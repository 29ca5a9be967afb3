package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DiskManager persists fixed-size pages to a backing store. Implementers
// are expected to tolerate a read of a never-written page by returning
// zeros rather than an error (SPEC_FULL.md §4.1); construction is the
// only place a disk manager may fail outright.
//
// DiskManager is an interface, not a concrete type, so the disk scheduler
// (and tests) can swap the backing store without touching any other
// component (SPEC_FULL.md §9, "dynamic dispatch avoidance").
type DiskManager interface {
	ReadPage(id PageID, buf *[PageSize]byte) error
	WritePage(id PageID, buf *[PageSize]byte) error
	DeletePage(id PageID) error
	Shutdown() error
}

// FileDiskManager is the default DiskManager: a single backing file with
// page id mapped to file offset by a fixed formula, exactly as the
// teacher's DiskManager does (`offset := int64(page.ID) * PageSize`) —
// not through an in-memory allocation table that would have to be
// rebuilt (or persisted and reloaded) on every reopen. Since PageId is
// monotonically assigned and never reused within a process lifetime
// (SPEC_FULL.md §6), a page's offset is stable for the file's entire
// life; there is nothing to look up and therefore nothing that can be
// lost across a close/reopen cycle.
//
// Per SPEC_FULL.md §6 ("the first page of the DB file is reserved for
// header/metadata"), physical offset 0 is never handed to a page ID;
// page id 0's data lives at physical offset PageSize, id 1's at
// 2*PageSize, and so on. Capacity (in pages, including the reserved
// page) doubles whenever the next write would exceed it.
type FileDiskManager struct {
	mu       sync.Mutex
	file     *os.File
	capacity int64 // current file capacity, in pages, including the reserved page 0
	reads    int64
	writes   int64
}

const initialDiskCapacityPages = 16

// NewFileDiskManager opens (creating if necessary) the backing file at
// path and pre-sizes it to its initial capacity. Because page offsets
// are assigned by a fixed formula rather than loaded from a table, any
// data already on disk is immediately visible to ReadPage without a
// separate load step.
func NewFileDiskManager(path string) (*FileDiskManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open backing file: %w", err)
	}

	dm := &FileDiskManager{
		file:     f,
		capacity: initialDiskCapacityPages,
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat backing file: %w", err)
	}
	if existing := info.Size() / PageSize; existing > dm.capacity {
		dm.capacity = existing
	}
	if err := f.Truncate(dm.capacity * PageSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("pre-size backing file: %w", err)
	}
	return dm, nil
}

// offsetFor returns the fixed physical offset backing page id, leaving
// physical page 0 reserved for header/metadata.
func offsetFor(id PageID) int64 { return (int64(id) + 1) * PageSize }

// ReadPage fills buf with the contents of page id. A page that was never
// written reads back as zeros; a short read (a truncated or sparse file)
// is padded with zeros rather than reported as an error.
func (dm *FileDiskManager) ReadPage(id PageID, buf *[PageSize]byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	for i := range buf {
		buf[i] = 0
	}

	n, err := dm.file.ReadAt(buf[:], offsetFor(id))
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read page %d: %w", id, err)
	}
	dm.reads++
	return nil
}

// WritePage persists buf as the contents of page id, growing the backing
// file first if id's fixed offset falls past the current capacity.
func (dm *FileDiskManager) WritePage(id PageID, buf *[PageSize]byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := offsetFor(id)
	for offset+PageSize > dm.capacity*PageSize {
		if err := dm.grow(); err != nil {
			return err
		}
	}

	if _, err := dm.file.WriteAt(buf[:], offset); err != nil {
		return fmt.Errorf("write page %d: %w", id, err)
	}
	dm.writes++
	return nil
}

// DeletePage zeroes id's backing bytes, if the file already extends that
// far. Deleting a page whose offset was never written (including one
// past the current capacity) is a no-op, matching the contract's
// tolerance of deleting an absent page.
func (dm *FileDiskManager) DeletePage(id PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := offsetFor(id)
	if offset+PageSize > dm.capacity*PageSize {
		return nil
	}

	var zero [PageSize]byte
	if _, err := dm.file.WriteAt(zero[:], offset); err != nil {
		return fmt.Errorf("delete page %d: %w", id, err)
	}
	return nil
}

// Shutdown flushes and closes the backing file.
func (dm *FileDiskManager) Shutdown() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("sync backing file: %w", err)
	}
	return dm.file.Close()
}

// Stats reports lightweight counters for diagnostics and tests.
func (dm *FileDiskManager) Stats() (reads, writes int64, capacityPages int64) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.reads, dm.writes, dm.capacity
}

// grow doubles the file's page capacity. Must be called with dm.mu held.
func (dm *FileDiskManager) grow() error {
	dm.capacity *= 2
	if err := dm.file.Truncate(dm.capacity * PageSize); err != nil {
		return fmt.Errorf("grow backing file to %d pages: %w", dm.capacity, err)
	}
	return nil
}
