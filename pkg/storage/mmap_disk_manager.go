package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapDiskManager is a DiskManager backed by a memory-mapped file. It
// trades the FileDiskManager's syscall-per-page ReadAt/WriteAt for direct
// memory access, growing the mapping geometrically the same way
// FileDiskManager grows its file. A second pluggable backend exercising
// the "pluggable disk backend" design note (SPEC_FULL.md §9).
//
// Like FileDiskManager, it maps a page ID to its backing bytes with a
// fixed formula (offsetFor) rather than an in-memory allocation table, so
// a page written before Shutdown is visible to a fresh MmapDiskManager
// reopened on the same file without any table to reload. Physical offset
// 0 is reserved for header/metadata, matching SPEC_FULL.md §6.
type MmapDiskManager struct {
	mu       sync.RWMutex
	file     *os.File
	region   []byte
	regionSz int64
	capacity int64
}

const mmapInitialCapacityPages = 64

// NewMmapDiskManager opens path and maps an initial region into the
// process address space, growing it immediately if the file already
// holds more pages than the default initial capacity.
func NewMmapDiskManager(path string) (*MmapDiskManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open backing file: %w", err)
	}

	dm := &MmapDiskManager{
		file:     f,
		capacity: mmapInitialCapacityPages,
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat backing file: %w", err)
	}
	if existing := info.Size() / PageSize; existing > dm.capacity {
		dm.capacity = existing
	}
	if err := dm.remap(dm.capacity * PageSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("initial mmap: %w", err)
	}
	return dm, nil
}

// remap truncates the file to newSize bytes and re-establishes the
// mapping. Must be called with dm.mu held for writing.
func (dm *MmapDiskManager) remap(newSize int64) error {
	if dm.region != nil {
		if err := unix.Munmap(dm.region); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		dm.region = nil
	}

	if err := dm.file.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate backing file: %w", err)
	}

	region, err := unix.Mmap(int(dm.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	dm.region = region
	dm.regionSz = newSize
	return nil
}

// ReadPage copies the mapped bytes for page id into buf, or zeros if id
// falls past the current mapping (never written).
func (dm *MmapDiskManager) ReadPage(id PageID, buf *[PageSize]byte) error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	offset := offsetFor(id)
	if offset+PageSize > dm.regionSz {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf[:], dm.region[offset:offset+PageSize])
	return nil
}

// WritePage copies buf into the mapped region backing page id, growing
// the mapping first if id's fixed offset falls past it.
func (dm *MmapDiskManager) WritePage(id PageID, buf *[PageSize]byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := offsetFor(id)
	for offset+PageSize > dm.capacity*PageSize {
		dm.capacity *= 2
		if err := dm.remap(dm.capacity * PageSize); err != nil {
			return fmt.Errorf("grow mapping to %d pages: %w", dm.capacity, err)
		}
	}
	copy(dm.region[offset:offset+PageSize], buf[:])
	return nil
}

// DeletePage zeroes the mapped bytes backing id, if the mapping already
// extends that far. Deleting an absent page is a no-op.
func (dm *MmapDiskManager) DeletePage(id PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := offsetFor(id)
	if offset+PageSize > dm.regionSz {
		return nil
	}
	clear(dm.region[offset : offset+PageSize])
	return nil
}

// Shutdown flushes the mapping to disk, unmaps it, and closes the file.
func (dm *MmapDiskManager) Shutdown() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.region != nil {
		if err := unix.Msync(dm.region, unix.MS_SYNC); err != nil {
			return fmt.Errorf("msync: %w", err)
		}
		if err := unix.Munmap(dm.region); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		dm.region = nil
	}
	return dm.file.Close()
}
