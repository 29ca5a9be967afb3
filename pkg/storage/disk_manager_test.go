package storage

import (
	"path/filepath"
	"testing"
)

func newTestFileDiskManager(t *testing.T) *FileDiskManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := NewFileDiskManager(path)
	if err != nil {
		t.Fatalf("NewFileDiskManager: %v", err)
	}
	t.Cleanup(func() { dm.Shutdown() })
	return dm
}

func TestFileDiskManagerUnwrittenPageReadsZero(t *testing.T) {
	dm := newTestFileDiskManager(t)

	var buf [PageSize]byte
	for i := range buf {
		buf[i] = 0xAA
	}
	if err := dm.ReadPage(7, &buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0 for a never-written page", i, b)
		}
	}
}

func TestFileDiskManagerWriteThenRead(t *testing.T) {
	dm := newTestFileDiskManager(t)

	var want [PageSize]byte
	copy(want[:], "hello, page")
	if err := dm.WritePage(3, &want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	var got [PageSize]byte
	if err := dm.ReadPage(3, &got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got != want {
		t.Fatalf("read page does not match what was written")
	}
}

func TestFileDiskManagerDeletedPageReadsZero(t *testing.T) {
	dm := newTestFileDiskManager(t)

	var buf [PageSize]byte
	copy(buf[:], "to be deleted")
	if err := dm.WritePage(1, &buf); err != nil {
		t.Fatalf("WritePage(1): %v", err)
	}
	if err := dm.DeletePage(1); err != nil {
		t.Fatalf("DeletePage(1): %v", err)
	}

	var got [PageSize]byte
	if err := dm.ReadPage(1, &got); err != nil {
		t.Fatalf("ReadPage(1): %v", err)
	}
	var zero [PageSize]byte
	if got != zero {
		t.Fatal("expected a deleted page to read back zeroed")
	}
}

func TestFileDiskManagerPageZeroOffsetIsReserved(t *testing.T) {
	dm := newTestFileDiskManager(t)

	var buf [PageSize]byte
	copy(buf[:], "page zero's data")
	if err := dm.WritePage(0, &buf); err != nil {
		t.Fatalf("WritePage(0): %v", err)
	}

	reserved := make([]byte, PageSize)
	n, err := dm.file.ReadAt(reserved, 0)
	if err != nil && n == 0 {
		t.Fatalf("ReadAt(0): %v", err)
	}
	for i, b := range reserved {
		if b != 0 {
			t.Fatalf("physical offset 0 is reserved for header/metadata, got nonzero byte %d", i)
		}
	}
}

func TestFileDiskManagerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	dm1, err := NewFileDiskManager(path)
	if err != nil {
		t.Fatalf("NewFileDiskManager: %v", err)
	}

	var want [PageSize]byte
	copy(want[:], "persisted across reopen")
	if err := dm1.WritePage(5, &want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm1.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	dm2, err := NewFileDiskManager(path)
	if err != nil {
		t.Fatalf("reopen NewFileDiskManager: %v", err)
	}
	t.Cleanup(func() { dm2.Shutdown() })

	var got [PageSize]byte
	if err := dm2.ReadPage(5, &got); err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
	if got != want {
		t.Fatal("a page written before Shutdown must be visible to a fresh disk manager opened on the same file")
	}
}

func TestFileDiskManagerDeleteAbsentPageIsNoOp(t *testing.T) {
	dm := newTestFileDiskManager(t)
	if err := dm.DeletePage(99); err != nil {
		t.Fatalf("DeletePage on an absent page should be tolerated, got: %v", err)
	}
}

func TestFileDiskManagerGrowsCapacity(t *testing.T) {
	dm := newTestFileDiskManager(t)

	var buf [PageSize]byte
	for i := 0; i < initialDiskCapacityPages+1; i++ {
		if err := dm.WritePage(PageID(i), &buf); err != nil {
			t.Fatalf("WritePage(%d): %v", i, err)
		}
	}
	_, _, capacityPages := dm.Stats()
	if capacityPages <= initialDiskCapacityPages {
		t.Fatalf("expected capacity to grow past %d pages, got %d", initialDiskCapacityPages, capacityPages)
	}
}

func TestFileDiskManagerShortReadPadsWithZero(t *testing.T) {
	dm := newTestFileDiskManager(t)

	// A page materialized near the end of a just-grown file can legitimately
	// read back short if the file hasn't been extended far enough yet by
	// another writer; ReadPage must tolerate that rather than fail.
	var buf [PageSize]byte
	copy(buf[:], "partial")
	if err := dm.WritePage(0, &buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.file.Truncate(PageSize / 2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	var got [PageSize]byte
	if err := dm.ReadPage(0, &got); err != nil {
		t.Fatalf("ReadPage on a short file should not error, got: %v", err)
	}
}
