package storage

import "testing"

func TestInMemoryDiskManagerRoundTrip(t *testing.T) {
	dm := NewInMemoryDiskManager()
	defer dm.Shutdown()

	var want [PageSize]byte
	copy(want[:], "in-memory surrogate")
	if err := dm.WritePage(4, &want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	var got [PageSize]byte
	if err := dm.ReadPage(4, &got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got != want {
		t.Fatalf("read page does not match what was written")
	}
}

func TestInMemoryDiskManagerUnwrittenPageReadsZero(t *testing.T) {
	dm := NewInMemoryDiskManager()
	defer dm.Shutdown()

	var buf [PageSize]byte
	for i := range buf {
		buf[i] = 1
	}
	if err := dm.ReadPage(9, &buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestInMemoryDiskManagerDelete(t *testing.T) {
	dm := NewInMemoryDiskManager()
	defer dm.Shutdown()

	var buf [PageSize]byte
	copy(buf[:], "gone soon")
	if err := dm.WritePage(1, &buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.DeletePage(1); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	var got [PageSize]byte
	for i := range got {
		got[i] = 1
	}
	if err := dm.ReadPage(1, &got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 after delete", i, b)
		}
	}
}
