package storage

import "testing"

func TestNewPageIsZeroed(t *testing.T) {
	p := NewPage(5)
	if p.ID != 5 {
		t.Fatalf("ID = %d, want 5", p.ID)
	}
	for i, b := range p.Data {
		if b != 0 {
			t.Fatalf("Data[%d] = %d, want 0", i, b)
		}
	}
}

func TestAccessClassString(t *testing.T) {
	cases := map[AccessClass]string{
		AccessUnknown: "unknown",
		AccessLookup:  "lookup",
		AccessScan:    "scan",
		AccessIndex:   "index",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", class, got, want)
		}
	}
}
