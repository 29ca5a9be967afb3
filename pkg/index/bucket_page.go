package index

import (
	"encoding/binary"

	"github.com/mnohosten/bustubcore/pkg/storage"
)

const (
	bucketSizeOff    = 0
	bucketMaxSizeOff = 4
	bucketEntriesOff = 8
)

// bucketView is a typed window over a bucket page's raw bytes, laid out
// per SPEC_FULL.md §6: "size: u32, max_size: u32, then max_size entries
// of (K, V) packed; padded to page size."
type bucketView[K comparable, V any] struct {
	data  *[storage.PageSize]byte
	serde EntrySerde[K, V]
}

// maxBucketSize derives bucket_max_size from the page size and entry
// size, per SPEC_FULL.md §4.5's configuration clause.
func maxBucketSize[K comparable, V any](serde EntrySerde[K, V]) int {
	return (storage.PageSize - bucketEntriesOff) / serde.entrySize()
}

func initBucketPage[K comparable, V any](data *[storage.PageSize]byte, serde EntrySerde[K, V], maxSize int) bucketView[K, V] {
	for i := range data {
		data[i] = 0
	}
	b := bucketView[K, V]{data: data, serde: serde}
	b.setSize(0)
	binary.LittleEndian.PutUint32(data[bucketMaxSizeOff:], uint32(maxSize))
	return b
}

func loadBucketPage[K comparable, V any](data *[storage.PageSize]byte, serde EntrySerde[K, V]) bucketView[K, V] {
	return bucketView[K, V]{data: data, serde: serde}
}

func (b bucketView[K, V]) size() int {
	return int(binary.LittleEndian.Uint32(b.data[bucketSizeOff:]))
}

func (b bucketView[K, V]) setSize(n int) {
	binary.LittleEndian.PutUint32(b.data[bucketSizeOff:], uint32(n))
}

func (b bucketView[K, V]) maxSize() int {
	return int(binary.LittleEndian.Uint32(b.data[bucketMaxSizeOff:]))
}

func (b bucketView[K, V]) isFull() bool { return b.size() >= b.maxSize() }

func (b bucketView[K, V]) entryOffset(i int) int {
	return bucketEntriesOff + i*b.serde.entrySize()
}

func (b bucketView[K, V]) entryAt(i int) (K, V) {
	off := b.entryOffset(i)
	es := b.serde.entrySize()
	key := b.serde.DecodeKey(b.data[off : off+b.serde.KeySize])
	val := b.serde.DecodeVal(b.data[off+b.serde.KeySize : off+es])
	return key, val
}

func (b bucketView[K, V]) writeEntryAt(i int, key K, val V) {
	off := b.entryOffset(i)
	es := b.serde.entrySize()
	b.serde.EncodeKey(b.data[off:off+b.serde.KeySize], key)
	b.serde.EncodeVal(b.data[off+b.serde.KeySize:off+es], val)
}

// find scans the bucket for a key equal to key under cmp.
func (b bucketView[K, V]) find(key K, cmp Comparator[K]) (V, bool) {
	var zero V
	for i := 0; i < b.size(); i++ {
		k, v := b.entryAt(i)
		if cmp(k, key) {
			return v, true
		}
	}
	return zero, false
}

// insert appends (key, val) if the bucket has room. Callers are
// responsible for checking for an existing key first — unique-key
// enforcement lives in the hash table, not the bucket.
func (b bucketView[K, V]) insert(key K, val V) bool {
	if b.isFull() {
		return false
	}
	n := b.size()
	b.writeEntryAt(n, key, val)
	b.setSize(n + 1)
	return true
}

// remove deletes the first entry matching key under cmp, compacting the
// entry array by moving the last entry into the removed slot. Reports
// whether a matching entry was found.
func (b bucketView[K, V]) remove(key K, cmp Comparator[K]) bool {
	n := b.size()
	for i := 0; i < n; i++ {
		k, _ := b.entryAt(i)
		if !cmp(k, key) {
			continue
		}
		if last := n - 1; i != last {
			lk, lv := b.entryAt(last)
			b.writeEntryAt(i, lk, lv)
		}
		b.setSize(n - 1)
		return true
	}
	return false
}

// entries returns every (key, value) pair currently stored, for rehashing
// during a split.
func (b bucketView[K, V]) entries() []struct {
	Key K
	Val V
} {
	out := make([]struct {
		Key K
		Val V
	}, b.size())
	for i := range out {
		out[i].Key, out[i].Val = b.entryAt(i)
	}
	return out
}

func (b bucketView[K, V]) clear() {
	b.setSize(0)
}
