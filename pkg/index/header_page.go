package index

import (
	"encoding/binary"

	"github.com/mnohosten/bustubcore/pkg/storage"
)

// headerCapacity bounds the header page's directory-page-id table at the
// widest header depth the format supports (header_max_depth ≤ 9, per
// SPEC_FULL.md §4.5's configuration clause). A table configured with a
// smaller header_max_depth simply leaves the high end of the array
// unused; the on-disk layout itself is fixed-size, as SPEC_FULL.md §6
// requires for every page kind.
const headerCapacity = 1 << 9

// headerMaxDepthOffset is the byte offset of the trailing max_depth:u32
// field, per SPEC_FULL.md §6: "directory_page_ids: [page_id_t;
// 2^header_max_depth], then max_depth: u32, zero-padded to page size."
const headerMaxDepthOffset = headerCapacity * 4

// headerView is a typed window over a header page's raw bytes.
type headerView struct {
	data  *[storage.PageSize]byte
	depth int // header_max_depth for this table instance
}

func initHeaderPage(data *[storage.PageSize]byte, maxDepth int) headerView {
	for i := range data {
		data[i] = 0
	}
	h := headerView{data: data, depth: maxDepth}
	for i := 0; i < 1<<maxDepth; i++ {
		h.setDirectoryPageID(i, storage.InvalidPageID)
	}
	binary.LittleEndian.PutUint32(data[headerMaxDepthOffset:], uint32(maxDepth))
	return h
}

func loadHeaderPage(data *[storage.PageSize]byte) headerView {
	maxDepth := int(binary.LittleEndian.Uint32(data[headerMaxDepthOffset:]))
	return headerView{data: data, depth: maxDepth}
}

// hashToIndex maps a 32-bit hash to a directory-table slot using
// the table's header_max_depth, per SPEC_FULL.md §4.5's lookup algorithm:
// "index hash >> (32 − header_depth)".
func (h headerView) hashToIndex(hash uint32) int {
	if h.depth == 0 {
		return 0
	}
	return int(hash >> (32 - uint(h.depth)))
}

func (h headerView) directoryPageID(index int) storage.PageID {
	off := index * 4
	return storage.PageID(int32(binary.LittleEndian.Uint32(h.data[off:])))
}

func (h headerView) setDirectoryPageID(index int, pid storage.PageID) {
	off := index * 4
	binary.LittleEndian.PutUint32(h.data[off:], uint32(int32(pid)))
}

func (h headerView) maxDirectorySlots() int { return 1 << h.depth }
