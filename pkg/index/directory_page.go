package index

import (
	"encoding/binary"

	"github.com/mnohosten/bustubcore/pkg/storage"
)

// directoryCapacity bounds the directory page's local-depth and
// bucket-page-id arrays at the widest directory depth the format
// supports (directory_max_depth ≤ 9, SPEC_FULL.md §4.5's configuration
// clause) — the same fixed-capacity-with-configured-prefix approach as
// the header page.
const directoryCapacity = 1 << 9

const (
	directoryMaxDepthOff    = 0
	directoryGlobalDepthOff = 4
	directoryLocalDepthsOff = 8
	directoryBucketIDsOff   = directoryLocalDepthsOff + directoryCapacity
)

// directoryView is a typed window over a directory page's raw bytes,
// laid out per SPEC_FULL.md §6: "max_depth: u32, global_depth: u32,
// local_depths: [u8; 2^directory_max_depth], bucket_page_ids: [page_id_t;
// 2^directory_max_depth], padded."
type directoryView struct {
	data *[storage.PageSize]byte
}

func initDirectoryPage(data *[storage.PageSize]byte, maxDepth int) directoryView {
	for i := range data {
		data[i] = 0
	}
	d := directoryView{data: data}
	d.setMaxDepth(maxDepth)
	d.setGlobalDepth(0)
	for i := 0; i < directoryCapacity; i++ {
		d.setBucketPageID(i, storage.InvalidPageID)
	}
	return d
}

func loadDirectoryPage(data *[storage.PageSize]byte) directoryView {
	return directoryView{data: data}
}

func (d directoryView) maxDepth() int {
	return int(binary.LittleEndian.Uint32(d.data[directoryMaxDepthOff:]))
}

func (d directoryView) setMaxDepth(v int) {
	binary.LittleEndian.PutUint32(d.data[directoryMaxDepthOff:], uint32(v))
}

func (d directoryView) globalDepth() int {
	return int(binary.LittleEndian.Uint32(d.data[directoryGlobalDepthOff:]))
}

func (d directoryView) setGlobalDepth(v int) {
	binary.LittleEndian.PutUint32(d.data[directoryGlobalDepthOff:], uint32(v))
}

func (d directoryView) localDepth(index int) int {
	return int(d.data[directoryLocalDepthsOff+index])
}

func (d directoryView) setLocalDepth(index, v int) {
	d.data[directoryLocalDepthsOff+index] = byte(v)
}

func (d directoryView) bucketPageID(index int) storage.PageID {
	off := directoryBucketIDsOff + index*4
	return storage.PageID(int32(binary.LittleEndian.Uint32(d.data[off:])))
}

func (d directoryView) setBucketPageID(index int, pid storage.PageID) {
	off := directoryBucketIDsOff + index*4
	binary.LittleEndian.PutUint32(d.data[off:], uint32(int32(pid)))
}

// size returns the number of logical slots at the current global depth.
func (d directoryView) size() int { return 1 << d.globalDepth() }

// bucketIndex computes bucket_idx = hash & ((1 << global_depth) − 1).
func (d directoryView) bucketIndex(hash uint32) int {
	return int(hash) & (d.size() - 1)
}

// splitImage returns the directory index that shared bucket i's page
// before the split that gave it local depth localDepth, per the
// glossary's "split image" definition: i XOR (1 << (localDepth − 1)).
func splitImage(index, localDepth int) int {
	return index ^ (1 << (localDepth - 1))
}

// grow doubles the logical directory by incrementing global_depth,
// copying bucket_page_id and local_depth from slot i into its newly
// materialized sibling j = i + (1 << old_global_depth), per
// SPEC_FULL.md §4.5's insert algorithm.
func (d directoryView) grow() {
	old := d.size()
	d.setGlobalDepth(d.globalDepth() + 1)
	for i := 0; i < old; i++ {
		j := i + old
		d.setBucketPageID(j, d.bucketPageID(i))
		d.setLocalDepth(j, d.localDepth(i))
	}
}

// canShrink reports whether every active bucket's local depth is below
// the current global depth, the condition under which global_depth may
// decrement (SPEC_FULL.md §4.5's remove algorithm).
func (d directoryView) canShrink() bool {
	for i := 0; i < d.size(); i++ {
		if d.localDepth(i) >= d.globalDepth() {
			return false
		}
	}
	return d.globalDepth() > 0
}

func (d directoryView) shrink() {
	d.setGlobalDepth(d.globalDepth() - 1)
}
