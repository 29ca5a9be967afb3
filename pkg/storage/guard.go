package storage

// ReadPageGuard and WritePageGuard are the buffer pool's RAII handles
// (SPEC_FULL.md §4.4, §9). Go has no destructors, so a guard must have
// Drop called exactly once to release it — typically `defer guard.Drop()`
// immediately after acquisition. Drop is safe to call more than once
// (idempotent past the first call) so a duplicate call never
// double-unpins a frame.
//
// Guards are single-owner values: there is no Go equivalent of C++ move
// semantics, so a guard must not be copied or shared across goroutines
// once created. Pass a pointer to share read access to the same
// underlying frame between cooperating goroutines if needed.

// ReadPageGuard grants shared access to a frame's data.
type ReadPageGuard struct {
	bp    *BufferPoolManager
	f     *frame
	valid bool
}

// GetPageID returns the page ID this guard is latched on.
func (g *ReadPageGuard) GetPageID() PageID { return g.f.pageID }

// GetData returns the frame's backing array for read-only access.
func (g *ReadPageGuard) GetData() *[PageSize]byte { return &g.f.data }

// IsDirty reports whether the underlying frame is currently dirty.
func (g *ReadPageGuard) IsDirty() bool { return g.f.isDirty }

// Flush writes the page to disk while holding the frame latch, clearing
// the dirty flag on success.
func (g *ReadPageGuard) Flush() bool {
	return g.bp.flushLocked(g.f)
}

// Drop releases the shared latch and unpins the frame. Safe to call more
// than once.
func (g *ReadPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false
	g.f.latch.RUnlock()
	g.bp.unpin(g.f)
}

// WritePageGuard grants exclusive access to a frame's data.
type WritePageGuard struct {
	bp    *BufferPoolManager
	f     *frame
	valid bool
}

// GetPageID returns the page ID this guard is latched on.
func (g *WritePageGuard) GetPageID() PageID { return g.f.pageID }

// GetData returns the frame's backing array for read-only access without
// marking the page dirty.
func (g *WritePageGuard) GetData() *[PageSize]byte { return &g.f.data }

// GetDataMut returns the frame's backing array for mutation and marks
// the page dirty.
func (g *WritePageGuard) GetDataMut() *[PageSize]byte {
	g.f.isDirty = true
	return &g.f.data
}

// IsDirty reports whether the underlying frame is currently dirty.
func (g *WritePageGuard) IsDirty() bool { return g.f.isDirty }

// Flush writes the page to disk while holding the frame latch, clearing
// the dirty flag on success.
func (g *WritePageGuard) Flush() bool {
	return g.bp.flushLocked(g.f)
}

// Drop releases the exclusive latch and unpins the frame. Safe to call
// more than once.
func (g *WritePageGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false
	g.f.latch.Unlock()
	g.bp.unpin(g.f)
}
