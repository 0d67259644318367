package allocator

// BumpAllocator is a monotonic allocator: Alloc advances a cursor and never
// reclaims individual blocks. It exists as a fallback and as the simplest
// possible thing to bootstrap against while the sorted free-list allocator
// is still being brought up.
type BumpAllocator struct {
	heapStart   uintptr
	heapSize    uintptr
	next        uintptr
	allocations uint64
}

// NewBumpAllocator returns an uninitialised bump allocator. Init must be
// called before Alloc.
func NewBumpAllocator() *BumpAllocator {
	return &BumpAllocator{}
}

// Init records the backing region and resets the cursor to its start.
func (b *BumpAllocator) Init(start, size uintptr) {
	b.heapStart = start
	b.heapSize = size
	b.next = start
	b.allocations = 0
}

// Alloc returns an address satisfying layout, or (0, false) on failure. It
// never panics.
func (b *BumpAllocator) Alloc(size, align uintptr) (uintptr, bool) {
	start := AlignUp(b.next, align)

	end := start + size
	if end > b.heapStart+b.heapSize {
		return 0, false
	}

	b.next = end
	b.allocations++

	return start, true
}

// Dealloc decrements the live allocation count. Individual blocks are never
// reclaimed; once every outstanding allocation has been freed, the cursor
// resets to the start of the heap so the whole region becomes available
// again. ptr, size and align are accepted only to satisfy the common
// Allocator interface; the bump allocator has no use for any of them.
func (b *BumpAllocator) Dealloc(_, _, _ uintptr) {
	if b.allocations == 0 {
		return
	}

	b.allocations--
	if b.allocations == 0 {
		b.next = b.heapStart
	}
}

// Allocations returns the number of allocations that have not yet been
// matched by a Dealloc call.
func (b *BumpAllocator) Allocations() uint64 {
	return b.allocations
}
