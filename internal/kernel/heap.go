package kernel

import (
	"github.com/kestrel-kernel/kestrel/internal/allocator"
	"github.com/kestrel-kernel/kestrel/internal/kernelerr"
)

// Heap is a heap-allocation handle shared across every caller that might
// want to allocate, including a concurrently-running interrupt handler.
// Exclusive access to the underlying allocator is mediated by a Spinlock,
// not by disabling interrupts; callers that need interrupt-safety around a
// heap operation should wrap the call in WithoutInterrupts themselves, the
// way the allocator's design does not bake interrupt masking into itself.
type Heap struct {
	locked *allocator.Locked[allocator.Allocator]
}

// NewHeap wraps an already-initialised Allocator in a Heap.
func NewHeap(backing allocator.Allocator) *Heap {
	return &Heap{locked: allocator.NewLocked[allocator.Allocator](backing)}
}

// Alloc allocates size bytes aligned to align, returning (0, false) on
// exhaustion.
func (h *Heap) Alloc(size, align uintptr) (uintptr, bool) {
	g := h.locked.Lock()
	defer g.Unlock()

	return (*g.Value()).Alloc(size, align)
}

// Dealloc returns a previously allocated region to the heap. ptr, size, and
// align must match the values used to obtain it from Alloc.
func (h *Heap) Dealloc(ptr, size, align uintptr) {
	g := h.locked.Lock()
	defer g.Unlock()

	(*g.Value()).Dealloc(ptr, size, align)
}

// AllocOrError is a convenience wrapper returning a kernelerr.Error instead
// of a boolean, for callers that want to propagate failures through the
// standard error path instead of branching on ok.
func (h *Heap) AllocOrError(size, align uintptr) (uintptr, error) {
	ptr, ok := h.Alloc(size, align)
	if !ok {
		return 0, kernelerr.OutOfMemory(size, align)
	}

	return ptr, nil
}

// Bootstrap maps pageCount(heapSize) fresh pages one at a time through
// frames and mapper, identity-mapping each frame to the page at its own
// address exactly as the wider VMM's mapKernelSpace does for the kernel's
// low memory, then initializes backing over the first heapSize bytes of the
// resulting contiguous range and returns a ready-to-use Heap: pages are
// mapped first, and the range is
// handed to the allocator only once every page behind it is live. The
// discovered start address is returned because, unlike real hardware, a
// hosted process cannot be handed a specific fixed virtual address by its
// frame source; it gets back whatever real memory the host gave it.
func Bootstrap(mapper PageMapper, frames FrameAllocator, backing allocator.Allocator, heapSize uintptr) (*Heap, uintptr, error) {
	pageCount := (heapSize + PageSize - 1) / PageSize

	var heapStart uintptr

	for i := uintptr(0); i < pageCount; i++ {
		frame, ok := frames.AllocateFrame()
		if !ok {
			return nil, 0, kernelerr.FrameAllocationFailed(i * PageSize)
		}

		page := Page(frame)
		if i == 0 {
			heapStart = uintptr(page)
		}

		flush, err := mapper.MapTo(page, frame, PTEPresent|PTEWritable)
		if err != nil {
			return nil, 0, kernelerr.PageMappingFailed(uintptr(page), err)
		}

		flush.Flush()
	}

	backing.Init(heapStart, heapSize)

	return NewHeap(backing), heapStart, nil
}
