package allocator

import (
	"fmt"
	"io"
	"unsafe"
)

// nodeHeader is stored in-place at the first bytes of every free region.
// Next is a heap address, or zero to mean "no next node" (the allocator
// never backs a region at address zero, so zero is safe to use as the
// sentinel).
type nodeHeader struct {
	Size uintptr
	Next uintptr
}

var (
	nodeHeaderSize  = unsafe.Sizeof(nodeHeader{})
	nodeHeaderAlign = unsafe.Alignof(nodeHeader{})
)

func nodeAt(addr uintptr) *nodeHeader {
	return (*nodeHeader)(unsafe.Pointer(addr)) //nolint:govet
}

func writeNode(addr uintptr, n nodeHeader) {
	*nodeAt(addr) = n
}

// DebugChecks enables precondition assertions that catch double frees and
// corrupt free-list pointers. Off by default: a production boot should not
// pay for them on every Dealloc.
var DebugChecks = false

func debugAssert(cond bool, format string, args ...interface{}) {
	if DebugChecks && !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// SortedListAllocator is the production allocator: an address-sorted
// singly-linked free list threaded through the free regions themselves,
// first-fit placement, and coalescing of adjacent regions on free.
//
// The zero value is not ready to use; call Init first.
type SortedListAllocator struct {
	head      nodeHeader // sentinel; Size is always 0 and never touched
	heapStart uintptr
	heapSize  uintptr
}

// NewSortedListAllocator returns an uninitialised allocator. Init must be
// called before Alloc or Dealloc.
func NewSortedListAllocator() *SortedListAllocator {
	return &SortedListAllocator{}
}

// Init writes a single free node covering the whole region and sets the
// sentinel to point at it: one sorted, aligned, in-bounds node trivially
// satisfies every free-list invariant.
func (a *SortedListAllocator) Init(start, size uintptr) {
	writeNode(start, nodeHeader{Size: size, Next: 0})
	a.head = nodeHeader{Size: 0, Next: start}
	a.heapStart = start
	a.heapSize = size
}

// normalizeLayout pads size and align so align is at least alignof(FreeNode),
// size is at least sizeof(FreeNode), and size is a multiple of align. Alloc
// and Dealloc must apply the identical normalisation so that a region freed
// with the original caller-supplied layout matches the size that was
// actually carved out of the free list.
func normalizeLayout(size, align uintptr) (uintptr, uintptr) {
	debugAssert(isPowerOfTwo(align), "alignment %#x is not a power of two", align)

	if align < nodeHeaderAlign {
		align = nodeHeaderAlign
	}

	if size < nodeHeaderSize {
		size = nodeHeaderSize
	}

	return AlignUp(size, align), align
}

// next returns the Next pointer of the node at addr, or of the sentinel if
// addr is zero.
func (a *SortedListAllocator) next(addr uintptr) uintptr {
	if addr == 0 {
		return a.head.Next
	}

	return nodeAt(addr).Next
}

// setNext updates the Next pointer of the node at addr, or of the sentinel
// if addr is zero.
func (a *SortedListAllocator) setNext(addr, next uintptr) {
	if addr == 0 {
		a.head.Next = next
		return
	}

	nodeAt(addr).Next = next
}

// sizeOf returns the Size of the node at addr, or zero for the sentinel.
func (a *SortedListAllocator) sizeOf(addr uintptr) uintptr {
	if addr == 0 {
		return 0
	}

	return nodeAt(addr).Size
}

func (a *SortedListAllocator) endOf(addr uintptr) uintptr {
	return addr + a.sizeOf(addr)
}

// Alloc finds the first free region that can satisfy size bytes aligned to
// align, splits it if at least a node header's worth of space would remain
// after the block, and returns the aligned start address. Alignment padding
// in front of the block stays on the free list as its own node; when that
// gap would be too small to hold a node header, the block moves up by align.
// It returns (0, false) on failure and never panics: out-of-memory is an
// ordinary, expected outcome.
func (a *SortedListAllocator) Alloc(size, align uintptr) (uintptr, bool) {
	size, align = normalizeLayout(size, align)

	prevAddr := uintptr(0)
	curAddr := a.next(prevAddr)

	for curAddr != 0 {
		cur := nodeAt(curAddr)

		start := AlignUp(curAddr, align)
		for start != curAddr && start-curAddr < nodeHeaderSize {
			start += align
		}

		end := start + size
		curEnd := curAddr + cur.Size

		if end <= curEnd {
			remainder := curEnd - end
			if remainder == 0 || remainder >= nodeHeaderSize {
				var newNext uintptr
				if remainder == 0 {
					newNext = cur.Next
				} else {
					newNext = end
					writeNode(newNext, nodeHeader{Size: remainder, Next: cur.Next})
				}

				if start == curAddr {
					a.setNext(prevAddr, newNext)
				} else {
					cur.Size = start - curAddr
					cur.Next = newNext
				}

				return start, true
			}
		}

		prevAddr = curAddr
		curAddr = cur.Next
	}

	return 0, false
}

// Dealloc inserts the region [ptr, ptr+size) back into the free list,
// coalescing with an address-adjacent predecessor and/or successor. size and
// align must be the values originally passed to Alloc; Dealloc applies the
// same normalisation so the inserted region's size matches what Alloc
// actually carved out.
func (a *SortedListAllocator) Dealloc(ptr, size, align uintptr) {
	size, align = normalizeLayout(size, align)

	prevAddr := uintptr(0)
	curAddr := a.next(prevAddr)

	for curAddr != 0 && curAddr < ptr {
		prevAddr = curAddr
		curAddr = a.next(curAddr)
	}

	debugAssert(prevAddr == 0 || a.endOf(prevAddr) <= ptr,
		"double free or corrupt free list: region [%#x,+%#x) overlaps preceding free node at %#x", ptr, size, prevAddr)
	debugAssert(curAddr == 0 || ptr+size <= curAddr,
		"double free or corrupt free list: region [%#x,+%#x) overlaps following free node at %#x", ptr, size, curAddr)

	insertedAddr := ptr

	if prevAddr != 0 && a.endOf(prevAddr) == ptr {
		prev := nodeAt(prevAddr)
		prev.Size += size
		insertedAddr = prevAddr
	} else {
		writeNode(ptr, nodeHeader{Size: size, Next: curAddr})
		a.setNext(prevAddr, ptr)
	}

	if curAddr != 0 && a.endOf(insertedAddr) == curAddr {
		inserted := nodeAt(insertedAddr)
		cur := nodeAt(curAddr)
		inserted.Size += cur.Size
		inserted.Next = cur.Next
	}
}

// Len returns the number of nodes in the free list, including the sentinel.
func (a *SortedListAllocator) Len() int {
	count := 1

	addr := a.head.Next
	for addr != 0 {
		count++
		addr = nodeAt(addr).Next
	}

	return count
}

// FreeBytes returns the sum of the Size field over every real (non-sentinel)
// node.
func (a *SortedListAllocator) FreeBytes() uintptr {
	var total uintptr

	addr := a.head.Next
	for addr != 0 {
		n := nodeAt(addr)
		total += n.Size
		addr = n.Next
	}

	return total
}

// Walk calls fn once per free node, in address order, excluding the
// sentinel. fn must not call Alloc or Dealloc on a; doing so would mutate
// the list out from under the walk.
func (a *SortedListAllocator) Walk(fn func(addr, size uintptr)) {
	addr := a.head.Next
	for addr != 0 {
		n := nodeAt(addr)
		fn(addr, n.Size)
		addr = n.Next
	}
}

// DebugPrint writes a human-readable dump of the free list to w. It is a
// debugging aid only, not a stable interface.
func (a *SortedListAllocator) DebugPrint(w io.Writer) {
	fmt.Fprint(w, "(HEAD")

	addr := a.head.Next
	for addr != 0 {
		n := nodeAt(addr)
		fmt.Fprintf(w, " -> %#x[%d]", addr, n.Size)
		addr = n.Next
	}

	fmt.Fprint(w, " -> Nil)\n")
}
