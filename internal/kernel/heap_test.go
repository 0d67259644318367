package kernel

import (
	"errors"
	"testing"
	"unsafe"

	"go.uber.org/mock/gomock"

	"github.com/kestrel-kernel/kestrel/internal/allocator"
	"github.com/kestrel-kernel/kestrel/internal/kernelerr"
)

func ptrOf(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet
}

func TestBootstrapFrameAllocationFailed(t *testing.T) {
	ctrl := gomock.NewController(t)

	mapper := NewMockPageMapper(ctrl)
	frames := NewMockFrameAllocator(ctrl)
	frames.EXPECT().AllocateFrame().Return(Frame(0), false)

	_, _, err := Bootstrap(mapper, frames, allocator.NewSortedListAllocator(), PageSize)

	var kerr *kernelerr.Error
	if !errors.As(err, &kerr) {
		t.Fatalf("Bootstrap error = %v, want a *kernelerr.Error", err)
	}

	if kerr.Code != kernelerr.CodeFrameAllocationFailed {
		t.Fatalf("error code = %s, want %s", kerr.Code, kernelerr.CodeFrameAllocationFailed)
	}
}

func TestBootstrapPageMappingFailed(t *testing.T) {
	ctrl := gomock.NewController(t)

	mapper := NewMockPageMapper(ctrl)
	frames := NewMockFrameAllocator(ctrl)

	frames.EXPECT().AllocateFrame().Return(Frame(0x1000), true)
	mapper.EXPECT().MapTo(Page(0x1000), Frame(0x1000), PTEPresent|PTEWritable).
		Return(TlbFlush(0), errors.New("page table full"))

	_, _, err := Bootstrap(mapper, frames, allocator.NewSortedListAllocator(), PageSize)

	var kerr *kernelerr.Error
	if !errors.As(err, &kerr) {
		t.Fatalf("Bootstrap error = %v, want a *kernelerr.Error", err)
	}

	if kerr.Code != kernelerr.CodePageMappingFailed {
		t.Fatalf("error code = %s, want %s", kerr.Code, kernelerr.CodePageMappingFailed)
	}
}

func TestBootstrapMapsEveryPage(t *testing.T) {
	ctrl := gomock.NewController(t)

	mapper := NewMockPageMapper(ctrl)
	frames := NewMockFrameAllocator(ctrl)

	const pageCount = 3

	for i := uintptr(0); i < pageCount; i++ {
		frame := Frame(i * PageSize)
		frames.EXPECT().AllocateFrame().Return(frame, true)
		mapper.EXPECT().MapTo(Page(frame), frame, PTEPresent|PTEWritable).Return(TlbFlush(frame), nil)
	}

	heap, start, err := Bootstrap(mapper, frames, allocator.NewBumpAllocator(), pageCount*PageSize)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if start != 0 {
		t.Fatalf("discovered start = %#x, want 0 (first mock frame)", start)
	}

	if heap == nil {
		t.Fatal("Bootstrap returned a nil heap on success")
	}
}

func newBootstrappedHeap(t *testing.T, heapSize uintptr) *Heap {
	t.Helper()

	pageCount := int((heapSize + PageSize - 1) / PageSize)

	frames, err := NewMmapFrameSource(pageCount)
	if err != nil {
		t.Fatalf("NewMmapFrameSource: %v", err)
	}
	t.Cleanup(func() { _ = frames.Close() })

	mapper := NewIdentityPageMapper()

	heap, _, err := Bootstrap(mapper, frames, allocator.NewSortedListAllocator(), heapSize)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	return heap
}

// TestScenarioSimpleAllocation checks that two independent allocations each
// round-trip the value written through them.
func TestScenarioSimpleAllocation(t *testing.T) {
	heap := newBootstrappedHeap(t, 50*1024)

	a := allocInt32(t, heap, 42)
	b := allocInt32(t, heap, 69)

	if got := readInt32(a); got != 42 {
		t.Errorf("first box = %d, want 42", got)
	}

	if got := readInt32(b); got != 69 {
		t.Errorf("second box = %d, want 69", got)
	}
}

// TestScenarioLargeAllocation allocates a sequence of n consecutive uint64
// values; summed back out, they must match n*(n-1)/2.
func TestScenarioLargeAllocation(t *testing.T) {
	const heapSize = 50 * 1024

	heap := newBootstrappedHeap(t, heapSize)

	n := heapSize / 32

	ptrs := make([]uintptr, n)

	for i := 0; i < n; i++ {
		ptrs[i] = allocUint64(t, heap, uint64(i))
	}

	var sum uint64
	for _, p := range ptrs {
		sum += readUint64(p)
	}

	want := uint64(n) * uint64(n-1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}

// TestScenarioReuseMemory repeatedly allocates and immediately frees a
// single word; every value must round-trip and no allocation may fail.
func TestScenarioReuseMemory(t *testing.T) {
	const heapSize = 50 * 1024

	heap := newBootstrappedHeap(t, heapSize)

	for i := 0; i < heapSize; i++ {
		p := allocUint64(t, heap, uint64(i))

		if got := readUint64(p); got != uint64(i) {
			t.Fatalf("iteration %d: read back %d", i, got)
		}

		heap.Dealloc(p, 8, 8)
	}
}

// TestScenarioReuseWithLongLived checks that a long-lived allocation
// survives the same allocate/free churn as TestScenarioReuseMemory running
// alongside it.
func TestScenarioReuseWithLongLived(t *testing.T) {
	const heapSize = 50 * 1024

	heap := newBootstrappedHeap(t, heapSize)

	longLived := allocUint64(t, heap, 420)

	for i := 0; i < heapSize; i++ {
		p := allocUint64(t, heap, uint64(i))
		heap.Dealloc(p, 8, 8)
	}

	if got := readUint64(longLived); got != 420 {
		t.Fatalf("long-lived allocation = %d, want 420", got)
	}
}

// TestScenarioCoalescingRoundTrip checks that three equally sized regions
// freed together coalesce: a request for twice the size of one of them must
// find a fit, which is only possible if the freed nodes merged.
func TestScenarioCoalescingRoundTrip(t *testing.T) {
	const heapSize = 50 * 1024

	heap := newBootstrappedHeap(t, heapSize)

	chunk := heapSize / 32 * 8 // n uint64s

	p1, ok1 := heap.Alloc(uintptr(chunk), 8)
	p2, ok2 := heap.Alloc(uintptr(chunk), 8)
	p3, ok3 := heap.Alloc(uintptr(chunk), 8)

	if !ok1 || !ok2 || !ok3 {
		t.Fatal("setup allocations failed")
	}

	heap.Dealloc(p1, uintptr(chunk), 8)
	heap.Dealloc(p2, uintptr(chunk), 8)
	heap.Dealloc(p3, uintptr(chunk), 8)

	big := heapSize / 16 * 8

	p, ok := heap.Alloc(uintptr(big), 8)
	if !ok {
		t.Fatal("allocation of the combined, coalesced region failed")
	}

	n := big / 8
	for i := 0; i < n; i++ {
		writeUint64(p+uintptr(i*8), uint64(i))
	}

	var sum uint64
	for i := 0; i < n; i++ {
		sum += readUint64(p + uintptr(i*8))
	}

	want := uint64(n) * uint64(n-1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}

// TestScenarioEmptyState checks that once every allocation in a trace has
// been freed, the free list looks exactly like a freshly initialised one.
func TestScenarioEmptyState(t *testing.T) {
	const heapSize = 50 * 1024

	heap := newBootstrappedHeap(t, heapSize)

	ptrs := make([]uintptr, 10)
	for i := range ptrs {
		ptrs[i] = allocUint64(t, heap, uint64(i))
	}

	for _, p := range ptrs {
		heap.Dealloc(p, 8, 8)
	}

	sorted := heap.locked.Lock()
	defer sorted.Unlock()

	backing := (*sorted.Value()).(*allocator.SortedListAllocator)

	if got := backing.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	if got := backing.FreeBytes(); got != heapSize {
		t.Fatalf("FreeBytes() = %d, want %d", got, heapSize)
	}
}

func allocInt32(t *testing.T, heap *Heap, v int32) uintptr {
	t.Helper()

	p, ok := heap.Alloc(4, 4)
	if !ok {
		t.Fatal("allocation failed")
	}

	*(*int32)(ptrOf(p)) = v

	return p
}

func readInt32(p uintptr) int32 {
	return *(*int32)(ptrOf(p))
}

func allocUint64(t *testing.T, heap *Heap, v uint64) uintptr {
	t.Helper()

	p, ok := heap.Alloc(8, 8)
	if !ok {
		t.Fatal("allocation failed")
	}

	writeUint64(p, v)

	return p
}

func readUint64(p uintptr) uint64 {
	return *(*uint64)(ptrOf(p))
}

func writeUint64(p uintptr, v uint64) {
	*(*uint64)(ptrOf(p)) = v
}
