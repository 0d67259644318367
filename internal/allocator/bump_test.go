package allocator

import (
	"testing"
	"unsafe"
)

func newTestBump(t *testing.T, size uintptr) (*BumpAllocator, uintptr) {
	t.Helper()

	buf := make([]byte, size)
	start := uintptr(unsafe.Pointer(&buf[0]))

	b := NewBumpAllocator()
	b.Init(start, size)

	t.Cleanup(func() { _ = buf[0] })

	return b, start
}

func TestBumpAllocAdvancesCursor(t *testing.T) {
	b, start := newTestBump(t, 4096)

	p1, ok := b.Alloc(64, 8)
	if !ok {
		t.Fatal("first allocation failed")
	}

	if p1 != start {
		t.Fatalf("first allocation = %#x, want heap start %#x", p1, start)
	}

	p2, ok := b.Alloc(64, 8)
	if !ok {
		t.Fatal("second allocation failed")
	}

	if p2 <= p1 {
		t.Fatalf("second allocation %#x did not advance past first %#x", p2, p1)
	}

	if b.Allocations() != 2 {
		t.Fatalf("Allocations() = %d, want 2", b.Allocations())
	}
}

func TestBumpAllocRespectsAlignment(t *testing.T) {
	b, _ := newTestBump(t, 4096)

	if _, ok := b.Alloc(1, 1); !ok {
		t.Fatal("setup allocation failed")
	}

	p, ok := b.Alloc(64, 64)
	if !ok {
		t.Fatal("aligned allocation failed")
	}

	if p%64 != 0 {
		t.Errorf("address %#x not aligned to 64", p)
	}
}

func TestBumpAllocFailsWhenExhausted(t *testing.T) {
	b, _ := newTestBump(t, 128)

	if _, ok := b.Alloc(256, 8); ok {
		t.Fatal("allocation larger than heap should fail")
	}
}

func TestBumpDeallocResetsOnlyWhenEmpty(t *testing.T) {
	b, start := newTestBump(t, 4096)

	p1, _ := b.Alloc(64, 8)
	_, _ = b.Alloc(64, 8)

	b.Dealloc(p1, 64, 8)

	if b.Allocations() != 1 {
		t.Fatalf("Allocations() = %d after freeing one of two, want 1", b.Allocations())
	}

	p3, ok := b.Alloc(64, 8)
	if !ok {
		t.Fatal("allocation after partial free failed")
	}

	if p3 == start {
		t.Fatal("cursor should not have reset while an allocation remained live")
	}

	b.Dealloc(p3, 64, 8)
	b.Dealloc(p3, 64, 8) // accounts for the still-outstanding anonymous second allocation

	if b.Allocations() != 0 {
		t.Fatalf("Allocations() = %d, want 0", b.Allocations())
	}

	p4, ok := b.Alloc(64, 8)
	if !ok {
		t.Fatal("allocation after full reset failed")
	}

	if p4 != start {
		t.Fatalf("cursor did not reset to heap start once allocations reached zero: got %#x, want %#x", p4, start)
	}
}
