package kernel

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

func uintptrOf(b *byte) uintptr {
	return uintptr(unsafe.Pointer(b))
}

// MmapFrameSource backs FrameAllocator with real anonymous pages obtained
// from the host, the hosted-build equivalent of a BootInfoFrameAllocator
// walking the bootloader's physical memory map: each AllocateFrame call
// hands out one more page out of a single large mmap'd region, and the
// frame's address doubles as real, dereferenceable memory so the rest of
// the subsystem can run against it unmodified.
type MmapFrameSource struct {
	mu     sync.Mutex
	region []byte
	cursor int
}

// NewMmapFrameSource reserves pageCount pages of anonymous memory.
func NewMmapFrameSource(pageCount int) (*MmapFrameSource, error) {
	size := pageCount * PageSize

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	return &MmapFrameSource{region: region}, nil
}

// AllocateFrame returns the next unused frame, or (0, false) once the
// reserved region is exhausted.
func (s *MmapFrameSource) AllocateFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.cursor+1)*PageSize > len(s.region) {
		return 0, false
	}

	frame := Frame(uintptrOf(&s.region[s.cursor*PageSize]))
	s.cursor++

	return frame, true
}

// Close releases the underlying mapping. Frames handed out before Close
// must not be used afterward.
func (s *MmapFrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return unix.Munmap(s.region)
}

// IdentityPageMapper implements PageMapper by treating a frame's address as
// directly usable at the requested page address: there is no real page
// table to walk in a hosted build, so "mapping" a page means recording that
// the frame backing it is now live and must not be handed out again.
type IdentityPageMapper struct {
	mu     sync.Mutex
	mapped map[Page]Frame
}

// NewIdentityPageMapper returns an empty mapper.
func NewIdentityPageMapper() *IdentityPageMapper {
	return &IdentityPageMapper{mapped: make(map[Page]Frame)}
}

// MapTo records that page is now backed by frame and returns a pending TLB
// flush for it. flags is ignored; a hosted process has no separate
// page-table permission bits to set.
func (m *IdentityPageMapper) MapTo(page Page, frame Frame, flags PageTableFlags) (TlbFlush, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mapped[page] = frame

	return TlbFlush(page), nil
}

// FrameFor returns the frame mapped to page, if any.
func (m *IdentityPageMapper) FrameFor(page Page) (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.mapped[page]

	return f, ok
}
