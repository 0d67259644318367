// Package kernelconfig holds the tunables for bootstrapping the kernel
// heap, configured through functional options the same way the runtime
// allocator's Config/Option pair works.
package kernelconfig

// Config controls where and how large the kernel heap is, and which
// allocator backs it once mapped.
type Config struct {
	// HeapStart documents the address the heap would live at on real
	// hardware. kernel.Bootstrap, running hosted rather than on bare metal,
	// has no way to claim a specific fixed virtual address from the host
	// and returns whatever address its frame source actually gave it
	// instead; HeapStart is informational outside of that path.
	HeapStart    uintptr
	HeapSize     uintptr
	PageSize     uintptr
	UseBump      bool
	DebugChecks  bool
	SnapshotPath string
}

// Option mutates a Config produced by Default.
type Option func(*Config)

// Default describes a heap well above any identity-mapped kernel region,
// sized in whole pages.
func Default() *Config {
	return &Config{
		HeapStart:   0x_4444_4444_0000,
		HeapSize:    100 * 1024,
		PageSize:    4096,
		UseBump:     false,
		DebugChecks: false,
	}
}

// WithHeapStart overrides the heap's starting virtual address. It should be
// page-aligned. kernel.Bootstrap does not read it; see Config.HeapStart.
func WithHeapStart(start uintptr) Option {
	return func(c *Config) { c.HeapStart = start }
}

// WithHeapSize overrides the heap size in bytes.
func WithHeapSize(size uintptr) Option {
	return func(c *Config) { c.HeapSize = size }
}

// WithPageSize overrides the page size cmd/kestrel-kernel uses to size its
// frame source. Defaults to 4096, the only size the rest of the subsystem
// has been validated against. kernel.Bootstrap always maps pages of
// kernel.PageSize and does not read this value.
func WithPageSize(size uintptr) Option {
	return func(c *Config) { c.PageSize = size }
}

// WithBumpAllocator selects the monotonic bump allocator instead of the
// sorted free-list allocator.
func WithBumpAllocator(enabled bool) Option {
	return func(c *Config) { c.UseBump = enabled }
}

// WithDebugChecks enables the allocator package's debug-only consistency
// assertions.
func WithDebugChecks(enabled bool) Option {
	return func(c *Config) { c.DebugChecks = enabled }
}

// WithSnapshotPath records a directory for heap snapshot files. No command
// in this module reads SnapshotPath; setting or clearing it changes nothing
// at run time.
func WithSnapshotPath(path string) Option {
	return func(c *Config) { c.SnapshotPath = path }
}

// New builds a Config from Default with opts applied in order.
func New(opts ...Option) *Config {
	c := Default()
	for _, opt := range opts {
		opt(c)
	}

	return c
}
