// Command kestrel-kernel boots the heap subsystem against a host-backed
// set of frames and runs a short allocation workload through the
// cooperative task executor, optionally streaming a snapshot of the free
// list to a connected debugger after each task.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrel-kernel/kestrel/internal/allocator"
	"github.com/kestrel-kernel/kestrel/internal/debugserver"
	"github.com/kestrel-kernel/kestrel/internal/debugtrace"
	"github.com/kestrel-kernel/kestrel/internal/kernel"
	"github.com/kestrel-kernel/kestrel/internal/kernelconfig"
)

func main() {
	var (
		heapSize   = flag.Uint64("heap-size", 100*1024, "heap size in bytes")
		useBump    = flag.Bool("bump", false, "use the monotonic bump allocator instead of the sorted free-list allocator")
		debugAddr  = flag.String("debug-addr", "", "if set, serve heap snapshots over QUIC on this address (host:port)")
		debugCheck = flag.Bool("debug-checks", false, "enable allocator consistency assertions")
	)
	flag.Parse()

	cfg := kernelconfig.New(
		kernelconfig.WithHeapSize(uintptr(*heapSize)),
		kernelconfig.WithBumpAllocator(*useBump),
		kernelconfig.WithDebugChecks(*debugCheck),
	)

	allocator.DebugChecks = cfg.DebugChecks

	console := kernel.NewSerialConsole(os.Stdout)
	kernel.Printf(console, "kestrel-kernel: booting heap, size=%d bump=%v\n", cfg.HeapSize, cfg.UseBump)

	frames, err := kernel.NewMmapFrameSource(int(cfg.HeapSize/cfg.PageSize) + 1)
	if err != nil {
		kernel.Printf(console, "frame source init failed: %v\n", err)
		os.Exit(1)
	}
	defer frames.Close()

	mapper := kernel.NewIdentityPageMapper()

	var (
		backing allocator.Allocator
		sorted  *allocator.SortedListAllocator
	)

	if cfg.UseBump {
		backing = allocator.NewBumpAllocator()
	} else {
		sorted = allocator.NewSortedListAllocator()
		backing = sorted
	}

	heap, heapStart, err := kernel.Bootstrap(mapper, frames, backing, cfg.HeapSize)
	if err != nil {
		kernel.Printf(console, "heap bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	kernel.Printf(console, "heap live at %#x (%d bytes)\n", heapStart, cfg.HeapSize)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var snapshots chan debugtrace.Snapshot

	if *debugAddr != "" {
		snapshots = make(chan debugtrace.Snapshot, 8)

		srv, err := debugserver.New(*debugAddr, debugserver.DefaultOptions())
		if err != nil {
			kernel.Printf(console, "debug server init failed: %v\n", err)
			os.Exit(1)
		}

		go func() {
			if err := srv.Serve(ctx, snapshots); err != nil {
				kernel.Printf(console, "debug server exited: %v\n", err)
			}
		}()

		fingerprint := srv.Fingerprint()
		kernel.Printf(console, "debug server listening on %s, cert fingerprint %x\n", *debugAddr, fingerprint)
	}

	runWorkload(console, heap, sorted, snapshots)
}

// runWorkload exercises the heap through a handful of cooperative tasks,
// each allocating and freeing a block, publishing a snapshot after every
// task if a debug server is attached. sorted is nil when the heap is
// backed by the bump allocator, which has no free list to snapshot.
func runWorkload(console kernel.Console, heap *kernel.Heap, sorted *allocator.SortedListAllocator, snapshots chan<- debugtrace.Snapshot) {
	exec := kernel.NewExecutor()

	sizes := []uintptr{16, 64, 256, 1024}

	publish := func() {
		if snapshots != nil && sorted != nil {
			snapshots <- debugtrace.FromAllocator(sorted)
		}
	}

	for i, size := range sizes {
		size := size
		index := i

		exec.Spawn(func() {
			defer publish()

			ptr, ok := heap.Alloc(size, 8)
			if !ok {
				kernel.Printf(console, "task %d: allocation of %d bytes failed\n", index, size)
				return
			}

			kernel.Printf(console, "task %d: allocated %d bytes at %#x\n", index, size, ptr)

			if index%2 == 0 {
				heap.Dealloc(ptr, size, 8)
				kernel.Printf(console, "task %d: freed\n", index)
			}
		})
	}

	exec.Run()

	kernel.Printf(console, "workload complete\n")
}
