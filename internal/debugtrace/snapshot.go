package debugtrace

import (
	"encoding/json"
	"os"

	"github.com/kestrel-kernel/kestrel/internal/allocator"
)

// FromAllocator captures the current free list of a as a Snapshot tagged
// with this build's SnapshotFormatVersion.
func FromAllocator(a *allocator.SortedListAllocator) Snapshot {
	snap := Snapshot{
		FormatVersion: SnapshotFormatVersion,
		FreeBytes:     a.FreeBytes(),
	}

	a.Walk(func(addr, size uintptr) {
		snap.Nodes = append(snap.Nodes, NodeSnapshot{Addr: addr, Size: size})
	})

	snap.NodeCount = len(snap.Nodes)

	return snap
}

// Encode marshals snap as the JSON document a Watcher can decode.
func Encode(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// WriteFile encodes snap and writes it to path, for tools that drop
// snapshots into a watched directory instead of streaming them.
func WriteFile(path string, snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
