// Package debugtrace watches a directory for heap snapshot files (as written
// by WriteFile) and decodes them, the offline counterpart to
// internal/debugserver's live streaming path. Neither cmd/kestrel-kernel nor
// cmd/kestrel-debugclient writes such files.
package debugtrace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"
)

// SnapshotFormatVersion is the format this build writes. CompatibleVersions
// is what it will still read: older minor versions stay readable since a
// snapshot only ever gains fields, never loses the ones the decoder needs.
const SnapshotFormatVersion = "1.0.0"

// CompatibleVersions gates which FormatVersion strings Watcher will decode.
var CompatibleVersions = mustConstraint(">= 1.0.0, < 2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}

	return c
}

// NodeSnapshot is one free-list node as captured by
// allocator.SortedListAllocator at the moment of the snapshot.
type NodeSnapshot struct {
	Addr uintptr `json:"addr"`
	Size uintptr `json:"size"`
}

// Snapshot is the on-disk and on-wire representation of a heap's free list
// at a point in time.
type Snapshot struct {
	FormatVersion string         `json:"format_version"`
	FreeBytes     uintptr        `json:"free_bytes"`
	NodeCount     int            `json:"node_count"`
	Nodes         []NodeSnapshot `json:"nodes"`
}

// Watcher watches one or more directories for snapshot files and decodes
// the ones whose FormatVersion satisfies CompatibleVersions.
type Watcher struct {
	fsw       *fsnotify.Watcher
	snapshots chan Snapshot
	errors    chan error
}

// New starts watching. Callers add directories with Add on the returned
// Watcher.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("debugtrace: create watcher: %w", err)
	}

	w := &Watcher{
		fsw:       fsw,
		snapshots: make(chan Snapshot, 32),
		errors:    make(chan error, 8),
	}

	go w.loop()

	return w, nil
}

// Add registers a directory to watch for snapshot files.
func (w *Watcher) Add(dir string) error {
	return w.fsw.Add(dir)
}

// Snapshots returns the channel decoded, compatible snapshots are delivered
// on.
func (w *Watcher) Snapshots() <-chan Snapshot {
	return w.snapshots
}

// Errors returns the channel decode and filesystem errors are delivered on.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.snapshots)
	defer close(w.errors)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}

			w.handle(ev.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.errors <- err
		}
	}
}

func (w *Watcher) handle(path string) {
	snap, err := decodeFile(path)
	if err != nil {
		w.errors <- fmt.Errorf("debugtrace: %s: %w", filepath.Base(path), err)
		return
	}

	w.snapshots <- snap
}

func decodeFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}

	version, err := semver.NewVersion(snap.FormatVersion)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invalid format_version %q: %w", snap.FormatVersion, err)
	}

	if !CompatibleVersions.Check(version) {
		return Snapshot{}, fmt.Errorf("format_version %s does not satisfy %s", version, CompatibleVersions)
	}

	return snap, nil
}
