// Command kestrel-tracewatch watches a directory for heap snapshot files
// (as written by debugtrace.WriteFile) and prints each one as it lands, the
// offline counterpart to connecting a debugclient directly to a live kernel.
// Neither kestrel-kernel nor kestrel-debugclient writes such files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrel-kernel/kestrel/internal/debugtrace"
)

func main() {
	dir := flag.String("dir", ".", "directory to watch for *.json heap snapshots")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := debugtrace.New()
	if err != nil {
		log.Fatalf("start watcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(*dir); err != nil {
		log.Fatalf("watch %s: %v", *dir, err)
	}

	fmt.Printf("watching %s for heap snapshots (format >= %s)\n", *dir, debugtrace.SnapshotFormatVersion)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-w.Snapshots():
			if !ok {
				return
			}

			fmt.Printf("snapshot: format=%s free_bytes=%d nodes=%d\n", snap.FormatVersion, snap.FreeBytes, snap.NodeCount)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}

			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
