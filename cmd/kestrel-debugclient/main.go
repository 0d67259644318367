// Command kestrel-debugclient connects to a running kestrel-kernel's debug
// server and prints each heap snapshot it streams.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrel-kernel/kestrel/internal/debugserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4433", "debug server address")
	fingerprint := flag.String("fingerprint", "", "pin the server's certificate to this SHA-256 hex fingerprint (printed at server startup)")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification instead of pinning a fingerprint")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		client *debugserver.Client
		err    error
	)

	switch {
	case *fingerprint != "":
		var fp [32]byte

		raw, decodeErr := hex.DecodeString(*fingerprint)
		if decodeErr != nil || len(raw) != len(fp) {
			log.Fatalf("fingerprint must be a %d-byte hex string", len(fp))
		}

		copy(fp[:], raw)

		client, err = debugserver.DialPinned(ctx, *addr, fp)
	case *insecure:
		client, err = debugserver.Dial(ctx, *addr, true)
	default:
		log.Fatal("either -fingerprint or -insecure must be set")
	}

	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer client.Close()

	fmt.Printf("connected to %s\n", *addr)

	for {
		snap, err := client.Next()
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}

			log.Fatalf("stream error: %v", err)
		}

		fmt.Printf("snapshot: free_bytes=%d nodes=%d\n", snap.FreeBytes, snap.NodeCount)

		for _, n := range snap.Nodes {
			fmt.Printf("  %#x [%d]\n", n.Addr, n.Size)
		}
	}
}
