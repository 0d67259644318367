// Package debugserver streams heap snapshots to a remote debugger over
// QUIC: one stream per connected client, one JSON-encoded
// debugtrace.Snapshot per heap event the caller feeds in. All connected
// clients receive from the same input channel, so each snapshot reaches
// exactly one of them.
package debugserver

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/kestrel-kernel/kestrel/internal/debugtrace"
)

// ALPN is the protocol identifier negotiated over TLS for the heap
// snapshot stream, distinguishing it from the HTTP/3 traffic a kernel
// might also be serving on a shared UDP socket.
const ALPN = "kestrel-heap-debug/1"

// Options configures the self-signed identity and the QUIC transport. Hosts
// supplements, rather than replaces, the host derived from the listen
// address passed to New.
type Options struct {
	Hosts           []string
	CertValidFor    time.Duration
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
}

// DefaultOptions returns sane development defaults: a self-signed
// certificate good for an hour and conservative QUIC keepalives.
func DefaultOptions() Options {
	return Options{
		CertValidFor:    time.Hour,
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

// Server accepts QUIC connections and streams the snapshots published on
// its input channel to connected clients. Snapshots are not copied to every
// client: each one goes to whichever connection receives it first.
type Server struct {
	addr        string
	tls         *tls.Config
	fingerprint [sha256.Size]byte
	opts        Options
}

// New builds a Server bound to addr with a freshly generated self-signed
// certificate covering addr's host plus opts.Hosts. Use NewWithTLSConfig to
// supply a real certificate instead.
func New(addr string, opts Options) (*Server, error) {
	hosts := dedupeHosts(append(hostFromAddr(addr), opts.Hosts...))

	identity, err := selfSignedTLSConfig(hosts, opts.CertValidFor, []string{ALPN})
	if err != nil {
		return nil, fmt.Errorf("debugserver: generate TLS config: %w", err)
	}

	return &Server{addr: addr, tls: identity.config, fingerprint: identity.fingerprint, opts: opts}, nil
}

// NewWithTLSConfig builds a Server using a caller-supplied TLS config. Its
// NextProtos must include ALPN. Fingerprint returns the zero value for a
// Server built this way, since there is no self-signed identity to pin.
func NewWithTLSConfig(addr string, tlsConf *tls.Config, opts Options) *Server {
	return &Server{addr: addr, tls: tlsConf, opts: opts}
}

// Fingerprint returns the SHA-256 fingerprint of the server's self-signed
// leaf certificate DER encoding, or the zero value if the server was built
// with NewWithTLSConfig. An operator prints this out of band so a Client
// can pin it via DialPinned instead of disabling verification entirely.
func (s *Server) Fingerprint() [sha256.Size]byte {
	return s.fingerprint
}

// Serve listens on the server's address and blocks, accepting clients and
// streaming snapshots to them until ctx is canceled.
func (s *Server) Serve(ctx context.Context, snapshots <-chan debugtrace.Snapshot) error {
	ln, err := quic.ListenAddr(s.addr, s.tls, &quic.Config{
		MaxIdleTimeout:  s.opts.MaxIdleTimeout,
		KeepAlivePeriod: s.opts.KeepAlivePeriod,
	})
	if err != nil {
		return fmt.Errorf("debugserver: listen on %s: %w", s.addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("debugserver: accept: %w", err)
		}

		go serveConn(ctx, conn, snapshots)
	}
}

func serveConn(ctx context.Context, conn *quic.Conn, snapshots <-chan debugtrace.Snapshot) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return
	}
	defer stream.Close()

	enc := json.NewEncoder(stream)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}

			if err := enc.Encode(snap); err != nil {
				return
			}
		}
	}
}
