package debugserver

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/quic-go/quic-go"

	"github.com/kestrel-kernel/kestrel/internal/debugtrace"
)

// Client reads the snapshot stream published by a Server.
type Client struct {
	conn *quic.Conn
	dec  *json.Decoder
}

// DialPinned connects to a Server at addr, accepting its certificate only
// if it matches fingerprint (Server.Fingerprint) rather than trusting any
// certificate authority — a self-signed debug certificate has none to
// chain to, so pinning the exact leaf is the available alternative to
// disabling verification outright.
func DialPinned(ctx context.Context, addr string, fingerprint [sha256.Size]byte) (*Client, error) {
	tlsConf := &tls.Config{
		NextProtos: []string{ALPN},
		//nolint:gosec // verification happens in VerifyPeerCertificate against a pinned fingerprint
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			for _, raw := range rawCerts {
				if sha256.Sum256(raw) == fingerprint {
					return nil
				}
			}

			return fmt.Errorf("debugserver: no presented certificate matches the pinned fingerprint")
		},
	}

	return dial(ctx, addr, tlsConf)
}

// Dial connects to a Server at addr. insecureSkipVerify should only be set
// for talking to a self-signed development server whose fingerprint isn't
// available; prefer DialPinned when it is.
func Dial(ctx context.Context, addr string, insecureSkipVerify bool) (*Client, error) {
	tlsConf := &tls.Config{
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec
	}

	return dial(ctx, addr, tlsConf)
}

func dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("debugserver: dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("debugserver: open stream: %w", err)
	}

	// The server's AcceptStream only sees a stream once data has been sent
	// on it, so announce the stream with a single byte.
	if _, err := stream.Write([]byte{0}); err != nil {
		conn.CloseWithError(0, "announce stream failed")
		return nil, fmt.Errorf("debugserver: announce stream: %w", err)
	}

	return &Client{conn: conn, dec: json.NewDecoder(stream)}, nil
}

// Next blocks until the next snapshot arrives.
func (c *Client) Next() (debugtrace.Snapshot, error) {
	var snap debugtrace.Snapshot
	if err := c.dec.Decode(&snap); err != nil {
		return debugtrace.Snapshot{}, err
	}

	return snap, nil
}

// Close tears down the underlying QUIC connection.
func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "client closed")
}
