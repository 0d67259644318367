package debugserver

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"net"
	"time"
)

// certIdentity is a self-signed leaf certificate plus the SHA-256
// fingerprint of its DER encoding. A debug listener has no certificate
// authority to chain to, so it hands this fingerprint to the operator out
// of band (logged at startup) and a Client pins it with DialPinned instead
// of disabling verification outright.
type certIdentity struct {
	config      *tls.Config
	fingerprint [sha256.Size]byte
}

// selfSignedTLSConfig generates an in-memory self-signed certificate
// covering hosts, good for validFor, and returns it alongside its
// fingerprint. It exists so cmd/kestrel-kernel can open a debug listener
// without an operator provisioning real certificates first.
func selfSignedTLSConfig(hosts []string, validFor time.Duration, nextProtos []string) (*certIdentity, error) {
	if validFor <= 0 {
		validFor = time.Hour
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(validFor),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	for _, h := range dedupeHosts(hosts) {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &certIdentity{
		config: &tls.Config{
			Certificates: []tls.Certificate{pair},
			MinVersion:   tls.VersionTLS13,
			NextProtos:   nextProtos,
		},
		fingerprint: sha256.Sum256(der),
	}, nil
}

// hostFromAddr derives the SAN host list from a listen address, falling
// back to loopback names when the address has no specific host (":4242",
// "0.0.0.0:4242") since the debug listener binds those for local access
// only.
func hostFromAddr(addr string) []string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		return []string{"localhost", "127.0.0.1"}
	}

	return []string{host}
}

// dedupeHosts removes duplicate host entries while preserving order, so a
// caller-supplied host list and one derived from a listen address can be
// concatenated without producing duplicate SAN entries.
func dedupeHosts(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))

	for _, h := range hosts {
		if h == "" || seen[h] {
			continue
		}

		seen[h] = true
		out = append(out, h)
	}

	return out
}
