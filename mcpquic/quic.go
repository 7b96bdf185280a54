// CLAUDE:SUMMARY QUIC plumbing for the MCP transport: ALPN, magic bytes, TLS helpers, error codes.
// Package mcpquic carries MCP sessions over QUIC streams. One QUIC
// connection holds one bidirectional stream holding one MCP session;
// a four-byte magic prefix keeps stray HTTP/3 clients out before any
// JSON-RPC is exchanged.
package mcpquic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	// ALPNProtocolMCP is negotiated for MCP sessions; anything else on
	// the listener is refused.
	ALPNProtocolMCP = "mcp-quic-v1"

	// MagicBytesMCP opens every MCP stream.
	MagicBytesMCP = "MCP1"

	// MaxMessageSize bounds a single JSON-RPC message.
	MaxMessageSize = 10 * 1024 * 1024

	DefaultIdleTimeout = 5 * time.Minute
	DefaultKeepAlive   = 30 * time.Second
)

// Application error codes carried in QUIC CONNECTION_CLOSE frames.
const (
	ConnErrorNoError           quic.ApplicationErrorCode = 0x00
	ConnErrorUnsupportedALPN   quic.ApplicationErrorCode = 0x01
	ConnErrorProtocolViolation quic.ApplicationErrorCode = 0x03
)

// StreamErrorProtocolConfusion aborts streams that did not open with
// the magic prefix.
const StreamErrorProtocolConfusion quic.StreamErrorCode = 0x10

var (
	ErrInvalidMagicBytes = errors.New("mcpquic: invalid magic bytes")
	ErrUnsupportedALPN   = errors.New("mcpquic: unsupported ALPN protocol")
	ErrConnectionClosed  = errors.New("mcpquic: connection closed")
)

// ConnectionError wraps a transport failure with the peer and the QUIC
// application error code used to close the connection.
type ConnectionError struct {
	RemoteAddr string
	Code       quic.ApplicationErrorCode
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcpquic: %s: code 0x%02x: %v", e.RemoteAddr, uint64(e.Code), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendMagicBytes writes the MCP stream prefix.
func SendMagicBytes(w io.Writer) error {
	if _, err := w.Write([]byte(MagicBytesMCP)); err != nil {
		return fmt.Errorf("mcpquic: send magic bytes: %w", err)
	}
	return nil
}

// ValidateMagicBytes reads and checks the MCP stream prefix.
func ValidateMagicBytes(r io.Reader) error {
	buf := make([]byte, len(MagicBytesMCP))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMagicBytes, err)
	}
	if string(buf) != MagicBytesMCP {
		return fmt.Errorf("%w: got %q", ErrInvalidMagicBytes, buf)
	}
	return nil
}

// ProductionQUICConfig returns the QUIC tuning used by both ends.
// 0-RTT stays off: replayable early data and tool calls do not mix.
func ProductionQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
		Allow0RTT:       false,
	}
}

// ServerTLSConfig loads a certificate pair for the MCP listener.
func ServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("mcpquic: load keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocolMCP},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// SelfSignedTLSConfig generates an ephemeral P-256 certificate for dev
// deployments without provisioned certs.
func SelfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("mcpquic: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("mcpquic: serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "pagelens-mcp"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("mcpquic: create certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{ALPNProtocolMCP},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientTLSConfig returns the dialing TLS config. insecure skips server
// certificate verification, for self-signed dev servers only.
func ClientTLSConfig(insecure bool) *tls.Config {
	return &tls.Config{
		NextProtos:         []string{ALPNProtocolMCP},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: insecure,
	}
}
