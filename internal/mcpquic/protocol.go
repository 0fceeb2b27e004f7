// Package mcpquic carries MCP sessions over QUIC. Each connection
// negotiates a dedicated ALPN, opens one bidirectional stream, and
// prefixes it with magic bytes so a misdirected HTTP/3 peer is turned
// away before any JSON-RPC is exchanged.
package mcpquic

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"
)

// Wire protocol identifiers.
const (
	// ALPNProtocolMCP is negotiated during the TLS handshake.
	ALPNProtocolMCP = "mcp-quic-v1"

	// MagicBytesMCP opens the stream, ahead of the first JSON-RPC frame.
	MagicBytesMCP = "MCP1"

	// MaxMessageSize bounds a single JSON-RPC message.
	MaxMessageSize = 10 * 1024 * 1024
)

// Transport tuning shared by both ends.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultKeepAlive   = 15 * time.Second
)

// Application-level connection close codes.
const (
	ConnErrorNoError           quic.ApplicationErrorCode = 0x00
	ConnErrorInternal          quic.ApplicationErrorCode = 0x01
	ConnErrorUnsupportedALPN   quic.ApplicationErrorCode = 0x02
	ConnErrorProtocolViolation quic.ApplicationErrorCode = 0x03
)

// StreamErrorProtocolConfusion aborts a stream whose opening bytes are
// not the MCP magic.
const StreamErrorProtocolConfusion quic.StreamErrorCode = 0x01

var (
	ErrInvalidMagicBytes = errors.New("mcpquic: invalid magic bytes")
	ErrUnsupportedALPN   = errors.New("mcpquic: unsupported ALPN protocol")
	ErrConnectionClosed  = errors.New("mcpquic: connection closed")
)

// ConnectionError reports a connection-level failure together with the
// close code sent to the peer.
type ConnectionError struct {
	RemoteAddr string
	Code       quic.ApplicationErrorCode
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcpquic: connection %s closed with code 0x%02x: %v", e.RemoteAddr, uint64(e.Code), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendMagicBytes writes the protocol preamble.
func SendMagicBytes(w io.Writer) error {
	if _, err := io.WriteString(w, MagicBytesMCP); err != nil {
		return fmt.Errorf("mcpquic: send magic bytes: %w", err)
	}
	return nil
}

// ValidateMagicBytes consumes the preamble and rejects anything else.
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

// ProductionQUICConfig returns the transport tuning used by server and
// client alike. 0-RTT stays off: tool calls are not replay-safe.
func ProductionQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
		Allow0RTT:       false,
	}
}
