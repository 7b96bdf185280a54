package mcpquic

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quic-go/quic-go"
)

// Client connects to an MCP server over QUIC.
type Client struct {
	addr    string
	tlsCfg  *tls.Config
	conn    *quic.Conn
	stream  *quic.Stream
	session *mcp.ClientSession
}

// NewClient prepares a client for addr. A nil tlsCfg verifies the
// server certificate.
func NewClient(addr string, tlsCfg *tls.Config) *Client {
	if tlsCfg == nil {
		tlsCfg = ClientTLSConfig(false)
	}
	return &Client{addr: addr, tlsCfg: tlsCfg}
}

// Connect dials the server, sends the stream prefix and completes the
// MCP initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := quic.DialAddr(ctx, c.addr, c.tlsCfg, ProductionQUICConfig())
	if err != nil {
		return fmt.Errorf("mcpquic: dial %s: %w", c.addr, err)
	}

	alpn := conn.ConnectionState().TLS.NegotiatedProtocol
	if alpn != ALPNProtocolMCP {
		conn.CloseWithError(ConnErrorUnsupportedALPN, "bad ALPN")
		return fmt.Errorf("%w: got %q", ErrUnsupportedALPN, alpn)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(ConnErrorProtocolViolation, "stream open failed")
		return fmt.Errorf("mcpquic: open stream: %w", err)
	}

	if err := SendMagicBytes(stream); err != nil {
		stream.Close()
		conn.CloseWithError(ConnErrorProtocolViolation, "magic bytes failed")
		return err
	}

	c.conn = conn
	c.stream = stream

	transport := &mcp.IOTransport{
		Reader: io.NopCloser(stream),
		Writer: streamWriteCloser{stream},
	}
	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "pagelens-quic-client",
		Version: "1.0.0",
	}, nil)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	session, err := mcpClient.Connect(connectCtx, transport, nil)
	if err != nil {
		c.closeTransport()
		return fmt.Errorf("mcpquic: mcp connect: %w", err)
	}

	c.session = session
	return nil
}

// ListTools lists the server's tools.
func (c *Client) ListTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	if c.session == nil {
		return nil, ErrConnectionClosed
	}
	return c.session.ListTools(ctx, nil)
}

// CallTool invokes one tool by name.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.session == nil {
		return nil, ErrConnectionClosed
	}
	return c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
}

// Ping checks session liveness.
func (c *Client) Ping(ctx context.Context) error {
	if c.session == nil {
		return ErrConnectionClosed
	}
	return c.session.Ping(ctx, nil)
}

// Close ends the session and the QUIC connection.
func (c *Client) Close() error {
	if c.session != nil {
		c.session.Close()
	}
	return c.closeTransport()
}

func (c *Client) closeTransport() error {
	if c.stream != nil {
		c.stream.Close()
	}
	if c.conn != nil {
		c.conn.CloseWithError(ConnErrorNoError, "client closing")
	}
	return nil
}
