package mcpquic

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quic-go/quic-go"

	"github.com/pagelens/pagelens/idgen"
)

// Handler turns accepted QUIC connections into MCP sessions against a
// shared *mcp.Server.
type Handler struct {
	mcpServer *mcp.Server
	logger    *slog.Logger
	newID     idgen.Generator
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithIDGenerator sets a custom generator for session IDs.
func WithIDGenerator(gen idgen.Generator) HandlerOption {
	return func(h *Handler) { h.newID = gen }
}

// NewHandler creates an MCP connection handler.
func NewHandler(mcpSrv *mcp.Server, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		mcpServer: mcpSrv,
		logger:    logger,
		newID:     idgen.NanoID(8),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeConn handles one QUIC connection as one MCP session. It returns
// when the session ends or ctx is cancelled.
func (h *Handler) ServeConn(ctx context.Context, conn *quic.Conn) {
	remote := conn.RemoteAddr().String()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		h.logger.Error("mcpquic: accept stream", "remote", remote, "error", err)
		conn.CloseWithError(ConnErrorProtocolViolation, "stream accept failed")
		return
	}

	if err := ValidateMagicBytes(stream); err != nil {
		h.logger.Warn("mcpquic: bad magic bytes", "remote", remote, "error", err)
		stream.CancelWrite(StreamErrorProtocolConfusion)
		stream.CancelRead(StreamErrorProtocolConfusion)
		conn.CloseWithError(ConnErrorProtocolViolation, "invalid magic bytes")
		return
	}

	sessionID := "quic_" + h.newID()
	h.logger.Info("mcpquic: session starting", "session", sessionID, "remote", remote)

	transport := &serverTransport{stream: stream, sessionID: sessionID}
	ss, err := h.mcpServer.Connect(ctx, transport, nil)
	if err != nil {
		h.logger.Error("mcpquic: connect", "session", sessionID, "error", err)
		stream.Close()
		return
	}

	if err := ss.Wait(); err != nil {
		h.logger.Debug("mcpquic: session ended with error", "session", sessionID, "error", err)
	}
	h.logger.Info("mcpquic: session ended", "session", sessionID, "remote", remote)
}

// Listener accepts MCP-over-QUIC connections on its own UDP socket.
type Listener struct {
	listener *quic.Listener
	handler  *Handler
	logger   *slog.Logger
}

// NewListener binds addr and serves mcpSrv to every MCP-ALPN client.
func NewListener(addr string, tlsCfg *tls.Config, mcpSrv *mcp.Server, logger *slog.Logger, opts ...HandlerOption) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l, err := quic.ListenAddr(addr, tlsCfg, ProductionQUICConfig())
	if err != nil {
		return nil, err
	}
	logger.Info("mcpquic: listener ready", "addr", addr)
	return &Listener{
		listener: l,
		handler:  NewHandler(mcpSrv, logger, opts...),
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		conn, err := l.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("mcpquic: accept", "error", err)
			continue
		}

		alpn := conn.ConnectionState().TLS.NegotiatedProtocol
		if alpn != ALPNProtocolMCP {
			conn.CloseWithError(ConnErrorUnsupportedALPN, "unsupported ALPN: "+alpn)
			continue
		}

		go l.handler.ServeConn(ctx, conn)
	}
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// serverTransport implements mcp.Transport over one QUIC stream.
type serverTransport struct {
	stream    *quic.Stream
	sessionID string
}

func (t *serverTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	iot := &mcp.IOTransport{
		Reader: io.NopCloser(t.stream),
		Writer: streamWriteCloser{t.stream},
	}
	conn, err := iot.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &sessionConn{Connection: conn, id: t.sessionID}, nil
}

// sessionConn overrides the underlying connection's empty session ID.
type sessionConn struct {
	mcp.Connection
	id string
}

func (c *sessionConn) SessionID() string { return c.id }

// streamWriteCloser adapts a *quic.Stream to io.WriteCloser.
type streamWriteCloser struct{ stream *quic.Stream }

func (w streamWriteCloser) Write(p []byte) (int, error) { return w.stream.Write(p) }
func (w streamWriteCloser) Close() error                { return w.stream.Close() }
