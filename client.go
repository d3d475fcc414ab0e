package goframed

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ClientMessageHandler is invoked for every message the server pushes
// to the client.
type ClientMessageHandler func(msg *Message)

// ClientDisconnectedHandler is invoked once when the connection to the
// server is lost or closed.
type ClientDisconnectedHandler func()

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the connection timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithSecret sets the shared secret presented automatically when the
// server prompts for authentication.
func WithSecret(secret string) ClientOption {
	return func(c *Client) {
		c.secret = secret
	}
}

// WithTLSConfig sets the TLS configuration for secure connections.
func WithTLSConfig(config *tls.Config) ClientOption {
	return func(c *Client) {
		c.dialer = &TLSDialer{
			Timeout: c.timeout,
			Config:  config,
		}
	}
}

// WithDialer sets a custom dialer for connections.
// If dialer is nil, the default TCP dialer is retained.
func WithDialer(dialer Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithMaxPayloadLength sets the maximum allowed payload length for
// incoming frames.
func WithMaxPayloadLength(maxLength uint32) ClientOption {
	return func(c *Client) {
		c.maxPayload = maxLength
	}
}

// WithClientLogger sets the logger. If nil, slog.Default() is used.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMessageHandler sets the callback fired for every message pushed
// by the server.
func WithMessageHandler(handler ClientMessageHandler) ClientOption {
	return func(c *Client) {
		c.onMessage = handler
	}
}

// WithDisconnectedHandler sets the callback fired when the connection
// to the server is lost.
func WithDisconnectedHandler(handler ClientDisconnectedHandler) ClientOption {
	return func(c *Client) {
		c.onDisconnected = handler
	}
}

// Client connects to a framed message server, answers the
// shared-secret prompt when a secret is configured, and delivers
// pushed messages to the configured handler.
type Client struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	address    string
	secret     string
	dialer     Dialer
	conn       Conn
	timeout    time.Duration
	maxPayload uint32
	logger     *slog.Logger

	onMessage      ClientMessageHandler
	onDisconnected ClientDisconnectedHandler

	authed chan struct{}
	closed atomic.Bool
}

// NewClient creates a client for the server at address (host:port).
func NewClient(address string, opts ...ClientOption) *Client {
	c := &Client{
		address:    address,
		timeout:    30 * time.Second,
		dialer:     DefaultTCPDialer(),
		maxPayload: DefaultMaxPayloadLength,
		logger:     slog.Default(),
		authed:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Update dialer timeout after all options are applied
	switch d := c.dialer.(type) {
	case *TCPDialer:
		d.Timeout = c.timeout
	case *TLSDialer:
		d.Timeout = c.timeout
	}

	return c
}

// Connect establishes the connection and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil // Already connected
	}
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	conn, err := c.dialer.Dial(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.address, err)
	}

	c.conn = conn
	go c.readLoop(conn)
	return nil
}

// readLoop delivers pushed messages until the connection fails or is
// closed. Authentication prompts are answered inline and never reach
// the message handler.
func (c *Client) readLoop(conn Conn) {
	defer func() {
		conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		if c.onDisconnected != nil {
			handler := c.onDisconnected
			go handler()
		}
	}()

	for {
		msg, err := ReadMessage(conn, c.maxPayload)
		if err != nil {
			if !isDisconnectError(err) {
				c.logger.Warn("read failed", "server", c.address, "error", err)
			}
			return
		}

		switch msg.Status {
		case StatusAuthRequired:
			if c.secret == "" {
				c.logger.Warn("server requires authentication but no secret is configured",
					"server", c.address)
				continue
			}
			reply := &Message{Status: StatusAuthRequired, AuthToken: []byte(c.secret)}
			if err := c.write(reply); err != nil {
				c.logger.Warn("auth reply failed", "server", c.address, "error", err)
				return
			}
		case StatusAuthSuccess:
			c.logger.Debug("authenticated", "server", c.address)
			c.signalAuthed()
		case StatusAuthFailure:
			c.logger.Warn("authentication rejected", "server", c.address,
				"reason", string(msg.Payload))
		default:
			if c.onMessage != nil {
				handler := c.onMessage
				go handler(msg)
			}
		}
	}
}

func (c *Client) signalAuthed() {
	select {
	case <-c.authed:
	default:
		close(c.authed)
	}
}

// WaitAuthenticated blocks until the server accepts the shared secret
// or ctx expires. It returns nil only after an AuthSuccess reply; when
// the server never prompts for authentication, it returns ctx.Err()
// once ctx expires.
func (c *Client) WaitAuthenticated(ctx context.Context) error {
	select {
	case <-c.authed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes a StatusNormal message with the given payload.
func (c *Client) Send(payload []byte) error {
	return c.SendMessage(NewMessage(payload))
}

// SendMessage writes msg to the server.
func (c *Client) SendMessage(msg *Message) error {
	return c.write(msg)
}

func (c *Client) write(msg *Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return writeAll(conn, data)
}

// IsConnected returns true if the client has an active connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection to the server. Safe to call multiple
// times.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}
