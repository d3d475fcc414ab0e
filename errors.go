package goframed

import "errors"

// Protocol and server errors.
var (
	// ErrInvalidHeader indicates the frame header is malformed or invalid.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrInvalidVersion indicates an unsupported protocol version.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrBufferTooShort indicates the buffer is too short for the operation.
	ErrBufferTooShort = errors.New("buffer too short")

	// ErrPayloadTooLarge indicates the frame payload exceeds the maximum size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrAuthTokenTooLarge indicates the authentication token exceeds the maximum size.
	ErrAuthTokenTooLarge = errors.New("auth token too large")

	// ErrInvalidPort indicates the configured listen port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrClientNotFound indicates the identity has no live connection.
	ErrClientNotFound = errors.New("client not found")

	// ErrServerClosed indicates the server has been shut down.
	ErrServerClosed = errors.New("server closed")

	// ErrServerRunning indicates the server has already been started.
	ErrServerRunning = errors.New("server already running")

	// ErrNotConnected indicates the client has no active connection.
	ErrNotConnected = errors.New("not connected")

	// ErrTLSPolicy indicates the negotiated TLS session violates the
	// configured policy (unencrypted, unauthenticated, or not mutually
	// authenticated).
	ErrTLSPolicy = errors.New("tls policy violation")

	// ErrConnectionClosed indicates the connection was terminated.
	ErrConnectionClosed = errors.New("connection closed")
)
