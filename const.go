package goframed

// Protocol version constants.
const (
	// ProtocolVersion is the current framing protocol version.
	ProtocolVersion = 0x01
)

// Message status codes carried in the frame header.
const (
	// StatusNormal indicates an ordinary application payload.
	StatusNormal = 0x00

	// StatusSuccess indicates a generic success response.
	StatusSuccess = 0x01

	// StatusFailure indicates a generic failure response.
	StatusFailure = 0x02

	// StatusAuthRequired indicates the peer must present authentication
	// material, or carries that material when sent by a client.
	StatusAuthRequired = 0x03

	// StatusAuthSuccess indicates the presented authentication material
	// was accepted.
	StatusAuthSuccess = 0x04

	// StatusAuthFailure indicates the presented authentication material
	// was rejected.
	StatusAuthFailure = 0x05

	// StatusRemoved indicates the server is about to disconnect the client.
	StatusRemoved = 0x06

	// StatusShutdown indicates the server is shutting down.
	StatusShutdown = 0x07
)

// HeaderLength is the fixed size of a frame header in bytes.
const HeaderLength = 12

// DefaultMaxPayloadLength is the default maximum allowed payload length
// (256KB). This prevents memory exhaustion attacks from malicious peers.
const DefaultMaxPayloadLength = 256 * 1024

// MaxAuthTokenLength is the maximum allowed authentication token length.
const MaxAuthTokenLength = 4 * 1024

// Authentication prompt and reply payloads exchanged during the
// shared-secret handshake.
const (
	authRequiredText = "Authentication required"
	authSuccessText  = "Authentication successful"
	authDeclinedText = "Authentication declined"
	authNoMaterial   = "No authentication material"
)
