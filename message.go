package goframed

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message represents one framed unit on the wire. A frame consists of a
// 12-byte header followed by the authentication token and the payload:
//   - Version (1 byte): framing protocol version
//   - Status (1 byte): message status code
//   - Flags (1 byte): reserved, must be zero
//   - Reserved (1 byte): must be zero
//   - AuthLength (4 bytes): length of the authentication token
//   - PayloadLength (4 bytes): length of the payload
//
// All multi-byte fields are big-endian.
type Message struct {
	Status    uint8
	AuthToken []byte
	Payload   []byte
}

// NewMessage creates a message with StatusNormal and the given payload.
func NewMessage(payload []byte) *Message {
	return &Message{
		Status:  StatusNormal,
		Payload: payload,
	}
}

// statusMessage builds a control message with a UTF-8 text payload.
func statusMessage(status uint8, text string) *Message {
	return &Message{
		Status:  status,
		Payload: []byte(text),
	}
}

// MarshalBinary encodes the message to wire format.
func (m *Message) MarshalBinary() ([]byte, error) {
	if len(m.AuthToken) > MaxAuthTokenLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrAuthTokenTooLarge, len(m.AuthToken))
	}

	buf := make([]byte, HeaderLength+len(m.AuthToken)+len(m.Payload))
	buf[0] = ProtocolVersion
	buf[1] = m.Status
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(m.AuthToken)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(m.Payload)))
	copy(buf[HeaderLength:], m.AuthToken)
	copy(buf[HeaderLength+len(m.AuthToken):], m.Payload)
	return buf, nil
}

// UnmarshalBinary decodes a complete frame from data.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderLength {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooShort, HeaderLength, len(data))
	}

	if data[0] != ProtocolVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, data[0])
	}

	authLen := binary.BigEndian.Uint32(data[4:8])
	payloadLen := binary.BigEndian.Uint32(data[8:12])

	if uint64(len(data)) < uint64(HeaderLength)+uint64(authLen)+uint64(payloadLen) {
		return fmt.Errorf("%w: incomplete frame body", ErrBufferTooShort)
	}

	m.Status = data[1]
	m.AuthToken = nil
	m.Payload = nil
	if authLen > 0 {
		m.AuthToken = make([]byte, authLen)
		copy(m.AuthToken, data[HeaderLength:HeaderLength+authLen])
	}
	if payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		copy(m.Payload, data[HeaderLength+authLen:HeaderLength+authLen+payloadLen])
	}
	return nil
}

// ReadMessage reads one complete frame from r. It blocks until a full
// frame is available, the reader returns an error, or the peer closes
// the stream (io.EOF). maxPayload bounds the payload length to prevent
// memory exhaustion; zero means DefaultMaxPayloadLength.
func ReadMessage(r io.Reader, maxPayload uint32) (*Message, error) {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayloadLength
	}

	headerBuf := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, err
	}

	if headerBuf[0] != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, headerBuf[0])
	}

	authLen := binary.BigEndian.Uint32(headerBuf[4:8])
	payloadLen := binary.BigEndian.Uint32(headerBuf[8:12])

	if authLen > MaxAuthTokenLength {
		return nil, fmt.Errorf("%w: auth length %d exceeds maximum %d", ErrAuthTokenTooLarge, authLen, MaxAuthTokenLength)
	}
	if payloadLen > maxPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds maximum %d", ErrPayloadTooLarge, payloadLen, maxPayload)
	}

	msg := &Message{Status: headerBuf[1]}
	if authLen > 0 {
		msg.AuthToken = make([]byte, authLen)
		if _, err := io.ReadFull(r, msg.AuthToken); err != nil {
			return nil, err
		}
	}
	if payloadLen > 0 {
		msg.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
