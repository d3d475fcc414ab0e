package goframed

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// tlsHandshakeTimeout bounds the TLS handshake so a stalled peer
// cannot hold the initializer forever.
const tlsHandshakeTimeout = 30 * time.Second

// initConnection runs once per accepted connection: TLS handshake and
// policy checks, registry insertion, auth prompt, connected callback,
// then the read loop. Any failure before registration disposes the
// record without starting a reader.
func (s *Server) initConnection(rec *clientRecord) {
	defer s.wg.Done()

	if s.serverTLS != nil {
		if !s.handshakeTLS(rec) {
			s.stats.tlsFailures.Add(1)
			rec.close()
			return
		}
	}

	s.registry.insert(rec)
	s.logger.Info("client connected", "client", rec.identity, "conn_id", rec.connID)

	if s.secret != "" {
		s.registry.markPending(rec.identity)
		if err := s.writeRecord(context.Background(), rec, statusMessage(StatusAuthRequired, authRequiredText)); err != nil {
			// Connection already dead; the read loop below observes it
			// and runs the exit path.
			s.logger.Debug("auth prompt failed", "client", rec.identity, "error", err)
		}
	}

	if s.onConnected != nil {
		handler := s.onConnected
		identity := rec.identity
		go handler(identity)
	}

	s.readLoop(rec)
}

// handshakeTLS wraps the transport stream in a TLS server stream and
// verifies the negotiated session against the configured policy.
// Returns false when the reader must not be started.
func (s *Server) handshakeTLS(rec *clientRecord) bool {
	tlsConn := tls.Server(rec.conn, s.serverTLS)

	tlsConn.SetDeadline(time.Now().Add(tlsHandshakeTimeout))
	if err := tlsConn.Handshake(); err != nil {
		if isExpectedHandshakeError(err) {
			s.logger.Debug("tls handshake aborted", "client", rec.identity, "error", err)
		} else {
			s.logger.Error("tls handshake failed", "client", rec.identity, "error", err)
		}
		return false
	}
	tlsConn.SetDeadline(time.Time{})

	state := tlsConn.ConnectionState()
	if !state.HandshakeComplete || state.Version < tls.VersionTLS12 {
		s.logger.Error("tls session rejected", "client", rec.identity,
			"error", ErrTLSPolicy, "version", tls.VersionName(state.Version))
		return false
	}
	if s.mutualAuth && len(state.PeerCertificates) == 0 {
		s.logger.Error("tls session rejected: no client certificate",
			"client", rec.identity, "error", ErrTLSPolicy)
		return false
	}

	if len(state.PeerCertificates) > 0 {
		s.logger.Debug("client certificate presented", "client", rec.identity,
			"subject", state.PeerCertificates[0].Subject.String())
	}

	rec.tlsConn = tlsConn
	return true
}

// readLoop blocks on framed reads until I/O failure, peer close, or
// shutdown. Messages from identities still pending the shared-secret
// gate are handled inline and never reach the message handler.
func (s *Server) readLoop(rec *clientRecord) {
	defer s.teardown(rec)

	stream := rec.stream()
	for {
		select {
		case <-s.shutdownCh:
			return
		default:
		}

		if s.readTimeout > 0 {
			stream.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		msg, err := ReadMessage(stream, s.maxPayload)
		if err != nil {
			if !isDisconnectError(err) {
				s.logger.Warn("read failed", "client", rec.identity, "conn_id", rec.connID, "error", err)
			}
			return
		}

		s.stats.messagesReceived.Add(1)
		s.stats.bytesReceived.Add(uint64(HeaderLength + len(msg.AuthToken) + len(msg.Payload)))

		if s.debug {
			s.logger.Debug("message received", "client", rec.identity,
				"conn_id", rec.connID, "status", msg.Status, "bytes", len(msg.Payload))
		}

		if s.secret != "" && s.registry.isPending(rec.identity) {
			s.handleAuthMessage(rec, msg)
			continue
		}

		if s.onMessage != nil {
			handler := s.onMessage
			identity := rec.identity
			payload := msg.Payload
			go handler(identity, payload)
		}
	}
}

// handleAuthMessage drives the shared-secret gate for one inbound
// message from an unauthenticated client. The connection stays open on
// every outcome; only the pending state and the reply differ.
func (s *Server) handleAuthMessage(rec *clientRecord, msg *Message) {
	if msg.Status != StatusAuthRequired {
		// Not an auth attempt: discard the payload and re-prompt.
		s.writeRecord(context.Background(), rec, statusMessage(StatusAuthRequired, authRequiredText))
		return
	}

	if len(msg.AuthToken) == 0 {
		s.stats.authFailures.Add(1)
		s.logger.Warn("authentication attempt without material", "client", rec.identity)
		s.writeRecord(context.Background(), rec, statusMessage(StatusAuthFailure, authNoMaterial))
		return
	}

	presented := strings.TrimSpace(string(msg.AuthToken))
	if presented != strings.TrimSpace(s.secret) {
		s.stats.authFailures.Add(1)
		s.logger.Warn("authentication declined", "client", rec.identity)
		s.writeRecord(context.Background(), rec, statusMessage(StatusAuthFailure, authDeclinedText))
		return
	}

	s.registry.clearPending(rec.identity)
	s.stats.authSuccesses.Add(1)
	s.logger.Info("client authenticated", "client", rec.identity, "conn_id", rec.connID)
	s.writeRecord(context.Background(), rec, statusMessage(StatusAuthSuccess, authSuccessText))
}

// teardown is the reader exit path: remove from the registry and the
// pending set, fire the disconnected callback, dispose the record. It
// runs on every loop break; a reader whose record was already displaced
// by an identity reuse performs only the idempotent disposal.
func (s *Server) teardown(rec *clientRecord) {
	removed := s.registry.remove(rec)

	if removed {
		s.stats.disconnects.Add(1)
		s.logger.Info("client disconnected", "client", rec.identity, "conn_id", rec.connID)
		if s.onDisconnected != nil {
			handler := s.onDisconnected
			identity := rec.identity
			go handler(identity)
		}
	}

	rec.close()
}

// authSweeper disconnects clients whose shared-secret grace period has
// expired. Runs only when both a secret and an auth timeout are
// configured.
func (s *Server) authSweeper() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.authTimeout)
			for _, identity := range s.registry.pendingBefore(cutoff) {
				if rec := s.registry.get(identity); rec != nil {
					s.logger.Warn("authentication grace period expired", "client", identity)
					rec.close()
				}
			}
		}
	}
}

// isDisconnectError reports whether err is an ordinary peer-close
// outcome that needs no error-level logging.
func isDisconnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}

// isExpectedHandshakeError reports whether err is a known handshake
// I/O failure (peer closed the transport, reset, malformed record,
// handshake timeout) that logs at reduced verbosity.
func isExpectedHandshakeError(err error) bool {
	if isDisconnectError(err) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
