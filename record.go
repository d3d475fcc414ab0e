package goframed

import (
	"crypto/tls"
	"net"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// clientRecord holds the per-connection state owned by the registry
// while the connection is live. It exclusively owns the accepted socket
// and, in TLS mode, the TLS stream layered on top of it.
type clientRecord struct {
	identity string
	connID   string
	conn     net.Conn
	tlsConn  *tls.Conn

	closed atomic.Bool
}

func newClientRecord(conn net.Conn) *clientRecord {
	return &clientRecord{
		identity: conn.RemoteAddr().String(),
		connID:   ulid.Make().String(),
		conn:     conn,
	}
}

// stream returns the stream reads and writes go through: the TLS stream
// when present, the transport stream otherwise.
func (r *clientRecord) stream() net.Conn {
	if r.tlsConn != nil {
		return r.tlsConn
	}
	return r.conn
}

// close releases the record's streams and socket. Safe to call multiple
// times and concurrently with in-flight I/O; the second and later calls
// are no-ops.
func (r *clientRecord) close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.tlsConn != nil {
		// Closing the TLS stream also closes the underlying transport.
		return r.tlsConn.Close()
	}
	return r.conn.Close()
}
