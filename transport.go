package goframed

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Conn represents a network connection carrying framed messages.
type Conn interface {
	net.Conn
}

// TLSConn is a Conn that exposes its TLS connection state.
type TLSConn interface {
	net.Conn

	// ConnectionState returns basic TLS details about the connection.
	ConnectionState() tls.ConnectionState
}

// Listener represents a network listener for accepting framed
// message connections.
type Listener interface {
	// Accept waits for and returns the next connection to the listener.
	Accept() (Conn, error)

	// Close closes the listener.
	Close() error

	// Addr returns the listener's network address.
	Addr() net.Addr
}

// Dialer represents a dialer for establishing framed message connections.
type Dialer interface {
	// Dial connects to the address on the named network.
	Dial(ctx context.Context, network, address string) (Conn, error)
}

// tcpConn wraps a net.Conn to implement Conn interface.
type tcpConn struct {
	net.Conn
}

// tcpListener wraps a net.Listener to implement Listener interface.
type tcpListener struct {
	net.Listener
}

// Accept accepts a connection from the listener.
func (l *tcpListener) Accept() (Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &tcpConn{Conn: conn}, nil
}

// TCPDialer implements Dialer for TCP connections.
type TCPDialer struct {
	// Timeout is the maximum duration for the dial to complete.
	// If zero, no timeout is applied.
	Timeout time.Duration

	// LocalAddr is the local address to use when dialing.
	// If nil, a local address is automatically chosen.
	LocalAddr *net.TCPAddr
}

// Dial connects to the address using TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (Conn, error) {
	dialer := &net.Dialer{
		Timeout:   d.Timeout,
		LocalAddr: d.LocalAddr,
	}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return &tcpConn{Conn: conn}, nil
}

// TLSDialer implements Dialer for TLS connections.
type TLSDialer struct {
	// Timeout is the maximum duration for the dial to complete.
	Timeout time.Duration

	// Config is the TLS configuration to use.
	// If nil, a default configuration is used.
	Config *tls.Config
}

// Dial connects to the address using TLS.
func (d *TLSDialer) Dial(ctx context.Context, network, address string) (Conn, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{
			Timeout: d.Timeout,
		},
		Config: d.Config,
	}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ListenTCP creates a TCP listener on the specified address.
func ListenTCP(address string) (Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return &tcpListener{Listener: ln}, nil
}

// DefaultTCPDialer returns a TCP dialer with default settings.
func DefaultTCPDialer() *TCPDialer {
	return &TCPDialer{
		Timeout: 30 * time.Second,
	}
}

// DefaultTLSDialer returns a TLS dialer with default settings.
func DefaultTLSDialer(config *tls.Config) *TLSDialer {
	return &TLSDialer{
		Timeout: 30 * time.Second,
		Config:  config,
	}
}

// NewTLSConfig creates a server TLS config from a PEM certificate and
// key pair. Client certificates are always requested so that servers
// can log opportunistic client identities without hard-failing clients
// that have none; mutual-auth enforcement is a separate server policy.
func NewTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequestClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// NewTLSConfigPKCS12 creates a server TLS config from a PKCS#12
// identity file (certificate, key, and any CA chain) protected by
// password.
func NewTLSConfigPKCS12(path, password string) (*tls.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	key, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PKCS#12 identity: %w", err)
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}
	for _, ca := range caCerts {
		tlsCert.Certificate = append(tlsCert.Certificate, ca.Raw)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		ClientAuth:   tls.RequestClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// NewTLSClientConfig creates a TLS config for client connections.
func NewTLSClientConfig(serverName string, insecureSkipVerify bool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

// writeAll writes the whole buffer, handling partial writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
