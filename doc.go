// Package goframed implements a framed message-passing protocol over TCP
// with optional TLS termination and an optional shared-secret handshake.
// It provides both server and client SDK interfaces for exchanging
// length-delimited messages between many concurrent peers.
package goframed
