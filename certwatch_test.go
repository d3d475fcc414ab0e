package goframed

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertWatcher(t *testing.T) {
	t.Run("initial load", func(t *testing.T) {
		certFile, keyFile := writeTestCertFiles(t)

		watcher, err := NewCertWatcher(certFile, keyFile)
		require.NoError(t, err)

		cert, err := watcher.GetCertificate(nil)
		require.NoError(t, err)
		assert.NotNil(t, cert)
	})

	t.Run("missing files fail", func(t *testing.T) {
		_, err := NewCertWatcher("missing.crt", "missing.key")
		assert.Error(t, err)
	})

	t.Run("reload picks up rotated certificate", func(t *testing.T) {
		certFile, keyFile := writeTestCertFiles(t)

		watcher, err := NewCertWatcher(certFile, keyFile)
		require.NoError(t, err)

		before, err := watcher.GetCertificate(nil)
		require.NoError(t, err)

		// Rotate the files in place and reload directly; the fsnotify
		// loop drives the same path in production.
		rotateTestCertFiles(t, certFile, keyFile)
		require.NoError(t, watcher.reload())

		after, err := watcher.GetCertificate(nil)
		require.NoError(t, err)
		assert.NotEqual(t, before.Certificate[0], after.Certificate[0])
	})

	t.Run("tls config requests client certs", func(t *testing.T) {
		certFile, keyFile := writeTestCertFiles(t)

		watcher, err := NewCertWatcher(certFile, keyFile)
		require.NoError(t, err)

		config := watcher.TLSConfig()
		assert.NotNil(t, config.GetCertificate)
		assert.Equal(t, tls.RequestClientCert, config.ClientAuth)
		assert.Equal(t, uint16(tls.VersionTLS12), config.MinVersion)
	})
}
