package goframed

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(t *testing.T) (*clientRecord, net.Conn) {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return newClientRecord(server), client
}

func TestRegistryInsertRemove(t *testing.T) {
	t.Run("insert and lookup", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		prev := reg.insert(rec)
		assert.Nil(t, prev)
		assert.Same(t, rec, reg.get(rec.identity))
		assert.Equal(t, int64(1), reg.count())
		assert.Contains(t, reg.list(), rec.identity)
	})

	t.Run("remove decrements counter", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		reg.insert(rec)
		assert.True(t, reg.remove(rec))
		assert.Nil(t, reg.get(rec.identity))
		assert.Equal(t, int64(0), reg.count())
	})

	t.Run("double remove is a no-op", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		reg.insert(rec)
		require.True(t, reg.remove(rec))
		assert.False(t, reg.remove(rec))
		assert.Equal(t, int64(0), reg.count())
	})

	t.Run("identity reuse replaces and disposes prior record", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		// Same identity, different record (simulates a reconnect racing
		// the old reader's exit path).
		replacement := &clientRecord{identity: rec.identity, conn: rec.conn}

		reg.insert(rec)
		reg.markPending(rec.identity)

		prev := reg.insert(replacement)
		assert.Same(t, rec, prev)
		assert.True(t, rec.closed.Load())
		assert.Same(t, replacement, reg.get(rec.identity))
		assert.Equal(t, int64(1), reg.count())
		assert.False(t, reg.isPending(rec.identity))

		// The displaced reader's exit path must not evict the new record.
		assert.False(t, reg.remove(rec))
		assert.Same(t, replacement, reg.get(rec.identity))
	})
}

func TestRegistryPending(t *testing.T) {
	t.Run("pending entries are registry members", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		reg.insert(rec)
		reg.markPending(rec.identity)
		assert.True(t, reg.isPending(rec.identity))

		reg.clearPending(rec.identity)
		assert.False(t, reg.isPending(rec.identity))
		assert.Same(t, rec, reg.get(rec.identity))
	})

	t.Run("remove clears pending state", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		reg.insert(rec)
		reg.markPending(rec.identity)
		reg.remove(rec)
		assert.False(t, reg.isPending(rec.identity))
	})

	t.Run("pendingBefore returns only expired entries", func(t *testing.T) {
		reg := newRegistry()
		rec, _ := testRecord(t)

		reg.insert(rec)
		reg.markPending(rec.identity)

		assert.Empty(t, reg.pendingBefore(time.Now().Add(-time.Minute)))

		expired := reg.pendingBefore(time.Now().Add(time.Minute))
		assert.Equal(t, []string{rec.identity}, expired)
	})
}

func TestClientRecordClose(t *testing.T) {
	t.Run("close is idempotent", func(t *testing.T) {
		rec, _ := testRecord(t)

		require.NoError(t, rec.close())
		assert.NoError(t, rec.close())
		assert.NoError(t, rec.close())
	})

	t.Run("record carries correlation id", func(t *testing.T) {
		rec, _ := testRecord(t)
		assert.NotEmpty(t, rec.connID)
	})
}
