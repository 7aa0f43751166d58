package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetRoundTrip(t *testing.T) {
	m := NewMemory()
	key := []byte("some-key")
	val := []byte("some-value")

	require.Equal(t, 0, m.Put(key, val))

	dst := make([]byte, len(val))
	n, code := m.Get(key, dst)
	require.Equal(t, 0, code)
	require.Equal(t, len(val), n)
	require.Equal(t, val, dst)
}

func TestMemory_GetAbsentKeyReturnsNonExist(t *testing.T) {
	m := NewMemory()
	dst := make([]byte, 8)
	n, code := m.Get([]byte("missing"), dst)
	require.Equal(t, 5, code)
	require.Equal(t, 0, n)
}

func TestMemory_DoubleInsertIsIdempotentSuccess(t *testing.T) {
	m := NewMemory()
	key := []byte("dup-key")

	require.Equal(t, 0, m.Put(key, []byte("first")))
	require.Equal(t, 0, m.Put(key, []byte("second")), "overwrite semantics: second Put on same key must still succeed")

	dst := make([]byte, 16)
	n, code := m.Get(key, dst)
	require.Equal(t, 0, code)
	require.Equal(t, "second", string(dst[:n]))
}

func TestMemory_DeleteThenGetIsNonExist(t *testing.T) {
	m := NewMemory()
	key := []byte("to-delete")
	m.Put(key, []byte("x"))

	require.Equal(t, 0, m.Delete(key))
	require.Equal(t, 5, m.Delete(key), "second Delete of the same key must report not-found")

	dst := make([]byte, 4)
	_, code := m.Get(key, dst)
	require.Equal(t, 5, code)
}

func TestMemory_GetTruncatesToDestinationCapacity(t *testing.T) {
	m := NewMemory()
	key := []byte("long-value-key")
	m.Put(key, []byte("0123456789"))

	dst := make([]byte, 4)
	n, code := m.Get(key, dst)
	require.Equal(t, 0, code)
	require.Equal(t, 4, n)
	require.Equal(t, "0123", string(dst))
}

func TestMemory_DeleteDBClearsEverything(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 200; i++ {
		m.Put([]byte{byte(i)}, []byte("v"))
	}
	require.NoError(t, m.DeleteDB())

	dst := make([]byte, 1)
	_, code := m.Get([]byte{5}, dst)
	require.Equal(t, 5, code)
}
