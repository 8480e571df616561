package section

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evidencekit/ewf/internal/pool"
)

func newTestPool(t *testing.T) (*pool.Pool, pool.ID) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.bin")
	p := pool.New(4, nil)
	id := p.Open(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	return p, id
}

func TestDescriptorV1RoundTrip(t *testing.T) {
	p, id := newTestPool(t)

	require.NoError(t, WriteDescriptorV1(p, id, 0, "header", 10, 86))
	d, err := ReadDescriptorV1(p, id, 0)
	require.NoError(t, err)
	require.Equal(t, "header", d.Type)
	require.Equal(t, uint64(10), d.PayloadSize)
	require.Equal(t, uint64(86), d.NextOffset)
	require.Equal(t, uint64(76), d.PayloadOffset)
}

func TestDescriptorV1TerminalSelfPointer(t *testing.T) {
	p, id := newTestPool(t)

	require.NoError(t, WriteDescriptorV1(p, id, 0, "done", 0, 0))
	d, err := ReadDescriptorV1(p, id, 0)
	require.NoError(t, err)
	require.Equal(t, d.NextOffset, d.FileOffset, "terminal section must self-point")
}

func TestDescriptorV1ChecksumMismatch(t *testing.T) {
	p, id := newTestPool(t)
	require.NoError(t, WriteDescriptorV1(p, id, 0, "header", 10, 86))

	// Corrupt a byte inside the descriptor (the type field) without
	// touching the trailing checksum.
	corrupt := []byte("X")
	_, err := p.WriteAt(id, 0, corrupt)
	require.NoError(t, err)

	_, err = ReadDescriptorV1(p, id, 0)
	require.Error(t, err)
}

func TestDescriptorV2RoundTrip(t *testing.T) {
	p, id := newTestPool(t)
	payload := []byte("volume payload bytes")

	next, err := WriteDescriptorV2(p, id, 0, "volume", payload, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload))+76, next)

	d, err := ReadDescriptorV2(p, id, 0, int64(len(payload)))
	require.NoError(t, err)
	require.Equal(t, "volume", d.Type)
	require.Equal(t, uint64(len(payload)), d.PayloadSize)
}

func TestDescriptorV2RejectsEncrypted(t *testing.T) {
	p, id := newTestPool(t)
	payload := []byte("secret")

	_, err := WriteDescriptorV2(p, id, 0, "data", payload, DataFlagEncrypted, 0)
	require.NoError(t, err)

	_, err = ReadDescriptorV2(p, id, 0, int64(len(payload)))
	require.Error(t, err)
}

func TestReadPayloadEmpty(t *testing.T) {
	p, id := newTestPool(t)
	require.NoError(t, WriteDescriptorV1(p, id, 0, "next", 0, 0))
	d, err := ReadDescriptorV1(p, id, 0)
	require.NoError(t, err)

	payload, err := ReadPayload(p, id, d)
	require.NoError(t, err)
	require.Empty(t, payload)
}
