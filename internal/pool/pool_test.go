package pool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteAppendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.bin")

	p := New(4, nil)
	id := p.Open(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)

	at, err := p.Append(id, []byte("hello "))
	require.NoError(t, err)
	require.Equal(t, int64(0), at)

	at, err = p.Append(id, []byte("world"))
	require.NoError(t, err)
	require.Equal(t, int64(6), at)

	buf := make([]byte, 11)
	n, err := p.ReadAt(id, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello world", string(buf))

	size, err := p.Size(id)
	require.NoError(t, err)
	require.Equal(t, int64(11), size)
}

func TestEvictionPreservesLogicalOffset(t *testing.T) {
	dir := t.TempDir()

	// maxOpen of 1 forces every new Open to evict the previous entry's
	// live handle, the way a segmentation planner working across many
	// segment files would exhaust the fd budget.
	p := New(1, nil)

	pathA := filepath.Join(dir, "a.bin")
	idA := p.Open(pathA, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	_, err := p.Append(idA, []byte("aaaa"))
	require.NoError(t, err)

	pathB := filepath.Join(dir, "b.bin")
	idB := p.Open(pathB, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	_, err = p.Append(idB, []byte("bb"))
	require.NoError(t, err)
	require.Equal(t, 1, p.OpenCount(), "opening b should have evicted a's handle under the 1-file budget")

	// Appending to a again must reopen it and resume from offset 4, not
	// clobber the existing bytes.
	at, err := p.Append(idA, []byte("zzzz"))
	require.NoError(t, err)
	require.Equal(t, int64(4), at)

	buf := make([]byte, 8)
	_, err = p.ReadAt(idA, 0, buf)
	require.NoError(t, err)
	require.Equal(t, "aaaazzzz", string(buf))
}

func TestCloseInvalidatesID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.bin")
	p := New(2, nil)
	id := p.Open(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	require.NoError(t, p.Close(id))

	_, err := p.ReadAt(id, 0, make([]byte, 1))
	require.Error(t, err)
}

func TestCloseAllReleasesEveryEntry(t *testing.T) {
	dir := t.TempDir()
	p := New(4, nil)
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, "f.bin")
		id := p.Open(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
		_, err := p.Append(id, []byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, p.CloseAll())
	require.Equal(t, 0, p.OpenCount())
}

func TestPathReportsOpenedPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.bin")
	p := New(2, nil)
	id := p.Open(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	require.Equal(t, path, p.Path(id))
}
