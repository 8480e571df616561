package ewf

import (
	"crypto/md5"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/media"
)

func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestCreateWriteCloseOpenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(4096)

	h, err := Create(path, uint64(len(data)),
		WithSectorsPerChunk(8), WithBytesPerSector(512),
		WithHeaderValues(media.HeaderValues{CaseNumber: "2026-07", ExaminerName: "A. Examiner"}),
	)
	require.NoError(t, err)
	n, err := h.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()

	got := make([]byte, len(data))
	_, err = io.ReadFull(oh, got)
	require.NoError(t, err)
	require.Equal(t, data, got)

	want := md5.Sum(data)
	require.Equal(t, want, oh.HashValues().MD5)
	require.Equal(t, "2026-07", oh.HeaderValues().CaseNumber)
	require.Equal(t, "A. Examiner", oh.HeaderValues().ExaminerName)
}

func TestReadAtIsRandomAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(8192)

	h, err := Create(path, uint64(len(data)), WithSectorsPerChunk(4), WithBytesPerSector(512))
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()

	buf := make([]byte, 100)
	n, err := oh.ReadAt(buf, 5000)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.Equal(t, data[5000:5100], buf)
}

func TestSegmentRolloverProducesMultipleSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(512 * 40) // 40 chunks of 512 bytes each

	h, err := Create(path, uint64(len(data)),
		WithSectorsPerChunk(1), WithBytesPerSector(512),
		WithSegmentSize(4096), // small ceiling forces several rollovers
	)
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()

	require.Greater(t, len(oh.Segments()), 1, "segment ceiling should have forced a rollover")

	got := make([]byte, len(data))
	_, err = io.ReadFull(oh, got)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestV2ContainerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(2048)

	h, err := Create(path, uint64(len(data)),
		WithFormat(format.VariantV2), WithSectorsPerChunk(4), WithBytesPerSector(512),
	)
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()

	require.Equal(t, format.VariantV2, oh.Variant())
	got := make([]byte, len(data))
	_, err = io.ReadFull(oh, got)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestGlobDiscoversAllSegmentsAfterRollover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(512 * 20)

	h, err := Create(path, uint64(len(data)),
		WithSectorsPerChunk(1), WithBytesPerSector(512), WithSegmentSize(4096),
	)
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	paths, err := Glob(path)
	require.NoError(t, err)
	require.Greater(t, len(paths), 1)

	oh, err := OpenFiles(paths)
	require.NoError(t, err)
	defer oh.Close()
	got := make([]byte, len(data))
	_, err = io.ReadFull(oh, got)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestChecksumMismatchWipeOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(4096)

	h, err := Create(path, uint64(len(data)), WithSectorsPerChunk(8), WithBytesPerSector(512))
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	// Locate chunk 0's absolute on-disk offset via a throwaway read-only
	// handle, then corrupt one byte of its packed body directly.
	probe, err := Open(path)
	require.NoError(t, err)
	entry, ok := probe.chunkTable.Lookup(0)
	require.True(t, ok)
	seg, ok := probe.segments.get(entry.SegmentIndex)
	require.True(t, ok)
	segPath := seg.path
	require.NoError(t, probe.Close())

	f, err := os.OpenFile(segPath, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xff}, int64(entry.Offset))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	strict, err := Open(path)
	require.NoError(t, err)
	_, err = strict.ReadAt(make([]byte, len(data)), 0)
	require.Error(t, err, "a checksum mismatch must fail the read without wipe-on-error")
	require.NoError(t, strict.Close())

	wiped, err := Open(path, WithWipeOnError(0))
	require.NoError(t, err)
	buf := make([]byte, len(data))
	n, err := wiped.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.True(t, isAllZero(buf[:wiped.media.ChunkSize]))
	require.NotEmpty(t, wiped.ChecksumErrorRanges())
	require.NoError(t, wiped.Close())
}

func TestWriteRejectsWhenNotInWriteMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(512)
	h, err := Create(path, uint64(len(data)), WithSectorsPerChunk(1), WithBytesPerSector(512))
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()
	_, err = oh.Write([]byte("nope"))
	require.Error(t, err)
}

func TestAbortStopsFurtherReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(512)
	h, err := Create(path, uint64(len(data)), WithSectorsPerChunk(1), WithBytesPerSector(512))
	require.NoError(t, err)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()
	oh.Abort()
	_, err = oh.ReadAt(make([]byte, 10), 0)
	require.Error(t, err)
}

func TestSessionsAndAcquisitionErrorsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.E01")
	data := patternBytes(512)

	h, err := Create(path, uint64(len(data)), WithSectorsPerChunk(1), WithBytesPerSector(512))
	require.NoError(t, err)
	h.AddSession(0, 100)
	h.RecordAcquisitionError(50, 2)
	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	oh, err := Open(path)
	require.NoError(t, err)
	defer oh.Close()
	require.Len(t, oh.Sessions().Ranges, 1)
	require.Len(t, oh.ChecksumErrorRanges(), 1)
	require.Equal(t, uint32(0), oh.Sessions().Ranges[0].StartSector)
	require.Equal(t, uint32(50), oh.ChecksumErrorRanges()[0].StartSector)
}
