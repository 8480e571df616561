package ewf

import (
	"bytes"
	"compress/flate"
	"hash/adler32"
	"io"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/section"
)

// chunkCache holds exactly one decompressed chunk, per the
// "Ownership" rule ("the chunk cache holds a decompressed copy of
// exactly one chunk at a time; eviction is silent").
type chunkCache struct {
	index int
	data  []byte
	valid bool
}

func (c *chunkCache) get(index int) ([]byte, bool) {
	if c.valid && c.index == index {
		return c.data, true
	}
	return nil, false
}

func (c *chunkCache) set(index int, data []byte) {
	c.index = index
	c.data = data
	c.valid = true
}

// readChunk resolves chunk index into chunkBytes, implementing the read
// read path: cache lookup, pool fetch, decompress-or-verify,
// and the wipe-on-error policy on checksum mismatch.
func (h *Handle) readChunk(index int) ([]byte, error) {
	if cached, ok := h.cache.get(index); ok {
		return cached, nil
	}
	if h.aborted {
		return nil, ioerr.Errorf(ioerr.KindAborted, "read: aborted at chunk %d", index)
	}

	entry, ok := h.chunkTable.Lookup(index)
	if !ok {
		return nil, ioerr.Errorf(ioerr.KindOutOfBounds, "read: chunk %d out of range", index).With("chunk", index)
	}
	seg, ok := h.segments.get(entry.SegmentIndex)
	if !ok {
		return nil, ioerr.Errorf(ioerr.KindNotFound, "read: segment %d not open", entry.SegmentIndex).With("segment", entry.SegmentIndex)
	}

	packed := make([]byte, entry.PackedSize)
	if _, err := h.pool.ReadAt(seg.poolID, int64(entry.Offset), packed); err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "read: fetch chunk").With("chunk", index).With("segment", seg.number)
	}

	chunkBytes := int(h.media.ChunkSize)
	data, checksumOK := h.unpackChunk(packed, entry.Compressed, chunkBytes, index)
	if !checksumOK {
		if !h.cfg.WipeOnError {
			return nil, ioerr.Errorf(ioerr.KindChecksumMismatch, "read: chunk %d checksum mismatch", index).
				With("chunk", index).With("segment", seg.number)
		}
		h.log.Warnw("read: wiping chunk after checksum mismatch", "chunk", index, "segment", seg.number)
		data = make([]byte, chunkBytes)
		for i := range data {
			data[i] = h.cfg.WipeFillByte
		}
		start := uint32(index) * h.media.SectorsPerChunk
		h.checksumErrors.Ranges = append(h.checksumErrors.Ranges, section.SectorRange{
			StartSector: start,
			SectorCount: h.media.SectorsPerChunk,
		})
	}

	h.cache.set(index, data)
	return data, nil
}

// unpackChunk decompresses or verifies a packed chunk's trailing Adler-32,
// It never returns an error: a checksum
// failure is reported via the bool so the caller can apply wipe-on-error.
func (h *Handle) unpackChunk(packed []byte, compressed bool, chunkBytes, index int) ([]byte, bool) {
	if len(packed) < format.ChunkChecksumLength {
		return nil, false
	}
	body := packed[:len(packed)-format.ChunkChecksumLength]
	wantSum := uint32FromLE(packed[len(packed)-format.ChunkChecksumLength:])

	if compressed {
		if adler32.Checksum(body) != wantSum {
			return nil, false
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out := make([]byte, chunkBytes)
		n, err := io.ReadFull(r, out)
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, false
		}
		return out[:n], true
	}

	if adler32.Checksum(body) != wantSum {
		return nil, false
	}
	return body, true
}

func uint32FromLE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ReadAt implements io.ReaderAt over the logical media byte stream,
// satisfying the random-access contract regardless of
// the Handle's current cursor.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h.mode != modeRead {
		return 0, ioerr.Errorf(ioerr.KindInvalidArgument, "read: handle is not open for reading")
	}
	if off < 0 {
		return 0, ioerr.Errorf(ioerr.KindInvalidArgument, "read: negative offset %d", off)
	}
	mediaSize := int64(h.media.MediaSize)
	if off >= mediaSize {
		return 0, io.EOF
	}

	chunkBytes := int64(h.media.ChunkSize)
	total := 0
	for total < len(p) && off < mediaSize {
		chunkIndex := int(off / chunkBytes)
		inChunkOffset := off % chunkBytes

		data, err := h.readChunk(chunkIndex)
		if err != nil {
			return total, err
		}

		avail := int64(len(data)) - inChunkOffset
		if avail <= 0 {
			break
		}
		want := int64(len(p) - total)
		if want > avail {
			want = avail
		}
		if remaining := mediaSize - off; want > remaining {
			want = remaining
		}
		copy(p[total:], data[inChunkOffset:inChunkOffset+want])
		total += int(want)
		off += want
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}

// Read implements io.Reader at the Handle's internal cursor, advancing
// it by the number of bytes copied.
func (h *Handle) Read(p []byte) (int, error) {
	n, err := h.ReadAt(p, h.cursor)
	h.cursor += int64(n)
	return n, err
}

// Seek implements io.Seeker; SeekEnd is relative to the media size, per
// the media size.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = h.cursor
	case io.SeekEnd:
		base = int64(h.media.MediaSize)
	default:
		return 0, ioerr.Errorf(ioerr.KindInvalidArgument, "seek: invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, ioerr.Errorf(ioerr.KindInvalidArgument, "seek: resulting offset %d is negative", pos)
	}
	h.cursor = pos
	return pos, nil
}

