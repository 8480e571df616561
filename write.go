package ewf

import (
	"bytes"
	"compress/flate"
	"crypto/md5"
	"crypto/sha1"
	"hash"
	"hash/adler32"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/media"
	"github.com/evidencekit/ewf/internal/pool"
	"github.com/evidencekit/ewf/internal/section"
)

// chunkWriter is the segmentation planner's live state while a Handle is
// open for writing. One chunkWriter spans the whole
// image; it is reset per-segment by openSegmentForWrite and per-table-
// block by startSectorsSection.
type chunkWriter struct {
	segNumber    int
	poolID       pool.ID
	path         string
	sectorsDesc  int64 // v1: descriptor offset. v2: shadow-header offset.
	sectorsStart int64 // payload start offset

	tableEntries []section.RawTableEntry
	chunkIndex   int
	prevOffsetV2 uint64

	emptySentinel []byte
	md5State      hash.Hash
	sha1State     hash.Hash
}

func newChunkWriter() *chunkWriter {
	return &chunkWriter{md5State: md5.New(), sha1State: sha1.New()}
}

const osCreateFlags = os.O_CREATE | os.O_RDWR | os.O_TRUNC

func segmentLetter(smart bool) byte {
	if smart {
		return 's'
	}
	return 'E'
}

// openSegmentForWrite starts segment number n: creates its file, writes
// the file header and the header/header2/volume preamble, and opens a
// fresh `sectors` section ready for chunk data.
func (h *Handle) openSegmentForWrite(n int) error {
	ext, err := extensionForIndex(segmentLetter(h.smart), false, n)
	if err != nil {
		return err
	}
	path := h.stem + ext
	id := h.pool.Open(path, osCreateFlags, 0o644)

	h.w.segNumber = n
	h.w.poolID = id
	h.w.path = path
	h.w.tableEntries = nil

	if h.variant == format.VariantV2 {
		if err := writeFileHeaderV2(h.pool, id, n); err != nil {
			return err
		}
	} else {
		if err := writeFileHeaderV1(h.pool, id, n, h.smart); err != nil {
			return err
		}
	}

	if err := h.writePreamble(id); err != nil {
		return err
	}
	h.log.Infow("write: opened segment", "segment", n, "path", path)
	return h.startSectorsSection()
}

// writePreamble emits the header, header2 and volume (v2: disk) sections
// at the start of every segment; no xheader section is written.
func (h *Handle) writePreamble(id pool.ID) error {
	headerMap := h.header.ToHeaderMap()

	headerPayload, err := section.EncodeHeader(headerMap, section.HeaderKindHeader, h.cfg.HeaderCodepage, h.cfg.CompressionLevel)
	if err != nil {
		return err
	}
	if err := h.writeOneShot(id, format.TypeHeader, headerPayload, false); err != nil {
		return err
	}

	header2Payload, err := section.EncodeHeader(headerMap, section.HeaderKindHeader2, h.cfg.HeaderCodepage, h.cfg.CompressionLevel)
	if err != nil {
		return err
	}
	if err := h.writeOneShot(id, format.TypeHeader2, header2Payload, false); err != nil {
		return err
	}

	volumePayload := section.EncodeVolume(h.media.ToVolume())
	volumeType := format.TypeVolume
	if h.variant == format.VariantV2 {
		volumeType = format.TypeDisk
	}
	return h.writeOneShot(id, volumeType, volumePayload, false)
}

// writeOneShot writes a section whose full payload is already in
// memory, dispatching on the container variant. terminal marks the
// section as the chain's last (v1 self-pointer only; ignored for v2).
func (h *Handle) writeOneShot(id pool.ID, sectionType string, payload []byte, terminal bool) error {
	if h.variant == format.VariantV2 {
		next, err := writeShadowAndDescriptorV2(h.pool, id, mustSize(h.pool, id), sectionType, payload, 0, h.w.prevOffsetV2)
		if err != nil {
			return err
		}
		h.w.prevOffsetV2 = uint64(next) - format.SectionDescriptorV2Length
		return nil
	}
	offset, err := h.pool.Size(id)
	if err != nil {
		return err
	}
	next := uint64(offset) + format.SectionDescriptorV1Length + uint64(len(payload))
	selfOrNext := next
	if terminal {
		selfOrNext = uint64(offset)
	}
	if err := section.WriteDescriptorV1(h.pool, id, offset, sectionType, uint64(len(payload)), selfOrNext); err != nil {
		return err
	}
	_, err = h.pool.WriteAt(id, offset+format.SectionDescriptorV1Length, payload)
	if err != nil {
		return ioerr.Wrap(ioerr.KindIO, err, "write: section payload "+sectionType)
	}
	return nil
}

func mustSize(p *pool.Pool, id pool.ID) int64 {
	n, _ := p.Size(id)
	return n
}

// startSectorsSection opens a fresh `sectors` section: a placeholder
// descriptor (v1) or shadow length header (v2) whose real size is
// back-patched by closeSectorsSection once the table block it backs is
// full.
func (h *Handle) startSectorsSection() error {
	offset, err := h.pool.Size(h.w.poolID)
	if err != nil {
		return err
	}
	if h.variant == format.VariantV2 {
		placeholder := make([]byte, v2ShadowHeaderLength)
		if _, err := h.pool.WriteAt(h.w.poolID, offset, placeholder); err != nil {
			return ioerr.Wrap(ioerr.KindIO, err, "write: sectors shadow placeholder")
		}
		h.w.sectorsDesc = offset
		h.w.sectorsStart = offset + v2ShadowHeaderLength
		return nil
	}
	if err := section.WriteDescriptorV1(h.pool, h.w.poolID, offset, h.sectorsSectionType(), 0, uint64(offset)); err != nil {
		return err
	}
	h.w.sectorsDesc = offset
	h.w.sectorsStart = offset + format.SectionDescriptorV1Length
	return nil
}

// closeSectorsSection back-patches the `sectors` section's descriptor
// now that its final size is known, returning the offset the following
// `table` section should start at.
func (h *Handle) closeSectorsSection() (int64, error) {
	end, err := h.pool.Size(h.w.poolID)
	if err != nil {
		return 0, err
	}
	size := uint64(end) - uint64(h.w.sectorsStart)
	if h.variant == format.VariantV2 {
		lenBuf := make([]byte, v2ShadowHeaderLength)
		putUint64LE(lenBuf, size)
		if _, err := h.pool.WriteAt(h.w.poolID, h.w.sectorsDesc, lenBuf); err != nil {
			return 0, ioerr.Wrap(ioerr.KindIO, err, "write: patch sectors shadow length")
		}
		next, err := section.WriteDescriptorV2Trailer(h.pool, h.w.poolID, h.w.sectorsStart, size, h.sectorsSectionType(), 0, h.w.prevOffsetV2)
		if err != nil {
			return 0, err
		}
		h.w.prevOffsetV2 = uint64(next) - format.SectionDescriptorV2Length
		return next, nil
	}
	if err := section.WriteDescriptorV1(h.pool, h.w.poolID, h.w.sectorsDesc, h.sectorsSectionType(), size, uint64(end)); err != nil {
		return 0, err
	}
	return end, nil
}

// sectorsSectionType and tableSectionType name the sections
// openSegmentForWrite/flushTableBlock emit, switching to v2's
// sector_data/sector_table names under that variant so loadTables can
// find them again on read.
func (h *Handle) sectorsSectionType() string {
	if h.variant == format.VariantV2 {
		return format.TypeSectorData
	}
	return format.TypeSectors
}

func (h *Handle) tableSectionType() string {
	if h.variant == format.VariantV2 {
		return format.TypeSectorTable
	}
	return format.TypeTable
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// writeChunk compresses (or passes through) one chunk of media data,
// rolling the segment or table block over first if required, and
// appends it to the currently open `sectors` section.
func (h *Handle) writeChunk(raw []byte) error {
	if h.aborted {
		return ioerr.Errorf(ioerr.KindAborted, "write: aborted before chunk %d", h.w.chunkIndex)
	}

	packed, compressed, err := h.packChunk(raw)
	if err != nil {
		return err
	}
	if err := h.maybeRollSegment(len(packed)); err != nil {
		return err
	}
	if len(h.w.tableEntries) >= format.MaxTableBlockEntries {
		if err := h.flushTableBlock(); err != nil {
			return err
		}
		if err := h.startSectorsSection(); err != nil {
			return err
		}
	}

	at, err := h.pool.Append(h.w.poolID, packed)
	if err != nil {
		return ioerr.Wrap(ioerr.KindIO, err, "write: append chunk").With("chunk", h.w.chunkIndex)
	}
	h.w.tableEntries = append(h.w.tableEntries, section.RawTableEntry{Offset: uint64(at), Compressed: compressed})
	h.w.chunkIndex++
	h.w.md5State.Write(raw)
	h.w.sha1State.Write(raw)
	h.mediaBytesWritten += uint64(len(raw))
	return nil
}

// packChunk applies the configured compression policy to one chunk,
// returning the packed on-disk bytes (payload + trailing Adler-32) and
// whether the result is compressed.
func (h *Handle) packChunk(raw []byte) ([]byte, bool, error) {
	if h.cfg.CompressionFlags&format.CompressionFlagEmptyBlock != 0 && isAllZero(raw) {
		sentinel, err := h.emptyBlockSentinel()
		if err != nil {
			return nil, false, err
		}
		return appendChecksum(sentinel), true, nil
	}
	if h.cfg.CompressionLevel == format.CompressionNone {
		return appendChecksum(raw), false, nil
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, section.ZlibLevel(h.cfg.CompressionLevel))
	if err != nil {
		return nil, false, ioerr.Wrap(ioerr.KindInvalidArgument, err, "write: flate writer")
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, false, ioerr.Wrap(ioerr.KindIO, err, "write: compress chunk")
	}
	if err := w.Close(); err != nil {
		return nil, false, ioerr.Wrap(ioerr.KindIO, err, "write: close flate writer")
	}
	if buf.Len() >= len(raw) {
		return appendChecksum(raw), false, nil
	}
	return appendChecksum(buf.Bytes()), true, nil
}

func appendChecksum(body []byte) []byte {
	sum := adler32.Checksum(body)
	out := make([]byte, len(body)+format.ChunkChecksumLength)
	copy(out, body)
	out[len(body)] = byte(sum)
	out[len(body)+1] = byte(sum >> 8)
	out[len(body)+2] = byte(sum >> 16)
	out[len(body)+3] = byte(sum >> 24)
	return out
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func (h *Handle) emptyBlockSentinel() ([]byte, error) {
	if h.w.emptySentinel == nil {
		s, err := section.EmptyBlockSentinel(int(h.media.ChunkSize))
		if err != nil {
			return nil, err
		}
		h.w.emptySentinel = s
	}
	return h.w.emptySentinel, nil
}

// maybeRollSegment closes and advances to a new segment file when
// appending nextChunkLen more bytes would push the current segment past
// its configured size ceiling. Only a
// chunk payload overflow forces a rollover.
func (h *Handle) maybeRollSegment(nextChunkLen int) error {
	size, err := h.pool.Size(h.w.poolID)
	if err != nil {
		return err
	}
	if uint64(size)+uint64(nextChunkLen) <= h.cfg.SegmentSize {
		return nil
	}
	if err := h.flushTableBlock(); err != nil {
		return err
	}
	if err := h.writeOneShot(h.w.poolID, format.TypeNext, nil, true); err != nil {
		return err
	}
	if err := h.closePoolEntry(); err != nil {
		return err
	}
	return h.openSegmentForWrite(h.w.segNumber + 1)
}

// flushTableBlock closes the current `sectors` section and emits its
// `table`/`table2` pair. It does NOT reopen a new `sectors` section:
// whichever caller needs writing to continue in the same segment
// (writeChunk, on hitting the 65534-entry ceiling) is responsible for
// calling startSectorsSection itself, once it knows more chunk data is
// actually coming. Callers that flush because the segment or image is
// ending (maybeRollSegment, finalizeImage) must not reopen one, or the
// empty placeholder's self-pointer would be mistaken for the v1 chain's
// terminal sentinel and orphan everything written after it.
func (h *Handle) flushTableBlock() error {
	if len(h.w.tableEntries) == 0 {
		return nil
	}
	sectorsEnd, err := h.pool.Size(h.w.poolID)
	if err != nil {
		return err
	}
	sectorsPayloadSize := uint64(sectorsEnd) - uint64(h.w.sectorsStart)
	tablePayload := section.EncodeTable(uint64(h.w.sectorsStart), h.w.tableEntries)

	if _, err := h.closeSectorsSection(); err != nil {
		return err
	}
	if err := h.writeOneShot(h.w.poolID, h.tableSectionType(), tablePayload, false); err != nil {
		return err
	}
	if err := h.writeOneShot(h.w.poolID, format.TypeTable2, tablePayload, false); err != nil {
		return err
	}

	h.chunkTable.AppendSegment(h.w.segNumber, h.w.tableEntries, uint64(h.w.sectorsStart), sectorsPayloadSize)
	h.w.tableEntries = nil
	return nil
}

func (h *Handle) closePoolEntry() error {
	si := &segmentFile{number: h.w.segNumber, path: h.w.path, poolID: h.w.poolID}
	h.segments.append(si)
	h.log.Infow("write: closed segment", "segment", h.w.segNumber, "path", h.w.path)
	return nil
}

// finalizeImage flushes the last table block, writes the trailing
// hash/digest/error2/session/ltree/done sections, and closes the final
// segment.
func (h *Handle) finalizeImage() error {
	if err := h.flushTableBlock(); err != nil {
		return err
	}

	var md5sum [16]byte
	var sha1sum [20]byte
	copy(md5sum[:], h.w.md5State.Sum(nil))
	copy(sha1sum[:], h.w.sha1State.Sum(nil))
	h.hash = media.FromDigest(md5sum, sha1sum)

	if err := h.writeOneShot(h.w.poolID, format.TypeHash, section.EncodeHash(md5sum), false); err != nil {
		return err
	}
	if err := h.writeOneShot(h.w.poolID, format.TypeDigest, section.EncodeDigest(md5sum, sha1sum), false); err != nil {
		return err
	}
	if len(h.checksumErrors.Ranges) > 0 {
		if err := h.writeOneShot(h.w.poolID, format.TypeError2, section.EncodeSectorRanges(h.checksumErrors.Ranges), false); err != nil {
			return err
		}
	}
	if len(h.sessions.Ranges) > 0 {
		if err := h.writeOneShot(h.w.poolID, format.TypeSession, section.EncodeSectorRanges(h.sessions.Ranges), false); err != nil {
			return err
		}
	}
	if h.ltreeXML != nil {
		if err := h.writeOneShot(h.w.poolID, format.TypeLtree, section.EncodeLtree(h.ltreeXML), false); err != nil {
			return err
		}
	}
	if err := h.writeOneShot(h.w.poolID, format.TypeDone, nil, true); err != nil {
		return err
	}
	h.log.Infow("write: finalized image", "media_bytes", humanize.Bytes(h.mediaBytesWritten), "segments", h.w.segNumber)
	return h.closePoolEntry()
}
