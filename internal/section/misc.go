package section

import (
	"bytes"
	"compress/flate"
	"crypto/md5"
	"encoding/binary"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
)

// --- digest / hash ---

type wireDigest struct {
	MD5      [16]byte
	SHA1     [20]byte
	Padding  [40]byte
	Checksum uint32
}

// DecodeDigest parses the `digest` section (MD5 + SHA-1).
func DecodeDigest(payload []byte) (md5sum [16]byte, sha1sum [20]byte, err error) {
	var w wireDigest
	if len(payload) < 80 {
		return md5sum, sha1sum, ioerr.Errorf(ioerr.KindCorruptData, "section: digest payload too short (%d)", len(payload))
	}
	if rerr := binary.Read(bytes.NewReader(payload[:80]), binary.LittleEndian, &w); rerr != nil {
		return md5sum, sha1sum, ioerr.Wrap(ioerr.KindCorruptData, rerr, "section: decode digest")
	}
	if got := adlerOf(payload[:76]); got != w.Checksum {
		return md5sum, sha1sum, ioerr.Errorf(ioerr.KindChecksumMismatch,
			"section: digest checksum mismatch (got %#x want %#x)", got, w.Checksum)
	}
	return w.MD5, w.SHA1, nil
}

// EncodeDigest renders the `digest` section wire form.
func EncodeDigest(md5sum [16]byte, sha1sum [20]byte) []byte {
	w := wireDigest{MD5: md5sum, SHA1: sha1sum}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.MD5)
	binary.Write(buf, binary.LittleEndian, w.SHA1)
	binary.Write(buf, binary.LittleEndian, w.Padding)
	w.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, w.Checksum)
	return buf.Bytes()
}

type wireHash struct {
	MD5      [16]byte
	Padding  [60]byte
	Checksum uint32
}

// DecodeHash parses the legacy `hash` section (MD5 only).
func DecodeHash(payload []byte) (md5sum [16]byte, err error) {
	var w wireHash
	if len(payload) < 80 {
		return md5sum, ioerr.Errorf(ioerr.KindCorruptData, "section: hash payload too short (%d)", len(payload))
	}
	if rerr := binary.Read(bytes.NewReader(payload[:80]), binary.LittleEndian, &w); rerr != nil {
		return md5sum, ioerr.Wrap(ioerr.KindCorruptData, rerr, "section: decode hash")
	}
	if got := adlerOf(payload[:76]); got != w.Checksum {
		return md5sum, ioerr.Errorf(ioerr.KindChecksumMismatch,
			"section: hash checksum mismatch (got %#x want %#x)", got, w.Checksum)
	}
	return w.MD5, nil
}

// EncodeHash renders the `hash` section wire form.
func EncodeHash(md5sum [16]byte) []byte {
	w := wireHash{MD5: md5sum}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.MD5)
	binary.Write(buf, binary.LittleEndian, w.Padding)
	w.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, w.Checksum)
	return buf.Bytes()
}

// --- error2 / session: ordered (start, count) pairs ---

// SectorRange is one (start-sector, sector-count) pair, shared by both
// the `error2` (acquisition errors) and `session` (optical sessions)
// sections.
type SectorRange struct {
	StartSector uint32
	SectorCount uint32
}

type rangeSectionHeader struct {
	Count    uint32
	Reserved [4]byte
	Checksum uint32
}

// DecodeSectorRanges parses the common `error2`/`session` payload shape:
// a count and 4 reserved bytes with their own Adler-32, then that many
// (u32, u32) pairs, then a trailing Adler-32 over the pairs alone.
func DecodeSectorRanges(payload []byte) ([]SectorRange, error) {
	const headerLen = 12
	if len(payload) < headerLen {
		return nil, ioerr.Errorf(ioerr.KindCorruptData, "section: range payload too short (%d)", len(payload))
	}
	var h rangeSectionHeader
	if err := binary.Read(bytes.NewReader(payload[:headerLen]), binary.LittleEndian, &h); err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode range header")
	}
	need := headerLen + int(h.Count)*8 + 4
	if len(payload) < need {
		return nil, ioerr.Errorf(ioerr.KindCorruptData, "section: range payload truncated (have %d want %d)", len(payload), need)
	}
	if got := adlerOf(payload[:headerLen-4]); got != h.Checksum {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch, "section: range header checksum mismatch")
	}

	ranges := make([]SectorRange, h.Count)
	body := payload[headerLen : headerLen+int(h.Count)*8]
	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &ranges); err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode ranges")
	}
	footerChecksum := binary.LittleEndian.Uint32(payload[headerLen+int(h.Count)*8:])
	if got := adlerOf(body); got != footerChecksum {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch, "section: range entries checksum mismatch")
	}
	return ranges, nil
}

// EncodeSectorRanges is the write-side inverse of DecodeSectorRanges.
func EncodeSectorRanges(ranges []SectorRange) []byte {
	h := rangeSectionHeader{Count: uint32(len(ranges))}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, h.Count)
	binary.Write(buf, binary.LittleEndian, h.Reserved)
	h.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, h.Checksum)

	bodyStart := buf.Len()
	binary.Write(buf, binary.LittleEndian, ranges)
	footer := adlerOf(buf.Bytes()[bodyStart:])
	binary.Write(buf, binary.LittleEndian, footer)
	return buf.Bytes()
}

// --- ltree: logical file tree ---

// LtreeHeaderSize is the 96-byte header preceding the `ltree` XML
// payload: a 16-byte MD5 integrity hash over the XML body, 4 reserved
// bytes, 72 bytes of padding and a 4-byte Adler-32 over the preceding 92
// bytes. Grounded in
// original_source/libewf/libewf_ltree_section.c.
const LtreeHeaderSize = 96

type wireLtreeHeader struct {
	IntegrityHash [16]byte
	Reserved      [4]byte
	Padding       [72]byte
	Checksum      uint32
}

// DecodeLtree validates the 96-byte header's Adler-32 and the MD5
// integrity hash over the XML body, returning the XML bytes.
func DecodeLtree(payload []byte) ([]byte, error) {
	if len(payload) < LtreeHeaderSize {
		return nil, ioerr.Errorf(ioerr.KindCorruptData, "section: ltree payload too short (%d)", len(payload))
	}
	var h wireLtreeHeader
	if err := binary.Read(bytes.NewReader(payload[:LtreeHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode ltree header")
	}
	if got := adlerOf(payload[:LtreeHeaderSize-4]); got != h.Checksum {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch, "section: ltree header checksum mismatch")
	}
	xml := payload[LtreeHeaderSize:]
	if got := md5.Sum(xml); got != h.IntegrityHash {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch, "section: ltree MD5 integrity mismatch")
	}
	return xml, nil
}

// EncodeLtree renders the `ltree` section's header+XML wire form.
func EncodeLtree(xml []byte) []byte {
	h := wireLtreeHeader{IntegrityHash: md5.Sum(xml)}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, h.IntegrityHash)
	binary.Write(buf, binary.LittleEndian, h.Reserved)
	binary.Write(buf, binary.LittleEndian, h.Padding)
	h.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, h.Checksum)
	buf.Write(xml)
	return buf.Bytes()
}

// EmptyBlockSentinel returns the precomputed compressed representation
// of a chunkBytes-long run of zeros, used by the empty-block compression
// policy (CompressionFlagEmptyBlock). It is computed
// (not literally precomputed, since it depends on the configured chunk
// size) once per chunk size by deflating a zero buffer at best
// compression, which is deterministic and cheap relative to a real
// chunk's data. Raw DEFLATE, not zlib-wrapped: chunk payloads are read
// back with flate.NewReader, same as every other compressed chunk.
func EmptyBlockSentinel(chunkBytes int) ([]byte, error) {
	zero := make([]byte, chunkBytes)
	var out bytes.Buffer
	w, err := flate.NewWriter(&out, ZlibLevel(format.CompressionBest))
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindInvalidArgument, err, "section: flate writer for empty-block sentinel")
	}
	if _, err := w.Write(zero); err != nil {
		w.Close()
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: deflate empty-block sentinel")
	}
	if err := w.Close(); err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: close flate writer for empty-block sentinel")
	}
	return out.Bytes(), nil
}
