package section

import (
	"bytes"
	"encoding/binary"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
)

// tableBlockSize is the checksum granularity used for
// `table`/`table2`: "Adler-32 on header + on each 16k-entry block".
const tableBlockSize = 16384

// TableHeaderSize is the fixed header preceding a table's entries:
// entry count(4) + reserved(4) + base offset(8) + reserved(4) + checksum(4).
const TableHeaderSize = 24

type tableHeader struct {
	EntryCount uint32
	Reserved1  uint32
	BaseOffset uint64
	Reserved2  uint32
	Checksum   uint32
}

// RawTableEntry is a table entry as it appears on disk: a chunk offset
// relative to BaseOffset with the compressed flag folded into its high
// bit ("high bit of offset = compressed flag").
type RawTableEntry struct {
	Offset     uint64
	Compressed bool
}

// DecodeTable parses a `table`/`table2` payload into its base offset and
// raw entries, validating the header checksum and each 16k-entry block
// checksum. A block checksum failure returns ChecksumMismatch naming the
// entry index at which the bad block starts, so the chunk table can fall
// back to the sibling table section (chunktable.Reconcile).
func DecodeTable(payload []byte) (uint64, []RawTableEntry, error) {
	if len(payload) < TableHeaderSize {
		return 0, nil, ioerr.Errorf(ioerr.KindCorruptData, "section: table payload too short (%d bytes)", len(payload))
	}
	var h tableHeader
	if err := binary.Read(bytes.NewReader(payload[:TableHeaderSize]), binary.LittleEndian, &h); err != nil {
		return 0, nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode table header")
	}
	if got := adlerOf(payload[:TableHeaderSize-4]); got != h.Checksum {
		return 0, nil, ioerr.Errorf(ioerr.KindChecksumMismatch,
			"section: table header checksum mismatch (got %#x want %#x)", got, h.Checksum)
	}

	entries := make([]RawTableEntry, 0, h.EntryCount)
	offset := TableHeaderSize
	remaining := int(h.EntryCount)
	for remaining > 0 {
		blockCount := remaining
		if blockCount > tableBlockSize {
			blockCount = tableBlockSize
		}
		blockBytes := blockCount * 4
		if offset+blockBytes+4 > len(payload) {
			return 0, nil, ioerr.Errorf(ioerr.KindCorruptData, "section: table block truncated at entry %d", len(entries))
		}
		block := payload[offset : offset+blockBytes]
		var rawOffsets []uint32
		rawOffsets = make([]uint32, blockCount)
		if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &rawOffsets); err != nil {
			return 0, nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode table block")
		}
		wantChecksum := binary.LittleEndian.Uint32(payload[offset+blockBytes : offset+blockBytes+4])
		if got := adlerOf(block); got != wantChecksum {
			return 0, nil, ioerr.Errorf(ioerr.KindChecksumMismatch,
				"section: table block checksum mismatch at entry %d (got %#x want %#x)", len(entries), got, wantChecksum)
		}
		for _, raw := range rawOffsets {
			entries = append(entries, RawTableEntry{
				Offset:     h.BaseOffset + uint64(raw&^format.ChunkFlagCompressed),
				Compressed: raw&format.ChunkFlagCompressed != 0,
			})
		}
		offset += blockBytes + 4
		remaining -= blockCount
	}
	return h.BaseOffset, entries, nil
}

// EncodeTable renders entries back into the on-disk table/table2 form,
// splitting into 16k-entry blocks exactly as DecodeTable expects.
func EncodeTable(baseOffset uint64, entries []RawTableEntry) []byte {
	h := tableHeader{EntryCount: uint32(len(entries)), BaseOffset: baseOffset}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, h.EntryCount)
	binary.Write(buf, binary.LittleEndian, h.Reserved1)
	binary.Write(buf, binary.LittleEndian, h.BaseOffset)
	binary.Write(buf, binary.LittleEndian, h.Reserved2)
	h.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, h.Checksum)

	for start := 0; start < len(entries); start += tableBlockSize {
		end := start + tableBlockSize
		if end > len(entries) {
			end = len(entries)
		}
		blockStart := buf.Len()
		for _, e := range entries[start:end] {
			raw := uint32(e.Offset - baseOffset)
			if e.Compressed {
				raw |= format.ChunkFlagCompressed
			}
			binary.Write(buf, binary.LittleEndian, raw)
		}
		checksum := adlerOf(buf.Bytes()[blockStart:])
		binary.Write(buf, binary.LittleEndian, checksum)
	}
	return buf.Bytes()
}
