// Package chunktable builds the dense chunk-index this engine
// describes: a single, contiguous chunk-number -> (segment, offset,
// packed size, compression flag) mapping assembled from each segment's
// table/table2 (or, for v2 containers, sector_table) section. It also
// implements the table/table2 reconciliation rule: a
// corrupt primary table falls back to its backup copy with a warning
// rather than failing the open outright.
//
// Grounded in laenix-ewfgo's internal/ewf.go ParseTable (the
// offset-is-relative-to-a-base, high-bit-is-compressed-flag decoding
// this package's input already embodies via internal/section.RawTableEntry)
// and in iamNilotpal-ignite's storage package for the zap logging style
// used when a fallback happens.
package chunktable

import (
	"go.uber.org/zap"

	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/section"
)

// Entry is one chunk's resolved location, dense by chunk number.
type Entry struct {
	SegmentIndex int
	Offset       uint64
	PackedSize   uint64
	Compressed   bool
}

// Index is the whole image's chunk-number -> Entry mapping, built up one
// segment at a time in acquisition order.
type Index struct {
	entries []Entry
}

// NewIndex returns an empty Index ready for AppendSegment calls.
func NewIndex() *Index {
	return &Index{}
}

// Len reports the total number of chunks indexed so far.
func (idx *Index) Len() int { return len(idx.entries) }

// Lookup resolves a chunk number to its segment/offset/size, returning
// false if chunkNum is out of range.
func (idx *Index) Lookup(chunkNum int) (Entry, bool) {
	if chunkNum < 0 || chunkNum >= len(idx.entries) {
		return Entry{}, false
	}
	return idx.entries[chunkNum], true
}

// AppendSegment resolves one segment's raw table entries into dense
// Entry values and appends them to the index. sectorsPayloadSize is the
// byte length of that segment's `sectors`/`sector_data` payload, used to
// derive the last entry's packed size ("a chunk's packed
// size is the gap to the next entry's offset, or to the end of the
// sectors payload for the last entry in a segment").
func (idx *Index) AppendSegment(segmentIndex int, raw []section.RawTableEntry, sectorsPayloadStart, sectorsPayloadSize uint64) {
	for i, e := range raw {
		var end uint64
		if i+1 < len(raw) {
			end = raw[i+1].Offset
		} else {
			end = sectorsPayloadStart + sectorsPayloadSize
		}
		size := uint64(0)
		if end > e.Offset {
			size = end - e.Offset
		}
		idx.entries = append(idx.entries, Entry{
			SegmentIndex: segmentIndex,
			Offset:       e.Offset,
			PackedSize:   size,
			Compressed:   e.Compressed,
		})
	}
}

// TablePair holds both a segment's primary table and its backup table2,
// along with whatever errors decoding each one produced. An absent table
// has a nil raw slice; the open path also sets a NotFound error for a
// missing table2, which is always the case for v2 containers.
type TablePair struct {
	Table       []section.RawTableEntry
	TableErr    error
	Table2      []section.RawTableEntry
	Table2Err   error
}

// Reconcile picks the entries to trust out of a TablePair, preferring
// the primary table and falling back to table2 when the primary failed
// to decode (checksum mismatch or structural corruption). It logs a
// warning on fallback so a reader of the acquisition log can tell the
// image was recovered rather than pristine.
func Reconcile(pair TablePair, segmentPath string, log *zap.SugaredLogger) ([]section.RawTableEntry, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if pair.TableErr == nil && pair.Table != nil {
		return pair.Table, nil
	}
	if pair.Table2Err == nil && pair.Table2 != nil {
		log.Warnw("chunktable: recovered chunk table from table2 backup",
			"segment", segmentPath, "table_error", pair.TableErr)
		return pair.Table2, nil
	}
	return nil, ioerr.Errorf(ioerr.KindCorruptData,
		"chunktable: both table and table2 unreadable in segment %s (table: %v, table2: %v)",
		segmentPath, pair.TableErr, pair.Table2Err)
}
