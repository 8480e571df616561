package ewf

import (
	"go.uber.org/zap"

	"github.com/evidencekit/ewf/internal/chunktable"
	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/media"
	"github.com/evidencekit/ewf/internal/pool"
	"github.com/evidencekit/ewf/internal/section"
)

// handleMode tracks the Handle lifecycle state machine:
// Uninit → Open(Read) | Open(Write) → Closed.
type handleMode int

const (
	modeUninit handleMode = iota
	modeRead
	modeWrite
	modeClosed
)

// sectorRange is the package-local alias for the (start, count) pairs carried
// by AcquisitionErrors and Sessions.
type sectorRange = section.SectorRange

func sectionRangeOf(start, count uint32) sectorRange {
	return sectorRange{StartSector: start, SectorCount: count}
}

// Handle is the root entity of this package: it owns the I/O pool, the
// segment index, the media/header/hash metadata, the chunk table and
// cache, and (in write mode) the segmentation planner's live state.
type Handle struct {
	cfg     *Config
	pool    *pool.Pool
	variant format.Variant
	smart   bool
	stem    string // write mode: path without extension, used to derive segment names

	segments   *segmentIndex
	chunkTable *chunktable.Index
	cache      *chunkCache

	media    media.MediaValues
	header   media.HeaderValues
	hash     media.HashValues
	sessions media.Sessions
	ltreeXML []byte

	checksumErrors media.AcquisitionErrors

	cursor  int64
	mode    handleMode
	aborted bool

	mediaBytesWritten uint64
	pending           []byte
	w                 *chunkWriter

	log *zap.SugaredLogger
}

// Abort sets the Handle's abort flag, checked at chunk boundaries on
// read and before each section emit on write.
func (h *Handle) Abort() { h.aborted = true }

// Variant reports the on-disk container variant this Handle is reading
// or writing.
func (h *Handle) Variant() format.Variant { return h.variant }

// MediaValues returns the media geometry.
func (h *Handle) MediaValues() media.MediaValues { return h.media }

// HeaderValues returns the case/examiner metadata.
func (h *Handle) HeaderValues() media.HeaderValues { return h.header }

// SetHeaderValues installs the case/examiner metadata. In Create mode
// the first segment's header preamble is already written (from
// Config.InitialHeader) when Create returns; values set here appear in
// the preambles of segments opened after the call.
func (h *Handle) SetHeaderValues(v media.HeaderValues) { h.header = v }

// HashValues returns the whole-image digests. In write mode these are
// only populated after Close.
func (h *Handle) HashValues() media.HashValues { return h.hash }

// Sessions returns the optical-media session ranges.
func (h *Handle) Sessions() media.Sessions { return h.sessions }

// AddSession records an optical-media session boundary, written as the
// `session` section on Close (write mode only).
func (h *Handle) AddSession(startSector, sectorCount uint32) {
	h.sessions.Ranges = append(h.sessions.Ranges, sectionRangeOf(startSector, sectorCount))
}

// SetLogicalTree installs the XML logical-file tree emitted as the
// `ltree` section on Close (write mode only).
func (h *Handle) SetLogicalTree(xml []byte) { h.ltreeXML = xml }

// ChecksumErrorRanges returns the sector ranges loaded from the `error2`
// section on open plus those recorded because of a checksum mismatch
// under wipe-on-error (read mode), or those recorded because the
// caller flagged a known-bad source sector range during acquisition
// (write mode, via RecordAcquisitionError).
func (h *Handle) ChecksumErrorRanges() []sectorRange { return h.checksumErrors.Ranges }

// RecordAcquisitionError flags a sector range the source media could
// not be read from cleanly, written as the `error2` section on Close
// (write mode only).
func (h *Handle) RecordAcquisitionError(startSector, sectorCount uint32) {
	h.checksumErrors.Ranges = append(h.checksumErrors.Ranges, sectionRangeOf(startSector, sectorCount))
}

// Segments returns the ordered list of segment file paths currently
// backing this Handle.
func (h *Handle) Segments() []string {
	out := make([]string, 0, h.segments.count())
	for _, n := range h.segments.order {
		if s, ok := h.segments.get(n); ok {
			out = append(out, s.path)
		}
	}
	return out
}

// Write implements io.Writer over the logical media byte stream in
// Create mode: bytes are buffered into chunk-sized pieces and handed to
// the segmentation planner as each chunk fills.
func (h *Handle) Write(p []byte) (int, error) {
	if h.mode != modeWrite {
		return 0, ioerr.Errorf(ioerr.KindInvalidArgument, "write: handle is not open for writing")
	}
	chunkSize := int(h.media.ChunkSize)
	written := 0
	for len(p) > 0 {
		space := chunkSize - len(h.pending)
		take := len(p)
		if take > space {
			take = space
		}
		h.pending = append(h.pending, p[:take]...)
		p = p[take:]
		written += take
		if len(h.pending) == chunkSize {
			if err := h.writeChunk(h.pending); err != nil {
				return written, err
			}
			h.pending = h.pending[:0]
		}
	}
	return written, nil
}

// Close finalizes (write mode) or simply releases (read mode) the
// Handle's resources. Reopening requires a new Handle, matching the
// Uninit -> Open -> Closed state machine.
func (h *Handle) Close() error {
	if h.mode == modeClosed {
		return nil
	}
	var ferr error
	if h.mode == modeWrite {
		if len(h.pending) > 0 {
			if err := h.writeChunk(h.pending); err != nil {
				ferr = err
			}
			h.pending = nil
		}
		if ferr == nil {
			ferr = h.finalizeImage()
		}
	}
	if err := h.pool.CloseAll(); err != nil && ferr == nil {
		ferr = ioerr.Wrap(ioerr.KindIO, err, "close: release segment pool")
	}
	h.mode = modeClosed
	return ferr
}
