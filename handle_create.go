package ewf

import (
	"strings"

	"github.com/google/uuid"

	"github.com/evidencekit/ewf/internal/chunktable"
	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/media"
	"github.com/evidencekit/ewf/internal/pool"
)

// Create starts a new image at path (the first segment's path, e.g.
// `evidence.E01`), sized mediaSize bytes. The create
// (write)" transition. The returned Handle is ready for Write calls at
// its cursor (append-only); Close finalizes the last
// segment's table, hash, digest and `done` section.
func Create(path string, mediaSize uint64, opts ...Option) (*Handle, error) {
	cfg := NewConfig(opts...)
	if mediaSize == 0 {
		return nil, ioerr.Errorf(ioerr.KindInvalidArgument, "create: media size must be nonzero")
	}

	stem := strings.TrimSuffix(path, ".E01")
	stem = strings.TrimSuffix(stem, ".e01")
	stem = strings.TrimSuffix(stem, ".s01")

	mv := media.MediaValues{
		MediaType:       format.MediaTypeFixed,
		BytesPerSector:  cfg.BytesPerSector,
		SectorsPerChunk: cfg.SectorsPerChunk,
		NumberOfSectors: mediaSize / uint64(cfg.BytesPerSector),
		MediaSize:       mediaSize,
		ChunkSize:       cfg.ChunkSize(),
		GUID:            uuid.New(),
	}
	if err := mv.Validate(); err != nil {
		return nil, err
	}

	h := &Handle{
		cfg:        cfg,
		pool:       pool.New(cfg.MaxOpenSegments, cfg.Logger),
		variant:    cfg.Format,
		smart:      cfg.Format == format.VariantSMART,
		stem:       stem,
		segments:   newSegmentIndex(),
		chunkTable: chunktable.NewIndex(),
		cache:      &chunkCache{},
		media:      mv,
		header:     cfg.InitialHeader,
		log:        cfg.Logger,
		mode:       modeWrite,
		w:          newChunkWriter(),
	}

	if err := h.openSegmentForWrite(1); err != nil {
		h.pool.CloseAll()
		return nil, err
	}
	return h, nil
}
