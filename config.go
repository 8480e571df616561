package ewf

import (
	"go.uber.org/zap"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/media"
	"github.com/evidencekit/ewf/internal/section"
)

// Config holds every container and media tunable, plus the ambient logging
// hook. Build one with defaults via NewConfig and layer Option values on
// top, the way iamNilotpal-ignite's pkg/options works.
type Config struct {
	Format           format.Variant
	SegmentSize      uint64
	SectorsPerChunk  uint32
	BytesPerSector   uint32
	CompressionLevel int
	CompressionFlags uint8
	HeaderCodepage   section.Codepage
	DateFormat       format.DateFormat
	ErrorGranularity uint32

	// WipeOnError controls the read path's behavior on a checksum
	// mismatch: fill with WipeFillByte and record
	// the chunk's sector range as an acquisition error instead of
	// failing the read outright.
	WipeOnError  bool
	WipeFillByte byte

	// MaxOpenSegments bounds the file-I/O pool's open-handle budget.
	MaxOpenSegments int

	// InitialHeader seeds the case/examiner metadata written into the
	// first segment's header preamble by Create, since that preamble is
	// emitted before the caller gets a Handle back to call
	// Handle.SetHeaderValues itself.
	InitialHeader media.HeaderValues

	Logger *zap.SugaredLogger
}

// Option mutates a Config during construction.
type Option func(*Config)

const (
	defaultSegmentSize      = 1 << 31 // 2 GiB, the traditional EWF segment ceiling
	defaultSectorsPerChunk  = 64
	defaultBytesPerSector   = 512
	defaultMaxOpenSegments  = 64
	defaultErrorGranularity = 64
)

// NewConfig builds a Config with the documented defaults (format v1,
// 2 GiB segments, 64-sector chunks, 512-byte sectors, best compression,
// ASCII header codepage, ctime date format, wipe-on-error disabled) and
// applies opts on top.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		Format:           format.VariantV1,
		SegmentSize:      defaultSegmentSize,
		SectorsPerChunk:  defaultSectorsPerChunk,
		BytesPerSector:   defaultBytesPerSector,
		CompressionLevel: format.CompressionBest,
		HeaderCodepage:   section.CodepageASCII,
		DateFormat:       format.DateFormatCTime,
		ErrorGranularity: defaultErrorGranularity,
		WipeOnError:      false,
		WipeFillByte:     0,
		MaxOpenSegments:  defaultMaxOpenSegments,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	return c
}

// ChunkSize returns the configured chunk size in bytes.
func (c *Config) ChunkSize() uint64 {
	return uint64(c.SectorsPerChunk) * uint64(c.BytesPerSector)
}

// WithFormat selects the on-disk container variant.
func WithFormat(v format.Variant) Option { return func(c *Config) { c.Format = v } }

// WithSegmentSize sets the per-segment byte ceiling.
func WithSegmentSize(n uint64) Option { return func(c *Config) { c.SegmentSize = n } }

// WithSectorsPerChunk sets the chunk granularity in sectors.
func WithSectorsPerChunk(n uint32) Option { return func(c *Config) { c.SectorsPerChunk = n } }

// WithBytesPerSector sets the media sector geometry.
func WithBytesPerSector(n uint32) Option { return func(c *Config) { c.BytesPerSector = n } }

// WithCompressionLevel selects none/fast/best (format.CompressionNone et al).
func WithCompressionLevel(level int) Option { return func(c *Config) { c.CompressionLevel = level } }

// WithCompressionFlags sets the compression_flags bitmask (bit 0:
// empty-block sentinel).
func WithCompressionFlags(flags uint8) Option { return func(c *Config) { c.CompressionFlags = flags } }

// WithHeaderCodepage selects the decode codepage for the `header` section.
func WithHeaderCodepage(cp section.Codepage) Option {
	return func(c *Config) { c.HeaderCodepage = cp }
}

// WithDateFormat selects the rendering of acquiry/system dates.
func WithDateFormat(f format.DateFormat) Option { return func(c *Config) { c.DateFormat = f } }

// WithErrorGranularity sets the sectors-per-read-error-report unit.
func WithErrorGranularity(n uint32) Option { return func(c *Config) { c.ErrorGranularity = n } }

// WithWipeOnError enables the read path's wipe-and-record behavior on a
// chunk checksum mismatch, filling with fill.
func WithWipeOnError(fill byte) Option {
	return func(c *Config) { c.WipeOnError = true; c.WipeFillByte = fill }
}

// WithMaxOpenSegments bounds the I/O pool's open-handle budget.
func WithMaxOpenSegments(n int) Option { return func(c *Config) { c.MaxOpenSegments = n } }

// WithLogger installs a structured logger; a nil Logger is replaced with
// a no-op logger by NewConfig.
func WithLogger(log *zap.SugaredLogger) Option { return func(c *Config) { c.Logger = log } }

// WithHeaderValues seeds the case/examiner metadata Create writes into
// the first segment's header preamble.
func WithHeaderValues(v media.HeaderValues) Option {
	return func(c *Config) { c.InitialHeader = v }
}
