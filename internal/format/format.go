// Package format holds the on-disk constants of the EWF/E01 container:
// segment signatures, section type codes, struct sizes and the few
// process-lifetime immutables (the empty-block compression sentinel, the
// table block entry ceiling) that every other package needs but none of
// them owns.
package format

// Variant selects the on-disk layout of a segment file.
type Variant int

const (
	// VariantUnknown is the zero value; never written.
	VariantUnknown Variant = iota
	// VariantV1 covers EWF/SMART/FTK/EnCase1-6/Linen5-6/EWFX: leading
	// section descriptor, header2/header ASCII+UTF-16 pair, table/table2.
	VariantV1
	// VariantV2 covers EnCase7+: trailing section descriptor, device
	// information section, sector_table/sector_data in place of table/
	// sectors.
	VariantV2
	// VariantSMART is VariantV1 with a one-byte-different signature and
	// ".sNN" segment naming.
	VariantSMART
)

// Signature is the 8-byte (v1/SMART) or 8-byte (v2) magic at the start of
// every segment file.
var (
	SignatureV1    = [8]byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}
	SignatureSMART = [8]byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x01}
	SignatureV2    = [8]byte{'E', 'V', 'F', '2', 0x0d, 0x0a, 0x81, 0x00}
)

// File header lengths, measured from the start of the segment file.
const (
	FileHeaderV1Length = 13 // signature(8) + fields_start(1) + segment#(2) + fields_end(2)
	FileHeaderV2Length = 17 // signature(8) + major(1) + minor(1) + reserved(2) + segment#(2) + reserved(3)
)

// SectionDescriptorV1Length is the fixed 76-byte descriptor that precedes
// every v1 section's payload.
const SectionDescriptorV1Length = 76

// SectionDescriptorV2Length is the fixed 76-byte descriptor that trails
// every v2 section's payload: type(4) + data_flags(4) + previous_offset(8)
// + data_size(8) + padding_size(4) + descriptor_size(4) + integrity
// hash(16) + reserved padding(24) + Adler-32(4).
const SectionDescriptorV2Length = 76

// Section type codes. v1 encodes these as a 16-byte, null-padded ASCII
// string; v2 encodes a 32-bit enum, but the section-reader dispatch table
// in internal/section keys off these same string identifiers for both
// variants, translating the v2 integer code on read.
const (
	TypeHeader   = "header"
	TypeHeader2  = "header2"
	TypeXHeader  = "xheader"
	TypeVolume   = "volume"
	TypeDisk     = "disk"
	TypeData     = "data"
	TypeSectors  = "sectors"
	TypeTable    = "table"
	TypeTable2   = "table2"
	TypeSectorTable = "sector_table" // v2 equivalent of table
	TypeSectorData  = "sector_data"  // v2 equivalent of sectors
	TypeDigest   = "digest"
	TypeHash     = "hash"
	TypeError2   = "error2"
	TypeSession  = "session"
	TypeLtree    = "ltree"
	TypeLtype    = "ltype"
	TypeMap      = "map"
	TypeNext     = "next"
	TypeDone     = "done"
	TypeDeviceInformation = "device_information" // v2 preamble section
)

// Compression levels carried in header values and media values.
const (
	CompressionNone = 0x00
	CompressionFast = 0x01
	CompressionBest = 0x02
)

// CompressionFlagEmptyBlock is bit 0 of the `compression_flags` config
// key: an all-zero chunk is replaced by EmptyBlockSentinel rather than
// being run through DEFLATE.
const CompressionFlagEmptyBlock = 0x01

// Media types (MediaValues.media-type).
const (
	MediaTypeRemovable = 0x00
	MediaTypeFixed     = 0x01
	MediaTypeOptical   = 0x03
	MediaTypeLogical   = 0x0e
	MediaTypeMemory    = 0x10
)

// Media flags (MediaValues.media-flags), bit-ORed.
const (
	MediaFlagImage    = 0x01
	MediaFlagPhysical = 0x02
	MediaFlagFastbloc = 0x04
	MediaFlagTableau  = 0x08
)

// Chunk entry flags, stored as the high bit of the v1 table entry offset
// or explicitly in the v2 sector_table entry.
const (
	ChunkFlagCompressed = 0x80000000
)

// MaxTableBlockEntries is the fixed ceiling on entries in a single
// table/table2 block; a block at this size is closed and a
// fresh table/table2 pair is started even mid-segment.
const MaxTableBlockEntries = 65534

// ChunkChecksumLength is the size of the trailing Adler-32 checksum
// appended to every chunk's packed bytes when per-chunk checksums are
// enabled (the default).
const ChunkChecksumLength = 4

// DigestLengths for the fixed layout of the `digest`/`hash` sections.
const (
	MD5Length  = 16
	SHA1Length = 20
)

// DateFormat selects how acquiry/system dates are rendered in header
// values.
type DateFormat int

const (
	DateFormatCTime DateFormat = iota
	DateFormatISO8601
	DateFormatDM
	DateFormatMD
)

// AcquirySoftwareVersionBucketLength is the fixed bucket length used to
// classify `acquiry_software_version`-like identifiers when rendering
// header values. Some historic tools compare 24 bytes here instead of
// 25, truncating the last character; this module always uses the full
// 25-byte bucket.
const AcquirySoftwareVersionBucketLength = 25
