// Package section implements the section layer: the typed
// descriptor+payload records that compose a segment file, and one codec
// per section type. It is grounded in laenix-ewfgo's ewf.go (struct
// layouts, Adler-32 footer, zlib payloads), generalized to cover both
// the v1 (self-pointer-terminated chain) and v2 (done-terminated chain,
// trailing descriptor with a previous-offset field) container variants.
package section

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/pool"
)

// Descriptor is the variant-agnostic view of a section record that the
// rest of the storage engine operates on.
type Descriptor struct {
	Type string
	// FileOffset is the absolute offset of the descriptor in the segment
	// file (v1: where the descriptor begins, preceding the payload; v2:
	// where the payload begins, i.e. this descriptor's own payload
	// region starts here and the descriptor trails it).
	FileOffset uint64
	// PayloadOffset is the absolute offset the payload bytes start at.
	PayloadOffset uint64
	// PayloadSize is the number of payload bytes (excluding descriptor
	// and padding).
	PayloadSize uint64
	// TotalSize is descriptor + payload + padding, i.e. the distance
	// from this section's start to the next section's start.
	TotalSize uint64
	// NextOffset is the absolute file offset of the next section's
	// descriptor (v1 only; equals FileOffset itself on the terminal
	// section). Unused for v2, which instead terminates the chain with
	// a `done` section type.
	NextOffset uint64
	// DataFlags is the v2 compressed/encrypted/integrity-hashed bitmask.
	DataFlags uint32
}

const (
	DataFlagCompressed       = 0x01
	DataFlagEncrypted        = 0x02
	DataFlagIntegrityHashed  = 0x04
)

// wireV1 mirrors ewf_section_descriptor_v1 byte for byte.
type wireV1 struct {
	TypeDefinition [16]byte
	NextOffset     uint64
	Size           uint64
	Padding        [40]byte
	Checksum       uint32
}

// wireV2 mirrors ewf_section_descriptor_v2 byte for byte, trailing the
// payload it describes.
type wireV2 struct {
	TypeDefinition [16]byte
	DataFlags      uint32
	PreviousOffset uint64
	DataSize       uint64
	PaddingSize    uint32
	DescriptorSize uint32
	IntegrityHash  [16]byte
	Reserved       [24]byte
	Checksum       uint32
}

func typeBytes(t string) [16]byte {
	var b [16]byte
	copy(b[:], t)
	return b
}

func typeString(b [16]byte) string {
	return string(bytes.TrimRight(b[:], "\x00"))
}

// adlerOf returns the little-endian Adler-32 of buf, matching the
// on-disk checksum encoding used throughout EWF.
func adlerOf(buf []byte) uint32 {
	return adler32.Checksum(buf)
}

// ReadDescriptorV1 reads the 76-byte descriptor at offset and validates
// its trailing Adler-32 over the first 72 bytes.
func ReadDescriptorV1(p *pool.Pool, id pool.ID, offset int64) (*Descriptor, error) {
	buf := make([]byte, format.SectionDescriptorV1Length)
	if _, err := p.ReadAt(id, offset, buf); err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: read v1 descriptor")
	}
	var w wireV1
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &w); err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode v1 descriptor")
	}
	if got := adlerOf(buf[:72]); got != w.Checksum {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch,
			"section: v1 descriptor checksum mismatch at offset %d (got %#x want %#x)", offset, got, w.Checksum)
	}
	d := &Descriptor{
		Type:          typeString(w.TypeDefinition),
		FileOffset:    uint64(offset),
		PayloadOffset: uint64(offset) + format.SectionDescriptorV1Length,
		TotalSize:     w.Size,
		NextOffset:    w.NextOffset,
	}
	if w.Size >= format.SectionDescriptorV1Length {
		d.PayloadSize = w.Size - format.SectionDescriptorV1Length
	}
	return d, nil
}

// WriteDescriptorV1 writes a 76-byte v1 descriptor at offset for a
// section of the given type, payload size and next-section offset
// (pass offset itself for the terminal section, per the
// self-pointer sentinel).
func WriteDescriptorV1(p *pool.Pool, id pool.ID, offset int64, sectionType string, payloadSize uint64, nextOffset uint64) error {
	w := wireV1{
		TypeDefinition: typeBytes(sectionType),
		NextOffset:     nextOffset,
		Size:           format.SectionDescriptorV1Length + payloadSize,
	}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.TypeDefinition)
	binary.Write(buf, binary.LittleEndian, w.NextOffset)
	binary.Write(buf, binary.LittleEndian, w.Size)
	binary.Write(buf, binary.LittleEndian, w.Padding)
	w.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, w.Checksum)
	_, err := p.WriteAt(id, offset, buf.Bytes())
	if err != nil {
		return ioerr.Wrap(ioerr.KindIO, err, "section: write v1 descriptor")
	}
	return nil
}

// ReadDescriptorV2 reads the 76-byte v2 descriptor trailing a payload of
// dataSize bytes that starts at payloadOffset.
func ReadDescriptorV2(p *pool.Pool, id pool.ID, payloadOffset int64, dataSize int64) (*Descriptor, error) {
	descOffset := payloadOffset + dataSize
	buf := make([]byte, format.SectionDescriptorV2Length)
	if _, err := p.ReadAt(id, descOffset, buf); err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: read v2 descriptor")
	}
	var w wireV2
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &w); err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode v2 descriptor")
	}
	if got := adlerOf(buf[:len(buf)-4]); got != w.Checksum {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch,
			"section: v2 descriptor checksum mismatch at offset %d (got %#x want %#x)", descOffset, got, w.Checksum)
	}
	if w.DataFlags&DataFlagEncrypted != 0 {
		return nil, ioerr.Errorf(ioerr.KindUnsupported, "section: encrypted section at offset %d", descOffset)
	}
	d := &Descriptor{
		Type:          typeString(w.TypeDefinition),
		FileOffset:    uint64(payloadOffset),
		PayloadOffset: uint64(payloadOffset),
		PayloadSize:   w.DataSize,
		TotalSize:     w.DataSize + uint64(w.PaddingSize) + format.SectionDescriptorV2Length,
		DataFlags:     w.DataFlags,
	}
	return d, nil
}

// WriteDescriptorV2 writes payload at payloadOffset followed by its
// trailing v2 descriptor, returning the offset of the next section.
func WriteDescriptorV2(p *pool.Pool, id pool.ID, payloadOffset int64, sectionType string, payload []byte, dataFlags uint32, previousOffset uint64) (nextOffset int64, err error) {
	if _, err := p.WriteAt(id, payloadOffset, payload); err != nil {
		return 0, ioerr.Wrap(ioerr.KindIO, err, "section: write v2 payload")
	}
	descOffset := payloadOffset + int64(len(payload))
	w := wireV2{
		TypeDefinition: typeBytes(sectionType),
		DataFlags:      dataFlags,
		PreviousOffset: previousOffset,
		DataSize:       uint64(len(payload)),
		DescriptorSize: format.SectionDescriptorV2Length,
	}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.TypeDefinition)
	binary.Write(buf, binary.LittleEndian, w.DataFlags)
	binary.Write(buf, binary.LittleEndian, w.PreviousOffset)
	binary.Write(buf, binary.LittleEndian, w.DataSize)
	binary.Write(buf, binary.LittleEndian, w.PaddingSize)
	binary.Write(buf, binary.LittleEndian, w.DescriptorSize)
	binary.Write(buf, binary.LittleEndian, w.IntegrityHash)
	binary.Write(buf, binary.LittleEndian, w.Reserved)
	w.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, w.Checksum)
	if _, err := p.WriteAt(id, descOffset, buf.Bytes()); err != nil {
		return 0, ioerr.Wrap(ioerr.KindIO, err, "section: write v2 descriptor")
	}
	return descOffset + format.SectionDescriptorV2Length, nil
}

// WriteDescriptorV2Trailer writes only the trailing v2 descriptor for a
// payload of dataSize bytes already streamed to [payloadOffset,
// payloadOffset+dataSize) by the caller (the segmentation planner, which
// streams `sectors` payloads one chunk at a time rather than holding the
// whole section in memory). It mirrors WriteDescriptorV2's descriptor
// encoding without rewriting the payload.
func WriteDescriptorV2Trailer(p *pool.Pool, id pool.ID, payloadOffset int64, dataSize uint64, sectionType string, dataFlags uint32, previousOffset uint64) (nextOffset int64, err error) {
	descOffset := payloadOffset + int64(dataSize)
	w := wireV2{
		TypeDefinition: typeBytes(sectionType),
		DataFlags:      dataFlags,
		PreviousOffset: previousOffset,
		DataSize:       dataSize,
		DescriptorSize: format.SectionDescriptorV2Length,
	}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.TypeDefinition)
	binary.Write(buf, binary.LittleEndian, w.DataFlags)
	binary.Write(buf, binary.LittleEndian, w.PreviousOffset)
	binary.Write(buf, binary.LittleEndian, w.DataSize)
	binary.Write(buf, binary.LittleEndian, w.PaddingSize)
	binary.Write(buf, binary.LittleEndian, w.DescriptorSize)
	binary.Write(buf, binary.LittleEndian, w.IntegrityHash)
	binary.Write(buf, binary.LittleEndian, w.Reserved)
	w.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, w.Checksum)
	if _, err := p.WriteAt(id, descOffset, buf.Bytes()); err != nil {
		return 0, ioerr.Wrap(ioerr.KindIO, err, "section: write v2 descriptor trailer")
	}
	return descOffset + format.SectionDescriptorV2Length, nil
}

// ReadPayload reads a descriptor's raw payload bytes.
func ReadPayload(p *pool.Pool, id pool.ID, d *Descriptor) ([]byte, error) {
	buf := make([]byte, d.PayloadSize)
	if d.PayloadSize == 0 {
		return buf, nil
	}
	if _, err := p.ReadAt(id, int64(d.PayloadOffset), buf); err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: read payload of "+d.Type)
	}
	return buf, nil
}
