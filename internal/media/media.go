// Package media assembles the section layer's raw decoded pieces
// (internal/section's VolumeInfo, header maps, digests, sector ranges)
// into the higher-level value types this engine operates on: MediaValues,
// HeaderValues, HashValues, AcquisitionErrors and Sessions. Nothing here
// touches a file descriptor; it is a pure transformation layer sitting
// between internal/section and the root ewf package's Handle.
package media

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/section"
)

// MediaValues is the acquired media's geometry and acquisition metadata,
// assembled from the `volume`/`disk` section plus the chunk size
// configured for the image.
type MediaValues struct {
	MediaType        uint8
	MediaFlags       uint8
	IsPhysical       bool
	BytesPerSector   uint32
	SectorsPerChunk  uint32
	NumberOfSectors  uint64
	MediaSize        uint64
	ChunkSize        uint64
	ErrorGranularity uint32
	GUID             uuid.UUID
}

// FromVolume builds MediaValues from a decoded volume/disk section.
func FromVolume(v *section.VolumeInfo) MediaValues {
	id, _ := uuid.FromBytes(v.GUID[:])
	return MediaValues{
		MediaType:        v.MediaType,
		MediaFlags:       v.MediaFlags,
		IsPhysical:       v.MediaFlags&format.MediaFlagPhysical != 0,
		BytesPerSector:   v.BytesPerSector,
		SectorsPerChunk:  v.SectorsPerChunk,
		NumberOfSectors:  v.NumberOfSectors,
		MediaSize:        v.MediaSize,
		ChunkSize:        uint64(v.SectorsPerChunk) * uint64(v.BytesPerSector),
		ErrorGranularity: v.ErrorGranularity,
		GUID:             id,
	}
}

// ToVolume is the write-side inverse of FromVolume.
func (m MediaValues) ToVolume() *section.VolumeInfo {
	guidBytes, _ := m.GUID.MarshalBinary()
	var guid [16]byte
	copy(guid[:], guidBytes)
	return &section.VolumeInfo{
		MediaType:        m.MediaType,
		MediaFlags:       m.MediaFlags,
		SectorsPerChunk:  m.SectorsPerChunk,
		BytesPerSector:   m.BytesPerSector,
		NumberOfSectors:  m.NumberOfSectors,
		MediaSize:        m.MediaSize,
		ErrorGranularity: m.ErrorGranularity,
		GUID:             guid,
	}
}

// HeaderValues is the case/examiner metadata carried in the
// header/header2/xheader sections.
type HeaderValues struct {
	CaseNumber       string
	EvidenceNumber   string
	Description      string
	ExaminerName     string
	Notes            string
	AcquirySoftware  string
	AcquiryOS        string
	AcquiryDate      string
	SystemDate       string
	Password         string
	ProcessID        string
	Unknown          map[string]string
}

var knownKeys = map[string]bool{
	"case_number": true, "evidence_number": true, "description": true,
	"examiner_name": true, "notes": true, "acquiry_software_version": true,
	"acquiry_operating_system": true, "acquiry_date": true, "system_date": true,
	"password": true, "process_identifier": true,
}

// FromHeaderMap assembles HeaderValues from a decoded header/header2
// key-value map, preserving every unrecognized key in Unknown rather
// than discarding it.
func FromHeaderMap(values map[string]string) HeaderValues {
	h := HeaderValues{Unknown: make(map[string]string)}
	h.CaseNumber = values["case_number"]
	h.EvidenceNumber = values["evidence_number"]
	h.Description = values["description"]
	h.ExaminerName = values["examiner_name"]
	h.Notes = values["notes"]
	h.AcquirySoftware = values["acquiry_software_version"]
	h.AcquiryOS = values["acquiry_operating_system"]
	h.AcquiryDate = values["acquiry_date"]
	h.SystemDate = values["system_date"]
	h.Password = values["password"]
	h.ProcessID = values["process_identifier"]
	for k, v := range values {
		if !knownKeys[k] {
			h.Unknown[k] = v
		}
	}
	return h
}

// ToHeaderMap is the write-side inverse of FromHeaderMap.
func (h HeaderValues) ToHeaderMap() map[string]string {
	out := map[string]string{
		"case_number":              h.CaseNumber,
		"evidence_number":          h.EvidenceNumber,
		"description":              h.Description,
		"examiner_name":            h.ExaminerName,
		"notes":                    h.Notes,
		"acquiry_software_version": h.AcquirySoftware,
		"acquiry_operating_system": h.AcquiryOS,
		"acquiry_date":             h.AcquiryDate,
		"system_date":              h.SystemDate,
		"password":                 h.Password,
		"process_identifier":       h.ProcessID,
	}
	for k, v := range h.Unknown {
		out[k] = v
	}
	return out
}

// HashValues carries the whole-image digests from the `digest`/`hash`
// sections.
type HashValues struct {
	MD5     [16]byte
	SHA1    [20]byte
	HasSHA1 bool
}

// FromDigest builds HashValues from a decoded `digest` section (MD5+SHA1).
func FromDigest(md5sum [16]byte, sha1sum [20]byte) HashValues {
	return HashValues{MD5: md5sum, SHA1: sha1sum, HasSHA1: true}
}

// FromHash builds HashValues from a legacy `hash` section (MD5 only).
func FromHash(md5sum [16]byte) HashValues {
	return HashValues{MD5: md5sum}
}

// String renders the digests as hex, omitting SHA-1 when absent.
func (h HashValues) String() string {
	if h.HasSHA1 {
		return fmt.Sprintf("md5:%x sha1:%x", h.MD5, h.SHA1)
	}
	return fmt.Sprintf("md5:%x", h.MD5)
}

// AcquisitionErrors is the ordered list of sector ranges the acquisition
// tool itself could not read cleanly, from the `error2` section.
type AcquisitionErrors struct {
	Ranges []section.SectorRange
}

// FromErrorRanges wraps decoded error2 ranges.
func FromErrorRanges(ranges []section.SectorRange) AcquisitionErrors {
	return AcquisitionErrors{Ranges: ranges}
}

// Sessions is the ordered list of optical-media session boundaries from
// the `session` section.
type Sessions struct {
	Ranges []section.SectorRange
}

// FromSessionRanges wraps decoded session ranges.
func FromSessionRanges(ranges []section.SectorRange) Sessions {
	return Sessions{Ranges: ranges}
}

// Validate checks the internal consistency required of
// MediaValues (nonzero bytes per sector, sectors per chunk and chunk
// size) before a Handle is allowed to start reading or writing against
// it. The chunk size is not checked against any upper bound.
func (m MediaValues) Validate() error {
	if m.BytesPerSector == 0 {
		return ioerr.Errorf(ioerr.KindInvalidArgument, "media: bytes_per_sector is zero")
	}
	if m.SectorsPerChunk == 0 {
		return ioerr.Errorf(ioerr.KindInvalidArgument, "media: sectors_per_chunk is zero")
	}
	if m.ChunkSize == 0 {
		return ioerr.Errorf(ioerr.KindInvalidArgument, "media: derived chunk size is zero")
	}
	return nil
}
