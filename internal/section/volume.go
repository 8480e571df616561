package section

import (
	"bytes"
	"encoding/binary"

	"github.com/evidencekit/ewf/internal/ioerr"
)

// VolumeInfo is the media geometry carried by the `volume`/`disk`
// section (the subset of MediaValues stored on disk rather
// than derived).
type VolumeInfo struct {
	MediaType             uint8
	MediaFlags            uint8
	CompressionLevel      uint8
	SectorsPerChunk       uint32
	BytesPerSector        uint32
	NumberOfSectors       uint64
	CHSCylinders          uint32
	CHSHeads              uint32
	CHSSectors            uint32
	MediaSize             uint64
	ErrorGranularity      uint32
	PALMVolumeStartSector uint32
	SMARTLogsStartSector  uint32
	GUID                  [16]byte
}

// wireVolume is a fixed 128-byte layout satisfying the
// "volume, disk ... ≥128 bytes; Adler-32 footer".
type wireVolume struct {
	MediaType             uint8
	MediaFlags            uint8
	Reserved1             [2]byte
	CompressionLevel      uint8
	Reserved2             [3]byte
	SectorsPerChunk       uint32
	BytesPerSector        uint32
	NumberOfSectors       uint64
	CHSCylinders          uint32
	CHSHeads              uint32
	CHSSectors            uint32
	MediaSize             uint64
	ErrorGranularity      uint32
	PALMVolumeStartSector uint32
	SMARTLogsStartSector  uint32
	GUID                  [16]byte
	Reserved3             [52]byte
	Checksum              uint32
}

// DecodeVolume parses a `volume`/`disk` payload, validating its
// trailing Adler-32.
func DecodeVolume(payload []byte) (*VolumeInfo, error) {
	if len(payload) < 128 {
		return nil, ioerr.Errorf(ioerr.KindCorruptData, "section: volume payload too short (%d bytes)", len(payload))
	}
	var w wireVolume
	if err := binary.Read(bytes.NewReader(payload[:128]), binary.LittleEndian, &w); err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode volume")
	}
	if got := adlerOf(payload[:124]); got != w.Checksum {
		return nil, ioerr.Errorf(ioerr.KindChecksumMismatch,
			"section: volume checksum mismatch (got %#x want %#x)", got, w.Checksum)
	}
	return &VolumeInfo{
		MediaType:             w.MediaType,
		MediaFlags:            w.MediaFlags,
		CompressionLevel:      w.CompressionLevel,
		SectorsPerChunk:       w.SectorsPerChunk,
		BytesPerSector:        w.BytesPerSector,
		NumberOfSectors:       w.NumberOfSectors,
		CHSCylinders:          w.CHSCylinders,
		CHSHeads:              w.CHSHeads,
		CHSSectors:            w.CHSSectors,
		MediaSize:             w.MediaSize,
		ErrorGranularity:      w.ErrorGranularity,
		PALMVolumeStartSector: w.PALMVolumeStartSector,
		SMARTLogsStartSector:  w.SMARTLogsStartSector,
		GUID:                  w.GUID,
	}, nil
}

// EncodeVolume renders a VolumeInfo back into its 128-byte wire form.
func EncodeVolume(v *VolumeInfo) []byte {
	w := wireVolume{
		MediaType:             v.MediaType,
		MediaFlags:            v.MediaFlags,
		CompressionLevel:      v.CompressionLevel,
		SectorsPerChunk:       v.SectorsPerChunk,
		BytesPerSector:        v.BytesPerSector,
		NumberOfSectors:       v.NumberOfSectors,
		CHSCylinders:          v.CHSCylinders,
		CHSHeads:              v.CHSHeads,
		CHSSectors:            v.CHSSectors,
		MediaSize:             v.MediaSize,
		ErrorGranularity:      v.ErrorGranularity,
		PALMVolumeStartSector: v.PALMVolumeStartSector,
		SMARTLogsStartSector:  v.SMARTLogsStartSector,
		GUID:                  v.GUID,
	}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.MediaType)
	binary.Write(buf, binary.LittleEndian, w.MediaFlags)
	binary.Write(buf, binary.LittleEndian, w.Reserved1)
	binary.Write(buf, binary.LittleEndian, w.CompressionLevel)
	binary.Write(buf, binary.LittleEndian, w.Reserved2)
	binary.Write(buf, binary.LittleEndian, w.SectorsPerChunk)
	binary.Write(buf, binary.LittleEndian, w.BytesPerSector)
	binary.Write(buf, binary.LittleEndian, w.NumberOfSectors)
	binary.Write(buf, binary.LittleEndian, w.CHSCylinders)
	binary.Write(buf, binary.LittleEndian, w.CHSHeads)
	binary.Write(buf, binary.LittleEndian, w.CHSSectors)
	binary.Write(buf, binary.LittleEndian, w.MediaSize)
	binary.Write(buf, binary.LittleEndian, w.ErrorGranularity)
	binary.Write(buf, binary.LittleEndian, w.PALMVolumeStartSector)
	binary.Write(buf, binary.LittleEndian, w.SMARTLogsStartSector)
	binary.Write(buf, binary.LittleEndian, w.GUID)
	binary.Write(buf, binary.LittleEndian, w.Reserved3)
	w.Checksum = adlerOf(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, w.Checksum)
	return buf.Bytes()
}
