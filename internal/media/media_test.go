package media

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/section"
)

func TestFromVolumeDerivesChunkSize(t *testing.T) {
	v := &section.VolumeInfo{
		MediaType:        format.MediaTypeFixed,
		MediaFlags:       format.MediaFlagPhysical,
		BytesPerSector:   512,
		SectorsPerChunk:  64,
		NumberOfSectors:  2048,
		MediaSize:        2048 * 512,
		ErrorGranularity: 64,
	}
	mv := FromVolume(v)
	require.Equal(t, uint64(64*512), mv.ChunkSize)
	require.True(t, mv.IsPhysical)
}

func TestMediaValuesToVolumeRoundTrip(t *testing.T) {
	id := uuid.New()
	mv := MediaValues{
		MediaType:        format.MediaTypeFixed,
		BytesPerSector:   512,
		SectorsPerChunk:  64,
		NumberOfSectors:  100,
		MediaSize:        51200,
		ErrorGranularity: 64,
		GUID:             id,
	}
	v := mv.ToVolume()
	back := FromVolume(v)
	require.Equal(t, mv.BytesPerSector, back.BytesPerSector)
	require.Equal(t, mv.SectorsPerChunk, back.SectorsPerChunk)
	require.Equal(t, mv.GUID, back.GUID)
}

func TestValidateRejectsZeroGeometry(t *testing.T) {
	require.Error(t, MediaValues{}.Validate())
	require.Error(t, MediaValues{BytesPerSector: 512}.Validate())
	require.NoError(t, MediaValues{BytesPerSector: 512, SectorsPerChunk: 64, ChunkSize: 512 * 64}.Validate())
}

func TestFromHeaderMapPreservesUnknownKeys(t *testing.T) {
	h := FromHeaderMap(map[string]string{
		"case_number": "1",
		"x_tool_flag": "custom",
	})
	require.Equal(t, "1", h.CaseNumber)
	require.Equal(t, "custom", h.Unknown["x_tool_flag"])
}

func TestHeaderValuesRoundTripThroughMap(t *testing.T) {
	h := HeaderValues{
		CaseNumber:   "2026-42",
		ExaminerName: "A. Examiner",
		Unknown:      map[string]string{"unknown_dc": "opaque-bytes"},
	}
	m := h.ToHeaderMap()
	back := FromHeaderMap(m)
	require.Equal(t, h.CaseNumber, back.CaseNumber)
	require.Equal(t, h.ExaminerName, back.ExaminerName)
	require.Equal(t, "opaque-bytes", back.Unknown["unknown_dc"])
}

func TestHashValuesString(t *testing.T) {
	h := FromDigest([16]byte{0xab}, [20]byte{0xcd})
	require.Contains(t, h.String(), "md5:")
	require.Contains(t, h.String(), "sha1:")

	legacy := FromHash([16]byte{0xab})
	require.NotContains(t, legacy.String(), "sha1:")
}
