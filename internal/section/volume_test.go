package section

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVolumeEncodeDecodeRoundTrip(t *testing.T) {
	v := &VolumeInfo{
		MediaType:        0x01,
		MediaFlags:       0x03,
		CompressionLevel: 0x02,
		SectorsPerChunk:  64,
		BytesPerSector:   512,
		NumberOfSectors:  2048,
		MediaSize:        2048 * 512,
		ErrorGranularity: 64,
		GUID:             [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}

	encoded := EncodeVolume(v)
	require.Len(t, encoded, 128)

	decoded, err := DecodeVolume(encoded)
	require.NoError(t, err)
	require.Equal(t, v, decoded)
}

func TestVolumeDecodeRejectsShortPayload(t *testing.T) {
	_, err := DecodeVolume(make([]byte, 64))
	require.Error(t, err)
}

func TestVolumeDecodeDetectsChecksumMismatch(t *testing.T) {
	encoded := EncodeVolume(&VolumeInfo{BytesPerSector: 512, SectorsPerChunk: 64})
	encoded[0] ^= 0xff
	_, err := DecodeVolume(encoded)
	require.Error(t, err)
}
