package section

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestEncodeDecodeRoundTrip(t *testing.T) {
	var md5sum [16]byte
	var sha1sum [20]byte
	for i := range md5sum {
		md5sum[i] = byte(i)
	}
	for i := range sha1sum {
		sha1sum[i] = byte(i + 1)
	}

	encoded := EncodeDigest(md5sum, sha1sum)
	gotMD5, gotSHA1, err := DecodeDigest(encoded)
	require.NoError(t, err)
	require.Equal(t, md5sum, gotMD5)
	require.Equal(t, sha1sum, gotSHA1)
}

func TestHashEncodeDecodeRoundTrip(t *testing.T) {
	var md5sum [16]byte
	for i := range md5sum {
		md5sum[i] = byte(i * 2)
	}
	encoded := EncodeHash(md5sum)
	got, err := DecodeHash(encoded)
	require.NoError(t, err)
	require.Equal(t, md5sum, got)
}

func TestDigestDecodeDetectsChecksumMismatch(t *testing.T) {
	encoded := EncodeDigest([16]byte{}, [20]byte{})
	encoded[0] ^= 0xff
	_, _, err := DecodeDigest(encoded)
	require.Error(t, err)
}

func TestSectorRangesEncodeDecodeRoundTrip(t *testing.T) {
	ranges := []SectorRange{
		{StartSector: 0, SectorCount: 64},
		{StartSector: 1024, SectorCount: 32},
	}
	encoded := EncodeSectorRanges(ranges)
	got, err := DecodeSectorRanges(encoded)
	require.NoError(t, err)
	require.Equal(t, ranges, got)
}

func TestSectorRangesEmpty(t *testing.T) {
	encoded := EncodeSectorRanges(nil)
	got, err := DecodeSectorRanges(encoded)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSectorRangesDecodeDetectsTruncation(t *testing.T) {
	encoded := EncodeSectorRanges([]SectorRange{{StartSector: 1, SectorCount: 1}})
	_, err := DecodeSectorRanges(encoded[:len(encoded)-4])
	require.Error(t, err)
}

func TestLtreeEncodeDecodeRoundTrip(t *testing.T) {
	xml := []byte("<ltree><file name=\"evidence.dat\"/></ltree>")
	encoded := EncodeLtree(xml)
	require.Len(t, encoded, LtreeHeaderSize+len(xml))

	got, err := DecodeLtree(encoded)
	require.NoError(t, err)
	require.Equal(t, xml, got)
}

func TestLtreeDecodeDetectsMD5IntegrityMismatch(t *testing.T) {
	xml := []byte("<ltree/>")
	encoded := EncodeLtree(xml)
	encoded[len(encoded)-1] ^= 0xff // corrupt the XML body, not the header
	_, err := DecodeLtree(encoded)
	require.Error(t, err)
}

func TestEmptyBlockSentinelIsDeterministic(t *testing.T) {
	a, err := EmptyBlockSentinel(32768)
	require.NoError(t, err)
	b, err := EmptyBlockSentinel(32768)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
