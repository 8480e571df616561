package section

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableEncodeDecodeRoundTrip(t *testing.T) {
	entries := []RawTableEntry{
		{Offset: 100, Compressed: false},
		{Offset: 540, Compressed: true},
		{Offset: 980, Compressed: true},
	}
	const base = 100

	encoded := EncodeTable(base, entries)
	gotBase, gotEntries, err := DecodeTable(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(base), gotBase)
	require.Equal(t, entries, gotEntries)
}

func TestTableEncodeDecodeMultipleBlocks(t *testing.T) {
	// tableBlockSize is 16384; 16385 entries force a second block with
	// its own trailing checksum, exercising the block-splitting path in
	// both EncodeTable and DecodeTable.
	n := tableBlockSize + 1
	entries := make([]RawTableEntry, n)
	for i := range entries {
		entries[i] = RawTableEntry{Offset: uint64(i * 4), Compressed: i%7 == 0}
	}

	encoded := EncodeTable(0, entries)
	_, gotEntries, err := DecodeTable(encoded)
	require.NoError(t, err)
	require.Equal(t, entries, gotEntries)
}

func TestTableDecodeRejectsShortPayload(t *testing.T) {
	_, _, err := DecodeTable([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestTableDecodeDetectsHeaderChecksumMismatch(t *testing.T) {
	encoded := EncodeTable(0, []RawTableEntry{{Offset: 0}})
	encoded[0] ^= 0xff // flip a bit in EntryCount, invalidating the header checksum
	_, _, err := DecodeTable(encoded)
	require.Error(t, err)
}

func TestTableDecodeDetectsBlockChecksumMismatch(t *testing.T) {
	encoded := EncodeTable(0, []RawTableEntry{{Offset: 0}, {Offset: 64}})
	// Corrupt a byte inside the entry block itself, after the header.
	encoded[TableHeaderSize] ^= 0xff
	_, _, err := DecodeTable(encoded)
	require.Error(t, err)
}
