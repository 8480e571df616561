package section

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evidencekit/ewf/internal/format"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	values := map[string]string{
		"case_number":     "2026-001",
		"examiner_name":    "J. Doe",
		"evidence_number":  "E1",
		"description":      "seized laptop",
		"notes":            "acquired under warrant",
	}

	encoded, err := EncodeHeader(values, HeaderKindHeader, CodepageASCII, format.CompressionBest)
	require.NoError(t, err)

	decoded, err := DecodeHeader(encoded, HeaderKindHeader, CodepageASCII)
	require.NoError(t, err)
	for k, v := range values {
		require.Equal(t, v, decoded[k])
	}
}

func TestHeader2EncodeDecodeRoundTrip(t *testing.T) {
	values := map[string]string{"case_number": "77", "examiner_name": "investigator"}
	encoded, err := EncodeHeader(values, HeaderKindHeader2, CodepageASCII, format.CompressionBest)
	require.NoError(t, err)

	decoded, err := DecodeHeader(encoded, HeaderKindHeader2, CodepageASCII)
	require.NoError(t, err)
	require.Equal(t, "77", decoded["case_number"])
	require.Equal(t, "investigator", decoded["examiner_name"])
}

func TestHeaderPreservesUnrecognizedFlags(t *testing.T) {
	values := map[string]string{"x_custom_tool_flag": "value"}
	encoded, err := EncodeHeader(values, HeaderKindHeader, CodepageASCII, format.CompressionBest)
	require.NoError(t, err)
	decoded, err := DecodeHeader(encoded, HeaderKindHeader, CodepageASCII)
	require.NoError(t, err)
	require.Equal(t, "value", decoded["x_custom_tool_flag"])
}

func TestHeaderDecodeRejectsTooFewLines(t *testing.T) {
	packed, err := deflate([]byte("1\nmain\n"), format.CompressionBest)
	require.NoError(t, err)
	_, err = DecodeHeader(packed, HeaderKindHeader, CodepageASCII)
	require.Error(t, err)
}

func TestXHeaderRoundTrip(t *testing.T) {
	values := map[string]string{"xml": "<xheader><case_number>9</case_number></xheader>"}
	encoded, err := EncodeHeader(values, HeaderKindXHeader, CodepageASCII, format.CompressionBest)
	require.NoError(t, err)
	decoded, err := DecodeHeader(encoded, HeaderKindXHeader, CodepageASCII)
	require.NoError(t, err)
	require.True(t, strings.Contains(decoded["xml"], "case_number"))
}

func TestAcquirySoftwareVersionBucket(t *testing.T) {
	require.Equal(t, 5, AcquirySoftwareVersionBucket("short"))
	exact := strings.Repeat("a", format.AcquirySoftwareVersionBucketLength)
	require.Equal(t, format.AcquirySoftwareVersionBucketLength, AcquirySoftwareVersionBucket(exact))
	tooLong := strings.Repeat("a", format.AcquirySoftwareVersionBucketLength+10)
	require.Equal(t, format.AcquirySoftwareVersionBucketLength, AcquirySoftwareVersionBucket(tooLong))
}

func TestEncodeHeaderTruncatesAcquirySoftwareVersion(t *testing.T) {
	tooLong := strings.Repeat("v", format.AcquirySoftwareVersionBucketLength+5)
	values := map[string]string{"acquiry_software_version": tooLong}
	encoded, err := EncodeHeader(values, HeaderKindHeader, CodepageASCII, format.CompressionBest)
	require.NoError(t, err)
	decoded, err := DecodeHeader(encoded, HeaderKindHeader, CodepageASCII)
	require.NoError(t, err)
	require.Len(t, decoded["acquiry_software_version"], format.AcquirySoftwareVersionBucketLength)
}
