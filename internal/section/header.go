package section

import (
	"strings"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
)

// headerFlagToKey maps the single/double-letter flags used in the
// tab-separated `header`/`header2` body to the long-form HeaderValues
// keys. Grounded in laenix-ewfgo's HeaderSectionString and its
// ParseHeader flag switch (ewf.go), generalized into a table instead of
// a hand-written switch per flag.
var headerFlagToKey = map[string]string{
	"c":   "case_number",
	"n":   "evidence_number",
	"a":   "description",
	"e":   "examiner_name",
	"t":   "notes",
	"av":  "acquiry_software_version",
	"ov":  "acquiry_operating_system",
	"m":   "acquiry_date",
	"u":   "system_date",
	"p":   "password",
	"pid": "process_identifier",
	"dc":  "unknown_dc",
	"ext": "extents",
	"r":   "compression_level",
	"md":  "model",
	"sn":  "serial_number",
}

var headerKeyToFlag = func() map[string]string {
	m := make(map[string]string, len(headerFlagToKey))
	for flag, key := range headerFlagToKey {
		m[key] = flag
	}
	return m
}()

// HeaderKind distinguishes the three header section variants. header and
// header2 share the flag/value body and differ only in encoding; xheader
// carries an XML body that is kept whole under the "xml" key.
type HeaderKind int

const (
	HeaderKindHeader HeaderKind = iota
	HeaderKindHeader2
	HeaderKindXHeader
)

// DecodeHeader inflates and decodes a header/header2/xheader payload
// into a flat key->value map. `unknown_dc`'s bytes are preserved
// verbatim: it is never
// interpreted beyond the flag/value split every other key goes through.
func DecodeHeader(payload []byte, kind HeaderKind, cp Codepage) (map[string]string, error) {
	raw, err := inflate(payload)
	if err != nil {
		return nil, err
	}

	var text string
	switch kind {
	case HeaderKindHeader2:
		text, err = decodeUTF16(raw)
	case HeaderKindXHeader:
		text = string(raw) // xheader is UTF-8 XML; callers needing structure parse it further.
	default:
		text, err = decodeSingleByte(raw, cp)
	}
	if err != nil {
		return nil, err
	}

	if kind == HeaderKindXHeader {
		return map[string]string{"xml": text}, nil
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return nil, ioerr.Errorf(ioerr.KindCorruptData, "section: header body has %d lines, want >= 4", len(lines))
	}

	flags := strings.Split(lines[2], "\t")
	values := strings.Split(lines[3], "\t")
	if len(flags) != len(values) {
		return nil, ioerr.Errorf(ioerr.KindCorruptData,
			"section: header flag/value column mismatch (%d vs %d)", len(flags), len(values))
	}

	out := make(map[string]string, len(flags))
	for i, flag := range flags {
		key, ok := headerFlagToKey[flag]
		if !ok {
			key = "x_" + flag // preserve unrecognized flags rather than drop them
		}
		out[key] = values[i]
	}
	return out, nil
}

// EncodeHeader renders values back into the tab-separated body, deflates
// it and (for header2) prefixes a UTF-16LE BOM, mirroring the 4-line
// structure DecodeHeader expects: a version line, a "main" marker line,
// the flag line and the value line.
func EncodeHeader(values map[string]string, kind HeaderKind, cp Codepage, compressionLevel int) ([]byte, error) {
	if kind == HeaderKindXHeader {
		xml := values["xml"]
		return deflate([]byte(xml), compressionLevel)
	}

	flags := make([]string, 0, len(values))
	vals := make([]string, 0, len(values))
	for key, val := range values {
		flag, ok := headerKeyToFlag[key]
		if !ok {
			flag = strings.TrimPrefix(key, "x_")
		}
		if key == "acquiry_software_version" {
			val = val[:AcquirySoftwareVersionBucket(val)]
		}
		flags = append(flags, flag)
		vals = append(vals, val)
	}

	body := strings.Join([]string{
		"1",
		"main",
		strings.Join(flags, "\t"),
		strings.Join(vals, "\t"),
		"",
	}, "\n")

	switch kind {
	case HeaderKindHeader2:
		encoded, err := encodeUTF16LE(body)
		if err != nil {
			return nil, err
		}
		return deflate(encoded, compressionLevel)
	default:
		encoded, err := encodeSingleByte(body, cp)
		if err != nil {
			return nil, err
		}
		return deflate(encoded, compressionLevel)
	}
}

// AcquirySoftwareVersionBucket reports the identifier-length bucket used
// when rendering `acquiry_software_version`. Some historic tools compare
// only 24 bytes here, truncating the last character; this module always
// uses the full 25-byte bucket (format.AcquirySoftwareVersionBucketLength).
func AcquirySoftwareVersionBucket(value string) int {
	if len(value) > format.AcquirySoftwareVersionBucketLength {
		return format.AcquirySoftwareVersionBucketLength
	}
	return len(value)
}
