package section

import (
	"bytes"
	"compress/zlib"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
)

// ZlibLevel translates a format.Compression{None,Fast,Best} value into
// the compress/flate level it actually names; the two enumerations
// share no numbering (format.CompressionBest is 2, flate.BestCompression
// is 9).
func ZlibLevel(level int) int {
	switch level {
	case format.CompressionNone:
		return zlib.NoCompression
	case format.CompressionFast:
		return zlib.BestSpeed
	case format.CompressionBest:
		return zlib.BestCompression
	default:
		return level
	}
}

// Codepage names the single-byte decode table used for the `header`
// section (HeaderValues: "Values are interpreted in the
// configured header codepage"). `header2`/`xheader` are always UTF-16LE
// and UTF-8 respectively and ignore this setting.
type Codepage string

const (
	CodepageASCII       Codepage = "ascii"
	CodepageWindows1252 Codepage = "windows-1252"
	CodepageISO88591    Codepage = "iso-8859-1"
	CodepageISO88592    Codepage = "iso-8859-2"
	CodepageISO88595    Codepage = "iso-8859-5"
	CodepageISO88596    Codepage = "iso-8859-6"
	CodepageISO88597    Codepage = "iso-8859-7"
	CodepageISO88598    Codepage = "iso-8859-8"
	CodepageISO88599    Codepage = "iso-8859-9"
	CodepageISO885915   Codepage = "iso-8859-15"
	CodepageKOI8R       Codepage = "koi8-r"
)

var codepageTables = map[Codepage]encoding.Encoding{
	CodepageWindows1252: charmap.Windows1252,
	CodepageISO88591:    charmap.ISO8859_1,
	CodepageISO88592:    charmap.ISO8859_2,
	CodepageISO88595:    charmap.ISO8859_5,
	CodepageISO88596:    charmap.ISO8859_6,
	CodepageISO88597:    charmap.ISO8859_7,
	CodepageISO88598:    charmap.ISO8859_8,
	CodepageISO88599:    charmap.ISO8859_9,
	CodepageISO885915:   charmap.ISO8859_15,
	CodepageKOI8R:       charmap.KOI8R,
}

// decodeSingleByte decodes buf using the configured codepage. ASCII (the
// default) and any byte value above 0x7f under it are passed through
// unchanged, matching laenix-ewfgo's UTF-8-fallback behavior for header.
func decodeSingleByte(buf []byte, cp Codepage) (string, error) {
	if cp == "" || cp == CodepageASCII {
		return string(buf), nil
	}
	enc, ok := codepageTables[cp]
	if !ok {
		return "", ioerr.Errorf(ioerr.KindUnsupported, "section: unknown header codepage %q", cp)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), buf)
	if err != nil {
		return "", ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode header codepage "+string(cp))
	}
	return string(out), nil
}

// decodeUTF16 decodes a BOM-prefixed UTF-16 buffer (header2 is always
// UTF-16LE by convention, but a handful of real-world images carry a
// BE BOM, so both are handled the way laenix-ewfgo's ParseHeader does).
func decodeUTF16(buf []byte) (string, error) {
	if len(buf) < 2 {
		return string(buf), nil
	}
	var enc encoding.Encoding
	switch {
	case buf[0] == 0xff && buf[1] == 0xfe:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case buf[0] == 0xfe && buf[1] == 0xff:
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	default:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), buf)
	if err != nil {
		return "", ioerr.Wrap(ioerr.KindCorruptData, err, "section: decode header2 UTF-16")
	}
	return string(out), nil
}

// encodeUTF16LE is the write-side inverse of decodeUTF16, always
// emitting a little-endian BOM.
func encodeUTF16LE(s string) ([]byte, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindInvalidArgument, err, "section: encode header2 UTF-16")
	}
	return out, nil
}

// encodeSingleByte is the write-side inverse of decodeSingleByte.
func encodeSingleByte(s string, cp Codepage) ([]byte, error) {
	if cp == "" || cp == CodepageASCII {
		return []byte(s), nil
	}
	enc, ok := codepageTables[cp]
	if !ok {
		return nil, ioerr.Errorf(ioerr.KindUnsupported, "section: unknown header codepage %q", cp)
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindInvalidArgument, err, "section: encode header codepage "+string(cp))
	}
	return out, nil
}

// inflate DEFLATE (zlib-wrapped)-decompresses buf, used for header,
// header2 and xheader payloads.
func inflate(buf []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: zlib header")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "section: inflate header")
	}
	return out, nil
}

// deflate zlib-compresses buf at the given format.Compression* level,
// translated through ZlibLevel.
func deflate(buf []byte, level int) ([]byte, error) {
	var out bytes.Buffer
	w, err := zlib.NewWriterLevel(&out, ZlibLevel(level))
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindInvalidArgument, err, "section: zlib writer")
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: deflate header")
	}
	if err := w.Close(); err != nil {
		return nil, ioerr.Wrap(ioerr.KindIO, err, "section: close deflate writer")
	}
	return out.Bytes(), nil
}
