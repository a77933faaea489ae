package normalizer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding identifiers stored on a source configuration.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
	EncodingISO885915   = "iso-8859-15"
)

var ErrUnsupportedEncoding = errors.New("unsupported encoding")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding guesses the text encoding of raw file bytes.
// A BOM wins, then valid UTF-8, and anything else is treated as windows-1252.
func DetectEncoding(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8
	case bytes.HasPrefix(data, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return EncodingUTF16BE
	case utf8.Valid(data):
		return EncodingUTF8
	default:
		return EncodingWindows1252
	}
}

// Decode converts data from the named encoding to a UTF-8 string without BOM.
// An empty name means auto-detect.
func Decode(data []byte, name string) (string, error) {
	if name == "" {
		name = DetectEncoding(data)
	}

	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingUTF8, "utf8":
		data = bytes.TrimPrefix(data, bomUTF8)
		if !utf8.Valid(data) {
			// Mislabelled source; keep the bytes readable rather than failing the import.
			enc = charmap.Windows1252
			break
		}
		return string(data), nil
	case EncodingUTF16LE, "utf-16":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case EncodingUTF16BE:
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case EncodingWindows1252, "cp1252":
		enc = charmap.Windows1252
	case EncodingISO88591, "latin1":
		enc = charmap.ISO8859_1
	case EncodingISO885915, "latin9":
		enc = charmap.ISO8859_15
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}
