package importer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffLen = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// legacyCharsets maps chardet results to decoders. Rosters kept in older spreadsheet
// software arrive in Arabic-script or Western code pages.
var legacyCharsets = map[string]encoding.Encoding{
	"windows-1256": charmap.Windows1256,
	"windows-1252": charmap.Windows1252,
	"ISO-8859-1":   charmap.Windows1252,
}

// decodeUTF8 returns a reader yielding r as UTF-8 together with the charset it was read as.
// A BOM wins, then valid UTF-8, then chardet; anything else is read as Windows-1252.
func decodeUTF8(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffLen)

	buf, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return br, "UTF-8", nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), "UTF-16LE", nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), "UTF-16BE", nil
	}

	if validUTF8(buf, len(buf) == sniffLen) {
		return br, "UTF-8", nil
	}

	if res, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		if res.Charset == "UTF-8" {
			return br, "UTF-8", nil
		}

		if enc, ok := legacyCharsets[res.Charset]; ok {
			return transform.NewReader(br, enc.NewDecoder()), res.Charset, nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), "windows-1252", nil
}

// validUTF8 reports whether buf is UTF-8. A truncated sample may end mid-rune.
func validUTF8(buf []byte, truncated bool) bool {
	if !truncated {
		return utf8.Valid(buf)
	}

	for cut := 0; cut < utf8.UTFMax && cut < len(buf); cut++ {
		if utf8.Valid(buf[:len(buf)-cut]) {
			return true
		}
	}

	return false
}
