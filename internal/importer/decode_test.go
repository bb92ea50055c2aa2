package importer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestDecodeUTF8(t *testing.T) {
	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("Name\nحسن\n")
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   []byte
		want    string
		charset string
	}{
		{name: "PlainUTF8", input: []byte("Name\nحسن\n"), want: "Name\nحسن\n", charset: "UTF-8"},
		{name: "UTF8BOM", input: append([]byte{0xEF, 0xBB, 0xBF}, "Name\n"...), want: "Name\n", charset: "UTF-8"},
		{name: "UTF16LE", input: []byte(utf16le), want: "Name\nحسن\n", charset: "UTF-16LE"},
		{name: "Empty", input: nil, want: "", charset: "UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, charset, err := decodeUTF8(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.charset, charset)

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeUTF8_LongInputSplitRune(t *testing.T) {
	// Place a two-byte rune across the sniffing boundary.
	input := strings.Repeat("a", sniffLen-1) + "é" + "\n"

	r, charset, err := decodeUTF8(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}
