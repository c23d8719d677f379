package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// newUTF8Reader wraps r so that it yields UTF-8.
//
// Club exports come out of Excel "Save as CSV" as often as out of web tools,
// so the order is:
//  1. BOM (UTF-8 BOM is dropped, UTF-16 is decoded)
//  2. Valid UTF-8 passes through
//  3. chardet heuristics
//  4. Windows-1252
func newUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 8192)

	buf, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	if bytes.HasPrefix(buf, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	}

	if bytes.HasPrefix(buf, bomUTF16LE) {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	}

	if bytes.HasPrefix(buf, bomUTF16BE) {
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), nil
	}

	if validUTF8Prefix(buf) {
		return br, nil
	}

	result, detectErr := chardet.NewTextDetector().DetectBest(buf)
	if detectErr == nil {
		switch result.Charset {
		case "UTF-8":
			return br, nil
		case "ISO-8859-1", "windows-1252":
			return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
		case "ISO-8859-15":
			return transform.NewReader(br, charmap.ISO8859_15.NewDecoder()), nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}

// validUTF8Prefix is utf8.Valid that tolerates a multi-byte sequence cut
// off by the peek window.
func validUTF8Prefix(buf []byte) bool {
	if utf8.Valid(buf) {
		return true
	}
	for i := 1; i < utf8.UTFMax && i < len(buf); i++ {
		if utf8.Valid(buf[:len(buf)-i]) && !utf8.FullRune(buf[len(buf)-i:]) {
			return true
		}
	}
	return false
}
