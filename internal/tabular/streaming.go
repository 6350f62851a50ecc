package tabular

// streaming.go wraps CSV upload streams so the parser only ever sees clean
// UTF-8. Windows tools routinely prepend a BOM and legacy exports contain
// stray Latin-1 bytes; both break encoding/csv headers and cell values.

import (
	"io"
	"unicode/utf8"
)

// sanitizingReader strips a leading UTF-8 BOM and replaces invalid UTF-8
// bytes with '?' on the fly, in O(buffer) memory. Multi-byte runes split
// across Read calls are held back until the rest arrives.
type sanitizingReader struct {
	r          io.Reader
	bomChecked bool
	pending    []byte
}

// newSanitizingReader wraps r for CSV parsing.
func newSanitizingReader(r io.Reader) *sanitizingReader {
	return &sanitizingReader{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *sanitizingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset

	if n > 0 && !s.bomChecked {
		if n < 3 && err == nil && len(p) >= 3 {
			// Not enough bytes yet to rule out a BOM; hold and retry.
			s.pending = append(s.pending, p[:n]...)
			return 0, nil
		}
		s.bomChecked = true
		if n >= 3 && p[0] == 0xEF && p[1] == 0xBB && p[2] == 0xBF {
			copy(p, p[3:n])
			n -= 3
		}
	}
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place, replacing invalid bytes with '?' and
// stashing an incomplete trailing rune into pending unless atEOF. Returns
// the number of bytes to surface to the caller.
func (s *sanitizingReader) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		b := data[read]
		if b < utf8.RuneSelf {
			data[write] = b
			write++
			read++
			continue
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && expectedRuneLen(b) > len(data)-read {
				// Possibly a rune split across reads; hold it back.
				s.pending = append(s.pending, data[read:]...)
				return write
			}
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// expectedRuneLen returns the encoded length implied by a UTF-8 lead byte,
// or 0 for continuation bytes.
func expectedRuneLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
