package extract

// streaming.go holds the readers every CSV passes through before parsing:
//
//   - skipBOM drops a UTF-8 byte order mark written by Excel on Windows
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' so a stray Latin-1
//     byte cannot make the CSV parser choke on a whole file
//   - sizeLimiter fails with ErrFileTooLarge once a limit is crossed
//
// All three work in O(buffer) memory.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned once more than the allowed bytes were read.
var ErrFileTooLarge = errors.New("file too large")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Wrap applies BOM skipping, UTF-8 sanitizing and, when maxBytes > 0, a
// size limit. The limit counts bytes of the original input.
func Wrap(r io.Reader, maxBytes int64) io.Reader {
	if maxBytes > 0 {
		r = &sizeLimiter{r: r, max: maxBytes}
	}
	return newUTF8Sanitizer(skipBOM(r))
}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil &&
		head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// sizeLimiter counts bytes and fails once max is exceeded.
type sizeLimiter struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *sizeLimiter) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, l.max)
	}
	return n, err
}

// utf8Sanitizer rewrites invalid UTF-8 in place. A multi-byte sequence split
// across two reads is carried over in pending.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}
	if asciiOnly(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err != nil), err
}

func asciiOnly(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize compacts data in place and returns the number of bytes to hand
// out. Unless atEOF, an incomplete trailing sequence is held back.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
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
