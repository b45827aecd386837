package astm

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Control bytes of the serial envelope.
const (
	STX = '\x02' // start of frame
	ETX = '\x03' // end of frame
	CR  = '\x0D'
	LF  = '\x0A'
)

type phase int

const (
	idle phase = iota
	collecting
)

// Assembler recovers frame payloads from a byte stream delimited by STX and
// ETX. It is not safe for concurrent use; feeds from several goroutines must
// be serialized by the caller.
type Assembler struct {
	phase phase
	buf   []byte
}

// Feed consumes one byte. When the byte completes a non-blank frame the
// payload is returned with ok set.
func (a *Assembler) Feed(b byte) (frame []byte, ok bool) {
	switch {
	case b == STX:
		// A start marker inside a frame restarts collection.
		a.buf = a.buf[:0]
		a.phase = collecting
	case a.phase != collecting:
		// Stray bytes and unmatched ETX between frames are dropped.
	case b == ETX:
		if !isBlank(a.buf) {
			frame = make([]byte, len(a.buf))
			copy(frame, a.buf)
			ok = true
		}
		a.buf = a.buf[:0]
		a.phase = idle
	default:
		a.buf = append(a.buf, b)
	}
	return frame, ok
}

// Write feeds all of p and returns the frames completed by it, in order.
func (a *Assembler) Write(p []byte) [][]byte {
	var frames [][]byte
	for _, b := range p {
		if frame, ok := a.Feed(b); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Collecting reports whether a frame is currently being accumulated.
func (a *Assembler) Collecting() bool {
	return a.phase == collecting
}

func isBlank(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n', '\v', '\f':
		default:
			return false
		}
	}
	return true
}

// Framer reads frame texts from a byte stream.
type Framer struct {
	br  *bufio.Reader
	asm Assembler
}

func NewFramer(r io.Reader) *Framer {
	return &Framer{br: bufio.NewReader(r)}
}

// Read blocks until the next complete frame and returns its text, decoded
// from ISO-8859-1. Any read error, including io.EOF, is returned as is and
// the partial frame is kept.
func (f *Framer) Read() (string, error) {
	for {
		b, err := f.br.ReadByte()
		if err != nil {
			return "", err
		}
		if frame, ok := f.asm.Feed(b); ok {
			return DecodeText(frame), nil
		}
	}
}

// DecodeText converts single-byte analyzer text to a string.
func DecodeText(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(s)
}
