package astm

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var (
	ErrEmptyFrame        = errors.New("empty frame")
	ErrMissingHeader     = errors.New("missing header segment")
	ErrMissingTerminator = errors.New("missing terminator segment")
)

// Segment tags.
const (
	TagHeader     = 'H'
	TagPatient    = 'P'
	TagOrder      = 'O'
	TagQuery      = 'Q'
	TagResult     = 'R'
	TagComment    = 'C'
	TagTerminator = 'L'
)

// Parser turns frame texts into Messages and numbers them. A Parser may be
// shared between goroutines.
type Parser struct {
	catalog *Catalog
	seq     atomic.Int64
	now     func() time.Time
}

// NewParser returns a parser resolving test names through catalog; nil
// means the built in catalog.
func NewParser(catalog *Catalog) *Parser {
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	return &Parser{catalog: catalog, now: time.Now}
}

// Parse decodes one frame. It always returns a Message; problems with the
// frame are reported through Valid and ValidationError.
func (p *Parser) Parse(text string) *Message {
	msg := &Message{
		ID:       p.seq.Add(1),
		Raw:      text,
		Received: p.now(),
		Category: CategoryResults,
		Results:  []Result{},
		Comments: []Comment{},
	}
	if err := p.route(msg, text); err != nil {
		msg.Valid = false
		msg.ValidationError = err.Error()
		return msg
	}
	msg.Valid = true
	return msg
}

// route fills msg from the lines of text and validates the result.
func (p *Parser) route(msg *Message, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode: %v", r)
		}
	}()

	lines := splitLines(text)
	if len(lines) == 0 {
		return ErrEmptyFrame
	}

	for _, line := range lines {
		switch line[0] {
		case TagHeader:
			h := decodeHeader(line)
			msg.Header = &h
			msg.Category = categoryOf(msg.Header)
		case TagPatient:
			pt := decodePatient(line)
			msg.Patient = &pt
		case TagOrder:
			o := decodeOrder(line)
			msg.Order = &o
		case TagQuery:
			q := decodeQuery(line)
			msg.Query = &q
		case TagResult:
			msg.Results = append(msg.Results, decodeResult(line, p.catalog))
		case TagComment:
			msg.Comments = append(msg.Comments, decodeComment(line))
		case TagTerminator:
			t := decodeTerminator(line)
			msg.Terminator = &t
		}
	}

	if msg.Header == nil {
		return ErrMissingHeader
	}
	if msg.Terminator == nil {
		return ErrMissingTerminator
	}
	return nil
}

// splitLines splits on CR, LF and CRLF and drops blank lines.
func splitLines(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == CR || r == LF
	})
	lines := parts[:0]
	for _, l := range parts {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
