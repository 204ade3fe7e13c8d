package binlog

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// newlines folds CRLF and bare CR line breaks into LF.
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// FormatEvent renders ev with the given qualifier prefix. Line breaks in
// the result are always "\n".
func FormatEvent(ev Event, prefix string) string {
	return newlines.Replace(formatEvent(ev, prefix))
}

func formatEvent(ev Event, prefix string) string {
	switch ev.Kind {
	case KindWarning:
		return fmt.Sprintf("%s%s(%d,%d): %s warning %s: %s", prefix, ev.File, ev.Line, ev.Column, ev.Subcategory, ev.Code, ev.Message)
	case KindError:
		return fmt.Sprintf("%s%s(%d,%d): %s error %s: %s", prefix, ev.File, ev.Line, ev.Column, ev.Subcategory, ev.Code, ev.Message)
	case KindMessage:
		if ev.Line != 0 {
			return fmt.Sprintf("%s%s(%d,%d): %s", prefix, ev.File, ev.Line, ev.Column, ev.Message)
		}
	}
	return prefix + ev.Message
}

// Projector pulls events from a Source and yields one text line per event,
// in input order. It is single-pass: once Scan returns false it stays
// false.
//
//	p := binlog.NewProjector(src, binlog.NewResolver())
//	for p.Scan() {
//		use(p.Text())
//	}
//	if err := p.Err(); err != nil { ... }
type Projector struct {
	src      Source
	resolver *Resolver
	text     string
	err      error
	done     bool
	count    int
}

// NewProjector creates a projector. The resolver is mutated as *Started
// events stream past.
func NewProjector(src Source, resolver *Resolver) *Projector {
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Projector{src: src, resolver: resolver}
}

// Scan advances to the next line. It returns false at the end of the
// stream or on a decode error; check Err afterwards.
func (p *Projector) Scan() bool {
	if p.done {
		return false
	}

	ev, err := p.src.Next()
	if err != nil {
		p.done = true
		if !errors.Is(err, io.EOF) {
			p.err = err
		}
		p.text = ""
		return false
	}

	p.resolver.Observe(ev)
	p.text = FormatEvent(ev, p.resolver.Resolve(ev.Context).Prefix())
	p.count++
	return true
}

// Text returns the line produced by the last successful Scan.
func (p *Projector) Text() string { return p.text }

// Err returns the first non-EOF error from the source.
func (p *Projector) Err() error { return p.err }

// Count returns how many lines were produced so far.
func (p *Projector) Count() int { return p.count }

// Close closes the underlying source if it holds resources.
func (p *Projector) Close() error {
	if c, ok := p.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
