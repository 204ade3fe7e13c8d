package binlog

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxEventLine caps a single encoded event. Evaluation messages can carry
// whole property dumps, so this is well above bufio's 64KB default.
const maxEventLine = 32 * 1024 * 1024

// Source yields events in stream order. Next returns io.EOF after the last
// event.
type Source interface {
	Next() (Event, error)
}

// DecodeError reports a malformed or truncated event stream.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event at line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reader decodes the JSON-lines export of a build log, one event per line.
// Gzip-compressed input is detected automatically.
type Reader struct {
	scanner *bufio.Scanner
	closers []io.Closer
	line    int
}

// OpenReader opens the event log at path. The caller must Close it.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader wraps an already open stream.
func NewReader(rd io.Reader) (*Reader, error) {
	br := bufio.NewReader(rd)
	r := &Reader{}

	magic, err := br.Peek(2)
	if err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		r.closers = append(r.closers, gz)
		r.scanner = bufio.NewScanner(gz)
	} else {
		r.scanner = bufio.NewScanner(br)
	}
	r.scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	return r, nil
}

// Next decodes the next event.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return Event{}, &DecodeError{Line: r.line, Err: err}
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, &DecodeError{Line: r.line + 1, Err: err}
	}
	return Event{}, io.EOF
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}
