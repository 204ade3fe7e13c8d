// Package memory holds the embedding store: a flat, line-oriented file of
// vector+text records, the pipeline that fills it from projected log lines,
// and in-memory cosine ranking over the loaded records.
package memory

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Separator terminates every record in the store file.
const Separator = "-------------------------------------------------"

// maxStoreLine bounds one line of the store. A 3072-dim vector is ~40KB;
// a text line can reach the 8191-token ceiling.
const maxStoreLine = 16 * 1024 * 1024

var (
	// ErrDimensionMismatch reports vectors of different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector reports a record without vector components. Its header
	// would be an empty line, which ends the store on read.
	ErrEmptyVector = errors.New("empty vector")
	// ErrSeparatorLine reports record text with a line equal to Separator.
	ErrSeparatorLine = errors.New("text line equals record separator")
)

// Record is one embedded log line.
type Record struct {
	Vector []float32 `json:"vector"`
	Text   string    `json:"text"`
}

// FormatError reports a malformed store file.
type FormatError struct {
	Record int // 1-based record number
	Line   int // 1-based line number
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("store record %d (line %d): %v", e.Record, e.Line, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// FormatVector renders v as semicolon-separated floats. Uses the shortest
// representation that parses back to the same float32.
func FormatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 12)
	for i, f := range v {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	return b.String()
}

// ParseVector is the inverse of FormatVector. Empty fields are skipped.
func ParseVector(line string) ([]float32, error) {
	fields := strings.Split(line, ";")
	v := make([]float32, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", field, err)
		}
		v = append(v, float32(f))
	}
	return v, nil
}

// EscapeText appends a space to every line of text that equals Separator,
// so the text can be stored. Other text is returned unchanged.
func EscapeText(text string) string {
	if !strings.Contains(text, Separator) {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == Separator {
			lines[i] = Separator + " "
		}
	}
	return strings.Join(lines, "\n")
}

// validateRecord reports a record that would not read back unchanged.
func validateRecord(r Record) error {
	if len(r.Vector) == 0 {
		return ErrEmptyVector
	}
	for _, line := range strings.Split(r.Text, "\n") {
		if line == Separator {
			return ErrSeparatorLine
		}
	}
	return nil
}

// WriteRecords serializes recs in store format. Every record is checked
// before anything is written; see EscapeText for separator lines.
func WriteRecords(w io.Writer, recs []Record) error {
	for i, r := range recs {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	bw := bufio.NewWriter(w)
	for _, r := range recs {
		bw.WriteString(FormatVector(r.Vector))
		bw.WriteByte('\n')
		bw.WriteString(r.Text)
		bw.WriteByte('\n')
		bw.WriteString(Separator)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadRecords parses a store stream. An empty line where a vector is
// expected, or the end of input, ends the store. Every record must share
// the first record's dimensionality.
func ReadRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxStoreLine)
	sc.Split(scanRawLines)

	var (
		recs   []Record
		lineNo int
		dims   = -1
	)

	for {
		if !sc.Scan() {
			break
		}
		lineNo++
		header := sc.Text()
		if header == "" {
			break
		}

		recNo := len(recs) + 1
		vec, err := ParseVector(header)
		if err != nil {
			return nil, &FormatError{Record: recNo, Line: lineNo, Err: err}
		}
		if dims < 0 {
			dims = len(vec)
		} else if len(vec) != dims {
			return nil, &FormatError{Record: recNo, Line: lineNo,
				Err: fmt.Errorf("%w: %d, store has %d", ErrDimensionMismatch, len(vec), dims)}
		}

		var text []string
		terminated := false
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if line == Separator {
				terminated = true
				break
			}
			text = append(text, line)
		}
		if !terminated {
			if err := sc.Err(); err != nil {
				return nil, &FormatError{Record: recNo, Line: lineNo, Err: err}
			}
			return nil, &FormatError{Record: recNo, Line: lineNo, Err: io.ErrUnexpectedEOF}
		}

		recs = append(recs, Record{Vector: vec, Text: strings.Join(text, "\n")})
	}

	if err := sc.Err(); err != nil {
		return nil, &FormatError{Record: len(recs) + 1, Line: lineNo + 1, Err: err}
	}
	return recs, nil
}

// scanRawLines splits on '\n' only. Unlike bufio.ScanLines it keeps a
// trailing '\r', so text lines read back byte for byte.
func scanRawLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// FileStore is the store file on disk. It is append-only while it is
// being generated and read once for querying.
type FileStore struct {
	path string
}

// NewFileStore returns a handle for path. Nothing is created until Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the store location.
func (s *FileStore) Path() string { return s.path }

// Exists reports whether the store file is present. Only existence is
// checked; the content is not validated.
func (s *FileStore) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat store: %w", err)
}

// Append writes recs at the end of the store, creating it if needed.
func (s *FileStore) Append(recs []Record) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open store for append: %w", err)
	}
	if err := WriteRecords(f, recs); err != nil {
		f.Close()
		return fmt.Errorf("append to store: %w", err)
	}
	return f.Close()
}

// Load reads every record.
func (s *FileStore) Load() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// Remove deletes the store file. A missing file is not an error.
func (s *FileStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove store: %w", err)
	}
	return nil
}
