package tagfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseError reports a malformed row. Parse returns it together with the
// pairs collected before the failure.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("tag file line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("tag file %s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads the tag file at path. Open and read failures are returned
// unwrapped from the os package so callers can tell them apart from the
// recoverable ErrUndetectedDialect and *ParseError conditions.
func Parse(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	preferred := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		preferred = '\t'
	}
	pairs, err := ParseReader(f, preferred)
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Path = path
	}
	return pairs, err
}

// ParseReader sniffs the delimiter from the head of r and parses the rest.
// preferred breaks ties between equally plausible delimiters.
func ParseReader(r io.Reader, preferred rune) (map[string]string, error) {
	br := bufio.NewReaderSize(r, SniffSize)
	sample, err := br.Peek(SniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if len(bytes.TrimSpace(sample)) == 0 {
		return nil, fmt.Errorf("no rows: %w", ErrUndetectedDialect)
	}
	delim, err := SniffPreferring(sample, preferred)
	if err != nil {
		return nil, err
	}
	if _, err := br.Discard(len(bomPrefix(sample))); err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	pairs := make(map[string]string)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return pairs, nil
		}
		if err != nil {
			line := 0
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				line = csvErr.Line
				err = csvErr.Err
			}
			return pairs, &ParseError{Line: line, Err: err}
		}
		key, value, ok := pair(record)
		if !ok {
			continue
		}
		pairs[key] = value
	}
}

// pair extracts the first two fields. Extra columns are ignored, as are rows
// without a key.
func pair(record []string) (string, string, bool) {
	if len(record) < 2 {
		return "", "", false
	}
	key := norm.NFC.String(strings.TrimSpace(record[0]))
	value := norm.NFC.String(strings.TrimSpace(record[1]))
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func bomPrefix(sample []byte) []byte {
	if bytes.HasPrefix(sample, utf8BOM) {
		return utf8BOM
	}
	return nil
}

// HasExtension reports whether name ends in one of exts (case-insensitive).
// exts are expected lower-cased with a leading dot.
func HasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
