package tagfile

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// SniffSize is the number of leading bytes inspected when detecting the delimiter.
const SniffSize = 2048

// minConsistency is the share of sampled lines that must agree on the
// per-line delimiter count for a candidate to be accepted.
const minConsistency = 0.9

// ErrUndetectedDialect reports that no supported delimiter could be detected.
var ErrUndetectedDialect = errors.New("could not determine delimiter")

// Sniff returns the delimiter used by sample. Samples containing NUL bytes or
// invalid UTF-8 are rejected outright. When comma and tab fit equally well,
// comma wins.
func Sniff(sample []byte) (rune, error) {
	return SniffPreferring(sample, ',')
}

// SniffPreferring is Sniff with an explicit tie-break delimiter, used for
// ".tsv" files whose values commonly contain commas.
func SniffPreferring(sample []byte, preferred rune) (rune, error) {
	candidates := []rune{',', '\t'}
	if preferred == '\t' {
		candidates = []rune{'\t', ','}
	}
	sample = bytes.TrimPrefix(sample, utf8BOM)
	if bytes.IndexByte(sample, 0) >= 0 {
		return 0, ErrUndetectedDialect
	}
	lines := sampleLines(sample)
	if len(lines) == 0 {
		return 0, ErrUndetectedDialect
	}
	if !utf8.Valid(bytes.Join(lines, nil)) {
		return 0, ErrUndetectedDialect
	}

	var (
		best      rune
		bestScore float64
	)
	for _, delim := range candidates {
		score := consistency(lines, byte(delim))
		if score >= minConsistency && score > bestScore {
			best, bestScore = delim, score
		}
	}
	if best == 0 {
		return 0, ErrUndetectedDialect
	}
	return best, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sampleLines splits sample into non-blank lines. When the sample was cut at
// SniffSize the trailing fragment is dropped unless it is the only line.
func sampleLines(sample []byte) [][]byte {
	truncated := len(sample) >= SniffSize-len(utf8BOM) && !bytes.HasSuffix(sample, []byte("\n"))
	raw := bytes.Split(sample, []byte("\n"))
	if truncated && len(raw) > 1 {
		raw = raw[:len(raw)-1]
	}
	lines := make([][]byte, 0, len(raw))
	for _, line := range raw {
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	if truncated && len(lines) == 1 {
		// A single cut-off line may end in the middle of a rune.
		for len(lines[0]) > 0 && !utf8.Valid(lines[0]) {
			r, _ := utf8.DecodeLastRune(lines[0])
			if r != utf8.RuneError {
				break
			}
			lines[0] = lines[0][:len(lines[0])-1]
		}
	}
	return lines
}

// consistency reports the fraction of lines whose delimiter count (outside
// double quotes) equals the most common non-zero count.
func consistency(lines [][]byte, delim byte) float64 {
	freq := make(map[int]int)
	for _, line := range lines {
		freq[countUnquoted(line, delim)]++
	}
	mode, modeLines := 0, 0
	for count, n := range freq {
		if count == 0 {
			continue
		}
		if n > modeLines || (n == modeLines && count < mode) {
			mode, modeLines = count, n
		}
	}
	if mode == 0 {
		return 0
	}
	return float64(modeLines) / float64(len(lines))
}

func countUnquoted(line []byte, delim byte) int {
	count := 0
	quoted := false
	for _, b := range line {
		switch {
		case b == '"':
			quoted = !quoted
		case b == delim && !quoted:
			count++
		}
	}
	return count
}
