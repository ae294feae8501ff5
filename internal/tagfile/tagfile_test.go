package tagfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTagFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseCommaFile(t *testing.T) {
	path := writeTagFile(t, "meta.csv", []byte("name, Alpha \narchive.country_code,NZ\n\n"))
	got, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["name"] != "Alpha" || got["archive.country_code"] != "NZ" || len(got) != 2 {
		t.Fatalf("unexpected pairs %#v", got)
	}
}

func TestParseTabFileKeepsCommasInValues(t *testing.T) {
	path := writeTagFile(t, "meta.tsv", []byte("title\tLetters, 1901\nplace\tWellington, NZ\n"))
	got, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["title"] != "Letters, 1901" || got["place"] != "Wellington, NZ" {
		t.Fatalf("unexpected pairs %#v", got)
	}
}

func TestParseLastRowWinsAndExtraColumnsDropped(t *testing.T) {
	path := writeTagFile(t, "meta.csv", []byte("a,1,ignored\nsolo\nb,2\na,3\n,orphan\n"))
	got, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{"a": "3", "b": "2"}
	if len(got) != len(want) {
		t.Fatalf("expected %d pairs, got %#v", len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("key %q: want %q, got %q", k, v, got[k])
		}
	}
}

func TestParseReaderCommaTieBreak(t *testing.T) {
	got, err := ParseReader(strings.NewReader("title\tLetters, 1901\n"), ',')
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if got["title\tLetters"] != "1901" {
		t.Fatalf("expected comma split, got %#v", got)
	}
}

func TestParseStripsBOMAndNormalizesUnicode(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("place,Monte\u0301al\n")...)
	got, err := Parse(writeTagFile(t, "meta.csv", content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["place"] != "Mont\u00e9al" {
		t.Fatalf("expected NFC value, got %q", got["place"])
	}
}

func TestParseBinaryGarbage(t *testing.T) {
	path := writeTagFile(t, "junk.csv", []byte{0x00, 0xFF, 0x13, 0x37, 0x00, 0x80, 0x81, 0x2C})
	got, err := Parse(path)
	if !errors.Is(err, ErrUndetectedDialect) {
		t.Fatalf("expected ErrUndetectedDialect, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no pairs, got %#v", got)
	}
}

func TestParseNoDelimiter(t *testing.T) {
	_, err := Parse(writeTagFile(t, "plain.csv", []byte("just some words\nand more\n")))
	if !errors.Is(err, ErrUndetectedDialect) {
		t.Fatalf("expected ErrUndetectedDialect, got %v", err)
	}
}

func TestParseEmptyFileIsUndetected(t *testing.T) {
	for name, content := range map[string][]byte{
		"empty.csv":      nil,
		"whitespace.tsv": []byte(" \n\t\n"),
	} {
		got, err := Parse(writeTagFile(t, name, content))
		if !errors.Is(err, ErrUndetectedDialect) {
			t.Fatalf("%s: expected ErrUndetectedDialect, got %v", name, err)
		}
		if len(got) != 0 {
			t.Fatalf("%s: expected no pairs, got %#v", name, got)
		}
	}
}

func TestParseMalformedRowReturnsPartial(t *testing.T) {
	path := writeTagFile(t, "meta.csv", []byte("a,1\nb,2\nc,\"bad\"x\nd,4\n"))
	got, err := Parse(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Line != 3 {
		t.Fatalf("expected line 3, got %d", perr.Line)
	}
	if perr.Path != path || !strings.Contains(perr.Error(), "line 3") {
		t.Fatalf("unexpected error detail %q", perr.Error())
	}
	if got["a"] != "1" || got["b"] != "2" || len(got) != 2 {
		t.Fatalf("expected partial mapping, got %#v", got)
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name    string
		sample  string
		want    rune
		wantErr bool
	}{
		{name: "single comma row", sample: "name,Alpha", want: ','},
		{name: "tab rows", sample: "a\t1\nb\t2\n", want: '\t'},
		{name: "quoted comma ignored", sample: "\"a,b\"\t1\nc\t2\n", want: '\t'},
		{name: "prefers comma on tie", sample: "a,b\tc\n", want: ','},
		{name: "inconsistent", sample: "a,b\nc\nd\ne\n", wantErr: true},
		{name: "nul byte", sample: "a,\x00b\n", wantErr: true},
		{name: "invalid utf8", sample: "a,\xff\xfe\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff([]byte(tt.sample))
			if tt.wantErr {
				if !errors.Is(err, ErrUndetectedDialect) {
					t.Fatalf("expected ErrUndetectedDialect, got %v (%q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sniff: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSniffTruncatedSampleDropsFragment(t *testing.T) {
	var b strings.Builder
	for b.Len() < SniffSize {
		b.WriteString("key,value\n")
	}
	sample := []byte(b.String())[:SniffSize]
	sample = append(sample[:SniffSize-3], []byte("xyz")...)
	if got, err := Sniff(sample); err != nil || got != ',' {
		t.Fatalf("expected comma, got %q err=%v", got, err)
	}
}

func TestHasExtension(t *testing.T) {
	exts := []string{".csv", ".tsv"}
	if !HasExtension("META.CSV", exts) || !HasExtension("a.tsv", exts) {
		t.Fatal("expected tag extensions to match")
	}
	if HasExtension("photo.jpg", exts) || HasExtension("csv", exts) {
		t.Fatal("unexpected match")
	}
}
