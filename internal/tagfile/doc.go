// Package tagfile reads delimited key/value sidecar files (".csv", ".tsv")
// that annotate a directory with inherited metadata.
//
// The delimiter is sniffed from the first 2048 bytes; comma and tab are the
// only candidates. Each row contributes its first two fields as a key/value
// pair with surrounding whitespace trimmed, later rows overriding earlier ones.
// Failures are recoverable: ErrUndetectedDialect means the file contributes
// nothing, and a *ParseError carries the line of the first malformed row while
// Parse still returns the pairs read before it.
package tagfile
