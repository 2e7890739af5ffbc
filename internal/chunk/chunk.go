// Package chunk splits parsed document content into overlapping pieces of
// a target character size. Three strategies cover the three content
// shapes: a page-keyed rolling buffer, token-budget windows over flat
// text, and a line-keyed rolling buffer for code.
package chunk

import (
	"fmt"
	"math"
	"unicode/utf8"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
	"github.com/corpusqa/corpusqa/internal/parse"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize = 3000
	DefaultOverlap   = 100
)

// Options configures chunk size and overlap, both in characters.
// Overlap must be strictly smaller than ChunkSize; this is a caller
// contract, validated at the config layer.
type Options struct {
	ChunkSize int
	Overlap   int
}

// DefaultOptions returns the standard 3000/100 configuration.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// Piece is one chunk of a document: its text plus a name carrying the
// owning document's name and a positional descriptor.
type Piece struct {
	Name string
	Text string
}

// Split dispatches parsed content to the chunker matching its shape.
func Split(pt *parse.ParsedText, docname string, opts Options, tok Tokenizer) ([]*Piece, error) {
	switch pt.Metadata.ParseType {
	case parse.KindPages:
		return Pages(pt.Pages, docname, opts)
	case parse.KindText:
		return Tokens(pt.Text, docname, opts, tok)
	case parse.KindLines:
		return Lines(pt.Lines, docname, opts)
	default:
		return nil, pqerr.Newf(pqerr.ErrCodeInvalidInput, "unknown parse type %q", pt.Metadata.ParseType)
	}
}

// Pages chunks page-mapped content with a rolling buffer. Whenever the
// buffer exceeds the target size a chunk of exactly that size is emitted,
// labeled with the inclusive page range it spans, and the overlap-sized
// tail seeds the next buffer. A final chunk is emitted for any remainder
// longer than the overlap, or unconditionally if nothing was emitted yet.
func Pages(pages []parse.Page, docname string, opts Options) ([]*Piece, error) {
	if len(pages) == 0 {
		return nil, pqerr.ParsingImpossible(docname)
	}

	var pieces []*Piece
	var buf []rune
	var labels []string

	for _, pg := range pages {
		buf = append(buf, []rune(pg.Text)...)
		labels = append(labels, pg.Label)
		for len(buf) > opts.ChunkSize {
			pieces = append(pieces, &Piece{
				Name: pageName(docname, labels),
				Text: string(buf[:opts.ChunkSize]),
			})
			buf = buf[opts.ChunkSize-opts.Overlap:]
			labels = []string{pg.Label}
		}
	}

	if len(buf) > opts.Overlap || len(pieces) == 0 {
		n := len(buf)
		if n > opts.ChunkSize {
			n = opts.ChunkSize
		}
		pieces = append(pieces, &Piece{
			Name: pageName(docname, labels),
			Text: string(buf[:n]),
		})
	}
	return pieces, nil
}

func pageName(docname string, labels []string) string {
	return fmt.Sprintf("%s pages %s-%s", docname, labels[0], labels[len(labels)-1])
}

// Tokens chunks flat text on token boundaries. Character budgets are
// converted to token budgets using the document's own characters-per-token
// ratio, then fixed-size overlapping token windows are decoded back to
// text. This keeps boundaries token-aligned instead of slicing mid-token.
func Tokens(text, docname string, opts Options, tok Tokenizer) ([]*Piece, error) {
	tokens := tok.Encode(text)
	if len(tokens) == 0 {
		return nil, pqerr.ParsingImpossible(docname)
	}

	charCount := utf8.RuneCountInString(text)
	tokenCount := len(tokens)
	charsPerToken := float64(charCount) / float64(tokenCount)
	chunkTokens := float64(opts.ChunkSize) / charsPerToken
	overlapTokens := float64(opts.Overlap) / charsPerToken
	chunkCount := int(math.Ceil(float64(tokenCount) / chunkTokens))

	pieces := make([]*Piece, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		start := int(float64(i)*chunkTokens - overlapTokens)
		if start < 0 {
			start = 0
		}
		end := int(float64(i+1)*chunkTokens + overlapTokens)
		if end > tokenCount {
			end = tokenCount
		}
		pieces = append(pieces, &Piece{
			Name: fmt.Sprintf("%s chunk %d", docname, i+1),
			Text: tok.Decode(tokens[start:end]),
		})
	}
	return pieces, nil
}

// Lines chunks a line sequence with the same rolling-buffer strategy as
// Pages, keyed on zero-based line numbers instead of page labels.
func Lines(lines []string, docname string, opts Options) ([]*Piece, error) {
	if len(lines) == 0 {
		return nil, pqerr.ParsingImpossible(docname)
	}

	var pieces []*Piece
	var buf []rune
	lastLine := 0
	i := 0

	for i = range lines {
		buf = append(buf, []rune(lines[i])...)
		for len(buf) > opts.ChunkSize {
			pieces = append(pieces, &Piece{
				Name: fmt.Sprintf("%s lines %d-%d", docname, lastLine, i),
				Text: string(buf[:opts.ChunkSize]),
			})
			buf = buf[opts.ChunkSize-opts.Overlap:]
			lastLine = i
		}
	}

	if len(buf) > opts.Overlap || len(pieces) == 0 {
		n := len(buf)
		if n > opts.ChunkSize {
			n = opts.ChunkSize
		}
		pieces = append(pieces, &Piece{
			Name: fmt.Sprintf("%s lines %d-%d", docname, lastLine, i),
			Text: string(buf[:n]),
		})
	}
	return pieces, nil
}
