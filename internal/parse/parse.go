// Package parse turns files into the tagged content shapes the chunker
// consumes: a page map (PDF-like), a flat string, or a line sequence.
// Heavy format parsers (PDF, DOCX) are external collaborators plugged in
// through the PageParser interface; text, HTML and code paths are handled
// here directly.
package parse

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// Kind tags the shape of parsed content.
type Kind string

const (
	KindPages Kind = "pages"
	KindText  Kind = "text"
	KindLines Kind = "lines"
)

// Page is one labeled page of a page-mapped document. Order is the
// document's reading order.
type Page struct {
	Label string
	Text  string
}

// Metadata records how a document was parsed.
type Metadata struct {
	// Parser is the parser name/version that produced the content.
	Parser string
	// TotalChars is the total parsed text length in characters.
	TotalChars int
	// ParseType is the content shape tag.
	ParseType Kind
}

// ParsedText is the tagged union of content shapes. Exactly one of
// Pages, Text, or Lines is populated, matching Metadata.ParseType.
type ParsedText struct {
	Pages    []Page
	Text     string
	Lines    []string
	Metadata Metadata
}

// PageParser extracts labeled pages from a binary document format.
// Implementations wrap external PDF/DOCX libraries.
type PageParser interface {
	// Parse returns the document's pages in reading order.
	Parse(path string) ([]Page, error)
	// Name identifies the parser and version for provenance metadata.
	Name() string
	// Extensions lists the lowercase file extensions this parser handles.
	Extensions() []string
}

// Parser dispatches files to the right reader by extension.
type Parser struct {
	pageParsers map[string]PageParser
}

// NewParser creates a parser with optional page-parser collaborators.
func NewParser(pageParsers ...PageParser) *Parser {
	p := &Parser{pageParsers: make(map[string]PageParser)}
	for _, pp := range pageParsers {
		for _, ext := range pp.Extensions() {
			p.pageParsers[strings.ToLower(ext)] = pp
		}
	}
	return p
}

// File parses path into one of the three content shapes:
//   - a registered PageParser extension (.pdf, .docx, ...) -> pages
//   - .txt, .md -> flat text
//   - .html, .htm -> flat text with markup stripped
//   - anything else -> line sequence (code fallback)
func (p *Parser) File(path string) (*ParsedText, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if pp, ok := p.pageParsers[ext]; ok {
		pages, err := pp.Parse(path)
		if err != nil {
			return nil, pqerr.Wrap(pqerr.ErrCodeParsingImpossible, err)
		}
		total := 0
		for _, pg := range pages {
			total += len(pg.Text)
		}
		return &ParsedText{
			Pages: pages,
			Metadata: Metadata{
				Parser:     pp.Name(),
				TotalChars: total,
				ParseType:  KindPages,
			},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInvalidInput, err)
	}
	text := string(data)

	switch ext {
	case ".txt", ".md":
		return FlatText(text, "plaintext"), nil
	case ".html", ".htm":
		return FlatText(StripHTML(text), "html-strip"), nil
	default:
		return LineText(text), nil
	}
}

// FlatText wraps already-extracted text as a flat-string parse result.
func FlatText(text, parser string) *ParsedText {
	return &ParsedText{
		Text: text,
		Metadata: Metadata{
			Parser:     parser,
			TotalChars: len(text),
			ParseType:  KindText,
		},
	}
}

// LineText splits text into lines with terminators preserved, so
// concatenating the lines reproduces the input exactly.
func LineText(text string) *ParsedText {
	lines := SplitLinesKeepEnds(text)
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	return &ParsedText{
		Lines: lines,
		Metadata: Metadata{
			Parser:     "lines",
			TotalChars: total,
			ParseType:  KindLines,
		},
	}
}

// SplitLinesKeepEnds splits on '\n' keeping the terminator attached to
// each line. The empty string yields no lines.
func SplitLinesKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

var (
	htmlTagRE    = regexp.MustCompile(`(?s)<(script|style)\b.*?</(script|style)>|<[^>]*>`)
	htmlBlankRE  = regexp.MustCompile(`\n{3,}`)
	htmlEntities = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
	)
)

// StripHTML removes tags, script/style bodies, and common entities,
// collapsing runs of blank lines. It is a best-effort text extraction,
// not an HTML renderer.
func StripHTML(html string) string {
	text := htmlTagRE.ReplaceAllString(html, "")
	text = htmlEntities.Replace(text)
	text = htmlBlankRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// MaybeIsText reports whether content looks like readable text: mostly
// printable runes with a small tolerance for stray control bytes. Used
// as the ingestion validation heuristic; callers may bypass it.
func MaybeIsText(s string) bool {
	if s == "" {
		return false
	}
	printable := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable)/float64(total) > 0.9
}
