// Package document loads supported files (PDF, DOCX, Markdown) into plain
// text plus a page map that ties rune offsets back to pages or section
// headings.
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Type identifies a supported file format.
type Type string

const (
	TypePDF      Type = "pdf"
	TypeDOCX     Type = "docx"
	TypeMarkdown Type = "md"
)

// ErrNoDocuments is returned when a directory yields zero loadable files.
var ErrNoDocuments = errors.New("no supported documents found")

// errNoText marks files that parse but contain nothing to index.
var errNoText = errors.New("no extractable text")

// LoadError records a single file that could not be loaded. Loading other
// files continues; these are reported, not fatal.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Span associates a half-open range of rune offsets in Document.Text with
// the page it came from (PDF) or the nearest heading above it (DOCX,
// Markdown). Spans are ordered by Start and never overlap.
type Span struct {
	Start   int    // rune offset, inclusive
	End     int    // rune offset, exclusive
	Page    int    // 1-based page number, 0 when the format has no pages
	Section string // nearest heading, "" when none
}

// Document is one loaded file.
//
// Text is NFC-normalized with LF newlines; every offset elsewhere in the
// system (spans, chunk boundaries) is a rune offset into this exact string.
type Document struct {
	Path  string // absolute, cleaned
	Name  string // base name, for display
	Type  Type
	Title string
	Text  string
	Spans []Span
}

// Locate returns the page and section for a rune offset: the span with the
// greatest Start not exceeding off. Offsets past the last span fall into it.
func (d *Document) Locate(off int) (page int, section string) {
	i := sort.Search(len(d.Spans), func(i int) bool { return d.Spans[i].Start > off }) - 1
	if i < 0 {
		return 0, ""
	}
	return d.Spans[i].Page, d.Spans[i].Section
}

// normalizeText canonicalizes extracted text: CRLF and bare CR become LF,
// then Unicode NFC so rune offsets are stable across platforms and runs.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}

// spanBuilder accumulates text parts and their spans, separating parts with
// a blank line and merging consecutive parts that share page and section.
type spanBuilder struct {
	b     strings.Builder
	n     int // rune length so far
	spans []Span
}

func (sb *spanBuilder) add(part string, page int, section string) {
	if part == "" {
		return
	}
	if sb.n > 0 {
		sb.b.WriteString("\n\n")
		sb.n += 2
	}
	start := sb.n
	sb.b.WriteString(part)
	sb.n += utf8.RuneCountInString(part)

	if k := len(sb.spans); k > 0 && sb.spans[k-1].Page == page && sb.spans[k-1].Section == section {
		sb.spans[k-1].End = sb.n
		return
	}
	sb.spans = append(sb.spans, Span{Start: start, End: sb.n, Page: page, Section: section})
}

func (sb *spanBuilder) result() (string, []Span) {
	return sb.b.String(), sb.spans
}
