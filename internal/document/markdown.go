package document

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var atxHeading = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// extractMarkdown keeps the file body verbatim (after newline and NFC
// normalization) and records ATX headings as section boundaries. Fenced code
// blocks are kept as text and never treated as headings. A leading YAML
// frontmatter block is metadata, not body: it is stripped before offsets
// are assigned, and its title field names the document.
func extractMarkdown(content []byte) (text string, spans []Span, title string, err error) {
	meta, body := splitFrontmatter(normalizeText(string(content)))
	text = body
	title = strings.TrimSpace(meta["title"])
	if strings.TrimSpace(text) == "" {
		return "", nil, "", errNoText
	}

	var (
		off      int    // rune offset of the current line start
		fence    string // marker that opened the current fence, "" outside
		section  string
		spanFrom int
	)
	flush := func(upTo int) {
		if upTo > spanFrom {
			spans = append(spans, Span{Start: spanFrom, End: upTo, Section: section})
			spanFrom = upTo
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineRunes := utf8.RuneCountInString(line)
		trimmed := strings.TrimSpace(line)

		switch {
		case fence == "" && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")):
			fence = trimmed[:3]
		case fence != "":
			// Only the marker that opened the fence closes it; a literal
			// ``` inside a ~~~ block stays text.
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
		default:
			if m := atxHeading.FindStringSubmatch(strings.TrimSuffix(line, "\n")); m != nil {
				// The heading line opens its own section.
				flush(off)
				section = strings.TrimSpace(m[2])
				if title == "" && len(m[1]) == 1 {
					title = section
				}
			}
		}
		off += lineRunes
	}
	flush(off)

	return text, spans, title, nil
}
