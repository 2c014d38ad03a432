package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/localdocs/localdocs-cli/internal/logger"
)

// extractPDF extracts text page by page so each span carries its 1-based
// page number. Pages that fail to render are skipped; a file where no page
// yields text is a load failure.
func extractPDF(path string, content []byte) (text string, spans []Span, err error) {
	// The pdf package panics on some malformed files; contain that to a
	// per-file load error.
	defer func() {
		if r := recover(); r != nil {
			text, spans = "", nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("cannot open PDF: %w", err)
	}

	var sb spanBuilder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Debug("%s: cannot extract page %d: %v", path, i, err)
			continue
		}
		pageText = normalizeText(strings.TrimSpace(pageText))
		sb.add(pageText, i, "")
	}

	text, spans = sb.result()
	if strings.TrimSpace(text) == "" {
		return "", nil, errNoText
	}
	return text, spans, nil
}
