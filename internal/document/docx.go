package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDOCX pulls paragraph text out of word/document.xml in document
// order. Heading-styled paragraphs become section names in the page map;
// DOCX carries no page geometry in its XML, so Page stays 0.
func extractDOCX(content []byte) (text string, spans []Span, title string, err error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, "", fmt.Errorf("not a valid DOCX archive: %w", err)
	}

	raw, err := readZipFile(reader, "word/document.xml")
	if err != nil {
		return "", nil, "", err
	}
	if raw == nil {
		return "", nil, "", fmt.Errorf("missing word/document.xml")
	}

	var doc documentXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", nil, "", fmt.Errorf("cannot parse document.xml: %w", err)
	}

	var sb spanBuilder
	section := ""
	for _, para := range doc.Body.Paragraphs {
		var pb strings.Builder
		for _, r := range para.Runs {
			for _, t := range r.Text {
				pb.WriteString(t.Content)
			}
		}
		paraText := normalizeText(strings.TrimSpace(pb.String()))
		if paraText == "" {
			continue
		}
		if isHeadingStyle(para.Props.Style.Val) {
			section = paraText
		}
		sb.add(paraText, 0, section)
	}

	text, spans = sb.result()
	if strings.TrimSpace(text) == "" {
		return "", nil, "", errNoText
	}

	title = extractDOCXTitle(reader)
	return text, spans, title, nil
}

// documentXML mirrors the parts of word/document.xml we care about. The w:
// namespace is matched by local name.
type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
	} `xml:"body"`
}

type paragraphXML struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []runXML `xml:"r"`
}

type runXML struct {
	Text []textXML `xml:"t"`
}

type textXML struct {
	Content string `xml:",chardata"`
}

func isHeadingStyle(style string) bool {
	return strings.HasPrefix(style, "Heading") || style == "Title"
}

// extractDOCXTitle reads the document title from docProps/core.xml, if any.
func extractDOCXTitle(reader *zip.Reader) string {
	raw, err := readZipFile(reader, "docProps/core.xml")
	if err != nil || raw == nil {
		return ""
	}
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(raw, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}

func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %w", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", name, err)
		}
		return b, nil
	}
	return nil, nil
}
