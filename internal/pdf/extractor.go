// Package pdfutil inspects PDF evidence so the scorer has more to go on
// than the file name.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned by Inspect for data without a PDF header.
var ErrNotPDF = errors.New("not a pdf document")

// maxExcerpt bounds the text kept in a Summary.
const maxExcerpt = 4096

var magic = []byte("%PDF-")

// Summary is what the scorer and the worker learn from a PDF.
type Summary struct {
	Pages   int    `json:"pages"`
	Excerpt string `json:"excerpt,omitempty"`
}

// IsPDF reports whether the content type or the leading bytes mark a PDF.
func IsPDF(contentType string, head []byte) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(head, magic)
}

// Inspect counts pages and extracts plain text using ledongthuc/pdf.
func Inspect(data []byte) (Summary, error) {
	if !bytes.HasPrefix(data, magic) {
		return Summary{}, ErrNotPDF
	}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Summary{}, fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return Summary{}, fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
		if builder.Len() >= maxExcerpt {
			break
		}
	}
	text := strings.TrimSpace(builder.String())
	if len(text) > maxExcerpt {
		text = text[:maxExcerpt]
	}
	return Summary{Pages: total, Excerpt: text}, nil
}
