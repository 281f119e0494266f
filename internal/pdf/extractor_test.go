package pdfutil

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onePagePDF builds a minimal, well-formed single page document with a
// correct xref table.
func onePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInspectExtractsText(t *testing.T) {
	sum, err := Inspect(onePagePDF("Deed of title"))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pages)
	assert.Contains(t, sum.Excerpt, "Deed of title")
}

func TestInspectRejectsNonPDF(t *testing.T) {
	_, err := Inspect([]byte("\x89PNG\r\n\x1a\n"))
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestInspectCorruptPDF(t *testing.T) {
	_, err := Inspect([]byte("%PDF-1.4\nnot really"))
	assert.Error(t, err)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("application/pdf", nil))
	assert.True(t, IsPDF("application/octet-stream", []byte("%PDF-1.7")))
	assert.False(t, IsPDF("image/png", []byte("\x89PNG")))
}
