// Package intake filters candidate uploads down to the files a draft may
// keep. Everything here is in-memory and synchronous.
package intake

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

// MaxFileSize is the per-file ceiling (10 MiB).
const MaxFileSize int64 = 10 << 20

const pdfType = "application/pdf"

// Rejection reasons reported per file.
const (
	ReasonType = "unsupported file type"
	ReasonSize = "file exceeds 10 MiB limit"
)

// ErrIndexOutOfRange is returned by Remove for a position outside the list.
var ErrIndexOutOfRange = errors.New("file index out of range")

// Candidate is a file offered by the uploader before any checks.
type Candidate struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.ReaderAt
}

// Rejection explains why a candidate was dropped.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Outcome is the result of validating one batch of candidates.
type Outcome struct {
	Accepted []model.AcceptedFile `json:"accepted"`
	Rejected []Rejection          `json:"rejected"`
}

// RejectedCount returns how many candidates were dropped.
func (o Outcome) RejectedCount() int {
	return len(o.Rejected)
}

// Validate splits candidates into accepted files and rejections, keeping the
// input order in both lists.
func Validate(candidates []Candidate) Outcome {
	var out Outcome
	for _, c := range candidates {
		if reason, ok := check(c); !ok {
			out.Rejected = append(out.Rejected, Rejection{Name: c.Name, Reason: reason})
			continue
		}
		out.Accepted = append(out.Accepted, model.AcceptedFile{
			ID:        uuid.NewString(),
			Name:      c.Name,
			MimeType:  c.MimeType,
			SizeBytes: c.Size,
			Content:   c.Content,
		})
	}
	return out
}

func check(c Candidate) (string, bool) {
	// Size is checked first so oversized files are refused whatever they claim to be.
	if c.Size < 0 || c.Size > MaxFileSize {
		return ReasonSize, false
	}
	if !AllowedType(c.MimeType) {
		return ReasonType, false
	}
	return "", true
}

// AllowedType reports whether a declared MIME type is an image, a PDF or a
// document format.
func AllowedType(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	return strings.HasPrefix(mt, "image/") || mt == pdfType || strings.Contains(mt, "document")
}

// Append returns a new slice holding existing followed by accepted.
func Append(existing, accepted []model.AcceptedFile) []model.AcceptedFile {
	out := make([]model.AcceptedFile, 0, len(existing)+len(accepted))
	out = append(out, existing...)
	return append(out, accepted...)
}

// Remove returns a new slice without the entry at index.
func Remove(files []model.AcceptedFile, index int) ([]model.AcceptedFile, error) {
	if index < 0 || index >= len(files) {
		return nil, fmt.Errorf("remove %d of %d: %w", index, len(files), ErrIndexOutOfRange)
	}
	out := make([]model.AcceptedFile, 0, len(files)-1)
	out = append(out, files[:index]...)
	return append(out, files[index+1:]...), nil
}

// SniffMIME returns declared unless it is empty or generic, in which case
// the type is detected from the first bytes of content.
func SniffMIME(declared string, head []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(head)
}
