package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/docket/core"
)

// MIME types the extractor understands.
const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC      = "application/msword"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
)

// Page is one page of extracted text. Formats without page structure
// produce a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Result is the output of text extraction for one document.
type Result struct {
	Pages []Page
}

// Text joins all pages into the document's full text. Chunk offsets refer
// to rune positions within this string.
func (r *Result) Text() string {
	parts := make([]string, len(r.Pages))
	for i, page := range r.Pages {
		parts[i] = page.Text
	}
	return strings.Join(parts, "\n")
}

// Extractor converts raw document bytes into plain text.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract converts document bytes to text, dispatching on MIME type.
// When mimeType is empty the filename extension decides. Returns
// core.ErrUnsupportedFormat for formats the pipeline doesn't handle and
// wraps parse failures in core.ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, filename, mimeType string, data []byte) (*Result, error) {
	if mimeType == "" {
		mimeType = DetectMimeType(filename)
	}

	switch normalizeMime(mimeType) {
	case MimePDF:
		return extractPDF(ctx, data)
	case MimeDOCX, MimeDOC:
		// Word uploads share one path. Many files labeled .doc are DOCX
		// archives in practice; a genuinely binary legacy file fails the
		// zip parse and is reported as unreadable for this document.
		return extractDOCX(data)
	case MimeText, MimeMarkdown:
		return extractText(data)
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mimeType)
	}
}

// DetectMimeType maps a filename extension to a supported MIME type.
// Returns an empty string for unknown extensions.
func DetectMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".doc":
		return MimeDOC
	case ".txt":
		return MimeText
	case ".md", ".markdown":
		return MimeMarkdown
	default:
		return ""
	}
}

// normalizeMime strips parameters like "; charset=utf-8".
func normalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
