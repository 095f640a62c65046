package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docket/core"
)

// extractPDF parses a PDF and returns its text page by page.
// The pdf library panics on some malformed files, so parsing runs behind
// a recover that converts the panic into an extraction error.
func extractPDF(ctx context.Context, data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: malformed pdf: %v", core.ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailed, err)
	}

	result = &Result{}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page doesn't fail the document,
			// the remaining pages still carry content.
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		result.Pages = append(result.Pages, Page{Number: i, Text: text})
	}

	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", core.ErrExtractionFailed)
	}

	return result, nil
}
