package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docket/core"
)

// extractText wraps plain text or markdown bytes as a single page.
// Invalid UTF-8 input is reinterpreted as Latin-1, which maps every byte
// to a rune and so never fails.
func extractText(data []byte) (*Result, error) {
	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		text = latin1ToString(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty document", core.ErrExtractionFailed)
	}

	return &Result{Pages: []Page{{Number: 1, Text: text}}}, nil
}

// latin1ToString decodes ISO 8859-1 bytes, one byte per rune.
func latin1ToString(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
