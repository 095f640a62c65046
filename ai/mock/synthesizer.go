package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/docket/core"
)

// MockSynthesizer is a test double for ai.Synthesizer.
// It allows custom behavior injection via function fields.
type MockSynthesizer struct {
	// SynthesizeFunc is called by Synthesize if set.
	// If nil, uses default behavior echoing the passages with citations.
	SynthesizeFunc func(ctx context.Context, question string, passages []core.Passage) (string, error)

	callCount int
}

// NewMockSynthesizer creates a mock synthesizer with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockSynthesizer().
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// Synthesize produces a deterministic answer citing every passage in order.
func (m *MockSynthesizer) Synthesize(ctx context.Context, question string, passages []core.Passage) (string, error) {
	m.callCount++

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, question, passages)
	}

	if len(passages) == 0 {
		return "", fmt.Errorf("synthesize: no passages to ground the answer")
	}

	var sb strings.Builder
	sb.WriteString("Answer to: ")
	sb.WriteString(question)
	for i := range passages {
		fmt.Fprintf(&sb, " [%d]", i+1)
	}
	return sb.String(), nil
}

// CallCount returns the number of times Synthesize was called.
func (m *MockSynthesizer) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockSynthesizer) Reset() {
	m.callCount = 0
	m.SynthesizeFunc = nil
}
