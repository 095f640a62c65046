package mock

import (
	"context"
	"strings"

	"github.com/poiesic/docket/ai"
	"github.com/poiesic/docket/core"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, uses default simple word extraction.
	ExtractEntitiesFunc func(ctx context.Context, text string) (*ai.Extraction, error)

	callCount int
}

// NewMockEntityExtractor creates a mock entity extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractEntities extracts simple mock entities from text.
// Default behavior: builds entities from the first few words and links
// consecutive pairs with a "references" relation.
func (m *MockEntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.Extraction, error) {
	m.callCount++

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return &ai.Extraction{}, nil
	}

	entities := make([]ai.ExtractedEntity, 0, 5)
	seen := make(map[string]bool)
	for _, word := range words {
		if len(entities) >= 5 {
			break
		}

		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true

		entityType := string(core.EntityLegalConcept)
		if len(word) > 8 {
			entityType = string(core.EntityOrganization)
		}

		entities = append(entities, ai.ExtractedEntity{
			Name: word,
			Type: entityType,
		})
	}

	relations := make([]ai.ExtractedRelation, 0, len(entities))
	for i := 1; i < len(entities); i++ {
		relations = append(relations, ai.ExtractedRelation{
			Source:     entities[i-1].Name,
			SourceType: entities[i-1].Type,
			Target:     entities[i].Name,
			TargetType: entities[i].Type,
			Type:       string(core.EdgeReferences),
		})
	}

	return &ai.Extraction{Entities: entities, Relations: relations}, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.callCount = 0
	m.ExtractEntitiesFunc = nil
}
