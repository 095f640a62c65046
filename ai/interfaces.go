package ai

import (
	"context"

	"github.com/poiesic/docket/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor extracts legal entities and the relationships between them
// from document text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes a chunk of document text and returns the
	// legal entities it mentions together with typed relations between them.
	// Entity names are normalized (lowercase, collapsed whitespace) and
	// types are restricted to core.EntityTypes / core.EdgeTypes; anything
	// else the model produces is dropped, never passed through.
	// Returns an empty extraction if nothing is found.
	ExtractEntities(ctx context.Context, text string) (*Extraction, error)
}

// Synthesizer composes a natural-language answer from retrieved passages.
// The search engine treats the output as opaque prose; retrieval quality
// never depends on it.
// Implementations must be thread-safe for concurrent use.
type Synthesizer interface {
	// Synthesize answers a question grounded in the given passages.
	// Passages arrive in ranked order, best first.
	Synthesize(ctx context.Context, question string, passages []core.Passage) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages service instances, ensuring they share
// configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// EntityExtractor returns the entity extraction service.
	// The returned EntityExtractor is safe for concurrent use.
	EntityExtractor() EntityExtractor

	// Synthesizer returns the answer synthesis service.
	// The returned Synthesizer is safe for concurrent use.
	Synthesizer() Synthesizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
