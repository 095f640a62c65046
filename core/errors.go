// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Ingestion error taxonomy. Terminal errors record an input defect and are
// never retried; retryable errors are infrastructure faults the coordinator
// retries with backoff.
var (
	// ErrUnsupportedFormat indicates the file's MIME type has no extractor. Terminal.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the file is malformed, encrypted, or
	// otherwise unreadable. Terminal.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmbeddingUnavailable indicates the embedding service could not be
	// reached or returned a transient fault. Retryable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrPartitionViolation indicates a caller requested a partition it does
	// not own. Always rejected, never retried.
	ErrPartitionViolation = errors.New("partition access violation")

	// ErrRetrievalUnavailable indicates both retrieval branches failed for a
	// query. Distinct from an empty result.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidEdge indicates an Edge failed validation.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidPartition indicates a malformed partition name or set.
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrEmptyFilename indicates the document filename is empty.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrEmptyChunkText indicates a chunk with no text.
	ErrEmptyChunkText = errors.New("chunk text cannot be empty")

	// ErrEmptyEntityName indicates an entity with no name.
	ErrEmptyEntityName = errors.New("entity name cannot be empty")

	// ErrUnknownEntityType indicates an entity type outside EntityTypes.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrUnknownEdgeType indicates an edge type outside EdgeTypes.
	ErrUnknownEdgeType = errors.New("unknown edge type")
)

// IsTerminal reports whether err records an input defect that retrying
// cannot fix.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrExtractionFailed)
}

// IsRetryable reports whether err is a transient infrastructure fault worth
// retrying with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}
