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

import (
	"fmt"
	"slices"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Filename must not be empty
//   - Partition must be well-formed
//   - ByteSize must not be negative
//
// NOT validated (populated by the coordinator):
//   - Status (zero until the coordinator initializes it)
//   - ID (0 is valid from database sequences)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFilename)
	}

	if err := doc.Partition.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.ByteSize < 0 {
		return fmt.Errorf("%w: negative byte size %d", ErrInvalidDocument, doc.ByteSize)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Seq must not be negative
//   - Offsets must be ordered (Start < End)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkText)
	}

	if chunk.Seq < 0 {
		return fmt.Errorf("%w: negative sequence %d", ErrInvalidChunk, chunk.Seq)
	}

	if chunk.Start < 0 || chunk.End <= chunk.Start {
		return fmt.Errorf("%w: bad offsets [%d,%d)", ErrInvalidChunk, chunk.Start, chunk.End)
	}

	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name must not be empty and must be in normalized form
//   - Type must be one of EntityTypes
//   - Partition must be well-formed
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityName)
	}

	if entity.Name != NormalizeEntityName(entity.Name) {
		return fmt.Errorf("%w: name %q is not normalized", ErrInvalidEntity, entity.Name)
	}

	if !slices.Contains(EntityTypes, entity.Type) {
		return fmt.Errorf("%w: %w %q", ErrInvalidEntity, ErrUnknownEntityType, string(entity.Type))
	}

	if err := entity.Partition.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	return nil
}

// ValidateEdge validates an Edge according to domain rules.
//
// Validation rules:
//   - Source and target must be set and distinct
//   - Type must be one of EdgeTypes
func ValidateEdge(edge *Edge) error {
	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}

	if edge.SourceId == 0 || edge.TargetId == 0 {
		return fmt.Errorf("%w: missing endpoint", ErrInvalidEdge)
	}

	if edge.SourceId == edge.TargetId {
		return fmt.Errorf("%w: self-loop on entity %d", ErrInvalidEdge, edge.SourceId)
	}

	if !slices.Contains(EdgeTypes, edge.Type) {
		return fmt.Errorf("%w: %w %q", ErrInvalidEdge, ErrUnknownEdgeType, string(edge.Type))
	}

	return nil
}
