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


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/docket/ai"
	"github.com/poiesic/docket/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// wireEntity is an internal type used for JSON unmarshaling.
// It matches the structure expected from the LLM.
type wireEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// wireRelation matches the relation structure in the LLM's response.
type wireRelation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// wireExtraction is the wrapper structure for the LLM's JSON response.
type wireExtraction struct {
	Entities  []wireEntity   `json:"entities"`
	Relations []wireRelation `json:"relations"`
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &EntityExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractEntities extracts legal entities and relations from text using an LLM.
// Entities with unknown types and relations referencing unlisted entities are
// dropped rather than passed downstream.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.Extraction, error) {
	text = truncateRunes(strings.TrimSpace(text), maxExtractionRunes)

	systemPrompt := buildExtractionPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result wireExtraction
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.Extraction{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		// Success
		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	return e.sanitize(&result), nil
}

// sanitize normalizes names and drops anything outside the allowed
// vocabularies. Relations only survive when both endpoints survived.
func (e *EntityExtractor) sanitize(wire *wireExtraction) *ai.Extraction {
	extraction := &ai.Extraction{}
	entityType := make(map[string]string)

	for _, ent := range wire.Entities {
		name := core.NormalizeEntityName(ent.Name)
		entType := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(ent.Type)), " ", "_")

		if name == "" {
			continue
		}
		if !slices.Contains(core.EntityTypes, core.EntityType(entType)) {
			e.logger.Debug("dropping entity with unknown type", "name", name, "type", entType)
			continue
		}
		if _, dup := entityType[name]; dup {
			continue
		}

		entityType[name] = entType
		extraction.Entities = append(extraction.Entities, ai.ExtractedEntity{
			Name: name,
			Type: entType,
		})
	}

	for _, rel := range wire.Relations {
		source := core.NormalizeEntityName(rel.Source)
		target := core.NormalizeEntityName(rel.Target)
		relType := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(rel.Type)), " ", "_")

		sourceType, ok := entityType[source]
		if !ok {
			continue
		}
		targetType, ok := entityType[target]
		if !ok {
			continue
		}
		if source == target {
			continue
		}
		if !slices.Contains(core.EdgeTypes, core.EdgeType(relType)) {
			e.logger.Debug("dropping relation with unknown type", "type", relType)
			continue
		}

		extraction.Relations = append(extraction.Relations, ai.ExtractedRelation{
			Source:     source,
			SourceType: sourceType,
			Target:     target,
			TargetType: targetType,
			Type:       relType,
		})
	}

	return extraction
}
