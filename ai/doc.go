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


// Package ai provides abstractions for AI services used in docket.
//
// This package defines interfaces for AI operations including text embeddings,
// legal entity extraction, and answer synthesis. It follows the dependency
// inversion principle, allowing the ingestion pipeline and search engine to
// depend on abstractions rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around four key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - EntityExtractor: Extracts legal entities and relations from text
//   - Synthesizer: Composes an answer from retrieved passages
//   - AIProvider: Aggregates AI services for convenient initialization
//
// Implementations live in subpackages:
//
//   - ai/openai: OpenAI-compatible API implementations (works with Ollama,
//     LocalAI, vLLM, and other compatible servers)
//   - ai/mock: Deterministic test doubles
//
// # Usage
//
// Create a provider and use its services:
//
//	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "habeas corpus")
//
// In tests, use the mock provider:
//
//	provider := mock.NewMockProvider()
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. The ingestion
// pipeline embeds chunk batches from multiple workers at once.
package ai
