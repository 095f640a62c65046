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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/docket/ai"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

const (
	// DefaultVectorWeight is the merge weight of the vector branch.
	DefaultVectorWeight float32 = 0.6

	// DefaultGraphWeight is the merge weight of the graph branch.
	DefaultGraphWeight float32 = 0.4

	// DefaultBranchTimeout bounds each retrieval branch independently.
	DefaultBranchTimeout = 2 * time.Second

	// DefaultMaxHops bounds the graph traversal depth.
	DefaultMaxHops = 2

	// DefaultMinSimilarity is the raw cosine floor for the vector branch.
	// Chunks below it are noise, not answers; a sparse corpus returns fewer
	// than k passages instead of padding with irrelevant text.
	DefaultMinSimilarity float32 = 0.1
)

// Engine answers natural-language questions by fanning out to vector
// similarity search and graph traversal, then merging both branches into one
// ranked, cited passage list under partition isolation.
type Engine struct {
	documents storage.DocumentRepository
	vectors   storage.VectorIndex
	graph     storage.GraphRepository
	embedder  ai.Embedder

	vectorWeight  float32
	graphWeight   float32
	minSimilarity float32
	branchTimeout time.Duration
	maxHops       int
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithWeights sets the merge weights for the vector and graph branches.
func WithWeights(vector, graph float32) Option {
	return func(e *Engine) error {
		if vector < 0 || graph < 0 || vector+graph == 0 {
			return ErrInvalidWeights
		}
		e.vectorWeight = vector
		e.graphWeight = graph
		return nil
	}
}

// WithMinSimilarity sets the cosine floor below which vector matches are
// discarded. Zero disables the floor.
func WithMinSimilarity(floor float32) Option {
	return func(e *Engine) error {
		if floor < 0 || floor > 1 {
			return ErrInvalidMinSimilarity
		}
		e.minSimilarity = floor
		return nil
	}
}

// WithBranchTimeout sets the independent per-branch timeout.
func WithBranchTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout > 0 {
			e.branchTimeout = timeout
		}
		return nil
	}
}

// WithMaxHops sets the graph traversal depth bound.
func WithMaxHops(hops int) Option {
	return func(e *Engine) error {
		if hops >= 0 {
			e.maxHops = hops
		}
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(
	documents storage.DocumentRepository,
	vectors storage.VectorIndex,
	graph storage.GraphRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if graph == nil {
		return nil, ErrGraphRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		documents:     documents,
		vectors:       vectors,
		graph:         graph,
		embedder:      provider.Embedder(),
		vectorWeight:  DefaultVectorWeight,
		graphWeight:   DefaultGraphWeight,
		minSimilarity: DefaultMinSimilarity,
		branchTimeout: DefaultBranchTimeout,
		maxHops:       DefaultMaxHops,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Query returns up to k ranked, cited passages answering the question,
// restricted to the caller's partition set.
func (e *Engine) Query(ctx context.Context, set core.PartitionSet, question string, k int) ([]core.Passage, error) {
	return e.QueryWithMonitor(ctx, set, question, k, nil)
}

// QueryWithMonitor runs Query with monitoring callbacks at each retrieval
// stage. A nil monitor is replaced by a no-op.
func (e *Engine) QueryWithMonitor(ctx context.Context, set core.PartitionSet, question string, k int, monitor SearchMonitor) ([]core.Passage, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if set.Empty() {
		return nil, fmt.Errorf("%w: empty partition set", core.ErrPartitionViolation)
	}
	if k <= 0 {
		k = 10
	}

	monitor.Start(question)

	// Each branch runs concurrently under its own deadline. A failed or
	// timed-out branch contributes nothing rather than failing the query.
	type vectorResult struct {
		matches []core.VectorMatch
		err     error
	}
	type graphResult struct {
		matches []core.GraphMatch
		err     error
	}
	vectorCh := make(chan vectorResult, 1)
	graphCh := make(chan graphResult, 1)

	go func() {
		branchCtx, cancel := context.WithTimeout(ctx, e.branchTimeout)
		defer cancel()

		started := time.Now()
		matches, err := e.vectorBranch(branchCtx, set, question, k, monitor)
		monitor.AfterVectorSearch(matches, time.Since(started), err)
		vectorCh <- vectorResult{matches: matches, err: err}
	}()

	go func() {
		branchCtx, cancel := context.WithTimeout(ctx, e.branchTimeout)
		defer cancel()

		started := time.Now()
		matches, err := e.graph.Traverse(branchCtx, set, seedTerms(question), e.maxHops)
		monitor.AfterGraphTraversal(matches, time.Since(started), err)
		graphCh <- graphResult{matches: matches, err: err}
	}()

	vector := <-vectorCh
	graph := <-graphCh

	if vector.err != nil {
		e.logger.Warn("vector branch failed", "err", vector.err)
	}
	if graph.err != nil {
		e.logger.Warn("graph branch failed", "err", graph.err)
	}
	if vector.err != nil && graph.err != nil {
		return nil, fmt.Errorf("%w: vector: %v; graph: %v",
			core.ErrRetrievalUnavailable, vector.err, graph.err)
	}

	hits := mergeBranches(vector.matches, graph.matches, e.vectorWeight, e.graphWeight)
	passages, err := e.resolvePassages(ctx, set, hits, monitor)
	if err != nil {
		return nil, err
	}

	if len(passages) > k {
		passages = passages[:k]
	}
	monitor.Finish(passages)
	return passages, nil
}

// vectorBranch embeds the question and searches the vector index. The same
// embedder processes chunks at ingestion time, so query and chunk vectors
// live in one space.
func (e *Engine) vectorBranch(ctx context.Context, set core.PartitionSet, question string, k int, monitor SearchMonitor) ([]core.VectorMatch, error) {
	embedding, err := e.embedder.EmbedText(ctx, question)
	monitor.AfterQueryEmbedding(err)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return e.vectors.Search(ctx, set, embedding, e.minSimilarity, k)
}

// resolvePassages loads chunk text and document provenance for the merged
// hits, re-checks partition isolation on every passage, and returns them
// ranked by combined score with document recency as the tie-break.
func (e *Engine) resolvePassages(ctx context.Context, set core.PartitionSet, hits []mergedHit, monitor SearchMonitor) ([]core.Passage, error) {
	docs := make(map[core.ID]*core.Document)
	updated := make(map[core.ID]time.Time)

	passages := make([]core.Passage, 0, len(hits))
	for _, hit := range hits {
		doc, ok := docs[hit.DocId]
		if !ok {
			var err error
			doc, err = e.documents.GetDocument(ctx, hit.DocId)
			if err != nil {
				// The document can vanish between the branch scan and
				// resolution; skip its hits.
				e.logger.Debug("dropping hit for missing document", "doc", hit.DocId, "err", err)
				continue
			}
			docs[hit.DocId] = doc
			updated[hit.DocId] = doc.UpdatedAt
		}

		chunk, err := e.documents.GetChunk(ctx, hit.DocId, hit.Seq)
		if err != nil {
			e.logger.Debug("dropping hit for missing chunk", "doc", hit.DocId, "seq", hit.Seq, "err", err)
			continue
		}

		passage := core.Passage{
			DocId:      hit.DocId,
			Seq:        hit.Seq,
			Partition:  doc.Partition,
			Text:       chunk.Text,
			Score:      hit.Score,
			Source:     hit.Source,
			Start:      chunk.Start,
			End:        chunk.End,
			EntityPath: hit.Path,
		}

		// Defense in depth: the branches already scope their scans to the
		// set, but a violating passage must never be returned.
		if !set.Contains(doc.Partition) {
			e.logger.Warn("partition violation dropped",
				"doc", hit.DocId, "partition", string(doc.Partition))
			monitor.PartitionViolationDropped(&passage)
			continue
		}

		switch hit.Source {
		case core.SourceBoth:
			monitor.VectorAndGraphHit(&passage)
		case core.SourceVector:
			monitor.VectorHit(&passage)
		case core.SourceGraph:
			monitor.GraphHit(&passage)
		}
		passages = append(passages, passage)
	}

	slices.SortFunc(passages, func(a, b core.Passage) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		// More recently updated documents win ties.
		return updated[b.DocId].Compare(updated[a.DocId])
	})

	return passages, nil
}
