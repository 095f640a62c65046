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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docket/ai"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/extract"
	"github.com/poiesic/docket/storage"
)

const (
	// DefaultMaxAttempts bounds retries of transient failures per stage.
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay is the initial backoff delay; it doubles per retry.
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Coordinator owns the document ingestion lifecycle. It drives each document
// through extracting, embedding and indexing, persisting the status after
// each stage's writes are durable so a crash resumes from the last committed
// state. Documents process concurrently on a worker pool; a per-document
// lock serializes attempts for the same document.
type Coordinator struct {
	documents storage.DocumentRepository
	tasks     storage.TaskRepository
	vectors   storage.VectorIndex
	graph     storage.GraphRepository
	extractor *extract.Extractor
	chunker   *extract.Chunker
	embedder  ai.Embedder
	entities  ai.EntityExtractor

	pool  *ants.Pool
	locks *lockTable
	wg    sync.WaitGroup

	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithPoolSize sets the worker pool size for concurrent document processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			size = 1
		}

		if c.pool != nil {
			c.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithMaxAttempts sets the retry budget for transient failures.
func WithMaxAttempts(attempts int) Option {
	return func(c *Coordinator) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithRetryBaseDelay sets the initial backoff delay between retries.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(c *Coordinator) error {
		c.baseDelay = delay
		return nil
	}
}

// WithChunker sets a custom chunker, for non-default chunk size or overlap.
func WithChunker(chunker *extract.Chunker) Option {
	return func(c *Coordinator) error {
		if chunker != nil {
			c.chunker = chunker
		}
		return nil
	}
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(
	documents storage.DocumentRepository,
	tasks storage.TaskRepository,
	vectors storage.VectorIndex,
	graph storage.GraphRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Coordinator, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if tasks == nil {
		return nil, ErrTaskRepositoryRequired
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

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		documents:   documents,
		tasks:       tasks,
		vectors:     vectors,
		graph:       graph,
		extractor:   extract.NewExtractor(),
		chunker:     extract.NewChunker(),
		embedder:    provider.Embedder(),
		entities:    provider.EntityExtractor(),
		pool:        pool,
		locks:       newLockTable(),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryBaseDelay,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}

	return c, nil
}

// Enqueue submits one ingestion attempt for the document. The returned task
// ID identifies the attempt's audit row; processing continues asynchronously.
func (c *Coordinator) Enqueue(ctx context.Context, docID core.ID) (string, error) {
	doc, err := c.documents.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}

	task := &core.ProcessingTask{
		Id:        uuid.NewString(),
		DocId:     doc.Id,
		Partition: doc.Partition,
		State:     core.TaskQueued,
		Stage:     doc.Status,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.tasks.AddTask(ctx, task); err != nil {
		return "", err
	}

	c.wg.Add(1)
	if err := c.pool.Submit(func() {
		defer c.wg.Done()
		c.run(task.Id, docID)
	}); err != nil {
		c.wg.Done()
		return "", err
	}

	c.logger.Debug("ingestion attempt queued", "doc", docID, "task", task.Id)
	return task.Id, nil
}

// Reprocess clears a document's index entries and runs ingestion again.
// Only failed and indexed documents can be reprocessed.
func (c *Coordinator) Reprocess(ctx context.Context, docID core.ID) (string, error) {
	c.locks.lock(docID)

	doc, err := c.documents.GetDocument(ctx, docID)
	if err != nil {
		c.locks.unlock(docID)
		return "", err
	}
	if doc.Status != core.StatusFailed && doc.Status != core.StatusIndexed {
		c.locks.unlock(docID)
		return "", fmt.Errorf("%w: document %d is %s", ErrNotReprocessable, docID, doc.Status)
	}

	// The upsert contracts are idempotent, but clearing up front keeps a
	// shrinking document from leaving stale index entries behind.
	if err := c.vectors.Delete(ctx, docID); err != nil {
		c.locks.unlock(docID)
		return "", err
	}
	if err := c.graph.Delete(ctx, docID); err != nil {
		c.locks.unlock(docID)
		return "", err
	}
	c.locks.unlock(docID)

	return c.Enqueue(ctx, docID)
}

// Remove cascade-deletes a document: index entries, chunks, stored file and
// the document record itself. Task rows are kept with a tombstoned document
// reference. Each step is idempotent so a partial failure can be re-run.
func (c *Coordinator) Remove(ctx context.Context, docID core.ID) error {
	c.locks.lock(docID)
	defer c.locks.unlock(docID)

	if _, err := c.documents.GetDocument(ctx, docID); err != nil {
		return err
	}
	if _, err := c.documents.UpdateStatus(ctx, docID, core.StatusDeleting, ""); err != nil {
		return err
	}

	if err := c.vectors.Delete(ctx, docID); err != nil {
		return err
	}
	if err := c.graph.Delete(ctx, docID); err != nil {
		return err
	}
	if err := c.documents.DeleteChunks(ctx, docID); err != nil {
		return err
	}
	if err := c.documents.DeleteFile(ctx, docID); err != nil {
		return err
	}
	if err := c.documents.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	if err := c.tasks.TombstoneDocument(ctx, docID); err != nil {
		return err
	}

	c.logger.Info("document removed", "doc", docID)
	return nil
}

// Wait blocks until all queued ingestion attempts have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Release releases the worker pool. Queued work that has not started is
// dropped; the coordinator must not be used afterwards.
func (c *Coordinator) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// run executes one ingestion attempt under the document's exclusive lock.
func (c *Coordinator) run(taskID string, docID core.ID) {
	ctx := context.Background()

	c.locks.lock(docID)
	defer c.locks.unlock(docID)

	task, err := c.tasks.GetTask(ctx, taskID)
	if err != nil {
		c.logger.Error("task row missing for attempt", "task", taskID, "err", err)
		return
	}

	task.State = core.TaskRunning
	task.StartedAt = time.Now().UTC()
	if err := c.tasks.UpdateTask(ctx, task); err != nil {
		c.logger.Error("failed to mark task running", "task", taskID, "err", err)
		return
	}

	processErr := c.process(ctx, task)

	task.FinishedAt = time.Now().UTC()
	if processErr != nil {
		task.State = core.TaskFailed
		task.LastError = processErr.Error()
		c.logger.Error("ingestion attempt failed", "doc", docID, "task", taskID, "err", processErr)

		if _, statusErr := c.documents.UpdateStatus(ctx, docID, core.StatusFailed, processErr.Error()); statusErr != nil {
			// The document may be gone or already deleting; the task row
			// still records the failure.
			c.logger.Debug("could not mark document failed", "doc", docID, "err", statusErr)
		}
	} else {
		task.State = core.TaskSucceeded
		c.logger.Info("document indexed", "doc", docID, "task", taskID,
			"duration", task.FinishedAt.Sub(task.StartedAt))
	}

	if err := c.tasks.UpdateTask(ctx, task); err != nil {
		c.logger.Error("failed to finalize task", "task", taskID, "err", err)
	}
}

// process drives the document through the pipeline stages. The status write
// after each stage is the durable commit point; on error the document keeps
// the last committed status until run marks it failed.
func (c *Coordinator) process(ctx context.Context, task *core.ProcessingTask) error {
	doc, err := c.documents.GetDocument(ctx, task.DocId)
	if err != nil {
		return err
	}

	// Stage: extracting
	doc, err = c.advance(ctx, task, doc.Id, core.StatusExtracting)
	if err != nil {
		return err
	}

	data, err := c.documents.GetFile(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}

	result, err := c.extractor.Extract(ctx, doc.Filename, doc.MimeType, data)
	if err != nil {
		return err
	}

	chunks := c.chunker.Chunk(doc.Id, result)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no text chunks produced", core.ErrExtractionFailed)
	}
	if err := c.documents.PutChunks(ctx, doc.Id, chunks); err != nil {
		return err
	}

	// Stage: embedding
	if _, err = c.advance(ctx, task, doc.Id, core.StatusEmbedding); err != nil {
		return err
	}

	embeddings, err := c.embedChunks(ctx, task, doc, chunks)
	if err != nil {
		return err
	}

	// Stage: indexing
	if _, err = c.advance(ctx, task, doc.Id, core.StatusIndexing); err != nil {
		return err
	}

	if err := c.vectors.Upsert(ctx, doc.Partition, doc.Id, embeddings); err != nil {
		return err
	}

	entities, edges, err := c.extractGraph(ctx, task, doc, chunks)
	if err != nil {
		return err
	}
	if err := c.graph.UpsertDocumentGraph(ctx, doc.Id, entities, edges); err != nil {
		return err
	}

	// Done
	if _, err = c.advance(ctx, task, doc.Id, core.StatusIndexed); err != nil {
		return err
	}
	return nil
}

// advance commits a lifecycle transition and records the stage on the task.
func (c *Coordinator) advance(ctx context.Context, task *core.ProcessingTask, docID core.ID, status core.DocumentStatus) (*core.Document, error) {
	doc, err := c.documents.UpdateStatus(ctx, docID, status, "")
	if err != nil {
		return nil, err
	}

	task.Stage = status
	if err := c.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	c.logger.Debug("stage committed", "doc", docID, "status", status.String())
	return doc, nil
}

// embedChunks generates embeddings for all chunks, retrying transient
// embedding-service failures with backoff.
func (c *Coordinator) embedChunks(ctx context.Context, task *core.ProcessingTask, doc *core.Document, chunks []core.Chunk) ([]core.Embedding, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var attempts int
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		v, embedErr := c.embedder.EmbedTexts(ctx, texts)
		if embedErr != nil {
			return fmt.Errorf("%w: %v", core.ErrEmbeddingUnavailable, embedErr)
		}
		if len(v) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d chunks",
				core.ErrEmbeddingUnavailable, len(v), len(texts))
		}
		vectors = v
		return nil
	}, c.maxAttempts, c.baseDelay)

	if attempts > 1 {
		task.Retries += attempts - 1
		if updateErr := c.tasks.UpdateTask(ctx, task); updateErr != nil {
			c.logger.Debug("could not record retries", "task", task.Id, "err", updateErr)
		}
	}
	if err != nil {
		return nil, err
	}

	embeddings := make([]core.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = core.Embedding{
			DocId:     doc.Id,
			Seq:       chunk.Seq,
			Partition: doc.Partition,
			Vector:    vectors[i],
		}
	}
	return embeddings, nil
}

// extractGraph runs entity extraction per chunk and merges the results into
// one deduplicated entity and edge set for the document.
func (c *Coordinator) extractGraph(ctx context.Context, task *core.ProcessingTask, doc *core.Document, chunks []core.Chunk) ([]core.Entity, []core.Edge, error) {
	acc := newGraphAccumulator(doc.Partition)

	for _, chunk := range chunks {
		var attempts int
		var extraction *ai.Extraction
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			var extractErr error
			extraction, extractErr = c.entities.ExtractEntities(ctx, chunk.Text)
			return extractErr
		}, c.maxAttempts, c.baseDelay)

		if attempts > 1 {
			task.Retries += attempts - 1
			if updateErr := c.tasks.UpdateTask(ctx, task); updateErr != nil {
				c.logger.Debug("could not record retries", "task", task.Id, "err", updateErr)
			}
		}
		if err != nil {
			return nil, nil, fmt.Errorf("entity extraction for chunk %d: %w", chunk.Seq, err)
		}

		acc.add(core.ChunkRef{DocId: doc.Id, Seq: chunk.Seq}, extraction)
	}

	entities, edges := acc.build()
	return entities, edges, nil
}
