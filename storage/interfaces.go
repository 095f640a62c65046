package storage

import (
	"context"

	"github.com/poiesic/docket/core"
)

// DocumentRepository stores documents and their extracted chunks.
// Implementations must be thread-safe and support concurrent access.
// Documents are mutated only by the ingestion coordinator; other components
// read them for provenance.
type DocumentRepository interface {
	// AddDocument persists a new document, assigning an ID from the sequence
	// and setting timestamps. Returns the document with ID populated.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// UpdateStatus atomically transitions a document's lifecycle status and
	// error detail. The write is the coordinator's durable commit point for a
	// stage: it must be visible before the next stage starts.
	UpdateStatus(ctx context.Context, id core.ID, status core.DocumentStatus, errDetail string) (*core.Document, error)

	// DeleteDocument removes the document record and its status/partition
	// index entries. Chunks must be deleted first via DeleteChunks.
	DeleteDocument(ctx context.Context, id core.ID) error

	// ListByStatus returns documents currently in the given status.
	ListByStatus(ctx context.Context, status core.DocumentStatus) ([]*core.Document, error)

	// PutFile stores the original uploaded bytes of a document so that
	// reprocessing can re-run extraction from source.
	PutFile(ctx context.Context, docID core.ID, data []byte) error

	// GetFile retrieves the original uploaded bytes of a document.
	// Returns ErrNotFound if absent.
	GetFile(ctx context.Context, docID core.ID) ([]byte, error)

	// DeleteFile removes the stored file bytes. No-op when absent.
	DeleteFile(ctx context.Context, docID core.ID) error

	// PutChunks replaces all stored chunks for a document.
	PutChunks(ctx context.Context, docID core.ID, chunks []core.Chunk) error

	// GetChunk retrieves one chunk by document and sequence number.
	// Returns ErrNotFound if absent.
	GetChunk(ctx context.Context, docID core.ID, seq int) (*core.Chunk, error)

	// GetChunks retrieves all chunks of a document in sequence order.
	GetChunks(ctx context.Context, docID core.ID) ([]core.Chunk, error)

	// DeleteChunks removes all chunks of a document. No-op when none exist.
	DeleteChunks(ctx context.Context, docID core.ID) error

	// Close releases repository resources.
	Close() error
}

// TaskRepository stores processing-task audit rows. Tasks are never deleted;
// they outlive their documents for the monitoring boundary.
type TaskRepository interface {
	// AddTask persists a new task row.
	AddTask(ctx context.Context, task *core.ProcessingTask) error

	// UpdateTask overwrites an existing task row.
	// Returns ErrNotFound if the task doesn't exist.
	UpdateTask(ctx context.Context, task *core.ProcessingTask) error

	// GetTask retrieves a task by its ID.
	GetTask(ctx context.Context, id string) (*core.ProcessingTask, error)

	// ListByState returns tasks in the given state, newest first.
	ListByState(ctx context.Context, state core.TaskState) ([]*core.ProcessingTask, error)

	// ListByDocument returns all attempts for a document, oldest first.
	ListByDocument(ctx context.Context, docID core.ID) ([]*core.ProcessingTask, error)

	// CountsByState returns the number of tasks per state, for queue-depth
	// observability.
	CountsByState(ctx context.Context) (map[core.TaskState]int, error)

	// TombstoneDocument marks every task of a document as referring to a
	// deleted document. The rows themselves are retained.
	TombstoneDocument(ctx context.Context, docID core.ID) error

	// Close releases repository resources.
	Close() error
}

// VectorIndex stores chunk embeddings partitioned by owner and answers
// nearest-neighbor queries. Scores use cosine similarity and are comparable
// only within one Search call.
type VectorIndex interface {
	// Upsert writes a document's embeddings. Idempotent on
	// (partition, document, sequence): re-running ingestion overwrites
	// rather than duplicates.
	Upsert(ctx context.Context, partition core.Partition, docID core.ID, embeddings []core.Embedding) error

	// Search returns the k nearest chunks to the query vector, restricted to
	// the caller's partition set. Only chunks with similarity >= minScore are
	// returned, so a sparse corpus yields fewer than k results rather than
	// padding with irrelevant chunks. Results never include a partition
	// outside the set.
	Search(ctx context.Context, set core.PartitionSet, vector []float32, minScore float32, k int) ([]core.VectorMatch, error)

	// Delete removes all embeddings of a document. Safe to call for a
	// document with no indexed embeddings.
	Delete(ctx context.Context, docID core.ID) error

	// Close releases index resources.
	Close() error
}

// GraphRepository stores extracted entities and typed edges, and answers
// bounded traversal queries seeded by keywords.
type GraphRepository interface {
	// UpsertDocumentGraph replaces a document's contribution to the graph:
	// its prior entities/edges provenance is removed and the new ones written
	// in one logical write. Entities shared with other documents keep their
	// other provenance.
	UpsertDocumentGraph(ctx context.Context, docID core.ID, entities []core.Entity, edges []core.Edge) error

	// Traverse seeds a bounded-depth walk from entities whose names match the
	// seed terms, following typed edges up to maxHops. Ranking favors shorter
	// paths and more specific edge types. Results are scoped to the caller's
	// partition set.
	Traverse(ctx context.Context, set core.PartitionSet, seedTerms []string, maxHops int) ([]core.GraphMatch, error)

	// GetEntity retrieves an entity by ID. Returns ErrNotFound if absent.
	GetEntity(ctx context.Context, id core.ID) (*core.Entity, error)

	// Delete removes a document's provenance from the graph. Entities and
	// edges with no remaining provenance are removed; shared ones are pruned
	// only of this document's references. No-op for unknown documents.
	Delete(ctx context.Context, docID core.ID) error

	// Close releases repository resources.
	Close() error
}
