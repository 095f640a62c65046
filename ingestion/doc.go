// Package ingestion drives uploaded documents through the processing
// lifecycle: extracting text and chunks, generating embeddings, and writing
// the vector and graph indexes.
//
// The Coordinator owns every document mutation. Each enqueued attempt runs
// on a worker pool under a per-document exclusive lock, so attempts for one
// document serialize while different documents process in parallel. A
// document's lifecycle status is persisted only after the stage's writes are
// durable; a crash leaves the document at its last committed stage.
//
// Transient failures (embedding service outages) are retried with
// exponential backoff up to a bounded attempt budget. Terminal failures
// (unsupported formats, unreadable files) fail the attempt immediately.
// Every attempt leaves a ProcessingTask audit row that survives document
// deletion.
package ingestion
