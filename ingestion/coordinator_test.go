package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docket/ai/mock"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/badger"
)

const rulingText = "The supreme court issued ruling 42/2019 interpreting article 15 " +
	"of the data protection act. The decision amends earlier guidance on " +
	"consent withdrawal and cites case 7/2015 for the retention question."

type testHarness struct {
	stores      *badger.Stores
	provider    *mock.MockProvider
	coordinator *Coordinator
}

func newTestHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()

	stores, err := badger.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	t.Cleanup(func() { stores.Close() })

	provider := mock.NewMockProvider().(*mock.MockProvider)

	opts = append([]Option{WithRetryBaseDelay(time.Millisecond)}, opts...)
	coordinator, err := NewCoordinator(
		stores.Documents, stores.Tasks, stores.Vectors, stores.Graph, provider, opts...)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	t.Cleanup(coordinator.Release)

	return &testHarness{stores: stores, provider: provider, coordinator: coordinator}
}

// upload mirrors the service boundary: document record plus stored bytes.
func (h *testHarness) upload(t *testing.T, partition core.Partition, filename, mime string, data []byte) *core.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := h.stores.Documents.AddDocument(ctx, &core.Document{
		Partition: partition,
		Filename:  filename,
		ByteSize:  int64(len(data)),
		MimeType:  mime,
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if err := h.stores.Documents.PutFile(ctx, doc.Id, data); err != nil {
		t.Fatalf("Failed to store file: %v", err)
	}
	return doc
}

func (h *testHarness) ingest(t *testing.T, docID core.ID) string {
	t.Helper()
	taskID, err := h.coordinator.Enqueue(context.Background(), docID)
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	h.coordinator.Wait()
	return taskID
}

func TestIngestTextDocument(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))
	taskID := h.ingest(t, doc.Id)

	indexed, err := h.stores.Documents.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if indexed.Status != core.StatusIndexed {
		t.Fatalf("Expected indexed, got %s (error: %s)", indexed.Status, indexed.Error)
	}

	chunks, err := h.stores.Documents.GetChunks(ctx, doc.Id)
	if err != nil || len(chunks) == 0 {
		t.Fatalf("Expected chunks, got %d (err %v)", len(chunks), err)
	}

	// The indexed document must be findable by vector search.
	vector, err := h.provider.Embedder().EmbedText(ctx, chunks[0].Text)
	if err != nil {
		t.Fatalf("Failed to embed query: %v", err)
	}
	matches, err := h.stores.Vectors.Search(ctx, core.PublicOnly(), vector, 0, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) == 0 || matches[0].DocId != doc.Id {
		t.Fatal("Expected the ingested document as top vector match")
	}

	task, err := h.stores.Tasks.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if task.State != core.TaskSucceeded {
		t.Fatalf("Expected succeeded task, got %s (%s)", task.State, task.LastError)
	}
	if task.Stage != core.StatusIndexed {
		t.Fatalf("Expected stage indexed, got %s", task.Stage)
	}
	if task.Retries != 0 {
		t.Fatalf("Expected no retries, got %d", task.Retries)
	}
}

func TestIngestWritesGraph(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))
	h.ingest(t, doc.Id)

	// The default mock extractor emits entities for the leading words.
	matches, err := h.stores.Graph.Traverse(ctx, core.PublicOnly(), []string{"supreme"}, 1)
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("Expected graph matches for an extracted entity")
	}
	for _, match := range matches {
		found := false
		for _, ref := range match.Refs {
			if ref.DocId == doc.Id {
				found = true
			}
		}
		if !found {
			t.Fatalf("Entity %q has no provenance from the ingested document", match.Entity.Name)
		}
	}
}

func TestIngestUnsupportedFormatFailsImmediately(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	doc := h.upload(t, core.PartitionPublic, "scan.tiff", "image/tiff", []byte{0x49, 0x49})
	taskID := h.ingest(t, doc.Id)

	failed, err := h.stores.Documents.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if failed.Status != core.StatusFailed {
		t.Fatalf("Expected failed, got %s", failed.Status)
	}
	if failed.Error == "" {
		t.Fatal("Expected error detail on the document")
	}

	task, err := h.stores.Tasks.GetTask(ctx, taskID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if task.State != core.TaskFailed {
		t.Fatalf("Expected failed task, got %s", task.State)
	}
	if task.Retries != 0 {
		t.Fatalf("Terminal errors must not retry, got %d retries", task.Retries)
	}
	if !strings.Contains(task.LastError, "unsupported") {
		t.Fatalf("Expected unsupported-format error, got %q", task.LastError)
	}
}

func TestTransientEmbeddingFailureRetries(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	var calls int
	embedder := h.provider.GetMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls <= 2 {
			return nil, fmt.Errorf("connection refused")
		}
		embedder.EmbedTextsFunc = nil
		return embedder.EmbedTexts(ctx, texts)
	}

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))
	taskID := h.ingest(t, doc.Id)

	indexed, _ := h.stores.Documents.GetDocument(ctx, doc.Id)
	if indexed.Status != core.StatusIndexed {
		t.Fatalf("Expected indexed after retries, got %s (%s)", indexed.Status, indexed.Error)
	}

	task, _ := h.stores.Tasks.GetTask(ctx, taskID)
	if task.Retries != 2 {
		t.Fatalf("Expected 2 recorded retries, got %d", task.Retries)
	}
}

func TestEmbeddingOutageExhaustsRetries(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, fmt.Errorf("connection refused")
	}

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))
	taskID := h.ingest(t, doc.Id)

	failed, _ := h.stores.Documents.GetDocument(ctx, doc.Id)
	if failed.Status != core.StatusFailed {
		t.Fatalf("Expected failed after exhausted retries, got %s", failed.Status)
	}

	task, _ := h.stores.Tasks.GetTask(ctx, taskID)
	if task.State != core.TaskFailed {
		t.Fatalf("Expected failed task, got %s", task.State)
	}
	if task.Retries != DefaultMaxAttempts-1 {
		t.Fatalf("Expected %d retries, got %d", DefaultMaxAttempts-1, task.Retries)
	}
	if !strings.Contains(task.LastError, "embedding service unavailable") {
		t.Fatalf("Expected embedding-unavailable error, got %q", task.LastError)
	}
	// The chunks from the committed extracting stage survive the failure.
	chunks, err := h.stores.Documents.GetChunks(ctx, doc.Id)
	if err != nil || len(chunks) == 0 {
		t.Fatal("Expected committed chunks to survive the failed attempt")
	}
}

func TestRemoveCascades(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))
	h.ingest(t, doc.Id)

	if err := h.coordinator.Remove(ctx, doc.Id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := h.stores.Documents.GetDocument(ctx, doc.Id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected document gone, got %v", err)
	}
	chunks, _ := h.stores.Documents.GetChunks(ctx, doc.Id)
	if len(chunks) != 0 {
		t.Fatalf("Expected no chunks after removal, got %d", len(chunks))
	}

	vector, _ := h.provider.Embedder().EmbedText(ctx, rulingText)
	matches, err := h.stores.Vectors.Search(ctx, core.PublicOnly(), vector, 0, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, match := range matches {
		if match.DocId == doc.Id {
			t.Fatal("Removed document still present in vector index")
		}
	}

	// Tasks survive as tombstoned audit rows.
	tasks, err := h.stores.Tasks.ListByDocument(ctx, doc.Id)
	if err != nil || len(tasks) == 0 {
		t.Fatal("Expected retained task rows after removal")
	}
	for _, task := range tasks {
		if !task.DocDeleted {
			t.Fatalf("Task %s not tombstoned", task.Id)
		}
	}
}

func TestReprocessFromIndexed(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))
	h.ingest(t, doc.Id)

	taskID, err := h.coordinator.Reprocess(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	h.coordinator.Wait()

	indexed, _ := h.stores.Documents.GetDocument(ctx, doc.Id)
	if indexed.Status != core.StatusIndexed {
		t.Fatalf("Expected indexed after reprocess, got %s (%s)", indexed.Status, indexed.Error)
	}
	task, _ := h.stores.Tasks.GetTask(ctx, taskID)
	if task.State != core.TaskSucceeded {
		t.Fatalf("Expected succeeded reprocess task, got %s", task.State)
	}

	// Two attempts on record, oldest first.
	attempts, err := h.stores.Tasks.ListByDocument(ctx, doc.Id)
	if err != nil || len(attempts) != 2 {
		t.Fatalf("Expected 2 task rows, got %d (err %v)", len(attempts), err)
	}
}

func TestReprocessRequiresSettledState(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	doc := h.upload(t, core.PartitionPublic, "ruling.txt", "text/plain", []byte(rulingText))

	_, err := h.coordinator.Reprocess(ctx, doc.Id)
	if !errors.Is(err, ErrNotReprocessable) {
		t.Fatalf("Expected ErrNotReprocessable for uploaded document, got %v", err)
	}
}

func TestEnqueueUnknownDocument(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.coordinator.Enqueue(context.Background(), core.ID(404))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRetryWithBackoffStopsOnTerminal(t *testing.T) {
	var calls int
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return core.ErrExtractionFailed
	}, 3, time.Millisecond)

	if !errors.Is(err, core.ErrExtractionFailed) {
		t.Fatalf("Expected terminal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("Terminal errors must not retry, got %d calls", calls)
	}
}

func TestRetryWithBackoffRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error { return nil }, 3, time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
