package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestDocumentBasics(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc := &core.Document{
		Partition: core.PartitionPublic,
		Filename:  "ruling.pdf",
		ByteSize:  2048,
		MimeType:  "application/pdf",
		Status:    core.StatusUploaded,
	}

	added, err := stores.Documents.AddDocument(ctx, doc)
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if added.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if added.CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be set")
	}

	retrieved, err := stores.Documents.GetDocument(ctx, added.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Filename != "ruling.pdf" {
		t.Fatalf("Expected 'ruling.pdf', got '%s'", retrieved.Filename)
	}
	if retrieved.Status != core.StatusUploaded {
		t.Fatalf("Expected uploaded status, got %s", retrieved.Status)
	}
}

func TestDocumentNotFound(t *testing.T) {
	stores := newTestStores(t)

	_, err := stores.Documents.GetDocument(context.Background(), core.ID(12345))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStatusTransitions(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc, err := stores.Documents.AddDocument(ctx, &core.Document{
		Partition: core.UserPartition("alice"),
		Filename:  "contract.docx",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	for _, status := range []core.DocumentStatus{
		core.StatusExtracting,
		core.StatusEmbedding,
		core.StatusIndexing,
		core.StatusIndexed,
	} {
		updated, err := stores.Documents.UpdateStatus(ctx, doc.Id, status, "")
		if err != nil {
			t.Fatalf("Failed to advance to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Fatalf("Expected status %s, got %s", status, updated.Status)
		}
	}

	// Skipping stages is rejected
	doc2, err := stores.Documents.AddDocument(ctx, &core.Document{
		Partition: core.PartitionPublic,
		Filename:  "brief.txt",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if _, err := stores.Documents.UpdateStatus(ctx, doc2.Id, core.StatusIndexed, ""); err == nil {
		t.Fatal("Expected error for skipped transition")
	}
}

func TestDocumentStatusIndexFollowsTransitions(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc, err := stores.Documents.AddDocument(ctx, &core.Document{
		Partition: core.PartitionPublic,
		Filename:  "statute.pdf",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	uploaded, err := stores.Documents.ListByStatus(ctx, core.StatusUploaded)
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(uploaded) != 1 || uploaded[0].Id != doc.Id {
		t.Fatalf("Expected document in uploaded list, got %d entries", len(uploaded))
	}

	if _, err := stores.Documents.UpdateStatus(ctx, doc.Id, core.StatusExtracting, ""); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	uploaded, err = stores.Documents.ListByStatus(ctx, core.StatusUploaded)
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(uploaded) != 0 {
		t.Fatalf("Expected empty uploaded list, got %d entries", len(uploaded))
	}

	extracting, err := stores.Documents.ListByStatus(ctx, core.StatusExtracting)
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(extracting) != 1 {
		t.Fatalf("Expected document in extracting list, got %d entries", len(extracting))
	}
}

func TestDocumentDelete(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc, err := stores.Documents.AddDocument(ctx, &core.Document{
		Partition: core.PartitionPublic,
		Filename:  "old.txt",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	if err := stores.Documents.DeleteDocument(ctx, doc.Id); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}

	if _, err := stores.Documents.GetDocument(ctx, doc.Id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := stores.Documents.DeleteDocument(ctx, doc.Id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on double delete, got %v", err)
	}
}

func TestChunkStorage(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc, err := stores.Documents.AddDocument(ctx, &core.Document{
		Partition: core.PartitionPublic,
		Filename:  "opinion.txt",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	chunks := []core.Chunk{
		{DocId: doc.Id, Seq: 0, Text: "First passage of the opinion.", Start: 0, End: 29},
		{DocId: doc.Id, Seq: 1, Text: "Second passage of the opinion.", Start: 25, End: 55},
		{DocId: doc.Id, Seq: 2, Text: "Third passage of the opinion.", Start: 51, End: 80},
	}

	if err := stores.Documents.PutChunks(ctx, doc.Id, chunks); err != nil {
		t.Fatalf("Failed to put chunks: %v", err)
	}

	got, err := stores.Documents.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if chunk.Seq != i {
			t.Fatalf("Expected chunks in sequence order, got seq %d at index %d", chunk.Seq, i)
		}
	}

	single, err := stores.Documents.GetChunk(ctx, doc.Id, 1)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if single.Text != chunks[1].Text {
		t.Fatalf("Expected '%s', got '%s'", chunks[1].Text, single.Text)
	}
}

func TestPutChunksReplacesExisting(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc, err := stores.Documents.AddDocument(ctx, &core.Document{
		Partition: core.PartitionPublic,
		Filename:  "revised.txt",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	first := []core.Chunk{
		{DocId: doc.Id, Seq: 0, Text: "Old version chunk zero.", Start: 0, End: 23},
		{DocId: doc.Id, Seq: 1, Text: "Old version chunk one.", Start: 20, End: 42},
		{DocId: doc.Id, Seq: 2, Text: "Old version chunk two.", Start: 40, End: 62},
	}
	if err := stores.Documents.PutChunks(ctx, doc.Id, first); err != nil {
		t.Fatalf("Failed to put chunks: %v", err)
	}

	// Reprocessing may produce fewer chunks; no stale ones may survive.
	second := []core.Chunk{
		{DocId: doc.Id, Seq: 0, Text: "New version chunk zero.", Start: 0, End: 23},
	}
	if err := stores.Documents.PutChunks(ctx, doc.Id, second); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}

	got, err := stores.Documents.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 chunk after replacement, got %d", len(got))
	}
	if got[0].Text != "New version chunk zero." {
		t.Fatalf("Unexpected chunk text: %s", got[0].Text)
	}
}

func TestDeleteChunksIsIdempotent(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	if err := stores.Documents.DeleteChunks(ctx, core.ID(999)); err != nil {
		t.Fatalf("Expected no error deleting absent chunks, got %v", err)
	}
}

func TestDocumentFileStorage(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	data := []byte("%PDF-1.4 original bytes")
	if err := stores.Documents.PutFile(ctx, core.ID(7), data); err != nil {
		t.Fatalf("Failed to store file: %v", err)
	}

	got, err := stores.Documents.GetFile(ctx, core.ID(7))
	if err != nil {
		t.Fatalf("Failed to get file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("File bytes do not round-trip")
	}

	if err := stores.Documents.DeleteFile(ctx, core.ID(7)); err != nil {
		t.Fatalf("Failed to delete file: %v", err)
	}
	if _, err := stores.Documents.GetFile(ctx, core.ID(7)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := stores.Documents.DeleteFile(ctx, core.ID(7)); err != nil {
		t.Fatalf("Expected no error deleting absent file, got %v", err)
	}
}
