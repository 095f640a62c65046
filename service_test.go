package docket

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docket/ai/mock"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/ingestion"
	"github.com/poiesic/docket/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	service, err := NewInMemory(
		WithProvider(mock.NewMockProvider()),
		WithIngestionOptions(ingestion.WithRetryBaseDelay(time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { service.Close() })
	return service
}

func TestServiceUploadAndQuery(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	text := "The lease agreement requires ninety days written notice before termination."
	docID, err := service.Upload(ctx, "lease.txt", "text/plain", []byte(text), core.PartitionPublic)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	service.WaitForIngestion()

	doc, err := service.Document(ctx, docID)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if doc.Status != core.StatusIndexed {
		t.Fatalf("Expected indexed, got %s (%s)", doc.Status, doc.Error)
	}

	passages, err := service.Query(ctx, core.PublicOnly(), text, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Expected passages for the uploaded document")
	}
	if passages[0].DocId != docID {
		t.Fatalf("Expected the uploaded document first, got %d", passages[0].DocId)
	}
}

func TestServiceUploadValidation(t *testing.T) {
	service := newTestService(t)

	_, err := service.Upload(context.Background(), "empty.txt", "text/plain", nil, core.PartitionPublic)
	if !errors.Is(err, core.ErrInvalidDocument) {
		t.Fatalf("Expected ErrInvalidDocument for empty payload, got %v", err)
	}
}

func TestServiceMimeFallbackFromFilename(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	docID, err := service.Upload(ctx, "notes.md", "",
		[]byte("# Findings\nThe court rejected the motion."), core.PartitionPublic)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	service.WaitForIngestion()

	doc, _ := service.Document(ctx, docID)
	if doc.Status != core.StatusIndexed {
		t.Fatalf("Expected markdown indexed via extension sniffing, got %s (%s)", doc.Status, doc.Error)
	}
}

func TestServiceStatusAndTasks(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Upload(ctx, "a.txt", "text/plain",
		[]byte("First document about maritime law."), core.PartitionPublic)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	service.WaitForIngestion()

	counts, err := service.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if counts[core.TaskSucceeded] != 1 {
		t.Fatalf("Expected one succeeded task, got %v", counts)
	}

	tasks, err := service.Tasks(ctx, core.TaskSucceeded)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("Expected one succeeded task row, got %d (err %v)", len(tasks), err)
	}
}

func TestServiceAsk(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	text := "Arbitration clauses are enforceable under the federal act."
	if _, err := service.Upload(ctx, "arb.txt", "text/plain", []byte(text), core.PartitionPublic); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	service.WaitForIngestion()

	answer, passages, err := service.Ask(ctx, core.PublicOnly(), text, 3)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Expected grounding passages")
	}
	// The mock synthesizer cites every passage it received.
	if !strings.Contains(answer, "[1]") {
		t.Fatalf("Expected a cited answer, got %q", answer)
	}
}

func TestServiceAskWithoutResults(t *testing.T) {
	service := newTestService(t)

	answer, passages, err := service.Ask(context.Background(), core.PublicOnly(),
		"completely unknown topic", 3)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "" || len(passages) != 0 {
		t.Fatal("Expected an empty answer when nothing is indexed")
	}
}

func TestServiceRemove(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	text := "Disclosure obligations for public companies."
	docID, err := service.Upload(ctx, "disc.txt", "text/plain", []byte(text), core.PartitionPublic)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	service.WaitForIngestion()

	if err := service.Remove(ctx, docID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := service.Document(ctx, docID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected document gone, got %v", err)
	}

	passages, err := service.Query(ctx, core.PublicOnly(), text, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, passage := range passages {
		if passage.DocId == docID {
			t.Fatal("Removed document still retrievable")
		}
	}
}

func TestServiceReprocess(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	docID, err := service.Upload(ctx, "r.txt", "text/plain",
		[]byte("Reprocessing target about procurement rules."), core.PartitionPublic)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	service.WaitForIngestion()

	if _, err := service.Reprocess(ctx, docID); err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	service.WaitForIngestion()

	doc, _ := service.Document(ctx, docID)
	if doc.Status != core.StatusIndexed {
		t.Fatalf("Expected indexed after reprocess, got %s (%s)", doc.Status, doc.Error)
	}
}
