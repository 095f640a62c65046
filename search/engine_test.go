package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docket/ai/mock"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage/badger"
)

type testEnv struct {
	stores   *badger.Stores
	provider *mock.MockProvider
	engine   *Engine
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	stores, err := badger.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	t.Cleanup(func() { stores.Close() })

	provider := mock.NewMockProvider().(*mock.MockProvider)
	engine, err := NewEngine(stores.Documents, stores.Vectors, stores.Graph, provider, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	return &testEnv{stores: stores, provider: provider, engine: engine}
}

// seedDocument stores a document with one chunk per text, embedded with the
// deterministic mock embedder.
func (env *testEnv) seedDocument(t *testing.T, partition core.Partition, filename string, texts ...string) *core.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := env.stores.Documents.AddDocument(ctx, &core.Document{
		Partition: partition,
		Filename:  filename,
		ByteSize:  128,
		MimeType:  "text/plain",
		Status:    core.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	chunks := make([]core.Chunk, len(texts))
	embeddings := make([]core.Embedding, len(texts))
	offset := 0
	for i, text := range texts {
		chunks[i] = core.Chunk{
			DocId: doc.Id,
			Seq:   i,
			Text:  text,
			Start: offset,
			End:   offset + len([]rune(text)),
			Page:  1,
		}
		offset += len([]rune(text)) + 1

		vector, embedErr := env.provider.Embedder().EmbedText(ctx, text)
		if embedErr != nil {
			t.Fatalf("Failed to embed: %v", embedErr)
		}
		embeddings[i] = core.Embedding{DocId: doc.Id, Seq: i, Partition: partition, Vector: vector}
	}

	if err := env.stores.Documents.PutChunks(ctx, doc.Id, chunks); err != nil {
		t.Fatalf("Failed to put chunks: %v", err)
	}
	if err := env.stores.Vectors.Upsert(ctx, partition, doc.Id, embeddings); err != nil {
		t.Fatalf("Failed to upsert embeddings: %v", err)
	}
	return doc
}

// seedEntity writes one graph entity backed by the given chunk.
func (env *testEnv) seedEntity(t *testing.T, doc *core.Document, seq int, name string, entityType core.EntityType) core.Entity {
	t.Helper()

	entity := core.Entity{
		Id:         core.EntityID(doc.Partition, entityType, name),
		Partition:  doc.Partition,
		Name:       name,
		Type:       entityType,
		Provenance: []core.ChunkRef{{DocId: doc.Id, Seq: seq}},
	}
	if err := env.stores.Graph.UpsertDocumentGraph(context.Background(), doc.Id, []core.Entity{entity}, nil); err != nil {
		t.Fatalf("Failed to upsert graph: %v", err)
	}
	return entity
}

func TestQueryReturnsVectorMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.seedDocument(t, core.PartitionPublic, "contract.txt",
		"The retention period for personal data is five years.",
		"Payment obligations survive termination of the agreement.")

	// The mock embedder maps identical text to identical vectors, so
	// querying with a chunk's own text must rank that chunk first.
	passages, err := env.engine.Query(ctx, core.PublicOnly(),
		"The retention period for personal data is five years.", 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Expected passages")
	}
	top := passages[0]
	if top.DocId != doc.Id || top.Seq != 0 {
		t.Fatalf("Expected chunk 0 of the seeded document first, got doc %d seq %d", top.DocId, top.Seq)
	}
	if top.Text != "The retention period for personal data is five years." {
		t.Fatalf("Unexpected passage text: %q", top.Text)
	}
	if top.Partition != core.PartitionPublic {
		t.Fatalf("Unexpected partition: %s", top.Partition)
	}
}

func TestQueryMergesBothBranches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.seedDocument(t, core.PartitionPublic, "ruling.txt",
		"Ruling on data retention under the privacy statute.",
		"Unrelated procedural notes about filing deadlines.")
	env.seedEntity(t, doc, 0, "data retention", core.EntityLegalConcept)

	// Querying with the chunk's own text gives the vector branch an exact
	// match, and "retention" seeds the graph walk; both branches point at
	// chunk 0.
	passages, err := env.engine.Query(ctx, core.PublicOnly(),
		"Ruling on data retention under the privacy statute.", 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Expected passages")
	}

	var both *core.Passage
	for i := range passages {
		if passages[i].Source == core.SourceBoth {
			both = &passages[i]
		}
	}
	if both == nil {
		t.Fatal("Expected a passage confirmed by both branches")
	}
	if both.Seq != 0 || both.DocId != doc.Id {
		t.Fatalf("Expected chunk 0, got doc %d seq %d", both.DocId, both.Seq)
	}
	if len(both.EntityPath) == 0 {
		t.Fatal("Expected an entity path on a graph-confirmed passage")
	}
}

func TestQueryPartitionIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	secret := "Confidential settlement terms for the acme dispute."
	env.seedDocument(t, core.UserPartition("alice"), "private.txt", secret)
	env.seedDocument(t, core.PartitionPublic, "public.txt",
		"Public guidance on settlement procedures.")

	bob, err := core.ForUser("bob", true)
	if err != nil {
		t.Fatalf("Failed to build partition set: %v", err)
	}

	passages, err := env.engine.Query(ctx, bob, secret, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, passage := range passages {
		if passage.Partition == core.UserPartition("alice") {
			t.Fatal("Another user's private passage leaked")
		}
		if passage.Text == secret {
			t.Fatal("Private text leaked across partitions")
		}
	}
}

func TestQueryGraphOnlyWhenVectorBranchFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.seedDocument(t, core.PartitionPublic, "ruling.txt",
		"The appellate court overturned the injunction.")
	env.seedEntity(t, doc, 0, "appellate court", core.EntityOrganization)

	env.provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding service down")
	}

	passages, err := env.engine.Query(ctx, core.PublicOnly(), "appellate decisions", 5)
	if err != nil {
		t.Fatalf("Expected graph-only results, got error: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Expected passages from the surviving graph branch")
	}
	if passages[0].Source != core.SourceGraph {
		t.Fatalf("Expected graph-sourced passage, got %v", passages[0].Source)
	}
}

func TestQueryBothBranchesFailing(t *testing.T) {
	env := newTestEnv(t)

	// Closing the backend fails both branch scans.
	env.stores.Close()

	_, err := env.engine.Query(context.Background(), core.PublicOnly(), "anything at all", 5)
	if !errors.Is(err, core.ErrRetrievalUnavailable) {
		t.Fatalf("Expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestQueryValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Query(ctx, core.PublicOnly(), "   ", 5); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Expected ErrEmptyQuestion, got %v", err)
	}
	if _, err := env.engine.Query(ctx, core.PartitionSet{}, "question", 5); !errors.Is(err, core.ErrPartitionViolation) {
		t.Fatalf("Expected ErrPartitionViolation for empty set, got %v", err)
	}
}

func TestQueryTruncatesToK(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// All four chunks are relevant to the question, so truncation to k is
	// what bounds the result.
	vectors := map[string][]float32{
		"contract law sections":              {1, 0, 0},
		"First section about contract law.":  {0.9, 0.1, 0},
		"Second section about contract law.": {0.8, 0.2, 0},
		"Third section about contract law.":  {0.7, 0.3, 0},
		"Fourth section about contract law.": {0.6, 0.4, 0},
	}
	env.provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vectors[text], nil
	}

	env.seedDocument(t, core.PartitionPublic, "long.txt",
		"First section about contract law.",
		"Second section about contract law.",
		"Third section about contract law.",
		"Fourth section about contract law.")

	passages, err := env.engine.Query(ctx, core.PublicOnly(), "contract law sections", 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("Expected exactly 2 passages, got %d", len(passages))
	}
}

func TestQueryOmitsIrrelevantChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Controlled vectors: only chunk 0 is close to the question, the rest
	// sit at or below the similarity floor.
	question := "Ruling on data retention under the privacy statute."
	vectors := map[string][]float32{
		question:                               {1, 0, 0},
		"Filing fee schedule for appeals.":     {0.05, 1, 0},
		"Court holiday calendar for the year.": {0, 1, 0},
		"Parking instructions for the annex.":  {0, 0, 1},
		"Cafeteria menu for the spring term.":  {0, -1, 0},
	}
	env.provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vectors[text], nil
	}

	doc := env.seedDocument(t, core.PartitionPublic, "mixed.txt",
		question,
		"Filing fee schedule for appeals.",
		"Court holiday calendar for the year.",
		"Parking instructions for the annex.",
		"Cafeteria menu for the spring term.")

	// k is larger than the relevant set; the result must not be padded out
	// with the noise chunks.
	passages, err := env.engine.Query(ctx, core.PublicOnly(), question, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("Expected only the relevant passage, got %d", len(passages))
	}
	if passages[0].DocId != doc.Id || passages[0].Seq != 0 {
		t.Fatalf("Expected chunk 0, got doc %d seq %d", passages[0].DocId, passages[0].Seq)
	}
}

func TestRecencyBreaksTies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text := "Identical clause text appearing in two documents."
	older := env.seedDocument(t, core.PartitionPublic, "older.txt", text)
	time.Sleep(5 * time.Millisecond)
	newer := env.seedDocument(t, core.PartitionPublic, "newer.txt", text)

	passages, err := env.engine.Query(ctx, core.PublicOnly(), text, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("Expected 2 passages, got %d", len(passages))
	}
	if passages[0].DocId != newer.Id {
		t.Fatalf("Expected the newer document first on a score tie, got doc %d (older is %d)",
			passages[0].DocId, older.Id)
	}
}

type recordingMonitor struct {
	noopMonitor
	started   string
	vectorLen int
	graphLen  int
	finished  int
}

func (m *recordingMonitor) Start(question string) { m.started = question }
func (m *recordingMonitor) AfterVectorSearch(matches []core.VectorMatch, _ time.Duration, _ error) {
	m.vectorLen = len(matches)
}
func (m *recordingMonitor) AfterGraphTraversal(matches []core.GraphMatch, _ time.Duration, _ error) {
	m.graphLen = len(matches)
}
func (m *recordingMonitor) Finish(passages []core.Passage) { m.finished = len(passages) }

func TestQueryMonitorCallbacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.seedDocument(t, core.PartitionPublic, "ruling.txt",
		"The tribunal applied the statute of limitations.")
	env.seedEntity(t, doc, 0, "statute of limitations", core.EntityLegalConcept)

	monitor := &recordingMonitor{}
	passages, err := env.engine.QueryWithMonitor(ctx, core.PublicOnly(),
		"The tribunal applied the statute of limitations.", 5, monitor)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if monitor.started != "The tribunal applied the statute of limitations." {
		t.Fatalf("Monitor did not observe the question: %q", monitor.started)
	}
	if monitor.vectorLen == 0 {
		t.Fatal("Monitor did not observe vector matches")
	}
	if monitor.graphLen == 0 {
		t.Fatal("Monitor did not observe graph matches")
	}
	if monitor.finished != len(passages) {
		t.Fatalf("Monitor finish count %d != %d passages", monitor.finished, len(passages))
	}
}
