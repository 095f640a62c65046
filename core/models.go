package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document and task-owner IDs come from database sequences; entity and edge
// IDs are content-addressed so that identical tuples collide on purpose.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus int

const (
	// StatusUploaded means the document record exists but no processing has started.
	StatusUploaded DocumentStatus = iota + 1
	// StatusExtracting means text extraction and chunking is in progress.
	StatusExtracting
	// StatusEmbedding means chunk embeddings are being generated.
	StatusEmbedding
	// StatusIndexing means embeddings and the entity graph are being written to the indexes.
	StatusIndexing
	// StatusIndexed means the document is fully queryable.
	StatusIndexed
	// StatusFailed means the last ingestion attempt gave up; see Document.Error.
	StatusFailed
	// StatusDeleting means a cascade delete is in progress.
	StatusDeleting
)

// String returns the lifecycle status name.
func (s DocumentStatus) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusExtracting:
		return "extracting"
	case StatusEmbedding:
		return "embedding"
	case StatusIndexing:
		return "indexing"
	case StatusIndexed:
		return "indexed"
	case StatusFailed:
		return "failed"
	case StatusDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// CanAdvanceTo reports whether the state machine permits moving from s to next.
// Failed is reachable from any in-progress state; reprocessing re-enters
// extracting from failed or indexed; deleting is reachable from any state.
func (s DocumentStatus) CanAdvanceTo(next DocumentStatus) bool {
	if next == StatusDeleting {
		return true
	}
	switch s {
	case StatusUploaded:
		return next == StatusExtracting
	case StatusExtracting:
		return next == StatusEmbedding || next == StatusFailed
	case StatusEmbedding:
		return next == StatusIndexing || next == StatusFailed
	case StatusIndexing:
		return next == StatusIndexed || next == StatusFailed
	case StatusIndexed, StatusFailed:
		return next == StatusExtracting
	default:
		return false
	}
}

// Document is an uploaded file owned by exactly one partition.
// The ingestion coordinator owns all mutations; the vector index and the
// relationship store only reference documents by ID.
type Document struct {
	Id        ID
	Partition Partition
	Filename  string
	ByteSize  int64
	MimeType  string
	Status    DocumentStatus
	Error     string // detail of the last failure, empty while healthy
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is an ordered, bounded slice of a document's extracted text.
// Start and End are rune offsets into the extracted text; consecutive chunks
// overlap by the extractor's configured overlap window.
type Chunk struct {
	DocId ID
	Seq   int
	Text  string
	Start int
	End   int
	Page  int // 1-based source page, 0 for formats without pages
}

// Embedding is the fixed-dimension vector for one chunk. The partition tag is
// copied from the owning document at write time and never changes on its own;
// re-partitioning requires delete and re-index.
type Embedding struct {
	DocId     ID
	Seq       int
	Partition Partition
	Vector    []float32
}

// EntityType categorizes a legal concept extracted from document text.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityDate         EntityType = "date"
	EntityLegalConcept EntityType = "legal_concept"
	EntityCaseNumber   EntityType = "case_number"
	EntityStatute      EntityType = "statute"
	EntityArticle      EntityType = "article"
	EntityClause       EntityType = "clause"
)

// EntityTypes lists the valid entity categories.
var EntityTypes = []EntityType{
	EntityPerson,
	EntityOrganization,
	EntityLocation,
	EntityDate,
	EntityLegalConcept,
	EntityCaseNumber,
	EntityStatute,
	EntityArticle,
	EntityClause,
}

// EdgeType is the kind of directed relationship between two entities.
type EdgeType string

const (
	EdgeAmends     EdgeType = "amends"
	EdgeOverrules  EdgeType = "overrules"
	EdgeCites      EdgeType = "cites"
	EdgeInterprets EdgeType = "interprets"
	EdgeAppliesTo  EdgeType = "applies_to"
	EdgeReferences EdgeType = "references"
	EdgeRelatedTo  EdgeType = "related_to"
)

// EdgeTypes lists the valid relationship kinds.
var EdgeTypes = []EdgeType{
	EdgeAmends,
	EdgeOverrules,
	EdgeCites,
	EdgeInterprets,
	EdgeAppliesTo,
	EdgeReferences,
	EdgeRelatedTo,
}

// Specificity returns the ranking weight of an edge type. More specific
// relationships score higher during graph traversal.
func (t EdgeType) Specificity() float32 {
	switch t {
	case EdgeAmends, EdgeOverrules:
		return 1.0
	case EdgeCites:
		return 0.9
	case EdgeInterprets:
		return 0.8
	case EdgeAppliesTo:
		return 0.7
	case EdgeReferences:
		return 0.5
	default:
		return 0.3
	}
}

// ChunkRef is a provenance pointer to the chunk an entity or edge was
// extracted from.
type ChunkRef struct {
	DocId ID
	Seq   int
}

// Entity is a named legal concept extracted from one or more documents.
// Entities with the same (partition, type, normalized name) tuple merge into
// a single record whose provenance accumulates across documents.
type Entity struct {
	Id         ID
	Partition  Partition
	Name       string // normalized: lowercase, single spaces
	Type       EntityType
	Provenance []ChunkRef
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Tuple returns the dedupe key as "(partition,type,name)".
// It is the input to the entity's content-addressed ID.
func (e *Entity) Tuple() string {
	return "(" + string(e.Partition) + "," + string(e.Type) + "," + e.Name + ")"
}

// EntityID computes the content-addressed ID for an entity tuple. The
// partition is part of the tuple so entities never merge across the
// public/private boundary.
func EntityID(partition Partition, entityType EntityType, name string) ID {
	e := Entity{Partition: partition, Type: entityType, Name: name}
	return IDFromContent(e.Tuple())
}

// NormalizeEntityName canonicalizes an entity name for dedupe and keyword
// matching: lowercase with runs of whitespace collapsed to single spaces.
func NormalizeEntityName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Edge is a typed, directed link between two entities. Undirected
// relationships are stored as two edges.
type Edge struct {
	Id         ID
	SourceId   ID
	TargetId   ID
	Type       EdgeType
	Provenance []ChunkRef
}

// EdgeID computes the content-addressed ID for an edge tuple.
func EdgeID(source, target ID, edgeType EdgeType) ID {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(source))
	binary.BigEndian.PutUint64(buf[8:], uint64(target))
	return IDFromContent(string(buf[:]) + string(edgeType))
}

// TaskState tracks one ingestion attempt.
type TaskState int

const (
	// TaskQueued means the attempt is waiting for a worker.
	TaskQueued TaskState = iota + 1
	// TaskRunning means a worker holds the document lock and is processing.
	TaskRunning
	// TaskSucceeded means the attempt drove the document to indexed.
	TaskSucceeded
	// TaskFailed means the attempt exhausted retries or hit a terminal error.
	TaskFailed
)

// String returns the task state name.
func (s TaskState) String() string {
	switch s {
	case TaskQueued:
		return "queued"
	case TaskRunning:
		return "running"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskStates lists all task states, for monitoring counts.
var TaskStates = []TaskState{TaskQueued, TaskRunning, TaskSucceeded, TaskFailed}

// ProcessingTask is the audit record of one ingestion attempt. Tasks are
// never deleted; when the owning document is removed the task remains with
// DocDeleted set.
type ProcessingTask struct {
	Id         string // uuid
	DocId      ID
	Partition  Partition
	State      TaskState
	Stage      DocumentStatus // furthest lifecycle stage this attempt reached
	Retries    int            // transient-failure retries consumed
	LastError  string
	DocDeleted bool // tombstone: the owning document has been removed
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// PassageSource identifies which retrieval branch produced a passage.
type PassageSource int

const (
	// SourceVector marks a passage found by vector similarity only.
	SourceVector PassageSource = iota + 1
	// SourceGraph marks a passage found by graph traversal only.
	SourceGraph
	// SourceBoth marks a passage both branches agreed on.
	SourceBoth
)

// Passage is one ranked, cited retrieval result. It is the contract surface
// handed to the external synthesizer.
type Passage struct {
	DocId      ID
	Seq        int
	Partition  Partition
	Text       string
	Score      float32
	Source     PassageSource
	Start      int // rune offsets of the chunk in the extracted text
	End        int
	EntityPath []string // traversal route for graph-sourced passages, nil otherwise
}

// VectorMatch is one nearest-neighbor hit from the vector index. Scores are
// comparable only within a single search call.
type VectorMatch struct {
	DocId     ID
	Seq       int
	Partition Partition
	Score     float32
}

// GraphMatch is one entity reached by traversal, with the chunks that
// support it and the path of entity names walked from the seed.
type GraphMatch struct {
	Entity *Entity
	Refs   []ChunkRef
	Path   []string
	Score  float32
}
