package storage

import (
	"testing"
	"time"

	"github.com/poiesic/docket/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			got, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, got)
		})
	}
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond).UTC()
	doc := &core.Document{
		Id:        core.ID(7),
		Partition: core.UserPartition("alice"),
		Filename:  "ruling.pdf",
		ByteSize:  204800,
		MimeType:  "application/pdf",
		Status:    core.StatusIndexed,
		Error:     "",
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}

	data := MarshalDocument(doc)
	require.NotEmpty(t, data)

	got, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestMarshalUnmarshalDocumentWithError(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond).UTC()
	doc := &core.Document{
		Id:        core.ID(8),
		Partition: core.PartitionPublic,
		Filename:  "broken.docx",
		ByteSize:  1024,
		MimeType:  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Status:    core.StatusFailed,
		Error:     "extraction failed: corrupt archive",
		CreatedAt: now,
		UpdatedAt: now,
	}

	got, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		DocId: core.ID(7),
		Seq:   3,
		Text:  "The court held that the statute applies retroactively.",
		Start: 2400,
		End:   2455,
		Page:  12,
	}

	got, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

func TestMarshalUnmarshalEmbedding(t *testing.T) {
	emb := &core.Embedding{
		DocId:     core.ID(7),
		Seq:       3,
		Partition: core.PartitionPublic,
		Vector:    []float32{0.1, -0.5, 0.25, 1.0},
	}

	got, err := UnmarshalEmbedding(MarshalEmbedding(emb))
	require.NoError(t, err)
	assert.Equal(t, emb, got)
}

func TestMarshalUnmarshalEntity(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond).UTC()
	entity := &core.Entity{
		Partition: core.UserPartition("alice"),
		Name:      "supreme court",
		Type:      core.EntityOrganization,
		Provenance: []core.ChunkRef{
			{DocId: core.ID(7), Seq: 0},
			{DocId: core.ID(7), Seq: 3},
			{DocId: core.ID(9), Seq: 1},
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}
	entity.Id = core.EntityID(entity.Partition, entity.Type, entity.Name)

	got, err := UnmarshalEntity(MarshalEntity(entity))
	require.NoError(t, err)
	assert.Equal(t, entity, got)
}

func TestMarshalUnmarshalEdge(t *testing.T) {
	edge := &core.Edge{
		SourceId: core.ID(100),
		TargetId: core.ID(200),
		Type:     core.EdgeCites,
		Provenance: []core.ChunkRef{
			{DocId: core.ID(7), Seq: 2},
		},
	}
	edge.Id = core.EdgeID(edge.SourceId, edge.TargetId, edge.Type)

	got, err := UnmarshalEdge(MarshalEdge(edge))
	require.NoError(t, err)
	assert.Equal(t, edge, got)
}

func TestMarshalUnmarshalTask(t *testing.T) {
	created := time.Now().Truncate(time.Microsecond).UTC()
	started := created.Add(time.Second)
	finished := started.Add(30 * time.Second)

	task := &core.ProcessingTask{
		Id:         "2b8f39aa-1f6c-4cf5-9a0e-1d2c3b4a5e6f",
		DocId:      core.ID(7),
		Partition:  core.UserPartition("alice"),
		State:      core.TaskSucceeded,
		Stage:      core.StatusIndexed,
		Retries:    1,
		LastError:  "embedding service unavailable",
		DocDeleted: false,
		CreatedAt:  created,
		StartedAt:  started,
		FinishedAt: finished,
	}

	got, err := UnmarshalTask(MarshalTask(task))
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestMarshalUnmarshalTaskZeroTimes(t *testing.T) {
	task := &core.ProcessingTask{
		Id:        "f0e1d2c3-b4a5-4678-9abc-def012345678",
		DocId:     core.ID(9),
		Partition: core.PartitionPublic,
		State:     core.TaskQueued,
		Stage:     core.StatusUploaded,
		CreatedAt: time.Now().Truncate(time.Microsecond).UTC(),
	}

	got, err := UnmarshalTask(MarshalTask(task))
	require.NoError(t, err)
	assert.True(t, got.StartedAt.IsZero())
	assert.True(t, got.FinishedAt.IsZero())
	assert.Equal(t, task, got)
}

func TestUnmarshalTruncatedData(t *testing.T) {
	doc := &core.Document{
		Id:        core.ID(7),
		Partition: core.PartitionPublic,
		Filename:  "ruling.pdf",
		Status:    core.StatusUploaded,
		CreatedAt: time.Now().Truncate(time.Microsecond).UTC(),
		UpdatedAt: time.Now().Truncate(time.Microsecond).UTC(),
	}

	data := MarshalDocument(doc)
	_, err := UnmarshalDocument(data[:len(data)/2])
	assert.Error(t, err)
}
