package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/docket/core"
)

// Key prefixes for different data types
const (
	documentPrefix          = "doc"
	documentStatusPrefix    = "docstat"
	documentPartitionPrefix = "docpart"
	documentFilePrefix      = "docraw"
	documentIDSeq           = "docseq"
	chunkPrefix             = "chu"
	taskPrefix              = "task"
	taskStatePrefix         = "taskst"
	taskDocPrefix           = "taskdoc"
	embeddingPrefix         = "emb"
	embeddingRefPrefix      = "embref"
	entityPrefix            = "ent"
	entityDocPrefix         = "entdoc"
	entityTokenPrefix       = "enttok"
	edgePrefix              = "edg"
	edgeDocPrefix           = "edgdoc"
	edgeSourcePrefix        = "edgsrc"
	edgeTargetPrefix        = "edgtgt"
)

// keySep separates variable-length segments inside composite keys.
// Partition names contain ':' so a NUL byte keeps segments unambiguous.
const keySep = byte(0)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentFileKey generates a key for a document's original file bytes.
func makeDocumentFileKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentFilePrefix, id))
}

// makeDocumentStatusKey generates a composite key for the status index.
// Format: prefix:status:id
func makeDocumentStatusKey(status core.DocumentStatus, id core.ID) []byte {
	prefix := []byte(documentStatusPrefix + ":")
	buf := make([]byte, len(prefix)+1+8)
	offset := copy(buf, prefix)
	buf[offset] = byte(status)
	offset++
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDocumentStatusKey generates a partial key for status scans.
func makePartialDocumentStatusKey(status core.DocumentStatus) []byte {
	prefix := []byte(documentStatusPrefix + ":")
	buf := make([]byte, len(prefix)+1)
	offset := copy(buf, prefix)
	buf[offset] = byte(status)
	return buf
}

// makeDocumentPartitionKey generates a composite key for the partition index.
// Format: prefix:partition\x00id
func makeDocumentPartitionKey(partition core.Partition, id core.ID) []byte {
	prefix := []byte(documentPartitionPrefix + ":")
	buf := make([]byte, len(prefix)+len(partition)+1+8)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], []byte(partition))
	buf[offset] = keySep
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:docID:seq, BigEndian so chunks iterate in sequence order.
func makeChunkKey(docID core.ID, seq int) []byte {
	prefix := []byte(chunkPrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	return buf
}

// makePartialChunkKey generates a partial key for chunk scans of one document.
func makePartialChunkKey(docID core.ID) []byte {
	prefix := []byte(chunkPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	return buf
}

// makeTaskKey generates a key for a processing task by its UUID.
func makeTaskKey(id string) []byte {
	return []byte(taskPrefix + ":" + id)
}

// makeTaskStateKey generates a composite key for the task state index.
// Format: prefix:state:createdAt:taskID, ordered by creation time so a
// reverse scan yields newest first.
func makeTaskStateKey(state core.TaskState, createdMicro int64, taskID string) []byte {
	prefix := []byte(taskStatePrefix + ":")
	buf := make([]byte, len(prefix)+1+8+len(taskID))
	offset := copy(buf, prefix)
	buf[offset] = byte(state)
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdMicro))
	offset += 8
	copy(buf[offset:], []byte(taskID))
	return buf
}

// makePartialTaskStateKey generates a partial key for state scans.
func makePartialTaskStateKey(state core.TaskState) []byte {
	prefix := []byte(taskStatePrefix + ":")
	buf := make([]byte, len(prefix)+1)
	offset := copy(buf, prefix)
	buf[offset] = byte(state)
	return buf
}

// makeTaskDocKey generates a composite key for the task document index.
// Format: prefix:docID:createdAt:taskID, ordered oldest first per document.
func makeTaskDocKey(docID core.ID, createdMicro int64, taskID string) []byte {
	prefix := []byte(taskDocPrefix + ":")
	buf := make([]byte, len(prefix)+16+len(taskID))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdMicro))
	offset += 8
	copy(buf[offset:], []byte(taskID))
	return buf
}

// makePartialTaskDocKey generates a partial key for per-document task scans.
func makePartialTaskDocKey(docID core.ID) []byte {
	prefix := []byte(taskDocPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	return buf
}

// makeEmbeddingKey generates a composite key for an embedding.
// Format: prefix:partition\x00docID:seq. Partition leads so similarity scans
// touch only the partitions in the caller's set.
func makeEmbeddingKey(partition core.Partition, docID core.ID, seq int) []byte {
	prefix := []byte(embeddingPrefix + ":")
	buf := make([]byte, len(prefix)+len(partition)+1+16)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], []byte(partition))
	buf[offset] = keySep
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	return buf
}

// makePartialEmbeddingKey generates a partial key for one partition's scans.
func makePartialEmbeddingKey(partition core.Partition) []byte {
	prefix := []byte(embeddingPrefix + ":")
	buf := make([]byte, len(prefix)+len(partition)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], []byte(partition))
	buf[offset] = keySep
	return buf
}

// makeEmbeddingRefKey generates a key mapping a document to the partition
// its embeddings live in, so deletion doesn't need the document record.
func makeEmbeddingRefKey(docID core.ID) []byte {
	prefix := []byte(embeddingRefPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	return buf
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", entityPrefix, id))
}

// makeEntityDocKey generates a composite key recording that a document
// contributed provenance to an entity.
func makeEntityDocKey(docID, entityID core.ID) []byte {
	prefix := []byte(entityDocPrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityID))
	return buf
}

// makePartialEntityDocKey generates a partial key for one document's entities.
func makePartialEntityDocKey(docID core.ID) []byte {
	prefix := []byte(entityDocPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	return buf
}

// makeEntityTokenKey generates a composite key for the keyword index.
// Format: prefix:partition\x00token\x00entityID
func makeEntityTokenKey(partition core.Partition, token string, entityID core.ID) []byte {
	prefix := []byte(entityTokenPrefix + ":")
	buf := make([]byte, len(prefix)+len(partition)+1+len(token)+1+8)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], []byte(partition))
	buf[offset] = keySep
	offset++
	offset += copy(buf[offset:], []byte(token))
	buf[offset] = keySep
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityID))
	return buf
}

// makePartialEntityTokenKey generates a partial key for token lookups
// within one partition.
func makePartialEntityTokenKey(partition core.Partition, token string) []byte {
	prefix := []byte(entityTokenPrefix + ":")
	buf := make([]byte, len(prefix)+len(partition)+1+len(token)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], []byte(partition))
	buf[offset] = keySep
	offset++
	offset += copy(buf[offset:], []byte(token))
	buf[offset] = keySep
	return buf
}

// makeEdgeKey generates a key for an edge by ID.
func makeEdgeKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", edgePrefix, id))
}

// makeEdgeDocKey generates a composite key recording that a document
// contributed provenance to an edge.
func makeEdgeDocKey(docID, edgeID core.ID) []byte {
	prefix := []byte(edgeDocPrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(edgeID))
	return buf
}

// makePartialEdgeDocKey generates a partial key for one document's edges.
func makePartialEdgeDocKey(docID core.ID) []byte {
	prefix := []byte(edgeDocPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(docID))
	return buf
}

// makeEdgeSourceKey generates an adjacency key from source entity to edge.
func makeEdgeSourceKey(sourceID, edgeID core.ID) []byte {
	prefix := []byte(edgeSourcePrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(sourceID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(edgeID))
	return buf
}

// makePartialEdgeSourceKey generates a partial key for outgoing edges.
func makePartialEdgeSourceKey(sourceID core.ID) []byte {
	prefix := []byte(edgeSourcePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(sourceID))
	return buf
}

// makeEdgeTargetKey generates an adjacency key from target entity to edge.
func makeEdgeTargetKey(targetID, edgeID core.ID) []byte {
	prefix := []byte(edgeTargetPrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(targetID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(edgeID))
	return buf
}

// makePartialEdgeTargetKey generates a partial key for incoming edges.
func makePartialEdgeTargetKey(targetID core.ID) []byte {
	prefix := []byte(edgeTargetPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(targetID))
	return buf
}
