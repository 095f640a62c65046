package badger

import (
	"context"
	"encoding/binary"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// VectorIndex implements storage.VectorIndex for BadgerDB.
// Embeddings are stored under partition-prefixed keys so a similarity scan
// only ever touches the partitions in the caller's set.
type VectorIndex struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
func NewVectorIndex(backend *Backend) (*VectorIndex, error) {
	return &VectorIndex{
		backend: backend,
	}, nil
}

// Close releases resources. VectorIndex has no resources to release.
func (v *VectorIndex) Close() error {
	return nil
}

// Upsert writes a document's embeddings. Keys are derived from
// (partition, document, sequence) so re-running ingestion overwrites
// rather than duplicates.
func (v *VectorIndex) Upsert(ctx context.Context, partition core.Partition, docID core.ID, embeddings []core.Embedding) error {
	if err := partition.Validate(); err != nil {
		return err
	}

	return v.backend.WithTx(func(tx *badger.Txn) error {
		for i := range embeddings {
			emb := embeddings[i]
			emb.Partition = partition
			emb.DocId = docID

			key := makeEmbeddingKey(partition, docID, emb.Seq)
			if err := tx.Set(key, storage.MarshalEmbedding(&emb)); err != nil {
				return err
			}
		}

		// Remember which partition holds this document's embeddings so
		// deletion doesn't need the document record.
		refKey := makeEmbeddingRefKey(docID)
		if err := tx.Set(refKey, []byte(partition)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// Search returns the k nearest chunks to the query vector across the
// caller's partition set, ordered by cosine similarity descending. Chunks
// scoring below minScore are filtered out before the k cutoff.
func (v *VectorIndex) Search(ctx context.Context, set core.PartitionSet, vector []float32, minScore float32, k int) ([]core.VectorMatch, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []core.VectorMatch
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		for _, partition := range set.Partitions() {
			prefix := makePartialEmbeddingKey(partition)

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)

			for iter.Rewind(); iter.Valid(); iter.Next() {
				var emb *core.Embedding
				err := iter.Item().Value(func(val []byte) error {
					var err error
					emb, err = storage.UnmarshalEmbedding(val)
					return err
				})
				if err != nil {
					iter.Close()
					return err
				}
				if emb == nil || len(emb.Vector) == 0 {
					continue
				}

				score := cosineSimilarity(vector, emb.Vector)
				if score < minScore {
					continue
				}
				results = append(results, core.VectorMatch{
					DocId:     emb.DocId,
					Seq:       emb.Seq,
					Partition: emb.Partition,
					Score:     score,
				})
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b core.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Delete removes all embeddings of a document. Safe to call for a document
// with no indexed embeddings.
func (v *VectorIndex) Delete(ctx context.Context, docID core.ID) error {
	return v.backend.WithTx(func(tx *badger.Txn) error {
		refKey := makeEmbeddingRefKey(docID)
		item, err := tx.Get(refKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var partition core.Partition
		if err := item.Value(func(val []byte) error {
			partition = core.Partition(val)
			return nil
		}); err != nil {
			return err
		}

		prefix := makePartialEmbeddingKey(partition)
		docPrefix := make([]byte, len(prefix)+8)
		copy(docPrefix, prefix)
		binary.BigEndian.PutUint64(docPrefix[len(prefix):], uint64(docID))

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Seek(docPrefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !hasPrefix(key, docPrefix) {
				break
			}
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		if err := tx.Delete(refKey); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// cosineSimilarity calculates the cosine similarity of two vectors.
func cosineSimilarity(a, b []float32) float32 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	var dot, normA, normB float32
	for i := 0; i < minLen; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
