package badger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// traversalDecay is the per-hop score multiplier. Entities further from a
// seed contribute less unless reached over highly specific edges.
const traversalDecay = 0.75

// GraphRepository implements storage.GraphRepository for BadgerDB.
// Entities and edges are shared across documents; per-document provenance
// tracks which documents contributed them so deletes can prune precisely.
type GraphRepository struct {
	backend *Backend
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (*GraphRepository, error) {
	return &GraphRepository{
		backend: backend,
	}, nil
}

// Close releases resources. GraphRepository has no resources to release.
func (g *GraphRepository) Close() error {
	return nil
}

// UpsertDocumentGraph replaces a document's contribution to the graph.
// The document's previous provenance is removed first, so re-running
// ingestion converges instead of accumulating stale references.
func (g *GraphRepository) UpsertDocumentGraph(ctx context.Context, docID core.ID, entities []core.Entity, edges []core.Edge) error {
	for i := range entities {
		if err := core.ValidateEntity(&entities[i]); err != nil {
			return err
		}
	}
	for i := range edges {
		if err := core.ValidateEdge(&edges[i]); err != nil {
			return err
		}
	}

	return g.backend.WithTx(func(tx *badger.Txn) error {
		if err := removeDocumentContribution(tx, docID); err != nil {
			return err
		}

		now := time.Now().UTC()

		for i := range entities {
			entity := entities[i]
			if entity.Id == 0 {
				entity.Id = core.EntityID(entity.Partition, entity.Type, entity.Name)
			}

			existing, err := readEntity(tx, makeEntityKey(entity.Id))
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Provenance = mergeRefs(existing.Provenance, entity.Provenance)
				existing.UpdatedAt = now
				entity = *existing
			} else {
				entity.InsertedAt = now
				entity.UpdatedAt = now
			}

			if err := tx.Set(makeEntityKey(entity.Id), storage.MarshalEntity(&entity)); err != nil {
				return err
			}
			if err := tx.Set(makeEntityDocKey(docID, entity.Id), storage.MarshalID(entity.Id)); err != nil {
				return err
			}
			for _, token := range nameTokens(entity.Name) {
				key := makeEntityTokenKey(entity.Partition, token, entity.Id)
				if err := tx.Set(key, storage.MarshalID(entity.Id)); err != nil {
					return err
				}
			}
		}

		for i := range edges {
			edge := edges[i]
			if edge.Id == 0 {
				edge.Id = core.EdgeID(edge.SourceId, edge.TargetId, edge.Type)
			}

			existing, err := readEdge(tx, makeEdgeKey(edge.Id))
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Provenance = mergeRefs(existing.Provenance, edge.Provenance)
				edge = *existing
			}

			if err := tx.Set(makeEdgeKey(edge.Id), storage.MarshalEdge(&edge)); err != nil {
				return err
			}
			if err := tx.Set(makeEdgeDocKey(docID, edge.Id), storage.MarshalID(edge.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeEdgeSourceKey(edge.SourceId, edge.Id), storage.MarshalID(edge.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeEdgeTargetKey(edge.TargetId, edge.Id), storage.MarshalID(edge.Id)); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)
}

// Traverse seeds a bounded-depth walk from entities whose names match the
// seed terms, following typed edges in both directions up to maxHops.
// Scores combine edge specificity with per-hop decay so close, strongly
// typed connections rank above distant weak ones.
func (g *GraphRepository) Traverse(ctx context.Context, set core.PartitionSet, seedTerms []string, maxHops int) ([]core.GraphMatch, error) {
	if maxHops < 0 || set.Empty() {
		return nil, storage.ErrInvalidQuery
	}

	type frontier struct {
		id    core.ID
		depth int
		path  []string
		score float32
	}

	var results []core.GraphMatch
	err := g.backend.WithTx(func(tx *badger.Txn) error {
		seen := make(map[core.ID]bool)
		var queue []frontier

		// Seed the walk from the keyword index, one partition at a time.
		for _, partition := range set.Partitions() {
			for _, term := range seedTerms {
				for _, token := range nameTokens(term) {
					ids, err := entityIDsForToken(tx, partition, token)
					if err != nil {
						return err
					}
					for _, id := range ids {
						if seen[id] {
							continue
						}
						seen[id] = true
						queue = append(queue, frontier{id: id, depth: 0, score: 1.0})
					}
				}
			}
		}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]

			entity, err := readEntity(tx, makeEntityKey(cur.id))
			if err != nil {
				return err
			}
			if entity == nil || !set.Contains(entity.Partition) {
				continue
			}

			path := append(slices.Clone(cur.path), entity.Name)
			results = append(results, core.GraphMatch{
				Entity: entity,
				Refs:   slices.Clone(entity.Provenance),
				Path:   path,
				Score:  cur.score,
			})

			if cur.depth >= maxHops {
				continue
			}

			neighbors, err := adjacentEdges(tx, cur.id)
			if err != nil {
				return err
			}
			for _, edge := range neighbors {
				next := edge.TargetId
				if next == cur.id {
					next = edge.SourceId
				}
				if seen[next] {
					continue
				}
				seen[next] = true
				queue = append(queue, frontier{
					id:    next,
					depth: cur.depth + 1,
					path:  path,
					score: cur.score * edge.Type.Specificity() * traversalDecay,
				})
			}
		}

		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.GraphMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	return results, nil
}

// GetEntity retrieves an entity by ID.
func (g *GraphRepository) GetEntity(ctx context.Context, id core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := g.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, makeEntityKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// Delete removes a document's provenance from the graph. Entities and edges
// with no remaining provenance are removed entirely.
func (g *GraphRepository) Delete(ctx context.Context, docID core.ID) error {
	return g.backend.WithTx(func(tx *badger.Txn) error {
		if err := removeDocumentContribution(tx, docID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Helper methods

// removeDocumentContribution strips docID's provenance from every entity and
// edge it touched, deleting records that end up with no provenance at all.
func removeDocumentContribution(tx *badger.Txn, docID core.ID) error {
	entityIDs, entityDocKeys, err := collectDocIndex(tx, makePartialEntityDocKey(docID))
	if err != nil {
		return err
	}

	for _, entityID := range entityIDs {
		entity, err := readEntity(tx, makeEntityKey(entityID))
		if err != nil {
			return err
		}
		if entity == nil {
			continue
		}

		entity.Provenance = dropDocRefs(entity.Provenance, docID)
		if len(entity.Provenance) == 0 {
			for _, token := range nameTokens(entity.Name) {
				if err := tx.Delete(makeEntityTokenKey(entity.Partition, token, entity.Id)); err != nil {
					return err
				}
			}
			if err := tx.Delete(makeEntityKey(entity.Id)); err != nil {
				return err
			}
		} else {
			entity.UpdatedAt = time.Now().UTC()
			if err := tx.Set(makeEntityKey(entity.Id), storage.MarshalEntity(entity)); err != nil {
				return err
			}
		}
	}

	edgeIDs, edgeDocKeys, err := collectDocIndex(tx, makePartialEdgeDocKey(docID))
	if err != nil {
		return err
	}

	for _, edgeID := range edgeIDs {
		edge, err := readEdge(tx, makeEdgeKey(edgeID))
		if err != nil {
			return err
		}
		if edge == nil {
			continue
		}

		edge.Provenance = dropDocRefs(edge.Provenance, docID)
		if len(edge.Provenance) == 0 {
			if err := tx.Delete(makeEdgeSourceKey(edge.SourceId, edge.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeEdgeTargetKey(edge.TargetId, edge.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeEdgeKey(edge.Id)); err != nil {
				return err
			}
		} else {
			if err := tx.Set(makeEdgeKey(edge.Id), storage.MarshalEdge(edge)); err != nil {
				return err
			}
		}
	}

	for _, key := range append(entityDocKeys, edgeDocKeys...) {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}

	return nil
}

// collectDocIndex scans a per-document index prefix, returning the
// referenced IDs and the index keys themselves.
func collectDocIndex(tx *badger.Txn, prefix []byte) ([]core.ID, [][]byte, error) {
	var ids []core.ID
	var keys [][]byte

	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	defer iter.Close()

	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		if !hasPrefix(iter.Item().Key(), prefix) {
			break
		}

		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		keys = append(keys, iter.Item().KeyCopy(nil))
	}

	return ids, keys, nil
}

// entityIDsForToken returns the IDs of entities whose name contains the
// token, within one partition.
func entityIDsForToken(tx *badger.Txn, partition core.Partition, token string) ([]core.ID, error) {
	var ids []core.ID

	prefix := makePartialEntityTokenKey(partition, token)
	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	defer iter.Close()

	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		if !hasPrefix(iter.Item().Key(), prefix) {
			break
		}

		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// adjacentEdges returns every edge touching the entity, in both directions.
func adjacentEdges(tx *badger.Txn, entityID core.ID) ([]*core.Edge, error) {
	var edges []*core.Edge

	for _, prefix := range [][]byte{
		makePartialEdgeSourceKey(entityID),
		makePartialEdgeTargetKey(entityID),
	} {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			if !hasPrefix(iter.Item().Key(), prefix) {
				break
			}

			var edgeID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				edgeID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				iter.Close()
				return nil, err
			}

			edge, err := readEdge(tx, makeEdgeKey(edgeID))
			if err != nil {
				iter.Close()
				return nil, err
			}
			if edge != nil {
				edges = append(edges, edge)
			}
		}
		iter.Close()
	}

	return edges, nil
}

// readEntity reads an entity from the transaction.
func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entity, unmarshalErr = storage.UnmarshalEntity(val)
		return unmarshalErr
	})
	return entity, err
}

// readEdge reads an edge from the transaction.
func readEdge(tx *badger.Txn, key []byte) (*core.Edge, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var edge *core.Edge
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		edge, unmarshalErr = storage.UnmarshalEdge(val)
		return unmarshalErr
	})
	return edge, err
}

// nameTokens splits a normalized entity name into index tokens.
func nameTokens(name string) []string {
	fields := strings.Fields(core.NormalizeEntityName(name))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// mergeRefs unions two provenance lists, preserving order of first sight.
func mergeRefs(existing, incoming []core.ChunkRef) []core.ChunkRef {
	merged := slices.Clone(existing)
	for _, ref := range incoming {
		if !slices.Contains(merged, ref) {
			merged = append(merged, ref)
		}
	}
	return merged
}

// dropDocRefs removes every provenance reference belonging to a document.
func dropDocRefs(refs []core.ChunkRef, docID core.ID) []core.ChunkRef {
	kept := refs[:0]
	for _, ref := range refs {
		if ref.DocId != docID {
			kept = append(kept, ref)
		}
	}
	return kept
}
