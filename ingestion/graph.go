package ingestion

import (
	"github.com/poiesic/docket/ai"
	"github.com/poiesic/docket/core"
)

// graphAccumulator merges per-chunk extraction results into one deduplicated
// entity and edge set for a document. Entities collapse on their
// content-addressed ID, accumulating a provenance ref per contributing chunk.
type graphAccumulator struct {
	partition core.Partition
	entities  map[core.ID]*core.Entity
	edges     map[core.ID]*core.Edge
	// insertion order, so the output is stable across runs
	entityOrder []core.ID
	edgeOrder   []core.ID
}

func newGraphAccumulator(partition core.Partition) *graphAccumulator {
	return &graphAccumulator{
		partition: partition,
		entities:  make(map[core.ID]*core.Entity),
		edges:     make(map[core.ID]*core.Edge),
	}
}

// add folds one chunk's extraction into the accumulator. Entity names are
// normalized before dedupe; relations whose endpoints were not extracted as
// entities are dropped.
func (a *graphAccumulator) add(ref core.ChunkRef, extraction *ai.Extraction) {
	if extraction == nil {
		return
	}

	for _, extracted := range extraction.Entities {
		name := core.NormalizeEntityName(extracted.Name)
		if name == "" {
			continue
		}
		a.addEntity(name, core.EntityType(extracted.Type), ref)
	}

	for _, relation := range extraction.Relations {
		sourceName := core.NormalizeEntityName(relation.Source)
		targetName := core.NormalizeEntityName(relation.Target)
		if sourceName == "" || targetName == "" {
			continue
		}

		sourceID := core.EntityID(a.partition, core.EntityType(relation.SourceType), sourceName)
		targetID := core.EntityID(a.partition, core.EntityType(relation.TargetType), targetName)
		if _, ok := a.entities[sourceID]; !ok {
			continue
		}
		if _, ok := a.entities[targetID]; !ok {
			continue
		}

		a.addEdge(sourceID, targetID, core.EdgeType(relation.Type), ref)
	}
}

func (a *graphAccumulator) addEntity(name string, entityType core.EntityType, ref core.ChunkRef) {
	id := core.EntityID(a.partition, entityType, name)
	entity, ok := a.entities[id]
	if !ok {
		entity = &core.Entity{
			Id:        id,
			Partition: a.partition,
			Name:      name,
			Type:      entityType,
		}
		a.entities[id] = entity
		a.entityOrder = append(a.entityOrder, id)
	}
	entity.Provenance = appendRef(entity.Provenance, ref)
}

func (a *graphAccumulator) addEdge(sourceID, targetID core.ID, edgeType core.EdgeType, ref core.ChunkRef) {
	if sourceID == targetID {
		return
	}
	id := core.EdgeID(sourceID, targetID, edgeType)
	edge, ok := a.edges[id]
	if !ok {
		edge = &core.Edge{
			Id:       id,
			SourceId: sourceID,
			TargetId: targetID,
			Type:     edgeType,
		}
		a.edges[id] = edge
		a.edgeOrder = append(a.edgeOrder, id)
	}
	edge.Provenance = appendRef(edge.Provenance, ref)
}

// build returns the accumulated entities and edges in first-seen order.
func (a *graphAccumulator) build() ([]core.Entity, []core.Edge) {
	entities := make([]core.Entity, 0, len(a.entityOrder))
	for _, id := range a.entityOrder {
		entities = append(entities, *a.entities[id])
	}

	edges := make([]core.Edge, 0, len(a.edgeOrder))
	for _, id := range a.edgeOrder {
		edges = append(edges, *a.edges[id])
	}

	return entities, edges
}

func appendRef(refs []core.ChunkRef, ref core.ChunkRef) []core.ChunkRef {
	for _, existing := range refs {
		if existing == ref {
			return refs
		}
	}
	return append(refs, ref)
}
