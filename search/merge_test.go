package search

import (
	"testing"

	"github.com/poiesic/docket/core"
)

func TestMergeBranchesCombinesSharedChunks(t *testing.T) {
	vector := []core.VectorMatch{
		{DocId: 1, Seq: 0, Score: 0.9},
		{DocId: 1, Seq: 1, Score: 0.5},
	}
	graph := []core.GraphMatch{
		{
			Entity: &core.Entity{Name: "statute"},
			Refs:   []core.ChunkRef{{DocId: 1, Seq: 0}},
			Path:   []string{"statute"},
			Score:  0.8,
		},
	}

	hits := mergeBranches(vector, graph, 0.6, 0.4)
	if len(hits) != 2 {
		t.Fatalf("Expected 2 merged hits, got %d", len(hits))
	}

	byKey := make(map[chunkKey]mergedHit)
	for _, hit := range hits {
		byKey[chunkKey{hit.DocId, hit.Seq}] = hit
	}

	shared := byKey[chunkKey{1, 0}]
	if shared.Source != core.SourceBoth {
		t.Fatalf("Expected SourceBoth, got %v", shared.Source)
	}
	// Chunk 0 is the vector max (normalizes to 1.0) and the only graph
	// score (normalizes to 1.0): 0.6*1.0 + 0.4*1.0.
	if shared.Score < 0.99 || shared.Score > 1.01 {
		t.Fatalf("Expected combined score 1.0, got %f", shared.Score)
	}
	if len(shared.Path) != 1 || shared.Path[0] != "statute" {
		t.Fatalf("Expected entity path carried over, got %v", shared.Path)
	}

	vectorOnly := byKey[chunkKey{1, 1}]
	if vectorOnly.Source != core.SourceVector {
		t.Fatalf("Expected SourceVector, got %v", vectorOnly.Source)
	}
	// Chunk 1 is the vector min, so it normalizes to 0.
	if vectorOnly.Score != 0 {
		t.Fatalf("Expected normalized-min score 0, got %f", vectorOnly.Score)
	}
}

func TestMergeBranchesGraphOnly(t *testing.T) {
	graph := []core.GraphMatch{
		{Refs: []core.ChunkRef{{DocId: 2, Seq: 3}}, Score: 0.5, Path: []string{"a", "b"}},
		{Refs: []core.ChunkRef{{DocId: 2, Seq: 4}}, Score: 0.25},
	}

	hits := mergeBranches(nil, graph, 0.6, 0.4)
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	for _, hit := range hits {
		if hit.Source != core.SourceGraph {
			t.Fatalf("Expected SourceGraph, got %v", hit.Source)
		}
		if hit.Score > 0.4 {
			t.Fatalf("Graph-only score cannot exceed the graph weight, got %f", hit.Score)
		}
	}
}

func TestMergeBranchesKeepsBestGraphScorePerChunk(t *testing.T) {
	// Two entities cite the same chunk; the higher traversal score wins.
	graph := []core.GraphMatch{
		{Refs: []core.ChunkRef{{DocId: 5, Seq: 0}}, Score: 0.3, Path: []string{"weak"}},
		{Refs: []core.ChunkRef{{DocId: 5, Seq: 0}}, Score: 0.9, Path: []string{"strong"}},
		{Refs: []core.ChunkRef{{DocId: 5, Seq: 1}}, Score: 0.1},
	}

	hits := mergeBranches(nil, graph, 0.6, 0.4)
	for _, hit := range hits {
		if hit.Seq == 0 {
			if len(hit.Path) != 1 || hit.Path[0] != "strong" {
				t.Fatalf("Expected the stronger entity's path, got %v", hit.Path)
			}
			// 0.9 is the branch max.
			if hit.Score < 0.39 {
				t.Fatalf("Expected full graph weight, got %f", hit.Score)
			}
		}
	}
}

func TestNormalizer(t *testing.T) {
	n := normalizer([]float32{0.2, 0.6, 1.0})
	if got := n(0.2); got != 0 {
		t.Fatalf("min should normalize to 0, got %f", got)
	}
	if got := n(1.0); got != 1 {
		t.Fatalf("max should normalize to 1, got %f", got)
	}
	if got := n(0.6); got < 0.49 || got > 0.51 {
		t.Fatalf("mid should normalize to 0.5, got %f", got)
	}

	single := normalizer([]float32{0.7})
	if got := single(0.7); got != 1.0 {
		t.Fatalf("single score should normalize to 1.0, got %f", got)
	}

	empty := normalizer(nil)
	if got := empty(0.5); got != 0 {
		t.Fatalf("empty branch should normalize to 0, got %f", got)
	}
}

func TestSeedTerms(t *testing.T) {
	terms := seedTerms("What does article 15 of the GDPR say about case 42/2019?")

	want := map[string]bool{"article": true, "15": true, "gdpr": true,
		"say": true, "case": true, "42/2019": true}
	if len(terms) != len(want) {
		t.Fatalf("Expected %d terms, got %v", len(want), terms)
	}
	for _, term := range terms {
		if !want[term] {
			t.Fatalf("Unexpected seed term %q", term)
		}
	}
}
