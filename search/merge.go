// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import "github.com/poiesic/docket/core"

// mergedHit is one deduplicated (document, chunk) candidate with its
// combined cross-branch score.
type mergedHit struct {
	DocId  core.ID
	Seq    int
	Score  float32
	Source core.PassageSource
	Path   []string // entity traversal route when the graph branch found it
}

type chunkKey struct {
	docID core.ID
	seq   int
}

// mergeBranches combines the two retrieval branches into one candidate list.
// Scores are min-max normalized within each branch before weighting, since
// cosine similarities and traversal scores are not on a common scale.
// Candidates found by both branches sum their weighted contributions and are
// marked SourceBoth.
func mergeBranches(vectorMatches []core.VectorMatch, graphMatches []core.GraphMatch, vectorWeight, graphWeight float32) []mergedHit {
	// The graph branch scores entities; spread each entity's score onto the
	// chunks in its provenance, keeping the best score per chunk.
	type graphHit struct {
		score float32
		path  []string
	}
	graphByChunk := make(map[chunkKey]graphHit)
	for _, match := range graphMatches {
		for _, ref := range match.Refs {
			key := chunkKey{ref.DocId, ref.Seq}
			if prev, ok := graphByChunk[key]; !ok || match.Score > prev.score {
				graphByChunk[key] = graphHit{score: match.Score, path: match.Path}
			}
		}
	}

	// A chunk can appear more than once in vector matches only if the index
	// misbehaves; keep the higher score.
	vectorByChunk := make(map[chunkKey]float32)
	for _, match := range vectorMatches {
		key := chunkKey{match.DocId, match.Seq}
		if prev, ok := vectorByChunk[key]; !ok || match.Score > prev {
			vectorByChunk[key] = match.Score
		}
	}

	vectorNorm := normalizer(values(vectorByChunk))
	graphScores := make([]float32, 0, len(graphByChunk))
	for _, hit := range graphByChunk {
		graphScores = append(graphScores, hit.score)
	}
	graphNorm := normalizer(graphScores)

	hits := make([]mergedHit, 0, len(vectorByChunk)+len(graphByChunk))
	for key, score := range vectorByChunk {
		hit := mergedHit{
			DocId:  key.docID,
			Seq:    key.seq,
			Score:  vectorWeight * vectorNorm(score),
			Source: core.SourceVector,
		}
		if graph, ok := graphByChunk[key]; ok {
			hit.Score += graphWeight * graphNorm(graph.score)
			hit.Source = core.SourceBoth
			hit.Path = graph.path
		}
		hits = append(hits, hit)
	}
	for key, graph := range graphByChunk {
		if _, ok := vectorByChunk[key]; ok {
			continue // already merged above
		}
		hits = append(hits, mergedHit{
			DocId:  key.docID,
			Seq:    key.seq,
			Score:  graphWeight * graphNorm(graph.score),
			Source: core.SourceGraph,
			Path:   graph.path,
		})
	}

	return hits
}

// normalizer returns a min-max normalization function over the observed
// scores. A branch with a single score, or identical scores, normalizes to
// 1.0 so it still contributes its full weight.
func normalizer(scores []float32) func(float32) float32 {
	if len(scores) == 0 {
		return func(float32) float32 { return 0 }
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	if max == min {
		return func(float32) float32 { return 1.0 }
	}
	spread := max - min
	return func(s float32) float32 { return (s - min) / spread }
}

func values(m map[chunkKey]float32) []float32 {
	out := make([]float32, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
