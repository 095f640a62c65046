package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/search"
)

// verboseMonitor prints per-branch retrieval details for --verbose queries.
type verboseMonitor struct {
	w io.Writer
}

var _ search.SearchMonitor = (*verboseMonitor)(nil)

func newVerboseMonitor(w io.Writer) *verboseMonitor {
	return &verboseMonitor{w: w}
}

func (m *verboseMonitor) Start(question string) {
	fmt.Fprintf(m.w, "question: %s\n", question)
}

func (m *verboseMonitor) AfterQueryEmbedding(err error) {
	if err != nil {
		fmt.Fprintf(m.w, "query embedding failed: %v\n", err)
	}
}

func (m *verboseMonitor) AfterVectorSearch(matches []core.VectorMatch, elapsed time.Duration, err error) {
	if err != nil {
		fmt.Fprintf(m.w, "vector branch failed after %s: %v\n", elapsed, err)
		return
	}
	fmt.Fprintf(m.w, "vector branch: %d matches in %s\n", len(matches), elapsed)
	for _, match := range matches {
		fmt.Fprintf(m.w, "  doc %d chunk %d score %.3f\n", match.DocId, match.Seq, match.Score)
	}
}

func (m *verboseMonitor) AfterGraphTraversal(matches []core.GraphMatch, elapsed time.Duration, err error) {
	if err != nil {
		fmt.Fprintf(m.w, "graph branch failed after %s: %v\n", elapsed, err)
		return
	}
	fmt.Fprintf(m.w, "graph branch: %d entities in %s\n", len(matches), elapsed)
	for _, match := range matches {
		fmt.Fprintf(m.w, "  %s (%s) score %.3f via %s\n",
			match.Entity.Name, match.Entity.Type, match.Score,
			strings.Join(match.Path, " -> "))
	}
}

func (m *verboseMonitor) VectorAndGraphHit(passage *core.Passage) {
	fmt.Fprintf(m.w, "both branches: doc %d chunk %d\n", passage.DocId, passage.Seq)
}

func (m *verboseMonitor) VectorHit(passage *core.Passage) {
	fmt.Fprintf(m.w, "vector only: doc %d chunk %d\n", passage.DocId, passage.Seq)
}

func (m *verboseMonitor) GraphHit(passage *core.Passage) {
	fmt.Fprintf(m.w, "graph only: doc %d chunk %d\n", passage.DocId, passage.Seq)
}

func (m *verboseMonitor) PartitionViolationDropped(passage *core.Passage) {
	fmt.Fprintf(m.w, "dropped partition violation: doc %d chunk %d (%s)\n",
		passage.DocId, passage.Seq, string(passage.Partition))
}

func (m *verboseMonitor) Finish(passages []core.Passage) {
	fmt.Fprintf(m.w, "returning %d passages\n", len(passages))
}
