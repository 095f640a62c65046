package search

import (
	"time"

	"github.com/poiesic/docket/core"
)

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track branch results and timings during a query.
type SearchMonitor interface {
	Start(question string)
	AfterQueryEmbedding(err error)
	AfterVectorSearch(matches []core.VectorMatch, elapsed time.Duration, err error)
	AfterGraphTraversal(matches []core.GraphMatch, elapsed time.Duration, err error)
	VectorAndGraphHit(passage *core.Passage)
	VectorHit(passage *core.Passage)
	GraphHit(passage *core.Passage)
	PartitionViolationDropped(passage *core.Passage)
	Finish(passages []core.Passage)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                                    {}
func (n *noopMonitor) AfterQueryEmbedding(_ error)                                       {}
func (n *noopMonitor) AfterVectorSearch(_ []core.VectorMatch, _ time.Duration, _ error)  {}
func (n *noopMonitor) AfterGraphTraversal(_ []core.GraphMatch, _ time.Duration, _ error) {}
func (n *noopMonitor) VectorAndGraphHit(_ *core.Passage)                                 {}
func (n *noopMonitor) VectorHit(_ *core.Passage)                                         {}
func (n *noopMonitor) GraphHit(_ *core.Passage)                                          {}
func (n *noopMonitor) PartitionViolationDropped(_ *core.Passage)                         {}
func (n *noopMonitor) Finish(_ []core.Passage)                                           {}
