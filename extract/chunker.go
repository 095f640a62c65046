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


package extract

import (
	"github.com/poiesic/docket/core"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default number of overlapping runes between
// adjacent chunks of the same page.
const DefaultChunkOverlap = 80

// Chunker splits extracted text into fixed-size overlapping chunks.
// Chunks never span page boundaries, and all offsets are rune positions
// within the document's full text (Result.Text).
type Chunker struct {
	chunkSize int
	overlap   int
}

// ChunkerOption configures the chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Chunk splits an extraction result into chunks for one document.
// Sequence numbers are contiguous from zero across all pages.
func (c *Chunker) Chunk(docID core.ID, result *Result) []core.Chunk {
	var chunks []core.Chunk
	seq := 0
	pageStart := 0

	for i, page := range result.Pages {
		if i > 0 {
			// Account for the "\n" joining pages in Result.Text
			pageStart++
		}

		runes := []rune(page.Text)
		step := c.chunkSize - c.overlap

		for start := 0; start < len(runes); start += step {
			end := start + c.chunkSize
			if end > len(runes) {
				end = len(runes)
			}

			chunks = append(chunks, core.Chunk{
				DocId: docID,
				Seq:   seq,
				Text:  string(runes[start:end]),
				Start: pageStart + start,
				End:   pageStart + end,
				Page:  page.Number,
			})
			seq++

			if end == len(runes) {
				break
			}
		}

		pageStart += len(runes)
	}

	return chunks
}
