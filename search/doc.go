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


// Package search provides hybrid retrieval over indexed documents.
//
// The Engine type fans a question out to two concurrent branches:
//   - Vector similarity search over chunk embeddings
//   - Graph traversal seeded by question keywords over typed entity edges
//
// Branch scores are min-max normalized, weighted, and merged into one
// deduplicated passage list. Every returned passage carries its document and
// chunk provenance, and partition isolation is re-checked on each passage
// before it is returned.
package search
