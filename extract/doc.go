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


// Package extract converts uploaded documents into plain text and splits
// the text into overlapping chunks for embedding.
//
// Extraction dispatches on MIME type (PDF, DOCX, plain text, markdown) and
// preserves page structure where the format has one. Chunking operates on
// rune offsets so multi-byte text never splits mid-character, and chunks
// never span a page boundary.
package extract
