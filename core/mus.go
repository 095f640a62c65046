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


package core

import (
	"time"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every persisted record type. Written by hand against
// the mus-go primitives; field order is part of the storage format, so new
// fields go at the end.
var (
	IDMUS             = idMUS{}
	DocumentMUS       = documentMUS{}
	ChunkMUS          = chunkMUS{}
	EmbeddingMUS      = embeddingMUS{}
	ChunkRefMUS       = chunkRefMUS{}
	EntityMUS         = entityMUS{}
	EdgeMUS           = edgeMUS{}
	ProcessingTaskMUS = processingTaskMUS{}
)

// Timestamps are stored as Unix microseconds, with a presence flag so the
// zero time round-trips.
func marshalTime(t time.Time, bs []byte) (n int) {
	present := !t.IsZero()
	n = ord.Bool.Marshal(present, bs)
	if present {
		n += varint.Int64.Marshal(t.UnixMicro(), bs[n:])
	}
	return
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return
	}
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	t = time.UnixMicro(micros).UTC()
	return
}

func sizeTime(t time.Time) (size int) {
	size = ord.Bool.Size(!t.IsZero())
	if !t.IsZero() {
		size += varint.Int64.Size(t.UnixMicro())
	}
	return
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

func marshalRefs(refs []ChunkRef, bs []byte) (n int) {
	n = varint.Int.Marshal(len(refs), bs)
	for _, ref := range refs {
		n += ChunkRefMUS.Marshal(ref, bs[n:])
	}
	return
}

func unmarshalRefs(bs []byte) (refs []ChunkRef, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return
	}
	refs = make([]ChunkRef, length)
	var n1 int
	for i := 0; i < length; i++ {
		refs[i], n1, err = ChunkRefMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeRefs(refs []ChunkRef) (size int) {
	size = varint.Int.Size(len(refs))
	for _, ref := range refs {
		size += ChunkRefMUS.Size(ref)
	}
	return
}

type idMUS struct{}

var _ mus.Serializer[ID] = idMUS{}

func (idMUS) Marshal(id ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (id ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type documentMUS struct{}

var _ mus.Serializer[Document] = documentMUS{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(string(d.Partition), bs[n:])
	n += ord.String.Marshal(d.Filename, bs[n:])
	n += varint.Int64.Marshal(d.ByteSize, bs[n:])
	n += ord.String.Marshal(d.MimeType, bs[n:])
	n += varint.Int.Marshal(int(d.Status), bs[n:])
	n += ord.String.Marshal(d.Error, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	var part string
	if part, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.Partition = Partition(part)
	n += n1
	if d.Filename, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.ByteSize, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.MimeType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	var status int
	if status, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.Status = DocumentStatus(status)
	n += n1
	if d.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return
}

func (documentMUS) Size(d Document) (size int) {
	size = IDMUS.Size(d.Id)
	size += ord.String.Size(string(d.Partition))
	size += ord.String.Size(d.Filename)
	size += varint.Int64.Size(d.ByteSize)
	size += ord.String.Size(d.MimeType)
	size += varint.Int.Size(int(d.Status))
	size += ord.String.Size(d.Error)
	size += sizeTime(d.CreatedAt)
	size += sizeTime(d.UpdatedAt)
	return
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type chunkMUS struct{}

var _ mus.Serializer[Chunk] = chunkMUS{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(c.DocId, bs)
	n += varint.Int.Marshal(c.Seq, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(c.Start, bs[n:])
	n += varint.Int.Marshal(c.End, bs[n:])
	n += varint.Int.Marshal(c.Page, bs[n:])
	return
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.DocId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if c.Seq, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Start, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.End, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Page, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	return
}

func (chunkMUS) Size(c Chunk) (size int) {
	size = IDMUS.Size(c.DocId)
	size += varint.Int.Size(c.Seq)
	size += ord.String.Size(c.Text)
	size += varint.Int.Size(c.Start)
	size += varint.Int.Size(c.End)
	size += varint.Int.Size(c.Page)
	return
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type embeddingMUS struct{}

var _ mus.Serializer[Embedding] = embeddingMUS{}

func (embeddingMUS) Marshal(e Embedding, bs []byte) (n int) {
	n = IDMUS.Marshal(e.DocId, bs)
	n += varint.Int.Marshal(e.Seq, bs[n:])
	n += ord.String.Marshal(string(e.Partition), bs[n:])
	n += marshalVector(e.Vector, bs[n:])
	return
}

func (embeddingMUS) Unmarshal(bs []byte) (e Embedding, n int, err error) {
	var n1 int
	if e.DocId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if e.Seq, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	var part string
	if part, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Partition = Partition(part)
	n += n1
	if e.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	return
}

func (embeddingMUS) Size(e Embedding) (size int) {
	size = IDMUS.Size(e.DocId)
	size += varint.Int.Size(e.Seq)
	size += ord.String.Size(string(e.Partition))
	size += sizeVector(e.Vector)
	return
}

func (s embeddingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type chunkRefMUS struct{}

var _ mus.Serializer[ChunkRef] = chunkRefMUS{}

func (chunkRefMUS) Marshal(r ChunkRef, bs []byte) (n int) {
	n = IDMUS.Marshal(r.DocId, bs)
	n += varint.Int.Marshal(r.Seq, bs[n:])
	return
}

func (chunkRefMUS) Unmarshal(bs []byte) (r ChunkRef, n int, err error) {
	var n1 int
	if r.DocId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if r.Seq, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	return
}

func (chunkRefMUS) Size(r ChunkRef) int {
	return IDMUS.Size(r.DocId) + varint.Int.Size(r.Seq)
}

func (s chunkRefMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type entityMUS struct{}

var _ mus.Serializer[Entity] = entityMUS{}

func (entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n = IDMUS.Marshal(e.Id, bs)
	n += ord.String.Marshal(string(e.Partition), bs[n:])
	n += ord.String.Marshal(e.Name, bs[n:])
	n += ord.String.Marshal(string(e.Type), bs[n:])
	n += marshalRefs(e.Provenance, bs[n:])
	n += marshalTime(e.InsertedAt, bs[n:])
	n += marshalTime(e.UpdatedAt, bs[n:])
	return
}

func (entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var n1 int
	if e.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	var str string
	if str, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Partition = Partition(str)
	n += n1
	if e.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if str, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Type = EntityType(str)
	n += n1
	if e.Provenance, n1, err = unmarshalRefs(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.InsertedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	return
}

func (entityMUS) Size(e Entity) (size int) {
	size = IDMUS.Size(e.Id)
	size += ord.String.Size(string(e.Partition))
	size += ord.String.Size(e.Name)
	size += ord.String.Size(string(e.Type))
	size += sizeRefs(e.Provenance)
	size += sizeTime(e.InsertedAt)
	size += sizeTime(e.UpdatedAt)
	return
}

func (s entityMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type edgeMUS struct{}

var _ mus.Serializer[Edge] = edgeMUS{}

func (edgeMUS) Marshal(e Edge, bs []byte) (n int) {
	n = IDMUS.Marshal(e.Id, bs)
	n += IDMUS.Marshal(e.SourceId, bs[n:])
	n += IDMUS.Marshal(e.TargetId, bs[n:])
	n += ord.String.Marshal(string(e.Type), bs[n:])
	n += marshalRefs(e.Provenance, bs[n:])
	return
}

func (edgeMUS) Unmarshal(bs []byte) (e Edge, n int, err error) {
	var n1 int
	if e.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if e.SourceId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.TargetId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	var str string
	if str, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Type = EdgeType(str)
	n += n1
	if e.Provenance, n1, err = unmarshalRefs(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	return
}

func (edgeMUS) Size(e Edge) (size int) {
	size = IDMUS.Size(e.Id)
	size += IDMUS.Size(e.SourceId)
	size += IDMUS.Size(e.TargetId)
	size += ord.String.Size(string(e.Type))
	size += sizeRefs(e.Provenance)
	return
}

func (s edgeMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type processingTaskMUS struct{}

var _ mus.Serializer[ProcessingTask] = processingTaskMUS{}

func (processingTaskMUS) Marshal(t ProcessingTask, bs []byte) (n int) {
	n = ord.String.Marshal(t.Id, bs)
	n += IDMUS.Marshal(t.DocId, bs[n:])
	n += ord.String.Marshal(string(t.Partition), bs[n:])
	n += varint.Int.Marshal(int(t.State), bs[n:])
	n += varint.Int.Marshal(int(t.Stage), bs[n:])
	n += varint.Int.Marshal(t.Retries, bs[n:])
	n += ord.String.Marshal(t.LastError, bs[n:])
	n += ord.Bool.Marshal(t.DocDeleted, bs[n:])
	n += marshalTime(t.CreatedAt, bs[n:])
	n += marshalTime(t.StartedAt, bs[n:])
	n += marshalTime(t.FinishedAt, bs[n:])
	return
}

func (processingTaskMUS) Unmarshal(bs []byte) (t ProcessingTask, n int, err error) {
	var n1 int
	if t.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if t.DocId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	var str string
	if str, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	t.Partition = Partition(str)
	n += n1
	var v int
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	t.State = TaskState(v)
	n += n1
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	t.Stage = DocumentStatus(v)
	n += n1
	if t.Retries, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.LastError, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.DocDeleted, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.StartedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	if t.FinishedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return t, n + n1, err
	}
	n += n1
	return
}

func (processingTaskMUS) Size(t ProcessingTask) (size int) {
	size = ord.String.Size(t.Id)
	size += IDMUS.Size(t.DocId)
	size += ord.String.Size(string(t.Partition))
	size += varint.Int.Size(int(t.State))
	size += varint.Int.Size(int(t.Stage))
	size += varint.Int.Size(t.Retries)
	size += ord.String.Size(t.LastError)
	size += ord.Bool.Size(t.DocDeleted)
	size += sizeTime(t.CreatedAt)
	size += sizeTime(t.StartedAt)
	size += sizeTime(t.FinishedAt)
	return
}

func (s processingTaskMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
