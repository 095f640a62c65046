package badger

import "github.com/poiesic/docket/storage"

// Stores bundles the four repositories sharing one backend.
type Stores struct {
	Documents storage.DocumentRepository
	Tasks     storage.TaskRepository
	Vectors   storage.VectorIndex
	Graph     storage.GraphRepository

	backend *Backend
}

// NewStores opens a BadgerDB database at path and wires all repositories
// onto it.
func NewStores(path string) (*Stores, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStores(backend)
}

func newStores(backend *Backend) (*Stores, error) {
	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	tasks, err := NewTaskRepository(backend)
	if err != nil {
		docs.Close()
		backend.Close()
		return nil, err
	}

	vectors, err := NewVectorIndex(backend)
	if err != nil {
		tasks.Close()
		docs.Close()
		backend.Close()
		return nil, err
	}

	graph, err := NewGraphRepository(backend)
	if err != nil {
		vectors.Close()
		tasks.Close()
		docs.Close()
		backend.Close()
		return nil, err
	}

	return &Stores{
		Documents: docs,
		Tasks:     tasks,
		Vectors:   vectors,
		Graph:     graph,
		backend:   backend,
	}, nil
}

// Close releases all repositories and the underlying database.
func (s *Stores) Close() error {
	s.Documents.Close()
	s.Tasks.Close()
	s.Vectors.Close()
	s.Graph.Close()
	return s.backend.Close()
}
