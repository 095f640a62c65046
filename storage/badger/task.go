package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// TaskRepository implements storage.TaskRepository for BadgerDB.
// Task rows are retained forever; deleting a document only tombstones them.
type TaskRepository struct {
	backend *Backend
}

var _ storage.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(backend *Backend) (*TaskRepository, error) {
	return &TaskRepository{
		backend: backend,
	}, nil
}

// Close releases resources. TaskRepository has no resources to release.
func (r *TaskRepository) Close() error {
	return nil
}

// AddTask persists a new task row and its index entries.
func (r *TaskRepository) AddTask(ctx context.Context, task *core.ProcessingTask) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeTaskKey(task.Id)
		if err := tx.Set(key, storage.MarshalTask(task)); err != nil {
			return err
		}

		created := task.CreatedAt.UnixMicro()
		stateKey := makeTaskStateKey(task.State, created, task.Id)
		if err := tx.Set(stateKey, []byte(task.Id)); err != nil {
			return err
		}

		docKey := makeTaskDocKey(task.DocId, created, task.Id)
		if err := tx.Set(docKey, []byte(task.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// UpdateTask overwrites an existing task row, moving its state index entry
// if the state changed.
func (r *TaskRepository) UpdateTask(ctx context.Context, task *core.ProcessingTask) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeTaskKey(task.Id)
		old, err := readTask(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		if err := tx.Set(key, storage.MarshalTask(task)); err != nil {
			return err
		}

		if old.State != task.State {
			created := old.CreatedAt.UnixMicro()
			if err := tx.Delete(makeTaskStateKey(old.State, created, task.Id)); err != nil {
				return err
			}
			newKey := makeTaskStateKey(task.State, task.CreatedAt.UnixMicro(), task.Id)
			if err := tx.Set(newKey, []byte(task.Id)); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)
}

// GetTask retrieves a task by its ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*core.ProcessingTask, error) {
	var result *core.ProcessingTask
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTask(tx, makeTaskKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListByState returns tasks in the given state, newest first.
func (r *TaskRepository) ListByState(ctx context.Context, state core.TaskState) ([]*core.ProcessingTask, error) {
	var results []*core.ProcessingTask
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialTaskStateKey(state)

		// Reverse iterator so newest creation times come first. Seek to the
		// last possible key within the state segment.
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := append(slices.Clone(prefix), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !hasPrefix(key, prefix) {
				break
			}

			var taskID string
			if err := iter.Item().Value(func(val []byte) error {
				taskID = string(val)
				return nil
			}); err != nil {
				return err
			}

			task, err := readTask(tx, makeTaskKey(taskID))
			if err != nil {
				return err
			}
			if task != nil {
				results = append(results, task)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListByDocument returns all attempts for a document, oldest first.
func (r *TaskRepository) ListByDocument(ctx context.Context, docID core.ID) ([]*core.ProcessingTask, error) {
	var results []*core.ProcessingTask
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialTaskDocKey(docID)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			if !hasPrefix(iter.Item().Key(), prefix) {
				break
			}

			var taskID string
			if err := iter.Item().Value(func(val []byte) error {
				taskID = string(val)
				return nil
			}); err != nil {
				return err
			}

			task, err := readTask(tx, makeTaskKey(taskID))
			if err != nil {
				return err
			}
			if task != nil {
				results = append(results, task)
			}
		}
		return nil
	}, false)
	return results, err
}

// CountsByState returns the number of tasks per state.
func (r *TaskRepository) CountsByState(ctx context.Context) (map[core.TaskState]int, error) {
	counts := make(map[core.TaskState]int)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, state := range core.TaskStates {
			prefix := makePartialTaskStateKey(state)
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)

			for iter.Seek(prefix); iter.Valid(); iter.Next() {
				if !hasPrefix(iter.Item().Key(), prefix) {
					break
				}
				counts[state]++
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// TombstoneDocument marks every task of a document as referring to a
// deleted document. The rows themselves are retained for auditing.
func (r *TaskRepository) TombstoneDocument(ctx context.Context, docID core.ID) error {
	tasks, err := r.ListByDocument(ctx, docID)
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, task := range tasks {
			if task.DocDeleted {
				continue
			}
			task.DocDeleted = true
			if err := tx.Set(makeTaskKey(task.Id), storage.MarshalTask(task)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readTask reads a task from the transaction.
func readTask(tx *badger.Txn, key []byte) (*core.ProcessingTask, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var task *core.ProcessingTask
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		task, unmarshalErr = storage.UnmarshalTask(val)
		return unmarshalErr
	})
	return task, err
}
