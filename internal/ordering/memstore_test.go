package ordering_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
)

// memDB is an in-memory task table. Each transaction works on a copy that
// is swapped in on success, and the (owner, status, index) uniqueness is
// checked after every single row write, visiting rows in map order.
type memDB struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]model.Task
	failures []error
	writes   int
	txCount  int
}

func newMemDB() *memDB {
	return &memDB{rows: map[uuid.UUID]model.Task{}}
}

func (db *memDB) failNext(errs ...error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures = append(db.failures, errs...)
}

func (db *memDB) RunInTransaction(ctx context.Context, fn func(ordering.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.txCount++

	if len(db.failures) > 0 {
		err := db.failures[0]
		db.failures = db.failures[1:]
		return err
	}

	tx := &memTx{rows: make(map[uuid.UUID]model.Task, len(db.rows))}
	for id, row := range db.rows {
		tx.rows[id] = row
	}
	if err := fn(tx); err != nil {
		return err
	}
	db.rows = tx.rows
	db.writes += tx.writes
	return nil
}

func (db *memDB) column(owner uuid.UUID, status model.TaskStatus) []model.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.Task
	for _, row := range db.rows {
		if row.OwnerID == owner && row.Status == status {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

func (db *memDB) get(id uuid.UUID) model.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rows[id]
}

type memTx struct {
	rows   map[uuid.UUID]model.Task
	writes int
}

func (tx *memTx) put(row model.Task) error {
	for id, other := range tx.rows {
		if id != row.ID && other.OwnerID == row.OwnerID && other.Status == row.Status && other.OrderIndex == row.OrderIndex {
			return fmt.Errorf("%w: duplicate index %d in %s", ordering.ErrConflict, row.OrderIndex, row.Status)
		}
	}
	tx.rows[row.ID] = row
	tx.writes++
	return nil
}

func (tx *memTx) LockPartitions(ctx context.Context, partitions ...model.Partition) error {
	return nil
}

func (tx *memTx) MaxOrderIndex(ctx context.Context, p model.Partition) (int, bool, error) {
	max, found := 0, false
	for _, row := range tx.rows {
		if row.OwnerID == p.OwnerID && row.Status == p.Status && (!found || row.OrderIndex > max) {
			max, found = row.OrderIndex, true
		}
	}
	return max, found, nil
}

func (tx *memTx) FindByID(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error) {
	row, ok := tx.rows[taskID]
	if !ok || row.OwnerID != ownerID {
		return nil, ordering.ErrNotFound
	}
	return &row, nil
}

func (tx *memTx) FindPartition(ctx context.Context, p model.Partition) ([]model.Task, error) {
	var out []model.Task
	for _, row := range tx.rows {
		if row.OwnerID == p.OwnerID && row.Status == p.Status {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (tx *memTx) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	return tx.put(*task)
}

func (tx *memTx) UpdateFields(ctx context.Context, ownerID, taskID uuid.UUID, fields map[string]interface{}) error {
	row, ok := tx.rows[taskID]
	if !ok || row.OwnerID != ownerID {
		return ordering.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			row.Title = v.(string)
		case "description":
			row.Description = v.(string)
		default:
			return fmt.Errorf("unexpected field %q", k)
		}
	}
	return tx.put(row)
}

func (tx *memTx) PlaceTask(ctx context.Context, ownerID, taskID uuid.UUID, status model.TaskStatus, index int) error {
	row, ok := tx.rows[taskID]
	if !ok || row.OwnerID != ownerID {
		return ordering.ErrNotFound
	}
	row.Status = status
	row.OrderIndex = index
	return tx.put(row)
}

func (tx *memTx) RemapRange(ctx context.Context, p model.Partition, r ordering.Range, m ordering.Affine) error {
	var ids []uuid.UUID
	for id, row := range tx.rows {
		if row.OwnerID == p.OwnerID && row.Status == p.Status && row.OrderIndex >= r.From && row.OrderIndex <= r.To {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		row := tx.rows[id]
		row.OrderIndex = m.Scale*row.OrderIndex + m.Offset
		if err := tx.put(row); err != nil {
			return err
		}
	}
	return nil
}

func (tx *memTx) DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	row, ok := tx.rows[taskID]
	if !ok || row.OwnerID != ownerID {
		return ordering.ErrNotFound
	}
	delete(tx.rows, taskID)
	tx.writes++
	return nil
}

type recordedTx struct {
	op       string
	attempts int
	err      error
}

type fakeRecorder struct {
	calls []recordedTx
}

func (r *fakeRecorder) ObserveTransaction(op string, attempts int, err error) {
	r.calls = append(r.calls, recordedTx{op: op, attempts: attempts, err: err})
}
