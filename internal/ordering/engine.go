// Package ordering keeps the orderIndex of every (owner, status) column a
// dense 0..n-1 sequence across inserts, moves and deletes.
package ordering

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/model"
)

// stagingIndex parks the moved row outside the valid range while the rest
// of the column is shifted around it.
const stagingIndex = -1

// Target describes where a task should end up.
type Target struct {
	// Status is the destination column. Empty keeps the current one.
	Status model.TaskStatus
	// Index is the destination position. Nil keeps the current position
	// within the same column, or appends when the column changes.
	Index *int
	// Fields are scalar column updates written in the same transaction.
	Fields map[string]interface{}
}

type Engine struct {
	tx       Transactor
	retry    RetryPolicy
	logger   *zap.Logger
	recorder Recorder
}

type Option func(*Engine)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func NewEngine(tx Transactor, opts ...Option) *Engine {
	e := &Engine{
		tx:     tx,
		retry:  DefaultRetryPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Insert appends task to the end of its column, persists it and returns the
// assigned index.
func (e *Engine) Insert(ctx context.Context, task *model.Task) (int, error) {
	if !task.Status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, task.Status)
	}
	p := model.Partition{OwnerID: task.OwnerID, Status: task.Status}

	err := e.run(ctx, "insert", func(s Store) error {
		if err := s.LockPartitions(ctx, p); err != nil {
			return err
		}
		max, found, err := s.MaxOrderIndex(ctx, p)
		if err != nil {
			return err
		}
		task.OrderIndex = 0
		if found {
			task.OrderIndex = max + 1
		}
		return s.CreateTask(ctx, task)
	})
	if err != nil {
		return 0, err
	}
	return task.OrderIndex, nil
}

// Move repositions a task within its column or into another one and
// returns the task as stored afterwards.
func (e *Engine) Move(ctx context.Context, ownerID, taskID uuid.UUID, target Target) (*model.Task, error) {
	if target.Status != "" && !target.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target.Status)
	}
	if target.Index != nil && *target.Index < 0 {
		return nil, fmt.Errorf("%w: index %d is negative", ErrInvalidPosition, *target.Index)
	}

	var moved *model.Task
	err := e.run(ctx, "move", func(s Store) error {
		task, err := lockTask(ctx, s, ownerID, taskID, target.Status)
		if err != nil {
			return err
		}
		moved, err = reposition(ctx, s, task, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Delete removes a task and closes the gap it leaves in its column.
func (e *Engine) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	return e.run(ctx, "delete", func(s Store) error {
		task, err := lockTask(ctx, s, ownerID, taskID, "")
		if err != nil {
			return err
		}
		if err := s.DeleteTask(ctx, ownerID, taskID); err != nil {
			return err
		}
		return shift(ctx, s, partitionOf(task), From(task.OrderIndex+1), -1)
	})
}

// Partition returns one column of the owner's board in index order.
func (e *Engine) Partition(ctx context.Context, ownerID uuid.UUID, status model.TaskStatus) ([]model.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var tasks []model.Task
	err := e.run(ctx, "read", func(s Store) error {
		var err error
		tasks, err = s.FindPartition(ctx, model.Partition{OwnerID: ownerID, Status: status})
		return err
	})
	return tasks, err
}

// lockTask locks the task's current column and, if given, the destination
// column, then returns the task as seen under those locks.
func lockTask(ctx context.Context, s Store, ownerID, taskID uuid.UUID, dst model.TaskStatus) (*model.Task, error) {
	seen, err := s.FindByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	partitions := []model.Partition{partitionOf(seen)}
	if dst != "" && dst != seen.Status {
		partitions = append(partitions, model.Partition{OwnerID: ownerID, Status: dst})
	}
	if err := s.LockPartitions(ctx, partitions...); err != nil {
		return nil, err
	}

	task, err := s.FindByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != seen.Status {
		return nil, fmt.Errorf("%w: task %s changed column while locking", ErrConflict, taskID)
	}
	return task, nil
}

func reposition(ctx context.Context, s Store, task *model.Task, target Target) (*model.Task, error) {
	src := partitionOf(task)
	dst := src
	if target.Status != "" {
		dst.Status = target.Status
	}
	oldIndex := task.OrderIndex

	if dst == src {
		column, err := s.FindPartition(ctx, src)
		if err != nil {
			return nil, err
		}
		newIndex := oldIndex
		if target.Index != nil {
			newIndex = *target.Index
		}
		if newIndex > len(column)-1 {
			return nil, fmt.Errorf("%w: index %d outside [0, %d]", ErrInvalidPosition, newIndex, len(column)-1)
		}
		if newIndex == oldIndex {
			if len(target.Fields) == 0 {
				return task, nil
			}
			return applyFields(ctx, s, task, target.Fields)
		}

		if err := s.PlaceTask(ctx, task.OwnerID, task.ID, src.Status, stagingIndex); err != nil {
			return nil, err
		}
		if newIndex > oldIndex {
			err = shift(ctx, s, src, Between(oldIndex+1, newIndex), -1)
		} else {
			err = shift(ctx, s, src, Between(newIndex, oldIndex-1), +1)
		}
		if err != nil {
			return nil, err
		}
		if err := s.PlaceTask(ctx, task.OwnerID, task.ID, src.Status, newIndex); err != nil {
			return nil, err
		}
		return applyFields(ctx, s, task, target.Fields)
	}

	column, err := s.FindPartition(ctx, dst)
	if err != nil {
		return nil, err
	}
	newIndex := len(column)
	if target.Index != nil {
		newIndex = *target.Index
	}
	if newIndex > len(column) {
		return nil, fmt.Errorf("%w: index %d outside [0, %d]", ErrInvalidPosition, newIndex, len(column))
	}

	if err := s.PlaceTask(ctx, task.OwnerID, task.ID, src.Status, stagingIndex); err != nil {
		return nil, err
	}
	if err := shift(ctx, s, src, From(oldIndex+1), -1); err != nil {
		return nil, err
	}
	if err := shift(ctx, s, dst, From(newIndex), +1); err != nil {
		return nil, err
	}
	if err := s.PlaceTask(ctx, task.OwnerID, task.ID, dst.Status, newIndex); err != nil {
		return nil, err
	}
	return applyFields(ctx, s, task, target.Fields)
}

func applyFields(ctx context.Context, s Store, task *model.Task, fields map[string]interface{}) (*model.Task, error) {
	if len(fields) > 0 {
		if err := s.UpdateFields(ctx, task.OwnerID, task.ID, fields); err != nil {
			return nil, err
		}
	}
	return s.FindByID(ctx, task.OwnerID, task.ID)
}

// shift adds delta to every index of p inside r. It runs as two remaps:
// the range is first mirrored into the negative indexes below the staging
// slot, then mirrored back with the offset applied. Neither statement can
// produce a duplicate regardless of the order rows are visited in, as long
// as the destination slots outside r are free.
func shift(ctx context.Context, s Store, p model.Partition, r Range, delta int) error {
	if r.Empty() {
		return nil
	}
	if err := s.RemapRange(ctx, p, r, Affine{Scale: -1, Offset: -delta - 2}); err != nil {
		return err
	}
	return s.RemapRange(ctx, p, Between(math.MinInt32, stagingIndex-1), Affine{Scale: -1, Offset: -2})
}

func partitionOf(t *model.Task) model.Partition {
	return model.Partition{OwnerID: t.OwnerID, Status: t.Status}
}
