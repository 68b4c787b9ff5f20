package ordering

import (
	"context"
	"math"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Range is an inclusive interval of order indexes.
type Range struct {
	From int
	To   int
}

// Between returns the closed range [from, to].
func Between(from, to int) Range {
	return Range{From: from, To: to}
}

// From returns the range of every index >= from.
func From(from int) Range {
	return Range{From: from, To: math.MaxInt32}
}

func (r Range) Empty() bool {
	return r.From > r.To
}

// Affine maps an index i to Scale*i + Offset.
type Affine struct {
	Scale  int
	Offset int
}

// Store is the view of the task table the engine works against. Every
// method is scoped by owner and, when obtained from a Transactor, runs
// inside the caller's transaction.
type Store interface {
	// LockPartitions serializes writers of the given partitions until the
	// surrounding transaction ends.
	LockPartitions(ctx context.Context, partitions ...model.Partition) error
	MaxOrderIndex(ctx context.Context, p model.Partition) (max int, found bool, err error)
	FindByID(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error)
	// FindPartition returns the partition ordered by index.
	FindPartition(ctx context.Context, p model.Partition) ([]model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateFields(ctx context.Context, ownerID, taskID uuid.UUID, fields map[string]interface{}) error
	PlaceTask(ctx context.Context, ownerID, taskID uuid.UUID, status model.TaskStatus, index int) error
	// RemapRange rewrites the index of every row of p whose index lies in r.
	RemapRange(ctx context.Context, p model.Partition, r Range, m Affine) error
	DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error
}

// Transactor runs work inside one atomic scope: fn's writes are committed
// when it returns nil and rolled back on any error or panic.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(Store) error) error
}

// Recorder receives the outcome of every engine transaction.
type Recorder interface {
	ObserveTransaction(op string, attempts int, err error)
}
