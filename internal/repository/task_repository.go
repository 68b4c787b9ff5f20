package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
)

// statusOrder sorts board columns the way they are displayed.
var statusOrder = fmt.Sprintf("CASE status WHEN '%s' THEN 0 WHEN '%s' THEN 1 ELSE 2 END",
	model.StatusTodo, model.StatusInProgress)

type TaskRepository struct {
	db *gorm.DB
}

var (
	_ ordering.Store      = (*TaskRepository)(nil)
	_ ordering.Transactor = (*TaskRepository)(nil)
)

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter narrows List. Due matches one exact instant.
type TaskFilter struct {
	Search string
	Due    *time.Time
}

// RunInTransaction hands fn a repository bound to a single transaction at
// the database default isolation (READ COMMITTED on PostgreSQL). gorm
// commits when fn returns nil and rolls back on error or panic.
func (r *TaskRepository) RunInTransaction(ctx context.Context, fn func(ordering.Store) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
	return translateError(err)
}

// LockPartitions takes a transaction-scoped advisory lock per column, in a
// fixed order so two movers never wait on each other crosswise. SQLite
// already serializes writers and needs nothing here.
func (r *TaskRepository) LockPartitions(ctx context.Context, partitions ...model.Partition) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	keys := make([]string, 0, len(partitions))
	seen := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		if k := p.Key(); !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", k).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// MaxOrderIndex returns the highest index in the column, found is false for
// an empty column.
func (r *TaskRepository) MaxOrderIndex(ctx context.Context, p model.Partition) (int, bool, error) {
	var result struct {
		Max sql.NullInt64
	}
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("MAX(order_index) AS max").
		Where("owner_id = ? AND status = ?", p.OwnerID, p.Status).
		Scan(&result).Error
	if err != nil {
		return 0, false, translateError(err)
	}
	return int(result.Max.Int64), result.Max.Valid, nil
}

// FindByID retrieves a task by its ID, scoped to its owner
func (r *TaskRepository) FindByID(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ? AND owner_id = ?", taskID, ownerID).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &task, nil
}

// FindPartition retrieves one column ordered by index
func (r *TaskRepository) FindPartition(ctx context.Context, p model.Partition) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", p.OwnerID, p.Status).
		Order("order_index").
		Find(&tasks).Error
	if err != nil {
		return nil, translateError(err)
	}
	return tasks, nil
}

// List retrieves the owner's tasks ordered by column, then index
func (r *TaskRepository) List(ctx context.Context, ownerID uuid.UUID, f TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if f.Search != "" {
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}
	if f.Due != nil {
		q = q.Where("due_date = ?", f.Due.UTC())
	}

	var tasks []model.Task
	if err := q.Order(statusOrder).Order("order_index").Find(&tasks).Error; err != nil {
		return nil, translateError(err)
	}
	return tasks, nil
}

// Partitions lists every non-empty column in the table
func (r *TaskRepository) Partitions(ctx context.Context) ([]model.Partition, error) {
	var partitions []model.Partition
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Distinct("owner_id", "status").
		Scan(&partitions).Error
	if err != nil {
		return nil, translateError(err)
	}
	return partitions, nil
}

// CreateTask adds a new task to the database
func (r *TaskRepository) CreateTask(ctx context.Context, task *model.Task) error {
	return translateError(r.db.WithContext(ctx).Create(task).Error)
}

// UpdateFields writes the given columns of one task. orderIndex and status
// are never part of fields.
func (r *TaskRepository) UpdateFields(ctx context.Context, ownerID, taskID uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND owner_id = ?", taskID, ownerID).
		Updates(fields)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// PlaceTask sets the column and index of one task
func (r *TaskRepository) PlaceTask(ctx context.Context, ownerID, taskID uuid.UUID, status model.TaskStatus, index int) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND owner_id = ?", taskID, ownerID).
		Updates(map[string]interface{}{"status": status, "order_index": index})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// RemapRange rewrites order_index = scale*order_index + offset for every
// row of the column inside r, in one statement.
func (r *TaskRepository) RemapRange(ctx context.Context, p model.Partition, rng ordering.Range, m ordering.Affine) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("owner_id = ? AND status = ? AND order_index BETWEEN ? AND ?", p.OwnerID, p.Status, rng.From, rng.To).
		UpdateColumn("order_index", gorm.Expr("order_index * ? + ?", m.Scale, m.Offset)).Error
	return translateError(err)
}

// DeleteTask removes a task by its ID, scoped to its owner
func (r *TaskRepository) DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ? AND owner_id = ?", taskID, ownerID)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
