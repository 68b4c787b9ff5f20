// Package service holds the task use cases. All index arithmetic is left
// to the ordering engine; this layer validates input, scopes every call to
// the owner and keeps the list cache coherent.
package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
	"taskboard/internal/patch"
	"taskboard/internal/repository"
)

// TaskStore is the non-transactional part of the task repository.
type TaskStore interface {
	List(ctx context.Context, ownerID uuid.UUID, f repository.TaskFilter) ([]model.Task, error)
	FindByID(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error)
	UpdateFields(ctx context.Context, ownerID, taskID uuid.UUID, fields map[string]interface{}) error
}

// ListCache caches List results per owner. Failures are logged and
// otherwise ignored. SetList must drop the value when Invalidate ran for
// the owner after gen was read from Generation.
type ListCache interface {
	Generation(ctx context.Context, ownerID uuid.UUID) (int64, error)
	GetList(ctx context.Context, ownerID uuid.UUID, query string, dest interface{}) (bool, error)
	SetList(ctx context.Context, ownerID uuid.UUID, gen int64, query string, value interface{}) (bool, error)
	Invalidate(ctx context.Context, ownerID uuid.UUID) error
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      model.TaskStatus
	DueDate     *time.Time
}

// UpdateTaskInput is a partial update. Absent keys leave the stored value
// alone; an explicit null clears it where the column allows that.
type UpdateTaskInput struct {
	Title       patch.Field[string]           `json:"title"`
	Description patch.Field[string]           `json:"description"`
	Status      patch.Field[model.TaskStatus] `json:"status"`
	OrderIndex  patch.Field[int]              `json:"orderIndex"`
	DueDate     patch.Field[time.Time]        `json:"dueDate"`
}

// MoveTaskInput targets a column and position. A nil OrderIndex keeps the
// position in the same column and appends in another one.
type MoveTaskInput struct {
	Status     model.TaskStatus `json:"status"`
	OrderIndex *int             `json:"orderIndex"`
}

type ListQuery struct {
	Search  string
	DueDate string // RFC 3339 instant or YYYY-MM-DD
}

type TaskService struct {
	engine *ordering.Engine
	tasks  TaskStore
	cache  ListCache
	logger *zap.Logger
}

// NewTaskService wires the service. cache may be nil.
func NewTaskService(engine *ordering.Engine, tasks TaskStore, cache ListCache, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{engine: engine, tasks: tasks, cache: cache, logger: logger}
}

func (s *TaskService) Create(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if !in.Status.Valid() {
		return nil, invalid("status", "must be one of TODO, IN_PROGRESS, COMPLETED")
	}

	task := &model.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		task.DueDate = &due
	}
	if _, err := s.engine.Insert(ctx, task); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return task, nil
}

func (s *TaskService) List(ctx context.Context, ownerID uuid.UUID, q ListQuery) ([]model.Task, error) {
	filter := repository.TaskFilter{Search: strings.TrimSpace(q.Search)}
	if q.DueDate != "" {
		due, err := ParseDueDate(q.DueDate)
		if err != nil {
			return nil, err
		}
		filter.Due = &due
	}

	key := url.Values{"search": {filter.Search}, "dueDate": {q.DueDate}}.Encode()
	gen, cacheable := s.cachedGeneration(ctx, ownerID)
	if cacheable {
		var cached []model.Task
		hit, err := s.cache.GetList(ctx, ownerID, key, &cached)
		if err != nil {
			s.logger.Warn("task list cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	tasks, err := s.tasks.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	if cacheable {
		if _, err := s.cache.SetList(ctx, ownerID, gen, key, tasks); err != nil {
			s.logger.Warn("task list cache write failed", zap.Error(err))
		}
	}
	return tasks, nil
}

func (s *TaskService) GetOne(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error) {
	return s.tasks.FindByID(ctx, ownerID, taskID)
}

// Update writes the scalar fields directly when neither status nor
// orderIndex is present, and goes through the ordering engine otherwise.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID uuid.UUID, in UpdateTaskInput) (*model.Task, error) {
	fields, err := scalarFields(in)
	if err != nil {
		return nil, err
	}

	if !in.Status.Set && !in.OrderIndex.Set {
		if len(fields) > 0 {
			if err := s.tasks.UpdateFields(ctx, ownerID, taskID, fields); err != nil {
				return nil, err
			}
			s.invalidate(ctx, ownerID)
		}
		return s.tasks.FindByID(ctx, ownerID, taskID)
	}

	target := ordering.Target{Fields: fields}
	if in.Status.Set {
		if in.Status.Null {
			return nil, invalid("status", "must not be null")
		}
		if !in.Status.Value.Valid() {
			return nil, invalid("status", "must be one of TODO, IN_PROGRESS, COMPLETED")
		}
		target.Status = in.Status.Value
	}
	if in.OrderIndex.Set {
		if in.OrderIndex.Null {
			return nil, invalid("orderIndex", "must not be null")
		}
		if in.OrderIndex.Value < 0 {
			return nil, invalid("orderIndex", "must not be negative")
		}
		target.Index = in.OrderIndex.Ptr()
	}
	return s.move(ctx, ownerID, taskID, target)
}

// Move repositions a task without touching its other fields.
func (s *TaskService) Move(ctx context.Context, ownerID, taskID uuid.UUID, in MoveTaskInput) (*model.Task, error) {
	if !in.Status.Valid() {
		return nil, invalid("status", "must be one of TODO, IN_PROGRESS, COMPLETED")
	}
	if in.OrderIndex != nil && *in.OrderIndex < 0 {
		return nil, invalid("orderIndex", "must not be negative")
	}
	return s.move(ctx, ownerID, taskID, ordering.Target{Status: in.Status, Index: in.OrderIndex})
}

func (s *TaskService) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	if err := s.engine.Delete(ctx, ownerID, taskID); err != nil {
		return err
	}
	s.invalidate(ctx, ownerID)
	return nil
}

func (s *TaskService) move(ctx context.Context, ownerID, taskID uuid.UUID, target ordering.Target) (*model.Task, error) {
	task, err := s.engine.Move(ctx, ownerID, taskID, target)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return task, nil
}

// cachedGeneration reads the owner's cache generation. It must run before
// the database read whose result may be cached.
func (s *TaskService) cachedGeneration(ctx context.Context, ownerID uuid.UUID) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx, ownerID)
	if err != nil {
		s.logger.Warn("task list cache generation read failed", zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (s *TaskService) invalidate(ctx context.Context, ownerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		s.logger.Error("task list cache invalidation failed",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err),
		)
	}
}

// scalarFields turns the present scalar keys into column updates.
func scalarFields(in UpdateTaskInput) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if in.Title.Set {
		if in.Title.Null {
			return nil, invalid("title", "must not be null")
		}
		title := strings.TrimSpace(in.Title.Value)
		if title == "" {
			return nil, invalid("title", "must not be empty")
		}
		fields["title"] = title
	}
	if in.Description.Set {
		// The column is NOT NULL, null clears it to empty text.
		fields["description"] = in.Description.Value
	}
	if in.DueDate.Set {
		if in.DueDate.Null {
			fields["due_date"] = nil
		} else {
			fields["due_date"] = in.DueDate.Value.UTC()
		}
	}
	return fields, nil
}

// ParseDueDate reads the dueDate list filter, which matches one exact
// instant. A plain date stands for midnight UTC of that day.
func ParseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, invalid("dueDate", "must be an RFC 3339 date-time or YYYY-MM-DD")
	}
	return day, nil
}
