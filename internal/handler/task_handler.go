package handler

import (
	"context"
	"net/http"
	"time"

	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskService is what the task endpoints need from the service layer.
type TaskService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in service.CreateTaskInput) (*model.Task, error)
	List(ctx context.Context, ownerID uuid.UUID, q service.ListQuery) ([]model.Task, error)
	GetOne(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error)
	Update(ctx context.Context, ownerID, taskID uuid.UUID, in service.UpdateTaskInput) (*model.Task, error)
	Move(ctx context.Context, ownerID, taskID uuid.UUID, in service.MoveTaskInput) (*model.Task, error)
	Delete(ctx context.Context, ownerID, taskID uuid.UUID) error
}

type TaskHandler struct {
	tasks  TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks TaskService, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{tasks: tasks, logger: logger}
}

// TaskRequest is the body of a task creation
type TaskRequest struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	Status      model.TaskStatus `json:"status" binding:"required,taskstatus"`
	DueDate     *time.Time       `json:"dueDate"`
}

// TaskMoveRequest is the body of an explicit move
type TaskMoveRequest struct {
	Status     model.TaskStatus `json:"status" binding:"required,taskstatus"`
	OrderIndex *int             `json:"orderIndex" binding:"omitempty,min=0"`
}

// Create adds a task at the end of its column
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetAll lists the caller's tasks, optionally filtered by ?search= and ?dueDate=
func (h *TaskHandler) GetAll(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID, service.ListQuery{
		Search:  c.Query("search"),
		DueDate: c.Query("dueDate"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// GetByID returns one task of the caller
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	task, err := h.tasks.GetOne(c.Request.Context(), userID, taskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update applies a partial update; status or orderIndex in the body move the task
func (h *TaskHandler) Update(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	// Bound with encoding/json directly so absent and null keys stay distinct.
	var req service.UpdateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, taskID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// MoveTask moves a task to a column and position
func (h *TaskHandler) MoveTask(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	var req TaskMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.tasks.Move(c.Request.Context(), userID, taskID, service.MoveTaskInput{
		Status:     req.Status,
		OrderIndex: req.OrderIndex,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Delete removes a task and closes the gap in its column
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), userID, taskID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) identify(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, taskID, true
}
