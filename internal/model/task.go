package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Statuses lists the board columns in display order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a card on the owner's board. OrderIndex is unique and dense
// within the (OwnerID, Status) partition.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tasks_partition_order,priority:1" json:"ownerId"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"not null" json:"description"`
	Status      TaskStatus `gorm:"type:text;not null;uniqueIndex:idx_tasks_partition_order,priority:2" json:"status"`
	OrderIndex  int        `gorm:"not null;uniqueIndex:idx_tasks_partition_order,priority:3" json:"orderIndex"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Owner User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Partition identifies one column of one owner's board.
type Partition struct {
	OwnerID uuid.UUID
	Status  TaskStatus
}

func (p Partition) Key() string {
	return p.OwnerID.String() + ":" + string(p.Status)
}
