package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	TaskOpen      = "open"
	TaskCompleted = "completed"
)

// Task is a follow-up work item, created as an automation side effect or
// directly by a human-facing collaborator.
type Task struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	LeadID      *uuid.UUID
	Title       string
	Description string
	DueDate     *time.Time
	Priority    string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOpen reports whether the task still needs work.
func (t Task) IsOpen() bool {
	return t.Status == TaskOpen
}
