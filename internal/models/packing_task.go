package models

import "time"

type PackingTaskStatus string

const (
	PackingStatusPending    PackingTaskStatus = "pending"
	PackingStatusInProgress PackingTaskStatus = "in_progress"
	PackingStatusCompleted  PackingTaskStatus = "completed"
)

// PackingTask is a unit of pick/pack work assigned for a transfer.
type PackingTask struct {
	ID             int               `json:"id"`
	TransferID     int               `json:"transfer_id"`
	AssignedTo     int               `json:"assigned_to"`
	AssignedToName string            `json:"assigned_to_name,omitempty"`
	AssignedBy     int               `json:"assigned_by"`
	TaskStatus     PackingTaskStatus `json:"task_status"`
	AssignedAt     time.Time         `json:"assigned_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	PackingNotes   string            `json:"packing_notes"`
}

// PackedQuantityRecord ties packed quantity of one item to the task that packed it.
type PackedQuantityRecord struct {
	ID             int       `json:"id"`
	PackingTaskID  int       `json:"packing_task_id"`
	TransferItemID int       `json:"transfer_item_id"`
	Quantity       int       `json:"quantity"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type AssignPackingRequest struct {
	AssignedTo int    `json:"assigned_to"`
	Notes      string `json:"packing_notes"`
}

type ItemQuantityInput struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

// UpdatePackingTaskRequest is the body of PATCH /transfers/{id}/packing.
type UpdatePackingTaskRequest struct {
	TaskID      int                 `json:"task_id"`
	Status      PackingTaskStatus   `json:"task_status"`
	PackedItems []ItemQuantityInput `json:"packed_items,omitempty"`
	Notes       string              `json:"packing_notes"`
}
