package repositories

import (
	"context"
	"errors"

	"opsboard-backend/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a guarded status write finds the
	// stored status changed since it was read.
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrDuplicate is returned on unique key violations.
	ErrDuplicate = errors.New("duplicate record")
)

// TransferStore persists the transfer aggregate and its sub-trackers.
// Every mutation goes through RunInTx so that a workflow operation commits
// or rolls back as a unit.
type TransferStore interface {
	RunInTx(ctx context.Context, fn func(q TransferQueries) error) error

	GetTransfer(ctx context.Context, id int) (*models.Transfer, error)
	ListTransfers(ctx context.Context, f models.TransferFilter) ([]models.Transfer, error)
	TransferStats(ctx context.Context, f models.TransferFilter) (models.TransferStats, error)
	ListStatusLog(ctx context.Context, transferID int) ([]models.StatusLogEntry, error)
	ListPackingTasks(ctx context.Context, transferID int) ([]models.PackingTask, error)
	ListPackedQuantities(ctx context.Context, transferID int) ([]models.PackedQuantityRecord, error)
	ListDeliveryAssignments(ctx context.Context, transferID int) ([]models.DeliveryAssignment, error)
}

// TransferQueries are the statements available inside a transaction.
// Lock* methods hold the row until commit.
type TransferQueries interface {
	NextTransferNumber(ctx context.Context, prefix string) (string, error)
	InsertTransfer(ctx context.Context, t *models.Transfer) error
	LockTransfer(ctx context.Context, id int) (*models.Transfer, error)
	UpdateTransferStatus(ctx context.Context, u models.StatusUpdate) error
	UpdateItemQuantities(ctx context.Context, item *models.TransferItem) error
	AppendStatusLog(ctx context.Context, e *models.StatusLogEntry) error

	InsertPackingTask(ctx context.Context, task *models.PackingTask) error
	LockPackingTask(ctx context.Context, id int) (*models.PackingTask, error)
	UpdatePackingTask(ctx context.Context, task *models.PackingTask) error
	InsertPackedQuantity(ctx context.Context, rec *models.PackedQuantityRecord) error

	InsertDeliveryAssignment(ctx context.Context, a *models.DeliveryAssignment) error
	LockDeliveryAssignment(ctx context.Context, id int) (*models.DeliveryAssignment, error)
	UpdateDeliveryAssignment(ctx context.Context, a *models.DeliveryAssignment) error
}
