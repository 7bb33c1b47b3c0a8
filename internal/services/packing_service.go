package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/repositories"
)

var packingRoles = []models.Role{models.RoleWarehouseManager, models.RolePackingTeam, models.RoleLogisticsManager}

// PackingService tracks packing work for approved transfers.
type PackingService struct {
	Transfers *TransferService
}

func NewPackingService(transfers *TransferService) *PackingService {
	return &PackingService{Transfers: transfers}
}

// AssignPacking creates a pending task. The first assignment moves a
// warehouse approved transfer into packing.
func (s *PackingService) AssignPacking(ctx context.Context, projectID *int, transferID int, req models.AssignPackingRequest, actor int) (*models.PackingTask, error) {
	ts := s.Transfers
	if req.AssignedTo <= 0 {
		return nil, ts.fail("assign packing", invalid("assigned_to", "is required"))
	}
	if err := s.requireActiveUser(ctx, req.AssignedTo); err != nil {
		return nil, ts.fail("assign packing", err)
	}

	var task *models.PackingTask
	events, err := ts.runTx(ctx, func(st *txState) error {
		t, err := ts.lockScoped(ctx, st, projectID, transferID)
		if err != nil {
			return err
		}
		if t.Status != models.TransferStatusWarehouseApproved && t.Status != models.TransferStatusPacking {
			return fmt.Errorf("%w: cannot assign packing while transfer is %s", ErrInvalidTransition, t.Status)
		}
		ok, err := ts.Gate.AuthorizeEitherEnd(ctx, actor, t, packingRoles...)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: assigning packing", ErrUnauthorized)
		}

		task = &models.PackingTask{
			TransferID:   t.ID,
			AssignedTo:   req.AssignedTo,
			AssignedBy:   actor,
			TaskStatus:   models.PackingStatusPending,
			AssignedAt:   st.now,
			PackingNotes: strings.TrimSpace(req.Notes),
		}
		if err := st.q.InsertPackingTask(ctx, task); err != nil {
			return err
		}

		if t.Status == models.TransferStatusWarehouseApproved {
			return ts.applyTransition(ctx, st, t, models.TransferStatusPacking, models.SystemUserID, "packing task assigned", nil)
		}
		return nil
	})
	if err != nil {
		return nil, ts.fail("assign packing", err)
	}
	ts.publish(ctx, events)
	log.Printf("[Packing] Task %d assigned to user %d for transfer %d", task.ID, task.AssignedTo, transferID)
	return task, nil
}

func (s *PackingService) requireActiveUser(ctx context.Context, userID int) error {
	u, err := s.Transfers.Users.ResolveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalid("assigned_to", "user %d does not exist", userID)
		}
		return err
	}
	if !u.IsActive {
		return invalid("assigned_to", "user %d is not active", userID)
	}
	return nil
}

// UpdatePackingTask moves a task one step forward. Completing a task
// records the packed quantities, and once every item is fully packed the
// transfer moves to packed.
func (s *PackingService) UpdatePackingTask(ctx context.Context, projectID *int, transferID int, req models.UpdatePackingTaskRequest, actor int) (*models.PackingTask, error) {
	ts := s.Transfers
	switch req.Status {
	case models.PackingStatusPending, models.PackingStatusInProgress, models.PackingStatusCompleted:
	default:
		return nil, ts.fail("update packing", invalid("task_status", "unknown status %q", req.Status))
	}
	if req.TaskID <= 0 {
		return nil, ts.fail("update packing", invalid("task_id", "is required"))
	}

	var task *models.PackingTask
	events, err := ts.runTx(ctx, func(st *txState) error {
		t, err := ts.lockScoped(ctx, st, projectID, transferID)
		if err != nil {
			return err
		}
		task, err = st.q.LockPackingTask(ctx, req.TaskID)
		if err != nil {
			return translateStoreError(err, "packing task")
		}
		if task.TransferID != t.ID {
			return fmt.Errorf("packing task %w", ErrNotFound)
		}

		if task.AssignedTo != actor {
			ok, err := ts.Gate.AuthorizeEitherEnd(ctx, actor, t, packingRoles...)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: updating packing task", ErrUnauthorized)
			}
		}

		if req.Status == task.TaskStatus {
			return nil
		}
		if !nextPackingStep(task.TaskStatus, req.Status) {
			return fmt.Errorf("%w: packing task %s -> %s", ErrInvalidTransition, task.TaskStatus, req.Status)
		}
		if t.Status != models.TransferStatusPacking && t.Status != models.TransferStatusPacked {
			return fmt.Errorf("%w: transfer is %s", ErrInvalidTransition, t.Status)
		}

		task.TaskStatus = req.Status
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			task.PackingNotes = notes
		}
		at := st.now
		switch req.Status {
		case models.PackingStatusInProgress:
			if task.StartedAt == nil {
				task.StartedAt = &at
			}
		case models.PackingStatusCompleted:
			if task.CompletedAt == nil {
				task.CompletedAt = &at
			}
			if err := s.recordPacked(ctx, st, t, task, req.PackedItems); err != nil {
				return err
			}
		}
		if err := st.q.UpdatePackingTask(ctx, task); err != nil {
			return err
		}

		if req.Status == models.PackingStatusCompleted && fullyPacked(t.Items) && t.Status == models.TransferStatusPacking {
			return ts.applyTransition(ctx, st, t, models.TransferStatusPacked, models.SystemUserID, "all items packed", nil)
		}
		return nil
	})
	if err != nil {
		return nil, ts.fail("update packing", err)
	}
	ts.publish(ctx, events)
	return task, nil
}

func nextPackingStep(from, to models.PackingTaskStatus) bool {
	return (from == models.PackingStatusPending && to == models.PackingStatusInProgress) ||
		(from == models.PackingStatusInProgress && to == models.PackingStatusCompleted)
}

// recordPacked applies the quantities packed by a completed task. Without
// explicit quantities the task packs everything still outstanding.
func (s *PackingService) recordPacked(ctx context.Context, st *txState, t *models.Transfer, task *models.PackingTask, packed []models.ItemQuantityInput) error {
	add := map[int]int{}
	if len(packed) == 0 {
		for _, item := range t.Items {
			if rem := item.RemainingToPack(); rem > 0 {
				add[item.ID] = rem
			}
		}
	} else {
		for i, in := range packed {
			field := fmt.Sprintf("packed_items[%d]", i)
			item := findItem(t.Items, in.ItemID)
			if item == nil {
				return invalid(field+".item_id", "item %d is not part of this transfer", in.ItemID)
			}
			if in.Quantity < 0 {
				return invalid(field+".quantity", "must not be negative")
			}
			add[item.ID] += in.Quantity
			if add[item.ID] > item.RemainingToPack() {
				return invalid(field+".quantity", "exceeds the %d %s left to pack for %s",
					item.RemainingToPack(), item.Unit, item.ProductName)
			}
		}
	}

	for i := range t.Items {
		item := &t.Items[i]
		qty := add[item.ID]
		if qty == 0 {
			continue
		}
		item.QuantityPacked += qty
		if err := st.q.UpdateItemQuantities(ctx, item); err != nil {
			return err
		}
		rec := &models.PackedQuantityRecord{
			PackingTaskID:  task.ID,
			TransferItemID: item.ID,
			Quantity:       qty,
			RecordedAt:     st.now,
		}
		if err := st.q.InsertPackedQuantity(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func findItem(items []models.TransferItem, id int) *models.TransferItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func fullyPacked(items []models.TransferItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.QuantityPacked < item.QuantityRequested {
			return false
		}
	}
	return true
}
