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

var (
	deliveryAssignRoles = []models.Role{models.RoleLogisticsManager, models.RoleWarehouseManager}
	deliveryUpdateRoles = []models.Role{models.RoleLogisticsManager, models.RoleLogisticsTeam, models.RoleWarehouseManager}
)

// forwardPath is the tail of the lifecycle a delivery walks through.
var forwardPath = []models.TransferStatus{
	models.TransferStatusPacked,
	models.TransferStatusDispatched,
	models.TransferStatusInTransit,
	models.TransferStatusDelivered,
}

// DeliveryService tracks the transport leg of packed transfers.
type DeliveryService struct {
	Transfers *TransferService
}

func NewDeliveryService(transfers *TransferService) *DeliveryService {
	return &DeliveryService{Transfers: transfers}
}

// AssignDelivery creates a pending delivery assignment.
func (s *DeliveryService) AssignDelivery(ctx context.Context, projectID *int, transferID int, req models.AssignDeliveryRequest, actor int) (*models.DeliveryAssignment, error) {
	ts := s.Transfers
	if req.AssignedTo <= 0 {
		return nil, ts.fail("assign delivery", invalid("assigned_to", "is required"))
	}
	u, err := ts.Users.ResolveUser(ctx, req.AssignedTo)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			err = invalid("assigned_to", "user %d does not exist", req.AssignedTo)
		}
		return nil, ts.fail("assign delivery", err)
	}
	if !u.IsActive {
		return nil, ts.fail("assign delivery", invalid("assigned_to", "user %d is not active", req.AssignedTo))
	}

	var assignment *models.DeliveryAssignment
	_, err = ts.runTx(ctx, func(st *txState) error {
		t, err := ts.lockScoped(ctx, st, projectID, transferID)
		if err != nil {
			return err
		}
		if t.Status != models.TransferStatusPacked && t.Status != models.TransferStatusDispatched {
			return fmt.Errorf("%w: cannot assign delivery while transfer is %s", ErrInvalidTransition, t.Status)
		}
		ok, err := ts.Gate.AuthorizeEitherEnd(ctx, actor, t, deliveryAssignRoles...)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: assigning delivery", ErrUnauthorized)
		}

		assignment = &models.DeliveryAssignment{
			TransferID:     t.ID,
			AssignedTo:     req.AssignedTo,
			AssignedBy:     actor,
			VehicleNumber:  strings.ToUpper(strings.TrimSpace(req.VehicleNumber)),
			DriverName:     strings.TrimSpace(req.DriverName),
			DriverPhone:    strings.TrimSpace(req.DriverPhone),
			DeliveryStatus: models.DeliveryStatusPending,
			AssignedAt:     st.now,
			DeliveryNotes:  strings.TrimSpace(req.Notes),
		}
		return st.q.InsertDeliveryAssignment(ctx, assignment)
	})
	if err != nil {
		return nil, ts.fail("assign delivery", err)
	}
	assignment.AssignedToName = u.FullName
	log.Printf("[Delivery] Assignment %d (%s) created for transfer %d", assignment.ID, assignment.VehicleNumber, transferID)
	return assignment, nil
}

func nextDeliveryStep(from, to models.DeliveryStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == models.DeliveryStatusFailed {
		return true
	}
	switch from {
	case models.DeliveryStatusPending:
		return to == models.DeliveryStatusPickedUp
	case models.DeliveryStatusPickedUp:
		return to == models.DeliveryStatusInTransit
	case models.DeliveryStatusInTransit:
		return to == models.DeliveryStatusDelivered
	}
	return false
}

// deliveryTarget is the transfer status a delivery status implies.
func deliveryTarget(s models.DeliveryStatus) (models.TransferStatus, bool) {
	switch s {
	case models.DeliveryStatusPickedUp:
		return models.TransferStatusDispatched, true
	case models.DeliveryStatusInTransit:
		return models.TransferStatusInTransit, true
	case models.DeliveryStatusDelivered:
		return models.TransferStatusDelivered, true
	}
	return "", false
}

func pathIndex(s models.TransferStatus) int {
	for i, p := range forwardPath {
		if p == s {
			return i
		}
	}
	return -1
}

// UpdateDeliveryStatus moves an assignment one step forward (or to
// failed) and walks the transfer forward to match. Repeating the current
// status changes nothing.
func (s *DeliveryService) UpdateDeliveryStatus(ctx context.Context, projectID *int, transferID int, req models.UpdateDeliveryRequest, actor int) (*models.DeliveryAssignment, error) {
	ts := s.Transfers
	switch req.Status {
	case models.DeliveryStatusPending, models.DeliveryStatusPickedUp, models.DeliveryStatusInTransit,
		models.DeliveryStatusDelivered, models.DeliveryStatusFailed:
	default:
		return nil, ts.fail("update delivery", invalid("delivery_status", "unknown status %q", req.Status))
	}
	if req.AssignmentID <= 0 {
		return nil, ts.fail("update delivery", invalid("assignment_id", "is required"))
	}

	var assignment *models.DeliveryAssignment
	events, err := ts.runTx(ctx, func(st *txState) error {
		t, err := ts.lockScoped(ctx, st, projectID, transferID)
		if err != nil {
			return err
		}
		assignment, err = st.q.LockDeliveryAssignment(ctx, req.AssignmentID)
		if err != nil {
			return translateStoreError(err, "delivery assignment")
		}
		if assignment.TransferID != t.ID {
			return fmt.Errorf("delivery assignment %w", ErrNotFound)
		}

		if assignment.AssignedTo != actor {
			ok, err := ts.Gate.AuthorizeEitherEnd(ctx, actor, t, deliveryUpdateRoles...)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: updating delivery", ErrUnauthorized)
			}
		}

		if req.Status == assignment.DeliveryStatus {
			return nil
		}
		if !nextDeliveryStep(assignment.DeliveryStatus, req.Status) {
			return fmt.Errorf("%w: delivery %s -> %s", ErrInvalidTransition, assignment.DeliveryStatus, req.Status)
		}

		at := st.now
		assignment.DeliveryStatus = req.Status
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			assignment.DeliveryNotes = notes
		}
		switch req.Status {
		case models.DeliveryStatusPickedUp:
			if assignment.PickedUpAt == nil {
				assignment.PickedUpAt = &at
			}
		case models.DeliveryStatusDelivered:
			if assignment.DeliveredAt == nil {
				assignment.DeliveredAt = &at
			}
			if name := strings.TrimSpace(req.RecipientName); name != "" {
				assignment.RecipientName = &name
			}
			if err := recordDelivered(ctx, st, t, req.DeliveredItems); err != nil {
				return err
			}
		}
		if err := st.q.UpdateDeliveryAssignment(ctx, assignment); err != nil {
			return err
		}

		target, ok := deliveryTarget(req.Status)
		if !ok {
			return nil
		}
		return s.walkTo(ctx, st, t, target, assignment)
	})
	if err != nil {
		return nil, ts.fail("update delivery", err)
	}
	ts.publish(ctx, events)
	return assignment, nil
}

// walkTo advances the transfer one legal step at a time until it reaches
// target, so the log records every intermediate state.
func (s *DeliveryService) walkTo(ctx context.Context, st *txState, t *models.Transfer, target models.TransferStatus, a *models.DeliveryAssignment) error {
	cur, want := pathIndex(t.Status), pathIndex(target)
	if cur < 0 {
		return fmt.Errorf("%w: transfer is %s", ErrInvalidTransition, t.Status)
	}
	for i := cur + 1; i <= want; i++ {
		note := fmt.Sprintf("delivery %d: %s", a.ID, a.DeliveryStatus)
		if forwardPath[i] == models.TransferStatusDelivered && a.RecipientName != nil {
			note += ", received by " + *a.RecipientName
		}
		if err := s.Transfers.applyTransition(ctx, st, t, forwardPath[i], models.SystemUserID, note, nil); err != nil {
			return err
		}
	}
	return nil
}

// recordDelivered sets delivered quantities. Without explicit quantities
// everything packed counts as delivered.
func recordDelivered(ctx context.Context, st *txState, t *models.Transfer, delivered []models.ItemQuantityInput) error {
	set := map[int]int{}
	if len(delivered) == 0 {
		for _, item := range t.Items {
			set[item.ID] = item.QuantityPacked
		}
	} else {
		for i, in := range delivered {
			field := fmt.Sprintf("delivered_items[%d]", i)
			item := findItem(t.Items, in.ItemID)
			if item == nil {
				return invalid(field+".item_id", "item %d is not part of this transfer", in.ItemID)
			}
			if in.Quantity > item.QuantityPacked {
				return invalid(field+".quantity", "exceeds the %d %s packed for %s", item.QuantityPacked, item.Unit, item.ProductName)
			}
			if in.Quantity < item.QuantityDelivered {
				return invalid(field+".quantity", "cannot go below the %d already delivered", item.QuantityDelivered)
			}
			set[item.ID] = in.Quantity
		}
	}

	for i := range t.Items {
		item := &t.Items[i]
		qty, ok := set[item.ID]
		if !ok || qty == item.QuantityDelivered {
			continue
		}
		item.QuantityDelivered = qty
		if err := st.q.UpdateItemQuantities(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
