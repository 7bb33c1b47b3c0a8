package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/repositories"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

// fixture is a store A -> warehouse 1 setup with one user per role plus a
// user holding every role at both ends.
type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *repositories.MemoryStore
	svc      *TransferService
	packing  *PackingService
	delivery *DeliveryService
	ref      *ReferenceService

	storeA     *models.Location
	warehouse1 *models.Location

	lineman, storeMgr, whMgr, packer, logistics, driver, super, outsider int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewMemoryStore()

	f := &fixture{t: t, ctx: ctx, store: store}
	f.svc = NewTransferService(store, store, store, store, store, "TRF-")
	clock := &stepClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	f.svc.SetClock(clock.Now)
	f.packing = NewPackingService(f.svc)
	f.delivery = NewDeliveryService(f.svc)
	f.ref = NewReferenceService(store, store, store, store, store)

	f.storeA = f.location("Store A", "ST-A", models.LocationTypeStore)
	f.warehouse1 = f.location("Warehouse 1", "WH-1", models.LocationTypeWarehouse)

	f.lineman = f.user("Lena Lineman")
	f.storeMgr = f.user("Sam Store")
	f.whMgr = f.user("Wes Warehouse")
	f.packer = f.user("Pat Packer")
	f.logistics = f.user("Lou Logistics")
	f.driver = f.user("Dee Driver")
	f.super = f.user("Ada Allroles")
	f.outsider = f.user("Otto Outsider")

	f.grant(f.lineman, f.storeA, models.RoleLineman)
	f.grant(f.storeMgr, f.storeA, models.RoleStoreManager)
	f.grant(f.whMgr, f.warehouse1, models.RoleWarehouseManager)
	f.grant(f.packer, f.warehouse1, models.RolePackingTeam)
	f.grant(f.logistics, f.warehouse1, models.RoleLogisticsManager)
	f.grant(f.driver, f.warehouse1, models.RoleLogisticsTeam)

	for _, r := range []models.Role{models.RoleLineman, models.RoleStoreManager, models.RolePackingTeam,
		models.RoleLogisticsManager, models.RoleLogisticsTeam} {
		f.grant(f.super, f.storeA, r)
	}
	for _, r := range []models.Role{models.RoleWarehouseManager, models.RolePackingTeam,
		models.RoleLogisticsManager, models.RoleLogisticsTeam} {
		f.grant(f.super, f.warehouse1, r)
	}
	return f
}

func (f *fixture) user(name string) int {
	return f.store.AddUser(models.User{FullName: name, Email: name + "@example.com", IsActive: true}).ID
}

func (f *fixture) location(name, code string, lt models.LocationType) *models.Location {
	f.t.Helper()
	l := &models.Location{LocationName: name, LocationCode: code, LocationType: lt, IsActive: true}
	if err := f.store.CreateLocation(f.ctx, l); err != nil {
		f.t.Fatalf("create location: %v", err)
	}
	return l
}

func (f *fixture) grant(userID int, l *models.Location, role models.Role) {
	f.t.Helper()
	a := &models.RoleAssignment{UserID: userID, LocationID: l.ID, Role: role}
	if err := f.store.CreateRoleAssignment(f.ctx, a); err != nil {
		f.t.Fatalf("grant %s: %v", role, err)
	}
}

func (f *fixture) request(requester int, items ...models.TransferItemInput) *models.Transfer {
	f.t.Helper()
	if len(items) == 0 {
		items = []models.TransferItemInput{{ProductName: "Widget", QuantityRequested: 10, Unit: "pcs"}}
	}
	tr, err := f.svc.RequestTransfer(f.ctx, nil, models.CreateTransferRequest{
		SourceLocationID:      f.storeA.ID,
		DestinationLocationID: f.warehouse1.ID,
		Items:                 items,
	}, requester)
	if err != nil {
		f.t.Fatalf("request transfer: %v", err)
	}
	return tr
}

func (f *fixture) get(id int) *models.Transfer {
	f.t.Helper()
	tr, err := f.svc.Get(f.ctx, nil, id)
	if err != nil {
		f.t.Fatalf("get transfer %d: %v", id, err)
	}
	return tr
}

func (f *fixture) history(id int) []models.StatusLogEntry {
	f.t.Helper()
	history, err := f.svc.History(f.ctx, nil, id)
	if err != nil {
		f.t.Fatalf("history %d: %v", id, err)
	}
	return history
}

func (f *fixture) change(id int, to models.TransferStatus, actor int) {
	f.t.Helper()
	current := f.get(id).Status
	req := models.ChangeStatusRequest{NewStatus: to, ExpectedStatus: &current}
	if to == models.TransferStatusRejected {
		req.RejectionReason = "not needed"
	}
	if _, err := f.svc.ChangeStatus(f.ctx, nil, id, req, actor); err != nil {
		f.t.Fatalf("change %d to %s: %v", id, to, err)
	}
}

// packAll assigns one task to the super user and completes it.
func (f *fixture) packAll(id int) *models.PackingTask {
	f.t.Helper()
	task, err := f.packing.AssignPacking(f.ctx, nil, id, models.AssignPackingRequest{AssignedTo: f.super}, f.super)
	if err != nil {
		f.t.Fatalf("assign packing: %v", err)
	}
	for _, s := range []models.PackingTaskStatus{models.PackingStatusInProgress, models.PackingStatusCompleted} {
		task, err = f.packing.UpdatePackingTask(f.ctx, nil, id, models.UpdatePackingTaskRequest{TaskID: task.ID, Status: s}, f.super)
		if err != nil {
			f.t.Fatalf("packing task -> %s: %v", s, err)
		}
	}
	return task
}

// driveTo creates a transfer and moves it to status s along the normal path.
func (f *fixture) driveTo(s models.TransferStatus) *models.Transfer {
	f.t.Helper()
	tr := f.request(f.super)
	switch s {
	case models.TransferStatusRequested:
		return f.get(tr.ID)
	case models.TransferStatusRejected, models.TransferStatusCancelled:
		f.change(tr.ID, s, f.super)
		return f.get(tr.ID)
	}

	path := []models.TransferStatus{
		models.TransferStatusStoreApproved,
		models.TransferStatusWarehouseApproved,
		models.TransferStatusPacking,
		models.TransferStatusPacked,
		models.TransferStatusDispatched,
		models.TransferStatusInTransit,
		models.TransferStatusDelivered,
	}
	for _, next := range path {
		switch next {
		case models.TransferStatusPacking:
			if _, err := f.packing.AssignPacking(f.ctx, nil, tr.ID, models.AssignPackingRequest{AssignedTo: f.super}, f.super); err != nil {
				f.t.Fatalf("assign packing: %v", err)
			}
		case models.TransferStatusPacked:
			tasks, _ := f.store.ListPackingTasks(f.ctx, tr.ID)
			for _, st := range []models.PackingTaskStatus{models.PackingStatusInProgress, models.PackingStatusCompleted} {
				if _, err := f.packing.UpdatePackingTask(f.ctx, nil, tr.ID,
					models.UpdatePackingTaskRequest{TaskID: tasks[0].ID, Status: st}, f.super); err != nil {
					f.t.Fatalf("packing -> %s: %v", st, err)
				}
			}
		default:
			f.change(tr.ID, next, f.super)
		}
		if next == s {
			break
		}
	}
	got := f.get(tr.ID)
	if got.Status != s {
		f.t.Fatalf("driveTo(%s) ended at %s", s, got.Status)
	}
	return got
}

func isValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func checkItemInvariants(t *testing.T, tr *models.Transfer) {
	t.Helper()
	for _, it := range tr.Items {
		if it.QuantityPacked < 0 || it.QuantityPacked > it.QuantityRequested ||
			it.QuantityDelivered < 0 || it.QuantityDelivered > it.QuantityPacked {
			t.Errorf("item %d violates quantity bounds: requested=%d packed=%d delivered=%d",
				it.ID, it.QuantityRequested, it.QuantityPacked, it.QuantityDelivered)
		}
	}
}
