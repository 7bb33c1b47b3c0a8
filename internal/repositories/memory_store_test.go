package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsboard-backend/internal/models"
)

func seedTransfer(t *testing.T, m *MemoryStore) *models.Transfer {
	t.Helper()
	tr := &models.Transfer{
		SourceLocationID:      1,
		DestinationLocationID: 2,
		Status:                models.TransferStatusRequested,
		RequestedAt:           time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Items:                 []models.TransferItem{{ProductName: "Widget", QuantityRequested: 5, Unit: "pcs"}},
	}
	err := m.RunInTx(context.Background(), func(q TransferQueries) error {
		n, err := q.NextTransferNumber(context.Background(), "TRF-")
		if err != nil {
			return err
		}
		tr.TransferNumber = n
		return q.InsertTransfer(context.Background(), tr)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return tr
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tr := seedTransfer(t, m)

	boom := errors.New("boom")
	err := m.RunInTx(ctx, func(q TransferQueries) error {
		if err := q.UpdateTransferStatus(ctx, models.StatusUpdate{
			TransferID: tr.ID, From: models.TransferStatusRequested, To: models.TransferStatusStoreApproved,
		}); err != nil {
			return err
		}
		if err := q.AppendStatusLog(ctx, &models.StatusLogEntry{TransferID: tr.ID, ToStatus: models.TransferStatusStoreApproved}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	got, err := m.GetTransfer(ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TransferStatusRequested {
		t.Errorf("status = %s after rollback", got.Status)
	}
	if logs, _ := m.ListStatusLog(ctx, tr.ID); len(logs) != 0 {
		t.Errorf("%d log entries after rollback", len(logs))
	}
}

func TestUpdateTransferStatusGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tr := seedTransfer(t, m)

	err := m.RunInTx(ctx, func(q TransferQueries) error {
		return q.UpdateTransferStatus(ctx, models.StatusUpdate{
			TransferID: tr.ID, From: models.TransferStatusStoreApproved, To: models.TransferStatusWarehouseApproved,
		})
	})
	if !errors.Is(err, ErrStatusConflict) {
		t.Errorf("err = %v, want ErrStatusConflict", err)
	}

	err = m.RunInTx(ctx, func(q TransferQueries) error {
		return q.UpdateTransferStatus(ctx, models.StatusUpdate{TransferID: 999, From: models.TransferStatusRequested})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown transfer: err = %v, want ErrNotFound", err)
	}
}

func TestDispatchedAtWrittenOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tr := seedTransfer(t, m)
	first := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	steps := []models.StatusUpdate{
		{TransferID: tr.ID, From: models.TransferStatusRequested, To: models.TransferStatusPacked, DispatchedAt: &first},
		{TransferID: tr.ID, From: models.TransferStatusPacked, To: models.TransferStatusDispatched, DispatchedAt: &later},
	}
	for _, u := range steps {
		u := u
		if err := m.RunInTx(ctx, func(q TransferQueries) error { return q.UpdateTransferStatus(ctx, u) }); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := m.GetTransfer(ctx, tr.ID)
	if !got.DispatchedAt.Equal(first) {
		t.Errorf("dispatched_at = %v, want %v", got.DispatchedAt, first)
	}
}

func TestItemQuantityBounds(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tr := seedTransfer(t, m)
	item := tr.Items[0]

	bad := []models.TransferItem{
		{ID: item.ID, TransferID: tr.ID, QuantityPacked: 6},
		{ID: item.ID, TransferID: tr.ID, QuantityPacked: 3, QuantityDelivered: 4},
		{ID: item.ID, TransferID: tr.ID, QuantityPacked: -1},
	}
	for _, b := range bad {
		b := b
		err := m.RunInTx(ctx, func(q TransferQueries) error { return q.UpdateItemQuantities(ctx, &b) })
		if err == nil {
			t.Errorf("packed=%d delivered=%d accepted", b.QuantityPacked, b.QuantityDelivered)
		}
	}

	ok := models.TransferItem{ID: item.ID, TransferID: tr.ID, QuantityPacked: 5, QuantityDelivered: 5}
	if err := m.RunInTx(ctx, func(q TransferQueries) error { return q.UpdateItemQuantities(ctx, &ok) }); err != nil {
		t.Fatal(err)
	}
	got, _ := m.GetTransfer(ctx, tr.ID)
	if got.Items[0].QuantityPacked != 5 || got.Items[0].QuantityDelivered != 5 {
		t.Errorf("item = %+v", got.Items[0])
	}
}

func TestTransferNumbersNeverRepeat(t *testing.T) {
	m := NewMemoryStore()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tr := seedTransfer(t, m)
		if seen[tr.TransferNumber] {
			t.Fatalf("number %s issued twice", tr.TransferNumber)
		}
		seen[tr.TransferNumber] = true
	}
}

func TestGetTransferReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tr := seedTransfer(t, m)

	got, _ := m.GetTransfer(ctx, tr.ID)
	got.Status = models.TransferStatusDelivered
	got.Items[0].QuantityPacked = 5

	again, _ := m.GetTransfer(ctx, tr.ID)
	if again.Status != models.TransferStatusRequested || again.Items[0].QuantityPacked != 0 {
		t.Errorf("stored transfer was mutated through a returned copy: %+v", again)
	}
}

func TestRoleAssignmentsAreUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	a := &models.RoleAssignment{UserID: 1, LocationID: 2, Role: models.RoleLineman}
	if err := m.CreateRoleAssignment(ctx, a); err != nil {
		t.Fatal(err)
	}
	dup := &models.RoleAssignment{UserID: 1, LocationID: 2, Role: models.RoleLineman}
	if err := m.CreateRoleAssignment(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
	roles, _ := m.RolesAt(ctx, 1, 2)
	if len(roles) != 1 {
		t.Errorf("roles = %v", roles)
	}
}
