package services

import (
	"testing"

	"opsboard-backend/internal/models"
)

func TestPermittedTransitions(t *testing.T) {
	tr := func(from, to models.TransferStatus) Transition { return Transition{From: from, To: to} }

	tests := []struct {
		name string
		role models.Role
		lt   models.LocationType
		want []Transition
	}{
		{"lineman at store", models.RoleLineman, models.LocationTypeStore,
			[]Transition{creation}},
		{"lineman at warehouse", models.RoleLineman, models.LocationTypeWarehouse, nil},
		{"store manager at store", models.RoleStoreManager, models.LocationTypeStore, []Transition{
			creation,
			tr(models.TransferStatusRequested, models.TransferStatusStoreApproved),
			tr(models.TransferStatusRequested, models.TransferStatusRejected),
		}},
		{"warehouse manager at store", models.RoleWarehouseManager, models.LocationTypeStore, nil},
		{"warehouse manager at warehouse", models.RoleWarehouseManager, models.LocationTypeWarehouse, []Transition{
			tr(models.TransferStatusRequested, models.TransferStatusRejected),
			tr(models.TransferStatusStoreApproved, models.TransferStatusWarehouseApproved),
			tr(models.TransferStatusStoreApproved, models.TransferStatusRejected),
		}},
		{"packing team", models.RolePackingTeam, models.LocationTypeWarehouse, []Transition{
			tr(models.TransferStatusPacked, models.TransferStatusDispatched),
		}},
		{"logistics manager", models.RoleLogisticsManager, models.LocationTypeStore, []Transition{
			tr(models.TransferStatusPacked, models.TransferStatusDispatched),
		}},
		{"logistics team", models.RoleLogisticsTeam, models.LocationTypeWarehouse, []Transition{
			tr(models.TransferStatusDispatched, models.TransferStatusInTransit),
			tr(models.TransferStatusInTransit, models.TransferStatusDelivered),
		}},
		{"unknown role", models.Role("auditor"), models.LocationTypeStore, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PermittedTransitions(tt.role, tt.lt)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d transitions %v, want %v", len(got), got, tt.want)
			}
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("missing %s", w)
				}
			}
		})
	}
}

func TestSystemOnlyTransitionsNeverGranted(t *testing.T) {
	systemOnly := []Transition{
		{models.TransferStatusWarehouseApproved, models.TransferStatusPacking},
		{models.TransferStatusPacking, models.TransferStatusPacked},
		{models.TransferStatusRequested, models.TransferStatusCancelled},
	}
	for _, role := range models.AllRoles {
		for _, lt := range []models.LocationType{models.LocationTypeStore, models.LocationTypeWarehouse} {
			perms := PermittedTransitions(role, lt)
			for _, tr := range systemOnly {
				if perms[tr] {
					t.Errorf("%s at %s may perform %s", role, lt, tr)
				}
			}
		}
	}
}

func TestIsLegalTransition(t *testing.T) {
	legal := map[Transition]bool{
		{models.TransferStatusRequested, models.TransferStatusStoreApproved}:         true,
		{models.TransferStatusRequested, models.TransferStatusRejected}:              true,
		{models.TransferStatusRequested, models.TransferStatusCancelled}:             true,
		{models.TransferStatusStoreApproved, models.TransferStatusWarehouseApproved}: true,
		{models.TransferStatusStoreApproved, models.TransferStatusRejected}:          true,
		{models.TransferStatusWarehouseApproved, models.TransferStatusPacking}:       true,
		{models.TransferStatusPacking, models.TransferStatusPacked}:                  true,
		{models.TransferStatusPacked, models.TransferStatusDispatched}:               true,
		{models.TransferStatusDispatched, models.TransferStatusInTransit}:            true,
		{models.TransferStatusInTransit, models.TransferStatusDelivered}:             true,
	}

	for _, from := range models.AllTransferStatuses {
		for _, to := range models.AllTransferStatuses {
			want := legal[Transition{from, to}]
			if got := IsLegalTransition(from, to); got != want {
				t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if IsLegalTransition("", models.TransferStatusRequested) {
		t.Error("creation must not count as a status change")
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range models.AllTransferStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range models.AllTransferStatuses {
			if IsLegalTransition(from, to) {
				t.Errorf("terminal %s has exit to %s", from, to)
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)

	approve := Transition{models.TransferStatusRequested, models.TransferStatusStoreApproved}
	cancel := Transition{models.TransferStatusRequested, models.TransferStatusCancelled}
	pack := Transition{models.TransferStatusWarehouseApproved, models.TransferStatusPacking}

	tests := []struct {
		name  string
		actor int
		tr    Transition
		want  bool
	}{
		{"store manager approves at source", f.storeMgr, approve, true},
		{"warehouse manager cannot give store approval", f.whMgr, approve, false},
		{"lineman cannot approve", f.lineman, approve, false},
		{"system cannot approve", models.SystemUserID, approve, false},
		{"requester cancels", f.lineman, cancel, true},
		{"store manager cannot cancel someone else's request", f.storeMgr, cancel, false},
		{"system moves to packing", models.SystemUserID, pack, true},
		{"human cannot move to packing", f.super, pack, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Gate.CanTransition(f.ctx, tt.actor, tr, tt.tr)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoleFitsLocation(t *testing.T) {
	if roleFitsLocation(models.RoleStoreManager, models.LocationTypeWarehouse) {
		t.Error("store manager fits a warehouse")
	}
	if roleFitsLocation(models.RoleWarehouseManager, models.LocationTypeStore) {
		t.Error("warehouse manager fits a store")
	}
	if !roleFitsLocation(models.RoleLogisticsTeam, models.LocationTypeStore) {
		t.Error("logistics team should fit anywhere")
	}
}
