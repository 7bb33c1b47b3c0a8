package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"opsboard-backend/internal/models"
)

func TestRequestTransfer(t *testing.T) {
	f := newFixture(t)

	var events []models.TransitionEvent
	f.svc.OnTransition(func(ctx context.Context, ev models.TransitionEvent) { events = append(events, ev) })

	tr, err := f.svc.RequestTransfer(f.ctx, nil, models.CreateTransferRequest{
		SourceLocationID:      f.storeA.ID,
		DestinationLocationID: f.warehouse1.ID,
		Items:                 []models.TransferItemInput{{ProductName: "Widget", QuantityRequested: 10, Unit: "pcs"}},
	}, f.lineman)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if tr.Status != models.TransferStatusRequested {
		t.Errorf("status = %s", tr.Status)
	}
	if tr.TransferNumber != "TRF-000001" {
		t.Errorf("transfer number = %q", tr.TransferNumber)
	}
	if tr.Priority != models.PriorityNormal {
		t.Errorf("priority = %s, want normal", tr.Priority)
	}
	if tr.SourceLocationName != "Store A" || tr.DestinationLocationCode != "WH-1" {
		t.Errorf("labels not copied: %+v", tr)
	}

	history, err := f.svc.History(f.ctx, nil, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d entries, want 1", len(history))
	}
	if history[0].FromStatus != nil || history[0].ToStatus != models.TransferStatusRequested {
		t.Errorf("first entry = %+v", history[0])
	}
	if history[0].ChangedByName != "Lena Lineman" {
		t.Errorf("changed by name = %q", history[0].ChangedByName)
	}

	if len(events) != 1 || events[0].FromStatus != nil {
		t.Errorf("events = %+v", events)
	}
}

func TestRequestTransferNumbersAreSequential(t *testing.T) {
	f := newFixture(t)
	a := f.request(f.lineman)
	b := f.request(f.lineman)
	if a.TransferNumber == b.TransferNumber {
		t.Fatalf("duplicate transfer number %s", a.TransferNumber)
	}
	if b.TransferNumber != "TRF-000002" {
		t.Errorf("second number = %s", b.TransferNumber)
	}
}

func TestRequestTransferValidation(t *testing.T) {
	f := newFixture(t)
	inactive := f.location("Closed Store", "ST-X", models.LocationTypeStore)
	if err := f.store.SetLocationActive(f.ctx, inactive.ID, false); err != nil {
		t.Fatal(err)
	}
	widget := []models.TransferItemInput{{ProductName: "Widget", QuantityRequested: 1}}
	missingProduct := 999

	tests := []struct {
		name  string
		req   models.CreateTransferRequest
		field string
	}{
		{"same source and destination", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.storeA.ID, Items: widget}, "destination_location_id"},
		{"missing source", models.CreateTransferRequest{
			DestinationLocationID: f.warehouse1.ID, Items: widget}, "source_location_id"},
		{"unknown destination", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: 4242, Items: widget}, "destination_location_id"},
		{"inactive destination", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: inactive.ID, Items: widget}, "destination_location_id"},
		{"no items", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.warehouse1.ID}, "items"},
		{"zero quantity", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.warehouse1.ID,
			Items: []models.TransferItemInput{{ProductName: "Widget"}}}, "items[0].quantity_requested"},
		{"nameless item", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.warehouse1.ID,
			Items: []models.TransferItemInput{{QuantityRequested: 3}}}, "items[0].product_name"},
		{"unknown product", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.warehouse1.ID,
			Items: []models.TransferItemInput{{ProductID: &missingProduct, QuantityRequested: 3}}}, "items[0].product_id"},
		{"bad priority", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.warehouse1.ID, Items: widget,
			Priority: "asap"}, "priority"},
		{"bad date", models.CreateTransferRequest{
			SourceLocationID: f.storeA.ID, DestinationLocationID: f.warehouse1.ID, Items: widget,
			ExpectedDeliveryDate: "05/01/2024"}, "expected_delivery_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestTransfer(f.ctx, nil, tt.req, f.lineman)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	resp, err := f.svc.List(f.ctx, nil, models.TabAll, "", "", f.lineman)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Stats.Total != 0 || len(resp.Transfers) != 0 {
		t.Errorf("failed requests left records behind: %+v", resp.Stats)
	}
}

func TestRequestTransferUsesCatalogProduct(t *testing.T) {
	f := newFixture(t)
	code := "RICE-25"
	p := &models.Product{ProductName: "Rice 25kg", ProductCode: &code, Unit: "bag", IsActive: true}
	if err := f.store.CreateProduct(f.ctx, p); err != nil {
		t.Fatal(err)
	}

	tr := f.request(f.lineman, models.TransferItemInput{ProductID: &p.ID, QuantityRequested: 4})
	item := tr.Items[0]
	if item.ProductName != "Rice 25kg" || item.Unit != "bag" || item.ProductCode == nil || *item.ProductCode != code {
		t.Errorf("item not filled from catalog: %+v", item)
	}
}

func TestRequestTransferRequiresSourceRole(t *testing.T) {
	f := newFixture(t)
	for _, actor := range []int{f.whMgr, f.outsider, f.driver} {
		_, err := f.svc.RequestTransfer(f.ctx, nil, models.CreateTransferRequest{
			SourceLocationID:      f.storeA.ID,
			DestinationLocationID: f.warehouse1.ID,
			Items:                 []models.TransferItemInput{{ProductName: "Widget", QuantityRequested: 1}},
		}, actor)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("actor %d: err = %v, want ErrUnauthorized", actor, err)
		}
	}
}

func TestApproveTwice(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)

	got, err := f.svc.Approve(f.ctx, nil, tr.ID, f.storeMgr, "ok from store")
	if err != nil {
		t.Fatalf("store approval: %v", err)
	}
	if got.Status != models.TransferStatusStoreApproved {
		t.Fatalf("status = %s", got.Status)
	}
	got, err = f.svc.Approve(f.ctx, nil, tr.ID, f.whMgr, "")
	if err != nil {
		t.Fatalf("warehouse approval: %v", err)
	}
	if got.Status != models.TransferStatusWarehouseApproved {
		t.Fatalf("status = %s", got.Status)
	}

	history, _ := f.svc.History(f.ctx, nil, tr.ID)
	if len(history) != 3 {
		t.Fatalf("history has %d entries, want creation plus two approvals", len(history))
	}
	if history[1].Notes != "ok from store" {
		t.Errorf("notes = %q", history[1].Notes)
	}

	if _, err := f.svc.Approve(f.ctx, nil, tr.ID, f.whMgr, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("third approval: err = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveWrongRole(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)

	for _, actor := range []int{f.lineman, f.whMgr, f.outsider} {
		if _, err := f.svc.Approve(f.ctx, nil, tr.ID, actor, ""); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("actor %d: err = %v, want ErrUnauthorized", actor, err)
		}
	}
	if got := f.get(tr.ID); got.Status != models.TransferStatusRequested {
		t.Errorf("status = %s after refused approvals", got.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)

	_, err := f.svc.Reject(f.ctx, nil, tr.ID, f.storeMgr, "  ", "")
	if !isValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	_, err = f.svc.ChangeStatus(f.ctx, nil, tr.ID, models.ChangeStatusRequest{NewStatus: models.TransferStatusRejected}, f.storeMgr)
	if !isValidation(err) {
		t.Fatalf("change status err = %v, want ValidationError", err)
	}
	if got := f.get(tr.ID); got.Status != models.TransferStatusRequested {
		t.Errorf("status = %s, want requested", got.Status)
	}

	got, err := f.svc.Decide(f.ctx, nil, tr.ID, models.ApprovalRequest{Action: "reject", RejectionReason: "duplicate request"}, f.storeMgr)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TransferStatusRejected || got.RejectionReason == nil || *got.RejectionReason != "duplicate request" {
		t.Errorf("rejected transfer = %+v", got)
	}
}

func TestDecideUnknownAction(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)
	if _, err := f.svc.Decide(f.ctx, nil, tr.ID, models.ApprovalRequest{Action: "maybe"}, f.storeMgr); !isValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestCancelOnlyByRequester(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)

	if _, err := f.svc.Cancel(f.ctx, nil, tr.ID, f.storeMgr, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	got, err := f.svc.Cancel(f.ctx, nil, tr.ID, f.lineman, "ordered by mistake")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TransferStatusCancelled {
		t.Errorf("status = %s", got.Status)
	}
}

// Every (from, to) pair is attempted by a user holding every role at both
// ends. Only the table's pairs that a person may perform succeed.
func TestChangeStatusMatrix(t *testing.T) {
	for _, from := range models.AllTransferStatuses {
		for _, to := range models.AllTransferStatuses {
			from, to := from, to
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				f := newFixture(t)
				tr := f.driveTo(from)

				req := models.ChangeStatusRequest{NewStatus: to, ExpectedStatus: &from}
				if to == models.TransferStatusRejected {
					req.RejectionReason = "matrix"
				}
				_, err := f.svc.ChangeStatus(f.ctx, nil, tr.ID, req, f.super)

				rule, legal := lookupRule(from, to)
				switch {
				case !legal:
					if !errors.Is(err, ErrInvalidTransition) {
						t.Fatalf("err = %v, want ErrInvalidTransition", err)
					}
				case len(rule.Roles) == 0 && !rule.RequesterOnly:
					if !errors.Is(err, ErrUnauthorized) {
						t.Fatalf("system-only transition: err = %v, want ErrUnauthorized", err)
					}
				default:
					if err != nil {
						t.Fatalf("legal transition failed: %v", err)
					}
				}

				want := from
				if err == nil {
					want = to
				}
				if got := f.get(tr.ID); got.Status != want {
					t.Errorf("status = %s, want %s", got.Status, want)
				}
			})
		}
	}
}

func TestChangeStatusExpectedStatusMismatch(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)
	stale := models.TransferStatusStoreApproved

	_, err := f.svc.ChangeStatus(f.ctx, nil, tr.ID, models.ChangeStatusRequest{
		NewStatus:      models.TransferStatusWarehouseApproved,
		ExpectedStatus: &stale,
	}, f.whMgr)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestChangeStatusUnknownStatus(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)
	_, err := f.svc.ChangeStatus(f.ctx, nil, tr.ID, models.ChangeStatusRequest{NewStatus: "teleported"}, f.super)
	if !isValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestChangeStatusUnknownTransfer(t *testing.T) {
	f := newFixture(t)
	requested := models.TransferStatusRequested
	_, err := f.svc.ChangeStatus(f.ctx, nil, 4242, models.ChangeStatusRequest{
		NewStatus:      models.TransferStatusStoreApproved,
		ExpectedStatus: &requested,
	}, f.storeMgr)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChangeStatusRequiresExpectedStatus(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)

	_, err := f.svc.ChangeStatus(f.ctx, nil, tr.ID, models.ChangeStatusRequest{NewStatus: models.TransferStatusStoreApproved}, f.storeMgr)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "expected_status" {
		t.Fatalf("err = %v, want ValidationError on expected_status", err)
	}
	if got := f.get(tr.ID); got.Status != models.TransferStatusRequested || len(f.history(tr.ID)) != 1 {
		t.Errorf("transfer changed: status %s", got.Status)
	}
}

// An approval and a status-change rejection issued against the same
// requested transfer: whichever runs second fails.
func TestApproveThenStaleRejectFails(t *testing.T) {
	f := newFixture(t)
	tr := f.request(f.lineman)
	issued := tr.Status

	if _, err := f.svc.Approve(f.ctx, nil, tr.ID, f.storeMgr, ""); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.ChangeStatus(f.ctx, nil, tr.ID, models.ChangeStatusRequest{
		NewStatus:       models.TransferStatusRejected,
		ExpectedStatus:  &issued,
		RejectionReason: "wrong warehouse",
	}, f.whMgr)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject err = %v, want ErrInvalidTransition", err)
	}
	got := f.get(tr.ID)
	if got.Status != models.TransferStatusStoreApproved || got.RejectionReason != nil {
		t.Errorf("transfer = %s, reason %v; want store_approved without reason", got.Status, got.RejectionReason)
	}
	if n := len(f.history(tr.ID)); n != 2 {
		t.Errorf("history entries = %d, want 2", n)
	}
}

func TestConcurrentChangeStatus(t *testing.T) {
	f := newFixture(t)

	for round := 0; round < 20; round++ {
		tr := f.request(f.lineman)
		seen := models.TransferStatusRequested

		targets := []models.ChangeStatusRequest{
			{NewStatus: models.TransferStatusStoreApproved, ExpectedStatus: &seen},
			{NewStatus: models.TransferStatusRejected, ExpectedStatus: &seen, RejectionReason: "out of stock"},
		}
		errs := make([]error, len(targets))
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i, req := range targets {
			wg.Add(1)
			go func(i int, req models.ChangeStatusRequest) {
				defer wg.Done()
				<-start
				_, errs[i] = f.svc.ChangeStatus(f.ctx, nil, tr.ID, req, f.storeMgr)
			}(i, req)
		}
		close(start)
		wg.Wait()

		winners := 0
		var winner models.TransferStatus
		for i, err := range errs {
			switch {
			case err == nil:
				winners++
				winner = targets[i].NewStatus
			case !errors.Is(err, ErrInvalidTransition):
				t.Fatalf("round %d: loser err = %v, want ErrInvalidTransition", round, err)
			}
		}
		if winners != 1 {
			t.Fatalf("round %d: %d winners", round, winners)
		}
		if got := f.get(tr.ID); got.Status != winner {
			t.Fatalf("round %d: status = %s, winner was %s", round, got.Status, winner)
		}
		history, _ := f.svc.History(f.ctx, nil, tr.ID)
		if len(history) != 2 {
			t.Fatalf("round %d: %d log entries, want 2", round, len(history))
		}
	}
}

func TestHistoryTracksEveryStatus(t *testing.T) {
	f := newFixture(t)
	tr := f.driveTo(models.TransferStatusDelivered)

	history, err := f.svc.History(f.ctx, nil, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.TransferStatus{
		models.TransferStatusRequested,
		models.TransferStatusStoreApproved,
		models.TransferStatusWarehouseApproved,
		models.TransferStatusPacking,
		models.TransferStatusPacked,
		models.TransferStatusDispatched,
		models.TransferStatusInTransit,
		models.TransferStatusDelivered,
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d entries, want %d", len(history), len(want))
	}
	if history[0].FromStatus != nil {
		t.Errorf("first entry from = %v, want nil", *history[0].FromStatus)
	}
	for i, e := range history {
		if e.ToStatus != want[i] {
			t.Errorf("entry %d to = %s, want %s", i, e.ToStatus, want[i])
		}
		if i > 0 {
			if e.FromStatus == nil || *e.FromStatus != history[i-1].ToStatus {
				t.Errorf("entry %d does not continue from %s", i, history[i-1].ToStatus)
			}
			if e.ChangedAt.Before(history[i-1].ChangedAt) {
				t.Errorf("entry %d is out of order", i)
			}
		}
	}
	if history[3].ChangedBy != models.SystemUserID || history[3].ChangedByName != "System" {
		t.Errorf("packing cascade entry = %+v", history[3])
	}

	got := f.get(tr.ID)
	if got.DispatchedAt == nil || got.DeliveredAt == nil {
		t.Errorf("timestamps not set: dispatched=%v delivered=%v", got.DispatchedAt, got.DeliveredAt)
	}
}

func TestProjectScoping(t *testing.T) {
	f := newFixture(t)
	one, two := 1, 2

	tr, err := f.svc.RequestTransfer(f.ctx, &one, models.CreateTransferRequest{
		SourceLocationID:      f.storeA.ID,
		DestinationLocationID: f.warehouse1.ID,
		Items:                 []models.TransferItemInput{{ProductName: "Widget", QuantityRequested: 1}},
	}, f.lineman)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Get(f.ctx, &two, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get from other project: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Approve(f.ctx, &two, tr.ID, f.storeMgr, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("approve from other project: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Get(f.ctx, &one, tr.ID); err != nil {
		t.Errorf("get from own project: %v", err)
	}

	resp, err := f.svc.List(f.ctx, &two, models.TabAll, "", "", f.lineman)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Stats.Total != 0 {
		t.Errorf("project 2 sees %d transfers", resp.Stats.Total)
	}
}

func TestListTabsAndStats(t *testing.T) {
	f := newFixture(t)

	mine := f.request(f.lineman)
	other := f.request(f.storeMgr)
	f.change(other.ID, models.TransferStatusStoreApproved, f.storeMgr)
	cancelled := f.request(f.lineman)
	f.change(cancelled.ID, models.TransferStatusCancelled, f.lineman)

	count := func(tab string, status models.TransferStatus, search string, actor int) (int, models.TransferStats) {
		t.Helper()
		resp, err := f.svc.List(f.ctx, nil, tab, status, search, actor)
		if err != nil {
			t.Fatalf("list %s: %v", tab, err)
		}
		return len(resp.Transfers), resp.Stats
	}

	if n, _ := count(models.TabMine, "", "", f.lineman); n != 2 {
		t.Errorf("mine = %d, want 2", n)
	}
	if n, _ := count(models.TabActive, "", "", f.lineman); n != 2 {
		t.Errorf("active = %d, want 2", n)
	}
	if n, _ := count(models.TabCompleted, "", "", f.lineman); n != 1 {
		t.Errorf("completed = %d, want 1", n)
	}
	if n, _ := count(models.TabApprovals, "", "", f.storeMgr); n != 1 {
		t.Errorf("store manager approvals = %d, want 1", n)
	}
	if n, _ := count(models.TabApprovals, "", "", f.whMgr); n != 1 {
		t.Errorf("warehouse manager approvals = %d, want 1", n)
	}
	if n, _ := count(models.TabApprovals, "", "", f.lineman); n != 0 {
		t.Errorf("lineman approvals = %d, want 0", n)
	}
	if n, _ := count(models.TabAll, models.TransferStatusRequested, "", f.lineman); n != 1 {
		t.Errorf("status filter = %d, want 1", n)
	}
	if n, _ := count(models.TabAll, "", mine.TransferNumber, f.lineman); n != 1 {
		t.Errorf("search by number = %d, want 1", n)
	}
	if n, _ := count(models.TabAll, "", "widget", f.lineman); n != 3 {
		t.Errorf("search by product = %d, want 3", n)
	}

	_, stats := count(models.TabMine, models.TransferStatusCancelled, "nothing matches", f.outsider)
	want := models.TransferStats{Total: 3, Requested: 1, InProgress: 1, Delivered: 0}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	if _, err := f.svc.List(f.ctx, nil, "archived", "", "", f.lineman); !isValidation(err) {
		t.Errorf("unknown tab: err = %v", err)
	}
}

func TestDetail(t *testing.T) {
	f := newFixture(t)
	tr := f.driveTo(models.TransferStatusPacked)

	d, err := f.svc.Detail(f.ctx, nil, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.Transfer.ID != tr.ID || len(d.Items) != 1 {
		t.Errorf("detail = %+v", d)
	}
	if len(d.StatusLog) != 5 || len(d.PackingTasks) != 1 || len(d.PackedQuantities) != 1 {
		t.Errorf("log=%d tasks=%d packed=%d", len(d.StatusLog), len(d.PackingTasks), len(d.PackedQuantities))
	}
	if d.DeliveryAssignments == nil {
		t.Error("delivery assignments should be an empty list, not nil")
	}
}
