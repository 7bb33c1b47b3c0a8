package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"opsboard-backend/internal/metrics"
	"opsboard-backend/internal/models"
	"opsboard-backend/internal/repositories"
	"opsboard-backend/internal/timeutil"
)

// TransferService is the transfer orchestrator. Every status change of a
// transfer, including the cascades driven by packing and delivery, goes
// through applyTransition inside one store transaction.
type TransferService struct {
	Store     repositories.TransferStore
	Locations LocationRegistry
	Products  ProductCatalog
	Roles     RoleDirectory
	Users     IdentityDirectory
	Gate      *RoleGate

	NumberPrefix string

	now       func() time.Time
	listeners []TransitionListener
}

func NewTransferService(
	store repositories.TransferStore,
	locations LocationRegistry,
	products ProductCatalog,
	roles RoleDirectory,
	users IdentityDirectory,
	numberPrefix string,
) *TransferService {
	if numberPrefix == "" {
		numberPrefix = "TRF-"
	}
	return &TransferService{
		Store:        store,
		Locations:    locations,
		Products:     products,
		Roles:        roles,
		Users:        users,
		Gate:         NewRoleGate(locations, roles),
		NumberPrefix: numberPrefix,
		now:          timeutil.Now,
	}
}

// OnTransition registers a listener for committed status changes.
func (s *TransferService) OnTransition(l TransitionListener) {
	s.listeners = append(s.listeners, l)
}

// SetClock replaces the time source.
func (s *TransferService) SetClock(now func() time.Time) {
	s.now = now
}

// txState carries one transaction and the events it produced.
type txState struct {
	q      repositories.TransferQueries
	now    time.Time
	events []models.TransitionEvent
}

func (s *TransferService) runTx(ctx context.Context, fn func(st *txState) error) ([]models.TransitionEvent, error) {
	var st *txState
	err := s.Store.RunInTx(ctx, func(q repositories.TransferQueries) error {
		st = &txState{q: q, now: s.now()}
		return fn(st)
	})
	if err != nil {
		return nil, translateStoreError(err, "transfer")
	}
	return st.events, nil
}

func (s *TransferService) publish(ctx context.Context, events []models.TransitionEvent) {
	for _, ev := range events {
		from := ""
		if ev.FromStatus != nil {
			from = string(*ev.FromStatus)
		}
		metrics.TransferTransitionsTotal.WithLabelValues(from, string(ev.ToStatus)).Inc()
		log.Printf("[Transfers] %s: %s -> %s by user %d", ev.TransferNumber, displayStatus(ev.FromStatus), ev.ToStatus, ev.ChangedBy)
		for _, l := range s.listeners {
			l(ctx, ev)
		}
	}
}

func displayStatus(s *models.TransferStatus) string {
	if s == nil {
		return "(new)"
	}
	return string(*s)
}

// fail records a failed operation. Internal causes are logged here since
// callers only ever see a generic message for them.
func (s *TransferService) fail(op string, err error) error {
	reason := FailureReason(err)
	metrics.TransferTransitionFailures.WithLabelValues(reason).Inc()
	if reason == "internal" {
		log.Printf("[Transfers] %s failed: %v", op, err)
	}
	return err
}

func inProject(projectID *int, t *models.Transfer) bool {
	if projectID == nil {
		return true
	}
	return t.ProjectID != nil && *t.ProjectID == *projectID
}

func (s *TransferService) lockScoped(ctx context.Context, st *txState, projectID *int, id int) (*models.Transfer, error) {
	t, err := st.q.LockTransfer(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "transfer")
	}
	if !inProject(projectID, t) {
		return nil, fmt.Errorf("transfer %w", ErrNotFound)
	}
	return t, nil
}

// applyTransition is the single place a transfer status is written. It
// checks the transition table and the role gate, performs the guarded
// update and appends exactly one log entry.
func (s *TransferService) applyTransition(ctx context.Context, st *txState, t *models.Transfer, to models.TransferStatus, actor int, notes string, reason *string) error {
	from := t.Status
	if !IsLegalTransition(from, to) {
		return invalidTransition(from, to)
	}
	ok, err := s.Gate.CanTransition(ctx, actor, t, Transition{From: from, To: to})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnauthorized, Transition{From: from, To: to})
	}

	u := models.StatusUpdate{TransferID: t.ID, From: from, To: to, UpdatedAt: st.now}
	if to == models.TransferStatusRejected {
		u.RejectionReason = reason
	}
	if to == models.TransferStatusDispatched && t.DispatchedAt == nil {
		at := st.now
		u.DispatchedAt = &at
	}
	if to == models.TransferStatusDelivered && t.DeliveredAt == nil {
		at := st.now
		u.DeliveredAt = &at
	}
	if err := st.q.UpdateTransferStatus(ctx, u); err != nil {
		return translateStoreError(err, "transfer")
	}

	prev := from
	entry := &models.StatusLogEntry{
		TransferID: t.ID,
		FromStatus: &prev,
		ToStatus:   to,
		ChangedBy:  actor,
		ChangedAt:  st.now,
		Notes:      notes,
	}
	if err := st.q.AppendStatusLog(ctx, entry); err != nil {
		return err
	}

	t.Status = to
	t.UpdatedAt = st.now
	if u.RejectionReason != nil {
		t.RejectionReason = u.RejectionReason
	}
	if u.DispatchedAt != nil {
		t.DispatchedAt = u.DispatchedAt
	}
	if u.DeliveredAt != nil {
		t.DeliveredAt = u.DeliveredAt
	}
	st.events = append(st.events, models.TransitionEvent{
		TransferID:     t.ID,
		TransferNumber: t.TransferNumber,
		ProjectID:      t.ProjectID,
		FromStatus:     &prev,
		ToStatus:       to,
		ChangedBy:      actor,
		ChangedAt:      st.now,
	})
	return nil
}

// RequestTransfer validates and creates a new transfer in requested state.
func (s *TransferService) RequestTransfer(ctx context.Context, projectID *int, req models.CreateTransferRequest, requester int) (*models.Transfer, error) {
	t, err := s.buildTransfer(ctx, projectID, req, requester)
	if err != nil {
		return nil, s.fail("request transfer", err)
	}

	ok, err := s.Gate.CanTransition(ctx, requester, t, creation)
	if err != nil {
		return nil, s.fail("request transfer", err)
	}
	if !ok {
		return nil, s.fail("request transfer", fmt.Errorf("%w: requesting from %s", ErrUnauthorized, t.SourceLocationCode))
	}

	events, err := s.runTx(ctx, func(st *txState) error {
		number, err := st.q.NextTransferNumber(ctx, s.NumberPrefix)
		if err != nil {
			return err
		}
		t.TransferNumber = number
		t.RequestedAt = st.now
		if err := st.q.InsertTransfer(ctx, t); err != nil {
			return err
		}

		entry := &models.StatusLogEntry{
			TransferID: t.ID,
			ToStatus:   models.TransferStatusRequested,
			ChangedBy:  requester,
			ChangedAt:  st.now,
			Notes:      "transfer requested",
		}
		if err := st.q.AppendStatusLog(ctx, entry); err != nil {
			return err
		}
		st.events = append(st.events, models.TransitionEvent{
			TransferID:     t.ID,
			TransferNumber: t.TransferNumber,
			ProjectID:      t.ProjectID,
			ToStatus:       models.TransferStatusRequested,
			ChangedBy:      requester,
			ChangedAt:      st.now,
		})
		return nil
	})
	if err != nil {
		return nil, s.fail("request transfer", err)
	}
	s.publish(ctx, events)
	return t, nil
}

func (s *TransferService) buildTransfer(ctx context.Context, projectID *int, req models.CreateTransferRequest, requester int) (*models.Transfer, error) {
	if req.SourceLocationID <= 0 {
		return nil, invalid("source_location_id", "is required")
	}
	if req.DestinationLocationID <= 0 {
		return nil, invalid("destination_location_id", "is required")
	}
	if req.SourceLocationID == req.DestinationLocationID {
		return nil, invalid("destination_location_id", "must differ from the source location")
	}

	source, err := s.usableLocation(ctx, projectID, "source_location_id", req.SourceLocationID)
	if err != nil {
		return nil, err
	}
	destination, err := s.usableLocation(ctx, projectID, "destination_location_id", req.DestinationLocationID)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.IsValid() {
		return nil, invalid("priority", "must be one of low, normal, high, urgent")
	}

	var expected *time.Time
	if d := strings.TrimSpace(req.ExpectedDeliveryDate); d != "" {
		parsed, err := timeutil.ParseDate(d)
		if err != nil {
			return nil, invalid("expected_delivery_date", "must be a YYYY-MM-DD date")
		}
		expected = &parsed
	}

	if len(req.Items) == 0 {
		return nil, invalid("items", "at least one item is required")
	}
	items := make([]models.TransferItem, 0, len(req.Items))
	for i, in := range req.Items {
		item, err := s.resolveItem(ctx, projectID, i, in)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	var project *int
	if projectID != nil {
		p := *projectID
		project = &p
	}
	return &models.Transfer{
		ProjectID:               project,
		SourceLocationID:        source.ID,
		SourceLocationName:      source.LocationName,
		SourceLocationCode:      source.LocationCode,
		DestinationLocationID:   destination.ID,
		DestinationLocationName: destination.LocationName,
		DestinationLocationCode: destination.LocationCode,
		Priority:                priority,
		Status:                  models.TransferStatusRequested,
		RequestNotes:            strings.TrimSpace(req.RequestNotes),
		ExpectedDeliveryDate:    expected,
		RequestedBy:             requester,
		Items:                   items,
	}, nil
}

func (s *TransferService) usableLocation(ctx context.Context, projectID *int, field string, id int) (*models.Location, error) {
	loc, err := s.Locations.GetLocation(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, invalid(field, "location %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	if !loc.IsActive {
		return nil, invalid(field, "location %s is inactive", loc.LocationCode)
	}
	if projectID != nil && loc.ProjectID != nil && *loc.ProjectID != *projectID {
		return nil, invalid(field, "location %s belongs to another project", loc.LocationCode)
	}
	return loc, nil
}

func (s *TransferService) resolveItem(ctx context.Context, projectID *int, i int, in models.TransferItemInput) (models.TransferItem, error) {
	field := fmt.Sprintf("items[%d]", i)
	item := models.TransferItem{
		ProductName:       strings.TrimSpace(in.ProductName),
		ProductCode:       in.ProductCode,
		QuantityRequested: in.QuantityRequested,
		Unit:              strings.TrimSpace(in.Unit),
	}
	if in.QuantityRequested < 1 {
		return item, invalid(field+".quantity_requested", "must be at least 1")
	}

	if in.ProductID != nil {
		product, err := s.Products.GetProduct(ctx, *in.ProductID)
		if errors.Is(err, repositories.ErrNotFound) {
			return item, invalid(field+".product_id", "product %d does not exist", *in.ProductID)
		}
		if err != nil {
			return item, err
		}
		if projectID != nil && product.ProjectID != nil && *product.ProjectID != *projectID {
			return item, invalid(field+".product_id", "product %d belongs to another project", product.ID)
		}
		id := product.ID
		item.ProductID = &id
		if item.ProductName == "" {
			item.ProductName = product.ProductName
		}
		if item.ProductCode == nil {
			item.ProductCode = product.ProductCode
		}
		if item.Unit == "" {
			item.Unit = product.Unit
		}
	}

	if item.ProductName == "" {
		return item, invalid(field+".product_name", "a product reference or name is required")
	}
	if item.ProductCode != nil && strings.TrimSpace(*item.ProductCode) == "" {
		item.ProductCode = nil
	}
	if item.Unit == "" {
		item.Unit = "pcs"
	}
	return item, nil
}

// ChangeStatus moves a transfer to req.NewStatus on behalf of actor. The
// change only applies while the transfer is still in req.ExpectedStatus.
func (s *TransferService) ChangeStatus(ctx context.Context, projectID *int, transferID int, req models.ChangeStatusRequest, actor int) (*models.Transfer, error) {
	if !req.NewStatus.IsValid() {
		return nil, s.fail("change status", invalid("new_status", "unknown status %q", req.NewStatus))
	}
	var reason *string
	if r := strings.TrimSpace(req.RejectionReason); r != "" {
		reason = &r
	}
	if req.NewStatus == models.TransferStatusRejected && reason == nil {
		return nil, s.fail("change status", invalid("rejection_reason", "is required when rejecting"))
	}
	// Every change names the status it was issued against.
	if req.ExpectedStatus == nil {
		return nil, s.fail("change status", invalid("expected_status", "is required"))
	}
	if !req.ExpectedStatus.IsValid() {
		return nil, s.fail("change status", invalid("expected_status", "unknown status %q", *req.ExpectedStatus))
	}

	var result *models.Transfer
	events, err := s.runTx(ctx, func(st *txState) error {
		t, err := s.lockScoped(ctx, st, projectID, transferID)
		if err != nil {
			return err
		}
		if *req.ExpectedStatus != t.Status {
			return fmt.Errorf("%w: transfer is %s, not %s", ErrInvalidTransition, t.Status, *req.ExpectedStatus)
		}
		if err := s.applyTransition(ctx, st, t, req.NewStatus, actor, strings.TrimSpace(req.Notes), reason); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, s.fail("change status", err)
	}
	s.publish(ctx, events)
	return result, nil
}

// Approve advances a transfer through the next approval gate.
func (s *TransferService) Approve(ctx context.Context, projectID *int, transferID int, actor int, notes string) (*models.Transfer, error) {
	t, err := s.Get(ctx, projectID, transferID)
	if err != nil {
		return nil, err
	}

	var target models.TransferStatus
	switch t.Status {
	case models.TransferStatusRequested:
		target = models.TransferStatusStoreApproved
	case models.TransferStatusStoreApproved:
		target = models.TransferStatusWarehouseApproved
	default:
		return nil, s.fail("approve", fmt.Errorf("%w: nothing to approve in status %s", ErrInvalidTransition, t.Status))
	}

	current := t.Status
	return s.ChangeStatus(ctx, projectID, transferID, models.ChangeStatusRequest{
		NewStatus:      target,
		ExpectedStatus: &current,
		Notes:          notes,
	}, actor)
}

// Reject ends a transfer waiting for approval. A reason is mandatory.
func (s *TransferService) Reject(ctx context.Context, projectID *int, transferID int, actor int, reason, notes string) (*models.Transfer, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, s.fail("reject", invalid("rejection_reason", "is required when rejecting"))
	}
	t, err := s.Get(ctx, projectID, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TransferStatusRequested && t.Status != models.TransferStatusStoreApproved {
		return nil, s.fail("reject", invalidTransition(t.Status, models.TransferStatusRejected))
	}

	current := t.Status
	return s.ChangeStatus(ctx, projectID, transferID, models.ChangeStatusRequest{
		NewStatus:       models.TransferStatusRejected,
		ExpectedStatus:  &current,
		Notes:           notes,
		RejectionReason: reason,
	}, actor)
}

// Cancel withdraws a request. Only the requester may do this.
func (s *TransferService) Cancel(ctx context.Context, projectID *int, transferID int, actor int, notes string) (*models.Transfer, error) {
	t, err := s.Get(ctx, projectID, transferID)
	if err != nil {
		return nil, err
	}
	current := t.Status
	return s.ChangeStatus(ctx, projectID, transferID, models.ChangeStatusRequest{
		NewStatus:      models.TransferStatusCancelled,
		ExpectedStatus: &current,
		Notes:          notes,
	}, actor)
}

// Decide handles the approve endpoint body.
func (s *TransferService) Decide(ctx context.Context, projectID *int, transferID int, req models.ApprovalRequest, actor int) (*models.Transfer, error) {
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "approve":
		return s.Approve(ctx, projectID, transferID, actor, req.Notes)
	case "reject":
		return s.Reject(ctx, projectID, transferID, actor, req.RejectionReason, req.Notes)
	}
	return nil, s.fail("decide", invalid("action", "must be approve or reject"))
}

// Get returns a transfer with its items.
func (s *TransferService) Get(ctx context.Context, projectID *int, transferID int) (*models.Transfer, error) {
	t, err := s.Store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, s.fail("get transfer", translateStoreError(err, "transfer"))
	}
	if !inProject(projectID, t) {
		return nil, s.fail("get transfer", fmt.Errorf("transfer %w", ErrNotFound))
	}
	return t, nil
}

// Detail returns the transfer together with its log and sub-trackers.
func (s *TransferService) Detail(ctx context.Context, projectID *int, transferID int) (*models.TransferDetail, error) {
	t, err := s.Get(ctx, projectID, transferID)
	if err != nil {
		return nil, err
	}
	history, err := s.History(ctx, projectID, transferID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Store.ListPackingTasks(ctx, transferID)
	if err != nil {
		return nil, s.fail("detail", err)
	}
	packed, err := s.Store.ListPackedQuantities(ctx, transferID)
	if err != nil {
		return nil, s.fail("detail", err)
	}
	deliveries, err := s.Store.ListDeliveryAssignments(ctx, transferID)
	if err != nil {
		return nil, s.fail("detail", err)
	}

	items := t.Items
	if items == nil {
		items = []models.TransferItem{}
	}
	return &models.TransferDetail{
		Transfer:            t,
		Items:               items,
		StatusLog:           history,
		PackingTasks:        tasks,
		PackedQuantities:    packed,
		DeliveryAssignments: deliveries,
	}, nil
}

// History returns the status log oldest first with actor display names.
func (s *TransferService) History(ctx context.Context, projectID *int, transferID int) ([]models.StatusLogEntry, error) {
	if _, err := s.Get(ctx, projectID, transferID); err != nil {
		return nil, err
	}
	entries, err := s.Store.ListStatusLog(ctx, transferID)
	if err != nil {
		return nil, s.fail("history", err)
	}

	names := map[int]string{models.SystemUserID: "System"}
	for i := range entries {
		id := entries[i].ChangedBy
		name, ok := names[id]
		if !ok {
			if u, err := s.Users.ResolveUser(ctx, id); err == nil {
				name = u.FullName
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return nil, s.fail("history", err)
			}
			names[id] = name
		}
		entries[i].ChangedByName = name
	}
	return entries, nil
}

// List returns transfers for one tab plus dashboard stats over the whole
// project scope.
func (s *TransferService) List(ctx context.Context, projectID *int, tab string, status models.TransferStatus, search string, actor int) (*models.TransferListResponse, error) {
	if tab == "" {
		tab = models.TabAll
	}
	switch tab {
	case models.TabAll, models.TabMine, models.TabApprovals, models.TabActive, models.TabCompleted:
	default:
		return nil, s.fail("list", invalid("tab", "unknown tab %q", tab))
	}
	if status != "" && !status.IsValid() {
		return nil, s.fail("list", invalid("status", "unknown status %q", status))
	}

	filter := models.TransferFilter{
		ProjectID:   projectID,
		Tab:         tab,
		Status:      status,
		Search:      search,
		RequestedBy: actor,
	}
	if tab == models.TabApprovals {
		storeIDs, warehouseIDs, err := s.approvalLocations(ctx, actor)
		if err != nil {
			return nil, s.fail("list", err)
		}
		filter.StoreApprovalLocationIDs = storeIDs
		filter.WarehouseApprovalLocationIDs = warehouseIDs
	}

	transfers, err := s.Store.ListTransfers(ctx, filter)
	if err != nil {
		return nil, s.fail("list", err)
	}
	stats, err := s.Store.TransferStats(ctx, models.TransferFilter{ProjectID: projectID})
	if err != nil {
		return nil, s.fail("list", err)
	}
	return &models.TransferListResponse{Transfers: transfers, Stats: stats}, nil
}

// approvalLocations returns the locations where actor can give the store
// approval and the warehouse approval.
func (s *TransferService) approvalLocations(ctx context.Context, actor int) ([]int, []int, error) {
	assignments, err := s.Roles.ListRoleAssignments(ctx, models.RoleAssignmentFilter{UserID: actor})
	if err != nil {
		return nil, nil, err
	}
	storeApproval := Transition{From: models.TransferStatusRequested, To: models.TransferStatusStoreApproved}
	warehouseApproval := Transition{From: models.TransferStatusStoreApproved, To: models.TransferStatusWarehouseApproved}

	storeIDs, warehouseIDs := []int{}, []int{}
	for _, a := range assignments {
		loc, err := s.Locations.GetLocation(ctx, a.LocationID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, nil, err
		}
		perms := PermittedTransitions(a.Role, loc.LocationType)
		if perms[storeApproval] {
			storeIDs = append(storeIDs, loc.ID)
		}
		if perms[warehouseApproval] {
			warehouseIDs = append(warehouseIDs, loc.ID)
		}
	}
	return storeIDs, warehouseIDs, nil
}
