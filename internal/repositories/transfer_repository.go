package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opsboard-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TransferRepository struct {
	DB *pgxpool.Pool
}

func NewTransferRepository(db *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{DB: db}
}

// RunInTx runs fn inside one database transaction. Any error from fn rolls
// the whole operation back.
func (r *TransferRepository) RunInTx(ctx context.Context, fn func(q TransferQueries) error) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&transferQueries{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const transferColumns = `t.id, t.transfer_number, t.project_id,
	t.source_location_id, t.source_location_name, t.source_location_code,
	t.destination_location_id, t.destination_location_name, t.destination_location_code,
	t.priority, t.transfer_status, t.request_notes, t.rejection_reason, t.expected_delivery_date,
	t.requested_by, t.requested_at, t.dispatched_at, t.delivered_at, t.created_at, t.updated_at`

func scanTransfer(row pgx.Row) (*models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.TransferNumber, &t.ProjectID,
		&t.SourceLocationID, &t.SourceLocationName, &t.SourceLocationCode,
		&t.DestinationLocationID, &t.DestinationLocationName, &t.DestinationLocationCode,
		&t.Priority, &t.Status, &t.RequestNotes, &t.RejectionReason, &t.ExpectedDeliveryDate,
		&t.RequestedBy, &t.RequestedAt, &t.DispatchedAt, &t.DeliveredAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func loadItems(ctx context.Context, q querier, transferID int) ([]models.TransferItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, transfer_id, product_id, product_name, product_code,
		        quantity_requested, quantity_packed, quantity_delivered, unit
		 FROM transfer_items WHERE transfer_id = $1 ORDER BY id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.TransferItem
	for rows.Next() {
		var it models.TransferItem
		if err := rows.Scan(&it.ID, &it.TransferID, &it.ProductID, &it.ProductName, &it.ProductCode,
			&it.QuantityRequested, &it.QuantityPacked, &it.QuantityDelivered, &it.Unit); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *TransferRepository) GetTransfer(ctx context.Context, id int) (*models.Transfer, error) {
	t, err := scanTransfer(r.DB.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers t WHERE t.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if t.Items, err = loadItems(ctx, r.DB, id); err != nil {
		return nil, err
	}
	return t, nil
}

// buildTransferWhere turns a filter into a WHERE clause with positional args.
func buildTransferWhere(f models.TransferFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		conds = append(conds, cond)
	}

	if f.ProjectID != nil {
		add("t.project_id = ?", *f.ProjectID)
	}
	if f.Status != "" {
		add("t.transfer_status = ?", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		add(`(t.transfer_number ILIKE ? OR t.source_location_name ILIKE ? OR t.destination_location_name ILIKE ?
			OR EXISTS (SELECT 1 FROM transfer_items i WHERE i.transfer_id = t.id AND i.product_name ILIKE ?))`,
			pattern, pattern, pattern, pattern)
	}

	switch f.Tab {
	case models.TabMine:
		add("t.requested_by = ?", f.RequestedBy)
	case models.TabApprovals:
		add(`((t.transfer_status = 'requested' AND t.source_location_id = ANY(?))
			OR (t.transfer_status = 'store_approved' AND t.destination_location_id = ANY(?)))`,
			nonNilInts(f.StoreApprovalLocationIDs), nonNilInts(f.WarehouseApprovalLocationIDs))
	case models.TabActive:
		conds = append(conds, "t.transfer_status NOT IN ('delivered', 'rejected', 'cancelled')")
	case models.TabCompleted:
		conds = append(conds, "t.transfer_status IN ('delivered', 'rejected', 'cancelled')")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nonNilInts(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

func (r *TransferRepository) ListTransfers(ctx context.Context, f models.TransferFilter) ([]models.Transfer, error) {
	where, args := buildTransferWhere(f)
	rows, err := r.DB.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers t`+where+` ORDER BY t.created_at DESC, t.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

func (r *TransferRepository) TransferStats(ctx context.Context, f models.TransferFilter) (models.TransferStats, error) {
	var stats models.TransferStats
	where, args := buildTransferWhere(f)
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE t.transfer_status = 'requested'),
		        COUNT(*) FILTER (WHERE t.transfer_status NOT IN ('requested', 'delivered', 'rejected', 'cancelled')),
		        COUNT(*) FILTER (WHERE t.transfer_status = 'delivered')
		 FROM transfers t`+where, args...,
	).Scan(&stats.Total, &stats.Requested, &stats.InProgress, &stats.Delivered)
	return stats, err
}

func (r *TransferRepository) ListStatusLog(ctx context.Context, transferID int) ([]models.StatusLogEntry, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT l.id, l.transfer_id, l.from_status, l.to_status, l.changed_by,
		        COALESCE(u.full_name, ''), l.changed_at, l.notes
		 FROM transfer_status_logs l
		 LEFT JOIN users u ON u.id = l.changed_by
		 WHERE l.transfer_id = $1
		 ORDER BY l.changed_at, l.id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.StatusLogEntry{}
	for rows.Next() {
		var e models.StatusLogEntry
		if err := rows.Scan(&e.ID, &e.TransferID, &e.FromStatus, &e.ToStatus, &e.ChangedBy,
			&e.ChangedByName, &e.ChangedAt, &e.Notes); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const packingTaskColumns = `p.id, p.transfer_id, p.assigned_to, COALESCE(u.full_name, ''), p.assigned_by,
	p.task_status, p.assigned_at, p.started_at, p.completed_at, p.packing_notes`

func scanPackingTask(row pgx.Row) (*models.PackingTask, error) {
	var p models.PackingTask
	err := row.Scan(&p.ID, &p.TransferID, &p.AssignedTo, &p.AssignedToName, &p.AssignedBy,
		&p.TaskStatus, &p.AssignedAt, &p.StartedAt, &p.CompletedAt, &p.PackingNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *TransferRepository) ListPackingTasks(ctx context.Context, transferID int) ([]models.PackingTask, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+packingTaskColumns+`
		 FROM transfer_packing_tasks p
		 LEFT JOIN users u ON u.id = p.assigned_to
		 WHERE p.transfer_id = $1 ORDER BY p.assigned_at, p.id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.PackingTask{}
	for rows.Next() {
		p, err := scanPackingTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *p)
	}
	return tasks, rows.Err()
}

func (r *TransferRepository) ListPackedQuantities(ctx context.Context, transferID int) ([]models.PackedQuantityRecord, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT q.id, q.packing_task_id, q.transfer_item_id, q.quantity, q.recorded_at
		 FROM packed_quantity_records q
		 JOIN transfer_packing_tasks p ON p.id = q.packing_task_id
		 WHERE p.transfer_id = $1 ORDER BY q.id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.PackedQuantityRecord{}
	for rows.Next() {
		var q models.PackedQuantityRecord
		if err := rows.Scan(&q.ID, &q.PackingTaskID, &q.TransferItemID, &q.Quantity, &q.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, q)
	}
	return records, rows.Err()
}

const deliveryColumns = `d.id, d.transfer_id, d.assigned_to, COALESCE(u.full_name, ''), d.assigned_by,
	d.vehicle_number, d.driver_name, d.driver_phone, d.delivery_status, d.assigned_at,
	d.picked_up_at, d.delivered_at, d.recipient_name, d.delivery_notes`

func scanDelivery(row pgx.Row) (*models.DeliveryAssignment, error) {
	var d models.DeliveryAssignment
	err := row.Scan(&d.ID, &d.TransferID, &d.AssignedTo, &d.AssignedToName, &d.AssignedBy,
		&d.VehicleNumber, &d.DriverName, &d.DriverPhone, &d.DeliveryStatus, &d.AssignedAt,
		&d.PickedUpAt, &d.DeliveredAt, &d.RecipientName, &d.DeliveryNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *TransferRepository) ListDeliveryAssignments(ctx context.Context, transferID int) ([]models.DeliveryAssignment, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+deliveryColumns+`
		 FROM transfer_delivery_assignments d
		 LEFT JOIN users u ON u.id = d.assigned_to
		 WHERE d.transfer_id = $1 ORDER BY d.assigned_at, d.id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.DeliveryAssignment{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *d)
	}
	return assignments, rows.Err()
}

// transferQueries runs statements on an open transaction.
type transferQueries struct {
	tx pgx.Tx
}

func (q *transferQueries) NextTransferNumber(ctx context.Context, prefix string) (string, error) {
	var next int64
	if err := q.tx.QueryRow(ctx, "SELECT nextval('transfer_number_sequence')").Scan(&next); err != nil {
		return "", fmt.Errorf("failed to get next transfer number: %w", err)
	}
	return fmt.Sprintf("%s%06d", prefix, next), nil
}

func (q *transferQueries) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	err := q.tx.QueryRow(ctx,
		`INSERT INTO transfers(transfer_number, project_id,
		    source_location_id, source_location_name, source_location_code,
		    destination_location_id, destination_location_name, destination_location_code,
		    priority, transfer_status, request_notes, expected_delivery_date,
		    requested_by, requested_at, created_at, updated_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14, $14)
		 RETURNING id, created_at, updated_at`,
		t.TransferNumber, t.ProjectID,
		t.SourceLocationID, t.SourceLocationName, t.SourceLocationCode,
		t.DestinationLocationID, t.DestinationLocationName, t.DestinationLocationCode,
		t.Priority, t.Status, t.RequestNotes, t.ExpectedDeliveryDate,
		t.RequestedBy, t.RequestedAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}

	for i := range t.Items {
		item := &t.Items[i]
		item.TransferID = t.ID
		err = q.tx.QueryRow(ctx,
			`INSERT INTO transfer_items(transfer_id, product_id, product_name, product_code,
			    quantity_requested, quantity_packed, quantity_delivered, unit)
			 VALUES($1, $2, $3, $4, $5, 0, 0, $6)
			 RETURNING id`,
			t.ID, item.ProductID, item.ProductName, item.ProductCode, item.QuantityRequested, item.Unit,
		).Scan(&item.ID)
		if err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

func (q *transferQueries) LockTransfer(ctx context.Context, id int) (*models.Transfer, error) {
	t, err := scanTransfer(q.tx.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers t WHERE t.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if t.Items, err = loadItems(ctx, q.tx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (q *transferQueries) UpdateTransferStatus(ctx context.Context, u models.StatusUpdate) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE transfers
		 SET transfer_status = $3,
		     rejection_reason = COALESCE($4, rejection_reason),
		     dispatched_at = COALESCE(dispatched_at, $5),
		     delivered_at = COALESCE(delivered_at, $6),
		     updated_at = $7
		 WHERE id = $1 AND transfer_status = $2`,
		u.TransferID, u.From, u.To, u.RejectionReason, u.DispatchedAt, u.DeliveredAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (q *transferQueries) UpdateItemQuantities(ctx context.Context, item *models.TransferItem) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE transfer_items SET quantity_packed = $2, quantity_delivered = $3 WHERE id = $1`,
		item.ID, item.QuantityPacked, item.QuantityDelivered)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *transferQueries) AppendStatusLog(ctx context.Context, e *models.StatusLogEntry) error {
	return q.tx.QueryRow(ctx,
		`INSERT INTO transfer_status_logs(transfer_id, from_status, to_status, changed_by, changed_at, notes)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.TransferID, e.FromStatus, e.ToStatus, e.ChangedBy, e.ChangedAt, e.Notes,
	).Scan(&e.ID)
}

func (q *transferQueries) InsertPackingTask(ctx context.Context, task *models.PackingTask) error {
	return q.tx.QueryRow(ctx,
		`INSERT INTO transfer_packing_tasks(transfer_id, assigned_to, assigned_by, task_status, assigned_at, packing_notes)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		task.TransferID, task.AssignedTo, task.AssignedBy, task.TaskStatus, task.AssignedAt, task.PackingNotes,
	).Scan(&task.ID)
}

func (q *transferQueries) LockPackingTask(ctx context.Context, id int) (*models.PackingTask, error) {
	return scanPackingTask(q.tx.QueryRow(ctx,
		`SELECT `+packingTaskColumns+`
		 FROM transfer_packing_tasks p
		 LEFT JOIN users u ON u.id = p.assigned_to
		 WHERE p.id = $1 FOR UPDATE OF p`, id))
}

func (q *transferQueries) UpdatePackingTask(ctx context.Context, task *models.PackingTask) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE transfer_packing_tasks
		 SET task_status = $2, started_at = $3, completed_at = $4, packing_notes = $5
		 WHERE id = $1`,
		task.ID, task.TaskStatus, task.StartedAt, task.CompletedAt, task.PackingNotes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *transferQueries) InsertPackedQuantity(ctx context.Context, rec *models.PackedQuantityRecord) error {
	return q.tx.QueryRow(ctx,
		`INSERT INTO packed_quantity_records(packing_task_id, transfer_item_id, quantity, recorded_at)
		 VALUES($1, $2, $3, $4)
		 RETURNING id`,
		rec.PackingTaskID, rec.TransferItemID, rec.Quantity, rec.RecordedAt,
	).Scan(&rec.ID)
}

func (q *transferQueries) InsertDeliveryAssignment(ctx context.Context, a *models.DeliveryAssignment) error {
	return q.tx.QueryRow(ctx,
		`INSERT INTO transfer_delivery_assignments(transfer_id, assigned_to, assigned_by,
		    vehicle_number, driver_name, driver_phone, delivery_status, assigned_at, delivery_notes)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		a.TransferID, a.AssignedTo, a.AssignedBy, a.VehicleNumber, a.DriverName, a.DriverPhone,
		a.DeliveryStatus, a.AssignedAt, a.DeliveryNotes,
	).Scan(&a.ID)
}

func (q *transferQueries) LockDeliveryAssignment(ctx context.Context, id int) (*models.DeliveryAssignment, error) {
	return scanDelivery(q.tx.QueryRow(ctx,
		`SELECT `+deliveryColumns+`
		 FROM transfer_delivery_assignments d
		 LEFT JOIN users u ON u.id = d.assigned_to
		 WHERE d.id = $1 FOR UPDATE OF d`, id))
}

func (q *transferQueries) UpdateDeliveryAssignment(ctx context.Context, a *models.DeliveryAssignment) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE transfer_delivery_assignments
		 SET delivery_status = $2, picked_up_at = $3, delivered_at = $4,
		     recipient_name = $5, delivery_notes = $6
		 WHERE id = $1`,
		a.ID, a.DeliveryStatus, a.PickedUpAt, a.DeliveredAt, a.RecipientName, a.DeliveryNotes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mapPgError converts unique violations into ErrDuplicate.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
