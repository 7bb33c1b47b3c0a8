package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"opsboard-backend/internal/models"
)

// MemoryStore keeps every table in process memory. It implements the same
// interfaces as the Postgres repositories and backs tests and the
// "memory" database driver.
//
// Transactions are serialized. Each one works on a copy of the committed
// state which replaces it on commit, so a failed operation leaves nothing
// behind.
type MemoryStore struct {
	txMu sync.Mutex

	mu    sync.RWMutex
	state *memoryState

	refMu      sync.RWMutex
	users      map[int]models.User
	locations  map[int]models.Location
	products   map[int]models.Product
	roles      map[int]models.RoleAssignment
	actionLogs []models.AdminActionLog
	nextRefID  int
	now        func() time.Time
}

type memoryState struct {
	transfers  map[int]*models.Transfer
	logs       []models.StatusLogEntry
	tasks      map[int]*models.PackingTask
	packed     []models.PackedQuantityRecord
	deliveries map[int]*models.DeliveryAssignment
	numberSeq  int64
	nextID     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			transfers:  map[int]*models.Transfer{},
			tasks:      map[int]*models.PackingTask{},
			deliveries: map[int]*models.DeliveryAssignment{},
		},
		users:     map[int]models.User{},
		locations: map[int]models.Location{},
		products:  map[int]models.Product{},
		roles:     map[int]models.RoleAssignment{},
		now:       time.Now,
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		transfers:  make(map[int]*models.Transfer, len(s.transfers)),
		logs:       append([]models.StatusLogEntry(nil), s.logs...),
		tasks:      make(map[int]*models.PackingTask, len(s.tasks)),
		packed:     append([]models.PackedQuantityRecord(nil), s.packed...),
		deliveries: make(map[int]*models.DeliveryAssignment, len(s.deliveries)),
		numberSeq:  s.numberSeq,
		nextID:     s.nextID,
	}
	for id, t := range s.transfers {
		c.transfers[id] = copyTransfer(t)
	}
	for id, p := range s.tasks {
		cp := *p
		c.tasks[id] = &cp
	}
	for id, d := range s.deliveries {
		cp := *d
		c.deliveries[id] = &cp
	}
	return c
}

func (s *memoryState) id() int {
	s.nextID++
	return s.nextID
}

func copyTransfer(t *models.Transfer) *models.Transfer {
	cp := *t
	cp.Items = append([]models.TransferItem(nil), t.Items...)
	return &cp
}

// RunInTx runs fn against a private copy of the state and publishes it on success.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(q TransferQueries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	work := m.state.clone()
	m.mu.RUnlock()

	if err := fn(&memoryQueries{state: work}); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = work
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetTransfer(ctx context.Context, id int) (*models.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.state.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransfer(t), nil
}

func (m *MemoryStore) ListTransfers(ctx context.Context, f models.TransferFilter) ([]models.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	transfers := []models.Transfer{}
	for _, t := range m.state.transfers {
		if matchesTransferFilter(t, f) {
			cp := copyTransfer(t)
			cp.Items = nil
			transfers = append(transfers, *cp)
		}
	}
	sort.Slice(transfers, func(i, j int) bool {
		if !transfers[i].CreatedAt.Equal(transfers[j].CreatedAt) {
			return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
		}
		return transfers[i].ID > transfers[j].ID
	})
	return transfers, nil
}

func (m *MemoryStore) TransferStats(ctx context.Context, f models.TransferFilter) (models.TransferStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats models.TransferStats
	for _, t := range m.state.transfers {
		if matchesTransferFilter(t, f) {
			stats.Count(t.Status)
		}
	}
	return stats, nil
}

func matchesTransferFilter(t *models.Transfer, f models.TransferFilter) bool {
	if f.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *f.ProjectID) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		hit := strings.Contains(strings.ToLower(t.TransferNumber), s) ||
			strings.Contains(strings.ToLower(t.SourceLocationName), s) ||
			strings.Contains(strings.ToLower(t.DestinationLocationName), s)
		for _, it := range t.Items {
			if strings.Contains(strings.ToLower(it.ProductName), s) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}

	switch f.Tab {
	case models.TabMine:
		return t.RequestedBy == f.RequestedBy
	case models.TabApprovals:
		return (t.Status == models.TransferStatusRequested && containsInt(f.StoreApprovalLocationIDs, t.SourceLocationID)) ||
			(t.Status == models.TransferStatusStoreApproved && containsInt(f.WarehouseApprovalLocationIDs, t.DestinationLocationID))
	case models.TabActive:
		return !t.Status.IsTerminal()
	case models.TabCompleted:
		return t.Status.IsTerminal()
	}
	return true
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (m *MemoryStore) userName(id int) string {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	return m.users[id].FullName
}

func (m *MemoryStore) ListStatusLog(ctx context.Context, transferID int) ([]models.StatusLogEntry, error) {
	m.mu.RLock()
	entries := []models.StatusLogEntry{}
	for _, e := range m.state.logs {
		if e.TransferID == transferID {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	for i := range entries {
		entries[i].ChangedByName = m.userName(entries[i].ChangedBy)
	}
	return entries, nil
}

func (m *MemoryStore) ListPackingTasks(ctx context.Context, transferID int) ([]models.PackingTask, error) {
	m.mu.RLock()
	tasks := []models.PackingTask{}
	for _, p := range m.state.tasks {
		if p.TransferID == transferID {
			tasks = append(tasks, *p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	for i := range tasks {
		tasks[i].AssignedToName = m.userName(tasks[i].AssignedTo)
	}
	return tasks, nil
}

func (m *MemoryStore) ListPackedQuantities(ctx context.Context, transferID int) ([]models.PackedQuantityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []models.PackedQuantityRecord{}
	for _, q := range m.state.packed {
		if task, ok := m.state.tasks[q.PackingTaskID]; ok && task.TransferID == transferID {
			records = append(records, q)
		}
	}
	return records, nil
}

func (m *MemoryStore) ListDeliveryAssignments(ctx context.Context, transferID int) ([]models.DeliveryAssignment, error) {
	m.mu.RLock()
	assignments := []models.DeliveryAssignment{}
	for _, d := range m.state.deliveries {
		if d.TransferID == transferID {
			assignments = append(assignments, *d)
		}
	}
	m.mu.RUnlock()

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	for i := range assignments {
		assignments[i].AssignedToName = m.userName(assignments[i].AssignedTo)
	}
	return assignments, nil
}

// memoryQueries mutates the working copy owned by one RunInTx call.
type memoryQueries struct {
	state *memoryState
}

func (q *memoryQueries) NextTransferNumber(ctx context.Context, prefix string) (string, error) {
	q.state.numberSeq++
	return fmt.Sprintf("%s%06d", prefix, q.state.numberSeq), nil
}

func (q *memoryQueries) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	for _, existing := range q.state.transfers {
		if existing.TransferNumber == t.TransferNumber {
			return fmt.Errorf("%w: transfer_number", ErrDuplicate)
		}
	}
	t.ID = q.state.id()
	t.CreatedAt = t.RequestedAt
	t.UpdatedAt = t.RequestedAt
	for i := range t.Items {
		t.Items[i].ID = q.state.id()
		t.Items[i].TransferID = t.ID
		t.Items[i].QuantityPacked = 0
		t.Items[i].QuantityDelivered = 0
	}
	q.state.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (q *memoryQueries) LockTransfer(ctx context.Context, id int) (*models.Transfer, error) {
	t, ok := q.state.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransfer(t), nil
}

func (q *memoryQueries) UpdateTransferStatus(ctx context.Context, u models.StatusUpdate) error {
	t, ok := q.state.transfers[u.TransferID]
	if !ok {
		return ErrNotFound
	}
	if t.Status != u.From {
		return ErrStatusConflict
	}
	t.Status = u.To
	if u.RejectionReason != nil {
		reason := *u.RejectionReason
		t.RejectionReason = &reason
	}
	if t.DispatchedAt == nil && u.DispatchedAt != nil {
		at := *u.DispatchedAt
		t.DispatchedAt = &at
	}
	if t.DeliveredAt == nil && u.DeliveredAt != nil {
		at := *u.DeliveredAt
		t.DeliveredAt = &at
	}
	t.UpdatedAt = u.UpdatedAt
	return nil
}

func (q *memoryQueries) UpdateItemQuantities(ctx context.Context, item *models.TransferItem) error {
	t, ok := q.state.transfers[item.TransferID]
	if !ok {
		return ErrNotFound
	}
	for i := range t.Items {
		if t.Items[i].ID == item.ID {
			if item.QuantityPacked < 0 || item.QuantityPacked > t.Items[i].QuantityRequested ||
				item.QuantityDelivered < 0 || item.QuantityDelivered > item.QuantityPacked {
				return fmt.Errorf("item %d: quantity bounds violated", item.ID)
			}
			t.Items[i].QuantityPacked = item.QuantityPacked
			t.Items[i].QuantityDelivered = item.QuantityDelivered
			return nil
		}
	}
	return ErrNotFound
}

func (q *memoryQueries) AppendStatusLog(ctx context.Context, e *models.StatusLogEntry) error {
	e.ID = q.state.id()
	entry := *e
	entry.ChangedByName = ""
	q.state.logs = append(q.state.logs, entry)
	return nil
}

func (q *memoryQueries) InsertPackingTask(ctx context.Context, task *models.PackingTask) error {
	task.ID = q.state.id()
	cp := *task
	q.state.tasks[task.ID] = &cp
	return nil
}

func (q *memoryQueries) LockPackingTask(ctx context.Context, id int) (*models.PackingTask, error) {
	p, ok := q.state.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (q *memoryQueries) UpdatePackingTask(ctx context.Context, task *models.PackingTask) error {
	if _, ok := q.state.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	cp := *task
	q.state.tasks[task.ID] = &cp
	return nil
}

func (q *memoryQueries) InsertPackedQuantity(ctx context.Context, rec *models.PackedQuantityRecord) error {
	rec.ID = q.state.id()
	q.state.packed = append(q.state.packed, *rec)
	return nil
}

func (q *memoryQueries) InsertDeliveryAssignment(ctx context.Context, a *models.DeliveryAssignment) error {
	a.ID = q.state.id()
	cp := *a
	q.state.deliveries[a.ID] = &cp
	return nil
}

func (q *memoryQueries) LockDeliveryAssignment(ctx context.Context, id int) (*models.DeliveryAssignment, error) {
	d, ok := q.state.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (q *memoryQueries) UpdateDeliveryAssignment(ctx context.Context, a *models.DeliveryAssignment) error {
	if _, ok := q.state.deliveries[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	q.state.deliveries[a.ID] = &cp
	return nil
}

// Reference data.

func (m *MemoryStore) refID() int {
	m.nextRefID++
	return m.nextRefID
}

// AddUser seeds the identity directory. A zero ID is assigned automatically.
func (m *MemoryStore) AddUser(u models.User) models.User {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	if u.ID == 0 {
		u.ID = m.refID()
	} else if u.ID > m.nextRefID {
		m.nextRefID = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
		u.UpdatedAt = u.CreatedAt
	}
	m.users[u.ID] = u
	return u
}

// SetUserActive suspends or reactivates a user.
func (m *MemoryStore) SetUserActive(id int, active bool) {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = active
		m.users[id] = u
	}
}

func (m *MemoryStore) ResolveUser(ctx context.Context, id int) (*models.User, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	users := []models.User{}
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].FullName < users[j].FullName })
	return users, nil
}

func (m *MemoryStore) GetLocation(ctx context.Context, id int) (*models.Location, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	l, ok := m.locations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (m *MemoryStore) ListLocations(ctx context.Context, f models.LocationFilter) ([]models.Location, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	locations := []models.Location{}
	for _, l := range m.locations {
		if f.ProjectID != nil && (l.ProjectID == nil || *l.ProjectID != *f.ProjectID) {
			continue
		}
		if f.ActiveOnly && !l.IsActive {
			continue
		}
		if f.Type != "" && l.LocationType != f.Type {
			continue
		}
		locations = append(locations, l)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].LocationName < locations[j].LocationName })
	return locations, nil
}

func (m *MemoryStore) CreateLocation(ctx context.Context, l *models.Location) error {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	for _, existing := range m.locations {
		if strings.EqualFold(existing.LocationCode, l.LocationCode) {
			return fmt.Errorf("%w: location_code", ErrDuplicate)
		}
	}
	l.ID = m.refID()
	l.CreatedAt = m.now()
	m.locations[l.ID] = *l
	return nil
}

func (m *MemoryStore) SetLocationActive(ctx context.Context, id int, active bool) error {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	l, ok := m.locations[id]
	if !ok {
		return ErrNotFound
	}
	l.IsActive = active
	m.locations[id] = l
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	products := []models.Product{}
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		if f.ProjectID != nil && p.ProjectID != nil && *p.ProjectID != *f.ProjectID {
			continue
		}
		if search != "" {
			code := ""
			if p.ProductCode != nil {
				code = strings.ToLower(*p.ProductCode)
			}
			if !strings.Contains(strings.ToLower(p.ProductName), search) && !strings.Contains(code, search) {
				continue
			}
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductName < products[j].ProductName })
	return products, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	if p.ProductCode != nil {
		for _, existing := range m.products {
			if existing.ProductCode != nil && strings.EqualFold(*existing.ProductCode, *p.ProductCode) {
				return fmt.Errorf("%w: product_code", ErrDuplicate)
			}
		}
	}
	p.ID = m.refID()
	p.CreatedAt = m.now()
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) RolesAt(ctx context.Context, userID, locationID int) ([]models.Role, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	var roles []models.Role
	for _, a := range m.roles {
		if a.UserID == userID && a.LocationID == locationID {
			roles = append(roles, a.Role)
		}
	}
	return roles, nil
}

func (m *MemoryStore) ListRoleAssignments(ctx context.Context, f models.RoleAssignmentFilter) ([]models.RoleAssignment, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	assignments := []models.RoleAssignment{}
	for _, a := range m.roles {
		if f.UserID != 0 && a.UserID != f.UserID {
			continue
		}
		if f.LocationID != 0 && a.LocationID != f.LocationID {
			continue
		}
		a.UserName = m.users[a.UserID].FullName
		a.LocationName = m.locations[a.LocationID].LocationName
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (m *MemoryStore) CreateRoleAssignment(ctx context.Context, a *models.RoleAssignment) error {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	for _, existing := range m.roles {
		if existing.UserID == a.UserID && existing.LocationID == a.LocationID && existing.Role == a.Role {
			return fmt.Errorf("%w: role assignment", ErrDuplicate)
		}
	}
	a.ID = m.refID()
	a.CreatedAt = m.now()
	m.roles[a.ID] = *a
	return nil
}

func (m *MemoryStore) DeleteRoleAssignment(ctx context.Context, id int) error {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *MemoryStore) CreateActionLog(ctx context.Context, log *models.AdminActionLog) error {
	m.refMu.Lock()
	defer m.refMu.Unlock()
	log.ID = m.refID()
	log.CreatedAt = m.now()
	m.actionLogs = append(m.actionLogs, *log)
	return nil
}

func (m *MemoryStore) ListActionLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error) {
	m.refMu.RLock()
	defer m.refMu.RUnlock()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	logs := []models.AdminActionLog{}
	for i := len(m.actionLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, m.actionLogs[i])
	}
	return logs, nil
}

// Ping always succeeds; it lets the store stand in for a database pool in
// health checks.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
