package models

import "time"

// TransferStatus is the top-level state of a transfer request.
type TransferStatus string

const (
	TransferStatusRequested         TransferStatus = "requested"
	TransferStatusStoreApproved     TransferStatus = "store_approved"
	TransferStatusWarehouseApproved TransferStatus = "warehouse_approved"
	TransferStatusPacking           TransferStatus = "packing"
	TransferStatusPacked            TransferStatus = "packed"
	TransferStatusDispatched        TransferStatus = "dispatched"
	TransferStatusInTransit         TransferStatus = "in_transit"
	TransferStatusDelivered         TransferStatus = "delivered"
	TransferStatusRejected          TransferStatus = "rejected"
	TransferStatusCancelled         TransferStatus = "cancelled"
)

// AllTransferStatuses lists every status in lifecycle order.
var AllTransferStatuses = []TransferStatus{
	TransferStatusRequested,
	TransferStatusStoreApproved,
	TransferStatusWarehouseApproved,
	TransferStatusPacking,
	TransferStatusPacked,
	TransferStatusDispatched,
	TransferStatusInTransit,
	TransferStatusDelivered,
	TransferStatusRejected,
	TransferStatusCancelled,
}

// IsValid reports whether s is a known status.
func (s TransferStatus) IsValid() bool {
	for _, known := range AllTransferStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusDelivered || s == TransferStatusRejected || s == TransferStatusCancelled
}

// TransferPriority orders work in the approval and packing queues.
type TransferPriority string

const (
	PriorityLow    TransferPriority = "low"
	PriorityNormal TransferPriority = "normal"
	PriorityHigh   TransferPriority = "high"
	PriorityUrgent TransferPriority = "urgent"
)

func (p TransferPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Transfer is a request to move product quantities between two locations.
// Source and destination labels are copied at creation so the record stays
// readable even if a location is renamed later.
type Transfer struct {
	ID                      int              `json:"id"`
	TransferNumber          string           `json:"transfer_number"`
	ProjectID               *int             `json:"project_id,omitempty"`
	SourceLocationID        int              `json:"source_location_id"`
	SourceLocationName      string           `json:"source_location_name"`
	SourceLocationCode      string           `json:"source_location_code"`
	DestinationLocationID   int              `json:"destination_location_id"`
	DestinationLocationName string           `json:"destination_location_name"`
	DestinationLocationCode string           `json:"destination_location_code"`
	Priority                TransferPriority `json:"priority"`
	Status                  TransferStatus   `json:"transfer_status"`
	RequestNotes            string           `json:"request_notes"`
	RejectionReason         *string          `json:"rejection_reason,omitempty"`
	ExpectedDeliveryDate    *time.Time       `json:"expected_delivery_date,omitempty"`
	RequestedBy             int              `json:"requested_by"`
	RequestedAt             time.Time        `json:"requested_at"`
	DispatchedAt            *time.Time       `json:"dispatched_at,omitempty"`
	DeliveredAt             *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`

	Items []TransferItem `json:"items,omitempty"`
}

// TransferItem is one product line of a transfer.
// Invariant: 0 <= QuantityDelivered <= QuantityPacked <= QuantityRequested.
type TransferItem struct {
	ID                int     `json:"id"`
	TransferID        int     `json:"transfer_id"`
	ProductID         *int    `json:"product_id,omitempty"`
	ProductName       string  `json:"product_name"`
	ProductCode       *string `json:"product_code,omitempty"`
	QuantityRequested int     `json:"quantity_requested"`
	QuantityPacked    int     `json:"quantity_packed"`
	QuantityDelivered int     `json:"quantity_delivered"`
	Unit              string  `json:"unit"`
}

// RemainingToPack is the quantity not yet covered by completed packing tasks.
func (i TransferItem) RemainingToPack() int {
	if i.QuantityPacked >= i.QuantityRequested {
		return 0
	}
	return i.QuantityRequested - i.QuantityPacked
}

// StatusUpdate is one guarded status write. The write only applies while the
// stored status still equals From.
type StatusUpdate struct {
	TransferID      int
	From            TransferStatus
	To              TransferStatus
	RejectionReason *string
	DispatchedAt    *time.Time
	DeliveredAt     *time.Time
	UpdatedAt       time.Time
}

type CreateTransferRequest struct {
	SourceLocationID      int                 `json:"source_location_id"`
	DestinationLocationID int                 `json:"destination_location_id"`
	Priority              TransferPriority    `json:"priority"`
	RequestNotes          string              `json:"request_notes"`
	ExpectedDeliveryDate  string              `json:"expected_delivery_date"`
	Items                 []TransferItemInput `json:"items"`
}

type TransferItemInput struct {
	ProductID         *int    `json:"product_id"`
	ProductName       string  `json:"product_name"`
	ProductCode       *string `json:"product_code"`
	QuantityRequested int     `json:"quantity_requested"`
	Unit              string  `json:"unit"`
}

// ChangeStatusRequest is the body of PATCH /transfers/{id}/status.
type ChangeStatusRequest struct {
	NewStatus       TransferStatus  `json:"new_status"`
	ExpectedStatus  *TransferStatus `json:"expected_status"`
	Notes           string          `json:"notes"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
}

// ApprovalRequest is the body of POST /transfers/{id}/approve.
type ApprovalRequest struct {
	Action          string `json:"action"` // "approve" or "reject"
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
}

// Transfer list tabs.
const (
	TabAll       = "all"
	TabMine      = "mine"
	TabApprovals = "approvals"
	TabActive    = "active"
	TabCompleted = "completed"
)

// TransferFilter narrows GET /transfers.
type TransferFilter struct {
	ProjectID   *int
	Tab         string
	Status      TransferStatus
	Search      string
	RequestedBy int

	// Set for the approvals tab: locations where the caller can approve.
	StoreApprovalLocationIDs     []int
	WarehouseApprovalLocationIDs []int
}

type TransferStats struct {
	Total      int `json:"total"`
	Requested  int `json:"requested"`
	InProgress int `json:"in_progress"`
	Delivered  int `json:"delivered"`
}

// Count adds one transfer with status s to the aggregate.
func (st *TransferStats) Count(s TransferStatus) {
	st.Total++
	switch {
	case s == TransferStatusRequested:
		st.Requested++
	case s == TransferStatusDelivered:
		st.Delivered++
	case !s.IsTerminal():
		st.InProgress++
	}
}

type TransferListResponse struct {
	Transfers []Transfer    `json:"transfers"`
	Stats     TransferStats `json:"stats"`
}

// TransferDetail is the full view returned by GET /transfers/{id}.
type TransferDetail struct {
	Transfer            *Transfer              `json:"transfer"`
	Items               []TransferItem         `json:"items"`
	StatusLog           []StatusLogEntry       `json:"statusLog"`
	PackingTasks        []PackingTask          `json:"packingTasks"`
	PackedQuantities    []PackedQuantityRecord `json:"packedQuantities"`
	DeliveryAssignments []DeliveryAssignment   `json:"deliveryAssignments"`
}
