package models

import "time"

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

// DeliveryAssignment is the transport leg of a packed transfer.
type DeliveryAssignment struct {
	ID             int            `json:"id"`
	TransferID     int            `json:"transfer_id"`
	AssignedTo     int            `json:"assigned_to"`
	AssignedToName string         `json:"assigned_to_name,omitempty"`
	AssignedBy     int            `json:"assigned_by"`
	VehicleNumber  string         `json:"vehicle_number"`
	DriverName     string         `json:"driver_name"`
	DriverPhone    string         `json:"driver_phone"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	AssignedAt     time.Time      `json:"assigned_at"`
	PickedUpAt     *time.Time     `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	RecipientName  *string        `json:"recipient_name,omitempty"`
	DeliveryNotes  string         `json:"delivery_notes"`
}

type AssignDeliveryRequest struct {
	AssignedTo    int    `json:"assigned_to"`
	VehicleNumber string `json:"vehicle_number"`
	DriverName    string `json:"driver_name"`
	DriverPhone   string `json:"driver_phone"`
	Notes         string `json:"delivery_notes"`
}

// UpdateDeliveryRequest is the body of PATCH /transfers/{id}/delivery.
type UpdateDeliveryRequest struct {
	AssignmentID   int                 `json:"assignment_id"`
	Status         DeliveryStatus      `json:"delivery_status"`
	RecipientName  string              `json:"recipient_name,omitempty"`
	DeliveredItems []ItemQuantityInput `json:"delivered_items,omitempty"`
	Notes          string              `json:"delivery_notes"`
}
